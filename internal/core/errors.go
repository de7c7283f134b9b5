package core

import (
	"errors"
	"fmt"
)

// Notice texts sent to users as system messages.
const (
	NoticeMissingCredential = "❌ Join failed: missing session token."
	NoticeInvalidSession    = "❌ Join failed: invalid or expired session."
	NoticeAlreadyJoined     = "ℹ️ You are already in the club chat."
	NoticeReplaced          = "⚠️ You signed in from another location. This connection was closed."
	NoticeEmptyBody         = "❌ Message cannot be empty."
	NoticeSelfMessage       = "❌ Private message failed: you cannot message yourself."
	NoticeUnknownRecipient  = "❌ Private message failed: user does not exist."
	NoticeDeliveryFailed    = "❌ Message could not be delivered, please try again."

	noticeJoinedFmt  = "🟢 %s joined the club chat."
	noticeLeftFmt    = "🔴 %s left the club chat."
	noticeOfflineFmt = "❌ %s is not online."
	noticeTooLongFmt = "❌ Message is too long (max %d characters)."
	noticeSlowFmt    = "⏳ Slow down: wait %ds before sending another message."
)

var (
	// ErrInvalidCredential is returned by resolvers for unknown or expired credentials.
	ErrInvalidCredential = errors.New("invalid or expired credential")
	// ErrHandshakeFailed marks a terminal join failure; the connection must be closed.
	ErrHandshakeFailed = errors.New("join handshake failed")
	// ErrNotJoined is returned for messages on a connection that has not joined.
	ErrNotJoined = errors.New("connection has not joined")
	// ErrConnectionClosed is returned when the connection closed mid-operation.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrHubStopped is returned once the hub loop has exited.
	ErrHubStopped = errors.New("hub stopped")
)

// Rejection is a routing failure reported to the sender as a system notice.
// Err is set when the cause is a backend failure rather than user input.
type Rejection struct {
	Notice string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Notice, r.Err)
	}
	return r.Notice
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func reject(notice string) *Rejection {
	return &Rejection{Notice: notice}
}

func rejectf(format string, args ...any) *Rejection {
	return &Rejection{Notice: fmt.Sprintf(format, args...)}
}

func backendFailure(err error) *Rejection {
	return &Rejection{Notice: NoticeDeliveryFailed, Err: err}
}
