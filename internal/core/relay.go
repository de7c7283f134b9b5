package core

import (
	"context"
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/clubchat-server/internal/store"
)

// Directory resolves user ids to accounts for private messages.
type Directory interface {
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// Relay classifies inbound chat messages, persists them and hands them to
// the hub for delivery. It reads presence through the hub and never mutates it.
type Relay struct {
	hub          *Hub
	users        Directory
	messages     store.MessageStore
	cooldown     *Cooldown
	maxBodyRunes int
	log          *zerolog.Logger
}

// RelayConfig holds the relay's limits.
type RelayConfig struct {
	Cooldown     *Cooldown
	MaxBodyRunes int
}

// NewRelay builds a relay on top of hub.
func NewRelay(hub *Hub, users Directory, messages store.MessageStore, cfg RelayConfig, logger *zerolog.Logger) *Relay {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Relay{
		hub:          hub,
		users:        users,
		messages:     messages,
		cooldown:     cfg.Cooldown,
		maxBodyRunes: cfg.MaxBodyRunes,
		log:          logger,
	}
}

// Route handles one chat message from c. Rejections are returned as
// *Rejection; the caller reports them to the sender.
func (r *Relay) Route(ctx context.Context, c *Client, body string, recipientID *int64) error {
	sender, ok := c.Identity()
	if !ok {
		return ErrNotJoined
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return reject(NoticeEmptyBody)
	}
	if r.maxBodyRunes > 0 && utf8.RuneCountInString(body) > r.maxBodyRunes {
		return rejectf(noticeTooLongFmt, r.maxBodyRunes)
	}

	ticket, wait := r.cooldown.Reserve(sender.UserID)
	if wait > 0 {
		return rejectf(noticeSlowFmt, int(math.Ceil(wait.Seconds())))
	}

	var (
		persisted bool
		err       error
	)
	if recipientID != nil {
		persisted, err = r.routePrivate(ctx, c, sender, *recipientID, body)
	} else {
		persisted, err = r.routeBroadcast(ctx, sender, body)
	}
	if err != nil && !persisted {
		ticket.Cancel()
	}
	return err
}

// routeBroadcast reports whether the message was persisted. Once it is, the
// fan-out runs detached from ctx so a sender hanging up cannot suppress it.
func (r *Relay) routeBroadcast(ctx context.Context, sender Identity, body string) (bool, error) {
	msg, err := r.messages.AppendClubMessage(ctx, sender.UserID, body)
	if err != nil {
		r.log.Error().Err(err).Int64("user_id", sender.UserID).Msg("persist club message")
		return false, backendFailure(err)
	}

	if err := r.hub.Broadcast(context.WithoutCancel(ctx), msg); err != nil {
		return true, err
	}
	r.log.Debug().Int64("user_id", sender.UserID).Int64("message_id", msg.ID).Msg("club message relayed")
	return true, nil
}

func (r *Relay) routePrivate(ctx context.Context, c *Client, sender Identity, recipientID int64, body string) (bool, error) {
	if recipientID == sender.UserID {
		return false, reject(NoticeSelfMessage)
	}

	recipient, err := r.users.GetUserByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, reject(NoticeUnknownRecipient)
		}
		r.log.Error().Err(err).Int64("recipient_id", recipientID).Msg("lookup recipient")
		return false, backendFailure(err)
	}

	online, err := r.hub.IsOnline(ctx, recipientID)
	if err != nil {
		return false, err
	}
	if !online {
		return false, rejectf(noticeOfflineFmt, recipient.ProfileName)
	}

	msg, err := r.messages.AppendPrivateMessage(ctx, sender.UserID, recipientID, body)
	if err != nil {
		r.log.Error().Err(err).
			Int64("user_id", sender.UserID).
			Int64("recipient_id", recipientID).
			Msg("persist private message")
		return false, backendFailure(err)
	}

	if err := r.hub.DeliverPrivate(context.WithoutCancel(ctx), c, msg); err != nil {
		return true, err
	}
	r.log.Debug().
		Int64("user_id", sender.UserID).
		Int64("recipient_id", recipientID).
		Int64("message_id", msg.ID).
		Msg("private message relayed")
	return true, nil
}
