package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	InboundTypeJoin    = "join"
	InboundTypeMessage = "message"

	OutboundTypeInit           = "init"
	OutboundTypeNewMessage     = "new_message"
	OutboundTypePrivateMessage = "private_message"
	OutboundTypeSystem         = "system"
	OutboundTypeOnlineUsers    = "online_users"
)

var (
	// ErrMalformed is returned for frames that are not a JSON envelope.
	ErrMalformed = errors.New("malformed envelope")
	// ErrUnknownType is returned for envelopes with an unrecognised type.
	ErrUnknownType = errors.New("unknown envelope type")
)

// Inbound is the wire envelope for messages coming from the client.
type Inbound struct {
	Type       string `json:"type"`
	Credential string `json:"credential,omitempty"`
	Body       string `json:"body,omitempty"`
	// Message is accepted in place of Body; the game client sends it.
	Message     string `json:"message,omitempty"`
	RecipientID *int64 `json:"recipientId,omitempty"`
}

// Request is a decoded client message: either Join or Send.
type Request interface {
	request()
}

// Join asks to bind the connection to the identity behind Credential.
type Join struct {
	Credential string
}

// Send submits a chat message. A nil RecipientID means broadcast.
type Send struct {
	Body        string
	RecipientID *int64
}

func (Join) request() {}
func (Send) request() {}

// Decode parses one text frame into a Request.
func Decode(data []byte) (Request, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch in.Type {
	case InboundTypeJoin:
		return Join{Credential: in.Credential}, nil
	case InboundTypeMessage:
		body := in.Body
		if body == "" {
			body = in.Message
		}
		recipient := in.RecipientID
		if recipient != nil && *recipient == 0 {
			recipient = nil
		}
		return Send{Body: body, RecipientID: recipient}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
}

// ClubMessage is a broadcast message as sent to clients.
type ClubMessage struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ProfileName string    `json:"profile_name"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// PrivateMessage is a whisper as sent to its sender and recipient.
type PrivateMessage struct {
	ID                   int64     `json:"id"`
	UserID               int64     `json:"user_id"`
	ProfileName          string    `json:"profile_name"`
	RecipientID          int64     `json:"recipient_id"`
	RecipientProfileName string    `json:"recipient_profile_name"`
	Message              string    `json:"message"`
	CreatedAt            time.Time `json:"created_at"`
}

// Init carries the history replay sent right after a successful join.
type Init struct {
	Type     string        `json:"type"`
	Messages []ClubMessage `json:"messages"`
}

// NewMessage carries one broadcast message.
type NewMessage struct {
	Type    string      `json:"type"`
	Message ClubMessage `json:"message"`
}

// Private carries one private message.
type Private struct {
	Type    string         `json:"type"`
	Message PrivateMessage `json:"message"`
}

// System carries a human-readable notice or error.
type System struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// OnlineUsers carries the full roster of online user ids.
type OnlineUsers struct {
	Type  string  `json:"type"`
	Users []int64 `json:"users"`
}

// Envelope is a loose view of any server payload, used by clients.
type Envelope struct {
	Type     string          `json:"type"`
	Message  json.RawMessage `json:"message,omitempty"`
	Messages []ClubMessage   `json:"messages,omitempty"`
	Users    []int64         `json:"users,omitempty"`
}

// Text returns the notice text of a system envelope.
func (e Envelope) Text() string {
	var s string
	if err := json.Unmarshal(e.Message, &s); err != nil {
		return ""
	}
	return s
}

// Club decodes the payload of a new_message envelope.
func (e Envelope) Club() (ClubMessage, error) {
	var m ClubMessage
	err := json.Unmarshal(e.Message, &m)
	return m, err
}

// Private decodes the payload of a private_message envelope.
func (e Envelope) Private() (PrivateMessage, error) {
	var m PrivateMessage
	err := json.Unmarshal(e.Message, &m)
	return m, err
}
