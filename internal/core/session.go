package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/clubchat-server/internal/store"
)

// DefaultHistoryLimit is the number of club messages replayed on join.
const DefaultHistoryLimit = 20

// History loads the replay sent to joining clients.
type History interface {
	RecentClubMessages(ctx context.Context, limit int) ([]*store.ClubMessage, error)
}

// Chat bundles what every connection handler needs.
type Chat struct {
	Hub          *Hub
	Relay        *Relay
	Resolver     IdentityResolver
	History      History
	HistoryLimit int
	Log          *zerolog.Logger
}

// NewSession starts the handler for a freshly accepted connection.
func (ch *Chat) NewSession(c *Client) *Session {
	logger := ch.Log
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("conn_id", c.ID).Logger()
	go closeOnHubStop(ch.Hub, c)
	return &Session{chat: ch, client: c, log: &l}
}

// closeOnHubStop closes c when the hub stops, so connections that never
// joined do not outlive it.
func closeOnHubStop(hub *Hub, c *Client) {
	select {
	case <-hub.Done():
		c.Close()
	case <-c.Done():
	}
}

// Session is the per-connection handler. Its methods are called from a single
// goroutine, one inbound command at a time.
type Session struct {
	chat   *Chat
	client *Client
	log    *zerolog.Logger

	// fallbackCredential is used when a join carries no credential.
	fallbackCredential string
}

// Client returns the connection handled by this session.
func (s *Session) Client() *Client {
	return s.client
}

// SetFallbackCredential sets the credential used when join omits one, such
// as the session cookie of the upgrade request.
func (s *Session) SetFallbackCredential(credential string) {
	s.fallbackCredential = credential
}

// Handle processes one inbound command. An error wrapping
// ErrHandshakeFailed means the connection must be closed.
func (s *Session) Handle(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandJoin:
		return s.join(ctx, cmd.Credential)
	case CommandSendMessage:
		return s.send(ctx, cmd)
	default:
		s.log.Debug().Int("kind", int(cmd.Kind)).Msg("ignoring unknown command")
		return nil
	}
}

func (s *Session) join(ctx context.Context, credential string) error {
	switch s.client.State() {
	case StateJoined:
		s.notify(NoticeAlreadyJoined)
		return nil
	case StateClosed:
		return ErrConnectionClosed
	}

	if credential == "" {
		credential = s.fallbackCredential
	}
	if credential == "" {
		s.notify(NoticeMissingCredential)
		s.log.Debug().Msg("join without credential")
		return fmt.Errorf("%w: missing credential", ErrHandshakeFailed)
	}

	id, err := s.chat.Resolver.Resolve(ctx, credential)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredential) {
			s.log.Error().Err(err).Msg("resolve credential")
		} else {
			s.log.Debug().Err(err).Msg("rejected credential")
		}
		s.notify(NoticeInvalidSession)
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	if err := s.chat.Hub.Join(ctx, s.client, id); err != nil {
		return err
	}

	limit := s.chat.HistoryLimit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	history, err := s.chat.History.RecentClubMessages(ctx, limit)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", id.UserID).Msg("load history; replaying nothing")
		history = nil
	}

	return s.chat.Hub.CompleteJoin(ctx, s.client, history)
}

func (s *Session) send(ctx context.Context, cmd Command) error {
	if s.client.State() != StateJoined {
		s.log.Debug().Msg("ignoring message before join")
		return nil
	}

	err := s.chat.Relay.Route(ctx, s.client, cmd.Body, cmd.RecipientID)
	var rej *Rejection
	if errors.As(err, &rej) {
		s.notify(rej.Notice)
		s.log.Debug().Str("reason", rej.Notice).Int64("user_id", s.client.UserID()).Msg("message rejected")
		return nil
	}
	if errors.Is(err, ErrNotJoined) {
		return nil
	}
	return err
}

// Close tears the connection down and announces the departure if needed.
func (s *Session) Close() {
	if err := s.chat.Hub.Leave(context.Background(), s.client); err != nil && !errors.Is(err, ErrHubStopped) {
		s.log.Warn().Err(err).Msg("leave")
	}
}

func (s *Session) notify(text string) {
	s.client.Send(systemEvent(text))
}
