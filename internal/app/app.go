package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/clubchat-server/internal/auth"
	"github.com/vovakirdan/clubchat-server/internal/config"
	"github.com/vovakirdan/clubchat-server/internal/core"
	"github.com/vovakirdan/clubchat-server/internal/presence"
	"github.com/vovakirdan/clubchat-server/internal/store"
	"github.com/vovakirdan/clubchat-server/internal/store/postgres"
	"github.com/vovakirdan/clubchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/clubchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	mirror          presence.Mirror
	log             *zerolog.Logger
}

// OpenStore opens the configured message store.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreDriverPostgres:
		st, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case config.StoreDriverSQLite, "":
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// JWTConfig builds the token settings from cfg.
func JWTConfig(cfg config.AuthConfig) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
}

func newResolver(cfg config.AuthConfig, st store.Store) (core.IdentityResolver, error) {
	switch cfg.Mode {
	case config.AuthModeJWT:
		return auth.NewJWTResolver(JWTConfig(cfg)), nil
	case config.AuthModeSession, "":
		return auth.NewSessionResolver(st, cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	// Initialize database store
	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store initialized")

	resolver, err := newResolver(cfg.Auth, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var mirror presence.Mirror = presence.Nop{}
	if cfg.Presence.RedisAddr != "" {
		m, err := presence.NewRedisMirror(ctx, presence.Config{
			Addr:     cfg.Presence.RedisAddr,
			Password: cfg.Presence.RedisPassword,
			DB:       cfg.Presence.RedisDB,
			Key:      cfg.Presence.RedisKey,
		}, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("init presence mirror: %w", err)
		}
		logger.Info().Str("redis_addr", cfg.Presence.RedisAddr).Msg("presence mirror enabled")
		mirror = m
	}

	hub := core.NewHub(logger, core.WithRosterObserver(mirror))
	relay := core.NewRelay(hub, st, st, core.RelayConfig{
		Cooldown:     core.NewCooldown(cfg.Chat.MessageCooldown),
		MaxBodyRunes: cfg.Chat.MaxBodyRunes,
	}, logger)

	chat := &core.Chat{
		Hub:          hub,
		Relay:        relay,
		Resolver:     resolver,
		History:      st,
		HistoryLimit: cfg.Chat.HistoryLimit,
		Log:          logger,
	}
	server := transporthttp.NewServer(chat, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		mirror:          mirror,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ctx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	serverErr := make(chan error, 1)
	mirrorDone := make(chan struct{})

	go a.hub.Run(ctx)
	go func() {
		defer close(mirrorDone)
		a.mirror.Run(ctx)
	}()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopBackground()
		<-mirrorDone
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		// Hijacked WebSocket connections are not tracked by Shutdown; the hub
		// closes them when ctx is cancelled.
		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)
		<-mirrorDone
		a.cleanup()
		if err != nil {
			return err
		}
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if err := a.mirror.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close presence mirror")
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
