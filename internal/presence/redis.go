// Package presence mirrors the chat roster into Redis so other services can
// read who is online without holding a WebSocket.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config configures the mirror's Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Mirror receives roster snapshots from the hub and publishes them.
type Mirror interface {
	RosterChanged(users []int64)
	Run(ctx context.Context)
	Close() error
}

// RedisMirror keeps a Redis set equal to the latest roster. Only the newest
// snapshot is written; intermediate ones are skipped.
type RedisMirror struct {
	client  *redis.Client
	key     string
	pending chan []int64
	log     *zerolog.Logger
}

// NewRedisMirror connects to Redis and verifies the connection.
func NewRedisMirror(ctx context.Context, cfg Config, logger *zerolog.Logger) (*RedisMirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = "clubchat:online"
	}
	return &RedisMirror{
		client:  rdb,
		key:     key,
		pending: make(chan []int64, 1),
		log:     logger,
	}, nil
}

// RosterChanged queues users for writing. It never blocks: an unwritten
// older snapshot is replaced.
func (m *RedisMirror) RosterChanged(users []int64) {
	snapshot := append([]int64(nil), users...)
	for {
		select {
		case m.pending <- snapshot:
			return
		default:
		}
		select {
		case <-m.pending:
		default:
		}
	}
}

// Run writes snapshots until ctx is cancelled, then clears the set.
func (m *RedisMirror) Run(ctx context.Context) {
	if err := m.write(ctx, nil); err != nil {
		m.log.Warn().Err(err).Msg("reset presence mirror")
	}
	for {
		select {
		case users := <-m.pending:
			if err := m.write(ctx, users); err != nil {
				m.log.Warn().Err(err).Int("online", len(users)).Msg("write presence mirror")
			}
		case <-ctx.Done():
			clearCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := m.client.Del(clearCtx, m.key).Err(); err != nil {
				m.log.Warn().Err(err).Msg("clear presence mirror")
			}
			cancel()
			return
		}
	}
}

func (m *RedisMirror) write(ctx context.Context, users []int64) error {
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, m.key)
		if len(users) > 0 {
			members := make([]any, len(users))
			for i, id := range users {
				members[i] = id
			}
			pipe.SAdd(ctx, m.key, members...)
		}
		return nil
	})
	return err
}

// Online reads the mirrored roster.
func (m *RedisMirror) Online(ctx context.Context) ([]int64, error) {
	var users []int64
	if err := m.client.SMembers(ctx, m.key).ScanSlice(&users); err != nil {
		return nil, fmt.Errorf("read presence mirror: %w", err)
	}
	return users, nil
}

// Close closes the Redis client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}

// Nop is a Mirror that discards everything.
type Nop struct{}

func (Nop) RosterChanged([]int64) {}

// Run blocks until ctx is cancelled.
func (Nop) Run(ctx context.Context) { <-ctx.Done() }

func (Nop) Close() error { return nil }
