package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	PingInterval      time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`

	Chat     ChatConfig     `mapstructure:"chat" yaml:"chat"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Presence PresenceConfig `mapstructure:"presence" yaml:"presence"`
}

// ChatConfig tunes the relay.
type ChatConfig struct {
	HistoryLimit    int           `mapstructure:"history_limit" yaml:"history_limit"`
	MessageCooldown time.Duration `mapstructure:"message_cooldown" yaml:"message_cooldown"`
	MaxBodyRunes    int           `mapstructure:"max_body_runes" yaml:"max_body_runes"`
	OutboundBuffer  int           `mapstructure:"outbound_buffer" yaml:"outbound_buffer"`
}

// AuthConfig selects how join credentials are resolved.
type AuthConfig struct {
	// Mode is "session" (credential is a Sessions row id) or "jwt".
	Mode        string        `mapstructure:"mode" yaml:"mode"`
	SessionTTL  time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
}

// StoreConfig selects the message store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url"`
}

// PresenceConfig configures the optional Redis presence mirror.
type PresenceConfig struct {
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisKey      string `mapstructure:"redis_key" yaml:"redis_key"`
}

const (
	AuthModeSession = "session"
	AuthModeJWT     = "jwt"

	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":4000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		MaxMessageBytes:   16 << 10,
		PingInterval:      30 * time.Second,
		Chat: ChatConfig{
			HistoryLimit:    20,
			MessageCooldown: 10 * time.Second,
			MaxBodyRunes:    500,
			OutboundBuffer:  64,
		},
		Auth: AuthConfig{
			Mode:        AuthModeSession,
			SessionTTL:  7 * 24 * time.Hour,
			JWTIssuer:   "clubchat",
			JWTAudience: "clubchat",
			JWTTTL:      24 * time.Hour,
		},
		Store: StoreConfig{
			Driver:     StoreDriverSQLite,
			SQLitePath: "clubchat.db",
		},
		Presence: PresenceConfig{
			RedisKey: "clubchat:online",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.SQLitePath != "" {
		c.Store.SQLitePath = other.Store.SQLitePath
	}
	if other.Store.PostgresURL != "" {
		c.Store.PostgresURL = other.Store.PostgresURL
	}
	if other.Auth.Mode != "" {
		c.Auth.Mode = other.Auth.Mode
	}
}
