package config

import "time"

// Config holds all application configuration, grouped by concern.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the persistence settings. An empty URL selects
// the in-memory store, for local development only.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains the token and encryption settings.
type AuthConfig struct {
	TokenSigningKey string        `mapstructure:"token_signing_key" validate:"required,min=32"`
	TokenTTL        time.Duration `mapstructure:"token_ttl" validate:"required"`
	EncryptionKey   string        `mapstructure:"encryption_key" validate:"required,len=32"`
}

// QueueConfig contains the background processing settings.
type QueueConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval" validate:"required"`
	TickWorkers      int           `mapstructure:"tick_workers" validate:"required,gt=0"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval" validate:"required"`
}
