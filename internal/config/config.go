package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                 int    `env:"PORT" envDefault:"8080"`
	DatabaseURL          string `env:"DATABASE_URL,required"`
	RedisURL             string `env:"REDIS_URL,required"`
	ProtocolStoreDSN     string `env:"PROTOCOL_STORE_DSN"`
	MediaDir             string `env:"MEDIA_DIR" envDefault:"./media"`
	SessionRetentionDays int    `env:"SESSION_RETENTION_DAYS" envDefault:"7"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SessionRetention is how long a never-connected, disconnected session row
// is kept before the cleanup job removes it.
func (c *Config) SessionRetention() time.Duration {
	return time.Duration(c.SessionRetentionDays) * 24 * time.Hour
}

// StoreDSN is the DSN the protocol layer uses for its own device store.
// Defaults to the main database.
func (c *Config) StoreDSN() string {
	if c.ProtocolStoreDSN != "" {
		return c.ProtocolStoreDSN
	}
	return c.DatabaseURL
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
