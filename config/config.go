// Package config loads service configuration from the environment.
package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config carries everything main needs to wire the service. DBDriver
// accepts "sqlite3", "postgres" or "memory" (no persistence, useful for
// local development).
type Config struct {
	Port             int           `env:"PORT,default=8080"`
	DBDriver         string        `env:"DB_DRIVER,default=sqlite3"`
	DBDSN            string        `env:"DB_DSN,default=./ledger.db"`
	JWTSecret        string        `env:"JWT_SECRET"`
	IPRateLimit      int           `env:"IP_RATE_LIMIT,default=166"`
	AccountRateLimit int           `env:"ACCOUNT_RATE_LIMIT,default=5"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
