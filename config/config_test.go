package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.DBDriver != "sqlite3" || cfg.DBDSN != "./ledger.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.JWTSecret != "" {
		t.Fatalf("JWTSecret should default to empty, got %q", cfg.JWTSecret)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "host=localhost user=ledger dbname=ledger sslmode=disable")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 || cfg.DBDriver != "postgres" || cfg.JWTSecret != "s3cret" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("ShutdownTimeout=%s want 30s", cfg.ShutdownTimeout)
	}
}
