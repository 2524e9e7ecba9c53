package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{MaxOpenConns: 4, MaxIdleConns: 10}.withDefaults()
	if cfg.MaxOpenConns != 4 || cfg.MaxIdleConns != 4 {
		t.Fatalf("expected idle capped at open, got open=%d idle=%d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != 5*time.Minute || cfg.ConnMaxIdleTime != time.Minute {
		t.Fatalf("unexpected lifetimes %+v", cfg)
	}

	zero := Config{}.withDefaults()
	if zero.MaxOpenConns != 25 || zero.MaxIdleConns != 5 {
		t.Fatalf("unexpected defaults %+v", zero)
	}
}

func TestNewConnectionPoolRejectsMalformedURL(t *testing.T) {
	_, err := NewConnectionPool(context.Background(), &Config{URL: "postgres://%zz"}, nil)
	if err == nil {
		t.Fatal("expected error for malformed url")
	}
	var target interface{ Unwrap() error }
	if !errors.As(err, &target) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
