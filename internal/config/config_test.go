package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SilenceWindow != 15*time.Second {
		t.Errorf("expected 15s silence window, got %v", cfg.SilenceWindow)
	}
	if cfg.SilencePromptLimit != 2 {
		t.Errorf("expected prompt limit 2, got %d", cfg.SilencePromptLimit)
	}
	if cfg.PingPeriod >= cfg.PongWait {
		t.Errorf("ping period %v must be less than pong wait %v", cfg.PingPeriod, cfg.PongWait)
	}
}

func TestLoadInvalidTimeout(t *testing.T) {
	t.Setenv("SILENCE_WINDOW", "abc")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid SILENCE_WINDOW")
	}
}

func TestLoadOriginsTrimmed(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://a.example , http://b.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("expected trimmed origin, got %q", cfg.AllowedOrigins[1])
	}
}
