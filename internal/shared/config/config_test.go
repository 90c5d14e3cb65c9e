package config

import (
	"testing"
	"time"
)

func TestParseWebhookKeys(t *testing.T) {
	keys := parseWebhookKeys("lab:s3cret, field:other , broken,:nosession")
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(keys), keys)
	}
	if keys[0].Session != "lab" || keys[0].Secret != "s3cret" {
		t.Fatalf("unexpected first key: %+v", keys[0])
	}
	if keys[1].Session != "field" || keys[1].Secret != "other" {
		t.Fatalf("unexpected second key: %+v", keys[1])
	}
}

func TestCallbackURL(t *testing.T) {
	cfg := Config{PublicBaseURL: "https://grainlab.example.com", CallbackPath: "webhook/analyze"}
	if got := cfg.CallbackURL(); got != "https://grainlab.example.com/webhook/analyze" {
		t.Fatalf("unexpected callback url: %s", got)
	}

	cfg.CallbackPath = "/webhook/analyze"
	if got := cfg.CallbackURL(); got != "https://grainlab.example.com/webhook/analyze" {
		t.Fatalf("unexpected callback url: %s", got)
	}
}

func TestGetDurationDefault(t *testing.T) {
	t.Setenv("ANALYSIS_TIMEOUT", "not-a-duration")
	if got := getDuration("ANALYSIS_TIMEOUT", 30*time.Second); got != 30*time.Second {
		t.Fatalf("expected default duration, got %s", got)
	}

	t.Setenv("ANALYSIS_TIMEOUT", "5s")
	if got := getDuration("ANALYSIS_TIMEOUT", 30*time.Second); got != 5*time.Second {
		t.Fatalf("expected 5s, got %s", got)
	}
}
