package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_USER", "pillbox")
	t.Setenv("POSTGRES_PASSWORD", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Options.SnoozeMinutes != 5 {
		t.Fatalf("expected snooze default 5, got %d", cfg.Options.SnoozeMinutes)
	}
	if cfg.Options.DoseSource != "auto" {
		t.Fatalf("expected dose source auto, got %s", cfg.Options.DoseSource)
	}
	if cfg.Options.AlarmTimezone != "America/Mexico_City" {
		t.Fatalf("unexpected timezone %s", cfg.Options.AlarmTimezone)
	}
	if !cfg.CORS.AllowAllOrigins() {
		t.Fatalf("expected wildcard CORS by default")
	}
	if cfg.Mongo.Enabled() {
		t.Fatalf("expected mongo archive disabled without MONGODB_URI")
	}
	if cfg.Push.Timeout != 10*time.Second {
		t.Fatalf("expected push timeout 10s, got %s", cfg.Push.Timeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "18080")
	t.Setenv("DEFAULT_SNOOZE_MINUTES", "10")
	t.Setenv("ALARM_TIMEZONE", "UTC")
	t.Setenv("PUSH_TIMEOUT", "3s")
	t.Setenv("MQTT_TOPIC_PREFIX", "/devices/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "18080" {
		t.Fatalf("expected PORT override, got %s", cfg.Server.Port)
	}
	if cfg.Options.SnoozeMinutes != 10 {
		t.Fatalf("expected snooze override 10, got %d", cfg.Options.SnoozeMinutes)
	}
	if cfg.Push.Timeout != 3*time.Second {
		t.Fatalf("expected PUSH_TIMEOUT 3s, got %s", cfg.Push.Timeout)
	}
	if cfg.MQTT.TopicPrefix != "devices" {
		t.Fatalf("expected trimmed topic prefix, got %q", cfg.MQTT.TopicPrefix)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.CORS.AllowAllOrigins() {
		t.Fatalf("expected explicit origins")
	}
	if !cfg.Mongo.Enabled() {
		t.Fatalf("expected mongo archive enabled")
	}
}

func TestLoadRequiresDatabaseCredentials(t *testing.T) {
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without database credentials")
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}

	bad := DefaultOptions()
	bad.DoseSource = "robot"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected invalid dose source to error")
	}

	bad = DefaultOptions()
	bad.AlarmTimezone = "Mars/Olympus_Mons"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected invalid timezone to error")
	}

	bad = DefaultOptions()
	bad.SnoozeMinutes = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected zero snooze minutes to error")
	}
}
