package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("WORKER_COUNT", "")
	t.Setenv("VOICE_WEBHOOK_MAX_SKEW", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.WorkerCount != 2 {
		t.Fatalf("expected default worker count, got %d", cfg.WorkerCount)
	}
	if cfg.MaxSendAttempts != 4 {
		t.Fatalf("expected default max send attempts, got %d", cfg.MaxSendAttempts)
	}
	if cfg.VoiceWebhookSkew != 30*time.Minute {
		t.Fatalf("expected default webhook skew, got %s", cfg.VoiceWebhookSkew)
	}
	if cfg.SchedulerLookback != 24*time.Hour {
		t.Fatalf("expected default scheduler lookback, got %s", cfg.SchedulerLookback)
	}
	if cfg.VoiceCallLead != 2*time.Hour {
		t.Fatalf("expected default voice call lead, got %s", cfg.VoiceCallLead)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("SEND_RATE_PER_SECOND", "0.5")
	t.Setenv("SCHEDULER_INTERVAL", "1m")
	t.Setenv("VOICE_CALL_LEAD", "3h")
	t.Setenv("EMAIL_PROVIDER", "SES")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected worker count override, got %d", cfg.WorkerCount)
	}
	if cfg.SendRatePerSecond != 0.5 {
		t.Fatalf("expected send rate override, got %f", cfg.SendRatePerSecond)
	}
	if cfg.SchedulerInterval != time.Minute {
		t.Fatalf("expected scheduler interval override, got %s", cfg.SchedulerInterval)
	}
	if cfg.VoiceCallLead != 3*time.Hour {
		t.Fatalf("expected voice call lead override, got %s", cfg.VoiceCallLead)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected normalized email provider, got %s", cfg.EmailProvider)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("SCHEDULER_INTERVAL", "not-a-duration")
	cfg := Load()
	if cfg.SchedulerInterval != 5*time.Minute {
		t.Fatalf("expected fallback interval, got %s", cfg.SchedulerInterval)
	}
}
