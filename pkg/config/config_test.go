package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}
	return configPath
}

func TestLoadConfigSuccess(t *testing.T) {
	original := AppConfig
	t.Cleanup(func() {
		AppConfig = original
	})

	configPath := writeConfig(t, `
database:
  host: localhost
  user: test-user
  password: test-pass
  dbname: testdb
  port: 5433
  sslmode: disable
telegram:
  token: test-token
reminders:
  tick_interval: 30s
  timezone: Europe/Amsterdam
`)

	if err := LoadConfig(configPath); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if AppConfig.Database.Host != "localhost" {
		t.Errorf("expected host to be localhost, got %q", AppConfig.Database.Host)
	}
	if AppConfig.Database.Port != 5433 {
		t.Errorf("expected port to be 5433, got %d", AppConfig.Database.Port)
	}
	if AppConfig.Telegram.Token != "test-token" {
		t.Errorf("expected token to be test-token, got %q", AppConfig.Telegram.Token)
	}
	if AppConfig.Reminders.TickInterval != 30*time.Second {
		t.Errorf("expected tick interval 30s, got %v", AppConfig.Reminders.TickInterval)
	}
	if AppConfig.Reminders.Location().String() != "Europe/Amsterdam" {
		t.Errorf("expected Europe/Amsterdam location, got %v", AppConfig.Reminders.Location())
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	configPath := writeConfig(t, `
database:
  driver: sqlite
  path: /tmp/taskmood.db
telegram:
  token: test-token
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("expected default log format text, got %q", cfg.Logging.Format)
	}
	r := cfg.Reminders
	if r.TickInterval != time.Minute {
		t.Errorf("expected default tick interval 1m, got %v", r.TickInterval)
	}
	if r.BatchLimit != 100 {
		t.Errorf("expected default batch limit 100, got %d", r.BatchLimit)
	}
	if r.PacingDelay != 300*time.Millisecond {
		t.Errorf("expected default pacing 300ms, got %v", r.PacingDelay)
	}
	if r.RetentionWindow != 7*24*time.Hour {
		t.Errorf("expected default retention 7 days, got %v", r.RetentionWindow)
	}
	if r.DefaultLeadHours != 1 || r.DefaultDigestTime != "09:00" {
		t.Errorf("unexpected reminder defaults: lead=%d digest=%q", r.DefaultLeadHours, r.DefaultDigestTime)
	}
	if !cfg.Maintenance.Enabled || cfg.Maintenance.Cron != "0 3 * * *" {
		t.Errorf("unexpected maintenance defaults: %+v", cfg.Maintenance)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
database:
  driver: sqlite
  path: /tmp/taskmood.db
telegram:
  token: file-token
`)
	t.Setenv("TASKBOT_TELEGRAM__TOKEN", "env-token")
	t.Setenv("TASKBOT_REMINDERS__BATCH_LIMIT", "25")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("expected env token to win, got %q", cfg.Telegram.Token)
	}
	if cfg.Reminders.BatchLimit != 25 {
		t.Errorf("expected batch limit 25 from env, got %d", cfg.Reminders.BatchLimit)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing token", "database:\n  driver: sqlite\n  path: x.db\n"},
		{"bad digest time", "database:\n  driver: sqlite\n  path: x.db\ntelegram:\n  token: t\nreminders:\n  default_digest_time: \"9am\"\n"},
		{"bad timezone", "database:\n  driver: sqlite\n  path: x.db\ntelegram:\n  token: t\nreminders:\n  timezone: Mars/Olympus\n"},
		{"postgres without host", "telegram:\n  token: t\n"},
		{"bad log format", "database:\n  driver: sqlite\n  path: x.db\ntelegram:\n  token: t\nlogging:\n  format: xml\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), "invalid config") {
				t.Fatalf("expected invalid config error, got %v", err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	original := AppConfig
	t.Cleanup(func() {
		AppConfig = original
	})

	if err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error when loading a missing config file")
	}
}
