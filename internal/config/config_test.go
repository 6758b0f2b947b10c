package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("FRONTEND_URL", "http://localhost:5173/")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerAddr != ":8080" {
		t.Errorf("ServerAddr = %q, want :8080", cfg.ServerAddr)
	}
	if cfg.ReminderInterval != 5*time.Minute {
		t.Errorf("ReminderInterval = %v, want 5m", cfg.ReminderInterval)
	}
	if cfg.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location)
	}
	if cfg.FrontendURL != "http://localhost:5173" {
		t.Errorf("FrontendURL = %q, want trailing slash trimmed", cfg.FrontendURL)
	}
	if want := filepath.Join("./data", "sportpal.db"); cfg.DbPath != want {
		t.Errorf("DbPath = %q, want %q", cfg.DbPath, want)
	}
	if cfg.GoogleLoginEnabled() {
		t.Error("GoogleLoginEnabled() = true with no OAuth settings")
	}
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("FRONTEND_URL", "http://localhost:5173")

	if _, err := Load(""); err == nil {
		t.Fatal("Load succeeded without JWT_SECRET")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server_addr: \":9090\"\ntimezone: Europe/Paris\nreminder_interval: 10m\nsmtp_port: 2525\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SMTP_PORT", "1025")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerAddr != ":9090" {
		t.Errorf("ServerAddr = %q, want value from file", cfg.ServerAddr)
	}
	if cfg.ReminderInterval != 10*time.Minute {
		t.Errorf("ReminderInterval = %v, want 10m", cfg.ReminderInterval)
	}
	if cfg.Location.String() != "Europe/Paris" {
		t.Errorf("Location = %v, want Europe/Paris", cfg.Location)
	}
	if cfg.SmtpPort != 1025 {
		t.Errorf("SmtpPort = %d, env must override file", cfg.SmtpPort)
	}
}

func TestReminderIntervalZeroDisables(t *testing.T) {
	setRequired(t)
	t.Setenv("REMINDER_INTERVAL", "0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReminderInterval != 0 {
		t.Errorf("ReminderInterval = %v, want 0", cfg.ReminderInterval)
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMEZONE", "Mars/Olympus")

	if _, err := Load(""); err == nil {
		t.Fatal("Load accepted an unknown time zone")
	}
}
