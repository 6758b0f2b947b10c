package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. Values are resolved in
// three layers: built-in defaults, an optional YAML file, and finally
// environment variables, which always win.
type Config struct {
	// --- Server & Paths ---
	ServerAddr  string `yaml:"server_addr"`
	DataPath    string `yaml:"data_path"`
	FrontendURL string `yaml:"frontend_url"`

	// --- Security ---
	JwtSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	ReminderSecret string        `yaml:"reminder_secret"`

	// BootstrapAdminEmail may register without an invite and is granted the
	// admin role on signup. It exists so a fresh deployment has an admin.
	BootstrapAdminEmail string `yaml:"bootstrap_admin_email"`

	// --- Scheduling ---
	Timezone         string        `yaml:"timezone"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`

	// --- Email (SMTP) ---
	SmtpHost   string `yaml:"smtp_host"`
	SmtpPort   int    `yaml:"smtp_port"`
	SmtpUser   string `yaml:"smtp_user"`
	SmtpPass   string `yaml:"smtp_pass"`
	SmtpSender string `yaml:"smtp_sender"`

	// --- Google OAuth 2.0 ---
	GoogleOauthClientID     string `yaml:"google_oauth_client_id"`
	GoogleOauthClientSecret string `yaml:"google_oauth_client_secret"`
	GoogleOauthRedirectURL  string `yaml:"google_oauth_redirect_url"`

	// --- Logging ---
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// --- Parsed & Derived Fields ---
	DbPath            string         `yaml:"-"`
	Location          *time.Location `yaml:"-"`
	ParsedFrontendURL *url.URL       `yaml:"-"`
}

// GoogleLoginEnabled reports whether all three OAuth settings are present.
func (c *Config) GoogleLoginEnabled() bool {
	return c.GoogleOauthClientID != "" && c.GoogleOauthClientSecret != "" && c.GoogleOauthRedirectURL != ""
}

func defaults() *Config {
	return &Config{
		ServerAddr:       ":8080",
		DataPath:         "./data",
		TokenTTL:         24 * time.Hour,
		Timezone:         "UTC",
		ReminderInterval: 5 * time.Minute,
		SmtpPort:         587,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load builds the configuration. path points to an optional YAML file; a
// missing file is not an error, a malformed one is.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"SERVER_ADDR":                &cfg.ServerAddr,
		"DATA_PATH":                  &cfg.DataPath,
		"FRONTEND_URL":               &cfg.FrontendURL,
		"JWT_SECRET":                 &cfg.JwtSecret,
		"REMINDER_SECRET":            &cfg.ReminderSecret,
		"BOOTSTRAP_ADMIN_EMAIL":      &cfg.BootstrapAdminEmail,
		"TIMEZONE":                   &cfg.Timezone,
		"SMTP_HOST":                  &cfg.SmtpHost,
		"SMTP_USER":                  &cfg.SmtpUser,
		"SMTP_PASS":                  &cfg.SmtpPass,
		"SMTP_SENDER":                &cfg.SmtpSender,
		"GOOGLE_OAUTH_CLIENT_ID":     &cfg.GoogleOauthClientID,
		"GOOGLE_OAUTH_CLIENT_SECRET": &cfg.GoogleOauthClientSecret,
		"GOOGLE_OAUTH_REDIRECT_URL":  &cfg.GoogleOauthRedirectURL,
		"LOG_LEVEL":                  &cfg.LogLevel,
		"LOG_FORMAT":                 &cfg.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":         &cfg.TokenTTL,
		"REMINDER_INTERVAL": &cfg.ReminderInterval,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		// A bare "0" is accepted so the reminder loop can be switched off.
		if v == "0" {
			*dst = 0
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := os.LookupEnv("SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
		cfg.SmtpPort = port
	}
	return nil
}

// finalize validates required values and fills in the derived fields.
func (c *Config) finalize() error {
	if c.JwtSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.FrontendURL == "" {
		return errors.New("FRONTEND_URL is not set")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.ReminderInterval < 0 {
		return errors.New("REMINDER_INTERVAL must not be negative")
	}

	parsedURL, err := url.Parse(c.FrontendURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid FRONTEND_URL %q", c.FrontendURL)
	}
	c.ParsedFrontendURL = parsedURL
	c.FrontendURL = strings.TrimRight(c.FrontendURL, "/")

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc

	c.BootstrapAdminEmail = strings.ToLower(strings.TrimSpace(c.BootstrapAdminEmail))
	c.DbPath = filepath.Join(c.DataPath, "sportpal.db")
	return nil
}
