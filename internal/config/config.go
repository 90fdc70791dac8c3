// Package config reads the monitor settings from the environment, optionally seeded by a
// .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN    string
	PollInterval   time.Duration
	QueryTimeout   time.Duration
	StuckThreshold time.Duration
	LogWindow      time.Duration
	ProjectName    string

	ReportsDir  string
	GuidanceDir string
	StatusFile  string

	HTTPAddr  string
	RedisAddr string

	SendGridAPIKey string
	AlertEmailTo   string
	FromName       string
	FromAddress    string

	ClearScreen bool
}

// Load reads .env (when present) and then the environment. Variables already set in the
// environment win over .env.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		ProjectName:    os.Getenv("PROJECT_NAME"),
		ReportsDir:     getenv("REPORTS_DIR", "./agent_reports"),
		GuidanceDir:    getenv("GUIDANCE_DIR", "./agent_guidance"),
		StatusFile:     getenv("STATUS_FILE", "./agent_status.json"),
		HTTPAddr:       ":8080",
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		AlertEmailTo:   os.Getenv("ALERT_EMAIL_TO"),
		FromName:       getenv("FROM_NAME", "nexwatch"),
		FromAddress:    os.Getenv("FROM_ADDRESS"),
		ClearScreen:    true,
	}

	// An explicitly empty HTTP_ADDR disables the API.
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(v)
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"POLL_INTERVAL", 30 * time.Second, &cfg.PollInterval},
		{"QUERY_TIMEOUT", 10 * time.Second, &cfg.QueryTimeout},
		{"STUCK_THRESHOLD", 10 * time.Minute, &cfg.StuckThreshold},
		{"LOG_WINDOW", 5 * time.Minute, &cfg.LogWindow},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if v := os.Getenv("CLEAR_SCREEN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CLEAR_SCREEN %q: %w", v, err)
		}
		cfg.ClearScreen = b
	}

	return cfg, nil
}

// EmailEnabled reports whether every setting needed for email alerts is present.
func (c *Config) EmailEnabled() bool {
	return c.SendGridAPIKey != "" && c.AlertEmailTo != "" && c.FromAddress != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}

	return d, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err == nil {
		return godotenv.Load(path)
	}
	return nil
}
