package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/propai/propai/internal/scheduler"
	"github.com/propai/propai/internal/tools"
)

// Config holds all server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	DBPath     string `json:"db_path"`
	LogLevel   string `json:"log_level"`

	Webhooks  WebhookConfig   `json:"webhooks"`
	Tools     tools.Policy    `json:"tools"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

// WebhookConfig tunes the delivery retry loop.
type WebhookConfig struct {
	MaxAttempts   int `json:"max_attempts"`
	BaseDelayMs   int `json:"base_delay_ms"`
	QueueCapacity int `json:"queue_capacity"`
}

// SchedulerConfig declares the cron-triggered workflow jobs.
type SchedulerConfig struct {
	Enabled bool            `json:"enabled"`
	Jobs    []scheduler.Job `json:"jobs"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: ":4200",
		DBPath:     filepath.Join(propaiDir(), "propai.db"),
		LogLevel:   "info",
		Webhooks: WebhookConfig{
			MaxAttempts:   3,
			BaseDelayMs:   500,
			QueueCapacity: 64,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Jobs: []scheduler.Job{
				{
					Name:          "followup-scan",
					Cron:          "0 9 * * *",
					Workflow:      "lead_followup_scan",
					Enabled:       true,
					FollowupHours: 48,
				},
			},
		},
	}
}

func propaiDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".propai"
	}
	return filepath.Join(home, ".propai")
}

func settingsPath() string {
	return filepath.Join(propaiDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("PROPAI_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PROPAI_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PROPAI_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PROPAI_WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Webhooks.MaxAttempts = n
		}
	}
	if v := os.Getenv("PROPAI_WEBHOOK_BASE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Webhooks.BaseDelayMs = n
		}
	}
	if v := os.Getenv("PROPAI_SCHEDULER"); v != "" {
		cfg.Scheduler.Enabled = v == "true" || v == "1"
	}

	return cfg
}

// BaseDelay converts the configured delay into a duration.
func (w WebhookConfig) BaseDelay() time.Duration {
	return time.Duration(w.BaseDelayMs) * time.Millisecond
}
