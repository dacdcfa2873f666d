package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store          string        `yaml:"store"`
	StorePath      string        `yaml:"store_path"`
	DatabaseURL    string        `yaml:"database_url"`
	BindAddress    string        `yaml:"bind_address"`
	UnixSocketPath string        `yaml:"unix_socket"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	AssistantURL   string        `yaml:"assistant_url"`
	AssistantKey   string        `yaml:"assistant_key"`
	AssistantModel string        `yaml:"assistant_model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ReminderCron   string        `yaml:"reminder_cron"`
	ReminderLead   time.Duration `yaml:"reminder_lead"`
	WebhookURL     string        `yaml:"webhook_url"`
	EnableReminder bool          `yaml:"enable_reminder"`
	LogLevel       string        `yaml:"log_level"`
}

func defaults() Config {
	return Config{
		Store:          "memory",
		BindAddress:    "127.0.0.1:8600",
		SessionTTL:     24 * time.Hour,
		AssistantURL:   "https://api.openai.com/v1",
		AssistantModel: "gpt-4",
		RequestTimeout: 30 * time.Second,
		ReminderCron:   "@every 1m",
		ReminderLead:   15 * time.Minute,
		EnableReminder: true,
		LogLevel:       "info",
	}
}

// Load builds the configuration in three layers: built-in defaults, then an
// optional YAML file named by MJ_CONFIG, then MJ_* environment variables on
// top.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("MJ_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Store = getenvDefault("MJ_STORE", cfg.Store)
	cfg.StorePath = getenvDefault("MJ_STORE_PATH", cfg.StorePath)
	cfg.DatabaseURL = getenvDefault("MJ_DATABASE_URL", cfg.DatabaseURL)
	cfg.BindAddress = getenvDefault("MJ_BIND_ADDRESS", cfg.BindAddress)
	cfg.UnixSocketPath = getenvDefault("MJ_UNIX_SOCKET", cfg.UnixSocketPath)
	cfg.SessionTTL = getenvDuration("MJ_SESSION_TTL", cfg.SessionTTL)
	cfg.AssistantURL = getenvDefault("MJ_ASSISTANT_URL", cfg.AssistantURL)
	cfg.AssistantKey = getenvDefault("MJ_ASSISTANT_KEY", cfg.AssistantKey)
	cfg.AssistantModel = getenvDefault("MJ_ASSISTANT_MODEL", cfg.AssistantModel)
	cfg.RequestTimeout = getenvDuration("MJ_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ReminderCron = getenvDefault("MJ_REMINDER_CRON", cfg.ReminderCron)
	cfg.ReminderLead = getenvDuration("MJ_REMINDER_LEAD", cfg.ReminderLead)
	cfg.WebhookURL = getenvDefault("MJ_WEBHOOK_URL", cfg.WebhookURL)
	cfg.EnableReminder = getenvBool("MJ_ENABLE_REMINDER", cfg.EnableReminder)
	cfg.LogLevel = getenvDefault("MJ_LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Store {
	case "memory":
	case "file":
		if c.StorePath == "" {
			return errors.New("MJ_STORE_PATH is required when store=file")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("MJ_DATABASE_URL is required when store=postgres")
		}
	default:
		return fmt.Errorf("invalid store: %s", c.Store)
	}
	if c.BindAddress == "" && c.UnixSocketPath == "" {
		return errors.New("either bind address or unix socket path must be configured")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be > 0")
	}
	if c.EnableReminder && c.ReminderCron == "" {
		return errors.New("reminder cron must be set when the reminder is enabled")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// AssistantEnabled reports whether the chat proxy has credentials to run.
func (c Config) AssistantEnabled() bool {
	return c.AssistantKey != ""
}

func getenvDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
