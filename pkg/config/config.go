package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/smith3v/taskmood-bot/pkg/logger"
)

const envPrefix = "TASKBOT_"

type Config struct {
	Database    DatabaseConfig    `koanf:"database"`
	Telegram    TelegramConfig    `koanf:"telegram"`
	Logging     LoggingConfig     `koanf:"logging"`
	Reminders   RemindersConfig   `koanf:"reminders"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
}

type DatabaseConfig struct {
	Driver   string `koanf:"driver" validate:"oneof=postgres sqlite"`
	Host     string `koanf:"host" validate:"required_if=Driver postgres"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname" validate:"required_if=Driver postgres"`
	Port     int    `koanf:"port" validate:"gte=0,lte=65535"`
	SSLMode  string `koanf:"sslmode"`
	Path     string `koanf:"path" validate:"required_if=Driver sqlite"`
}

type TelegramConfig struct {
	Token string `koanf:"token" validate:"required"`
}

type LoggingConfig struct {
	Level     string `koanf:"level"`
	File      string `koanf:"file"`
	GormLevel string `koanf:"gorm_level"`
	Format    string `koanf:"format" validate:"oneof=text json"`
}

type RemindersConfig struct {
	TickInterval       time.Duration `koanf:"tick_interval" validate:"gt=0"`
	BatchLimit         int           `koanf:"batch_limit" validate:"gt=0"`
	PacingDelay        time.Duration `koanf:"pacing_delay" validate:"gte=0"`
	SendTimeout        time.Duration `koanf:"send_timeout" validate:"gt=0"`
	RetentionWindow    time.Duration `koanf:"retention_window" validate:"gt=0"`
	MaxAttempts        int           `koanf:"max_attempts" validate:"gt=0"`
	RetryBaseDelay     time.Duration `koanf:"retry_base_delay" validate:"gt=0"`
	RetryMaxDelay      time.Duration `koanf:"retry_max_delay" validate:"gtefield=RetryBaseDelay"`
	Timezone           string        `koanf:"timezone" validate:"required"`
	DefaultLeadHours   int           `koanf:"default_lead_hours" validate:"gte=1,lte=24"`
	DefaultDigestTime  string        `koanf:"default_digest_time" validate:"datetime=15:04"`
	BreakerMaxFailures int           `koanf:"breaker_max_failures" validate:"gt=0"`
	BreakerCooldown    time.Duration `koanf:"breaker_cooldown" validate:"gt=0"`
}

type MaintenanceConfig struct {
	Enabled              bool   `koanf:"enabled"`
	Cron                 string `koanf:"cron" validate:"required_if=Enabled true"`
	CompletedTaskMaxDays int    `koanf:"completed_task_max_days" validate:"gt=0"`
	DeletedTaskMaxDays   int    `koanf:"deleted_task_max_days" validate:"gt=0"`
	MoodMaxDays          int    `koanf:"mood_max_days" validate:"gt=0"`
}

var AppConfig Config

var defaults = map[string]interface{}{
	"database.driver":                     "postgres",
	"database.port":                       5432,
	"database.sslmode":                    "disable",
	"logging.level":                       "info",
	"logging.gorm_level":                  "warn",
	"logging.format":                      "text",
	"reminders.tick_interval":             "60s",
	"reminders.batch_limit":               100,
	"reminders.pacing_delay":              "300ms",
	"reminders.send_timeout":              "10s",
	"reminders.retention_window":          "168h",
	"reminders.max_attempts":              10,
	"reminders.retry_base_delay":          "1m",
	"reminders.retry_max_delay":           "1h",
	"reminders.timezone":                  "UTC",
	"reminders.default_lead_hours":        1,
	"reminders.default_digest_time":       "09:00",
	"reminders.breaker_max_failures":      5,
	"reminders.breaker_cooldown":          "1m",
	"maintenance.enabled":                 true,
	"maintenance.cron":                    "0 3 * * *",
	"maintenance.completed_task_max_days": 30,
	"maintenance.deleted_task_max_days":   30,
	"maintenance.mood_max_days":           90,
}

// Load layers built-in defaults, the optional YAML file at path and
// TASKBOT_* environment variables, then validates the result. Nested keys
// are addressed in the environment with a double underscore, e.g.
// TASKBOT_TELEGRAM__TOKEN.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig(filename string) error {
	cfg, err := Load(filename)
	if err != nil {
		logger.Error("failed to load config", "file", filename, "error", err)
		return err
	}
	AppConfig = *cfg
	return nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
		return fmt.Errorf("invalid config: reminders.timezone: %w", err)
	}
	return nil
}

// Location returns the zone used for digest times and the maintenance
// schedule. Validate has already checked the name, so UTC is only a
// fallback for hand-built configs.
func (c RemindersConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		logger.Error("failed to load reminders timezone, falling back to UTC", "timezone", c.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
