package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string           `yaml:"discord_token"`
	DatabaseURL   string           `yaml:"database_url"`
	LogLevel      string           `yaml:"log_level"`
	Debug         bool             `yaml:"debug"`
	TestingGuilds []string         `yaml:"testing_guilds"`
	Locale        LocaleConfig     `yaml:"locale"`
	Status        StatusConfig     `yaml:"status"`
	SpamFilter    SpamFilterConfig `yaml:"spam_filter"`
	Tasks         TasksConfig      `yaml:"tasks"`
	Extensions    ExtensionsConfig `yaml:"extensions"`
	Reconcile     ReconcileConfig  `yaml:"reconcile"`
	Health        HealthConfig     `yaml:"health"`
	Logs          LogsConfig       `yaml:"logs"`
}

type LocaleConfig struct {
	// Dir overrides the embedded tables when set.
	Dir string `yaml:"dir"`
	// Status is the locale used for presence strings and scheduled DMs without a stored locale.
	Status string `yaml:"status"`
}

type StatusConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
	Log             bool `yaml:"log"`
}

type SpamFilterConfig struct {
	Enabled           bool `yaml:"enabled"`
	TimeWindowSeconds int  `yaml:"time_window"`
	MaxPerWindow      int  `yaml:"max_per_window"`
}

type TasksConfig struct {
	Enabled []string `yaml:"enabled"`
}

type ExtensionsConfig struct {
	Internal []string `yaml:"internal"`
	Disabled []string `yaml:"disabled"`
}

type ReconcileConfig struct {
	StartupWaitSeconds int `yaml:"startup_wait_seconds"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LogsConfig struct {
	TracebackDir string `yaml:"traceback_dir"`
}

func DefaultConfig() Config {
	return Config{
		DatabaseURL: "sqlite://rinbot.db",
		LogLevel:    "info",
		Locale:      LocaleConfig{Status: "en-GB"},
		Status:      StatusConfig{Enabled: true, IntervalMinutes: 5, Log: false},
		SpamFilter:  SpamFilterConfig{Enabled: true, TimeWindowSeconds: 10, MaxPerWindow: 5},
		Tasks:       TasksConfig{Enabled: []string{"status_loop", "birthday_check"}},
		Extensions:  ExtensionsConfig{Internal: []string{"core"}},
		Reconcile:   ReconcileConfig{StartupWaitSeconds: 30},
		Health:      HealthConfig{Enabled: false, Addr: ":8080"},
		Logs:        LogsConfig{TracebackDir: "logs/tracebacks"},
	}
}

// Load reads .env, then CONFIG_PATH (default config.yaml) over the defaults,
// then environment overrides.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.SpamFilter.Enabled {
		if c.SpamFilter.TimeWindowSeconds <= 0 {
			return fmt.Errorf("spam_filter.time_window must be positive, got %d", c.SpamFilter.TimeWindowSeconds)
		}
		if c.SpamFilter.MaxPerWindow <= 0 {
			return fmt.Errorf("spam_filter.max_per_window must be positive, got %d", c.SpamFilter.MaxPerWindow)
		}
	}
	if c.Status.Enabled && c.Status.IntervalMinutes <= 0 {
		return fmt.Errorf("status.interval_minutes must be positive, got %d", c.Status.IntervalMinutes)
	}
	return nil
}

// TaskEnabled reports whether the named scheduled task is switched on.
func (c Config) TaskEnabled(name string) bool {
	for _, task := range c.Tasks.Enabled {
		if task == name {
			return true
		}
	}
	return false
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Debug = envBool("DEBUG", cfg.Debug)
	cfg.TestingGuilds = envList("TESTING_GUILDS", cfg.TestingGuilds)
	cfg.Locale.Dir = envString("LOCALE_DIR", cfg.Locale.Dir)
	cfg.Locale.Status = envString("STATUS_LANGUAGE", cfg.Locale.Status)
	cfg.Status.Enabled = envBool("STATUS_ENABLED", cfg.Status.Enabled)
	cfg.Status.IntervalMinutes = envInt("STATUS_INTERVAL_MINUTES", cfg.Status.IntervalMinutes)
	cfg.Status.Log = envBool("STATUS_LOG", cfg.Status.Log)
	cfg.SpamFilter.Enabled = envBool("SPAM_FILTER_ENABLED", cfg.SpamFilter.Enabled)
	cfg.SpamFilter.TimeWindowSeconds = envInt("SPAM_FILTER_TIME_WINDOW", cfg.SpamFilter.TimeWindowSeconds)
	cfg.SpamFilter.MaxPerWindow = envInt("SPAM_FILTER_MAX_PER_WINDOW", cfg.SpamFilter.MaxPerWindow)
	cfg.Tasks.Enabled = envList("TASKS", cfg.Tasks.Enabled)
	cfg.Extensions.Disabled = envList("DISABLED_EXTENSIONS", cfg.Extensions.Disabled)
	cfg.Reconcile.StartupWaitSeconds = envInt("RECONCILE_STARTUP_WAIT_SECONDS", cfg.Reconcile.StartupWaitSeconds)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Logs.TracebackDir = envString("TRACEBACK_DIR", cfg.Logs.TracebackDir)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "component"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

// envList splits a comma separated variable, dropping blanks.
func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
