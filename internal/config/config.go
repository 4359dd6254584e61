package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	appName       = "newsingestor"
	configPathEnv = "NEWSINGESTOR_CONFIG"
	envFileEnv    = "ENV_PATH"
	defaultEnv    = ".env"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Queue         QueueConfig        `yaml:"queue"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Ingest        IngestConfig       `yaml:"ingest"`
	HTTP          HTTPConfig         `yaml:"http"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Seed          SeedConfig         `yaml:"seed"`
}

// DatabaseConfig selects the store backend: "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN    string `yaml:"dsn" env:"DATABASE_DSN"`
}

// RedisConfig enables the shared cache. An empty URL falls back to an in-process cache.
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

// SchedulerConfig defines how often ingestion is enqueued.
type SchedulerConfig struct {
	Interval   time.Duration `yaml:"interval" env:"SCHEDULER_INTERVAL"`
	RunOnStart bool          `yaml:"runOnStart" env:"SCHEDULER_RUN_ON_START"`
}

// QueueConfig tunes workers and retry policy.
type QueueConfig struct {
	Workers        int           `yaml:"workers" env:"QUEUE_WORKERS"`
	MaxAttempts    int           `yaml:"maxAttempts" env:"QUEUE_MAX_ATTEMPTS"`
	Lease          time.Duration `yaml:"lease"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	MaxBackoff     time.Duration `yaml:"maxBackoff"`
}

// FetchConfig bounds outbound HTTP.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"userAgent"`
	MaxInFlight int64         `yaml:"maxInFlight" env:"FETCH_MAX_IN_FLIGHT"`
}

// IngestConfig shapes a single processor run.
type IngestConfig struct {
	SourceConcurrency int  `yaml:"sourceConcurrency" env:"INGEST_SOURCE_CONCURRENCY"`
	AutoPublish       bool `yaml:"autoPublish" env:"INGEST_AUTO_PUBLISH"`
}

// HTTPConfig configures the admin server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `yaml:"chatId" env:"TELEGRAM_CHAT_ID"`
}

// LoggingConfig picks level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// SeedConfig is loaded into the store by the seed command.
type SeedConfig struct {
	Categories []CategorySeed `yaml:"categories"`
	Sources    []SourceSeed   `yaml:"sources"`
}

// CategorySeed describes one category.
type CategorySeed struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
	Icon  string `yaml:"icon"`
	Color string `yaml:"color"`
	Order int    `yaml:"order"`
}

// SourceSeed describes one source; Categories holds category keys.
type SourceSeed struct {
	Name       string   `yaml:"name"`
	URL        string   `yaml:"url"`
	FeedURLs   []string `yaml:"feedUrls"`
	Lang       string   `yaml:"lang"`
	Categories []string `yaml:"categories"`
	Strategy   string   `yaml:"strategy"`
	Active     *bool    `yaml:"active"`
}

// IsActive defaults to true when unset.
func (s SourceSeed) IsActive() bool {
	return s.Active == nil || *s.Active
}

// Load applies, in order: defaults, the .env file, the YAML file named by NEWSINGESTOR_CONFIG,
// and environment overrides.
func Load() (Config, error) {
	cfg := defaultConfig()

	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	if path := os.Getenv(configPathEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(envFileEnv)
	if path == "" {
		path = defaultEnv
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && os.Getenv(envFileEnv) == "" {
		slog.Debug("no .env file, skipping", "path", path)
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// mergeFile decodes YAML over the current values, so keys absent from the file keep their defaults.
func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the runtime cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be positive"))
	}
	if c.Queue.Workers < 1 {
		errs = append(errs, errors.New("queue.workers must be at least 1"))
	}
	if c.Queue.MaxAttempts < 1 {
		errs = append(errs, errors.New("queue.maxAttempts must be at least 1"))
	}
	if c.Queue.Lease <= 0 {
		errs = append(errs, errors.New("queue.lease must be positive"))
	}
	if c.Ingest.SourceConcurrency < 1 {
		errs = append(errs, errors.New("ingest.sourceConcurrency must be at least 1"))
	}
	for i, src := range c.Seed.Sources {
		if src.Name == "" {
			errs = append(errs, fmt.Errorf("seed.sources[%d]: name is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DefaultDatabasePath is the sqlite file used when no DSN is configured.
func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, appName, appName+".db")
}

func defaultConfig() Config {
	return Config{
		Database:  DatabaseConfig{Driver: "sqlite", DSN: DefaultDatabasePath()},
		Scheduler: SchedulerConfig{Interval: 15 * time.Minute},
		Queue: QueueConfig{
			Workers:        1,
			MaxAttempts:    3,
			Lease:          10 * time.Minute,
			PollInterval:   2 * time.Second,
			InitialBackoff: 30 * time.Second,
			MaxBackoff:     10 * time.Minute,
		},
		Fetch:   FetchConfig{Timeout: 10 * time.Second, MaxInFlight: 8},
		Ingest:  IngestConfig{SourceConcurrency: 1},
		HTTP:    HTTPConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Seed:    defaultSeed(),
	}
}

func defaultSeed() SeedConfig {
	return SeedConfig{
		Categories: []CategorySeed{
			{Key: "politics", Label: "Politics", Icon: "landmark", Color: "#dc2626", Order: 1},
			{Key: "world", Label: "World", Icon: "globe", Color: "#2563eb", Order: 2},
			{Key: "sports", Label: "Sports", Icon: "trophy", Color: "#16a34a", Order: 3},
			{Key: "tech", Label: "Technology", Icon: "cpu", Color: "#7c3aed", Order: 4},
			{Key: "health", Label: "Health", Icon: "heart", Color: "#dc2626", Order: 5},
			{Key: "business", Label: "Business", Icon: "briefcase", Color: "#0891b2", Order: 6},
			{Key: "entertainment", Label: "Entertainment", Icon: "film", Color: "#ea580c", Order: 7},
			{Key: "science", Label: "Science", Icon: "flask", Color: "#8b5cf6", Order: 8},
			{Key: "general", Label: "General", Icon: "newspaper", Color: "#64748b", Order: 9},
		},
		Sources: []SourceSeed{
			{
				Name:       "Tech News Daily",
				URL:        "https://technewsdaily.com",
				FeedURLs:   []string{"https://technewsdaily.com/feed"},
				Lang:       "en",
				Categories: []string{"tech"},
			},
			{
				Name:       "World News Network",
				URL:        "https://worldnews.network",
				FeedURLs:   []string{"https://worldnews.network/feed"},
				Lang:       "en",
				Categories: []string{"world"},
			},
			{
				Name:       "Sports Central",
				URL:        "https://sportscentral.com",
				FeedURLs:   []string{"https://sportscentral.com/feed"},
				Lang:       "en",
				Categories: []string{"sports"},
			},
		},
	}
}
