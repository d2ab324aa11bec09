package config

import (
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
	Beehiiv  Beehiiv  `yaml:"beehiiv"`
	Sync     Sync     `yaml:"sync"`
	Storage  Storage  `yaml:"storage"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	S3       S3       `yaml:"s3"`
}

// Server holds HTTP server configuration
type Server struct {
	Host           string        `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port           string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"120s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" env-default:"110s"`
}

// Address returns the full server address
func (s Server) Address() string {
	return s.Host + ":" + s.Port
}

// Log holds logging configuration
type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"` // json or text
}

// SlogLevel maps the configured level name to a slog level
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Beehiiv holds email platform API configuration
type Beehiiv struct {
	BaseURL   string        `yaml:"base_url" env:"BEEHIIV_BASE_URL" env-default:"https://api.beehiiv.com/v2"`
	APIKey    string        `yaml:"api_key" env:"BEEHIIV_API_KEY"`
	Timeout   time.Duration `yaml:"timeout" env:"BEEHIIV_TIMEOUT" env-default:"30s"`
	RateLimit float64       `yaml:"rate_limit" env:"BEEHIIV_RATE_LIMIT" env-default:"2"` // Requests per second, 0 disables
	RateBurst int           `yaml:"rate_burst" env:"BEEHIIV_RATE_BURST" env-default:"5"`
	PageSize  int           `yaml:"page_size" env:"BEEHIIV_PAGE_SIZE" env-default:"100"`
}

// Sync holds API sync and scheduler configuration
type Sync struct {
	Enabled     bool          `yaml:"enabled" env:"SYNC_ENABLED" env-default:"false"`
	Interval    time.Duration `yaml:"interval" env:"SYNC_INTERVAL" env-default:"1h"`
	RunTimeout  time.Duration `yaml:"run_timeout" env:"SYNC_RUN_TIMEOUT" env-default:"10m"`
	RecentStats int           `yaml:"recent_stats" env:"SYNC_RECENT_STATS" env-default:"10"`
	BatchSize   int           `yaml:"batch_size" env:"SYNC_BATCH_SIZE" env-default:"5"`

	// Newsletters lists tracked newsletters as newsletter_id=publication_id pairs
	Newsletters []string `yaml:"newsletters" env:"SYNC_NEWSLETTERS" env-separator:","`
}

// SyncTarget is one parsed newsletter_id=publication_id pair
type SyncTarget struct {
	NewsletterID  string
	PublicationID string
}

// Targets parses the tracked newsletter list
func (s Sync) Targets() ([]SyncTarget, error) {
	var out []SyncTarget
	seen := make(map[string]bool)
	for _, raw := range s.Newsletters {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, pub, ok := strings.Cut(raw, "=")
		id, pub = strings.TrimSpace(id), strings.TrimSpace(pub)
		if !ok || id == "" || pub == "" {
			return nil, fmt.Errorf("invalid sync newsletter %q: want newsletter_id=publication_id", raw)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate sync newsletter %q", id)
		}
		seen[id] = true
		out = append(out, SyncTarget{NewsletterID: id, PublicationID: pub})
	}
	return out, nil
}

// Storage backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Storage selects where datasets are persisted
type Storage struct {
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"`
}

// Database holds database configuration
type Database struct {
	PostgresDSN string `yaml:"postgres_dsn" env:"DATABASE_URL"`
}

// Redis holds Redis configuration
type Redis struct {
	URL       string        `yaml:"url" env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
	KeyPrefix string        `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"pulse:"`
	TTL       time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"0s"`
}

// S3 holds S3/MinIO configuration for archiving raw imports
type S3 struct {
	Enabled         bool   `yaml:"enabled" env:"S3_ENABLED" env-default:"false"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:"http://localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID" env-default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY" env-default:"minioadmin"`
	Bucket          string `yaml:"bucket" env:"S3_BUCKET" env-default:"imports"`
	Region          string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
}

// Validate checks settings that cleanenv cannot express
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync batch size must be positive")
	}
	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}
	if _, err := c.Sync.Targets(); err != nil {
		return err
	}
	return nil
}

// MustLoad loads configuration from environment and exits on error
func MustLoad() Config {
	// Load .env file if exists (for development)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	return cfg
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
