package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"PORT" envDefault:"8002"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	MetricsPort   int    `env:"METRICS_PORT" envDefault:"0"`
	Environment   string `env:"GO_ENV" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings
	Database DatabaseConfig

	// Redis cache settings
	Redis RedisConfig

	// Embedding encoder settings
	Encoder EncoderConfig

	// Embedding worker settings
	Worker WorkerConfig

	// Scheduler settings
	Scheduler SchedulerConfig

	// OpenTelemetry settings
	Otel OtelConfig

	// TuningFile is an optional YAML file overriding decay and
	// consolidation parameters
	TuningFile string `env:"MEMORY_TUNING_FILE" envDefault:""`

	// Tuning holds the resolved tuning parameters (defaults merged
	// with the tuning file, when one is configured)
	Tuning *Tuning `env:"-"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"nexus"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	PasswordFile string        `env:"POSTGRES_PASSWORD_FILE" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"nexus_memory"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
	AutoMigrate  bool          `env:"AUTO_MIGRATE" envDefault:"true"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// resolvePassword reads the password from PasswordFile when set.
// Docker secrets mount credentials as files rather than env vars.
func (d *DatabaseConfig) resolvePassword() error {
	if d.PasswordFile == "" {
		return nil
	}
	data, err := os.ReadFile(d.PasswordFile)
	if err != nil {
		return fmt.Errorf("failed to read password file %s: %w", d.PasswordFile, err)
	}
	d.Password = strings.TrimSpace(string(data))
	return nil
}

// RedisConfig holds Redis cache settings. The cache is optional:
// an empty host disables it entirely.
type RedisConfig struct {
	Host            string `env:"REDIS_HOST" envDefault:""`
	Port            int    `env:"REDIS_PORT" envDefault:"6379"`
	Password        string `env:"REDIS_PASSWORD" envDefault:""`
	DB              int    `env:"REDIS_DB" envDefault:"0"`
	CacheTTLSeconds int    `env:"CACHE_TTL_SECONDS" envDefault:"60"`
}

// Enabled returns true if a Redis host is configured
func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Addr returns the host:port address for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// TTL returns the cache TTL as a Duration
func (r *RedisConfig) TTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// EncoderConfig holds embedding encoder settings
type EncoderConfig struct {
	// URL is the remote encoder endpoint. Empty selects the
	// built-in deterministic encoder.
	URL string `env:"ENCODER_URL" envDefault:""`

	// Version tags every embedding written to storage
	Version string `env:"ENCODER_VERSION" envDefault:"miniLM-384-chunked@v2"`

	// Dimension of produced vectors
	Dimension int `env:"ENCODER_DIMENSION" envDefault:"384"`

	// Timeout for a single encode request
	Timeout time.Duration `env:"ENCODER_TIMEOUT" envDefault:"30s"`

	// MaxRetries per encode call against the remote encoder
	MaxRetries int `env:"ENCODER_MAX_RETRIES" envDefault:"3"`

	// RPM rate-limits remote encode calls (0 disables the limiter)
	RPM int `env:"ENCODER_RPM" envDefault:"0"`

	// MaxConcurrent caps in-flight remote encode calls
	MaxConcurrent int `env:"ENCODER_MAX_CONCURRENT" envDefault:"4"`
}

// UseRemote returns true if a remote encoder endpoint is configured
func (e *EncoderConfig) UseRemote() bool {
	return e.URL != ""
}

// WorkerConfig holds embedding worker settings
type WorkerConfig struct {
	Enabled             bool `env:"WORKER_ENABLED" envDefault:"true"`
	BatchSize           int  `env:"WORKER_BATCH_SIZE" envDefault:"10"`
	PollIntervalSeconds int  `env:"WORKER_POLL_INTERVAL_SECONDS" envDefault:"5"`
	MaxRetries          int  `env:"WORKER_MAX_RETRIES" envDefault:"5"`
	Concurrency         int  `env:"WORKER_CONCURRENCY" envDefault:"4"`
	Adaptive            bool `env:"WORKER_ADAPTIVE" envDefault:"true"`
	StaleThresholdMin   int  `env:"WORKER_STALE_THRESHOLD_MINUTES" envDefault:"10"`
}

// PollInterval returns the polling interval as a Duration
func (w *WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// StaleThreshold returns the stale-job recovery threshold as a Duration
func (w *WorkerConfig) StaleThreshold() time.Duration {
	return time.Duration(w.StaleThresholdMin) * time.Minute
}

// SchedulerConfig holds cron scheduler settings. Cron expressions use
// six fields (with seconds): "second minute hour day-of-month month
// day-of-week", or the @every directive.
type SchedulerConfig struct {
	Enabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`

	// ConsolidationSchedule runs nightly consolidation for the
	// previous day
	ConsolidationSchedule string `env:"CONSOLIDATION_SCHEDULE" envDefault:"0 0 3 * * *"`

	// StaleRecoverySchedule re-queues embedding jobs stuck in processing
	StaleRecoverySchedule string `env:"STALE_RECOVERY_SCHEDULE" envDefault:"@every 10m"`

	// SnapshotSchedule exports a weekly memory snapshot when storage
	// is configured
	SnapshotSchedule string `env:"SNAPSHOT_SCHEDULE" envDefault:"0 0 4 * * 0"`
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Database.resolvePassword(); err != nil {
		return nil, err
	}

	tuning, err := LoadTuning(cfg.TuningFile)
	if err != nil {
		return nil, err
	}
	cfg.Tuning = tuning

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.Bool("cache_enabled", cfg.Redis.Enabled()),
		slog.Bool("remote_encoder", cfg.Encoder.UseRemote()),
	)

	return cfg, nil
}
