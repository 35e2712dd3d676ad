// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Auth        AuthConfig
	Sale        SaleConfig
	Delivery    DeliveryConfig
	Idempotency IdempotencyConfig
	Redis       RedisConfig
	Telemetry   TelemetryConfig
	Worker      WorkerConfig
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDB reads only the database section. Used by tools that do not serve
// requests, such as the migrator.
func LoadDB(envFiles ...string) (*DBConfig, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	var cfg DBConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DSN == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return &cfg, nil
}

func loadEnvFiles(envFiles []string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.DB.DSN == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Idempotency.Backend {
	case IdempotencyBackendPostgres:
	case IdempotencyBackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return errors.New("REDIS_URL or REDIS_ADDRESS is required for the redis idempotency backend")
		}
	default:
		return fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q", c.Idempotency.Backend)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.New("OTEL_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.Worker.BatchSize <= 0 {
		return errors.New("WORKER_BATCH_SIZE must be positive")
	}
	return nil
}

type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	Port     string `envconfig:"APP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// Debug exposes the cause of unexpected failures in API responses.
	Debug bool `envconfig:"APP_DEBUG" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN              string        `envconfig:"DATABASE_URL"`
	MaxConns         int32         `envconfig:"DB_MAX_CONNS" default:"20"`
	MinConns         int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime  time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime  time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
	StatementTimeout time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"30s"`
	LockTimeout      time.Duration `envconfig:"DB_LOCK_TIMEOUT" default:"5s"`
	TxMaxRetries     int           `envconfig:"DB_TX_MAX_RETRIES" default:"3"`
	AutoMigrate      bool          `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET"`
	JWTIssuer string        `envconfig:"JWT_ISSUER" default:"stockline"`
	AccessTTL time.Duration `envconfig:"JWT_ACCESS_TTL" default:"15m"`
}

type SaleConfig struct {
	// WeighableStep is the quantity increment accepted for weighable items.
	WeighableStep string `envconfig:"SALE_WEIGHABLE_STEP" default:"0.5"`
}

type DeliveryConfig struct {
	TiersJSON          string `envconfig:"DELIVERY_DISTANCE_TIERS_JSON" default:"[]"`
	BaseFee            string `envconfig:"DELIVERY_BASE_FEE" default:"0"`
	IncentiveThreshold string `envconfig:"DELIVERY_INCENTIVE_THRESHOLD" default:"150"`
	IncentiveBonus     string `envconfig:"DELIVERY_INCENTIVE_BONUS" default:"4"`
}

const (
	IdempotencyBackendPostgres = "postgres"
	IdempotencyBackendRedis    = "redis"
)

type IdempotencyConfig struct {
	Enabled bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"true"`
	Backend string        `envconfig:"IDEMPOTENCY_BACKEND" default:"postgres"`
	TTL     time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	Address      string        `envconfig:"REDIS_ADDRESS"`
	Password     string        `envconfig:"REDIS_PASSWORD"`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// TelemetryConfig controls trace export. Tracing is off when Endpoint is empty.
type TelemetryConfig struct {
	Endpoint    string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	ServiceName string  `envconfig:"OTEL_SERVICE_NAME" default:"stockline"`
	SampleRatio float64 `envconfig:"OTEL_SAMPLE_RATIO" default:"1"`
}

func (t TelemetryConfig) Enabled() bool {
	return t.Endpoint != ""
}

// WorkerConfig drives the background worker.
type WorkerConfig struct {
	PollInterval    time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"2s"`
	BatchSize       int           `envconfig:"WORKER_BATCH_SIZE" default:"100"`
	WebhookURL      string        `envconfig:"WORKER_WEBHOOK_URL"`
	WebhookTimeout  time.Duration `envconfig:"WORKER_WEBHOOK_TIMEOUT" default:"5s"`
	CleanupInterval time.Duration `envconfig:"WORKER_CLEANUP_INTERVAL" default:"1h"`
	OutboxRetention time.Duration `envconfig:"WORKER_OUTBOX_RETENTION" default:"168h"`
}
