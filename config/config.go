package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/fern/pkg/validation"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern-api"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3000" validate:"min=1,max=65535"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"min=1"`

	// Instance base URL, e.g. https://example.service-now.com
	InstanceURL string `env:"INSTANCE_URL" validate:"required,url"`
	// Basic auth user, ignored when a token is set
	Username string `env:"INSTANCE_USERNAME" env-default:""`
	Password string `env:"INSTANCE_PASSWORD" env-default:""`
	// Bearer token
	Token string `env:"INSTANCE_TOKEN" env-default:""`
	// Timeout of one backend request
	ClientTimeout time.Duration `env:"CLIENT_TIMEOUT" env-default:"30s"`
	// Records requested per page
	PageSize int `env:"PAGE_SIZE" env-default:"1000" validate:"min=1,max=10000"`
	// Table read by the backend health check
	HealthCheckTable string `env:"HEALTH_CHECK_TABLE" env-default:"sys_properties" validate:"table_name"`

	// Redis is optional; without it the poller keeps watermarks in memory
	RedisEnabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Topic the poller publishes record events to
	KafkaTopic string `env:"KAFKA_TOPIC" env-default:"fern.records" validate:"required_if=PollerEnabled true"`

	// Poller settings
	PollerEnabled    bool          `env:"POLLER_ENABLED" env-default:"false"`
	PollerTables     []string      `env:"POLLER_TABLES" env-default:"incident"`
	PollerInterval   time.Duration `env:"POLLER_INTERVAL" env-default:"30s"`
	PollerBatchLimit int           `env:"POLLER_BATCH_LIMIT" env-default:"500"`
	// Directory of <table>.yaml query files narrowing what each table polls
	PollerQueryDir string `env:"POLLER_QUERY_DIR" env-default:""`

	// Record spans; trace ids are attached to logs, error responses and events
	TracingEnabled bool `env:"TRACING_ENABLED" env-default:"true"`
}

// Load reads an optional .env file, then the environment, and validates the result
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := validation.Validate(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
