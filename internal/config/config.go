package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/xavierca1/leadpool/internal/usecase"
)

// Config is read from LEADPOOL_* environment variables, optionally seeded
// from a .env file.
type Config struct {
	DatabaseURL     string        `envconfig:"database_url" required:"true"`
	Port            string        `envconfig:"port" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"request_timeout" default:"5s"`
	MaxPageSize     int           `envconfig:"max_page_size" default:"100"`
	BatchPolicy     string        `envconfig:"batch_policy" default:"skip"`
	Timezone        string        `envconfig:"timezone" default:"Asia/Shanghai"`
	RabbitMQURL     string        `envconfig:"rabbitmq_url"`
	LogLevel        string        `envconfig:"log_level" default:"info"`
	AllowedOrigins  []string      `envconfig:"allowed_origins" default:"*"`
	DBMaxOpenConns  int           `envconfig:"db_max_open_conns" default:"10"`
	DBMaxIdleConns  int           `envconfig:"db_max_idle_conns" default:"5"`
	DBConnLifetime  time.Duration `envconfig:"db_conn_lifetime" default:"5m"`
	ShutdownTimeout time.Duration `envconfig:"shutdown_timeout" default:"10s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("leadpool", &c); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.MaxPageSize <= 0 {
		return errors.New("max_page_size must be positive")
	}
	if _, err := usecase.ParseBatchPolicy(c.BatchPolicy); err != nil {
		return errors.Wrap(err, "batch_policy")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrap(err, "timezone")
	}
	return nil
}

func (c *Config) Policy() usecase.BatchPolicy {
	p, _ := usecase.ParseBatchPolicy(c.BatchPolicy)
	return p
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
