package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type ImportOptions struct {
	Workers         int           `env:"IMPORT_WORKERS" envDefault:"2"`
	BaseDir         string        `env:"IMPORT_BASE_DIR" envDefault:"."`
	LeaseSeconds    int           `env:"IMPORT_JOB_LEASE_SECONDS" envDefault:"60"`
	CapacityProfile string        `env:"IMPORT_CAPACITY_PROFILE" envDefault:"medium"`
	MaxRows         int           `env:"IMPORT_MAX_ROWS" envDefault:"10000"`
	RollbackWindow  time.Duration `env:"IMPORT_ROLLBACK_WINDOW" envDefault:"24h"`
	HashCost        int           `env:"IMPORT_HASH_COST" envDefault:"10"`
	MaxHashWorkers  int           `env:"IMPORT_MAX_HASH_WORKERS" envDefault:"0"`
}

func (o ImportOptions) LeaseDuration() time.Duration {
	return time.Duration(o.LeaseSeconds) * time.Second
}

type MetricsOptions struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

type Config struct {
	DatabaseURL       string `env:"DATABASE_URL"`
	Port              string `env:"PORT" envDefault:"8080"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string `env:"LOG_FORMAT" envDefault:"text"`
	MigrationsEnabled bool   `env:"MIGRATIONS_ENABLED" envDefault:"true"`

	Import  ImportOptions
	Metrics MetricsOptions
}

// Load reads the existing files of envFiles into the environment and parses it.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(envFiles []string) error {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Import.CapacityProfile {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("%w: IMPORT_CAPACITY_PROFILE must be low, medium or high", ErrInvalidConfig)
	}
	if c.Import.Workers <= 0 {
		return fmt.Errorf("%w: IMPORT_WORKERS must be positive", ErrInvalidConfig)
	}
	if c.Import.LeaseSeconds <= 0 {
		return fmt.Errorf("%w: IMPORT_JOB_LEASE_SECONDS must be positive", ErrInvalidConfig)
	}
	if c.Import.RollbackWindow <= 0 {
		return fmt.Errorf("%w: IMPORT_ROLLBACK_WINDOW must be positive", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
