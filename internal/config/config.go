package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"govariant/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Storage   StorageConfig
	Data      DataConfig
	Pipeline  PipelineConfig
	Logistic  LogisticConfig
	Forest    ForestConfig
	Predictor PredictorConfig
	Log       LogConfig
}

// DatabaseConfig holds the registry connection. An empty URL disables the registry.
type DatabaseConfig struct {
	URL    string
	Driver string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// StorageConfig locates persisted models
type StorageConfig struct {
	ModelDir    string
	ModelHandle string
}

// DataConfig holds input file locations
type DataConfig struct {
	AnnotationsFile string
}

// PipelineConfig controls splitting, evaluation and parallelism
type PipelineConfig struct {
	Seed         int64
	TestFraction float64
	Threshold    float64
	Workers      int
}

type LogisticConfig struct {
	L2            float64
	MaxIterations int
}

type ForestConfig struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int
}

type PredictorConfig struct {
	CacheSize int
}

type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:    getEnvOrDefault("DATABASE_URL", ""),
			Driver: getEnvOrDefault("DATABASE_DRIVER", "postgres"),
		},
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "8080"),
			ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			ModelDir:    getEnvOrDefault("MODEL_DIR", "./models"),
			ModelHandle: getEnvOrDefault("MODEL_HANDLE", ""),
		},
		Data: DataConfig{
			AnnotationsFile: getEnvOrDefault("ANNOTATIONS_FILE", ""),
		},
		Pipeline: PipelineConfig{
			Seed:         getEnvInt64OrDefault("SEED", 42),
			TestFraction: getEnvFloatOrDefault("TEST_FRACTION", 0.2),
			Threshold:    getEnvFloatOrDefault("THRESHOLD", 0.5),
			Workers:      getEnvIntOrDefault("WORKERS", runtime.GOMAXPROCS(0)),
		},
		Logistic: LogisticConfig{
			L2:            getEnvFloatOrDefault("LR_L2", 0.01),
			MaxIterations: getEnvIntOrDefault("LR_MAX_ITERATIONS", 500),
		},
		Forest: ForestConfig{
			Trees:          getEnvIntOrDefault("RF_TREES", 100),
			MaxDepth:       getEnvIntOrDefault("RF_MAX_DEPTH", 12),
			MinSamplesLeaf: getEnvIntOrDefault("RF_MIN_SAMPLES_LEAF", 1),
			MaxFeatures:    getEnvIntOrDefault("RF_MAX_FEATURES", 0),
		},
		Predictor: PredictorConfig{
			CacheSize: getEnvIntOrDefault("PREDICTOR_CACHE_SIZE", 1024),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "INFO"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// RegistryEnabled reports whether a database is configured.
func (c *Config) RegistryEnabled() bool {
	return c.Database.URL != ""
}

func validateConfig(config *Config) error {
	p := config.Pipeline
	if p.TestFraction <= 0 || p.TestFraction >= 1 {
		return errors.ConfigInvalid(fmt.Sprintf("TEST_FRACTION must be in (0,1), got %v", p.TestFraction))
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return errors.ConfigInvalid(fmt.Sprintf("THRESHOLD must be in [0,1], got %v", p.Threshold))
	}
	if p.Workers < 1 {
		return errors.ConfigInvalid("WORKERS must be at least 1")
	}
	if config.Logistic.L2 < 0 {
		return errors.ConfigInvalid("LR_L2 must be non-negative")
	}
	if config.Logistic.MaxIterations < 1 {
		return errors.ConfigInvalid("LR_MAX_ITERATIONS must be at least 1")
	}
	f := config.Forest
	if f.Trees < 1 {
		return errors.ConfigInvalid("RF_TREES must be at least 1")
	}
	if f.MaxDepth < 0 || f.MinSamplesLeaf < 1 || f.MaxFeatures < 0 {
		return errors.ConfigInvalid("forest limits out of range")
	}
	if config.Predictor.CacheSize < 1 {
		return errors.ConfigInvalid("PREDICTOR_CACHE_SIZE must be at least 1")
	}
	if config.Storage.ModelDir == "" {
		return errors.ConfigInvalid("MODEL_DIR is required")
	}
	switch config.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unsupported DATABASE_DRIVER %q", config.Database.Driver))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
