package common

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"datagen/internal/stream"
)

// Config is the process configuration, read from the environment.
type Config struct {
	HTTPAddr       string
	GinMode        string
	LogDevelopment bool
	GzipEnabled    bool
	MemoryLimitMB  int // soft limit via debug.SetMemoryLimit; 0 leaves it unset

	Stream stream.Config
	Vocab  VocabularyConfig
}

// VocabularyConfig selects and sizes the vocabulary database.
type VocabularyConfig struct {
	Driver   string // sqlite or mysql
	DSN      string // sqlite only
	Host     string
	Port     string
	User     string
	Pass     string
	Name     string
	PoolSize int
	Seed     uint64
}

// MySQLDSN builds the MySQL connection string.
func (v VocabularyConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		v.User, v.Pass, v.Host, v.Port, v.Name)
}

// LoadConfig reads the configuration from environment variables, applying
// defaults for anything unset. Call godotenv.Load first to pick up .env.
func LoadConfig() (Config, error) {
	cfg := Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		GinMode:        getEnv("GIN_MODE", "release"),
		LogDevelopment: true,
		GzipEnabled:    true,
		Stream:         stream.DefaultConfig(),
		Vocab: VocabularyConfig{
			Driver:   strings.ToLower(getEnv("VOCAB_DB_DRIVER", "sqlite")),
			DSN:      getEnv("VOCAB_DB_DSN", "file:vocabulary?mode=memory&cache=shared"),
			Host:     os.Getenv("VOCAB_DB_HOST"),
			Port:     getEnv("VOCAB_DB_PORT", "3306"),
			User:     os.Getenv("VOCAB_DB_USER"),
			Pass:     os.Getenv("VOCAB_DB_PASS"),
			Name:     os.Getenv("VOCAB_DB_NAME"),
			PoolSize: 1000,
		},
	}

	var err error
	if cfg.LogDevelopment, err = getEnvBool("LOG_DEVELOPMENT", cfg.LogDevelopment); err != nil {
		return Config{}, err
	}
	if cfg.GzipEnabled, err = getEnvBool("GZIP_ENABLED", cfg.GzipEnabled); err != nil {
		return Config{}, err
	}
	if cfg.MemoryLimitMB, err = getEnvInt("MEMORY_LIMIT_MB", 0); err != nil {
		return Config{}, err
	}
	if cfg.Stream.Workers, err = getEnvInt("STREAM_WORKERS", cfg.Stream.Workers); err != nil {
		return Config{}, err
	}
	if cfg.Stream.ChunkBytes, err = getEnvInt("STREAM_CHUNK_BYTES", cfg.Stream.ChunkBytes); err != nil {
		return Config{}, err
	}
	if cfg.Stream.ChannelBuffer, err = getEnvInt("STREAM_CHANNEL_BUFFER", cfg.Stream.ChannelBuffer); err != nil {
		return Config{}, err
	}
	if cfg.Stream.Window, err = getEnvInt("STREAM_WINDOW", cfg.Stream.Window); err != nil {
		return Config{}, err
	}
	if cfg.Stream.ProgressInterval, err = getEnvDuration("STREAM_PROGRESS_INTERVAL", cfg.Stream.ProgressInterval); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("STREAM_MAX_TARGET"); v != "" {
		budget, err := stream.ParseSizeWithLimit(v, math.MaxUint64)
		if err != nil {
			return Config{}, fmt.Errorf("STREAM_MAX_TARGET: %w", err)
		}
		cfg.Stream.MaxTargetBytes = budget.TargetBytes
	}
	if cfg.Vocab.PoolSize, err = getEnvInt("VOCAB_POOL_SIZE", cfg.Vocab.PoolSize); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("VOCAB_SEED"); v != "" {
		if cfg.Vocab.Seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("VOCAB_SEED: %w", err)
		}
	}

	if err := cfg.Stream.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.Vocab.Driver != "sqlite" && cfg.Vocab.Driver != "mysql" {
		return Config{}, fmt.Errorf("VOCAB_DB_DRIVER: unsupported driver %q", cfg.Vocab.Driver)
	}
	if cfg.Vocab.PoolSize <= 0 {
		return Config{}, fmt.Errorf("VOCAB_POOL_SIZE: must be positive, got %d", cfg.Vocab.PoolSize)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
