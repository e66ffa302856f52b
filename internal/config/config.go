// Package config provides Viper-based configuration management for neo-hunter
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/neo-hunter/pkg/client"
	"github.com/Sternrassler/neo-hunter/pkg/hunter"
	"github.com/Sternrassler/neo-hunter/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// DemoKey is the shared, heavily limited NeoWs key.
const DemoKey = "DEMO_KEY"

// Config represents the complete neo-hunter configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Client  ClientConfig  `mapstructure:"client"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// APIConfig contains NeoWs endpoint settings
type APIConfig struct {
	Key     string        `mapstructure:"key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ClientConfig contains retry and pacing settings
type ClientConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	RateLimit      int           `mapstructure:"rate_limit"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxWindows     int           `mapstructure:"max_windows"`
}

// RedisConfig contains quota tracking settings
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from .env, file and environment variables.
// Environment variables use the NEOHUNTER_ prefix (NEOHUNTER_API_KEY,
// NEOHUNTER_REDIS_ADDR, ...); NASA_API_KEY is accepted for the key too.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".neo-hunter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/neo-hunter")
	}

	v.SetEnvPrefix("NEOHUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api.key", "NEOHUNTER_API_KEY", "NASA_API_KEY")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.key", DemoKey)
	v.SetDefault("api.base_url", client.DefaultBaseURL)
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("client.max_retries", 3)
	v.SetDefault("client.initial_backoff", 500*time.Millisecond)
	v.SetDefault("client.max_backoff", 10*time.Second)
	v.SetDefault("client.rate_limit", 20)
	v.SetDefault("client.max_concurrency", 20)
	v.SetDefault("client.max_windows", 8)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
	v.SetDefault("logging.file", "")

	v.SetDefault("metrics.addr", "")
}

// validate checks configuration values
func validate(cfg *Config) error {
	if cfg.API.Key == "" {
		return fmt.Errorf("api.key must not be empty")
	}
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if cfg.Client.MaxRetries < 0 {
		return fmt.Errorf("client.max_retries must be >= 0 (got %d)", cfg.Client.MaxRetries)
	}
	if cfg.Client.RateLimit < 0 {
		return fmt.Errorf("client.rate_limit must be >= 0 (got %d)", cfg.Client.RateLimit)
	}
	if cfg.Client.MaxConcurrency < 1 {
		return fmt.Errorf("client.max_concurrency must be >= 1 (got %d)", cfg.Client.MaxConcurrency)
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	return nil
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.Logging.Level))
	cfg.Pretty = c.Logging.Pretty
	cfg.File = c.Logging.File
	return cfg
}

// RedisClient returns a Redis client when quota tracking is enabled, nil otherwise.
func (c *Config) RedisClient() *redis.Client {
	if !c.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// HunterConfig builds the hunter configuration. redisClient may be nil.
func (c *Config) HunterConfig(redisClient *redis.Client) hunter.Config {
	cfg := hunter.DefaultConfig(c.API.Key)

	cfg.Client.BaseURL = c.API.BaseURL
	cfg.Client.Timeout = c.API.Timeout
	cfg.Client.MaxRetries = c.Client.MaxRetries
	cfg.Client.InitialBackoff = c.Client.InitialBackoff
	cfg.Client.MaxBackoff = c.Client.MaxBackoff
	cfg.Client.RateLimit = c.Client.RateLimit
	cfg.Client.MaxConcurrency = c.Client.MaxConcurrency
	cfg.Client.Redis = redisClient

	cfg.Pagination.MaxConcurrency = c.Client.MaxConcurrency
	cfg.Feed.MaxWindows = c.Client.MaxWindows

	return cfg
}
