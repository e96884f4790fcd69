package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	PokeAPI PokeAPIConfig `mapstructure:"pokeapi"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PokeAPIConfig holds remote catalog configuration
type PokeAPIConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryWait            time.Duration `mapstructure:"retry_wait"`
	MaxWorkers           int           `mapstructure:"max_workers"`
	MaxRequestsPerSecond int           `mapstructure:"max_requests_per_second"`
	BatchSize            int           `mapstructure:"batch_size"`
	CircuitBreakerDelay  time.Duration `mapstructure:"circuit_breaker_delay"`
	Proxies              []string      `mapstructure:"proxies"`
}

// CacheConfig holds in-memory catalog configuration
type CacheConfig struct {
	SearchMemoSize int `mapstructure:"search_memo_size"`
}

// RedisConfig holds connection details for the skip journal
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from an optional YAML file with environment variable overrides
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values the loader and client cannot work without
func (c *Config) Validate() error {
	if c.PokeAPI.BaseURL == "" {
		return fmt.Errorf("pokeapi.base_url must be set")
	}
	if c.PokeAPI.BatchSize <= 0 {
		return fmt.Errorf("pokeapi.batch_size must be positive, got %d", c.PokeAPI.BatchSize)
	}
	if c.PokeAPI.MaxRetries < 1 {
		return fmt.Errorf("pokeapi.max_retries must be at least 1, got %d", c.PokeAPI.MaxRetries)
	}
	if c.PokeAPI.MaxWorkers <= 0 {
		return fmt.Errorf("pokeapi.max_workers must be positive, got %d", c.PokeAPI.MaxWorkers)
	}
	if c.PokeAPI.MaxRequestsPerSecond <= 0 {
		return fmt.Errorf("pokeapi.max_requests_per_second must be positive, got %d", c.PokeAPI.MaxRequestsPerSecond)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")

	v.SetDefault("pokeapi.base_url", "https://pokeapi.co/api/v2")
	v.SetDefault("pokeapi.timeout", 30*time.Second)
	v.SetDefault("pokeapi.max_retries", 2)
	v.SetDefault("pokeapi.retry_wait", 500*time.Millisecond)
	v.SetDefault("pokeapi.max_workers", 5)
	v.SetDefault("pokeapi.max_requests_per_second", 20)
	v.SetDefault("pokeapi.batch_size", 20)
	v.SetDefault("pokeapi.circuit_breaker_delay", time.Minute)
	v.SetDefault("pokeapi.proxies", []string{})

	v.SetDefault("cache.search_memo_size", 1024)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)

	v.SetDefault("log.level", "info")
}
