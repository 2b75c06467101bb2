package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when neither the config file nor the environment set a field.
const (
	DefaultAPITimeout   = 30 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultPort         = 8090
	DefaultRateLimit    = 120
)

// Config holds all configuration for the bioverify CLI and review server.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Poll   PollConfig   `yaml:"poll"`
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`
}

// APIConfig is everything needed to construct the analysis API client.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	AuthToken string        `yaml:"auth_token"`
	Timeout   time.Duration `yaml:"timeout"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	Env       string `yaml:"env"`
	RateLimit int    `yaml:"rate_limit"`
}

// RedisConfig is optional. An empty URL selects the in-memory cache.
type RedisConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load builds a validated Config. If BIOVERIFY_CONFIG names a YAML file it is
// read first; environment variables override anything it sets.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("BIOVERIFY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.API.BaseURL = strings.TrimRight(envString("BIOVERIFY_API_URL", cfg.API.BaseURL), "/")
	cfg.API.AuthToken = envString("BIOVERIFY_API_TOKEN", cfg.API.AuthToken)
	cfg.API.Timeout = envDuration("BIOVERIFY_API_TIMEOUT", cfg.API.Timeout)
	cfg.Poll.Interval = envDuration("BIOVERIFY_POLL_INTERVAL", cfg.Poll.Interval)
	cfg.Server.Port = envInt("BIOVERIFY_PORT", cfg.Server.Port)
	cfg.Server.Env = envString("BIOVERIFY_ENV", cfg.Server.Env)
	cfg.Server.RateLimit = envInt("BIOVERIFY_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Redis.URL = envString("REDIS_URL", cfg.Redis.URL)
	cfg.Log.Level = envString("BIOVERIFY_LOG_LEVEL", cfg.Log.Level)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		API:    APIConfig{Timeout: DefaultAPITimeout},
		Poll:   PollConfig{Interval: DefaultPollInterval},
		Server: ServerConfig{Port: DefaultPort, Env: "development", RateLimit: DefaultRateLimit},
		Log:    LogConfig{Level: "info"},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse yaml: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("BIOVERIFY_API_URL is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("BIOVERIFY_API_URL must start with http:// or https://, got %q", c.API.BaseURL)
	}

	if c.API.AuthToken == "" {
		return fmt.Errorf("BIOVERIFY_API_TOKEN is required")
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("BIOVERIFY_API_TIMEOUT must be positive")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("BIOVERIFY_POLL_INTERVAL must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("BIOVERIFY_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses the configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("BIOVERIFY_LOG_LEVEL must be one of debug, info, warn, error; got %q", l.Level)
	}
	return level, nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
