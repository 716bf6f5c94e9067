// Package config loads exporter settings from the environment, with an
// optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/davidwilemski/purpleair-exporter/internal/sensorid"
)

const (
	defaultBaseURL        = "https://www.purpleair.com"
	defaultListenAddr     = "0.0.0.0:3000"
	defaultPollInterval   = time.Minute
	defaultFetchWorkers   = 4
	defaultRequestTimeout = 10 * time.Second
)

// Config holds everything the exporter needs to run.
type Config struct {
	SensorIDs      []sensorid.SensorID
	BaseURL        string
	ListenAddr     string
	PollInterval   time.Duration
	FetchWorkers   int
	RequestTimeout time.Duration
}

// fileConfig mirrors the YAML file pointed to by PURPLEAIR_CONFIG.
// Durations are Go duration strings ("90s", "2m").
type fileConfig struct {
	SensorIDs      []string `yaml:"sensor_ids"`
	BaseURL        string   `yaml:"base_url"`
	ListenAddr     string   `yaml:"listen_addr"`
	PollInterval   string   `yaml:"poll_interval"`
	FetchWorkers   int      `yaml:"fetch_workers"`
	RequestTimeout string   `yaml:"request_timeout"`
}

// Load builds the configuration from the environment. A .env file is
// honored when present; values already set in the environment win. When
// PURPLEAIR_CONFIG names a YAML file, its values override both.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BaseURL:        getenvDefault("PURPLEAIR_BASE_URL", defaultBaseURL),
		ListenAddr:     getenvDefault("PURPLEAIR_LISTEN_ADDR", defaultListenAddr),
		PollInterval:   getenvDuration("PURPLEAIR_POLL_INTERVAL", defaultPollInterval),
		FetchWorkers:   getenvIntDefault("PURPLEAIR_FETCH_WORKERS", defaultFetchWorkers),
		RequestTimeout: getenvDuration("PURPLEAIR_REQUEST_TIMEOUT", defaultRequestTimeout),
	}
	rawIDs := os.Getenv("PURPLEAIR_SENSOR_IDS")

	if path := os.Getenv("PURPLEAIR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		var overlay fileConfig
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := cfg.apply(overlay); err != nil {
			return cfg, err
		}
		if len(overlay.SensorIDs) > 0 {
			rawIDs = strings.Join(overlay.SensorIDs, ",")
		}
	}

	ids, err := sensorid.ParseList(rawIDs)
	if err != nil {
		return cfg, fmt.Errorf("config: PURPLEAIR_SENSOR_IDS: %w", err)
	}
	cfg.SensorIDs = ids

	if cfg.PollInterval <= 0 {
		return cfg, errors.New("config: poll interval must be positive")
	}
	if cfg.FetchWorkers <= 0 {
		return cfg, errors.New("config: fetch workers must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		return cfg, errors.New("config: request timeout must be positive")
	}
	return cfg, nil
}

func (c *Config) apply(f fileConfig) error {
	if f.BaseURL != "" {
		c.BaseURL = f.BaseURL
	}
	if f.ListenAddr != "" {
		c.ListenAddr = f.ListenAddr
	}
	if f.PollInterval != "" {
		d, err := time.ParseDuration(f.PollInterval)
		if err != nil {
			return fmt.Errorf("config: poll_interval: %w", err)
		}
		c.PollInterval = d
	}
	if f.FetchWorkers > 0 {
		c.FetchWorkers = f.FetchWorkers
	}
	if f.RequestTimeout != "" {
		d, err := time.ParseDuration(f.RequestTimeout)
		if err != nil {
			return fmt.Errorf("config: request_timeout: %w", err)
		}
		c.RequestTimeout = d
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
