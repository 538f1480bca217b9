package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from an optional
// YAML file, overridden by environment variables.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Draft struct {
		TurnDurationSec int `yaml:"turn_duration_sec"`
		TickIntervalMs  int `yaml:"tick_interval_ms"`
		IdleTTLSec      int `yaml:"idle_ttl_sec"`
		ReapIntervalSec int `yaml:"reap_interval_sec"`
	} `yaml:"draft"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Draft.TurnDurationSec = 15
	cfg.Draft.TickIntervalMs = 100
	cfg.Draft.IdleTTLSec = 600
	cfg.Draft.ReapIntervalSec = 60
	return &cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig builds the configuration: defaults, then the YAML file at
// CONFIG_PATH (if present), then environment overrides.
func loadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.Port = getEnvAsInt("PORT", cfg.Server.Port)
	cfg.Draft.TurnDurationSec = getEnvAsInt("TURN_DURATION_SEC", cfg.Draft.TurnDurationSec)
	cfg.Draft.TickIntervalMs = getEnvAsInt("TICK_INTERVAL_MS", cfg.Draft.TickIntervalMs)
	cfg.Draft.IdleTTLSec = getEnvAsInt("ROOM_IDLE_TTL_SEC", cfg.Draft.IdleTTLSec)
	cfg.Draft.ReapIntervalSec = getEnvAsInt("ROOM_REAP_INTERVAL_SEC", cfg.Draft.ReapIntervalSec)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", cfg.NATS.SubjectPrefix)

	return cfg, nil
}
