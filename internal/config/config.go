// Package config resolves service configuration. Environment variables
// take precedence over the optional YAML file so deployment overrides
// never require editing the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"empulse-control/internal/safety"
)

type Config struct {
	Port                  string            `yaml:"port"`
	NATSURL               string            `yaml:"nats_url"`
	AlertSubject          string            `yaml:"alert_subject"`
	OperationMode         string            `yaml:"operation_mode"`
	HistoryCapacity       int               `yaml:"history_capacity"`
	MaxEmergencyShutdowns int               `yaml:"max_emergency_shutdowns"`
	LoopIntervalMS        int               `yaml:"loop_interval_ms"`
	QueueCapacity         int               `yaml:"queue_capacity"`
	SensorSeed            int               `yaml:"sensor_seed"`
	CacheMaxSize          int               `yaml:"cache_max_size"`
	CacheTTLSeconds       int               `yaml:"cache_ttl_seconds"`
	Thresholds            safety.Thresholds `yaml:"thresholds"`
}

func defaults() Config {
	return Config{
		Port:                  "8080",
		AlertSubject:          "safety.alert",
		OperationMode:         "simulation",
		HistoryCapacity:       safety.DefaultHistoryCapacity,
		MaxEmergencyShutdowns: 3,
		LoopIntervalMS:        10,
		QueueCapacity:         32,
		SensorSeed:            42,
		CacheMaxSize:          256,
		CacheTTLSeconds:       1800,
		Thresholds:            safety.DefaultThresholds(),
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path (if non-empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = getenv("PORT", cfg.Port)
	cfg.NATSURL = getenv("NATS_URL", cfg.NATSURL)
	cfg.AlertSubject = getenv("ALERT_SUBJECT", cfg.AlertSubject)
	cfg.OperationMode = getenv("OPERATION_MODE", cfg.OperationMode)
	cfg.HistoryCapacity = getenvInt("HISTORY_CAPACITY", cfg.HistoryCapacity)
	cfg.MaxEmergencyShutdowns = getenvInt("MAX_EMERGENCY_SHUTDOWNS", cfg.MaxEmergencyShutdowns)
	cfg.LoopIntervalMS = getenvInt("LOOP_INTERVAL_MS", cfg.LoopIntervalMS)
	cfg.QueueCapacity = getenvInt("QUEUE_CAPACITY", cfg.QueueCapacity)
	cfg.SensorSeed = getenvInt("SENSOR_SEED", cfg.SensorSeed)
	cfg.CacheMaxSize = getenvInt("CACHE_MAX_SIZE", cfg.CacheMaxSize)
	cfg.CacheTTLSeconds = getenvInt("CACHE_TTL_SECONDS", cfg.CacheTTLSeconds)

	if err := cfg.Thresholds.Validate(); err != nil {
		return Config{}, fmt.Errorf("config thresholds: %w", err)
	}
	if cfg.HistoryCapacity <= 0 || cfg.LoopIntervalMS <= 0 || cfg.QueueCapacity <= 0 {
		return Config{}, fmt.Errorf("history_capacity, loop_interval_ms and queue_capacity must be positive")
	}
	return cfg, nil
}

func (c Config) LoopInterval() time.Duration {
	return time.Duration(c.LoopIntervalMS) * time.Millisecond
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func getenv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
