// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	HabitsPath  string
	NotesDir    string
	LLM         LLMConfig
	Idle        IdleConfig
}

// LLMConfig describes the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
}

// IdleConfig controls the spontaneous-speech loop.
type IdleConfig struct {
	Interval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/alisa.db"),
		HabitsPath:  getEnv("HABITS_PATH", "./data/task_memory.json"),
		NotesDir:    getEnv("NOTES_DIR", ""),
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", "http://127.0.0.1:8080"),
			Model:       getEnv("LLM_MODEL", "local"),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.8),
		},
		Idle: IdleConfig{
			Interval: getEnvDuration("IDLE_CHECK_INTERVAL", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.HabitsPath == "" {
		return fmt.Errorf("HABITS_PATH cannot be empty")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL cannot be empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.Idle.Interval <= 0 {
		return fmt.Errorf("IDLE_CHECK_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
