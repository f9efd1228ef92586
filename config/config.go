// Package config loads and validates Argus's runtime configuration:
// defaults, overlaid by a JSON file, overlaid in turn by (.env-sourced)
// environment variables, following the teacher's
// godotenv-plus-json-unmarshal pattern.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every option spec.md §6 names, plus the debug-logging
// toggle the ambient logging stack needs.
type Config struct {
	Buffer struct {
		Size int `json:"size"`
	} `json:"buffer"`

	Server struct {
		Enabled bool `json:"enabled"`
		Port    int  `json:"port"`
	} `json:"server"`

	RecentEvents struct {
		Size int `json:"size"`
	} `json:"recent_events"`

	ThreadEvents struct {
		PerThread  int `json:"per_thread"`
		MaxThreads int `json:"max_threads"`
	} `json:"thread_events"`

	EndedRetentionMS int `json:"ended_retention_ms"`

	Subscriber struct {
		QueueCapacity int `json:"queue_capacity"`
	} `json:"subscriber"`

	Debug bool `json:"debug"`
}

// Defaults returns a Config populated with every spec.md §6 default.
func Defaults() *Config {
	c := &Config{}
	c.Buffer.Size = 65536
	c.Server.Enabled = true
	c.Server.Port = 9202
	c.RecentEvents.Size = 100
	c.ThreadEvents.PerThread = 100
	c.ThreadEvents.MaxThreads = 1000
	c.EndedRetentionMS = 5000
	c.Subscriber.QueueCapacity = 1024
	return c
}

// EnvServerPort overrides server.port when set (ARGUS_SERVER_PORT).
const EnvServerPort = "ARGUS_SERVER_PORT"

// EnvDebug enables debug logging when set to a truthy value (ARGUS_DEBUG).
const EnvDebug = "ARGUS_DEBUG"

// Load reads Config from configPath layered over defaults, then applies
// environment-variable overrides, then validates. configPath may be
// empty, in which case only defaults and environment overrides apply.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Defaults()
	if configPath != "" {
		if err := mergeFile(cfg, configPath); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	portStr := GetEnvWithDefault(EnvServerPort, strconv.Itoa(cfg.Server.Port))
	if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
		cfg.Server.Port = port
	}

	debugStr := GetEnvWithDefault(EnvDebug, strconv.FormatBool(cfg.Debug))
	cfg.Debug = debugStr == "1" || debugStr == "true"
}

// Validate enforces the invariants spec.md §6 and §4.1 depend on: a
// power-of-two ring buffer capacity, and every bound being positive.
func (c *Config) Validate() error {
	if c.Buffer.Size <= 0 || !isPowerOfTwo(c.Buffer.Size) {
		return fmt.Errorf("config: buffer.size %d must be a positive power of two", c.Buffer.Size)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.RecentEvents.Size <= 0 {
		return fmt.Errorf("config: recent_events.size must be positive")
	}
	if c.ThreadEvents.PerThread <= 0 {
		return fmt.Errorf("config: thread_events.per_thread must be positive")
	}
	if c.ThreadEvents.MaxThreads <= 0 {
		return fmt.Errorf("config: thread_events.max_threads must be positive")
	}
	if c.EndedRetentionMS <= 0 {
		return fmt.Errorf("config: ended_retention_ms must be positive")
	}
	if c.Subscriber.QueueCapacity <= 0 {
		return fmt.Errorf("config: subscriber.queue_capacity must be positive")
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n&(n-1) == 0
}
