// Package config defines the server configuration, loaded from YAML
// with environment variable expansion, or assembled from plain
// environment variables when no file is given.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the root configuration for a server instance.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Redis      RedisConfig      `yaml:"redis"`
	Limits     LimitsConfig     `yaml:"limits"`
	Queue      QueueConfig      `yaml:"queue"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Static     StaticConfig     `yaml:"static"`
	LogLevel   string           `yaml:"log_level"`
}

// ListenConfig holds the HTTP listen settings.
type ListenConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig holds the optional Redis transcript backend. An empty
// address keeps transcripts in memory.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// LimitsConfig bounds transport resource usage.
type LimitsConfig struct {
	// MaxConns caps concurrent WebSocket connections. 0 = unlimited.
	MaxConns int `yaml:"max_conns"`
	// IdleTimeout closes connections with no inbound events for this
	// long. 0 disables idle reaping.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// RateMax allows at most this many connection attempts per IP
	// within RateWindow.
	RateMax    int           `yaml:"rate_max"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// QueueConfig tunes matchmaking queues.
type QueueConfig struct {
	// MaxWait evicts waiters queued longer than this. 0 (the default)
	// lets participants wait indefinitely.
	MaxWait time.Duration `yaml:"max_wait"`
}

// TranscriptConfig tunes chat history retention.
type TranscriptConfig struct {
	// MaxMessages retained per session.
	MaxMessages int `yaml:"max_messages"`
}

// StaticConfig points at the optional frontend directory to serve.
type StaticConfig struct {
	Dir string `yaml:"dir"`
}

func (c *Config) applyDefaults() {
	if c.Listen.Addr == "" {
		c.Listen.Addr = ":8080"
	}
	if c.Limits.RateMax == 0 {
		c.Limits.RateMax = 20
	}
	if c.Limits.RateWindow == 0 {
		c.Limits.RateWindow = time.Minute
	}
	if c.Transcript.MaxMessages == 0 {
		c.Transcript.MaxMessages = 200
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Limits.MaxConns < 0 {
		return fmt.Errorf("limits.max_conns must not be negative, got %d", c.Limits.MaxConns)
	}
	if c.Limits.RateMax <= 0 {
		return fmt.Errorf("limits.rate_max must be positive, got %d", c.Limits.RateMax)
	}
	if c.Limits.RateWindow <= 0 {
		return fmt.Errorf("limits.rate_window must be positive, got %s", c.Limits.RateWindow)
	}
	if c.Transcript.MaxMessages <= 0 {
		return fmt.Errorf("transcript.max_messages must be positive, got %d", c.Transcript.MaxMessages)
	}
	if c.Queue.MaxWait < 0 {
		return fmt.Errorf("queue.max_wait must not be negative, got %s", c.Queue.MaxWait)
	}
	if c.Static.Dir != "" {
		if _, err := os.Stat(c.Static.Dir); err != nil {
			return fmt.Errorf("static.dir: %w", err)
		}
	}
	return nil
}

// FromEnv builds a configuration from environment variables alone,
// used when no config file is given. Every YAML setting has an
// environment counterpart; unset or unparseable values fall back to
// the defaults.
func FromEnv() *Config {
	cfg := &Config{}
	cfg.Listen.Addr = os.Getenv("LISTEN_ADDR")
	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Static.Dir = os.Getenv("STATIC_DIR")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	cfg.Limits.MaxConns = envInt("MAX_CONNS", 0)
	cfg.Limits.IdleTimeout = envDuration("IDLE_TIMEOUT", 0)
	cfg.Limits.RateMax = envInt("RATE_MAX", 0)
	cfg.Limits.RateWindow = envDuration("RATE_WINDOW", 0)
	cfg.Queue.MaxWait = envDuration("QUEUE_MAX_WAIT", 0)
	cfg.Transcript.MaxMessages = envInt("TRANSCRIPT_MAX_MESSAGES", 0)
	cfg.applyDefaults()
	return cfg
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
