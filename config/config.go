/*
Package config loads server configuration.

SOURCES, lowest to highest precedence:
  1. Built-in defaults
  2. A TOML file (default ./leaved.toml, -config flag overrides)
  3. Environment variables (a .env file is loaded first if present)

ENVIRONMENT VARIABLES:
  LEAVE_PORT, LEAVE_DB_PATH, LEAVE_LOG_LEVEL,
  LEAVE_SCHEDULER_ENABLED, LEAVE_SCHEDULER_INTERVAL
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type SchedulerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// duration lets TOML carry "24h" style values.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: 8080},
		Database:  DatabaseConfig{Path: "./data/leave.db"},
		Scheduler: SchedulerConfig{Enabled: true, Interval: duration{24 * time.Hour}},
		Log:       LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional TOML file, and
// the environment. A missing file at the default path is fine; a missing
// file at an explicit path is an error.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if explicit {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}

	// .env is developer convenience only.
	_ = godotenv.Load()

	cfg.Server.Port = envInt("LEAVE_PORT", cfg.Server.Port)
	cfg.Database.Path = envString("LEAVE_DB_PATH", cfg.Database.Path)
	cfg.Log.Level = envString("LEAVE_LOG_LEVEL", cfg.Log.Level)
	cfg.Scheduler.Enabled = envBool("LEAVE_SCHEDULER_ENABLED", cfg.Scheduler.Enabled)
	cfg.Scheduler.Interval.Duration = envDuration("LEAVE_SCHEDULER_INTERVAL", cfg.Scheduler.Interval.Duration)

	return cfg, nil
}

// SchedulerInterval returns the effective interval.
func (c Config) SchedulerInterval() time.Duration {
	if c.Scheduler.Interval.Duration <= 0 {
		return 24 * time.Hour
	}
	return c.Scheduler.Interval.Duration
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
