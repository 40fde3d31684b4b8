package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the DuoMatch CLI.
type Config struct {
	ServerEndpointAddr  string        `env:"SERVER_ADDR"`
	SessionDBPath       string        `env:"SESSION_DB"`
	OnlineCheckInterval time.Duration `env:"ONLINE_CHECK_INTERVAL"`
	LogLevel            string        `env:"LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SessionDBPath = "duomatch-session.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.LogLevel = "warn"
}

func (c *Config) Validate() error {
	if c.ServerEndpointAddr == "" {
		return fmt.Errorf("server address must not be empty")
	}
	if c.SessionDBPath == "" {
		return fmt.Errorf("session database path must not be empty")
	}
	if c.OnlineCheckInterval <= 0 {
		return fmt.Errorf("online check interval must be positive")
	}
	return nil
}

// LoadConfig applies defaults, JSON, environment and flags in that order.
// It panics on invalid input.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}
