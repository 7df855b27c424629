// Package config loads the relayd configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full relayd configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Chain    ChainConfig    `yaml:"chain"`
	Relay    RelayConfig    `yaml:"relay"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen     string  `yaml:"listen"`
	AuthSecret string  `yaml:"auth_secret"`
	RateLimit  float64 `yaml:"rate_limit"` // requests per second; 0 disables
	RateBurst  int     `yaml:"rate_burst"`
}

// DatabaseConfig configures persistence. An empty DSN selects the in-memory
// store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ChainConfig identifies the local chain and its height endpoint. An empty
// RPC URL selects a static height source.
type ChainConfig struct {
	LocalID uint32 `yaml:"local_id"`
	RPCURL  string `yaml:"rpc_url"`
}

// RelayConfig configures the relay engine.
type RelayConfig struct {
	Admin         string `yaml:"admin"`
	SweepSchedule string `yaml:"sweep_schedule"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:    ":8080",
			RateLimit: 50,
			RateBurst: 100,
		},
		Chain: ChainConfig{
			LocalID: 1,
		},
		Relay: RelayConfig{
			Admin:         "admin",
			SweepSchedule: "@every 1m",
		},
	}
}

// Load reads a YAML configuration file, applies environment overrides, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads the file when it exists and falls back to defaults
// (plus environment overrides) otherwise.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		cfg := Default()
		cfg.applyEnv()
		if err := cfg.validate(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	return Load(path)
}

// Secrets and deployment-specific values may come from the environment
// instead of the file.
func (c *Config) applyEnv() {
	if dsn := strings.TrimSpace(os.Getenv("RELAY_DATABASE_DSN")); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv("RELAY_AUTH_SECRET")); secret != "" {
		c.Server.AuthSecret = secret
	}
	if listen := strings.TrimSpace(os.Getenv("RELAY_LISTEN")); listen != "" {
		c.Server.Listen = listen
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Relay.Admin) == "" {
		return fmt.Errorf("relay.admin is required")
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen is required")
	}
	return nil
}
