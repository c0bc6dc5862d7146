// Package config loads process configuration from the environment. Missing
// required variables fail fast with a message aimed at a human reading
// stderr, per the specification's exit-code contract.
package config

import (
	"fmt"
	"net/url"
	"os"
)

type Config struct {
	FleetAPIURL  string
	SharedSecret string
	TCPPort      string
	StatusPort   string
}

// Load reads and validates the environment. It never applies a default for
// FLEET_API_URL or SHARED_SECRET — both are required — and defaults
// TCP_PORT/STATUS_PORT per the specification.
func Load() (Config, error) {
	cfg := Config{
		FleetAPIURL:  os.Getenv("FLEET_API_URL"),
		SharedSecret: os.Getenv("SHARED_SECRET"),
		TCPPort:      getEnv("TCP_PORT", "5000"),
		StatusPort:   getEnv("STATUS_PORT", "3000"),
	}

	if cfg.FleetAPIURL == "" {
		return Config{}, fmt.Errorf("FLEET_API_URL is required")
	}
	u, err := url.ParseRequestURI(cfg.FleetAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("FLEET_API_URL must be an absolute URL, got %q", cfg.FleetAPIURL)
	}
	if cfg.SharedSecret == "" {
		return Config{}, fmt.Errorf("SHARED_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
