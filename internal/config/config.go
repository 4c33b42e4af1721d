// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Volume
	VolumeRoot  string
	WatchVolume bool

	// Uploads
	MaxUploadSize int64
	UploadExpiry  time.Duration

	// Rate limiting (requests per minute per client, 0 = unlimited)
	RequestsPerMin int

	// Auth (optional, JWT_SECRET enables it)
	JWTSecret    string
	AuthUsername string
	AuthPassword string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:    envOr("METRICS_ADDR", ":9090"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		LogFormat:      envOr("LOG_FORMAT", "json"),
		VolumeRoot:     envOr("VOLUME_ROOT", "/data/volume"),
		WatchVolume:    envBool("WATCH_VOLUME", false),
		MaxUploadSize:  envInt64("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB default
		UploadExpiry:   envDuration("UPLOAD_EXPIRY", 24*time.Hour),
		RequestsPerMin: envInt("REQUESTS_PER_MINUTE", 0), // 0 = unlimited
		JWTSecret:      envOr("JWT_SECRET", ""),
		AuthUsername:   envOr("AUTH_USERNAME", ""),
		AuthPassword:   envOr("AUTH_PASSWORD", ""),
	}

	if cfg.VolumeRoot == "" {
		return nil, fmt.Errorf("VOLUME_ROOT is required")
	}
	if cfg.JWTSecret != "" && (cfg.AuthUsername == "" || cfg.AuthPassword == "") {
		return nil, fmt.Errorf("JWT_SECRET set but AUTH_USERNAME/AUTH_PASSWORD missing")
	}

	return cfg, nil
}

// AuthEnabled reports whether the optional auth layer is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
