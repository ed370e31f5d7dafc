// Package config loads pharmsync configuration from the environment and an
// optional YAML config file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Remote record store
	APIURL     string
	APIToken   string
	APITimeout time.Duration

	// Binary object store (S3-compatible)
	S3Bucket   string
	S3Region   string
	S3Prefix   string
	S3Endpoint string // optional, for S3-compatible stores

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the YAML config file schema. Every field is optional;
// set values override environment defaults.
type fileConfig struct {
	APIURL     string `yaml:"api_url"`
	APIToken   string `yaml:"api_token"`
	APITimeout string `yaml:"api_timeout"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Prefix   string `yaml:"s3_prefix"`
	S3Endpoint string `yaml:"s3_endpoint"`
	LogFile    string `yaml:"log_file"`
	LogLevel   string `yaml:"log_level"`
}

// Load reads configuration from environment variables, then applies the
// config file at path (if non-empty) on top.
func Load(path string) (Config, error) {
	cfg := Config{
		APIURL:     os.Getenv("PHARMSYNC_API_URL"),
		APIToken:   os.Getenv("PHARMSYNC_API_TOKEN"),
		APITimeout: parseTimeout(os.Getenv("PHARMSYNC_API_TIMEOUT")),

		S3Bucket:   os.Getenv("PHARMSYNC_S3_BUCKET"),
		S3Region:   getEnv("PHARMSYNC_S3_REGION", "us-east-1"),
		S3Prefix:   getEnv("PHARMSYNC_S3_PREFIX", "screenshots"),
		S3Endpoint: os.Getenv("PHARMSYNC_S3_ENDPOINT"),

		LogFile:  getEnv("PHARMSYNC_LOG_FILE", "pharmsync.log"),
		LogLevel: parseLogLevel(getEnv("PHARMSYNC_LOG_LEVEL", "INFO")),
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	if fc.APIURL != "" {
		cfg.APIURL = fc.APIURL
	}
	if fc.APIToken != "" {
		cfg.APIToken = fc.APIToken
	}
	if fc.APITimeout != "" {
		cfg.APITimeout = parseTimeout(fc.APITimeout)
	}
	if fc.S3Bucket != "" {
		cfg.S3Bucket = fc.S3Bucket
	}
	if fc.S3Region != "" {
		cfg.S3Region = fc.S3Region
	}
	if fc.S3Prefix != "" {
		cfg.S3Prefix = fc.S3Prefix
	}
	if fc.S3Endpoint != "" {
		cfg.S3Endpoint = fc.S3Endpoint
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(fc.LogLevel)
	}
	return cfg, nil
}

// Validate checks that everything a fresh import run needs is present.
// It runs before any remote call so credential problems surface as
// configuration errors, not mid-pipeline failures.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("remote store URL not configured (PHARMSYNC_API_URL)")
	}
	if c.APIToken == "" {
		return fmt.Errorf("remote store token not configured (PHARMSYNC_API_TOKEN)")
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("object store bucket not configured (PHARMSYNC_S3_BUCKET)")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// parseTimeout defaults to 5 minutes: screenshot uploads over slow links
// need a multi-minute ceiling.
func parseTimeout(s string) time.Duration {
	if s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return 5 * time.Minute
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
