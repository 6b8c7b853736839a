// Package config holds the explicitly constructed configuration handed down
// to the storage engine. There is no process-wide mutable configuration
// singleton: callers build a Config (from the environment or a YAML file) and
// pass it on.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	LogLevel string      `yaml:"log_level"`
	Store    StoreConfig `yaml:"store"`
}

// StoreConfig selects and parameterizes the artifact store backend.
type StoreConfig struct {
	Driver string   `yaml:"driver"` // fs | s3 | memory
	FS     FSConfig `yaml:"fs"`
	S3     S3Config `yaml:"s3"`
}

// FSConfig configures the local workspace backend.
type FSConfig struct {
	Root string `yaml:"root"`
}

// S3Config configures the object store backend.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("", "debug", "info", "warn", "error")),
	); err != nil {
		return err
	}
	return c.Store.Validate()
}

// Validate checks the store configuration.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In("fs", "s3", "memory")),
	); err != nil {
		return err
	}
	if c.Driver == "s3" {
		return validation.ValidateStruct(&c.S3,
			validation.Field(&c.S3.Bucket, validation.Required),
		)
	}
	return nil
}

// SlogLevel maps the configured level name onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewDefault returns a Config with development defaults.
func NewDefault() *Config {
	return &Config{
		LogLevel: "info",
		Store: StoreConfig{
			Driver: "fs",
			FS:     FSConfig{Root: "./workspace"},
		},
	}
}

// Environment variables:
//
//	HMSE_STORE_DRIVER        fs|s3|memory (default fs)
//	HMSE_FS_ROOT             workspace root when driver=fs
//	HMSE_S3_BUCKET           bucket (required for s3)
//	HMSE_S3_REGION           region (default us-east-1)
//	HMSE_S3_ENDPOINT         custom endpoint, e.g. MinIO
//	HMSE_S3_ACCESS_KEY       static credentials (optional)
//	HMSE_S3_SECRET_KEY
//	HMSE_S3_PATH_STYLE       true|false
//	HMSE_LOG_LEVEL           debug|info|warn|error

// FromEnv builds a Config from process environment, starting from defaults.
func FromEnv() *Config {
	cfg := NewDefault()
	if v := os.Getenv("HMSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HMSE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("HMSE_FS_ROOT"); v != "" {
		cfg.Store.FS.Root = v
	}
	cfg.Store.S3 = S3Config{
		Bucket:          os.Getenv("HMSE_S3_BUCKET"),
		Region:          os.Getenv("HMSE_S3_REGION"),
		Endpoint:        os.Getenv("HMSE_S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("HMSE_S3_ACCESS_KEY"),
		SecretAccessKey: os.Getenv("HMSE_S3_SECRET_KEY"),
		PathStyle:       strings.EqualFold(os.Getenv("HMSE_S3_PATH_STYLE"), "true"),
	}
	return cfg
}

// Load reads a YAML file over the given base config, expanding ${VAR}
// references from the environment before parsing.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg.Validate()
}
