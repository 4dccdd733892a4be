// Package config loads application configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultServerURL   = "http://localhost:5000"
	defaultHTTPTimeout = 30 * time.Second
)

// Config holds the annotator's settings. Zoom bounds and the minimum box
// size are the canvas configuration surface; the rest points the client at
// the annotation backend.
type Config struct {
	ServerURL      string `yaml:"server_url"`
	PrimaryModel   string `yaml:"primary_model"`
	SecondaryModel string `yaml:"secondary_model"`

	MinScale   float64 `yaml:"min_scale"`
	MaxScale   float64 `yaml:"max_scale"`
	MinBoxSize float64 `yaml:"min_box_size"`

	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
	LogLevel           string `yaml:"log_level"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		ServerURL:      defaultServerURL,
		PrimaryModel:   "yolo",
		SecondaryModel: "fewshot",
		MinScale:       0.1,
		MaxScale:       10.0,
		MinBoxSize:     0.01,
		LogLevel:       "info",
	}
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist. Environment variables override file values. A malformed
// file is an error; a missing one is not.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	envOverride(&cfg.ServerURL, "ANNOTATOR_SERVER_URL")
	envOverride(&cfg.PrimaryModel, "ANNOTATOR_PRIMARY_MODEL")
	envOverride(&cfg.SecondaryModel, "ANNOTATOR_SECONDARY_MODEL")
	envOverride(&cfg.LogLevel, "ANNOTATOR_LOG_LEVEL")
	envOverrideFloat(&cfg.MinBoxSize, "ANNOTATOR_MIN_BOX_SIZE")

	if cfg.MinScale <= 0 || cfg.MaxScale <= 0 || cfg.MinScale > cfg.MaxScale {
		d := Defaults()
		cfg.MinScale, cfg.MaxScale = d.MinScale, d.MaxScale
	}
	if cfg.MinBoxSize <= 0 {
		cfg.MinBoxSize = Defaults().MinBoxSize
	}
	return cfg, nil
}

// HTTPTimeout returns the configured backend timeout.
func (c Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds > 0 {
		return time.Duration(c.HTTPTimeoutSeconds) * time.Second
	}
	return defaultHTTPTimeout
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envOverrideFloat(target *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}
