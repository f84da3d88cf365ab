// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads planner configuration from YAML with PLANNER_*
// environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// MaxFileSize bounds the YAML file read by Load.
	MaxFileSize = 1024 * 1024

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PLANNER_"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

//go:embed defaults.yaml
var defaultYAML []byte

// Config is the complete planner configuration.
type Config struct {
	Allocation  AllocationConfig  `yaml:"allocation" envPrefix:"ALLOCATION_"`
	Spatial     SpatialConfig     `yaml:"spatial" envPrefix:"SPATIAL_"`
	Search      SearchConfig      `yaml:"search" envPrefix:"SEARCH_"`
	Dataset     DatasetConfig     `yaml:"dataset" envPrefix:"DATASET_"`
	Persistence PersistenceConfig `yaml:"persistence" envPrefix:"PERSISTENCE_"`
	Logging     LoggingConfig     `yaml:"logging" envPrefix:"LOG_"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// AllocationConfig sizes the allocation store.
type AllocationConfig struct {
	MaxPoints    int `yaml:"max_points" env:"MAX_POINTS" validate:"gte=1"`
	HistoryDepth int `yaml:"history_depth" env:"HISTORY_DEPTH" validate:"gte=1,lte=10000"`
}

// SpatialConfig tunes the spatial index.
type SpatialConfig struct {
	NodeRadius    float64 `yaml:"node_radius" env:"NODE_RADIUS" validate:"gt=0"`
	NearestWindow float64 `yaml:"nearest_window" env:"NEAREST_WINDOW" validate:"gt=0"`
}

// SearchConfig tunes node search.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" env:"DEFAULT_LIMIT" validate:"gte=1"`
	CacheSize    int `yaml:"cache_size" env:"CACHE_SIZE" validate:"gte=1"`
}

// DatasetConfig lists dataset sources in fallback order.
//
// Source URIs: a plain path or file://, http(s)://, s3://bucket/key,
// gs://bucket/object, or "embedded" for the bundled seed.
type DatasetConfig struct {
	Sources        []string      `yaml:"sources" env:"SOURCES" envSeparator:"," validate:"min=1,dive,required"`
	Watch          bool          `yaml:"watch" env:"WATCH"`
	ReloadInterval time.Duration `yaml:"reload_interval" env:"RELOAD_INTERVAL" validate:"gte=0"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT" validate:"gt=0"`
	Synthesize     bool          `yaml:"synthesize" env:"SYNTHESIZE"`
	S3             S3Config      `yaml:"s3" envPrefix:"S3_"`
	GCS            GCSConfig     `yaml:"gcs" envPrefix:"GCS_"`
}

// S3Config configures the S3 source client.
type S3Config struct {
	Region    string `yaml:"region" env:"REGION"`
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	PathStyle bool   `yaml:"path_style" env:"PATH_STYLE"`
}

// GCSConfig configures the GCS source client.
type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file" env:"CREDENTIALS_FILE"`
}

// PersistenceConfig selects the build store backend.
type PersistenceConfig struct {
	Driver string `yaml:"driver" env:"DRIVER" validate:"oneof=memory badger sqlite postgres"`
	Path   string `yaml:"path" env:"PATH" validate:"required_if=Driver badger,required_if=Driver sqlite"`
	DSN    string `yaml:"dsn" env:"DSN" validate:"required_if=Driver postgres"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"FORMAT" validate:"omitempty,oneof=text json"`
	Dir    string `yaml:"dir" env:"DIR"`
}

// TelemetryConfig selects trace and metric exporters.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" env:"TRACE_EXPORTER" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" env:"METRIC_EXPORTER" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT" validate:"required_if=TraceExporter otlp"`
	MetricsAddr    string `yaml:"metrics_addr" env:"METRICS_ADDR"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}
	return &cfg, nil
}

// Load builds the effective configuration.
//
// # Description
//
// Starts from the embedded defaults, overlays the YAML file at path (if
// path is non-empty), then applies PLANNER_* environment variables and
// validates the result. Keys absent from the file keep their defaults.
//
// # Outputs
//
//   - *Config: The validated configuration.
//   - error: File, parse or validation failure. Validation errors wrap
//     ErrInvalidConfig.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat config: %w", err)
		}
		if info.Size() > MaxFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling YAML: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
