// Package config loads the service configuration from a yaml file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the catalog service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Notion  NotionConfig  `yaml:"notion"`
	Cache   CacheConfig   `yaml:"cache"`
	Content ContentConfig `yaml:"content"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// NotionConfig configures the upstream workspace API client.
type NotionConfig struct {
	Token             string  `yaml:"token"`
	AppsDatabaseID    string  `yaml:"apps_database_id"`
	BaseURL           string  `yaml:"base_url"`
	Version           string  `yaml:"version"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// CacheConfig holds the per-tier time-to-live values.
type CacheConfig struct {
	SchemaTTL    time.Duration `yaml:"schema_ttl"`
	PagesTTL     time.Duration `yaml:"pages_ttl"`
	SummariesTTL time.Duration `yaml:"summaries_ttl"`
	ParsedTTL    time.Duration `yaml:"parsed_ttl"`
	DetailTTL    time.Duration `yaml:"detail_ttl"`
	MissTTL      time.Duration `yaml:"miss_ttl"`
}

// ContentConfig tunes the block traversal.
type ContentConfig struct {
	TraversalConcurrency int    `yaml:"traversal_concurrency"`
	RefreshSchedule      string `yaml:"refresh_schedule"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Notion: NotionConfig{
			BaseURL:           "https://api.notion.com",
			Version:           "2022-06-28",
			RequestsPerSecond: 3,
		},
		Cache: CacheConfig{
			SchemaTTL:    6 * time.Hour,
			PagesTTL:     15 * time.Minute,
			SummariesTTL: 15 * time.Minute,
			ParsedTTL:    time.Hour,
			DetailTTL:    15 * time.Minute,
			MissTTL:      30 * time.Second,
		},
		Content: ContentConfig{
			TraversalConcurrency: 3,
			RefreshSchedule:      "@every 10m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads configuration from path, layered over defaults, then applies
// environment overrides. An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("EHVM_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("EHVM_NOTION_TOKEN"); v != "" {
		c.Notion.Token = v
	}
	if v := os.Getenv("EHVM_APPS_DB_ID"); v != "" {
		c.Notion.AppsDatabaseID = v
	}
	if v := os.Getenv("EHVM_NOTION_BASE_URL"); v != "" {
		c.Notion.BaseURL = v
	}
	if v := os.Getenv("EHVM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EHVM_TRAVERSAL_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Content.TraversalConcurrency = n
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Notion.BaseURL == "" {
		return fmt.Errorf("notion.base_url is required")
	}
	if c.Content.TraversalConcurrency < 1 {
		return fmt.Errorf("content.traversal_concurrency must be positive")
	}
	return nil
}
