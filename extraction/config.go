package extraction

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nashrakhan-aithon/service1-text-extraction/storage"
)

// ServiceConfig holds the full service configuration.
type ServiceConfig struct {
	Listen                 string         `yaml:"listen"`
	DBPath                 string         `yaml:"db_path"`
	Output                 storage.Config `yaml:"output"`
	Workers                int            `yaml:"workers"`
	DocumentTimeoutSeconds int            `yaml:"document_timeout_seconds"`
	ProgressTTLSeconds     int            `yaml:"progress_ttl_seconds"`
	DefaultPDFPassword     string         `yaml:"default_pdf_password"`
}

// DefaultServiceConfig returns sane defaults.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Listen:                 ":8085",
		DBPath:                 "service1.db",
		Output:                 storage.Config{Location: "extracted"},
		Workers:                5,
		DocumentTimeoutSeconds: 600,
		ProgressTTLSeconds:     300,
	}
}

// LoadServiceConfig reads and parses a YAML config file. Returns
// DefaultServiceConfig merged with the file.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	cfg := DefaultServiceConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *ServiceConfig) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Output.Location == "" {
		return fmt.Errorf("output.location is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.DocumentTimeoutSeconds <= 0 {
		return fmt.Errorf("document_timeout_seconds must be > 0")
	}
	if c.ProgressTTLSeconds <= 0 {
		return fmt.Errorf("progress_ttl_seconds must be > 0")
	}
	return nil
}

// DocumentTimeout returns the per-document deadline.
func (c *ServiceConfig) DocumentTimeout() time.Duration {
	return time.Duration(c.DocumentTimeoutSeconds) * time.Second
}

// ProgressTTL returns how long finished batches stay pollable.
func (c *ServiceConfig) ProgressTTL() time.Duration {
	return time.Duration(c.ProgressTTLSeconds) * time.Second
}
