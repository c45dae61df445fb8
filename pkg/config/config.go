// Package config provides configuration structures and loading logic for
// the semcheck CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration for a live-check run.
type Config struct {
	Registry  RegistryConfig  `yaml:"registry"`
	Policies  PolicyConfig    `yaml:"policies"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RegistryConfig locates the resolved semantic-convention registry.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// PolicyConfig configures the policy advisor. Empty values select the
// embedded defaults.
type PolicyConfig struct {
	Dir          string `yaml:"dir"`
	Preprocessor string `yaml:"preprocessor"`
	Disabled     bool   `yaml:"disabled"`
}

// IngestConfig configures where samples come from.
type IngestConfig struct {
	Input           string `yaml:"input"`
	Format          string `yaml:"format"`
	OTLPGRPCAddress string `yaml:"otlp_grpc_address"`
}

// TelemetryConfig configures the checker's own metrics endpoint.
type TelemetryConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from a file and applies environment variable
// overrides. An empty path yields the defaults. Validation is the caller's
// step: flag overrides may still change the config after loading.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Ingest: IngestConfig{
			Format: "text",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("SEMCHECK_REGISTRY"); val != "" {
		cfg.Registry.Path = val
	}
	if val := os.Getenv("SEMCHECK_POLICY_DIR"); val != "" {
		cfg.Policies.Dir = val
	}
	if val := os.Getenv("SEMCHECK_PREPROCESSOR"); val != "" {
		cfg.Policies.Preprocessor = val
	}
	if val := os.Getenv("SEMCHECK_OTLP_GRPC"); val != "" {
		cfg.Ingest.OTLPGRPCAddress = val
	}
	if val := os.Getenv("SEMCHECK_METRICS_ADDR"); val != "" {
		cfg.Telemetry.MetricsAddress = val
	}
	if val := os.Getenv("SEMCHECK_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Ingest.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown ingest format %q", c.Ingest.Format)
	}
	return nil
}
