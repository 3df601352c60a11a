// Package util provides configuration loading for Probe Doctor.
package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/supporttools/probe-doctor/pkg/types"
)

// LoadConfig loads configuration from a YAML or JSON file. The format is
// chosen by extension (.yaml, .yml, .json); anything else is tried as YAML
// first. Environment variables are substituted before parsing, defaults
// are applied, and the result is validated.
func LoadConfig(path string) (*types.ProbeDoctorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Substitute environment variables in the raw data before parsing so
	// ${VAR} works in non-string fields (e.g. port: ${PORT}).
	data = []byte(os.ExpandEnv(string(data)))

	var config types.ProbeDoctorConfig

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	case ".json":
		err = json.Unmarshal(data, &config)
	default:
		err = yaml.Unmarshal(data, &config)
		if err != nil {
			err = json.Unmarshal(data, &config)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// LoadConfigOrDefault loads configuration from a file, or returns the
// default configuration if the file does not exist.
func LoadConfigOrDefault(path string) (*types.ProbeDoctorConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig()
	}
	return LoadConfig(path)
}

// DefaultConfig returns a configuration suitable for monitoring a Zeek
// signature log in its default location.
func DefaultConfig() (*types.ProbeDoctorConfig, error) {
	config := &types.ProbeDoctorConfig{
		Metadata: types.ConfigMetadata{
			Name: "default",
		},
		Monitors: []types.MonitorConfig{
			{
				Name:    "zeek-signature",
				Type:    "zeek-signature",
				Enabled: true,
				Config: map[string]interface{}{
					"path":    "/opt/zeek/logs/current/signatures.log",
					"sigName": "ampt-probe",
				},
			},
		},
		Exporters: types.ExporterConfigs{
			Log: &types.LogExporterConfig{Enabled: true},
		},
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("default config validation failed: %w", err)
	}

	return config, nil
}

// SaveConfig writes configuration to a file, YAML or JSON by extension.
func SaveConfig(config *types.ProbeDoctorConfig, path string) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("unsupported file extension: %s (use .yaml, .yml, or .json)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateConfigFile parses and validates a configuration file without
// keeping the result.
func ValidateConfigFile(path string) error {
	_, err := LoadConfig(path)
	return err
}
