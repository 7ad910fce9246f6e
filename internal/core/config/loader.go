package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	for i := range cfg.Branches {
		if cfg.Branches[i].PollInterval == 0 {
			cfg.Branches[i].PollInterval = 60 * time.Second
		}
	}

	if cfg.Selection.HighConfidence == 0 {
		cfg.Selection.HighConfidence = 0.8
	}
	if cfg.Selection.RetryAttempts == 0 {
		cfg.Selection.RetryAttempts = 3
	}
	if cfg.Selection.RetryInterval == 0 {
		cfg.Selection.RetryInterval = 10 * time.Second
	}
	if cfg.Selection.RetryTimeout == 0 {
		cfg.Selection.RetryTimeout = 9 * time.Minute
	}

	return &cfg, nil
}
