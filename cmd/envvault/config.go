package main

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/org/envvault/internal/config"
)

// CLIConfig is the persistent CLI configuration.
type CLIConfig struct {
	Address   string `yaml:"address"`
	Token     string `yaml:"token,omitempty"`
	TokenFile string `yaml:"token_file,omitempty"`
}

var cfg CLIConfig

// configPath returns the path to the CLI config file.
func configPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".envvault-cli", "config.yaml")
}

// loadConfig loads the CLI config from disk.
func loadConfig() {
	cfg = CLIConfig{
		Address:   "http://127.0.0.1:7654",
		TokenFile: filepath.Join(config.DefaultDataDir(), "api.token"),
	}
	data, err := os.ReadFile(configPath())
	if err != nil {
		return // Use defaults
	}
	yaml.Unmarshal(data, &cfg) //nolint:errcheck
}

// saveConfig persists the CLI config to disk.
func saveConfig() error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// resolveToken picks the API token: ENVVAULT_TOKEN, then the config file,
// then the daemon's token file.
func resolveToken() string {
	if v := os.Getenv("ENVVAULT_TOKEN"); v != "" {
		return v
	}
	if cfg.Token != "" {
		return cfg.Token
	}
	data, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
