// Package config loads envvaultd configuration.
// Precedence (lowest to highest): Defaults, YAML file, environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/org/envvault/internal/shellsync"
	"github.com/org/envvault/internal/storage"
)

// Config is the daemon configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir" validate:"required"`
	KeyFile   string          `yaml:"key_file"`
	LogLevel  string          `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	Storage   StorageConfig   `yaml:"storage"`
	ShellSync ShellSyncConfig `yaml:"shell_sync"`
	API       APIConfig       `yaml:"api"`
	Audit     AuditConfig     `yaml:"audit"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	// DSN is the SQLite file path or the PostgreSQL URL.
	DSN string `yaml:"dsn" validate:"required_if=Driver postgres"`
}

type ShellSyncConfig struct {
	Path        string   `yaml:"path" validate:"required"`
	Watch       bool     `yaml:"watch"`
	InstallHook bool     `yaml:"install_hook"`
	Profiles    []string `yaml:"profiles"`
}

type APIConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"required,loopback_addr"`
	TokenFile  string `yaml:"token_file"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit int `yaml:"rate_limit" validate:"gte=0"`
}

type AuditConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	Disabled   bool   `yaml:"disabled"`
}

// Defaults returns a Config for a single-user install.
func Defaults() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		LogLevel: "info",
		Storage:  StorageConfig{Driver: storage.DriverSQLite},
		ShellSync: ShellSyncConfig{
			Path:     shellsync.DefaultPath,
			Watch:    true,
			Profiles: shellsync.DefaultProfiles,
		},
		API: APIConfig{
			ListenAddr: "127.0.0.1:7654",
			RateLimit:  50,
		},
		Audit: AuditConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// DefaultDataDir is the per-user application data directory.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "com.envvault.EnvVault")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "envvault", "EnvVault", "data")
		}
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "envvault")
	}
	return filepath.Join(home, ".local", "share", "envvault")
}

// DefaultPath is where the config file is looked up when ENVVAULT_CONFIG is
// not set.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "envvault", "config.yaml")
}

// GetenvPresent wraps os.LookupEnv for FromEnv.
func GetenvPresent(name string) (string, bool) { return os.LookupEnv(name) }

// Load builds the configuration from defaults, the YAML file at path (a
// missing file is not an error) and the environment, then validates it.
func Load(path string, getenv func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := FromEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	cfg.fillDerived()
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv overlays ENVVAULT_* variables (and DATABASE_URL) onto cfg.
func FromEnv(cfg *Config, getenv func(string) (string, bool)) error {
	if cfg == nil {
		return fmt.Errorf("nil config passed to FromEnv")
	}
	strVars := []struct {
		env string
		dst *string
	}{
		{"ENVVAULT_DATA_DIR", &cfg.DataDir},
		{"ENVVAULT_STORAGE_DRIVER", &cfg.Storage.Driver},
		{"ENVVAULT_DSN", &cfg.Storage.DSN},
		{"ENVVAULT_LISTEN_ADDR", &cfg.API.ListenAddr},
		{"ENVVAULT_FILE", &cfg.ShellSync.Path},
		{"ENVVAULT_LOG_LEVEL", &cfg.LogLevel},
	}
	for _, sv := range strVars {
		if v, ok := getenv(sv.env); ok {
			*sv.dst = v
		}
	}
	// DATABASE_URL is only honoured for postgres and never beats ENVVAULT_DSN.
	if v, ok := getenv("DATABASE_URL"); ok && cfg.Storage.Driver == storage.DriverPostgres {
		if _, set := getenv("ENVVAULT_DSN"); !set {
			cfg.Storage.DSN = v
		}
	}
	if v, ok := getenv("ENVVAULT_SHELL_WATCH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENVVAULT_SHELL_WATCH: %w", err)
		}
		cfg.ShellSync.Watch = b
	}
	return nil
}

func (c *Config) fillDerived() {
	if c.Storage.Driver == storage.DriverSQLite && c.Storage.DSN == "" {
		c.Storage.DSN = filepath.Join(c.DataDir, "vault.db")
	}
	if c.KeyFile == "" {
		c.KeyFile = filepath.Join(c.DataDir, "vault.key")
	}
	if c.API.TokenFile == "" {
		c.API.TokenFile = filepath.Join(c.DataDir, "api.token")
	}
	if c.Audit.File == "" {
		c.Audit.File = filepath.Join(c.DataDir, "audit.log")
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("loopback_addr", validLoopbackAddr); err != nil {
		panic(err)
	}
	return v
}

// Validate checks cfg against its struct tags.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// validLoopbackAddr accepts host:port where host is a loopback IP or
// "localhost".
func validLoopbackAddr(fl validator.FieldLevel) bool {
	host, portStr, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
