// Package config loads the daemon configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config filename looked up when no path is given.
const DefaultConfigFile = "config.yaml"

const (
	defaultServerAddr = ":8317"
	defaultDatabase   = "bundld.db"
	defaultJWTExpiry  = 24 * time.Hour
	defaultLogLevel   = "info"
)

// AppConfig carries process-level flags resolved before the config file is read.
type AppConfig struct {
	ConfigPath string
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// IngestToken, when set, is required as a bearer token on the ingest
	// endpoint. The admin API always requires a JWT.
	IngestToken string `yaml:"ingest-token"`
}

// DatabaseConfig holds the backing store DSN.
type DatabaseConfig struct {
	// DSN accepts a SQLite file path or a postgres:// URL.
	DSN string `yaml:"dsn"`
}

// AuthConfig holds admin token signing settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt-secret"`
	JWTExpiry time.Duration `yaml:"jwt-expiry"`
}

// WebhookConfig points summary delivery at an external notifier.
type WebhookConfig struct {
	// URL receives summary payloads. Empty means summaries are logged only.
	URL string `yaml:"url"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"`
	// File enables rotating file output alongside stdout when set.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Log      LogConfig      `yaml:"log"`
	// AppLabels seeds the package-to-display-name inventory.
	AppLabels map[string]string `yaml:"app-labels"`
}

// ResolveConfigPath returns the config file path to use. An explicit path
// wins; otherwise WRITABLE_PATH is consulted before the working directory.
func ResolveConfigPath(explicit string) string {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		return filepath.Clean(explicit)
	}
	for _, key := range []string{"WRITABLE_PATH", "writable_path"} {
		if value, ok := os.LookupEnv(key); ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return filepath.Join(filepath.Clean(trimmed), DefaultConfigFile)
			}
		}
	}
	return DefaultConfigFile
}

// Load reads and validates the configuration file. A missing file yields the
// defaults so a fresh install can start without one.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = defaultServerAddr
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		c.Database.DSN = defaultDatabase
	}
	if c.Auth.JWTExpiry <= 0 {
		c.Auth.JWTExpiry = defaultJWTExpiry
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 20
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}
}

// Validate checks settings that cannot fall back to a default.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("config: auth.jwt-secret is required")
	}
	if c.Webhook.URL != "" && !strings.HasPrefix(c.Webhook.URL, "http://") && !strings.HasPrefix(c.Webhook.URL, "https://") {
		return fmt.Errorf("config: webhook.url must be an http(s) URL")
	}
	return nil
}

// LoadDatabaseDSN reads only the database DSN from the config file.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, err := Load(path)
	if err != nil {
		return "", err
	}
	return cfg.Database.DSN, nil
}

// ParseLogLevel maps a config string onto a logrus level, defaulting to info.
func ParseLogLevel(level string) log.Level {
	parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return parsed
}
