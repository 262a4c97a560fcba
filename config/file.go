package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SearchFileConfig is the search section of the config file. Durations are
// strings in time.ParseDuration form (e.g. "6s", "100ms").
type SearchFileConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	BeginDate  string `yaml:"begin_date"`
	EndDate    string `yaml:"end_date"`
	PageSize   int    `yaml:"page_size"`
	Interval   string `yaml:"interval"`
	MaxPages   int    `yaml:"max_pages"`
	MaxRetries *int   `yaml:"max_retries"`
	RetryDelay string `yaml:"retry_delay"`
	Timeout    string `yaml:"timeout"`
}

// StorageConfig represents storage configuration from config file.
type StorageConfig struct {
	Reports struct {
		DSN string `yaml:"dsn"`
	} `yaml:"reports"`
}

// LoggingConfig represents logging configuration from config file.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig represents HTTP server configuration from config file.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// FileConfig represents the structure of ~/.deskstats/config.yaml.
type FileConfig struct {
	Search  SearchFileConfig `yaml:"search"`
	Storage StorageConfig    `yaml:"storage"`
	Logging LoggingConfig    `yaml:"logging"`
	Server  ServerConfig     `yaml:"server"`
}

// ConfigPath returns the location of the config file.
func ConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".deskstats", "config.yaml"), nil
}

// LoadConfigFile loads configuration from ~/.deskstats/config.yaml. Returns
// nil if the file doesn't exist (not an error). Returns error if the file
// exists but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFileFrom(configPath)
}

// LoadConfigFileFrom loads configuration from the given path with the same
// rules as LoadConfigFile.
func LoadConfigFileFrom(configPath string) (*FileConfig, error) {
	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}
