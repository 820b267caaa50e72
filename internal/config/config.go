// Package config loads costscope's workspace configuration from
// .costscope/config.toml, with sensible defaults when the file is absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"costscope/internal/store"
)

// Config is the complete costscope configuration.
type Config struct {
	Scanner    ScannerConfig    `json:"scanner" mapstructure:"scanner"`
	Classifier ClassifierConfig `json:"classifier" mapstructure:"classifier"`
	Indexer    IndexerConfig    `json:"indexer" mapstructure:"indexer"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// ScannerConfig controls workspace enumeration.
type ScannerConfig struct {
	Extensions []string `json:"extensions" mapstructure:"extensions"`
	Excludes   []string `json:"excludes" mapstructure:"excludes"`
	MaxWorkers int      `json:"maxWorkers" mapstructure:"maxWorkers"`
}

// ClassifierConfig controls classification strategy and oracle access.
type ClassifierConfig struct {
	Mode           string `json:"mode" mapstructure:"mode"` // quick | remote
	Endpoint       string `json:"endpoint" mapstructure:"endpoint"`
	TokenEnv       string `json:"tokenEnv" mapstructure:"tokenEnv"`
	BatchSize      int    `json:"batchSize" mapstructure:"batchSize"`
	MaxRetries     int    `json:"maxRetries" mapstructure:"maxRetries"`
	TimeoutMs      int    `json:"timeoutMs" mapstructure:"timeoutMs"`
	SignaturesPath string `json:"signaturesPath" mapstructure:"signaturesPath"`
}

// IndexerConfig controls the orchestrator.
type IndexerConfig struct {
	MaxWorkers int `json:"maxWorkers" mapstructure:"maxWorkers"`
}

// LoggingConfig controls diagnostics.
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Scanner: ScannerConfig{
			Extensions: []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".py"},
			MaxWorkers: 8,
		},
		Classifier: ClassifierConfig{
			Mode:       "quick",
			TokenEnv:   "COSTSCOPE_ORACLE_TOKEN",
			BatchSize:  50,
			MaxRetries: 3,
			TimeoutMs:  30000,
		},
		Indexer: IndexerConfig{
			MaxWorkers: 8,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the workspace configuration. A missing file yields defaults;
// a malformed file is an error.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, store.StateDir, "config.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// OracleToken resolves the oracle bearer token from the configured
// environment variable. Empty when unset.
func (c *Config) OracleToken() string {
	if c.Classifier.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Classifier.TokenEnv)
}
