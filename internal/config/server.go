package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ServerConfig is the runtime configuration of the analysis server.
type ServerConfig struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	DatasetPath  string `mapstructure:"dataset_path"`
	DatabasePath string `mapstructure:"database_path"`
	TuningPath   string `mapstructure:"tuning_path"`
}

// LoadServerConfig reads the server configuration. When path is empty only
// defaults and YIELD_REPORT_* environment variables apply.
func LoadServerConfig(path string) (*ServerConfig, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("dataset_path", "")
	v.SetDefault("database_path", "")
	v.SetDefault("tuning_path", DefaultConfigPath)

	v.SetEnvPrefix("YIELD_REPORT")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read server config: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the server configuration for consistency.
func (c *ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.DatasetPath == "" && c.DatabasePath == "" {
		return fmt.Errorf("either dataset_path or database_path is required")
	}
	if c.DatasetPath != "" && c.DatabasePath != "" {
		return fmt.Errorf("dataset_path and database_path are mutually exclusive")
	}
	return nil
}
