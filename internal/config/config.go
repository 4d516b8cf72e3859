// Package config loads runtime configuration
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/fnuworsu/gqldb/pkg/storage"
)

// EnvPrefix marks environment variables read as configuration.
// GQL_DATA_DIR sets data.dir.
const EnvPrefix = "GQL_"

// Storage backends
const (
	BackendMemory = storage.BackendMemory
	BackendWAL    = storage.BackendWAL
	BackendSQLite = storage.BackendSQLite
)

type Config struct {
	Data  DataConfig  `mapstructure:"data"`
	Log   LogConfig   `mapstructure:"log"`
	Batch BatchConfig `mapstructure:"batch"`
}

type DataConfig struct {
	Dir     string `mapstructure:"dir"`
	Backend string `mapstructure:"backend"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "./data")
	v.SetDefault("data.backend", BackendMemory)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("batch.workers", 4)
}

// Load reads defaults, then the config file at path, then GQL_ environment
// variables. An empty path skips the file; a missing file is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Walk the environment instead of AutomaticEnv so Unmarshal sees the keys
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		prop := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, EnvPrefix), "_", "."))
		v.Set(prop, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have a fixed set of choices
func (c *Config) Validate() error {
	switch c.Data.Backend {
	case BackendMemory, BackendWAL, BackendSQLite:
	default:
		return fmt.Errorf("unknown data.backend %q", c.Data.Backend)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	return nil
}
