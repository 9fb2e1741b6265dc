// Package config loads application configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Patchstorage PatchstorageConfig `mapstructure:"patchstorage"`
	Download     DownloadConfig     `mapstructure:"download"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// PatchstorageConfig holds Patchstorage API client configuration.
type PatchstorageConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Timeout        int    `mapstructure:"timeout"` // seconds
	PageSize       int    `mapstructure:"page_size"`
	RequestDelayMS int    `mapstructure:"request_delay_ms"`
}

// RequestDelay returns the politeness delay between page requests.
func (c *PatchstorageConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

// DownloadConfig holds download writer configuration.
type DownloadConfig struct {
	OutputDir    string `mapstructure:"output_dir"`
	Concurrency  int    `mapstructure:"concurrency"`
	Timeout      int    `mapstructure:"timeout"` // seconds
	SkipExisting bool   `mapstructure:"skip_existing"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Patchstorage: PatchstorageConfig{
			BaseURL:        "https://patchstorage.com/api/beta",
			Timeout:        30,
			PageSize:       100,
			RequestDelayMS: 250,
		},
		Download: DownloadConfig{
			OutputDir:   "out",
			Concurrency: 1,
			Timeout:     60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.patchpull")
	}

	v.SetEnvPrefix("PATCHPULL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("patchstorage.base_url", "https://patchstorage.com/api/beta")
	v.SetDefault("patchstorage.timeout", 30)
	v.SetDefault("patchstorage.page_size", 100)
	v.SetDefault("patchstorage.request_delay_ms", 250)

	v.SetDefault("download.output_dir", "out")
	v.SetDefault("download.concurrency", 1)
	v.SetDefault("download.timeout", 60)
	v.SetDefault("download.skip_existing", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
}
