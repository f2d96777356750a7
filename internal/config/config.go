// Package config loads the process configuration from flags,
// environment, and a rove.yaml file, via viper. The connector
// declarations nested inside rove.yaml are parsed separately with
// goccy/go-yaml (see catalog.go), which handles the nested option
// bags directly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved process configuration.
type Config struct {
	ListenAddress    string        `mapstructure:"listen_address"`
	OpsListenAddress string        `mapstructure:"ops_listen_address"`
	IOPoolSize       int           `mapstructure:"io_pool_size"`
	ComputePoolSize  int           `mapstructure:"compute_pool_size"`
	RequestDeadline  time.Duration `mapstructure:"request_deadline"`
	CatalogFile      string        `mapstructure:"catalog_file"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
}

// ConfigDir is the directory viper searches for rove.yaml.
const ConfigDir = "$HOME/.config/rove"

// Defaults returns the zero-config process configuration: io pool =
// 2xCPU, compute pool = CPU, deadline = 60s.
func Defaults() Config {
	return Config{
		ListenAddress:    "127.0.0.1:50061",
		OpsListenAddress: "127.0.0.1:50062",
		IOPoolSize:       2 * runtime.NumCPU(),
		ComputePoolSize:  runtime.NumCPU(),
		RequestDeadline:  60 * time.Second,
		CatalogFile:      "rove.yaml",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load reads rove.yaml (if present) plus ROVE_-prefixed environment
// variables into a Config, falling back to Defaults for anything
// unset. cfgFile overrides the search path when non-empty.
func Load(cfgFile string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("rove")
	v.AutomaticEnv()

	v.SetDefault("listen_address", cfg.ListenAddress)
	v.SetDefault("ops_listen_address", cfg.OpsListenAddress)
	v.SetDefault("io_pool_size", cfg.IOPoolSize)
	v.SetDefault("compute_pool_size", cfg.ComputePoolSize)
	v.SetDefault("request_deadline", cfg.RequestDeadline)
	v.SetDefault("catalog_file", cfg.CatalogFile)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(ConfigDir)
		v.AddConfigPath(".")
		v.SetConfigName("rove")
		v.SetConfigType("yaml")
	}

	// A missing config file is fine in both modes: viper reports
	// ConfigFileNotFoundError from a search-path miss and fs.ErrNotExist
	// from an explicit path miss.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read rove.yaml: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
