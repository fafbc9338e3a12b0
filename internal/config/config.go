package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Built-in defaults, shared with the fallback path when loading fails.
const (
	DefaultServiceURL     = "http://127.0.0.1:8450"
	DefaultCategoryName   = "QLF"
	DefaultHTTPTimeoutSec = 60
)

// Global configuration structure.
type Global struct {
	ServiceURL      string `mapstructure:"service_url" yaml:"service_url"`
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	DefaultCategory string `mapstructure:"default_category" yaml:"default_category"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir"`
	HTTPTimeoutSec  int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	LogLevel        string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat       string `mapstructure:"log_format" yaml:"log_format"`
}

// Default returns the built-in configuration used when neither a config file
// nor environment overrides are available.
func Default() *Global {
	return &Global{
		ServiceURL:      DefaultServiceURL,
		DefaultCategory: DefaultCategoryName,
		OutputDir:       ".",
		HTTPTimeoutSec:  DefaultHTTPTimeoutSec,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Save writes the given configuration to the cfgFile path. If cfgFile is
// empty, it writes to ~/.plotdesk/config.yaml, creating the directory if
// necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".plotdesk")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("PLOTDESK")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("service_url", DefaultServiceURL)
	v.SetDefault("api_key", "")
	v.SetDefault("default_category", DefaultCategoryName)
	v.SetDefault("output_dir", ".")
	v.SetDefault("http_timeout_sec", DefaultHTTPTimeoutSec)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".plotdesk")
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
