// Package config loads runpack settings from defaults, an optional config
// file and RUNPACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/provide-io/flavor/go/runpack/pkg/logging"
	"github.com/provide-io/flavor/go/runpack/pkg/utils/permissions"
)

const (
	// AppName is the application name.
	AppName = "runpack"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "runpack"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "RUNPACK"
)

// Output formats for the read command.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputTOML = "toml"
)

// Config holds the resolved settings.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
	LogPath  string `mapstructure:"log_path"`
	Output   string `mapstructure:"output"`
	Mode     string `mapstructure:"mode"`
	Loader   string `mapstructure:"loader"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: logging.DefaultLevel,
		Output:   OutputText,
		Mode:     permissions.FormatOctal(permissions.DefaultExecutablePerms),
	}
}

// FileMode parses Mode.
func (c *Config) FileMode() (fs.FileMode, error) {
	return permissions.ParseOctalString(c.Mode, permissions.DefaultExecutablePerms)
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Output {
	case OutputText, OutputJSON, OutputTOML:
	default:
		return fmt.Errorf("invalid output %q: want %s, %s or %s", c.Output, OutputText, OutputJSON, OutputTOML)
	}
	if _, err := c.FileMode(); err != nil {
		return fmt.Errorf("invalid mode: %w", err)
	}
	return nil
}

// LoadOptions selects where configuration comes from.
type LoadOptions struct {
	// ConfigFile is used exclusively when set; it must exist.
	ConfigFile string
	// ConfigDir replaces the platform config directory.
	ConfigDir string
}

// Load resolves the configuration and returns it with the path of the file
// it was read from, or "" when only defaults and environment applied.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_json", defaults.LogJSON)
	v.SetDefault("log_path", defaults.LogPath)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("mode", defaults.Mode)
	v.SetDefault("loader", defaults.Loader)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// RUNPACK_JSON_LOG is the name the logger has always read.
	if err := v.BindEnv("log_json", EnvPrefix+"_LOG_JSON", logging.EnvJSONLog); err != nil {
		return nil, "", err
	}

	resolvedPath := ""
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, "", fmt.Errorf("config file not found: %w", err)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", opts.ConfigFile, err)
		}
		resolvedPath = opts.ConfigFile
	} else {
		dir := opts.ConfigDir
		if dir == "" {
			dir = ConfigDir()
		}
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, "", fmt.Errorf("failed to read config: %w", err)
			}
			// If no config file found, use defaults (no error)
		} else {
			resolvedPath = v.ConfigFileUsed()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Output = strings.ToLower(strings.TrimSpace(cfg.Output))

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolvedPath, nil
}
