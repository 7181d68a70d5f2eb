// Package config loads the server configuration from file, environment and
// defaults.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags applied by the caller
//  2. Environment variables (HIOLOAD_*, e.g. HIOLOAD_POOL_WORKERS=16)
//  3. Configuration file (YAML or TOML)
//  4. Default values
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/momentics/hioload-httpd/internal/httpconn"
	"github.com/momentics/hioload-httpd/server"
	"github.com/spf13/viper"
)

const envPrefix = "HIOLOAD"

// Config is the complete process configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Pool    PoolConfig    `mapstructure:"pool" yaml:"pool"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

type LoggingConfig struct {
	// Level is one of TRACE, DEBUG, INFO, WARN, ERROR, FATAL.
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=TRACE DEBUG INFO WARN WARNING ERROR FATAL"`

	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr or a file path. Files roll daily and every
	// MaxLines lines.
	Output string `mapstructure:"output" yaml:"output" validate:"required"`

	MaxLines int `mapstructure:"max_lines" yaml:"max_lines" validate:"gte=0"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Backlog        int `mapstructure:"backlog" yaml:"backlog" validate:"gt=0"`
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"gt=0"`
	MaxEvents      int `mapstructure:"max_events" yaml:"max_events" validate:"gt=0"`

	// ShutdownTimeout bounds how long the process waits for the reactor
	// and the metrics endpoint after a stop signal.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

type PoolConfig struct {
	Workers      int    `mapstructure:"workers" yaml:"workers" validate:"gt=0"`
	MaxQueued    int    `mapstructure:"max_queued" yaml:"max_queued" validate:"gt=0"`
	RejectPolicy string `mapstructure:"reject_policy" yaml:"reject_policy" validate:"required,oneof=close rearm"`
	PinWorkers   bool   `mapstructure:"pin_workers" yaml:"pin_workers"`
}

type HTTPConfig struct {
	ReadBufferSize  int    `mapstructure:"read_buffer_size" yaml:"read_buffer_size" validate:"gte=64"`
	WriteBufferSize int    `mapstructure:"write_buffer_size" yaml:"write_buffer_size" validate:"gte=128"`
	ResourceRoot    string `mapstructure:"resource_root" yaml:"resource_root"`
	TraversalPolicy string `mapstructure:"traversal_policy" yaml:"traversal_policy" validate:"required,oneof=allow reject"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// Load reads, defaults and validates the configuration. An empty path
// searches the default location; a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)
	if err := readConfigFile(v); err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads the configuration and calls fn with a freshly decoded copy
// every time the file changes. Without a config file nothing is watched.
func Watch(configPath string, fn func(*Config, error)) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)
	if err := readConfigFile(v); err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() != "" {
		if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
			v.OnConfigChange(func(fsnotify.Event) {
				fn(decode(v))
			})
			v.WatchConfig()
		}
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		trimStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// trimStringHook strips surrounding blanks from string values, which env
// variables and hand-edited files tend to carry.
func trimStringHook() mapstructure.DecodeHookFuncKind {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.String {
			return data, nil
		}
		return strings.TrimSpace(data.(string)), nil
	}
}

// setupViper configures env support, the config file and defaults.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Registering every key lets env variables override values absent
	// from the file.
	d := GetDefaultConfig()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.max_lines", d.Logging.MaxLines)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.backlog", d.Server.Backlog)
	v.SetDefault("server.max_connections", d.Server.MaxConnections)
	v.SetDefault("server.max_events", d.Server.MaxEvents)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("pool.workers", d.Pool.Workers)
	v.SetDefault("pool.max_queued", d.Pool.MaxQueued)
	v.SetDefault("pool.reject_policy", d.Pool.RejectPolicy)
	v.SetDefault("pool.pin_workers", d.Pool.PinWorkers)
	v.SetDefault("http.read_buffer_size", d.HTTP.ReadBufferSize)
	v.SetDefault("http.write_buffer_size", d.HTTP.WriteBufferSize)
	v.SetDefault("http.resource_root", d.HTTP.ResourceRoot)
	v.SetDefault("http.traversal_policy", d.HTTP.TraversalPolicy)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/hioload-httpd, ~/.config/hioload-httpd
// or "." as a last resort.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hioload-httpd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "hioload-httpd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ToServer converts the loaded settings into the reactor configuration.
func (c *Config) ToServer() *server.Config {
	return &server.Config{
		Port:            c.Server.Port,
		Backlog:         c.Server.Backlog,
		MaxConnections:  c.Server.MaxConnections,
		MaxEvents:       c.Server.MaxEvents,
		Workers:         c.Pool.Workers,
		MaxQueued:       c.Pool.MaxQueued,
		RejectPolicy:    server.RejectPolicy(c.Pool.RejectPolicy),
		PinWorkers:      c.Pool.PinWorkers,
		ReadBufferSize:  c.HTTP.ReadBufferSize,
		WriteBufferSize: c.HTTP.WriteBufferSize,
		ResourceRoot:    c.HTTP.ResourceRoot,
		TraversalPolicy: httpconn.TraversalPolicy(c.HTTP.TraversalPolicy),
	}
}
