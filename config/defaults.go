package config

import (
	"strings"
	"time"

	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/httpconn"
	"github.com/momentics/hioload-httpd/internal/logger"
	"github.com/momentics/hioload-httpd/server"
)

// ApplyDefaults fills zero values with defaults and normalizes enums.
// Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyPoolDefaults(&cfg.Pool)
	applyHTTPDefaults(&cfg.HTTP)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	cfg.Format = strings.ToLower(cfg.Format)
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.MaxLines == 0 {
		cfg.MaxLines = logger.DefaultMaxLines
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	d := server.DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = d.Port
	}
	if cfg.Backlog == 0 {
		cfg.Backlog = d.Backlog
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = d.MaxConnections
	}
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = d.MaxEvents
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
}

func applyPoolDefaults(cfg *PoolConfig) {
	d := server.DefaultConfig()
	if cfg.Workers == 0 {
		cfg.Workers = d.Workers
	}
	if cfg.MaxQueued == 0 {
		cfg.MaxQueued = d.MaxQueued
	}
	if cfg.RejectPolicy == "" {
		cfg.RejectPolicy = string(server.RejectClose)
	}
	cfg.RejectPolicy = strings.ToLower(cfg.RejectPolicy)
}

func applyHTTPDefaults(cfg *HTTPConfig) {
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = httpconn.DefaultReadBufferSize
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = httpconn.DefaultWriteBufferSize
	}
	if cfg.TraversalPolicy == "" {
		cfg.TraversalPolicy = string(httpconn.TraversalAllow)
	}
	cfg.TraversalPolicy = strings.ToLower(cfg.TraversalPolicy)
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = control.DefaultPort
	}
}

// GetDefaultConfig returns a fully defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
