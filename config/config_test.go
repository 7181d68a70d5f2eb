package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-httpd/internal/httpconn"
	"github.com/momentics/hioload-httpd/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileWithDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logging:
  level: debug
server:
  port: 8080
pool:
  workers: 4
http:
  resource_root: /srv/www
  traversal_policy: REJECT
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 50000, cfg.Logging.MaxLines)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 128, cfg.Server.Backlog)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 4, cfg.Pool.Workers)
	assert.Equal(t, 10000, cfg.Pool.MaxQueued)
	assert.Equal(t, "close", cfg.Pool.RejectPolicy)
	assert.Equal(t, 2048, cfg.HTTP.ReadBufferSize)
	assert.Equal(t, 1024, cfg.HTTP.WriteBufferSize)
	assert.Equal(t, "reject", cfg.HTTP.TraversalPolicy)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", "server: [port: 1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[pool]
workers = 2
reject_policy = "rearm"

[server]
shutdown_timeout = "750ms"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pool.Workers)
	assert.Equal(t, "rearm", cfg.Pool.RejectPolicy)
	assert.Equal(t, 750*time.Millisecond, cfg.Server.ShutdownTimeout)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HIOLOAD_POOL_WORKERS", "16")
	t.Setenv("HIOLOAD_LOGGING_LEVEL", " error ")
	t.Setenv("HIOLOAD_SERVER_SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("HIOLOAD_METRICS_ENABLED", "true")
	t.Setenv("HIOLOAD_POOL_PIN_WORKERS", "true")

	path := writeConfig(t, "config.yaml", "pool:\n  workers: 4\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Pool.Workers)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Pool.PinWorkers)

	// env works without a file too
	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Pool.Workers)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(GetDefaultConfig()))

	cases := map[string]func(*Config){
		"log level":        func(c *Config) { c.Logging.Level = "LOUD" },
		"log format":       func(c *Config) { c.Logging.Format = "xml" },
		"negative workers": func(c *Config) { c.Pool.Workers = -1 },
		"queue":            func(c *Config) { c.Pool.MaxQueued = -5 },
		"reject policy":    func(c *Config) { c.Pool.RejectPolicy = "drop" },
		"traversal":        func(c *Config) { c.HTTP.TraversalPolicy = "clean" },
		"port":             func(c *Config) { c.Server.Port = 70000 },
		"tiny buffer":      func(c *Config) { c.HTTP.WriteBufferSize = 16 },
		"huge buffer":      func(c *Config) { c.HTTP.ReadBufferSize = 4 << 20 },
		"port collision": func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Port = c.Server.Port
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "warn", Output: "/var/log/hioload.log"},
		Pool:    PoolConfig{Workers: 3, RejectPolicy: "REARM"},
		HTTP:    HTTPConfig{ReadBufferSize: 4096},
	}
	ApplyDefaults(cfg)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "/var/log/hioload.log", cfg.Logging.Output)
	assert.Equal(t, 3, cfg.Pool.Workers)
	assert.Equal(t, "rearm", cfg.Pool.RejectPolicy)
	assert.Equal(t, 4096, cfg.HTTP.ReadBufferSize)
	assert.Equal(t, 1024, cfg.HTTP.WriteBufferSize)
}

func TestDump_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Pool.Workers = 12
	cfg.Server.ShutdownTimeout = 3 * time.Second
	cfg.HTTP.ResourceRoot = "/srv/www"

	var buf bytes.Buffer
	require.NoError(t, Dump(cfg, &buf))
	assert.Contains(t, buf.String(), "workers: 12")
	assert.Contains(t, buf.String(), "shutdown_timeout: 3s")

	path := writeConfig(t, "dump.yaml", buf.String())
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestToServer(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 8081
	cfg.Pool.RejectPolicy = "rearm"
	cfg.HTTP.TraversalPolicy = "reject"

	sc := cfg.ToServer()
	assert.Equal(t, 8081, sc.Port)
	assert.Equal(t, server.RejectRearm, sc.RejectPolicy)
	assert.Equal(t, httpconn.TraversalReject, sc.TraversalPolicy)
	assert.Equal(t, cfg.Pool.Workers, sc.Workers)
	assert.Equal(t, cfg.HTTP.ReadBufferSize, sc.ReadBufferSize)
	assert.False(t, sc.PinWorkers)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "config.yaml", "logging:\n  level: INFO\n")

	var level atomic.Value
	cfg, err := Watch(path, func(c *Config, err error) {
		if err == nil {
			level.Store(c.Logging.Level)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: DEBUG\n"), 0o644))
	assert.Eventually(t, func() bool {
		v, _ := level.Load().(string)
		return v == "DEBUG"
	}, 5*time.Second, 20*time.Millisecond)
}
