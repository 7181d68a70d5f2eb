//go:build linux

// Command hioload-httpd serves static files over HTTP/1.1 from a single
// epoll reactor and a fixed worker pool.
//
// Usage:
//
//	hioload-httpd [-config path] [-log-level level] [-dump-config] <port>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/config"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/logger"
	"github.com/momentics/hioload-httpd/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func usage() {
	fmt.Printf("usage: %s port_number!\n", filepath.Base(os.Args[0]))
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/hioload-httpd/config.yaml)")
	logLevel := flag.String("log-level", "", "Override logging.level (TRACE, DEBUG, INFO, WARN, ERROR)")
	dumpConfig := flag.Bool("dump-config", false, "Print the effective configuration as YAML and exit")
	flag.Parse()
	if flag.NArg() < 1 && !*dumpConfig {
		usage()
	}

	var current atomic.Pointer[config.Config]
	control.RegisterReloadHook(func() {
		if c := current.Load(); c != nil && *logLevel == "" {
			logger.SetLevel(c.Logging.Level)
			logger.Info("config reloaded, log level %s", c.Logging.Level)
		}
	})

	cfg, err := config.Watch(*configPath, func(c *config.Config, err error) {
		if err != nil {
			logger.Warn("config reload ignored: %v", err)
			return
		}
		current.Store(c)
		control.TriggerHotReloadSync()
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "hioload-httpd: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(*logLevel)
	}

	if flag.NArg() > 0 {
		port, err := strconv.Atoi(flag.Arg(0))
		if err != nil || port <= 0 || port > 65535 {
			usage()
		}
		cfg.Server.Port = port
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "hioload-httpd: %v\n", err)
		os.Exit(1)
	}
	if *dumpConfig {
		if err := config.Dump(cfg, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "hioload-httpd: %v\n", err)
			os.Exit(1)
		}
		return
	}
	logger.SetLevel(cfg.Logging.Level)
	if err := logger.Config(cfg.Logging.Output, cfg.Logging.Format, cfg.Logging.MaxLines); err != nil {
		fmt.Fprintf(os.Stderr, "hioload-httpd: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics api.Metrics = control.NoopMetrics()
	var reg *prometheus.Registry
	var prom *control.PromMetrics
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prom = control.NewMetrics(reg)
		metrics = prom
	}
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)

	srv, err := server.NewServer(cfg.ToServer(), server.WithMetrics(metrics), server.WithDebugProbes(probes))
	if err != nil {
		logger.Fatal("server init: %v", err)
	}

	metricsDone := make(chan error, 1)
	if cfg.Metrics.Enabled {
		prom.RegisterQueueDepth(srv.QueueLen)
		ms := control.NewServer(cfg.Metrics.Port, reg, probes)
		go func() { metricsDone <- ms.Start(ctx) }()
	} else {
		close(metricsDone)
	}

	logger.Info("hioload-httpd running on port %d. Press Ctrl+C to stop.", srv.Port())
	runErr := srv.Run(ctx)
	stop()

	select {
	case err, ok := <-metricsDone:
		if ok && err != nil {
			logger.Error("metrics server: %v", err)
		}
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn("metrics server did not stop within %v", cfg.Server.ShutdownTimeout)
	}
	if runErr != nil {
		logger.Error("server stopped: %v", runErr)
		logger.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}
