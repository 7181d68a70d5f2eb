//go:build linux

// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server wires the listening socket, the readiness multiplexer, the worker
// pool and the connection table together.

package server

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-catrate"
	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/concurrency"
	"github.com/momentics/hioload-httpd/internal/httpconn"
	"github.com/momentics/hioload-httpd/internal/logger"
	"github.com/momentics/hioload-httpd/reactor"
	"golang.org/x/sys/unix"
)

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrClosed         = errors.New("server closed")
)

// Server is a readiness-driven HTTP/1.1 static file server.
type Server struct {
	cfg *Config

	mux      api.Multiplexer
	pool     *concurrency.ThreadPool
	env      *httpconn.Env
	conns    *table
	parked   *queue.Queue // of parkedConn, rejected and waiting for pool room
	listenFd int
	port     int

	metrics api.Metrics
	probes  *control.DebugProbes
	sockio  api.SocketIO

	logLimit  *catrate.Limiter
	parkedLen atomic.Int64 // mirrors parked.Length() for probes
	running   atomic.Bool
	closed    atomic.Bool
}

// NewServer validates cfg, binds the listening socket and starts the
// worker pool. The reactor does not run until Run.
func NewServer(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		metrics: control.NoopMetrics(),
		sockio:  httpconn.UnixSocket{},
		parked:  queue.New(),
		logLimit: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 30,
		}),
	}
	for _, o := range opts {
		o(s)
	}

	root := cfg.ResourceRoot
	if root == "" {
		r, err := httpconn.DefaultRoot()
		if err != nil {
			return nil, err
		}
		root = r
	}

	pool, err := concurrency.NewThreadPool(cfg.Workers, cfg.MaxQueued,
		concurrency.WithCPUAffinity(cfg.PinWorkers))
	if err != nil {
		return nil, err
	}

	mux, err := reactor.New()
	if err != nil {
		pool.Shutdown()
		return nil, err
	}

	lfd, err := listenTCP(cfg.Port, cfg.Backlog)
	if err != nil {
		pool.Shutdown()
		_ = mux.Close()
		return nil, err
	}
	port, err := boundPort(lfd)
	if err != nil {
		pool.Shutdown()
		_ = mux.Close()
		_ = unix.Close(lfd)
		return nil, err
	}

	s.pool = pool
	s.mux = mux
	s.listenFd = lfd
	s.port = port
	s.env = &httpconn.Env{
		Mux:             mux,
		IO:              s.sockio,
		Resolver:        httpconn.NewResolver(root, cfg.TraversalPolicy),
		Metrics:         s.metrics,
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
	}
	s.conns = newTable(s.env, tableSize(cfg.MaxConnections))

	if s.probes != nil {
		s.registerProbes(s.probes)
	}
	logger.Info("server: listening on port %d root=%s workers=%d queue=%d slots=%d",
		port, root, cfg.Workers, cfg.MaxQueued, s.conns.size())
	return s, nil
}

func (s *Server) registerProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("live_connections", func() any { return s.env.Live.Load() })
	dp.RegisterProbe("pool_queue_len", func() any { return s.pool.Len() })
	dp.RegisterProbe("pool_workers", func() any { return s.pool.Workers() })
	dp.RegisterProbe("pool_stats", func() any { return s.pool.Stats() })
	dp.RegisterProbe("connection_slots", func() any { return s.conns.size() })
	dp.RegisterProbe("parked_connections", func() any { return s.parkedLen.Load() })
}

// Port returns the bound TCP port.
func (s *Server) Port() int { return s.port }

// LiveConnections returns the number of open client connections.
func (s *Server) LiveConnections() int64 { return s.env.Live.Load() }

// QueueLen reports tasks waiting in the worker pool.
func (s *Server) QueueLen() int { return s.pool.Len() }

// ParkedConnections reports connections whose submission was refused and
// which wait on the reactor for pool capacity.
func (s *Server) ParkedConnections() int { return int(s.parkedLen.Load()) }

// Close releases the listener, pool and multiplexer of a server whose Run
// was never called. After Run it is a no-op.
func (s *Server) Close() error {
	if s.running.Load() || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.pool.Shutdown()
	s.pool.Wait()
	err := unix.Close(s.listenFd)
	if merr := s.mux.Close(); err == nil {
		err = merr
	}
	if err != nil {
		return fmt.Errorf("server close: %w", err)
	}
	return nil
}
