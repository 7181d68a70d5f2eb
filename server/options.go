// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithMetrics routes server counters to m.
func WithMetrics(m api.Metrics) ServerOption {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDebugProbes registers the server state probes on dp.
func WithDebugProbes(dp *control.DebugProbes) ServerOption {
	return func(s *Server) {
		s.probes = dp
	}
}

// WithSocketIO overrides the raw socket calls used by connections.
func WithSocketIO(io api.SocketIO) ServerOption {
	return func(s *Server) {
		if io != nil {
			s.sockio = io
		}
	}
}
