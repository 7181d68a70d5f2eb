// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/internal/httpconn"
)

// RejectPolicy decides what happens to a read-ready connection the worker
// pool refuses.
type RejectPolicy string

const (
	// RejectClose tears the connection down.
	RejectClose RejectPolicy = "close"
	// RejectRearm re-arms read interest and leaves the buffered bytes in place.
	RejectRearm RejectPolicy = "rearm"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Port           int // TCP port; 0 picks an ephemeral port
	Backlog        int // listen(2) backlog
	MaxConnections int // upper bound on the connection table
	MaxEvents      int // events collected per wait

	Workers      int // worker goroutines
	MaxQueued    int // pool queue capacity
	RejectPolicy RejectPolicy
	PinWorkers   bool // bind worker i to cpu i mod NumCPU

	ReadBufferSize  int
	WriteBufferSize int
	ResourceRoot    string // empty means <exe-dir>/../resources
	TraversalPolicy httpconn.TraversalPolicy
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            9006,
		Backlog:         128,
		MaxConnections:  65536,
		MaxEvents:       10000,
		Workers:         8,
		MaxQueued:       10000,
		RejectPolicy:    RejectClose,
		ReadBufferSize:  httpconn.DefaultReadBufferSize,
		WriteBufferSize: httpconn.DefaultWriteBufferSize,
		TraversalPolicy: httpconn.TraversalAllow,
	}
}

func (c *Config) validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return api.NewError(api.ErrCodeInvalidArgument, fmt.Sprintf("port %d out of range", c.Port)).Wrap(api.ErrInvalidArgument)
	case c.Backlog <= 0, c.MaxConnections <= 0, c.MaxEvents <= 0:
		return api.NewError(api.ErrCodeInvalidArgument, "backlog, max connections and max events must be positive").Wrap(api.ErrInvalidArgument)
	case c.ReadBufferSize <= 0, c.WriteBufferSize <= 0:
		return api.NewError(api.ErrCodeInvalidArgument, "buffer sizes must be positive").Wrap(api.ErrInvalidArgument)
	}
	switch c.RejectPolicy {
	case RejectClose, RejectRearm:
	default:
		return api.NewError(api.ErrCodeInvalidArgument, fmt.Sprintf("unknown reject policy %q", c.RejectPolicy)).Wrap(api.ErrInvalidArgument)
	}
	switch c.TraversalPolicy {
	case httpconn.TraversalAllow, httpconn.TraversalReject:
	default:
		return api.NewError(api.ErrCodeInvalidArgument, fmt.Sprintf("unknown traversal policy %q", c.TraversalPolicy)).Wrap(api.ErrInvalidArgument)
	}
	return nil
}
