//go:build linux

// File: server/run.go
// Package server implements the reactor loop, connection acceptor and
// shutdown for the static file server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/internal/httpconn"
	"github.com/momentics/hioload-httpd/internal/logger"
	"golang.org/x/sys/unix"
)

// retryIntervalMs bounds the reactor wait while connections are parked.
const retryIntervalMs = 5

// parkedConn is a reactor-owned connection with a complete read buffered
// but no epoll interest armed.
type parkedConn struct {
	fd  int
	gen uint32
}

// Run drives the reactor until ctx is cancelled or waiting fails. On
// return every connection is closed and the worker pool is stopped.
func (s *Server) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.teardown()

	// level-triggered: the listener stays armed
	if err := s.mux.Register(s.listenFd, 0, false); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		if err := s.mux.Wake(); err != nil {
			logger.Error("server: wake reactor: %v", err)
		}
	})
	defer stop()

	events := make([]api.Event, s.cfg.MaxEvents)
	for {
		if ctx.Err() != nil {
			logger.Info("server: shutdown requested")
			return nil
		}
		timeout := -1
		if s.parked.Length() > 0 {
			timeout = retryIntervalMs
		}
		n, err := s.mux.Wait(events, timeout)
		if err != nil {
			logger.Error("server: reactor wait: %v", err)
			return err
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			switch {
			case ev.Wakeup:
			case ev.Fd == s.listenFd:
				s.acceptAll()
			default:
				s.dispatch(ev)
			}
		}
		s.resubmitParked()
	}
}

// acceptAll drains the accept queue.
func (s *Server) acceptAll() {
	for {
		fd, sa, err := unix.Accept4(s.listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch {
			case errors.Is(err, unix.EAGAIN):
			case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
				continue
			default:
				if _, ok := s.logLimit.Allow("accept"); ok {
					logger.Error("server: accept: %v", err)
				}
			}
			return
		}
		c, gen := s.conns.acquire(fd)
		if c == nil {
			if _, ok := s.logLimit.Allow("busy"); ok {
				logger.Warn("server: server busy, refusing fd=%d (slots=%d)", fd, s.conns.size())
			}
			_ = unix.Close(fd)
			continue
		}
		if err := c.Init(fd, gen, peerAddr(sa)); err != nil {
			logger.Error("server: init fd=%d: %v", fd, err)
			_ = unix.Close(fd)
		}
	}
}

// dispatch handles one readiness event for a client connection. Reads are
// performed here and parsing is handed to the pool; writes stay on the
// reactor.
func (s *Server) dispatch(ev api.Event) {
	c := s.conns.lookup(ev.Fd, ev.Gen)
	if c == nil {
		logger.Trace("server: stale event fd=%d gen=%d", ev.Fd, ev.Gen)
		return
	}
	if c.Owner() != httpconn.OwnerReactor {
		logger.Error("server: event for fd=%d while a worker owns it", ev.Fd)
		return
	}

	switch {
	case ev.Hangup:
		s.closeConn(c)
	case ev.Readable:
		if err := c.Read(); err != nil {
			logger.Debug("server: read fd=%d: %v", ev.Fd, err)
			s.closeConn(c)
			return
		}
		c.HandTo(httpconn.OwnerWorker)
		if err := s.pool.Submit(c); err != nil {
			c.HandTo(httpconn.OwnerReactor)
			s.rejected(c, err)
		}
	case ev.Writable:
		if err := c.Write(); err != nil {
			if !errors.Is(err, httpconn.ErrCloseRequested) {
				logger.Debug("server: write fd=%d: %v", ev.Fd, err)
			}
			s.closeConn(c)
		}
	}
}

// rejected applies the reject policy to a connection the pool refused.
// Its socket was already drained, so re-arming read interest alone could
// wait forever; under RejectRearm the connection is parked instead and
// resubmitted by the reactor once the pool has room.
func (s *Server) rejected(c *httpconn.Conn, err error) {
	s.metrics.SubmissionRejected()
	if _, ok := s.logLimit.Allow("rejected"); ok {
		logger.Warn("server: submission for fd=%d peer=%s rejected (%v), policy=%s",
			c.Fd(), c.Peer(), err, s.cfg.RejectPolicy)
	}
	if s.cfg.RejectPolicy == RejectRearm && errors.Is(err, api.ErrQueueFull) {
		s.parked.Add(parkedConn{fd: c.Fd(), gen: c.Gen()})
		s.parkedLen.Store(int64(s.parked.Length()))
		return
	}
	s.closeConn(c)
}

// resubmitParked hands parked connections back to the pool in FIFO order
// until it refuses again.
func (s *Server) resubmitParked() {
	defer func() { s.parkedLen.Store(int64(s.parked.Length())) }()
	for s.parked.Length() > 0 {
		p := s.parked.Peek().(parkedConn)
		c := s.conns.lookup(p.fd, p.gen)
		if c == nil {
			s.parked.Remove()
			continue
		}
		c.HandTo(httpconn.OwnerWorker)
		err := s.pool.Submit(c)
		if err == nil {
			s.parked.Remove()
			continue
		}
		c.HandTo(httpconn.OwnerReactor)
		if errors.Is(err, api.ErrQueueFull) {
			return
		}
		s.parked.Remove()
		s.closeConn(c)
	}
}

func (s *Server) closeConn(c *httpconn.Conn) {
	c.Close()
}

// teardown runs once when Run returns.
func (s *Server) teardown() {
	s.closed.Store(true)
	if err := s.mux.Deregister(s.listenFd); err != nil {
		logger.Warn("server: close listener: %v", err)
	}
	s.pool.Shutdown()
	s.pool.Wait()
	s.conns.each(s.closeConn)
	if err := s.mux.Close(); err != nil {
		logger.Warn("server: close multiplexer: %v", err)
	}
	logger.Info("server: stopped, live connections=%d", s.env.Live.Load())
}
