// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer adapter: one-shot
// read/write interest registration over Linux epoll, and a stub that
// reports api.ErrNotSupported elsewhere.
package reactor
