// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-httpd.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the server.
var (
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrResourceExhausted = fmt.Errorf("resource exhausted")
	ErrNotSupported      = fmt.Errorf("operation not supported")
	ErrNotFound          = fmt.Errorf("resource not found")

	// ErrQueueFull is returned when the worker pool already holds its maximum of queued tasks.
	ErrQueueFull = fmt.Errorf("task queue is full: %w", ErrResourceExhausted)
	// ErrNilTask is returned when a nil task is submitted.
	ErrNilTask = fmt.Errorf("nil task: %w", ErrInvalidArgument)
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = fmt.Errorf("thread pool is closed")

	// ErrBufferOverflow is returned when an append would exceed a fixed-capacity buffer.
	ErrBufferOverflow = fmt.Errorf("buffer overflow")
	// ErrBufferFull is returned when the read buffer filled up before a request completed.
	ErrBufferFull = fmt.Errorf("read buffer full: %w", ErrResourceExhausted)
	// ErrPeerClosed is returned when the peer performed an orderly shutdown.
	ErrPeerClosed = fmt.Errorf("peer closed connection")
)

// ErrorCode represents specific error conditions in the server.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeNotSupported
	ErrCodeNotFound
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	case ErrCodeNotSupported:
		return "not_supported"
	case ErrCodeNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap exposes the wrapped sentinel, if any.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Wrap records cause so that errors.Is matches it.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal when err is not an *Error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
