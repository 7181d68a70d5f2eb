// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package concurrency provides the counting semaphore and the bounded
// worker pool that process connection tasks off the reactor goroutine,
// with optional CPU pinning of workers.
package concurrency
