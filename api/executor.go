// Package api
// Author: momentics
//
// Executor contract for handing processable work to a fixed worker pool.

package api

// Task is a unit of work placed on a pool queue. The pool holds only the
// handle; the task owner keeps it valid while it can still be queued.
type Task interface {
	Process()
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func()

// Process calls f.
func (f TaskFunc) Process() { f() }

// Executor abstracts a bounded, non-blocking task submission surface.
type Executor interface {
	// Submit enqueues task without blocking; it fails when the queue is full.
	Submit(task Task) error

	// Len reports the number of queued, not yet started tasks.
	Len() int

	// Workers returns the fixed number of worker routines.
	Workers() int
}
