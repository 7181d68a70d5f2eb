// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Semaphore is the counting wait primitive behind the thread pool handoff.

package concurrency

import "sync"

// Semaphore is a counting semaphore without an upper bound: posts made
// before any waiter arrives accumulate as credit.
type Semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

// NewSemaphore returns a semaphore holding initial credit. Negative values are clamped to zero.
func NewSemaphore(initial int) *Semaphore {
	if initial < 0 {
		initial = 0
	}
	s := &Semaphore{count: initial}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Post increments the count and releases at most one blocked waiter.
func (s *Semaphore) Post() {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.cond.Signal()
}

// Wait blocks until the count is positive, then decrements it.
func (s *Semaphore) Wait() {
	s.mu.Lock()
	for s.count <= 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
}
