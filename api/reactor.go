// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the readiness multiplexer contract used by the reactor loop
// and by connections re-arming their one-shot registration.

package api

// Interest selects which readiness a one-shot registration is re-armed for.
type Interest uint8

const (
	// InterestRead arms for read or peer-hangup readiness.
	InterestRead Interest = iota + 1
	// InterestWrite arms for write readiness.
	InterestWrite
)

func (i Interest) String() string {
	switch i {
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	default:
		return "none"
	}
}

// Event encapsulates the result of an OS-level readiness notification.
type Event struct {
	Fd       int    // descriptor the event was delivered for
	Gen      uint32 // generation stamped at registration time
	Readable bool
	Writable bool
	Hangup   bool // peer hangup or socket error; always forces a close
	Wakeup   bool // delivered by Wake, not by a registered descriptor
}

// Multiplexer is a thin adapter over the OS readiness facility.
//
// Failures are returned to the caller, which treats them as best-effort:
// a registration that silently failed is caught later by the I/O error
// it provokes.
type Multiplexer interface {
	// Register adds fd for read-or-hangup readiness, optionally one-shot,
	// and switches fd to non-blocking mode.
	Register(fd int, gen uint32, oneShot bool) error

	// ModifyInterest re-arms a one-shot registration.
	ModifyInterest(fd int, gen uint32, interest Interest) error

	// Deregister removes fd and closes it.
	Deregister(fd int) error

	// Wait blocks until at least one event is ready; timeoutMs < 0 blocks indefinitely.
	Wait(events []Event, timeoutMs int) (int, error)

	// Wake interrupts a blocked Wait from another goroutine.
	Wake() error

	// Close releases the multiplexer itself.
	Close() error
}
