//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based multiplexer with an eventfd wakeup.

package reactor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/internal/logger"
	"golang.org/x/sys/unix"
)

const (
	readEvents  = unix.EPOLLIN | unix.EPOLLRDHUP
	writeEvents = unix.EPOLLOUT | unix.EPOLLRDHUP
	hangupMask  = unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR
)

// epollMultiplexer is an epoll-based readiness multiplexer. The epoll
// descriptor is set once at construction and only read afterwards.
type epollMultiplexer struct {
	epfd   int
	wakefd int

	mu     sync.Mutex // guards raw and closed
	raw    []unix.EpollEvent
	closed bool
}

func newMultiplexer() (api.Multiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd create: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakefd: %w", err)
	}
	return &epollMultiplexer{epfd: epfd, wakefd: wakefd}, nil
}

// Register adds fd for read-or-hangup readiness and makes it non-blocking.
func (m *epollMultiplexer) Register(fd int, gen uint32, oneShot bool) error {
	ev := unix.EpollEvent{Events: readEvents, Fd: int32(fd), Pad: int32(gen)}
	if oneShot {
		ev.Events |= unix.EPOLLONESHOT
	}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		logger.Error("reactor: epoll ctl add fd=%d: %v", fd, err)
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		logger.Error("reactor: set non-blocking fd=%d: %v", fd, err)
		return fmt.Errorf("set nonblock: %w", err)
	}
	return nil
}

// ModifyInterest re-arms a one-shot registration for the given interest.
func (m *epollMultiplexer) ModifyInterest(fd int, gen uint32, interest api.Interest) error {
	var events uint32 = readEvents
	if interest == api.InterestWrite {
		events = writeEvents
	}
	ev := unix.EpollEvent{Events: events | unix.EPOLLONESHOT, Fd: int32(fd), Pad: int32(gen)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		logger.Error("reactor: epoll ctl mod fd=%d interest=%s: %v", fd, interest, err)
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Deregister removes fd from the interest list and closes it.
func (m *epollMultiplexer) Deregister(fd int) error {
	delErr := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if delErr != nil {
		logger.Debug("reactor: epoll ctl del fd=%d: %v", fd, delErr)
	}
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close fd=%d: %w", fd, err)
	}
	if delErr != nil && !errors.Is(delErr, unix.ENOENT) && !errors.Is(delErr, unix.EBADF) {
		return fmt.Errorf("epoll ctl del: %w", delErr)
	}
	return nil
}

// Wait blocks for readiness and translates raw epoll events.
// timeoutMs < 0 means block infinitely. EINTR yields zero events.
func (m *epollMultiplexer) Wait(events []api.Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, fmt.Errorf("reactor: empty event buffer: %w", api.ErrInvalidArgument)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, fmt.Errorf("reactor: wait on closed multiplexer: %w", unix.EBADF)
	}
	if cap(m.raw) < len(events) {
		m.raw = make([]unix.EpollEvent, len(events))
	}
	raw := m.raw[:len(events)]
	m.mu.Unlock()

	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(m.epfd, raw, timeoutMs)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil // interrupted by signal, not an error
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := raw[i]
		if int(ev.Fd) == m.wakefd {
			m.drainWake()
			events[i] = api.Event{Fd: m.wakefd, Wakeup: true}
			continue
		}
		events[i] = api.Event{
			Fd:       int(ev.Fd),
			Gen:      uint32(ev.Pad),
			Readable: ev.Events&unix.EPOLLIN != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Hangup:   ev.Events&hangupMask != 0,
		}
	}
	return n, nil
}

func (m *epollMultiplexer) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(m.wakefd, buf[:]); err != nil {
			return
		}
	}
}

// Wake interrupts a blocked Wait.
func (m *epollMultiplexer) Wake() error {
	one := [8]byte{1}
	if _, err := unix.Write(m.wakefd, one[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close releases the epoll and eventfd descriptors.
func (m *epollMultiplexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	werr := unix.Close(m.wakefd)
	if err := unix.Close(m.epfd); err != nil {
		return fmt.Errorf("close epoll: %w", err)
	}
	return werr
}
