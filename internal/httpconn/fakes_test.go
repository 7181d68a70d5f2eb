package httpconn

import (
	"bytes"
	"sync"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

type muxCall struct {
	op       string
	fd       int
	gen      uint32
	interest api.Interest
}

type fakeMux struct {
	mu    sync.Mutex
	calls []muxCall
}

func (m *fakeMux) record(c muxCall) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

func (m *fakeMux) Register(fd int, gen uint32, oneShot bool) error {
	m.record(muxCall{op: "register", fd: fd, gen: gen})
	return nil
}

func (m *fakeMux) ModifyInterest(fd int, gen uint32, interest api.Interest) error {
	m.record(muxCall{op: "modify", fd: fd, gen: gen, interest: interest})
	return nil
}

func (m *fakeMux) Deregister(fd int) error {
	m.record(muxCall{op: "deregister", fd: fd})
	return nil
}

func (m *fakeMux) Wait(events []api.Event, timeoutMs int) (int, error) { return 0, nil }
func (m *fakeMux) Wake() error                                         { return nil }
func (m *fakeMux) Close() error                                        { return nil }

func (m *fakeMux) last() muxCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return muxCall{}
	}
	return m.calls[len(m.calls)-1]
}

func (m *fakeMux) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

// fakeSocket feeds queued chunks to Recv and collects Writev output.
// maxWrite caps bytes accepted per Writev; stallEvery makes every other
// Writev call fail with EAGAIN.
type fakeSocket struct {
	in         [][]byte
	eof        bool
	out        bytes.Buffer
	maxWrite   int
	stallEvery bool
	stalled    bool
	writevErr  error
	writes     int
}

func (s *fakeSocket) feed(chunks ...string) {
	for _, c := range chunks {
		s.in = append(s.in, []byte(c))
	}
}

func (s *fakeSocket) Recv(fd int, p []byte) (int, error) {
	if len(s.in) == 0 {
		if s.eof {
			return 0, nil
		}
		return 0, unix.EAGAIN
	}
	n := copy(p, s.in[0])
	if n < len(s.in[0]) {
		s.in[0] = s.in[0][n:]
	} else {
		s.in = s.in[1:]
	}
	return n, nil
}

func (s *fakeSocket) Writev(fd int, iovs [][]byte) (int, error) {
	if s.writevErr != nil {
		return 0, s.writevErr
	}
	if s.stallEvery {
		s.stalled = !s.stalled
		if s.stalled {
			return 0, unix.EAGAIN
		}
	}
	s.writes++
	budget := s.maxWrite
	total := 0
	for _, v := range iovs {
		if budget > 0 && len(v) > budget-total {
			v = v[:budget-total]
		}
		s.out.Write(v)
		total += len(v)
		if budget > 0 && total == budget {
			break
		}
	}
	return total, nil
}

type fakeMetrics struct {
	mu       sync.Mutex
	opened   int
	closed   int
	statuses []int
	sent     int
	rejected int
}

func (m *fakeMetrics) ConnectionOpened() { m.mu.Lock(); m.opened++; m.mu.Unlock() }
func (m *fakeMetrics) ConnectionClosed() { m.mu.Lock(); m.closed++; m.mu.Unlock() }
func (m *fakeMetrics) RequestServed(status int) {
	m.mu.Lock()
	m.statuses = append(m.statuses, status)
	m.mu.Unlock()
}
func (m *fakeMetrics) BytesSent(n int)     { m.mu.Lock(); m.sent += n; m.mu.Unlock() }
func (m *fakeMetrics) SubmissionRejected() { m.mu.Lock(); m.rejected++; m.mu.Unlock() }
