// File: internal/httpconn/conn.go
// Author: momentics <momentics@gmail.com>
//
// Per-connection HTTP/1.1 state machine. A connection is touched by exactly
// one goroutine at a time: the reactor for reads, writes and close, a pool
// worker for Process. One-shot readiness is the hand-off; the owner field
// below only makes that hand-off visible to the memory model.

package httpconn

import (
	"errors"
	"fmt"
	"net/netip"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/internal/logger"
	"golang.org/x/sys/unix"
)

const (
	DefaultReadBufferSize  = 2048
	DefaultWriteBufferSize = 1024
)

// ErrCloseRequested is returned by Write when the response is done and the
// connection must be closed, or when a worker could not build a response.
var ErrCloseRequested = errors.New("connection close requested")

// Owner identifies which side currently holds a connection.
type Owner uint32

const (
	OwnerReactor Owner = iota
	OwnerWorker
)

// Env is the state shared by every connection of one server.
type Env struct {
	Mux      api.Multiplexer
	IO       api.SocketIO
	Resolver *Resolver
	Metrics  api.Metrics

	ReadBufferSize  int
	WriteBufferSize int

	// Live counts initialized, not yet closed connections.
	Live atomic.Int64
}

// Span is a half-open byte range into the read buffer.
type Span struct {
	Start, End int
}

func (s Span) Len() int { return s.End - s.Start }

// Conn holds one client connection. The zero value is unused; call Init.
type Conn struct {
	env  *Env
	fd   int
	gen  uint32
	peer netip.AddrPort

	owner atomic.Uint32

	readBuf      []byte
	readIndex    int
	checkedIndex int
	lineStart    int

	state         CheckState
	method        Method
	url           Span
	version       Span
	host          Span
	contentLength int
	keepAlive     bool

	realPath string
	fileSize int64
	fileAddr []byte

	writeBuf  []byte
	out       *Writer
	headerLen int
	iov       [2][]byte
	iovCount  int

	bytesToSend  int
	bytesSent    int
	status       int
	closePending bool
}

// New allocates the buffers of a connection slot. Slots are reused across
// accepted sockets via Init.
func New(env *Env) *Conn {
	rs, ws := env.ReadBufferSize, env.WriteBufferSize
	if rs <= 0 {
		rs = DefaultReadBufferSize
	}
	if ws <= 0 {
		ws = DefaultWriteBufferSize
	}
	c := &Conn{
		env:     env,
		fd:      -1,
		readBuf: make([]byte, rs+1), // trailing byte keeps the data NUL-terminated
		writeBuf: make([]byte, ws),
	}
	c.out = NewWriter(c.writeBuf)
	return c
}

// Init binds the slot to an accepted socket and registers it for one-shot
// read readiness.
func (c *Conn) Init(fd int, gen uint32, peer netip.AddrPort) error {
	c.fd = fd
	c.gen = gen
	c.peer = peer
	c.reset()
	c.owner.Store(uint32(OwnerReactor))
	if err := c.env.Mux.Register(fd, gen, true); err != nil {
		c.fd = -1
		return fmt.Errorf("register fd=%d: %w", fd, err)
	}
	c.env.Live.Add(1)
	c.env.Metrics.ConnectionOpened()
	logger.Debug("conn: open fd=%d gen=%d peer=%s", fd, gen, peer)
	return nil
}

// reset returns the parse and response state to a fresh request. Socket
// identity is kept.
func (c *Conn) reset() {
	c.readIndex = 0
	c.checkedIndex = 0
	c.lineStart = 0
	c.state = StateRequestLine
	c.method = MethodGet
	c.url = Span{}
	c.version = Span{}
	c.host = Span{}
	c.contentLength = 0
	c.keepAlive = false
	c.realPath = ""
	c.fileSize = 0
	c.fileAddr = nil
	c.out.Reset()
	c.headerLen = 0
	c.iov = [2][]byte{}
	c.iovCount = 0
	c.bytesToSend = 0
	c.bytesSent = 0
	c.status = 0
	c.closePending = false
	clear(c.readBuf)
}

// Close unmaps any file, deregisters and closes the socket. Closing an
// already closed connection is a no-op.
func (c *Conn) Close() {
	if c.fd < 0 {
		return
	}
	c.unmap()
	fd := c.fd
	c.fd = -1
	if err := c.env.Mux.Deregister(fd); err != nil {
		logger.Warn("conn: deregister fd=%d: %v", fd, err)
	}
	c.env.Live.Add(-1)
	c.env.Metrics.ConnectionClosed()
	logger.Debug("conn: close fd=%d peer=%s", fd, c.peer)
}

// Fd returns the bound descriptor, or -1 once closed.
func (c *Conn) Fd() int { return c.fd }

// Gen returns the generation stamped at Init.
func (c *Conn) Gen() uint32 { return c.gen }

// Peer returns the remote address recorded at Init.
func (c *Conn) Peer() netip.AddrPort { return c.peer }

// Owner reports which side holds the connection.
func (c *Conn) Owner() Owner { return Owner(c.owner.Load()) }

// HandTo records a change of ownership. The reactor calls it before Submit.
func (c *Conn) HandTo(o Owner) { c.owner.Store(uint32(o)) }

// KeepAlive reports whether the current request asked to keep the connection.
func (c *Conn) KeepAlive() bool { return c.keepAlive }

// Status is the HTTP status of the response being written, 0 if none.
func (c *Conn) Status() int { return c.status }

// URL returns the request target of the current request.
func (c *Conn) URL() string { return c.spanString(c.url) }

// Host returns the Host header value of the current request.
func (c *Conn) Host() string { return c.spanString(c.host) }

func (c *Conn) spanString(s Span) string {
	if s.Start < 0 || s.End > c.readIndex || s.Start > s.End {
		return ""
	}
	return string(c.readBuf[s.Start:s.End])
}

// Process parses what has been read and prepares the response. It runs on
// a pool worker; re-arming readiness is its last action on c.
func (c *Conn) Process() {
	outcome := c.processRead()
	if outcome == IncompleteRequest {
		if c.readIndex >= len(c.readBuf)-1 {
			logger.Debug("conn: fd=%d request exceeds read buffer", c.fd)
			c.closePending = true
			c.rearm(api.InterestWrite)
			return
		}
		c.rearm(api.InterestRead)
		return
	}
	if err := c.processWrite(outcome); err != nil {
		logger.Warn("conn: fd=%d build response for %s: %v", c.fd, outcome, err)
		c.unmap()
		c.closePending = true
	}
	c.rearm(api.InterestWrite)
}

func (c *Conn) rearm(interest api.Interest) {
	fd, gen := c.fd, c.gen
	c.owner.Store(uint32(OwnerReactor))
	if err := c.env.Mux.ModifyInterest(fd, gen, interest); err != nil {
		logger.Error("conn: re-arm fd=%d interest=%s: %v", fd, interest, err)
	}
}

func (c *Conn) unmap() {
	if c.fileAddr == nil {
		return
	}
	if err := unix.Munmap(c.fileAddr); err != nil {
		logger.Warn("conn: munmap %s: %v", c.realPath, err)
	}
	c.fileAddr = nil
}
