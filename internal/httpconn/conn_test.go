package httpconn

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/momentics/hioload-httpd/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const indexBody = "<html><body>hello from hioload</body></html>\n"

type harness struct {
	env     *Env
	mux     *fakeMux
	sock    *fakeSocket
	metrics *fakeMetrics
	root    string
	conn    *Conn
}

func newHarness(t *testing.T, opts ...func(*Env)) *harness {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), indexBody, 0o644)
	writeFile(t, filepath.Join(root, "empty.txt"), "", 0o644)
	writeFile(t, filepath.Join(root, "private.txt"), "secret", 0o600)
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))

	h := &harness{mux: &fakeMux{}, sock: &fakeSocket{}, metrics: &fakeMetrics{}, root: root}
	h.env = &Env{
		Mux:      h.mux,
		IO:       h.sock,
		Resolver: NewResolver(root, TraversalAllow),
		Metrics:  h.metrics,
	}
	for _, o := range opts {
		o(h.env)
	}
	h.conn = New(h.env)
	require.NoError(t, h.conn.Init(5, 1, netip.MustParseAddrPort("127.0.0.1:40000")))
	return h
}

func writeFile(t *testing.T, path, body string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
	require.NoError(t, os.Chmod(path, mode))
}

// roundTrip feeds request, runs the read/process/write cycle once and
// returns the Write result.
func (h *harness) roundTrip(t *testing.T, request string) error {
	t.Helper()
	h.sock.feed(request)
	require.NoError(t, h.conn.Read())
	h.conn.Process()
	require.Equal(t, api.InterestWrite, h.mux.last().interest, "process must re-arm for write")
	return h.conn.Write()
}

func okResponse(body string, keepAlive bool) string {
	conn := "close"
	if keepAlive {
		conn = "keep-alive"
	}
	return fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\nContent-Type: text/html\r\nConnection: %s\r\n\r\n%s", len(body), conn, body)
}

func errorResponse(status int, title, body string) string {
	return fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: %d\r\nContent-Type: text/html\r\nConnection: close\r\n\r\n%s", status, title, len(body), body)
}

func TestConn_ServesFileWithKeepAlive(t *testing.T) {
	h := newHarness(t)
	err := h.roundTrip(t, "GET /index.html HTTP/1.1\r\nHost: example.org\r\nConnection: keep-alive\r\n\r\n")
	require.NoError(t, err)

	want := okResponse(indexBody, true)
	assert.Equal(t, want, h.sock.out.String())
	assert.Equal(t, len(want), h.metrics.sent)
	assert.Equal(t, []int{200}, h.metrics.statuses)

	last := h.mux.last()
	assert.Equal(t, "modify", last.op)
	assert.Equal(t, api.InterestRead, last.interest)
	assert.Equal(t, uint32(1), last.gen)
	assert.Equal(t, 5, h.conn.Fd())

	// reset for the next request on the same connection
	h.sock.out.Reset()
	require.NoError(t, h.roundTrip(t, "GET /index.html HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"))
	assert.Equal(t, want, h.sock.out.String())
}

func TestConn_RequestAccessors(t *testing.T) {
	h := newHarness(t)
	h.sock.feed("GET /index.html?v=1 HTTP/1.1\r\nHost:  example.org \r\n\r\n")
	require.NoError(t, h.conn.Read())
	assert.Equal(t, FileReady, h.conn.processRead())
	assert.Equal(t, "/index.html?v=1", h.conn.URL())
	assert.Equal(t, "example.org", h.conn.Host())
	assert.False(t, h.conn.KeepAlive())
	h.conn.Close()
}

func TestConn_DefaultIsCloseAfterResponse(t *testing.T) {
	h := newHarness(t)
	err := h.roundTrip(t, "GET /index.html HTTP/1.1\r\n\r\n")
	assert.ErrorIs(t, err, ErrCloseRequested)
	assert.Equal(t, okResponse(indexBody, false), h.sock.out.String())

	h.conn.Close()
	assert.Equal(t, 1, h.mux.count("deregister"))
	assert.Equal(t, -1, h.conn.Fd())
	assert.Equal(t, int64(0), h.env.Live.Load())
}

func TestConn_ConnectionCloseOverridesKeepAlive(t *testing.T) {
	h := newHarness(t)
	err := h.roundTrip(t, "GET /index.html HTTP/1.1\r\nConnection: keep-alive\r\nConnection: close\r\n\r\n")
	assert.ErrorIs(t, err, ErrCloseRequested)
	assert.Equal(t, okResponse(indexBody, false), h.sock.out.String())
}

func TestConn_ChunkBoundaryIndependence(t *testing.T) {
	req := "GET /index.html HTTP/1.1\r\nHost: a\r\nConnection: keep-alive\r\n\r\n"
	want := okResponse(indexBody, true)

	for split := 1; split < len(req); split++ {
		h := newHarness(t)
		h.sock.feed(req[:split])
		require.NoError(t, h.conn.Read())
		h.conn.Process()
		require.Equal(t, api.InterestRead, h.mux.last().interest, "split at %d", split)

		h.sock.feed(req[split:])
		require.NoError(t, h.conn.Read())
		h.conn.Process()
		require.Equal(t, api.InterestWrite, h.mux.last().interest, "split at %d", split)
		require.NoError(t, h.conn.Write())
		assert.Equal(t, want, h.sock.out.String(), "split at %d", split)
	}
}

func TestConn_ByteAtATime(t *testing.T) {
	req := "GET /index.html HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"
	h := newHarness(t)
	for i := 0; i < len(req)-1; i++ {
		h.sock.feed(req[i : i+1])
		require.NoError(t, h.conn.Read())
		assert.Equal(t, IncompleteRequest, h.conn.processRead(), "byte %d", i)
	}
	h.sock.feed(req[len(req)-1:])
	require.NoError(t, h.conn.Read())
	assert.Equal(t, FileReady, h.conn.processRead())
	h.conn.Close()
}

func TestConn_ErrorResponses(t *testing.T) {
	bad := responses[MalformedRequest]
	cases := []struct {
		name    string
		request string
		status  int
		title   string
		body    string
	}{
		{"wrong version", "GET / HTTP/1\r\n\r\n", 400, bad.title, bad.body},
		{"post", "POST /index.html HTTP/1.1\r\n\r\n", 400, bad.title, bad.body},
		{"directory", "GET /dir HTTP/1.1\r\n\r\n", 400, bad.title, bad.body},
		{"relative target", "GET index.html HTTP/1.1\r\n\r\n", 400, bad.title, bad.body},
		{"bare lf", "GET /index.html HTTP/1.1\n\n", 400, bad.title, bad.body},
		{"negative content length", "GET /index.html HTTP/1.1\r\nContent-Length: -1\r\n\r\n", 400, bad.title, bad.body},
		{"junk content length", "GET /index.html HTTP/1.1\r\nContent-Length: ten\r\n\r\n", 400, bad.title, bad.body},
		{"cr without lf", "GET / HTTP/1.1\rX\r\n\r\n", 400, bad.title, bad.body},
		{"max int content length", "GET /index.html HTTP/1.1\r\nContent-Length: 9223372036854775807\r\n\r\n", 400, bad.title, bad.body},
		{"content length beyond buffer", "GET /index.html HTTP/1.1\r\nContent-Length: 4096\r\n\r\n", 400, bad.title, bad.body},
		{"missing", "GET /nope.html HTTP/1.1\r\n\r\n", 404, "Not Found", responses[ResourceMissing].body},
		{"forbidden", "GET /private.txt HTTP/1.1\r\n\r\n", 403, "Forbidden", responses[ResourceForbidden].body},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			err := h.roundTrip(t, tc.request)
			assert.ErrorIs(t, err, ErrCloseRequested)
			assert.Equal(t, errorResponse(tc.status, tc.title, tc.body), h.sock.out.String())
			assert.Equal(t, []int{tc.status}, h.metrics.statuses)
		})
	}
}

func TestConn_MethodAndVersionCaseInsensitive(t *testing.T) {
	h := newHarness(t)
	err := h.roundTrip(t, "get /index.html http/1.1\r\ncOnNeCtIoN: Keep-Alive\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, okResponse(indexBody, true), h.sock.out.String())
}

func TestConn_AbsoluteFormTarget(t *testing.T) {
	for _, target := range []string{"http://example.org/index.html", "HTTPS://example.org/index.html"} {
		h := newHarness(t)
		err := h.roundTrip(t, "GET "+target+" HTTP/1.1\r\n\r\n")
		assert.ErrorIs(t, err, ErrCloseRequested)
		assert.Equal(t, okResponse(indexBody, false), h.sock.out.String(), target)
	}

	h := newHarness(t)
	err := h.roundTrip(t, "GET http://example.org HTTP/1.1\r\n\r\n")
	assert.ErrorIs(t, err, ErrCloseRequested)
	assert.True(t, strings.HasPrefix(h.sock.out.String(), "HTTP/1.1 400 Bad Request\r\n"))
}

func TestConn_EmptyFileSendsHeaderOnly(t *testing.T) {
	h := newHarness(t)
	err := h.roundTrip(t, "GET /empty.txt HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, okResponse("", true), h.sock.out.String())
	assert.Equal(t, 1, h.sock.writes)
}

func TestConn_WaitsForContentLengthBody(t *testing.T) {
	h := newHarness(t)
	h.sock.feed("GET /index.html HTTP/1.1\r\nContent-Length: 5\r\nConnection: keep-alive\r\n\r\nab")
	require.NoError(t, h.conn.Read())
	h.conn.Process()
	assert.Equal(t, api.InterestRead, h.mux.last().interest)

	h.sock.feed("cde")
	require.NoError(t, h.conn.Read())
	h.conn.Process()
	assert.Equal(t, api.InterestWrite, h.mux.last().interest)
	require.NoError(t, h.conn.Write())
	assert.Equal(t, okResponse(indexBody, true), h.sock.out.String())
}

func TestConn_BodyFillingReadBufferStillWaits(t *testing.T) {
	h := newHarness(t, func(e *Env) { e.ReadBufferSize = 64 })
	head := "GET /index.html HTTP/1.1\r\nContent-Length: 10\r\n\r\n"
	require.Less(t, len(head)+10, 64)

	h.sock.feed(head)
	require.NoError(t, h.conn.Read())
	h.conn.Process()
	assert.Equal(t, api.InterestRead, h.mux.last().interest)
	assert.Empty(t, h.metrics.statuses)

	h.sock.feed("0123456789")
	require.NoError(t, h.conn.Read())
	h.conn.Process()
	assert.Equal(t, api.InterestWrite, h.mux.last().interest)
	assert.ErrorIs(t, h.conn.Write(), ErrCloseRequested)
	assert.Equal(t, okResponse(indexBody, false), h.sock.out.String())
}

func TestConn_TraversalPolicy(t *testing.T) {
	req := "GET /dir/../index.html HTTP/1.1\r\n\r\n"

	allow := newHarness(t)
	assert.ErrorIs(t, allow.roundTrip(t, req), ErrCloseRequested)
	assert.Equal(t, okResponse(indexBody, false), allow.sock.out.String())

	reject := newHarness(t, func(e *Env) { e.Resolver.Policy = TraversalReject })
	assert.ErrorIs(t, reject.roundTrip(t, req), ErrCloseRequested)
	assert.Equal(t, errorResponse(403, "Forbidden", responses[ResourceForbidden].body), reject.sock.out.String())
}

func TestConn_PartialWritesResume(t *testing.T) {
	big := strings.Repeat("0123456789abcdef", 300)
	h := newHarness(t)
	writeFile(t, filepath.Join(h.root, "big.bin"), big, 0o644)
	h.sock.maxWrite = 7
	h.sock.stallEvery = true

	h.sock.feed("GET /big.bin HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	require.NoError(t, h.conn.Read())
	h.conn.Process()

	for i := 0; i < 10000 && h.mux.last().interest == api.InterestWrite; i++ {
		require.NoError(t, h.conn.Write())
	}
	assert.Equal(t, okResponse(big, true), h.sock.out.String())
	assert.Equal(t, api.InterestRead, h.mux.last().interest)
	assert.Equal(t, []int{200}, h.metrics.statuses)
}

func TestConn_WriteErrorClosesWithoutReset(t *testing.T) {
	h := newHarness(t)
	h.sock.writevErr = unix.EPIPE
	err := h.roundTrip(t, "GET /index.html HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	assert.ErrorIs(t, err, unix.EPIPE)
	assert.Nil(t, h.conn.fileAddr)
	assert.Empty(t, h.metrics.statuses)
}

func TestConn_ResponseOverflowClosesConnection(t *testing.T) {
	h := newHarness(t, func(e *Env) { e.WriteBufferSize = 24 })
	err := h.roundTrip(t, "GET /nope HTTP/1.1\r\n\r\n")
	assert.ErrorIs(t, err, ErrCloseRequested)
	assert.Zero(t, h.sock.out.Len())
	assert.Nil(t, h.conn.fileAddr)
}

func TestConn_RequestLargerThanReadBuffer(t *testing.T) {
	h := newHarness(t, func(e *Env) { e.ReadBufferSize = 16 })
	h.sock.feed("GET /aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa HTTP/1.1\r\n\r\n")
	require.NoError(t, h.conn.Read())
	h.conn.Process()
	assert.Equal(t, api.InterestWrite, h.mux.last().interest)
	assert.ErrorIs(t, h.conn.Write(), ErrCloseRequested)
	assert.ErrorIs(t, h.conn.Read(), api.ErrBufferFull)
}

func TestConn_PeerClosed(t *testing.T) {
	h := newHarness(t)
	h.sock.eof = true
	assert.ErrorIs(t, h.conn.Read(), api.ErrPeerClosed)
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, int64(1), h.env.Live.Load())
	h.conn.Close()
	h.conn.Close()
	assert.Equal(t, int64(0), h.env.Live.Load())
	assert.Equal(t, 1, h.mux.count("deregister"))
	assert.Equal(t, 1, h.metrics.opened)
	assert.Equal(t, 1, h.metrics.closed)
}

func TestConn_ProcessHandsBackToReactor(t *testing.T) {
	h := newHarness(t)
	h.conn.HandTo(OwnerWorker)
	h.sock.feed("GET /index.html HTTP/1.1\r\n")
	require.NoError(t, h.conn.Read())
	h.conn.Process()
	assert.Equal(t, OwnerReactor, h.conn.Owner())
	h.conn.Close()
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 200, StatusOf(FileReady))
	assert.Equal(t, 500, StatusOf(InternalError))
	assert.Equal(t, 0, StatusOf(IncompleteRequest))
	assert.Equal(t, "file_ready", FileReady.String())
	assert.Equal(t, "header", StateHeader.String())
}
