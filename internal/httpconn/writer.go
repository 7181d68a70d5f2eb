// File: internal/httpconn/writer.go
// Author: momentics <momentics@gmail.com>

package httpconn

import (
	"fmt"
	"strconv"

	"github.com/momentics/hioload-httpd/api"
)

// Writer appends into a fixed-capacity byte slice. An append that does not
// fit fails with api.ErrBufferOverflow and leaves the cursor unchanged.
type Writer struct {
	buf []byte
	n   int
}

// NewWriter wraps buf; its length is the capacity.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) Reset() { w.n = 0 }

func (w *Writer) Len() int { return w.n }

func (w *Writer) Cap() int { return len(w.buf) }

// Bytes returns the written prefix. It aliases the underlying buffer.
func (w *Writer) Bytes() []byte { return w.buf[:w.n] }

func (w *Writer) WriteString(s string) error {
	if len(s) > len(w.buf)-w.n {
		return fmt.Errorf("append %d bytes at %d/%d: %w", len(s), w.n, len(w.buf), api.ErrBufferOverflow)
	}
	w.n += copy(w.buf[w.n:], s)
	return nil
}

// Printf formats into a scratch slice bounded by the remaining capacity.
func (w *Writer) Printf(format string, args ...any) error {
	out := fmt.Appendf(w.buf[w.n:w.n:len(w.buf)], format, args...)
	if len(out) > len(w.buf)-w.n {
		return fmt.Errorf("formatted append of %d bytes at %d/%d: %w", len(out), w.n, len(w.buf), api.ErrBufferOverflow)
	}
	w.n += len(out)
	return nil
}

// WriteInt appends the decimal form of v without going through fmt.
func (w *Writer) WriteInt(v int64) error {
	var scratch [20]byte
	digits := strconv.AppendInt(scratch[:0], v, 10)
	if len(digits) > len(w.buf)-w.n {
		return fmt.Errorf("append %d digits at %d/%d: %w", len(digits), w.n, len(w.buf), api.ErrBufferOverflow)
	}
	w.n += copy(w.buf[w.n:], digits)
	return nil
}
