// File: internal/httpconn/parse.go
// Author: momentics <momentics@gmail.com>

package httpconn

import (
	"bytes"
	"strconv"

	"github.com/momentics/hioload-httpd/internal/logger"
)

// scanLine advances checkedIndex over the read data looking for CRLF.
// A complete line has its CRLF overwritten with NULs in place.
func (c *Conn) scanLine() lineStatus {
	buf := c.readBuf
	for ; c.checkedIndex < c.readIndex; c.checkedIndex++ {
		switch buf[c.checkedIndex] {
		case '\r':
			if c.checkedIndex+1 == c.readIndex {
				return lineOpen
			}
			if buf[c.checkedIndex+1] == '\n' {
				buf[c.checkedIndex] = 0
				buf[c.checkedIndex+1] = 0
				c.checkedIndex += 2
				return lineOK
			}
			return lineBad
		case '\n':
			if c.checkedIndex > 0 && buf[c.checkedIndex-1] == '\r' {
				buf[c.checkedIndex-1] = 0
				buf[c.checkedIndex] = 0
				c.checkedIndex++
				return lineOK
			}
			return lineBad
		}
	}
	return lineOpen
}

// processRead runs the parse state machine over whatever is buffered and
// dispatches a complete request.
func (c *Conn) processRead() Outcome {
	for {
		var status lineStatus
		if c.state == StateContent {
			status = lineOK
		} else {
			status = c.scanLine()
			if status == lineBad {
				return MalformedRequest
			}
			if status == lineOpen {
				return IncompleteRequest
			}
		}

		start := c.lineStart
		end := c.checkedIndex
		if c.state != StateContent {
			end -= 2 // the NULs that replaced CRLF
			c.lineStart = c.checkedIndex
		}

		switch c.state {
		case StateRequestLine:
			if o := c.parseRequestLine(start, end); o != IncompleteRequest {
				return o
			}
		case StateHeader:
			o := c.parseHeader(start, end)
			if o == CompleteRequest {
				return c.doRequest()
			}
			if o != IncompleteRequest {
				return o
			}
		case StateContent:
			if c.parseContent() == CompleteRequest {
				return c.doRequest()
			}
			return IncompleteRequest
		default:
			return InternalError
		}
	}
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' }

func skipBlank(buf []byte, i, end int) int {
	for i < end && isBlank(buf[i]) {
		i++
	}
	return i
}

func hasPrefixFold(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && bytes.EqualFold(b[:len(prefix)], []byte(prefix))
}

// parseRequestLine accepts "GET <target> HTTP/1.1" and moves to headers.
func (c *Conn) parseRequestLine(start, end int) Outcome {
	buf := c.readBuf
	line := buf[start:end]

	sp := bytes.IndexAny(line, " \t")
	if sp < 0 {
		return MalformedRequest
	}
	if !bytes.EqualFold(line[:sp], []byte("GET")) {
		logger.Debug("conn: fd=%d unsupported method %q", c.fd, line[:sp])
		return MalformedRequest
	}
	c.method = MethodGet

	urlStart := skipBlank(buf, start+sp, end)
	sp = bytes.IndexAny(buf[urlStart:end], " \t")
	if sp < 0 {
		return MalformedRequest
	}
	urlEnd := urlStart + sp

	verStart := skipBlank(buf, urlEnd, end)
	verEnd := end
	for verEnd > verStart && isBlank(buf[verEnd-1]) {
		verEnd--
	}
	if !bytes.EqualFold(buf[verStart:verEnd], []byte("HTTP/1.1")) {
		return MalformedRequest
	}

	for _, scheme := range []string{"http://", "https://"} {
		if hasPrefixFold(buf[urlStart:urlEnd], scheme) {
			rest := urlStart + len(scheme)
			slash := bytes.IndexByte(buf[rest:urlEnd], '/')
			if slash < 0 {
				return MalformedRequest
			}
			urlStart = rest + slash
			break
		}
	}
	if urlStart >= urlEnd || buf[urlStart] != '/' {
		return MalformedRequest
	}

	c.url = Span{urlStart, urlEnd}
	c.version = Span{verStart, verEnd}
	c.state = StateHeader
	return IncompleteRequest
}

// parseHeader handles one header line. A blank line ends the header block.
func (c *Conn) parseHeader(start, end int) Outcome {
	buf := c.readBuf
	if start == end {
		if c.contentLength > 0 {
			c.state = StateContent
			return IncompleteRequest
		}
		return CompleteRequest
	}
	line := buf[start:end]
	switch {
	case hasPrefixFold(line, "Connection:"):
		v := bytes.TrimRight(line[skipBlank(line, len("Connection:"), len(line)):], " \t")
		switch {
		case bytes.EqualFold(v, []byte("keep-alive")):
			c.keepAlive = true
		case bytes.EqualFold(v, []byte("close")):
			c.keepAlive = false
		}
	case hasPrefixFold(line, "Content-Length:"):
		v := bytes.TrimRight(line[skipBlank(line, len("Content-Length:"), len(line)):], " \t")
		n, err := strconv.Atoi(string(v))
		if err != nil || n < 0 {
			logger.Debug("conn: fd=%d bad content-length %q", c.fd, v)
			return MalformedRequest
		}
		// the body must fit behind the headers in the read buffer
		if n > len(buf)-1-c.checkedIndex {
			logger.Debug("conn: fd=%d content-length %d exceeds read buffer", c.fd, n)
			return MalformedRequest
		}
		c.contentLength = n
	case hasPrefixFold(line, "Host:"):
		s := start + skipBlank(line, len("Host:"), len(line))
		e := end
		for e > s && isBlank(buf[e-1]) {
			e--
		}
		c.host = Span{s, e}
	default:
		logger.Debug("conn: fd=%d unknown header %q", c.fd, line)
	}
	return IncompleteRequest
}

// parseContent reports whether the whole body has been buffered. The body
// itself is not interpreted.
func (c *Conn) parseContent() Outcome {
	if c.readIndex-c.checkedIndex >= c.contentLength {
		return CompleteRequest
	}
	return IncompleteRequest
}
