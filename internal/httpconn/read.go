// File: internal/httpconn/read.go
// Author: momentics <momentics@gmail.com>

package httpconn

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// Read drains the socket into the read buffer until it would block or the
// buffer is full. It runs on the reactor. Any error means the connection
// must be closed.
func (c *Conn) Read() error {
	limit := len(c.readBuf) - 1
	if c.readIndex >= limit {
		return api.ErrBufferFull
	}
	for c.readIndex < limit {
		n, err := c.env.IO.Recv(c.fd, c.readBuf[c.readIndex:limit])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				break
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("recv fd=%d: %w", c.fd, err)
		}
		if n == 0 {
			return api.ErrPeerClosed
		}
		c.readIndex += n
	}
	c.readBuf[c.readIndex] = 0
	return nil
}
