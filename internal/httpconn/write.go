// File: internal/httpconn/write.go
// Author: momentics <momentics@gmail.com>

package httpconn

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// Write sends the prepared response with gather writes. It runs on the
// reactor. nil means the connection stays open and has been re-armed;
// any error means the caller must Close it.
func (c *Conn) Write() error {
	if c.closePending {
		c.unmap()
		return ErrCloseRequested
	}
	if c.bytesToSend == 0 {
		c.reset()
		c.rearm(api.InterestRead)
		return nil
	}
	for {
		n, err := c.env.IO.Writev(c.fd, c.iov[:c.iovCount])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				c.rearm(api.InterestWrite)
				return nil
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			c.unmap()
			return fmt.Errorf("writev fd=%d: %w", c.fd, err)
		}
		if n == 0 {
			c.rearm(api.InterestWrite)
			return nil
		}
		c.bytesSent += n
		c.bytesToSend -= n
		c.env.Metrics.BytesSent(n)
		c.advance()

		if c.bytesToSend <= 0 {
			c.unmap()
			c.env.Metrics.RequestServed(c.status)
			if !c.keepAlive {
				return ErrCloseRequested
			}
			c.reset()
			c.rearm(api.InterestRead)
			return nil
		}
	}
}

// advance moves the gather segments past bytesSent.
func (c *Conn) advance() {
	if c.bytesSent >= c.headerLen {
		c.iov[0] = c.iov[0][:0]
		if c.iovCount == 2 {
			c.iov[1] = c.fileAddr[c.bytesSent-c.headerLen:]
		}
		return
	}
	c.iov[0] = c.writeBuf[c.bytesSent:c.headerLen]
}
