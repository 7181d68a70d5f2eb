// File: internal/httpconn/response.go
// Author: momentics <momentics@gmail.com>

package httpconn

import (
	"fmt"
)

// processWrite formats the response for outcome into the write buffer and
// lays out the gather segments. A file response is two segments, header
// and mapped file; everything else is one.
func (c *Conn) processWrite(outcome Outcome) error {
	r, ok := responses[outcome]
	if !ok {
		return fmt.Errorf("no response for outcome %s", outcome)
	}
	c.out.Reset()
	c.status = r.status

	if err := c.addStatusLine(r.status, r.title); err != nil {
		return err
	}
	if outcome == FileReady {
		if err := c.addHeaders(c.fileSize); err != nil {
			return err
		}
		c.headerLen = c.out.Len()
		c.iov[0] = c.out.Bytes()
		c.iovCount = 1
		c.bytesToSend = c.headerLen
		if c.fileSize > 0 {
			c.iov[1] = c.fileAddr
			c.iovCount = 2
			c.bytesToSend += len(c.fileAddr)
		}
		return nil
	}

	if err := c.addHeaders(int64(len(r.body))); err != nil {
		return err
	}
	if err := c.out.WriteString(r.body); err != nil {
		return err
	}
	c.headerLen = c.out.Len()
	c.iov[0] = c.out.Bytes()
	c.iovCount = 1
	c.bytesToSend = c.headerLen
	return nil
}

func (c *Conn) addStatusLine(status int, title string) error {
	return c.out.Printf("%s %d %s\r\n", "HTTP/1.1", status, title)
}

func (c *Conn) addHeaders(contentLength int64) error {
	if err := c.out.WriteString("Content-Length: "); err != nil {
		return err
	}
	if err := c.out.WriteInt(contentLength); err != nil {
		return err
	}
	if err := c.out.WriteString("\r\n"); err != nil {
		return err
	}
	if err := c.out.WriteString("Content-Type: text/html\r\n"); err != nil {
		return err
	}
	conn := "close"
	if c.keepAlive {
		conn = "keep-alive"
	}
	if err := c.out.Printf("Connection: %s\r\n", conn); err != nil {
		return err
	}
	return c.out.WriteString("\r\n")
}
