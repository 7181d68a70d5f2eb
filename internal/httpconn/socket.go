//go:build linux

// File: internal/httpconn/socket.go
// Author: momentics <momentics@gmail.com>

package httpconn

import (
	"golang.org/x/sys/unix"
)

// UnixSocket performs the raw non-blocking socket calls.
type UnixSocket struct{}

func (UnixSocket) Recv(fd int, p []byte) (int, error) {
	return unix.Read(fd, p)
}

func (UnixSocket) Writev(fd int, iovs [][]byte) (int, error) {
	return unix.Writev(fd, iovs)
}
