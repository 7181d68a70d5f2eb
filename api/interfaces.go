// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

// SocketIO abstracts the non-blocking socket calls a connection performs.
// Would-block is reported as unix.EAGAIN.
type SocketIO interface {
	Recv(fd int, p []byte) (int, error)
	Writev(fd int, iovs [][]byte) (int, error)
}

// Metrics receives server counters. Implementations must be safe for
// concurrent use; a nil Metrics is never passed around, use a no-op instead.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	RequestServed(status int)
	BytesSent(n int)
	SubmissionRejected()
}
