// File: internal/httpconn/request.go
// Author: momentics <momentics@gmail.com>

package httpconn

import (
	"errors"

	"github.com/momentics/hioload-httpd/internal/logger"
	"golang.org/x/sys/unix"
)

// doRequest resolves the target and maps the file for sending.
func (c *Conn) doRequest() Outcome {
	target := c.URL()
	path, err := c.env.Resolver.Resolve(target)
	if err != nil {
		if errors.Is(err, ErrTraversal) {
			logger.Info("conn: fd=%d peer=%s rejected target %q", c.fd, c.peer, target)
			return ResourceForbidden
		}
		return InternalError
	}
	c.realPath = path

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		logger.Debug("conn: fd=%d stat %s: %v", c.fd, path, err)
		return ResourceMissing
	}
	if st.Mode&unix.S_IROTH == 0 {
		return ResourceForbidden
	}
	if st.Mode&unix.S_IFMT == unix.S_IFDIR {
		return MalformedRequest
	}
	c.fileSize = st.Size
	if st.Size == 0 {
		return FileReady
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		logger.Warn("conn: open %s: %v", path, err)
		return InternalError
	}
	addr, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ, unix.MAP_PRIVATE)
	_ = unix.Close(fd)
	if err != nil {
		logger.Warn("conn: mmap %s: %v", path, err)
		return InternalError
	}
	c.fileAddr = addr
	return FileReady
}
