// File: server/table.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-httpd/internal/httpconn"
)

// table is the connection arena: one slot per descriptor value below its
// size. Slots are allocated on first use and reused afterwards; the
// per-slot generation tells a fresh connection from a stale event for the
// previous occupant of the same descriptor. Only the reactor touches it.
type table struct {
	env   *httpconn.Env
	slots []*httpconn.Conn
	gens  []uint32
}

func newTable(env *httpconn.Env, size int) *table {
	return &table{
		env:   env,
		slots: make([]*httpconn.Conn, size),
		gens:  make([]uint32, size),
	}
}

func (t *table) size() int { return len(t.slots) }

// acquire returns the slot for fd and its next generation, or nil when fd
// does not fit.
func (t *table) acquire(fd int) (*httpconn.Conn, uint32) {
	if fd < 0 || fd >= len(t.slots) {
		return nil, 0
	}
	c := t.slots[fd]
	if c == nil {
		c = httpconn.New(t.env)
		t.slots[fd] = c
	}
	t.gens[fd]++
	return c, t.gens[fd]
}

// lookup returns the live connection matching fd and gen.
func (t *table) lookup(fd int, gen uint32) *httpconn.Conn {
	if fd < 0 || fd >= len(t.slots) {
		return nil
	}
	c := t.slots[fd]
	if c == nil || c.Fd() != fd || c.Gen() != gen {
		return nil
	}
	return c
}

// each calls fn for every open connection.
func (t *table) each(fn func(*httpconn.Conn)) {
	for _, c := range t.slots {
		if c != nil && c.Fd() >= 0 {
			fn(c)
		}
	}
}
