// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral construction of the readiness multiplexer.

package reactor

import "github.com/momentics/hioload-httpd/api"

// DefaultMaxEvents bounds the number of events collected per Wait.
const DefaultMaxEvents = 1024

// New constructs the platform multiplexer.
func New() (api.Multiplexer, error) {
	return newMultiplexer()
}
