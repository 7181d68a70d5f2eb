// Package api
// Author: momentics
//
// Live debug introspection support.

package api

// Debug exposes named runtime probes.
type Debug interface {
	// DumpState evaluates every probe and returns the results by name.
	DumpState() map[string]any

	// RegisterProbe registers or replaces a probe.
	RegisterProbe(name string, fn func() any)
}
