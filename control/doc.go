// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, debug introspection and configuration reload hooks.
//
// Provides:
//   - Prometheus-backed server counters with a no-op fallback
//   - Named debug probes and a JSON dump endpoint
//   - Reload hooks fired when the configuration file changes
package control
