// control/hotreload.go
// Manages reload hooks fired when the configuration file changes.

package control

import "sync"

var (
	hooksMu     sync.Mutex
	reloadHooks []func()
)

// RegisterReloadHook adds a new component reload listener.
func RegisterReloadHook(fn func()) {
	hooksMu.Lock()
	reloadHooks = append(reloadHooks, fn)
	hooksMu.Unlock()
}

func snapshotHooks() []func() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	return append([]func(){}, reloadHooks...)
}

// TriggerHotReloadSync invokes all reload hooks synchronously.
func TriggerHotReloadSync() {
	for _, fn := range snapshotHooks() {
		fn()
	}
}

// ResetReloadHooks drops every registered hook.
func ResetReloadHooks() {
	hooksMu.Lock()
	reloadHooks = nil
	hooksMu.Unlock()
}
