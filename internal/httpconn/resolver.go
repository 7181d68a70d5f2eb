// File: internal/httpconn/resolver.go
// Author: momentics <momentics@gmail.com>

package httpconn

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TraversalPolicy decides what happens to request targets with ".." segments.
type TraversalPolicy string

const (
	// TraversalAllow concatenates root and target unchanged.
	TraversalAllow TraversalPolicy = "allow"
	// TraversalReject answers targets containing a ".." segment with 403.
	TraversalReject TraversalPolicy = "reject"
)

// ErrTraversal marks a target rejected by TraversalReject.
var ErrTraversal = errors.New("path traversal rejected")

// Resolver maps a request target onto the filesystem.
type Resolver struct {
	Root   string
	Policy TraversalPolicy
}

// NewResolver returns a resolver for root. An empty policy means allow.
func NewResolver(root string, policy TraversalPolicy) *Resolver {
	if policy == "" {
		policy = TraversalAllow
	}
	return &Resolver{Root: strings.TrimRight(root, "/"), Policy: policy}
}

// DefaultRoot is the resources directory next to the executable's parent
// directory, i.e. <exe-dir>/../resources.
func DefaultRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "..", "resources"), nil
}

// Resolve returns the filesystem path for target. The query string is not
// part of the path.
func (r *Resolver) Resolve(target string) (string, error) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	if r.Policy == TraversalReject {
		for _, seg := range strings.Split(target, "/") {
			if seg == ".." {
				return "", fmt.Errorf("%q: %w", target, ErrTraversal)
			}
		}
	}
	return r.Root + target, nil
}
