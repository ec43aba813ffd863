// Package health aggregates liveness checks for the server's dependencies.
package health

import (
	"context"
	"sort"
	"sync"
)

// Status is the outcome of checking one dependency.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker probes a single dependency. Implementations should honor ctx
// and fill Detail only on failure.
type Checker func(ctx context.Context) Status

// Registry runs registered checkers on demand. Checks report in name
// order so /health output is stable across calls.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Register adds or replaces the checker for name.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers[name] = check
	r.mu.Unlock()
}

// CheckAll runs every checker and reports whether all passed, plus the
// per-dependency results sorted by name.
func (r *Registry) CheckAll(ctx context.Context) (bool, []Status) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	checkers := make([]Checker, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		checkers = append(checkers, r.checkers[name])
	}
	r.mu.RUnlock()

	healthy := true
	statuses := make([]Status, len(names))
	for i, check := range checkers {
		statuses[i] = check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}
