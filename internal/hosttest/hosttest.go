// Package hosttest provides a recording host for tests.
package hosttest

import (
	"fmt"
	"sort"
	"sync"

	distributed "github.com/wippyai/wasm-distributed"
)

// Host records every registration. It is safe for concurrent use.
type Host struct {
	components   map[string]*distributed.Unit
	directives   map[string]*distributed.Unit
	dependencies map[string]any
	calls        []string
	// FailOn makes registration of the named component or directive fail.
	FailOn string
	mu     sync.Mutex
}

// New creates an empty recording host.
func New() *Host {
	return &Host{
		components:   make(map[string]*distributed.Unit),
		directives:   make(map[string]*distributed.Unit),
		dependencies: make(map[string]any),
	}
}

func (h *Host) RegisterComponent(name string, unit *distributed.Unit) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if name == h.FailOn {
		return fmt.Errorf("component %s rejected", name)
	}
	h.components[name] = unit
	h.calls = append(h.calls, "component:"+name)
	return nil
}

func (h *Host) RegisterDirective(name string, unit *distributed.Unit) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if name == h.FailOn {
		return fmt.Errorf("directive %s rejected", name)
	}
	h.directives[name] = unit
	h.calls = append(h.calls, "directive:"+name)
	return nil
}

func (h *Host) ProvideDependency(name string, value any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dependencies[name] = value
	h.calls = append(h.calls, "provide:"+name)
	return nil
}

// Component returns the unit registered under name.
func (h *Host) Component(name string) (*distributed.Unit, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	u, ok := h.components[name]
	return u, ok
}

// ComponentNames returns the registered component names, sorted.
func (h *Host) ComponentNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return keys(h.components)
}

// DirectiveNames returns the registered directive names, sorted.
func (h *Host) DirectiveNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return keys(h.directives)
}

// Dependency returns a provided dependency.
func (h *Host) Dependency(name string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.dependencies[name]
	return v, ok
}

// Calls returns every registration in call order.
func (h *Host) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func keys(m map[string]*distributed.Unit) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
