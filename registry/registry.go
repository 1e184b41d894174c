// Package registry holds the modules registered in one loading session.
//
// Modules are keyed by canonical name and kept in registration order.
// Register is the only mutator besides Clear; registered modules are
// immutable.
package registry

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/definition"
	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/location"
)

// ClearHook runs when the registry is cleared.
type ClearHook func(ctx context.Context) error

// Registry is a concurrency-safe ordered collection of modules.
type Registry struct {
	byName  map[string]*Module
	hooks   []ClearHook
	order   []string
	now     func() time.Time
	mu      sync.RWMutex
	hooksMu sync.Mutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]*Module),
		now:    time.Now,
	}
}

// OnClear registers a hook run by Clear after the modules are dropped.
func (r *Registry) OnClear(h ClearHook) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Register stores a module for rec.CanonicalName. If the name is already
// registered the existing module is returned with created false.
func (r *Registry) Register(rec Record, def *definition.Module, build *bundle.BuildInfo) (*Module, bool, error) {
	if rec.CanonicalName == "" {
		return nil, false, errors.InvalidInput(errors.PhaseRegister, "canonical name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[rec.CanonicalName]; ok {
		return existing, false, nil
	}
	if rec.LoadedAt.IsZero() {
		rec.LoadedAt = r.now()
	}
	m := newModule(rec, def, build)
	r.byName[rec.CanonicalName] = m
	r.order = append(r.order, rec.CanonicalName)
	return m, true, nil
}

// Find returns the module registered under a canonical name.
func (r *Registry) Find(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// FindByLocation resolves loc and returns the module registered under the
// resulting name.
func (r *Registry) FindByLocation(loc, suffix string) (*Module, bool) {
	name, err := location.Resolve(loc, suffix)
	if err != nil {
		return nil, false
	}
	return r.Find(name)
}

// Modules returns every module in registration order.
func (r *Registry) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Module, len(r.order))
	for i, name := range r.order {
		out[i] = r.byName[name]
	}
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Components returns every component of every module in registration order.
func (r *Registry) Components() []definition.Component {
	var out []definition.Component
	for _, m := range r.Modules() {
		out = append(out, m.Components()...)
	}
	return out
}

// ComponentNames returns the distinct component names, sorted.
func (r *Registry) ComponentNames() []string {
	seen := make(map[string]struct{})
	for _, m := range r.Modules() {
		for _, name := range m.ComponentNames() {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Component returns the component registered under name. When several
// modules declare the name, the last registered wins.
func (r *Registry) Component(name string) (definition.Component, *Module, bool) {
	mods := r.Modules()
	for i := len(mods) - 1; i >= 0; i-- {
		comps := mods[i].definition.Components
		for j := len(comps) - 1; j >= 0; j-- {
			if comps[j].Name == name {
				return comps[j].Clone(), mods[i], true
			}
		}
	}
	return definition.Component{}, nil, false
}

// HasComponent reports whether any registered module declares name.
func (r *Registry) HasComponent(name string) bool {
	_, _, ok := r.Component(name)
	return ok
}

// Clear drops every module and runs the clear hooks. Hook errors are joined.
func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.byName = make(map[string]*Module)
	r.order = nil
	r.mu.Unlock()

	r.hooksMu.Lock()
	hooks := append([]ClearHook(nil), r.hooks...)
	r.hooksMu.Unlock()

	var errs []error
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
