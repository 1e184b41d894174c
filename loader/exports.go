package loader

import (
	"sort"

	distributed "github.com/wippyai/wasm-distributed"
)

// Exports is what a code loader yields for one executed bundle: the decoded
// definition exports and the bundle's callable functions.
type Exports struct {
	values map[string]any
	funcs  map[string]distributed.Callable
	name   string
}

// NewExports builds an Exports value. Maps are copied.
func NewExports(name string, values map[string]any, funcs map[string]distributed.Callable) *Exports {
	e := &Exports{
		name:   name,
		values: make(map[string]any, len(values)),
		funcs:  make(map[string]distributed.Callable, len(funcs)),
	}
	for k, v := range values {
		e.values[k] = v
	}
	for k, f := range funcs {
		e.funcs[k] = f
	}
	return e
}

// Name returns the name the bundle was loaded under.
func (e *Exports) Name() string {
	return e.name
}

// Value returns a decoded export such as "plugin", "default" or "build".
func (e *Exports) Value(key string) (any, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Func returns an exported function by name.
func (e *Exports) Func(name string) (distributed.Callable, bool) {
	f, ok := e.funcs[name]
	return f, ok
}

// FuncNames returns the exported function names in sorted order.
func (e *Exports) FuncNames() []string {
	names := make([]string, 0, len(e.funcs))
	for n := range e.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Signature describes the core wasm signature of a callable, when known.
type Signature interface {
	ParamTypes() []string
	ResultTypes() []string
}
