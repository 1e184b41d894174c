package distributed

import "context"

// Callable is an invocable unit exported by a loaded bundle.
type Callable interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Unit is a renderable unit or directive implementation handed to the host.
// Render and Setup are nil when the bundle does not export them. Directives
// carry their lifecycle callables in Hooks.
type Unit struct {
	Render  Callable
	Setup   Callable
	Hooks   map[string]Callable
	Options map[string]any
	Name    string
}

// Host is the capability the embedding application provides for mounting
// components and directives and for sharing dependencies with bundles.
type Host interface {
	RegisterComponent(name string, unit *Unit) error
	RegisterDirective(name string, unit *Unit) error
	ProvideDependency(name string, value any) error
}

// Versioned is implemented by provided dependencies that report their version.
type Versioned interface {
	Version() string
}

// CallableFunc adapts a function to Callable.
type CallableFunc func(ctx context.Context, params ...uint64) ([]uint64, error)

// Call invokes f.
func (f CallableFunc) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f(ctx, params...)
}

// Version is the version of this library. Bundles record the version they
// were built against in their build section.
const Version = "1.0.0"
