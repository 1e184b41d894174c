// Package loader executes verified bundle payloads and exposes their exports.
//
// Loader is the code loading capability of the host. The default
// implementation runs bundles as WebAssembly core modules with wazero; other
// loaders can be substituted behind the same interface.
package loader

import "context"

// Loader executes bundle payloads under a canonical name.
type Loader interface {
	// Load executes source under name and returns its exports. Loading a name
	// that is already loaded returns the existing exports.
	Load(ctx context.Context, name string, source []byte) (*Exports, error)

	// Release frees everything held for name. Releasing an unknown name is
	// a no-op.
	Release(ctx context.Context, name string) error
}
