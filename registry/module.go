package registry

import (
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/definition"
)

// Record identifies where and how a module was loaded.
type Record struct {
	LoadedAt time.Time
	// CanonicalName is resolved from Location.
	CanonicalName string
	Location      string
	Integrity     string
	// Digest is the content digest of the executed payload.
	Digest digest.Digest
}

// Module is a registered module. It is immutable: accessors return copies.
type Module struct {
	record     Record
	build      *bundle.BuildInfo
	definition definition.Module
}

func newModule(rec Record, def *definition.Module, build *bundle.BuildInfo) *Module {
	m := &Module{record: rec, build: build.Clone()}
	if def != nil {
		m.definition = *def
		m.definition.Description = *def.Description.Clone()
		m.definition.Components = cloneComponents(def.Components)
		m.definition.Directives = cloneDirectives(def.Directives)
		m.definition.Dependencies = append([]definition.Dependency(nil), def.Dependencies...)
		m.definition.Rejected = append([]error(nil), def.Rejected...)
	}
	return m
}

// CanonicalName returns the name resolved from the module location.
func (m *Module) CanonicalName() string { return m.record.CanonicalName }

// Location returns the cleaned location the module was loaded from.
func (m *Module) Location() string { return m.record.Location }

// Integrity returns the SRI digest the module was verified against.
func (m *Module) Integrity() string { return m.record.Integrity }

// Digest returns the content digest of the executed payload.
func (m *Module) Digest() digest.Digest { return m.record.Digest }

// LoadedAt returns when the module was registered.
func (m *Module) LoadedAt() time.Time { return m.record.LoadedAt }

// Name returns the name declared by the module definition.
func (m *Module) Name() string { return m.definition.Name }

// Version returns the declared module version.
func (m *Module) Version() string { return m.definition.Version }

// Category returns the declared module category.
func (m *Module) Category() string { return m.definition.Category }

// Description returns the normalized module description.
func (m *Module) Description() definition.Description {
	return *m.definition.Description.Clone()
}

// Components returns the module's components in declaration order.
func (m *Module) Components() []definition.Component {
	return cloneComponents(m.definition.Components)
}

// ComponentNames returns the module's component names in declaration order.
func (m *Module) ComponentNames() []string {
	names := make([]string, len(m.definition.Components))
	for i, c := range m.definition.Components {
		names[i] = c.Name
	}
	return names
}

// Directives returns the module's directives in declaration order.
func (m *Module) Directives() []definition.Directive {
	return cloneDirectives(m.definition.Directives)
}

// Dependencies returns the declared host dependencies.
func (m *Module) Dependencies() []definition.Dependency {
	return append([]definition.Dependency(nil), m.definition.Dependencies...)
}

// Rejected returns the errors of entries dropped during normalization.
func (m *Module) Rejected() []error {
	return append([]error(nil), m.definition.Rejected...)
}

// Build returns the build information embedded in the bundle, or nil.
func (m *Module) Build() *bundle.BuildInfo {
	return m.build.Clone()
}

func cloneComponents(in []definition.Component) []definition.Component {
	out := make([]definition.Component, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func cloneDirectives(in []definition.Directive) []definition.Directive {
	out := make([]definition.Directive, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}
