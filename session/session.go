// Package session ties the loading pipeline together for one host
// application instance.
//
// A Session owns the registry, the install ledger and the import handle
// table. LoadModule resolves a location, imports and verifies the bundle on
// first sight, normalizes its definition, registers it and returns the
// procedure that installs it into the host.
package session

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	distributed "github.com/wippyai/wasm-distributed"
	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/definition"
	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/fetch"
	"github.com/wippyai/wasm-distributed/importer"
	"github.com/wippyai/wasm-distributed/install"
	"github.com/wippyai/wasm-distributed/loader"
	"github.com/wippyai/wasm-distributed/location"
	"github.com/wippyai/wasm-distributed/registry"
	"github.com/wippyai/wasm-distributed/version"
)

const tracerName = "github.com/wippyai/wasm-distributed/session"

// Session loads modules into one host.
type Session struct {
	host       distributed.Host
	fetcher    importer.Fetcher
	loader     loader.Loader
	importer   *importer.Importer
	registry   *registry.Registry
	installer  *install.Installer
	normalizer *definition.Normalizer
	comparator *version.Comparator
	logger     *zap.Logger
	tracer     trace.Tracer
	closeFn    func(context.Context) error
	deps       map[string]any
	suffix     string
	hostVer    string
	depsMu     sync.Mutex

	// clearMu orders registrations against Clear; gen counts clears.
	clearMu sync.RWMutex
	gen     uint64
}

// New creates a session for host.
func New(ctx context.Context, host distributed.Host, opts ...Option) (*Session, error) {
	if host == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "host is required")
	}

	o := options{
		logger:      zap.NewNop(),
		suffix:      location.DefaultSuffix,
		payloadExt:  location.DefaultPayloadExt,
		hostVersion: distributed.Version,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	s := &Session{
		host:     host,
		fetcher:  o.fetcher,
		loader:   o.loader,
		registry: registry.New(),
		logger:   o.logger,
		tracer:   o.tracer,
		deps:     make(map[string]any),
		suffix:   o.suffix,
		hostVer:  o.hostVersion,
	}

	if s.fetcher == nil {
		fopts := []fetch.ClientOption{fetch.WithLogger(o.logger)}
		if o.httpTimeout > 0 {
			fopts = append(fopts, fetch.WithTimeout(o.httpTimeout))
		}
		if o.cache != nil {
			fopts = append(fopts, fetch.WithCache(o.cache))
		}
		s.fetcher = fetch.NewClient(fopts...)
	}
	if s.loader == nil {
		wl := loader.NewWazeroLoader(ctx, &loader.Config{MemoryLimitPages: o.memoryLimitPages})
		s.loader = wl
		s.closeFn = wl.Close
	}

	s.importer = importer.New(s.loader, s.fetcher,
		importer.WithLogger(o.logger),
		importer.WithSuffix(o.suffix),
		importer.WithPayloadExt(o.payloadExt),
		importer.WithTracer(o.tracer))
	s.registry.OnClear(s.importer.Release)
	s.installer = install.NewInstaller(install.NewLedger(),
		install.WithLogger(o.logger),
		install.WithDependencies(s))
	s.normalizer = definition.NewNormalizer(
		definition.WithLogger(o.logger),
		definition.WithKnownComponents(s.registry.ComponentNames))
	s.comparator = version.NewComparator(o.logger)

	return s, nil
}

// LoadModule loads the bundle at loc and returns the procedure installing
// it. A module already registered under the same canonical name is not
// fetched again. A bundle without a definition yields install.NoOp. A load
// overtaken by Clear fails and registers nothing.
func (s *Session) LoadModule(ctx context.Context, loc string) (proc *install.Procedure, err error) {
	loc = location.Clean(loc)
	ctx, span := s.tracer.Start(ctx, "session.LoadModule",
		trace.WithAttributes(attribute.String("bundle.location", loc)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	name, err := location.Resolve(loc, s.suffix)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("bundle.name", name))
	log := s.logger.With(zap.String("module", name), zap.String("location", loc))

	if m, ok := s.registry.Find(name); ok {
		log.Warn("module is already loaded", zap.String("loaded_from", m.Location()))
		return s.installer.Build(m), nil
	}

	s.clearMu.RLock()
	gen := s.gen
	s.clearMu.RUnlock()

	sri, err := s.fetcher.Sidecar(ctx, loc)
	if err != nil {
		return nil, err
	}
	rec, err := s.importer.Import(ctx, loc, sri)
	if err != nil {
		return nil, err
	}

	raw, err := definition.Extract(rec.Exports, loc, name)
	if err != nil {
		if errors.IsKind(err, errors.KindNoExportFound) {
			log.Warn("no plugin or default export found, nothing to install", zap.Error(err))
			return install.NoOp, nil
		}
		return nil, err
	}

	var build *bundle.BuildInfo
	if v, ok := rec.Exports.Value(bundle.ExportBuild); ok {
		build = bundle.ParseBuildInfo(v)
	}
	def := s.normalizer.NormalizeModule(name, raw, rec.Exports)

	m, created, err := s.register(gen, registry.Record{
		LoadedAt:      rec.LoadedAt,
		CanonicalName: name,
		Location:      loc,
		Integrity:     rec.Integrity,
		Digest:        rec.Digest,
	}, def, build)
	if err != nil {
		return nil, err
	}
	if !created {
		log.Warn("module is already loaded", zap.String("loaded_from", m.Location()))
		return s.installer.Build(m), nil
	}

	log.Info("module loaded",
		zap.Strings("components", m.ComponentNames()),
		zap.Int("directives", len(m.Directives())))
	if build != nil && build.Version != "" {
		if res := s.CompareVersion(m); res.State == version.Older || res.State == version.Newer {
			log.Warn("module was built against a different version",
				zap.String("host_version", res.Host),
				zap.String("module_version", res.Module),
				zap.String("state", string(res.State)))
		}
	}
	return s.installer.Build(m), nil
}

// register adds a module unless the session was cleared since gen. The
// exports of a load that raced with Clear may already be released.
func (s *Session) register(gen uint64, rec registry.Record, def *definition.Module, build *bundle.BuildInfo) (*registry.Module, bool, error) {
	s.clearMu.RLock()
	defer s.clearMu.RUnlock()
	if s.gen != gen {
		return nil, false, errors.New(errors.PhaseRegister, errors.KindLoadFailure).
			Location(rec.Location).
			Module(rec.CanonicalName).
			Detail("session was cleared while the module was loading").
			Build()
	}
	return s.registry.Register(rec, def, build)
}

// LoadAll loads every location concurrently. Procedures are returned in
// input order; the first error cancels the remaining loads.
func (s *Session) LoadAll(ctx context.Context, locs []string) ([]*install.Procedure, error) {
	procs := make([]*install.Procedure, len(locs))
	g, ctx := errgroup.WithContext(ctx)
	for i, loc := range locs {
		g.Go(func() error {
			p, err := s.LoadModule(ctx, loc)
			if err != nil {
				return err
			}
			procs[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return procs, nil
}

// Provide shares values with bundles through the host. A name already
// provided is skipped with a warning. Providing a value already provided
// under another name is an error.
func (s *Session) Provide(values map[string]any) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	s.depsMu.Lock()
	defer s.depsMu.Unlock()

	for _, name := range names {
		value := values[name]
		if _, ok := s.deps[name]; ok {
			s.logger.Warn("dependency is already provided, ignoring", zap.String("dependency", name))
			continue
		}
		for other, existing := range s.deps {
			if sameValue(existing, value) {
				return errors.New(errors.PhaseInstall, errors.KindDuplicate).
					Path("dependency", name).
					Value(value).
					Detail("value already provided as %q", other).
					Build()
			}
		}
		if err := s.host.ProvideDependency(name, value); err != nil {
			return errors.Wrap(errors.PhaseInstall, errors.KindLoadFailure, err, "host rejected dependency "+name)
		}
		s.deps[name] = value
	}
	return nil
}

// Dependency returns a value previously provided.
func (s *Session) Dependency(name string) (any, bool) {
	s.depsMu.Lock()
	defer s.depsMu.Unlock()
	v, ok := s.deps[name]
	return v, ok
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

// Find returns the module registered under a canonical name.
func (s *Session) Find(name string) (*registry.Module, bool) {
	return s.registry.Find(name)
}

// Modules returns the registered modules in load order.
func (s *Session) Modules() []*registry.Module {
	return s.registry.Modules()
}

// Components returns every registered component.
func (s *Session) Components() []definition.Component {
	return s.registry.Components()
}

// ComponentNames returns the distinct registered component names, sorted.
func (s *Session) ComponentNames() []string {
	return s.registry.ComponentNames()
}

// HasComponent reports whether any module registered the component.
func (s *Session) HasComponent(name string) bool {
	return s.registry.HasComponent(name)
}

// Installer returns the session's installer.
func (s *Session) Installer() *install.Installer {
	return s.installer
}

// HostVersion returns the version modules are compared against.
func (s *Session) HostVersion() string {
	return s.hostVer
}

// CompareVersion compares the host version with the version m was built
// against.
func (s *Session) CompareVersion(m *registry.Module) version.Result {
	var built string
	if b := m.Build(); b != nil {
		built = b.Version
	}
	return s.comparator.Compare(s.hostVer, built)
}

// Clear drops every registered module, releases the executed bundles and
// forgets what was installed and provided.
func (s *Session) Clear(ctx context.Context) error {
	s.clearMu.Lock()
	s.gen++
	err := s.registry.Clear(ctx)
	s.clearMu.Unlock()
	s.installer.Ledger().Reset()

	s.depsMu.Lock()
	s.deps = make(map[string]any)
	s.depsMu.Unlock()
	return err
}

// Close clears the session and closes the loader it created.
func (s *Session) Close(ctx context.Context) error {
	err := s.Clear(ctx)
	if s.closeFn != nil {
		if cerr := s.closeFn(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
