// Package importer fetches, verifies and executes bundles.
//
// Two strategies share one handle table keyed by canonical name: Direct
// fetches a payload verified against its sidecar digest, Archive fetches a
// zip verified against its sidecar and then checks the inner payload against
// the digest shipped inside the archive. Whatever the strategy, at most one
// import per canonical name is in flight. Concurrent requests wait on the
// same handle and receive the same exports.
package importer

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-distributed/bundle"
	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/integrity"
	"github.com/wippyai/wasm-distributed/loader"
	"github.com/wippyai/wasm-distributed/location"
)

const tracerName = "github.com/wippyai/wasm-distributed/importer"

// Fetcher retrieves sidecar digests and verified content.
type Fetcher interface {
	Sidecar(ctx context.Context, loc string) (string, error)
	FetchVerified(ctx context.Context, loc, sri string) ([]byte, error)
}

// Record is the outcome of a successful import.
type Record struct {
	LoadedAt time.Time
	Exports  *loader.Exports
	Name     string
	Location string
	// Integrity is the SRI digest the executed payload was verified against.
	Integrity string
	Digest    digest.Digest
}

// Strategy imports the bundle at a location.
type Strategy interface {
	Import(ctx context.Context, loc, sri string) (*Record, error)
}

type handle struct {
	done   chan struct{}
	record *Record
	err    error
}

// Importer owns the handle table shared by both strategies.
type Importer struct {
	loader  loader.Loader
	fetcher Fetcher
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
	handles map[string]*handle
	suffix  string
	ext     string
	mu      sync.Mutex
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Importer) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithSuffix sets the packaging marker used to resolve names.
func WithSuffix(suffix string) Option {
	return func(i *Importer) {
		if suffix != "" {
			i.suffix = suffix
		}
	}
}

// WithPayloadExt sets the extension of the payload inside archives.
func WithPayloadExt(ext string) Option {
	return func(i *Importer) {
		if ext != "" {
			i.ext = ext
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(i *Importer) {
		if t != nil {
			i.tracer = t
		}
	}
}

// New creates an Importer executing payloads with l.
func New(l loader.Loader, f Fetcher, opts ...Option) *Importer {
	i := &Importer{
		loader:  l,
		fetcher: f,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		handles: make(map[string]*handle),
		suffix:  location.DefaultSuffix,
		ext:     location.DefaultPayloadExt,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Direct returns the strategy for plain payload locations.
func (i *Importer) Direct() Strategy {
	return direct{i}
}

// Archive returns the strategy for zip locations.
func (i *Importer) Archive() Strategy {
	return archive{i}
}

// For picks the strategy matching loc.
func (i *Importer) For(loc string) Strategy {
	if location.IsArchive(loc) {
		return i.Archive()
	}
	return i.Direct()
}

// Import imports loc with the strategy matching it. sri is the digest
// published in the sidecar of loc.
func (i *Importer) Import(ctx context.Context, loc, sri string) (*Record, error) {
	return i.For(loc).Import(ctx, loc, sri)
}

// Pending reports whether an import for name is in flight.
func (i *Importer) Pending(name string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	h, ok := i.handles[name]
	if !ok {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Loaded returns the names of completed imports, sorted.
func (i *Importer) Loaded() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []string
	for name, h := range i.handles {
		select {
		case <-h.done:
			if h.err == nil {
				out = append(out, name)
			}
		default:
		}
	}
	sort.Strings(out)
	return out
}

// Release releases every completed import through the loader and forgets
// it. Imports still in flight are left alone.
func (i *Importer) Release(ctx context.Context) error {
	i.mu.Lock()
	var names []string
	for name, h := range i.handles {
		select {
		case <-h.done:
			delete(i.handles, name)
			if h.err == nil {
				names = append(names, name)
			}
		default:
		}
	}
	i.mu.Unlock()

	sort.Strings(names)
	var errs []error
	for _, name := range names {
		if err := i.loader.Release(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// acquire runs fn for name unless another import of name is in flight or
// done, in which case it waits for that one.
func (i *Importer) acquire(ctx context.Context, name, loc string, fn func(context.Context) (*Record, error)) (*Record, error) {
	i.mu.Lock()
	if h, ok := i.handles[name]; ok {
		i.mu.Unlock()
		i.logger.Debug("joining import in flight", zap.String("module", name), zap.String("location", loc))
		return wait(ctx, h)
	}
	h := &handle{done: make(chan struct{})}
	i.handles[name] = h
	i.mu.Unlock()

	h.record, h.err = fn(ctx)
	if h.err != nil {
		i.mu.Lock()
		if i.handles[name] == h {
			delete(i.handles, name)
		}
		i.mu.Unlock()
	}
	close(h.done)
	return h.record, h.err
}

func wait(ctx context.Context, h *handle) (*Record, error) {
	select {
	case <-h.done:
		return h.record, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load hands a verified payload to the loader.
func (i *Importer) load(ctx context.Context, name, loc, sri string, payload []byte) (*Record, error) {
	exports, err := i.loader.Load(ctx, name, payload)
	if err != nil {
		return nil, err
	}
	return &Record{
		LoadedAt:  i.now(),
		Exports:   exports,
		Name:      name,
		Location:  loc,
		Integrity: sri,
		Digest:    integrity.ContentDigest(payload),
	}, nil
}

func (i *Importer) span(ctx context.Context, strategy, loc, name string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "importer."+strategy, trace.WithAttributes(
		attribute.String("bundle.location", loc),
		attribute.String("bundle.name", name),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type direct struct{ *Importer }

func (d direct) Import(ctx context.Context, loc, sri string) (rec *Record, err error) {
	loc = location.Clean(loc)
	name, err := location.Resolve(loc, d.suffix)
	if err != nil {
		return nil, err
	}

	ctx, span := d.span(ctx, "direct", loc, name)
	defer func() { endSpan(span, err) }()

	return d.acquire(ctx, name, loc, func(ctx context.Context) (*Record, error) {
		payload, err := d.fetcher.FetchVerified(ctx, loc, sri)
		if err != nil {
			return nil, err
		}
		return d.load(ctx, name, loc, sri, payload)
	})
}

type archive struct{ *Importer }

func (a archive) Import(ctx context.Context, loc, sri string) (rec *Record, err error) {
	loc = location.Clean(loc)
	name, err := location.Resolve(loc, a.suffix)
	if err != nil {
		return nil, err
	}

	ctx, span := a.span(ctx, "archive", loc, name)
	defer func() { endSpan(span, err) }()

	return a.acquire(ctx, name, loc, func(ctx context.Context) (*Record, error) {
		zipped, err := a.fetcher.FetchVerified(ctx, loc, sri)
		if err != nil {
			return nil, err
		}
		payload, inner, err := bundle.Extract(zipped, name, a.suffix, a.ext)
		if err != nil {
			return nil, err
		}

		entry := loc + "#" + location.PayloadEntry(name, a.suffix, a.ext)
		parsed, ok := integrity.Parse(inner)
		if !ok {
			return nil, errors.InvalidDigest(loc+"#"+location.DigestEntry(name, a.suffix, a.ext), inner)
		}
		if !integrity.Verify(payload, parsed.String()) {
			return nil, errors.IntegrityMismatch(entry, parsed.String(), integrity.Digest(payload))
		}
		return a.load(ctx, name, loc, parsed.String(), payload)
	})
}
