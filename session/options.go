package session

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-distributed/fetch"
	"github.com/wippyai/wasm-distributed/importer"
	"github.com/wippyai/wasm-distributed/loader"
)

// Option configures a Session.
type Option func(*options)

type options struct {
	logger           *zap.Logger
	fetcher          importer.Fetcher
	loader           loader.Loader
	cache            fetch.Cache
	tracer           trace.Tracer
	suffix           string
	payloadExt       string
	hostVersion      string
	httpTimeout      time.Duration
	memoryLimitPages uint32
}

// WithLogger sets the logger shared by every part of the session.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f importer.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithLoader replaces the default wazero loader. The session does not close
// a loader it did not create.
func WithLoader(l loader.Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithCache sets the bundle cache of the default fetcher.
func WithCache(c fetch.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithHTTPTimeout sets the request timeout of the default fetcher.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) {
		o.httpTimeout = d
	}
}

// WithMemoryLimitPages caps the memory of each bundle run by the default
// loader.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) {
		o.memoryLimitPages = pages
	}
}

// WithSuffix sets the packaging marker stripped from filenames.
func WithSuffix(suffix string) Option {
	return func(o *options) {
		if suffix != "" {
			o.suffix = suffix
		}
	}
}

// WithPayloadExt sets the extension of payloads inside archives.
func WithPayloadExt(ext string) Option {
	return func(o *options) {
		if ext != "" {
			o.payloadExt = ext
		}
	}
}

// WithHostVersion sets the version modules are compared against.
func WithHostVersion(v string) Option {
	return func(o *options) {
		if v != "" {
			o.hostVersion = v
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}
