package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the load pipeline the error occurred
type Phase string

const (
	PhaseResolve   Phase = "resolve"   // location to canonical name
	PhaseFetch     Phase = "fetch"     // transport
	PhaseVerify    Phase = "verify"    // integrity checks
	PhaseImport    Phase = "import"    // code loader execution
	PhaseNormalize Phase = "normalize" // definition shaping
	PhaseRegister  Phase = "register"  // module registry
	PhaseInstall   Phase = "install"   // host installation
	PhaseVersion   Phase = "version"   // version comparison
	PhaseConfig    Phase = "config"    // environment and manifests
	PhaseCache     Phase = "cache"     // on-disk bundle cache
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidLocation   Kind = "invalid_location"
	KindFetchFailure      Kind = "fetch_failure"
	KindIntegrityMismatch Kind = "integrity_mismatch"
	KindInvalidDigest     Kind = "invalid_digest"
	KindNoExportFound     Kind = "no_export_found"
	KindMalformedEntry    Kind = "malformed_entry"
	KindParseFailure      Kind = "parse_failure"
	KindLoadFailure       Kind = "load_failure"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindDuplicate         Kind = "duplicate"
)

// Error is the structured error type used by every package of the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Location string
	Module   string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" {
		b.WriteString(" module ")
		b.WriteString(e.Module)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Location != "" {
		b.WriteString(" (")
		b.WriteString(e.Location)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Retryable reports whether a later attempt with the same input may succeed.
// Transport failures are retryable; integrity and shape failures are not.
func (e *Error) Retryable() bool {
	return e.Kind == KindFetchFailure
}

// IsKind reports whether any error in err's chain is an *Error of the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the entry path inside a module definition
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Location sets the module location
func (b *Builder) Location(loc string) *Builder {
	b.err.Location = loc
	return b
}

// Module sets the canonical module name
func (b *Builder) Module(name string) *Builder {
	b.err.Module = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidLocation creates an error for a location without a resolvable name
func InvalidLocation(loc, detail string) *Error {
	return &Error{
		Phase:    PhaseResolve,
		Kind:     KindInvalidLocation,
		Location: loc,
		Detail:   detail,
	}
}

// FetchFailure creates a transport error
func FetchFailure(loc string, cause error) *Error {
	return &Error{
		Phase:    PhaseFetch,
		Kind:     KindFetchFailure,
		Location: loc,
		Cause:    cause,
	}
}

// FetchStatus creates a transport error for a non-success response.
// The response body is kept as detail.
func FetchStatus(loc string, status int, body string) *Error {
	detail := fmt.Sprintf("HTTP %d", status)
	if body = strings.TrimSpace(body); body != "" {
		detail += ": " + body
	}
	return &Error{
		Phase:    PhaseFetch,
		Kind:     KindFetchFailure,
		Location: loc,
		Detail:   detail,
		Value:    status,
	}
}

// IntegrityMismatch creates a digest mismatch error
func IntegrityMismatch(loc, expected, actual string) *Error {
	return &Error{
		Phase:    PhaseVerify,
		Kind:     KindIntegrityMismatch,
		Location: loc,
		Detail:   fmt.Sprintf("signatures %s and %s don't match", expected, actual),
	}
}

// InvalidDigest creates an error for a malformed or missing digest
func InvalidDigest(loc, digest string) *Error {
	return &Error{
		Phase:    PhaseVerify,
		Kind:     KindInvalidDigest,
		Location: loc,
		Detail:   fmt.Sprintf("malformed digest %q", digest),
		Value:    digest,
	}
}

// NoExportFound creates an error for a bundle without a module definition
func NoExportFound(loc, module string) *Error {
	return &Error{
		Phase:    PhaseNormalize,
		Kind:     KindNoExportFound,
		Location: loc,
		Module:   module,
		Detail:   "no plugin or default export found",
	}
}

// MalformedEntry creates an error for a definition entry that cannot be normalized
func MalformedEntry(module string, path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseNormalize,
		Kind:   KindMalformedEntry,
		Module: module,
		Path:   path,
		Detail: detail,
	}
}

// ParseFailure creates a parsing error
func ParseFailure(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindParseFailure,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// LoadFailure creates a code loader error
func LoadFailure(module, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseImport,
		Kind:   KindLoadFailure,
		Module: module,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Duplicate creates an error for a value registered twice
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Detail: fmt.Sprintf("%s %q already provided", what, name),
		Value:  name,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
