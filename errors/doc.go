// Package errors provides structured error types for the module loading pipeline.
//
// Errors are categorized by Phase (where in the pipeline the error occurred) and
// Kind (error category). The Error type carries the module location, canonical
// module name, definition entry path, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseNormalize, errors.KindMalformedEntry).
//		Module("charts").
//		Path("components", "3").
//		Detail("component without name").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.IntegrityMismatch(loc, expected, actual)
//	err := errors.FetchStatus(loc, 404, body)
//
// All errors implement the standard error interface and support errors.Is/As.
// IsKind matches on kind alone, which is what callers deciding on retries need.
package errors
