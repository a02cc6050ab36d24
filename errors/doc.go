// Package errors provides standardized error handling patterns for SignalKV.
//
// # Overview
//
// The package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing). Classification lets callers make
// retry and fallback decisions without string matching on error messages.
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if !exists {
//	    return errors.ErrKeyNotFound
//	}
//
// Wrap errors with component context:
//
//	if err := engine.Set(ctx, key, value); err != nil {
//	    return errors.WrapTransient(err, "Client", "SetString", "engine write")
//	}
//
// All wrapping follows the format "component.method: action failed: %w",
// which keeps log output parseable across the library.
//
// # Error Classes in SignalKV
//
// The reactive cell store treats hydrate and persist failures as transient:
// they are logged and swallowed, never raised out of a cell mutation. Invalid
// errors (empty keys, malformed config) are returned synchronously to the
// caller. Fatal errors (destroyed registries, closed engines) indicate misuse
// with no sane fallback and are surfaced immediately.
package errors
