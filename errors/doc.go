// Package errors provides standardized error handling for vision-middleware.
//
// # Overview
//
// The package implements a three-class error model shared by every component
// of the service: Transient (temporary, retry by redelivery), Invalid (bad
// input, never retried), and Fatal (unrecoverable, stop processing).
//
// Classification drives two load-bearing decisions elsewhere in the tree:
// the bus consumer maps handler errors to message disposition (Transient
// withholds acknowledgement so the bus redelivers, Invalid terminates the
// message as poison), and the orchestrator treats Fatal startup errors as
// grounds to abort the whole service.
//
// # Wrapping
//
// All error wrapping follows one format:
//
//	"component.method: action failed: %w"
//
// The Wrap family applies the format; the classified variants additionally
// pin the class so it survives further wrapping:
//
//	errors.WrapTransient(err, "Coordinator", "Submit", "claim slot")
//	errors.WrapInvalid(err, "Key", "Validate", "parse frame number")
//	errors.WrapFatal(err, "Loader", "Load", "read config file")
//
// The plain Wrap() adds context without pinning a class, leaving the
// original error's classification visible through the chain.
//
// # Classification
//
// IsTransient, IsInvalid and IsFatal first honor an explicit
// *ClassifiedError in the chain, then fall back to the standard error
// variables, then (for transient and fatal) to conservative message
// pattern matching. Invalid is checked before Transient in Classify so a
// malformed correlation key is never mistaken for a retryable condition.
//
// Context cancellation errors classify as Transient: a submit interrupted
// by shutdown is retried on the next delivery, not terminated.
//
// # Standard error variables
//
// Use the package variables instead of ad hoc messages so callers can test
// with errors.Is:
//
//	if !running {
//	    return errors.ErrNotStarted
//	}
//
// The domain-specific ones are ErrInvalidKey (correlation key rejected by
// validation) and ErrStoreUnavailable (slot store cannot be reached; the
// submit that hit it will be redelivered).
package errors
