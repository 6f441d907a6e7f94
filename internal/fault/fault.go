// Package fault defines the error categories shared across signalbox.
// Callers classify failures with errors.Is against these sentinels;
// packages wrap them with context via fmt.Errorf("...: %w", ...).
package fault

import "errors"

var (
	// ErrValidation marks malformed input to a core operation (empty
	// recipient list, unknown parent reference). Not retryable.
	ErrValidation = errors.New("validation error")

	// ErrInvalidTransition marks a disallowed state change. Callers must
	// re-read current state before deciding whether to retry.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnauthorized marks an actor attempting to mutate an entity it
	// does not own.
	ErrUnauthorized = errors.New("not authorized")

	// ErrTransientStore marks a connectivity or timeout failure talking to
	// the data store. Direct callers may retry; the reconciler recovers by
	// reconnecting with backoff.
	ErrTransientStore = errors.New("transient store error")

	// ErrConfigParse marks a system default value that fails its declared
	// type. The snapshot builder downgrades this to skip-and-log; it is
	// exported for tests and diagnostics.
	ErrConfigParse = errors.New("config parse error")

	// ErrNotFound marks a lookup that matched no row.
	ErrNotFound = errors.New("not found")
)
