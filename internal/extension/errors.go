// ABOUTME: Error taxonomy for the extension runtime.
// ABOUTME: Namespace-scoped errors isolate one extension; only configuration errors are fatal.

package extension

import (
	"errors"
	"fmt"
)

// ErrInvalidModule indicates a module violated its internal invariants
// (empty namespace, duplicate tools, allow-list not a subset).
var ErrInvalidModule = errors.New("invalid extension module")

// ErrLocationNotFound indicates an extension location could not be resolved.
var ErrLocationNotFound = errors.New("extension location not found")

// ErrToolCollision indicates a qualified tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// ErrNamespaceRegistered indicates a namespace is already registered.
var ErrNamespaceRegistered = errors.New("namespace already registered")

// ErrInitFailed indicates a module's init hook failed, timed out, or panicked.
var ErrInitFailed = errors.New("extension initialization failed")

// ErrorKind classifies a dispatch failure for the session boundary.
type ErrorKind string

const (
	// ErrorKindNotAllowed means the qualified name is unknown or not on its
	// module's allow-list. The handler is never invoked.
	ErrorKindNotAllowed ErrorKind = "not_allowed"

	// ErrorKindUnavailable means the owning namespace is not Ready.
	ErrorKindUnavailable ErrorKind = "unavailable"

	// ErrorKindInvalidArguments means the arguments failed schema validation.
	ErrorKindInvalidArguments ErrorKind = "invalid_arguments"

	// ErrorKindHandlerFailed means the handler returned an error or panicked.
	ErrorKindHandlerFailed ErrorKind = "handler_failed"

	// ErrorKindTimeout means the call exceeded its per-call timeout. The
	// handler's side effects are not rolled back.
	ErrorKindTimeout ErrorKind = "timeout"
)

// DispatchError is the structured error surfaced to the session boundary for
// a single failed call. It never carries a raw fault.
type DispatchError struct {
	Kind    ErrorKind
	Tool    string
	Message string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %s: %s", e.Tool, e.Kind, e.Message)
}

// Envelope renders the error as a result envelope for transports that expect
// the uniform content shape.
func (e *DispatchError) Envelope() *Result {
	return TextResultf("tool %s unavailable (%s): %s", e.Tool, e.Kind, e.Message)
}

func dispatchErrorf(kind ErrorKind, tool, format string, args ...any) *DispatchError {
	return &DispatchError{Kind: kind, Tool: tool, Message: fmt.Sprintf(format, args...)}
}
