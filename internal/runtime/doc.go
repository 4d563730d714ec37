// Package runtime assembles the extension machinery into one bootable unit.
//
// # Overview
//
// A Runtime wires the pieces in internal/extension together in the order
// the lifecycle demands:
//
//	configuration -> loader -> registry -> controller init hooks -> dispatcher
//
// Boot runs exactly once per process. Extensions that fail to resolve,
// validate, register, or initialize are marked Failed and skipped; the
// process starts with whatever survived. Boot fails outright only when at
// least one extension was enabled and none survived.
//
// # Session boundary
//
// The model session is an external collaborator behind the SessionBoundary
// interface. Run boots the runtime, passes itself to the boundary, and
// closes extension resources when the boundary returns.
package runtime
