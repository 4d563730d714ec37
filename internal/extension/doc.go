// Package extension provides the plugin runtime that lets the assistant
// invoke externally supplied tools.
//
// # Overview
//
// An extension module bundles one or more schema-described tools under a
// namespace, together with an explicit allow-list of the tools it permits
// the session boundary to call and an optional one-time init hook.
//
// # Architecture
//
// The runtime has four main components:
//
//   - Loader: resolves configured locations into validated modules
//   - Registry: the frozen qualified-name lookup table with allow-list checks
//   - Controller: per-namespace status, private options, and the log sink
//   - Dispatcher: invokes tools with validation, isolation, and timeouts
//
// # Lifecycle
//
// Configuration is read once, modules are resolved and validated, init hooks
// run, the registry freezes, and the dispatcher serves calls until shutdown:
//
//	loader := extension.NewLoader(resolver, logger)
//	modules, failures := loader.Load(entries)
//	for _, m := range modules { registry.Register(m); controller.Track(m, opts) }
//	controller.RunInits(ctx)
//	dispatcher.Invoke(ctx, "market_data__quote", args)
//
// # Failure isolation
//
// One misbehaving extension never prevents the rest of the system from
// starting. Resolution, validation, and init failures are scoped to their
// namespace (Pending -> Failed, tools retracted); dispatch failures are
// scoped to the single call. Only a configuration error aborts the process.
//
// # Naming
//
// Tool names are globally unique and namespace-qualified as
// "<namespace>__<local>", e.g. "broker__place_order". Duplicate registration
// is a load-time error, never a runtime one.
package extension
