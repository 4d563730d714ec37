// ABOUTME: Runtime assembly: wires resolver, loader, registry, controller, and dispatcher.
// ABOUTME: Boots the extension set once, hands the dispatcher to a session boundary, and tears down.

package runtime

import (
	"context"
	"errors"
	"log/slog"

	"tradewind/internal/config"
	"tradewind/internal/extension"
)

// ErrNoExtensions is returned by Boot when at least one extension was
// enabled but none could be loaded. The caller treats this as fatal.
var ErrNoExtensions = errors.New("no extensions could be loaded")

// SessionBoundary is the collaborator that drives tool calls. The model
// session lives outside the runtime; it sees the dispatcher surface and
// nothing else.
type SessionBoundary interface {
	Run(ctx context.Context, rt *Runtime) error
}

// Runtime owns the extension machinery for one process lifetime. Boot it
// once; the registry is frozen afterwards and a configuration change
// requires a restart.
type Runtime struct {
	cfg    *config.Config
	logger *slog.Logger

	loader     *extension.Loader
	registry   *extension.Registry
	controller *extension.Controller
	dispatcher *extension.Dispatcher

	failures []extension.Failure
}

// New wires a runtime around a resolver. Nothing is loaded until Boot.
func New(cfg *config.Config, resolver extension.Resolver, logger *slog.Logger) *Runtime {
	registry := extension.NewRegistry(logger)
	controller := extension.NewController(registry, logger, cfg.Agent.InitTimeout)
	return &Runtime{
		cfg:        cfg,
		logger:     logger.With("component", "runtime"),
		loader:     extension.NewLoader(resolver, logger),
		registry:   registry,
		controller: controller,
		dispatcher: extension.NewDispatcher(extension.DispatcherConfig{
			Registry:   registry,
			Controller: controller,
			Logger:     logger,
			Timeout:    cfg.Agent.CallTimeout,
		}),
	}
}

// Boot loads every configured extension and runs init hooks. Load,
// registration, and init failures are isolated per namespace; Boot itself
// fails only when at least one extension was enabled and none survived
// loading.
func (r *Runtime) Boot(ctx context.Context) error {
	entries := r.cfg.Entries()

	enabled := 0
	for _, entry := range entries {
		if entry.Enabled {
			enabled++
		}
	}

	modules, failures := r.loader.Load(entries)
	r.failures = failures
	for _, failure := range failures {
		r.controller.MarkFailed(failure.Namespace, failure.Err)
	}

	if enabled > 0 && len(modules) == 0 {
		return ErrNoExtensions
	}

	options := make(map[string]map[string]any, len(entries))
	for _, entry := range entries {
		options[entry.Namespace] = entry.Options
	}

	for _, module := range modules {
		if err := r.registry.Register(module); err != nil {
			r.logger.Error("extension registration failed",
				"namespace", module.Namespace,
				"error", err,
			)
			r.controller.MarkFailed(module.Namespace, err)
			continue
		}
		r.controller.Track(module, options[module.Namespace])
	}

	// Hooks run strictly after the registry is fully built.
	r.controller.RunInits(ctx)

	r.logger.Info("runtime ready",
		"enabled", enabled,
		"allowed_tools", len(r.registry.AllowedTools()),
	)
	return nil
}

// Run boots the runtime, hands control to the session boundary, and closes
// extension resources when the boundary returns or the context is cancelled.
func (r *Runtime) Run(ctx context.Context, boundary SessionBoundary) error {
	if err := r.Boot(ctx); err != nil {
		return err
	}
	defer r.Close()
	return boundary.Run(ctx, r)
}

// Close releases resources acquired by extension init hooks.
func (r *Runtime) Close() {
	r.controller.CloseModules()
}

// Dispatcher is the tool-call surface for the session boundary.
func (r *Runtime) Dispatcher() *extension.Dispatcher {
	return r.dispatcher
}

// AllowedTools lists the callable surface, sorted.
func (r *Runtime) AllowedTools() []string {
	return r.registry.AllowedTools()
}

// Statuses reports every tracked namespace for display.
func (r *Runtime) Statuses() []extension.NamespaceStatus {
	return r.controller.Statuses()
}

// Failures reports extensions that never made it to the registry.
func (r *Runtime) Failures() []extension.Failure {
	return r.failures
}

// ModelEnv exposes the opaque model connectivity section for the boundary.
func (r *Runtime) ModelEnv() map[string]string {
	return r.cfg.ModelEnv()
}
