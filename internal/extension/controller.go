// ABOUTME: Controller owning per-namespace state, private options, and the log sink.
// ABOUTME: Sequences init hooks after registry construction with per-hook timeout isolation.

package extension

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultInitTimeout bounds an init hook that never returns.
const DefaultInitTimeout = 10 * time.Second

// Status is the lifecycle state of a namespace. Transitions are
// Pending -> Ready or Pending -> Failed, both terminal; a namespace never
// re-enters Pending without a full process restart.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

type namespaceState struct {
	module  *Module
	options map[string]any
	status  Status
	reason  error
}

// Controller coordinates the runtime: it owns the registry reference, the
// structured log sink, and per-namespace status and private configuration.
// Extensions receive scoped handles to query and log through; they never see
// other namespaces' state.
type Controller struct {
	registry    *Registry
	logger      *slog.Logger
	initTimeout time.Duration

	mu     sync.RWMutex
	states map[string]*namespaceState
	order  []string
}

// NewController creates a controller around a registry. initTimeout bounds
// each module's init hook; zero means DefaultInitTimeout.
func NewController(registry *Registry, logger *slog.Logger, initTimeout time.Duration) *Controller {
	if initTimeout <= 0 {
		initTimeout = DefaultInitTimeout
	}
	return &Controller{
		registry:    registry,
		logger:      logger.With("component", "controller"),
		initTimeout: initTimeout,
		states:      make(map[string]*namespaceState),
	}
}

// Track records a loaded module and its private options with status Pending.
// Option values are treated as secrets: only key names are ever logged.
func (c *Controller) Track(module *Module, options map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states[module.Namespace] = &namespaceState{
		module:  module,
		options: options,
		status:  StatusPending,
	}
	c.order = append(c.order, module.Namespace)

	c.logger.Debug("tracking namespace",
		"namespace", module.Namespace,
		"option_keys", optionKeys(options),
	)
}

// MarkFailed transitions a namespace to Failed, recording the reason. Used
// for load and registration failures that happen before init hooks run.
func (c *Controller) MarkFailed(namespace string, reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.states[namespace]
	if !ok {
		state = &namespaceState{status: StatusPending}
		c.states[namespace] = state
		c.order = append(c.order, namespace)
	}
	state.status = StatusFailed
	state.reason = reason
}

// Status returns a namespace's lifecycle state and, for Failed, its reason.
// Unknown namespaces report Failed.
func (c *Controller) Status(namespace string) (Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.states[namespace]
	if !ok {
		return StatusFailed, fmt.Errorf("unknown namespace %q", namespace)
	}
	return state.status, state.reason
}

// Ready reports whether a namespace completed initialization.
func (c *Controller) Ready(namespace string) bool {
	status, _ := c.Status(namespace)
	return status == StatusReady
}

// Handle returns a controller handle scoped to one namespace: its logger and
// its own private options, nothing else.
func (c *Controller) Handle(namespace string) *Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var options map[string]any
	if state, ok := c.states[namespace]; ok {
		options = state.options
	}
	return &Handle{
		namespace: namespace,
		logger:    c.logger.With("namespace", namespace),
		options:   options,
	}
}

// RunInits invokes every tracked module's init hook, strictly after the
// registry is fully constructed so tools are addressable before any hook
// that might trigger a self-call. Each hook is wrapped individually: an
// error, panic, or timeout fails that namespace alone, retracting its tools
// from the registry while all other namespaces proceed. This is the core
// partial-failure guarantee of the runtime.
func (c *Controller) RunInits(ctx context.Context) {
	for _, namespace := range c.snapshotOrder() {
		c.initOne(ctx, namespace)
	}
}

func (c *Controller) initOne(ctx context.Context, namespace string) {
	c.mu.RLock()
	state, ok := c.states[namespace]
	if !ok || state.status != StatusPending {
		c.mu.RUnlock()
		return
	}
	module := state.module
	options := state.options
	c.mu.RUnlock()

	if module.Init == nil {
		c.transition(namespace, StatusReady, nil)
		c.logger.Info("namespace ready", "namespace", namespace)
		return
	}

	initCtx, cancel := context.WithTimeout(ctx, c.initTimeout)
	defer cancel()

	start := time.Now()
	err := runHook(initCtx, module.Init, options, c.Handle(namespace))
	if err != nil {
		c.transition(namespace, StatusFailed, fmt.Errorf("%w: %v", ErrInitFailed, err))
		c.registry.Retract(namespace)
		c.logger.Error("init hook failed, namespace retracted",
			"namespace", namespace,
			"elapsed", time.Since(start),
			"error", err,
		)
		return
	}

	c.transition(namespace, StatusReady, nil)
	c.logger.Info("namespace ready",
		"namespace", namespace,
		"elapsed", time.Since(start),
	)
}

// runHook executes the hook in its own goroutine so a hook that blocks
// forever is bounded by the context deadline.
func runHook(ctx context.Context, hook InitHook, options map[string]any, h *Handle) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("init hook panicked: %v", rec)
			}
		}()
		done <- hook(ctx, options, h)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseModules runs the Close hook of every Ready module, releasing resources
// acquired during initialization. Errors are logged, not propagated.
func (c *Controller) CloseModules() {
	for _, namespace := range c.snapshotOrder() {
		c.mu.RLock()
		state, ok := c.states[namespace]
		c.mu.RUnlock()
		if !ok || state.status != StatusReady || state.module == nil || state.module.Close == nil {
			continue
		}
		if err := state.module.Close(); err != nil {
			c.logger.Warn("module close failed",
				"namespace", namespace,
				"error", err,
			)
		}
	}
}

// NamespaceStatus pairs a namespace with its lifecycle state for display.
type NamespaceStatus struct {
	Namespace string
	Status    Status
	Reason    error
}

// Statuses returns every tracked namespace with its state, sorted by name.
func (c *Controller) Statuses() []NamespaceStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]NamespaceStatus, 0, len(c.states))
	for ns, state := range c.states {
		result = append(result, NamespaceStatus{
			Namespace: ns,
			Status:    state.status,
			Reason:    state.reason,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Namespace < result[j].Namespace })
	return result
}

func (c *Controller) transition(namespace string, status Status, reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.states[namespace]; ok {
		state.status = status
		state.reason = reason
	}
}

func (c *Controller) snapshotOrder() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	order := make([]string, len(c.order))
	copy(order, c.order)
	return order
}

func optionKeys(options map[string]any) []string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Handle is the controller surface an extension sees: a namespace-tagged
// logger and that namespace's own private options. Replaces ambient global
// access with explicit dependency injection.
type Handle struct {
	namespace string
	logger    *slog.Logger
	options   map[string]any
}

// Namespace returns the namespace this handle is scoped to.
func (h *Handle) Namespace() string { return h.namespace }

// Logger returns the namespace-scoped structured logger.
func (h *Handle) Logger() *slog.Logger { return h.logger }

// Option returns one private configuration value.
func (h *Handle) Option(key string) (any, bool) {
	v, ok := h.options[key]
	return v, ok
}

// StringOption returns a private configuration value as a string, or the
// fallback if absent or not a string.
func (h *Handle) StringOption(key, fallback string) string {
	if v, ok := h.options[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}
