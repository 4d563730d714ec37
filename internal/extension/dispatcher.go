// ABOUTME: Dispatcher for tool-call requests from the session boundary.
// ABOUTME: Enforces the allow-list, validates arguments, and isolates handler failures per call.

package extension

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultCallTimeout is the per-call timeout when configuration does not
// override it.
const DefaultCallTimeout = 30 * time.Second

// Dispatcher receives tool-call requests, enforces whitelist membership, and
// invokes handlers with isolation and a per-call timeout. Concurrent calls
// never block each other; the dispatcher imposes no serialization beyond
// what an individual handler's own contract requires.
type Dispatcher struct {
	registry   *Registry
	controller *Controller
	logger     *slog.Logger
	timeout    time.Duration
}

// DispatcherConfig carries the dispatcher's collaborators.
type DispatcherConfig struct {
	Registry   *Registry
	Controller *Controller
	Logger     *slog.Logger
	Timeout    time.Duration
}

// NewDispatcher creates a dispatcher. A zero timeout means DefaultCallTimeout.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Dispatcher{
		registry:   cfg.Registry,
		controller: cfg.Controller,
		logger:     cfg.Logger.With("component", "dispatcher"),
		timeout:    timeout,
	}
}

// Invoke executes one tool call. On failure it returns a *DispatchError
// classifying what went wrong; a handler fault never propagates as a raw
// error or crashes the runtime. Rejections happen before the handler runs,
// so a disallowed or malformed call has no side effects.
func (d *Dispatcher) Invoke(ctx context.Context, qualified string, args json.RawMessage) (*Result, *DispatchError) {
	callID := uuid.New().String()

	if !d.registry.IsAllowed(qualified) {
		d.logger.Warn("call rejected: tool not allowed",
			"tool", qualified,
			"call_id", callID,
		)
		return nil, dispatchErrorf(ErrorKindNotAllowed, qualified,
			"tool is not registered or not on its module's allow-list")
	}

	rt, ok := d.registry.Lookup(qualified)
	if !ok {
		// Retracted between the allow check and lookup.
		return nil, dispatchErrorf(ErrorKindNotAllowed, qualified, "tool is not registered")
	}

	if status, reason := d.controller.Status(rt.Namespace); status != StatusReady {
		d.logger.Warn("call rejected: namespace not ready",
			"tool", qualified,
			"namespace", rt.Namespace,
			"status", status,
			"call_id", callID,
		)
		msg := fmt.Sprintf("namespace %q is %s", rt.Namespace, status)
		if reason != nil {
			msg = fmt.Sprintf("%s: %v", msg, reason)
		}
		return nil, dispatchErrorf(ErrorKindUnavailable, qualified, "%s", msg)
	}

	if err := rt.ValidateArgs(args); err != nil {
		d.logger.Warn("call rejected: invalid arguments",
			"tool", qualified,
			"call_id", callID,
			"error", err,
		)
		return nil, dispatchErrorf(ErrorKindInvalidArguments, qualified, "%v", err)
	}

	d.logger.Info("dispatching tool call",
		"tool", qualified,
		"namespace", rt.Namespace,
		"call_id", callID,
	)

	start := time.Now()
	result, err := d.runHandler(ctx, rt, args)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		d.logger.Info("tool call completed",
			"tool", qualified,
			"call_id", callID,
			"elapsed", elapsed,
		)
		return result, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		d.logger.Warn("tool call timed out or cancelled",
			"tool", qualified,
			"call_id", callID,
			"elapsed", elapsed,
			"error", err,
		)
		return nil, dispatchErrorf(ErrorKindTimeout, qualified,
			"call did not complete within %s", d.timeout)
	default:
		d.logger.Warn("tool call failed",
			"tool", qualified,
			"call_id", callID,
			"elapsed", elapsed,
			"error", err,
		)
		return nil, dispatchErrorf(ErrorKindHandlerFailed, qualified, "%v", err)
	}
}

// runHandler executes the handler in its own goroutine so a slow or hung
// handler cannot block the dispatcher. On timeout the handler's eventual
// result is discarded; its side effects are not rolled back, so handlers
// with external effects must be idempotent or advertise non-cancellable
// semantics.
func (d *Dispatcher) runHandler(ctx context.Context, rt *RegisteredTool, args json.RawMessage) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("handler panicked: %v", rec)}
			}
		}()
		result, err := rt.Tool.Handler(callCtx, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		if out.result == nil {
			return &Result{}, nil
		}
		return out.result, nil
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}

// AllowedTools exposes the callable surface for the session boundary.
func (d *Dispatcher) AllowedTools() []string {
	return d.registry.AllowedTools()
}

// Describe returns the descriptor for one tool so the session boundary can
// present its schema to the model. Only allowed tools are describable.
func (d *Dispatcher) Describe(qualified string) (*RegisteredTool, bool) {
	if !d.registry.IsAllowed(qualified) {
		return nil, false
	}
	return d.registry.Lookup(qualified)
}
