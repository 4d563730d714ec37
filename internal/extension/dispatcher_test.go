// ABOUTME: Tests for the dispatcher: allow-list enforcement, schema rejection, and call isolation.
// ABOUTME: Verifies handlers are never invoked for rejected calls via side-effect counters.

package extension

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// testRuntime wires a registry, controller, and dispatcher around the given
// modules and runs init hooks.
func testRuntime(t *testing.T, timeout time.Duration, modules ...*Module) (*Registry, *Controller, *Dispatcher) {
	t.Helper()
	registry := NewRegistry(slog.Default())
	ctl := NewController(registry, slog.Default(), 0)
	for _, m := range modules {
		if err := registry.Register(m); err != nil {
			t.Fatalf("register %s: %v", m.Namespace, err)
		}
		ctl.Track(m, nil)
	}
	ctl.RunInits(context.Background())
	d := NewDispatcher(DispatcherConfig{
		Registry:   registry,
		Controller: ctl,
		Logger:     slog.Default(),
		Timeout:    timeout,
	})
	return registry, ctl, d
}

func TestDispatcherRejectsDisallowed(t *testing.T) {
	var invocations atomic.Int64
	module := &Module{
		Namespace: "ns",
		Tools: []*Tool{
			{
				Name:            "hidden",
				InputSchemaJSON: `{"type":"object"}`,
				Handler: func(ctx context.Context, args json.RawMessage) (*Result, error) {
					invocations.Add(1)
					return TextResult("should never run"), nil
				},
			},
		},
		// Empty allow-list: declared but withheld.
	}
	_, _, d := testRuntime(t, 0, module)

	t.Run("withheld tool", func(t *testing.T) {
		result, derr := d.Invoke(context.Background(), "ns__hidden", nil)
		if derr == nil || derr.Kind != ErrorKindNotAllowed {
			t.Fatalf("expected not_allowed, got result=%v err=%v", result, derr)
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, derr := d.Invoke(context.Background(), "ghost__tool", nil)
		if derr == nil || derr.Kind != ErrorKindNotAllowed {
			t.Fatalf("expected not_allowed, got %v", derr)
		}
	})

	if n := invocations.Load(); n != 0 {
		t.Errorf("handler invoked %d times for rejected calls, want 0", n)
	}
}

func TestDispatcherRejectsNotReady(t *testing.T) {
	var invocations atomic.Int64
	module := testModule("failing", []string{"t"}, []string{"failing__t"})
	module.Tools[0].Handler = func(ctx context.Context, args json.RawMessage) (*Result, error) {
		invocations.Add(1)
		return TextResult("nope"), nil
	}
	module.Init = func(ctx context.Context, options map[string]any, h *Handle) error {
		return fmt.Errorf("connect refused")
	}
	_, _, d := testRuntime(t, 0, module)

	_, derr := d.Invoke(context.Background(), "failing__t", nil)
	// Init failure retracts the namespace, so the name is no longer
	// registered at all.
	if derr == nil || derr.Kind != ErrorKindNotAllowed {
		t.Fatalf("expected not_allowed after retraction, got %v", derr)
	}
	if n := invocations.Load(); n != 0 {
		t.Errorf("handler invoked %d times, want 0", n)
	}
}

func TestDispatcherRejectsPending(t *testing.T) {
	// Register and track but never run inits: status stays Pending.
	registry := NewRegistry(slog.Default())
	ctl := NewController(registry, slog.Default(), 0)
	module := testModule("pending", []string{"t"}, []string{"pending__t"})
	if err := registry.Register(module); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctl.Track(module, nil)
	d := NewDispatcher(DispatcherConfig{Registry: registry, Controller: ctl, Logger: slog.Default()})

	_, derr := d.Invoke(context.Background(), "pending__t", nil)
	if derr == nil || derr.Kind != ErrorKindUnavailable {
		t.Fatalf("expected unavailable, got %v", derr)
	}
}

func TestDispatcherSchemaValidation(t *testing.T) {
	var invocations atomic.Int64
	module := &Module{
		Namespace: "m",
		Tools: []*Tool{{
			Name:            "strict",
			InputSchemaJSON: `{"type":"object","properties":{"symbol":{"type":"string"}},"required":["symbol"]}`,
			Handler: func(ctx context.Context, args json.RawMessage) (*Result, error) {
				invocations.Add(1)
				var in struct {
					Symbol string `json:"symbol"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				return TextResultf("quote for %s", in.Symbol), nil
			},
		}},
		Allowed: []string{"m__strict"},
	}
	_, _, d := testRuntime(t, 0, module)

	t.Run("schema mismatch never reaches handler", func(t *testing.T) {
		_, derr := d.Invoke(context.Background(), "m__strict", json.RawMessage(`{"symbol":42}`))
		if derr == nil || derr.Kind != ErrorKindInvalidArguments {
			t.Fatalf("expected invalid_arguments, got %v", derr)
		}
		if n := invocations.Load(); n != 0 {
			t.Errorf("handler invoked %d times, want 0", n)
		}
	})

	t.Run("valid args invoke handler", func(t *testing.T) {
		result, derr := d.Invoke(context.Background(), "m__strict", json.RawMessage(`{"symbol":"600000"}`))
		if derr != nil {
			t.Fatalf("unexpected error: %v", derr)
		}
		if len(result.Content) != 1 || result.Content[0].Text != "quote for 600000" {
			t.Errorf("unexpected result: %+v", result)
		}
	})
}

func TestDispatcherHandlerFailureIsolation(t *testing.T) {
	module := &Module{
		Namespace: "iso",
		Tools: []*Tool{
			{
				Name:            "explode",
				InputSchemaJSON: `{"type":"object"}`,
				Handler: func(ctx context.Context, args json.RawMessage) (*Result, error) {
					return nil, fmt.Errorf("upstream 500")
				},
			},
			{
				Name:            "panic",
				InputSchemaJSON: `{"type":"object"}`,
				Handler: func(ctx context.Context, args json.RawMessage) (*Result, error) {
					panic("handler bug")
				},
			},
			{
				Name:            "fine",
				InputSchemaJSON: `{"type":"object"}`,
				Handler: func(ctx context.Context, args json.RawMessage) (*Result, error) {
					return TextResult("still alive"), nil
				},
			},
		},
		Allowed: []string{"iso__explode", "iso__panic", "iso__fine"},
	}
	_, _, d := testRuntime(t, 0, module)

	_, derr := d.Invoke(context.Background(), "iso__explode", nil)
	if derr == nil || derr.Kind != ErrorKindHandlerFailed {
		t.Fatalf("expected handler_failed, got %v", derr)
	}

	_, derr = d.Invoke(context.Background(), "iso__panic", nil)
	if derr == nil || derr.Kind != ErrorKindHandlerFailed {
		t.Fatalf("expected handler_failed for panic, got %v", derr)
	}

	// The dispatcher must serve an unrelated call immediately afterwards.
	result, derr := d.Invoke(context.Background(), "iso__fine", nil)
	if derr != nil {
		t.Fatalf("subsequent call failed: %v", derr)
	}
	if result.Content[0].Text != "still alive" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestDispatcherTimeout(t *testing.T) {
	module := &Module{
		Namespace: "slow",
		Tools: []*Tool{{
			Name:            "sleepy",
			InputSchemaJSON: `{"type":"object"}`,
			Handler: func(ctx context.Context, args json.RawMessage) (*Result, error) {
				select {
				case <-time.After(5 * time.Second):
					return TextResult("too late"), nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		}},
		Allowed: []string{"slow__sleepy"},
	}
	_, _, d := testRuntime(t, 50*time.Millisecond, module)

	start := time.Now()
	_, derr := d.Invoke(context.Background(), "slow__sleepy", nil)
	if derr == nil || derr.Kind != ErrorKindTimeout {
		t.Fatalf("expected timeout, got %v", derr)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("invoke blocked for %s", elapsed)
	}
}

func TestDispatcherConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	module := &Module{
		Namespace: "conc",
		Tools: []*Tool{
			{
				Name:            "blocker",
				InputSchemaJSON: `{"type":"object"}`,
				Handler: func(ctx context.Context, args json.RawMessage) (*Result, error) {
					select {
					case <-release:
						return TextResult("released"), nil
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				},
			},
			{
				Name:            "quick",
				InputSchemaJSON: `{"type":"object"}`,
				Handler: func(ctx context.Context, args json.RawMessage) (*Result, error) {
					return TextResult("quick"), nil
				},
			},
		},
		Allowed: []string{"conc__blocker", "conc__quick"},
	}
	_, _, d := testRuntime(t, 5*time.Second, module)

	blockerDone := make(chan *DispatchError, 1)
	go func() {
		_, derr := d.Invoke(context.Background(), "conc__blocker", nil)
		blockerDone <- derr
	}()

	// A call to another tool must complete while the first is in flight.
	quickDone := make(chan struct{})
	go func() {
		defer close(quickDone)
		result, derr := d.Invoke(context.Background(), "conc__quick", nil)
		if derr != nil || result.Content[0].Text != "quick" {
			t.Errorf("quick call failed: %v %v", result, derr)
		}
	}()

	select {
	case <-quickDone:
	case <-time.After(2 * time.Second):
		t.Fatal("quick call blocked behind the slow one")
	}

	close(release)
	if derr := <-blockerDone; derr != nil {
		t.Errorf("blocker call failed: %v", derr)
	}
}

func TestDispatcherDescribe(t *testing.T) {
	module := testModule("ns", []string{"open", "secret"}, []string{"ns__open"})
	_, _, d := testRuntime(t, 0, module)

	if _, ok := d.Describe("ns__open"); !ok {
		t.Error("allowed tool should be describable")
	}
	if _, ok := d.Describe("ns__secret"); ok {
		t.Error("withheld tool must not be describable")
	}
}
