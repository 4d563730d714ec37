// ABOUTME: Shared test helpers for builtin module tests.
// ABOUTME: Provides tool lookup and init-hook execution against a scoped handle.

package builtins

import (
	"context"
	"log/slog"
	"testing"

	"tradewind/internal/extension"
)

// findHandler returns the handler for a local tool name, or nil.
func findHandler(m *extension.Module, name string) extension.Handler {
	for _, tool := range m.Tools {
		if tool.Name == name {
			return tool.Handler
		}
	}
	return nil
}

// runInit executes a module's init hook the way the controller would,
// with options delivered through a scoped handle.
func runInit(t *testing.T, m *extension.Module, options map[string]any) error {
	t.Helper()
	registry := extension.NewRegistry(slog.Default())
	ctl := extension.NewController(registry, slog.Default(), 0)
	if err := registry.Register(m); err != nil {
		t.Fatalf("register %s: %v", m.Namespace, err)
	}
	ctl.Track(m, options)
	ctl.RunInits(context.Background())
	if !ctl.Ready(m.Namespace) {
		_, reason := ctl.Status(m.Namespace)
		return reason
	}
	return nil
}
