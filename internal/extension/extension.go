// ABOUTME: Core contracts for tradewind extensions: tools, modules, and result envelopes.
// ABOUTME: Defines qualified tool naming and module-level validation invariants.

package extension

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// NameSeparator joins a namespace and a local tool name into a qualified name.
const NameSeparator = "__"

// Handler executes a tool call. It receives the raw JSON arguments, already
// validated against the tool's input schema by the dispatcher.
type Handler func(ctx context.Context, args json.RawMessage) (*Result, error)

// InitHook runs once per module after the registry is fully constructed.
// It receives the module's private options from the configuration and a
// handle scoped to the module's own namespace.
type InitHook func(ctx context.Context, options map[string]any, h *Handle) error

// Tool describes a single callable operation exposed by an extension module.
type Tool struct {
	// Name is the local tool name, unique within its module.
	Name        string
	Description string

	// InputSchemaJSON is a JSON Schema document describing the tool's
	// arguments. It is compiled at registration time; a schema that does
	// not compile fails the whole module.
	InputSchemaJSON string

	Handler Handler
}

// Module is a self-contained bundle of tools under one namespace.
type Module struct {
	Namespace string
	Tools     []*Tool

	// Allowed lists the qualified names of tools this module permits the
	// session boundary to call. It must be a subset of the declared tools;
	// declared-but-withheld tools remain addressable for lookup but are
	// never dispatched.
	Allowed []string

	// Init is optional. See InitHook.
	Init InitHook

	// Close is optional and runs at process shutdown for modules whose
	// init hook acquired external resources.
	Close func() error
}

// QualifiedName forms the globally unique tool identifier.
func QualifiedName(namespace, local string) string {
	return namespace + NameSeparator + local
}

// SplitQualified splits a qualified name into namespace and local name.
// Returns ok=false if the name is not namespace-qualified.
func SplitQualified(qualified string) (namespace, local string, ok bool) {
	idx := strings.Index(qualified, NameSeparator)
	if idx <= 0 || idx+len(NameSeparator) >= len(qualified) {
		return "", "", false
	}
	return qualified[:idx], qualified[idx+len(NameSeparator):], true
}

// QualifiedTools returns the qualified names of all declared tools in order.
func (m *Module) QualifiedTools() []string {
	names := make([]string, 0, len(m.Tools))
	for _, t := range m.Tools {
		names = append(names, QualifiedName(m.Namespace, t.Name))
	}
	return names
}

// Validate checks the module's internal invariants: a non-empty namespace,
// unique local tool names, handlers on every tool, and an allow-list that is
// a subset of the declared tools.
func (m *Module) Validate() error {
	if m.Namespace == "" {
		return fmt.Errorf("%w: empty namespace", ErrInvalidModule)
	}
	if strings.Contains(m.Namespace, NameSeparator) {
		return fmt.Errorf("%w: namespace %q must not contain %q", ErrInvalidModule, m.Namespace, NameSeparator)
	}
	if len(m.Tools) == 0 {
		return fmt.Errorf("%w: module %q declares no tools", ErrInvalidModule, m.Namespace)
	}

	declared := make(map[string]struct{}, len(m.Tools))
	for _, t := range m.Tools {
		if t.Name == "" {
			return fmt.Errorf("%w: module %q declares a tool with an empty name", ErrInvalidModule, m.Namespace)
		}
		if t.Handler == nil {
			return fmt.Errorf("%w: tool %q has no handler", ErrInvalidModule, QualifiedName(m.Namespace, t.Name))
		}
		qn := QualifiedName(m.Namespace, t.Name)
		if _, dup := declared[qn]; dup {
			return fmt.Errorf("%w: duplicate tool %q in module %q", ErrInvalidModule, t.Name, m.Namespace)
		}
		declared[qn] = struct{}{}
	}

	for _, qn := range m.Allowed {
		if _, ok := declared[qn]; !ok {
			return fmt.Errorf("%w: allow-list entry %q is not declared by module %q", ErrInvalidModule, qn, m.Namespace)
		}
	}
	return nil
}

// ContentItem is one element of a result envelope.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the uniform response envelope every tool returns: an ordered
// sequence of content items, one shape for the session boundary to consume
// regardless of which extension produced it.
type Result struct {
	Content []ContentItem `json:"content"`
}

// TextResult wraps plain text in a single-item envelope.
func TextResult(text string) *Result {
	return &Result{Content: []ContentItem{{Type: "text", Text: text}}}
}

// TextResultf wraps formatted text in a single-item envelope.
func TextResultf(format string, args ...any) *Result {
	return TextResult(fmt.Sprintf(format, args...))
}

// JSONResult marshals v and wraps it in a single-item envelope.
func JSONResult(v any) (*Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return TextResult(string(data)), nil
}
