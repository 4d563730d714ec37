// ABOUTME: Capability registry mapping qualified tool names to their modules.
// ABOUTME: Built once at startup; collision or schema failure rejects the whole module.

package extension

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// RegisteredTool is a tool bound to its owning namespace with its compiled
// input schema.
type RegisteredTool struct {
	Tool      *Tool
	Namespace string
	Qualified string

	schema *jsonschema.Schema
}

// ValidateArgs checks raw JSON arguments against the tool's input schema.
// Tools without a schema accept any JSON object.
func (rt *RegisteredTool) ValidateArgs(args json.RawMessage) error {
	if rt.schema == nil {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := rt.schema.Validate(decoded); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

type registeredModule struct {
	module  *Module
	allowed map[string]struct{}
}

// Registry aggregates all loaded modules' tools into one namespace-qualified
// lookup table. It is append-only during startup and effectively frozen once
// initialization completes, except for retraction of namespaces whose init
// hook failed. Reads are safe for unsynchronized concurrent use.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*registeredModule
	tools      map[string]*RegisteredTool
	logger     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		namespaces: make(map[string]*registeredModule),
		tools:      make(map[string]*RegisteredTool),
		logger:     logger.With("component", "registry"),
	}
}

// Register inserts all of a validated module's tools keyed by qualified name.
// Any qualified-name collision or schema compile failure fails the whole
// module; partial registration would produce inconsistent dispatch.
func (r *Registry) Register(module *Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.namespaces[module.Namespace]; exists {
		return fmt.Errorf("%w: %q", ErrNamespaceRegistered, module.Namespace)
	}

	// Compile everything before touching the table.
	staged := make([]*RegisteredTool, 0, len(module.Tools))
	for _, tool := range module.Tools {
		qn := QualifiedName(module.Namespace, tool.Name)
		if existing, exists := r.tools[qn]; exists {
			return fmt.Errorf("%w: %q already registered by namespace %q",
				ErrToolCollision, qn, existing.Namespace)
		}
		schema, err := compileSchema(qn, tool.InputSchemaJSON)
		if err != nil {
			return fmt.Errorf("%w: tool %q: %v", ErrInvalidModule, qn, err)
		}
		staged = append(staged, &RegisteredTool{
			Tool:      tool,
			Namespace: module.Namespace,
			Qualified: qn,
			schema:    schema,
		})
	}

	allowed := make(map[string]struct{}, len(module.Allowed))
	for _, qn := range module.Allowed {
		allowed[qn] = struct{}{}
	}

	for _, rt := range staged {
		r.tools[rt.Qualified] = rt
	}
	r.namespaces[module.Namespace] = &registeredModule{
		module:  module,
		allowed: allowed,
	}

	r.logger.Info("module registered",
		"namespace", module.Namespace,
		"tool_count", len(module.Tools),
		"allowed_count", len(allowed),
		"total_tools", len(r.tools),
	)
	return nil
}

// Retract removes a namespace and all of its tools, used when a module's
// init hook fails after registration.
func (r *Registry) Retract(namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, exists := r.namespaces[namespace]
	if !exists {
		return
	}
	for _, tool := range reg.module.Tools {
		delete(r.tools, QualifiedName(namespace, tool.Name))
	}
	delete(r.namespaces, namespace)

	r.logger.Info("module retracted",
		"namespace", namespace,
		"total_tools", len(r.tools),
	)
}

// Lookup finds a registered tool by qualified name.
func (r *Registry) Lookup(qualified string) (*RegisteredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.tools[qualified]
	return rt, ok
}

// IsAllowed reports whether a qualified name is both registered and present
// in its owning module's declared allow-list. Registered-but-withheld tools
// return false; a module author cannot widen the callable surface beyond
// what it declared.
func (r *Registry) IsAllowed(qualified string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.tools[qualified]
	if !ok {
		return false
	}
	reg, ok := r.namespaces[rt.Namespace]
	if !ok {
		return false
	}
	_, allowed := reg.allowed[rt.Qualified]
	return allowed
}

// AllowedTools returns the sorted qualified names the session boundary may
// present to the model as callable.
func (r *Registry) AllowedTools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for qn, rt := range r.tools {
		if reg, ok := r.namespaces[rt.Namespace]; ok {
			if _, allowed := reg.allowed[qn]; allowed {
				names = append(names, qn)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Namespaces returns the sorted namespaces currently registered.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.namespaces))
	for ns := range r.namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// Module returns the registered module for a namespace, if any.
func (r *Registry) Module(namespace string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.namespaces[namespace]
	if !ok {
		return nil, false
	}
	return reg.module, true
}

func compileSchema(qualified, schemaJSON string) (*jsonschema.Schema, error) {
	if schemaJSON == "" {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("tradewind:///%s.schema.json", qualified)
	if err := c.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return compiled, nil
}
