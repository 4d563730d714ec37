// ABOUTME: Resolver abstraction that turns configured extension locations into modules.
// ABOUTME: BuiltinResolver serves compiled-in modules from a factory catalog.

package extension

import (
	"fmt"
	"sort"
	"strings"
)

// BuiltinScheme prefixes locations served by the BuiltinResolver.
const BuiltinScheme = "builtin:"

// Resolver turns a configured module location into an extension module.
// The rest of the runtime depends only on this interface; alternative
// resolvers (subprocess packs, remote packs) plug in here.
type Resolver interface {
	Resolve(location string) (*Module, error)
}

// ModuleFactory constructs a fresh module instance for one resolution.
type ModuleFactory func() (*Module, error)

// BuiltinResolver resolves "builtin:<name>" locations against a catalog of
// compiled-in module factories.
type BuiltinResolver struct {
	factories map[string]ModuleFactory
}

// NewBuiltinResolver creates an empty builtin resolver.
func NewBuiltinResolver() *BuiltinResolver {
	return &BuiltinResolver{factories: make(map[string]ModuleFactory)}
}

// Add registers a factory under "builtin:<name>". Later additions with the
// same name replace earlier ones.
func (r *BuiltinResolver) Add(name string, factory ModuleFactory) {
	r.factories[name] = factory
}

// Resolve constructs the module for a builtin location.
func (r *BuiltinResolver) Resolve(location string) (*Module, error) {
	name, ok := strings.CutPrefix(location, BuiltinScheme)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a %s location", ErrLocationNotFound, location, BuiltinScheme)
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: no builtin module %q", ErrLocationNotFound, name)
	}
	return factory()
}

// Catalog returns all known builtin locations, sorted. The config subcommand
// uses this to scan available extensions.
func (r *BuiltinResolver) Catalog() []string {
	locations := make([]string, 0, len(r.factories))
	for name := range r.factories {
		locations = append(locations, BuiltinScheme+name)
	}
	sort.Strings(locations)
	return locations
}
