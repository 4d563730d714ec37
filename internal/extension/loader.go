// ABOUTME: Loader resolves configured extension entries into validated modules.
// ABOUTME: Failures are isolated per namespace so one bad extension never blocks startup.

package extension

import (
	"fmt"
	"log/slog"
)

// Entry is one configured extension: where to find it, whether the user
// enabled it, and its private options passed to the init hook.
type Entry struct {
	Namespace string
	Location  string
	Enabled   bool
	Options   map[string]any
}

// Failure records one extension that could not be resolved or validated.
type Failure struct {
	Namespace string
	Location  string
	Err       error
}

// Loader resolves and validates extension modules from configuration.
type Loader struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewLoader creates a loader backed by the given resolver.
func NewLoader(resolver Resolver, logger *slog.Logger) *Loader {
	return &Loader{
		resolver: resolver,
		logger:   logger.With("component", "loader"),
	}
}

// Load resolves every enabled entry in order. A module that fails to resolve
// or validate is logged and reported as a Failure; the remaining entries are
// still loaded. Disabled entries are skipped silently.
func (l *Loader) Load(entries []Entry) ([]*Module, []Failure) {
	var modules []*Module
	var failures []Failure

	for _, entry := range entries {
		if !entry.Enabled {
			l.logger.Debug("extension disabled, skipping",
				"namespace", entry.Namespace,
			)
			continue
		}

		module, err := l.loadOne(entry)
		if err != nil {
			l.logger.Error("extension load failed",
				"namespace", entry.Namespace,
				"location", entry.Location,
				"error", err,
			)
			failures = append(failures, Failure{
				Namespace: entry.Namespace,
				Location:  entry.Location,
				Err:       err,
			})
			continue
		}

		l.logger.Info("extension loaded",
			"namespace", module.Namespace,
			"location", entry.Location,
			"tool_count", len(module.Tools),
			"allowed_count", len(module.Allowed),
		)
		modules = append(modules, module)
	}

	return modules, failures
}

func (l *Loader) loadOne(entry Entry) (*Module, error) {
	module, err := l.resolver.Resolve(entry.Location)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", entry.Location, err)
	}
	if module.Namespace != entry.Namespace {
		return nil, fmt.Errorf("%w: location %q resolved to namespace %q, configured as %q",
			ErrInvalidModule, entry.Location, module.Namespace, entry.Namespace)
	}
	if err := module.Validate(); err != nil {
		return nil, err
	}
	return module, nil
}
