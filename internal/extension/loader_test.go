// ABOUTME: Tests for the extension loader and builtin resolver.
// ABOUTME: Validates per-namespace failure isolation during module loading.

package extension

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"testing"
)

func TestBuiltinResolver(t *testing.T) {
	t.Run("resolves registered factory", func(t *testing.T) {
		resolver := NewBuiltinResolver()
		resolver.Add("market_data", func() (*Module, error) {
			return testModule("market_data", []string{"quote"}, []string{"market_data__quote"}), nil
		})

		module, err := resolver.Resolve("builtin:market_data")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if module.Namespace != "market_data" {
			t.Errorf("namespace = %q, want market_data", module.Namespace)
		}
	})

	t.Run("unknown builtin", func(t *testing.T) {
		resolver := NewBuiltinResolver()
		_, err := resolver.Resolve("builtin:missing")
		if !errors.Is(err, ErrLocationNotFound) {
			t.Errorf("expected ErrLocationNotFound, got %v", err)
		}
	})

	t.Run("non-builtin scheme", func(t *testing.T) {
		resolver := NewBuiltinResolver()
		_, err := resolver.Resolve("/some/path.so")
		if !errors.Is(err, ErrLocationNotFound) {
			t.Errorf("expected ErrLocationNotFound, got %v", err)
		}
	})

	t.Run("catalog lists locations sorted", func(t *testing.T) {
		resolver := NewBuiltinResolver()
		resolver.Add("journal", func() (*Module, error) { return nil, nil })
		resolver.Add("broker", func() (*Module, error) { return nil, nil })

		got := resolver.Catalog()
		want := []string{"builtin:broker", "builtin:journal"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Catalog() = %v, want %v", got, want)
		}
	})
}

func TestLoaderIsolation(t *testing.T) {
	resolver := NewBuiltinResolver()
	resolver.Add("good", func() (*Module, error) {
		return testModule("good", []string{"t"}, []string{"good__t"}), nil
	})
	resolver.Add("broken_factory", func() (*Module, error) {
		return nil, fmt.Errorf("import exploded")
	})
	resolver.Add("bad_allowlist", func() (*Module, error) {
		// Allow-list references an undeclared tool.
		return testModule("bad_allowlist", []string{"t"}, []string{"bad_allowlist__ghost"}), nil
	})
	resolver.Add("also_good", func() (*Module, error) {
		return testModule("also_good", []string{"t"}, []string{"also_good__t"}), nil
	})

	loader := NewLoader(resolver, slog.Default())
	entries := []Entry{
		{Namespace: "good", Location: "builtin:good", Enabled: true},
		{Namespace: "broken_factory", Location: "builtin:broken_factory", Enabled: true},
		{Namespace: "bad_allowlist", Location: "builtin:bad_allowlist", Enabled: true},
		{Namespace: "missing", Location: "builtin:missing", Enabled: true},
		{Namespace: "also_good", Location: "builtin:also_good", Enabled: true},
		{Namespace: "disabled", Location: "builtin:disabled", Enabled: false},
	}

	modules, failures := loader.Load(entries)

	if len(modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(modules))
	}
	if modules[0].Namespace != "good" || modules[1].Namespace != "also_good" {
		t.Errorf("unexpected module order: %s, %s", modules[0].Namespace, modules[1].Namespace)
	}

	if len(failures) != 3 {
		t.Fatalf("expected 3 failures, got %d: %+v", len(failures), failures)
	}
	failed := map[string]error{}
	for _, f := range failures {
		failed[f.Namespace] = f.Err
	}
	if _, ok := failed["broken_factory"]; !ok {
		t.Error("broken_factory should have failed")
	}
	if err := failed["bad_allowlist"]; !errors.Is(err, ErrInvalidModule) {
		t.Errorf("bad_allowlist: expected ErrInvalidModule, got %v", err)
	}
	if err := failed["missing"]; !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("missing: expected ErrLocationNotFound, got %v", err)
	}
}

func TestLoaderNamespaceMismatch(t *testing.T) {
	resolver := NewBuiltinResolver()
	resolver.Add("impostor", func() (*Module, error) {
		return testModule("somebody_else", []string{"t"}, nil), nil
	})

	loader := NewLoader(resolver, slog.Default())
	modules, failures := loader.Load([]Entry{
		{Namespace: "impostor", Location: "builtin:impostor", Enabled: true},
	})

	if len(modules) != 0 {
		t.Fatalf("expected no modules, got %d", len(modules))
	}
	if len(failures) != 1 || !errors.Is(failures[0].Err, ErrInvalidModule) {
		t.Fatalf("expected one ErrInvalidModule failure, got %+v", failures)
	}
}

func TestModuleValidate(t *testing.T) {
	cases := []struct {
		name   string
		module *Module
		ok     bool
	}{
		{"valid", testModule("ns", []string{"a"}, []string{"ns__a"}), true},
		{"empty namespace", testModule("", []string{"a"}, nil), false},
		{"separator in namespace", testModule("bad__ns", []string{"a"}, nil), false},
		{"no tools", &Module{Namespace: "ns"}, false},
		{"duplicate tool", testModule("ns", []string{"a", "a"}, nil), false},
		{"allow-list not subset", testModule("ns", []string{"a"}, []string{"ns__b"}), false},
		{"missing handler", &Module{Namespace: "ns", Tools: []*Tool{{Name: "a"}}}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.module.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSplitQualified(t *testing.T) {
	ns, local, ok := SplitQualified("market_data__quote")
	if !ok || ns != "market_data" || local != "quote" {
		t.Errorf("SplitQualified = (%q, %q, %v)", ns, local, ok)
	}
	if _, _, ok := SplitQualified("unqualified"); ok {
		t.Error("unqualified name should not split")
	}
	if _, _, ok := SplitQualified("__leading"); ok {
		t.Error("empty namespace should not split")
	}
}
