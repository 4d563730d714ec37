// ABOUTME: Starter document generation and in-place edits for the config subcommand.
// ABOUTME: Writes a commented TOML template and toggles extension enablement.

package config

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// StarterDocument renders a commented starter configuration. locations is
// the builtin catalog; each becomes an [extensions.*] section, and the
// namespaces in enable are switched on in agent.extension_enabled.
func StarterDocument(locations, enable []string) string {
	var b strings.Builder

	b.WriteString("# tradewind configuration\n\n")
	b.WriteString("[environment]\n")
	b.WriteString("cwd = \".\"\n")
	b.WriteString("# project = \"my-strategy\"\n\n")
	b.WriteString("[model]\n")
	b.WriteString("# base_url = \"...\"\n")
	b.WriteString("# api_key = \"${TRADEWIND_API_KEY}\"\n")
	b.WriteString("# model_name = \"...\"\n\n")
	b.WriteString("[agent]\n")
	b.WriteString("permission_mode = \"ask\"\n")
	fmt.Fprintf(&b, "extension_enabled = %s\n", tomlStringArray(enable))
	b.WriteString("init_timeout = \"10s\"\n")
	b.WriteString("call_timeout = \"30s\"\n\n")
	b.WriteString("[logging]\n")
	b.WriteString("level = \"info\"\n")
	b.WriteString("format = \"text\"\n")

	for _, location := range locations {
		namespace := strings.TrimPrefix(location, "builtin:")
		fmt.Fprintf(&b, "\n[extensions.%s]\n", namespace)
		fmt.Fprintf(&b, "location = %q\n", location)
		fmt.Fprintf(&b, "\n[extensions.%s.options]\n", namespace)
	}

	return b.String()
}

func tomlStringArray(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// WriteStarter writes the starter document to path, refusing to clobber an
// existing file.
func WriteStarter(path string, locations, enable []string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	return os.WriteFile(path, []byte(StarterDocument(locations, enable)), 0o600)
}

// SetEnabled adds or removes a namespace in agent.extension_enabled in the
// file at path. A namespace without an [extensions] section gets one created
// with a builtin location. The file is re-encoded, so hand-written comments
// do not survive.
func SetEnabled(path, namespace string, enabled bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	agent, ok := doc["agent"].(map[string]any)
	if !ok {
		agent = make(map[string]any)
		doc["agent"] = agent
	}
	list := stringList(agent["extension_enabled"])
	if enabled && !slices.Contains(list, namespace) {
		list = append(list, namespace)
		slices.Sort(list)
	}
	if !enabled {
		list = slices.DeleteFunc(list, func(s string) bool { return s == namespace })
	}
	agent["extension_enabled"] = list

	if enabled {
		extensions, ok := doc["extensions"].(map[string]any)
		if !ok {
			extensions = make(map[string]any)
			doc["extensions"] = extensions
		}
		if _, ok := extensions[namespace].(map[string]any); !ok {
			extensions[namespace] = map[string]any{"location": "builtin:" + namespace}
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encoding config file: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	list := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			list = append(list, s)
		}
	}
	return list
}
