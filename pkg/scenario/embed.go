package scenario

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// Built-in scenarios covering the canonical GenAI instrumentation shapes:
// a plain chat completion, a multi-step reasoning workflow, a tool call,
// and a failed tool call with a retry.
//
//go:embed builtin/*.yaml
var builtinFS embed.FS

// BuiltinNames returns the names of the embedded scenarios, sorted.
func BuiltinNames() []string {
	entries, _ := fs.Glob(builtinFS, "builtin/*.yaml")
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(path.Base(entry), ".yaml"))
	}
	slices.Sort(names)
	return names
}

// LoadBuiltin returns an embedded scenario by name.
func LoadBuiltin(name string) (*Scenario, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown built-in scenario %q (available: %s)",
			name, strings.Join(BuiltinNames(), ", "))
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("built-in scenario %q: %w", name, err)
	}
	return sc, nil
}

// LoadBuiltins returns every embedded scenario, sorted by name.
func LoadBuiltins() ([]*Scenario, error) {
	names := BuiltinNames()
	out := make([]*Scenario, 0, len(names))
	for _, name := range names {
		sc, err := LoadBuiltin(name)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}
