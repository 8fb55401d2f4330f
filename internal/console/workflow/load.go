package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type fileFormat struct {
	Workflows []Definition `yaml:"workflows"`
}

// LoadFile reads workflow definitions from a YAML file.
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflows file: %w", err)
	}
	return Parse(data)
}

// Parse decodes workflow definitions from YAML.
func Parse(data []byte) ([]Definition, error) {
	var f fileFormat
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse workflows: %w", err)
	}
	return f.Workflows, nil
}

// Merge returns base with every definition in overrides applied: an override
// replaces the base definition of the same entity, new entities are appended.
func Merge(base, overrides []Definition) []Definition {
	out := make([]Definition, len(base))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, d := range out {
		index[d.Entity] = i
	}
	for _, d := range overrides {
		if i, ok := index[d.Entity]; ok {
			out[i] = d
			continue
		}
		index[d.Entity] = len(out)
		out = append(out, d)
	}
	return out
}

// Load builds a registry from the built-in table plus the optional file at
// path. An empty path yields the built-in registry.
func Load(path string) (*Registry, error) {
	defs := Builtin()
	if path != "" {
		extra, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		defs = Merge(defs, extra)
	}
	return NewRegistry(defs...)
}
