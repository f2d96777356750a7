package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/metno/rove/internal/catalog"
	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/registry"
)

// TestDecl is one entry of rove.yaml's tests: block — the declarative
// registration of a QC test: its id, kind, dependencies, and the name
// of a compiled-in algorithm, plus that algorithm's options bag.
type TestDecl struct {
	ID      string         `yaml:"id"`
	Kind    string         `yaml:"kind"` // "series" | "spatial"
	Deps    []string       `yaml:"deps"`
	Algo    string         `yaml:"algo"`
	Options map[string]any `yaml:"options"`
}

// ConnectorDecl is one entry of rove.yaml's connectors: block, the
// declarative wiring between a source name and a concrete
// DataConnector implementation. The options bag is opaque here; each
// connector type reads its own keys.
type ConnectorDecl struct {
	Source string         `yaml:"source"`
	Type   string         `yaml:"type"` // "rest" | "redis" | "postgres"
	Option map[string]any `yaml:"options"`
}

// CatalogFile is the parsed shape of rove.yaml: process configuration
// (handled by viper in config.go) plus the test catalog and connector
// registry this deployment wires in.
type CatalogFile struct {
	Tests      []TestDecl      `yaml:"tests"`
	Connectors []ConnectorDecl `yaml:"connectors"`
}

// LoadCatalogFile parses a rove.yaml's tests: and connectors: blocks.
// Process configuration in the same file is handled by viper
// (config.go); this decode only cares about the declarations.
func LoadCatalogFile(path string) (CatalogFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return CatalogFile{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cf CatalogFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return CatalogFile{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cf, nil
}

// BuildRegistrations resolves a CatalogFile's tests: block into
// catalog registrations, looking each declared algorithm up by name
// in the compiled-in registry.
func BuildRegistrations(cf CatalogFile) ([]catalog.Registration, error) {
	regs := make([]catalog.Registration, 0, len(cf.Tests))
	for _, decl := range cf.Tests {
		kind, err := parseKind(decl.Kind)
		if err != nil {
			return nil, fmt.Errorf("config: test %q: %w", decl.ID, err)
		}
		algo, err := registry.Build(decl.Algo, decl.Options)
		if err != nil {
			return nil, fmt.Errorf("config: test %q: %w", decl.ID, err)
		}
		deps := make([]qc.TestID, len(decl.Deps))
		for i, d := range decl.Deps {
			deps[i] = qc.TestID(d)
		}
		regs = append(regs, catalog.Registration{
			ID:   qc.TestID(decl.ID),
			Kind: kind,
			Deps: deps,
			Algo: algo,
		})
	}
	return regs, nil
}

func parseKind(s string) (qc.Kind, error) {
	switch s {
	case "series":
		return qc.SeriesTest, nil
	case "spatial":
		return qc.SpatialTest, nil
	default:
		return 0, fmt.Errorf("unknown test kind %q", s)
	}
}

// StringOption reads a string option, returning ok=false if absent or
// of the wrong type.
func (c ConnectorDecl) StringOption(key string) (string, bool) {
	v, ok := c.Option[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
