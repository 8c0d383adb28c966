// Package fixtures seeds the database from YAML files.
package fixtures

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demo []byte

// Demo returns the fixtures bundled with the binary.
func Demo() (YAMLFixtures, error) {
	return Parse(demo, "demo.yaml")
}

func Load(path string) (YAMLFixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return YAMLFixtures{}, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return Parse(b, path)
}

// Parse decodes fixtures and rejects unknown keys so typos do not silently
// drop data.
func Parse(b []byte, name string) (YAMLFixtures, error) {
	var dto YAMLFixtures
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&dto); err != nil {
		return YAMLFixtures{}, fmt.Errorf("%s: invalid fixtures: %w", name, err)
	}
	return dto, nil
}
