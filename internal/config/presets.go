package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Preset is a named sculpture configuration selectable through the control
// API. Zero-valued fields inherit the running configuration.
type Preset struct {
	Name      string `yaml:"name"`
	Shape     string `yaml:"shape"`
	Color     string `yaml:"color"`
	Particles int    `yaml:"particles"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets parses the YAML preset catalogue at path. An empty path yields
// an empty catalogue rather than an error so presets stay optional.
func LoadPresets(path string) ([]Preset, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	//1.- Validate each entry so a typo fails at startup, not on selection.
	seen := make(map[string]bool, len(file.Presets))
	for i, preset := range file.Presets {
		name := strings.TrimSpace(preset.Name)
		if name == "" {
			return nil, fmt.Errorf("preset %d is missing a name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate preset %q", name)
		}
		seen[name] = true
		if preset.Particles < 0 {
			return nil, fmt.Errorf("preset %q: particle count must be non-negative", name)
		}
	}
	return file.Presets, nil
}

// FindPreset returns the preset with the given name, if present.
func FindPreset(presets []Preset, name string) (Preset, bool) {
	want := strings.TrimSpace(name)
	for _, preset := range presets {
		if preset.Name == want {
			return preset, true
		}
	}
	return Preset{}, false
}
