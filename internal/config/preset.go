package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/filesearch/internal/filelock"
	"github.com/fenilsonani/filesearch/internal/filter"
)

// PresetVersion is the current filter preset format.
const PresetVersion = 1

// Preset is a named, reusable filter.
type Preset struct {
	FormatVersion int         `yaml:"format_version"`
	Filter        filter.Spec `yaml:"filter"`
}

// PresetPath returns the file a preset called name is stored in.
func PresetPath(dir, name string) string {
	return filepath.Join(dir, name+".yaml")
}

// SavePreset writes spec to path.
func SavePreset(path string, spec filter.Spec) error {
	data, err := yaml.Marshal(Preset{FormatVersion: PresetVersion, Filter: spec})
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}
	if err := filelock.AtomicWrite(path, data); err != nil {
		return fmt.Errorf("failed to write preset: %w", err)
	}
	return nil
}

// LoadPreset reads a preset. Keys missing from the file keep the values of
// filter.DefaultSpec.
func LoadPreset(path string) (filter.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return filter.Spec{}, fmt.Errorf("failed to read preset: %w", err)
	}

	p := Preset{Filter: filter.DefaultSpec()}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return filter.Spec{}, fmt.Errorf("failed to parse preset %s: %w", path, err)
	}
	if p.FormatVersion > PresetVersion {
		return filter.Spec{}, fmt.Errorf("preset %s has version %d: %w", path, p.FormatVersion, ErrUnsupportedVersion)
	}
	return p.Filter, nil
}

// ListPresets returns the preset names found in dir, sorted.
func ListPresets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read presets directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}
