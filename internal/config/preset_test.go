package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/filesearch/internal/filter"
	"github.com/fenilsonani/filesearch/internal/sorter"
)

func TestPresetRoundTrip(t *testing.T) {
	dir := t.TempDir()

	spec := filter.DefaultSpec()
	spec.Name = "*.go"
	spec.Kind = filter.KindFiles
	spec.TypeFilter = true
	spec.TypeGroups = []string{"code"}
	spec.Modified = filter.DateRange{From: filter.NewDate(2024, time.January, 1)}
	spec.SizeMin = "1KiB"
	spec.SizeMax = "1MiB"
	spec.Sort = sorter.ModeSize

	path := PresetPath(dir, "go-sources")
	require.NoError(t, SavePreset(path, spec))

	loaded, err := LoadPreset(path)
	require.NoError(t, err)
	assert.Equal(t, "*.go", loaded.Name)
	assert.Equal(t, filter.KindFiles, loaded.Kind)
	assert.Equal(t, []string{"code"}, loaded.TypeGroups)
	assert.True(t, loaded.Modified.From.Equal(filter.NewDate(2024, time.January, 1)))
	assert.True(t, loaded.Modified.To.IsZero())
	assert.Equal(t, "1KiB", loaded.SizeMin)
	assert.Equal(t, sorter.ModeSize, loaded.Sort)

	names, err := ListPresets(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"go-sources"}, names)
}

func TestLoadPresetBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format_version: 1\nfilter:\n  name: report\n  name_mode: contains\n"), 0644))

	spec, err := LoadPreset(path)
	require.NoError(t, err)

	def := filter.DefaultSpec()
	assert.Equal(t, "report", spec.Name)
	assert.Equal(t, filter.NameContains, spec.NameMode)
	assert.Equal(t, def.FuzzyPercent, spec.FuzzyPercent)
	assert.Equal(t, def.Kind, spec.Kind)
	assert.Equal(t, def.Sort, spec.Sort)
}

func TestLoadPresetNormalisesSortCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format_version: 1\nfilter:\n  sort: Name\n"), 0644))

	spec, err := LoadPreset(path)
	require.NoError(t, err)
	assert.Equal(t, sorter.ModeName, spec.Sort)
}

func TestLoadPresetRejectsUnknownSort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format_version: 1\nfilter:\n  sort: colour\n"), 0644))

	_, err := LoadPreset(path)
	assert.Error(t, err)
}

func TestLoadPresetRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format_version: 2\nfilter: {}\n"), 0644))

	_, err := LoadPreset(path)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestListPresetsMissingDir(t *testing.T) {
	names, err := ListPresets(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, names)
}
