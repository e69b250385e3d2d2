package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// GetDefault Tests
// =============================================================================

func TestGetDefault(t *testing.T) {
	cfg := GetDefault()

	if cfg == nil {
		t.Fatal("GetDefault returned nil")
	}

	if cfg.Cache.MaxAge != 30*24*time.Hour {
		t.Errorf("expected cache max age 720h, got %s", cfg.Cache.MaxAge)
	}
	if cfg.Search.HashBuffer != "64KiB" {
		t.Errorf("expected hash buffer '64KiB', got %q", cfg.Search.HashBuffer)
	}
	if cfg.Search.SystemFiles {
		t.Error("expected system files to be excluded by default")
	}
	if cfg.Duplicates.NamePercent != 80 {
		t.Errorf("expected name percent 80, got %d", cfg.Duplicates.NamePercent)
	}
	if cfg.Duplicates.SizePercent != 90 {
		t.Errorf("expected size percent 90, got %d", cfg.Duplicates.SizePercent)
	}
}

func TestGetDefaultIsValid(t *testing.T) {
	if err := GetDefault().Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestExampleConfigParses(t *testing.T) {
	cfg := GetDefault()
	if err := yaml.Unmarshal([]byte(GetExampleConfig()), cfg); err != nil {
		t.Fatalf("example config does not parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("example config should be valid: %v", err)
	}
	if cfg.Cache.MaxAge != 720*time.Hour {
		t.Errorf("expected example max age 720h, got %s", cfg.Cache.MaxAge)
	}
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not error for non-existent file: %v", err)
	}

	// Should return default config
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.Duplicates.NamePercent != 80 {
		t.Error("expected default name percent")
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
cache:
  dir: /tmp/fs-cache
  max_age: 48h
search:
  workers: 4
  hash_buffer: 1MiB
  hash_algorithms: [sha256, md5]
  excluded_dirs: [/mnt/backup]
  system_files: true
duplicates:
  name_percent: 70
  size_percent: 95
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Cache.Dir != "/tmp/fs-cache" {
		t.Errorf("expected cache dir /tmp/fs-cache, got %q", cfg.Cache.Dir)
	}
	if cfg.Cache.MaxAge != 48*time.Hour {
		t.Errorf("expected max age 48h, got %s", cfg.Cache.MaxAge)
	}
	if cfg.Search.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Search.Workers)
	}
	if n, _ := cfg.HashBufferBytes(); n != 1<<20 {
		t.Errorf("expected 1MiB hash buffer, got %d", n)
	}
	if algs := cfg.Algorithms(); len(algs) != 2 || algs[1] != "md5" {
		t.Errorf("unexpected algorithms %v", algs)
	}
	if !cfg.Search.SystemFiles {
		t.Error("expected SystemFiles to be true")
	}
	if cfg.Duplicates.NamePercent != 70 {
		t.Errorf("expected name percent 70, got %d", cfg.Duplicates.NamePercent)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("duplicates:\n  name_percent: 60\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Duplicates.NamePercent != 60 {
		t.Errorf("expected name percent 60, got %d", cfg.Duplicates.NamePercent)
	}
	// Unset keys keep their defaults
	if cfg.Duplicates.SizePercent != 90 {
		t.Errorf("expected default size percent 90, got %d", cfg.Duplicates.SizePercent)
	}
	if cfg.Search.HashBuffer != "64KiB" {
		t.Errorf("expected default hash buffer, got %q", cfg.Search.HashBuffer)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("search: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("duplicates:\n  size_percent: 0\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid size percent")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("expected wrapped validation error, got %v", err)
	}
}

func TestLoadEmptyConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed for empty file: %v", err)
	}
	if cfg.Duplicates.NamePercent != 80 {
		t.Error("empty config should keep defaults")
	}
}

// =============================================================================
// Save Tests
// =============================================================================

func TestSaveCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "deep", "nested", "dir", "config.yaml")

	if err := Save(GetDefault(), configPath); err != nil {
		t.Fatalf("Save failed to create nested directories: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created in nested directory")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	original := GetDefault()
	original.Cache.MaxAge = 36 * time.Hour
	original.Search.Workers = 3
	original.Search.ExcludedDirs = []string{"/var/backups"}
	original.Duplicates.SizePercent = 75
	original.Logging.Level = "info"

	if err := Save(original, configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Cache.MaxAge != original.Cache.MaxAge {
		t.Errorf("max age mismatch after round-trip: %s", loaded.Cache.MaxAge)
	}
	if loaded.Search.Workers != original.Search.Workers {
		t.Error("workers mismatch after round-trip")
	}
	if len(loaded.Search.ExcludedDirs) != 1 || loaded.Search.ExcludedDirs[0] != "/var/backups" {
		t.Errorf("excluded dirs mismatch after round-trip: %v", loaded.Search.ExcludedDirs)
	}
	if loaded.Duplicates.SizePercent != 75 {
		t.Error("size percent mismatch after round-trip")
	}
	if loaded.Logging.Level != "info" {
		t.Error("log level mismatch after round-trip")
	}
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"negative max age", func(c *Config) { c.Cache.MaxAge = -time.Hour }, false},
		{"zero max age", func(c *Config) { c.Cache.MaxAge = 0 }, true},
		{"negative workers", func(c *Config) { c.Search.Workers = -1 }, false},
		{"bad hash buffer", func(c *Config) { c.Search.HashBuffer = "lots" }, false},
		{"zero hash buffer", func(c *Config) { c.Search.HashBuffer = "0" }, false},
		{"empty hash buffer", func(c *Config) { c.Search.HashBuffer = "" }, true},
		{"unknown algorithm", func(c *Config) { c.Search.HashAlgorithms = []string{"crc32"} }, false},
		{"all algorithms", func(c *Config) { c.Search.HashAlgorithms = []string{"sha1", "sha256", "sha512", "md5"} }, true},
		{"relative excluded dir", func(c *Config) { c.Search.ExcludedDirs = []string{"backups"} }, false},
		{"home excluded dir", func(c *Config) { c.Search.ExcludedDirs = []string{"~/backups"} }, true},
		{"name percent zero", func(c *Config) { c.Duplicates.NamePercent = 0 }, false},
		{"size percent over", func(c *Config) { c.Duplicates.SizePercent = 101 }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, false},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, false},
		{"empty logging", func(c *Config) { c.Logging = LoggingConfig{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefault()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// =============================================================================
// Path Tests
// =============================================================================

func TestGetConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath failed: %v", err)
	}

	if !filepath.IsAbs(path) {
		t.Error("GetConfigPath should return absolute path")
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("expected path to end with config.yaml, got %s", filepath.Base(path))
	}
	if filepath.Base(filepath.Dir(path)) != "filesearch" {
		t.Errorf("expected config under a filesearch directory, got %s", path)
	}
}

func TestEnsureConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := EnsureConfigExists()
	if err != nil {
		t.Fatalf("EnsureConfigExists failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file was not created: %v", err)
	}

	// A second call leaves the existing file alone
	if err := os.WriteFile(path, []byte("duplicates:\n  name_percent: 55\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureConfigExists(); err != nil {
		t.Fatalf("EnsureConfigExists failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Duplicates.NamePercent != 55 {
		t.Error("EnsureConfigExists overwrote an existing config")
	}
}

func TestDirectoriesDefaultUnderConfigDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	cfg := GetDefault()
	presets, err := cfg.PresetsDir()
	if err != nil {
		t.Fatal(err)
	}
	if presets != filepath.Join(base, "filesearch", "presets") {
		t.Errorf("unexpected presets dir %s", presets)
	}

	searches, err := cfg.SearchesDir()
	if err != nil {
		t.Fatal(err)
	}
	if searches != filepath.Join(base, "filesearch", "searches") {
		t.Errorf("unexpected searches dir %s", searches)
	}

	cfg.Cache.Dir = "/srv/cache"
	if dir, _ := cfg.CacheDir(); dir != "/srv/cache" {
		t.Errorf("expected configured cache dir, got %s", dir)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandHome("~/backups")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "backups") {
		t.Errorf("expected %s, got %s", filepath.Join(home, "backups"), got)
	}

	if got, _ := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %s", got)
	}
	if got, _ := ExpandHome("~user/x"); got != "~user/x" {
		t.Errorf("~user should not expand: %s", got)
	}
}
