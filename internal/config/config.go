package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/filesearch/internal/filelock"
	"github.com/fenilsonani/filesearch/internal/platform"
	"github.com/fenilsonani/filesearch/pkg/utils"
)

// Config represents the application configuration
type Config struct {
	Cache      CacheConfig      `yaml:"cache"`
	Search     SearchConfig     `yaml:"search"`
	Duplicates DuplicatesConfig `yaml:"duplicates"`
	Logging    LoggingConfig    `yaml:"logging"`
	Presets    DirConfig        `yaml:"presets"`
	Searches   DirConfig        `yaml:"searches"`
}

// CacheConfig controls where traversal snapshots are kept
type CacheConfig struct {
	Dir    string        `yaml:"dir"`     // empty means the platform cache dir
	MaxAge time.Duration `yaml:"max_age"` // used by `cache prune`, 0 disables
}

// SearchConfig holds engine tuning and search defaults
type SearchConfig struct {
	Workers        int      `yaml:"workers"`     // 0 means one per CPU
	HashBuffer     string   `yaml:"hash_buffer"` // e.g., "64KiB"
	HashAlgorithms []string `yaml:"hash_algorithms"`
	ExcludedDirs   []string `yaml:"excluded_dirs"`
	SystemFiles    bool     `yaml:"system_files"`
}

// DuplicatesConfig holds the default match percentages for fuzzy modes
type DuplicatesConfig struct {
	NamePercent int `yaml:"name_percent"`
	SizePercent int `yaml:"size_percent"`
}

// LoggingConfig mirrors logger.Config
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	OutputPath string `yaml:"output_path"`
}

// DirConfig names a storage directory
type DirConfig struct {
	Dir string `yaml:"dir"`
}

// Load loads configuration from a file. Keys missing from the file keep
// their default values.
func Load(configPath string) (*Config, error) {
	// If config doesn't exist, return default config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefault(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := GetDefault()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := filelock.AtomicWrite(configPath, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "console"}
)

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache max age must be >= 0")
	}

	if c.Search.Workers < 0 {
		return fmt.Errorf("search workers must be >= 0")
	}
	if _, err := c.HashBufferBytes(); err != nil {
		return err
	}
	for _, alg := range c.Search.HashAlgorithms {
		if _, err := utils.NewHash(utils.Algorithm(alg)); err != nil {
			return fmt.Errorf("invalid hash algorithm '%s': %w", alg, err)
		}
	}

	// Excluded dirs must be absolute once ~ is expanded
	for _, dir := range c.Search.ExcludedDirs {
		expanded, err := ExpandHome(dir)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(expanded) {
			return fmt.Errorf("excluded directory must be absolute: %s", dir)
		}
	}

	if p := c.Duplicates.NamePercent; p < 1 || p > 100 {
		return fmt.Errorf("duplicates name percent must be between 1 and 100, got %d", p)
	}
	if p := c.Duplicates.SizePercent; p < 1 || p > 100 {
		return fmt.Errorf("duplicates size percent must be between 1 and 100, got %d", p)
	}

	if c.Logging.Level != "" && !contains(logLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level '%s' (expected one of %s)", c.Logging.Level, strings.Join(logLevels, ", "))
	}
	if c.Logging.Format != "" && !contains(logFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format '%s' (expected one of %s)", c.Logging.Format, strings.Join(logFormats, ", "))
	}

	return nil
}

// HashBufferBytes parses Search.HashBuffer.
func (c *Config) HashBufferBytes() (int, error) {
	if c.Search.HashBuffer == "" {
		return utils.DefaultBufferSize, nil
	}
	n, err := utils.ParseSize(c.Search.HashBuffer)
	if err != nil {
		return 0, fmt.Errorf("invalid hash buffer '%s': %w", c.Search.HashBuffer, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("hash buffer must be > 0")
	}
	return int(n), nil
}

// Algorithms returns the configured hash algorithms.
func (c *Config) Algorithms() []utils.Algorithm {
	if len(c.Search.HashAlgorithms) == 0 {
		return []utils.Algorithm{utils.SHA256}
	}
	algs := make([]utils.Algorithm, len(c.Search.HashAlgorithms))
	for i, a := range c.Search.HashAlgorithms {
		algs[i] = utils.Algorithm(a)
	}
	return algs
}

// ExcludedDirs returns the configured exclusions with ~ expanded.
func (c *Config) ExcludedDirs() []string {
	var dirs []string
	for _, dir := range c.Search.ExcludedDirs {
		if expanded, err := ExpandHome(dir); err == nil {
			dirs = append(dirs, filepath.Clean(expanded))
		}
	}
	return dirs
}

// CacheDir returns the cache directory, defaulting to the platform cache dir.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return ExpandHome(c.Cache.Dir)
	}
	return platform.UserCacheDir()
}

// PresetsDir returns the filter preset directory.
func (c *Config) PresetsDir() (string, error) {
	return dirOrDefault(c.Presets.Dir, "presets")
}

// SearchesDir returns the saved-search directory.
func (c *Config) SearchesDir() (string, error) {
	return dirOrDefault(c.Searches.Dir, "searches")
}

func dirOrDefault(dir, name string) (string, error) {
	if dir != "" {
		return ExpandHome(dir)
	}
	base, err := platform.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, name), nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	configDir, err := platform.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// EnsureConfigExists creates a default config file if it doesn't exist
func EnsureConfigExists() (string, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Create default config
		defaultConfig := GetDefault()
		if err := Save(defaultConfig, configPath); err != nil {
			return "", err
		}
	}

	return configPath, nil
}
