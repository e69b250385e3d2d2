package config

import "time"

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxAge: 30 * 24 * time.Hour, // 30 days
		},
		Search: SearchConfig{
			Workers:        0, // one per CPU
			HashBuffer:     "64KiB",
			HashAlgorithms: []string{"sha256"},
			ExcludedDirs:   []string{},
			SystemFiles:    false,
		},
		Duplicates: DuplicatesConfig{
			NamePercent: 80,
			SizePercent: 90,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			Format:     "console",
			OutputPath: "stderr",
		},
	}
}

// GetExampleConfig returns an example configuration with comments
func GetExampleConfig() string {
	return `# filesearch configuration file
# Location: ~/.config/filesearch/config.yaml

# ==============================================================================
# CACHE
# ==============================================================================
# Every fresh scan of a directory is stored so the next search of that
# directory, or of any folder below it, is served without touching the disk.

cache:
  dir: ""          # Empty uses the platform cache directory
  max_age: 720h    # Caches older than this are removed by 'filesearch cache prune'

# ==============================================================================
# SEARCH
# ==============================================================================

search:
  workers: 0               # Parallel hashing workers, 0 uses one per CPU
  hash_buffer: "64KiB"     # Read buffer used while hashing file contents
  hash_algorithms:         # Several algorithms are computed in parallel and must all agree
    - sha256
  excluded_dirs: []        # Absolute paths (~ allowed) never included in results
  system_files: false      # Include paths under OS system directories

# ==============================================================================
# DUPLICATES
# ==============================================================================
# Default match percentages used when a fuzzy mode is requested without one.

duplicates:
  name_percent: 80
  size_percent: 90

# ==============================================================================
# LOGGING
# ==============================================================================

logging:
  level: warn          # debug, info, warn, error
  format: console      # console or json
  output_path: stderr  # stderr, stdout or a file path

# Filter presets and saved searches default to subdirectories of the
# configuration directory.
presets:
  dir: ""
searches:
  dir: ""
`
}
