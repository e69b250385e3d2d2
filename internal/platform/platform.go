package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fenilsonani/filesearch/internal/pathutil"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Windows Platform = "windows"
	Unknown Platform = "unknown"
)

// Info contains platform-specific facts the search engine depends on.
type Info struct {
	OS      Platform
	HomeDir string

	// SystemRoots are directories holding OS libraries and system data.
	// Paths beneath them are excluded unless system files are enabled.
	SystemRoots []string

	// JunkNames are lower-cased basenames of OS metadata files that are
	// never returned by a search.
	JunkNames map[string]struct{}

	// CreationTimeSupported is false where the filesystem API exposes no
	// birth time and modification time is substituted.
	CreationTimeSupported bool
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	case "windows":
		return Windows
	default:
		return Unknown
	}
}

// junkNames is shared by every platform: results are often browsed on
// removable media written by another OS.
var junkNames = []string{
	".ds_store",
	"._.ds_store",
	".localized",
	".spotlight-v100",
	".fseventsd",
	".trashes",
	".temporaryitems",
	".documentrevisions-v100",
	"icon\r",
	"thumbs.db",
	"ehthumbs.db",
	"ehthumbs_vista.db",
	"desktop.ini",
	"$recycle.bin",
	".directory",
}

// GetInfo returns platform-specific information
func GetInfo() (*Info, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return infoFor(Detect(), homeDir), nil
}

func infoFor(p Platform, homeDir string) *Info {
	info := &Info{
		OS:                    p,
		HomeDir:               homeDir,
		JunkNames:             make(map[string]struct{}, len(junkNames)),
		CreationTimeSupported: creationTimeSupported,
	}
	for _, n := range junkNames {
		info.JunkNames[n] = struct{}{}
	}

	switch p {
	case MacOS:
		info.SystemRoots = []string{
			"/System",
			"/Library",
			"/private",
			"/usr",
			"/bin",
			"/sbin",
			"/dev",
			"/cores",
			"/Volumes/Recovery",
			filepath.Join(homeDir, "Library"),
		}
	case Linux:
		info.SystemRoots = []string{
			"/proc",
			"/sys",
			"/dev",
			"/run",
			"/boot",
			"/usr",
			"/bin",
			"/sbin",
			"/lib",
			"/lib32",
			"/lib64",
			"/etc",
			"/var/lib",
			"/var/cache",
			"/snap",
			"/lost+found",
		}
	case Windows:
		sysDrive := os.Getenv("SystemDrive")
		if sysDrive == "" {
			sysDrive = "C:"
		}
		info.SystemRoots = []string{
			filepath.Join(sysDrive+`\`, "Windows"),
			filepath.Join(sysDrive+`\`, "Program Files"),
			filepath.Join(sysDrive+`\`, "Program Files (x86)"),
			filepath.Join(sysDrive+`\`, "ProgramData"),
			filepath.Join(sysDrive+`\`, "$Recycle.Bin"),
			filepath.Join(homeDir, "AppData"),
		}
	}

	return info
}

// IsJunk reports whether base is a known OS metadata file name.
func (i *Info) IsJunk(base string) bool {
	_, ok := i.JunkNames[strings.ToLower(base)]
	return ok
}

// SystemRootFor returns the system root containing path, if any.
func (i *Info) SystemRootFor(path string) (string, bool) {
	for _, root := range i.SystemRoots {
		if pathutil.IsWithin(root, path) {
			return root, true
		}
	}
	return "", false
}

// UserCacheDir returns the directory search caches are kept under.
func UserCacheDir() (string, error) {
	if cacheDir := os.Getenv("XDG_CACHE_HOME"); cacheDir != "" && Detect() == Linux {
		return filepath.Join(cacheDir, "filesearch"), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "filesearch"), nil
}

// UserConfigDir returns the directory configuration, presets and saved
// searches are kept under.
func UserConfigDir() (string, error) {
	if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
		return filepath.Join(configDir, "filesearch"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "filesearch"), nil
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
