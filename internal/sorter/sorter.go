// Package sorter orders search results.
package sorter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fenilsonani/filesearch/internal/platform"
)

// Mode selects the sort key.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeName     Mode = "name"
	ModeSize     Mode = "size"
	ModeModified Mode = "modified"
	ModeCreated  Mode = "created"
	ModePath     Mode = "path"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeNone, ModeName, ModeSize, ModeModified, ModeCreated, ModePath}

// ParseMode validates s as a Mode. The empty string is ModeNone.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeNone, nil
	}
	m := Mode(strings.ToLower(s))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}

// UnmarshalText normalises decoded modes so "Name" and "name" agree.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// missing is the key of files that cannot be stat'ed.
const missing = -1

// Sort returns a sorted copy of paths. Sizes sort largest first; names,
// paths and dates ascending. reverse inverts the order, and for ModeNone
// simply reverses the input. mode is matched case-insensitively. The sort
// is stable.
func Sort(paths []string, mode Mode, reverse bool) []string {
	out := make([]string, len(paths))
	copy(out, paths)

	if parsed, err := ParseMode(string(mode)); err == nil {
		mode = parsed
	}

	switch mode {
	case ModeNone, "":
		if reverse {
			for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
				out[i], out[j] = out[j], out[i]
			}
		}
		return out
	case ModeName:
		keys := make(map[string]string, len(out))
		for _, p := range out {
			keys[p] = strings.ToLower(filepath.Base(p))
		}
		sortBy(out, reverse, func(a, b string) int { return strings.Compare(keys[a], keys[b]) })
	case ModePath:
		keys := make(map[string]string, len(out))
		for _, p := range out {
			keys[p] = strings.ToLower(p)
		}
		sortBy(out, reverse, func(a, b string) int { return strings.Compare(keys[a], keys[b]) })
	case ModeSize:
		keys := statKeys(out, func(info os.FileInfo) int64 { return info.Size() })
		// natural direction is largest first
		sortBy(out, !reverse, func(a, b string) int { return cmpInt(keys[a], keys[b]) })
	case ModeModified:
		keys := statKeys(out, func(info os.FileInfo) int64 { return info.ModTime().UnixNano() })
		sortBy(out, reverse, func(a, b string) int { return cmpInt(keys[a], keys[b]) })
	case ModeCreated:
		keys := statKeys(out, func(info os.FileInfo) int64 {
			t, _ := platform.CreationTime(info)
			return t.UnixNano()
		})
		sortBy(out, reverse, func(a, b string) int { return cmpInt(keys[a], keys[b]) })
	default:
		panic(fmt.Sprintf("sorter: unknown mode %q", mode))
	}
	return out
}

// Key returns the comparable key mode uses for path, for display.
func Key(path string, mode Mode) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return missing
	}
	switch mode {
	case ModeSize:
		return info.Size()
	case ModeModified:
		return info.ModTime().UnixNano()
	case ModeCreated:
		t, _ := platform.CreationTime(info)
		return t.UnixNano()
	default:
		return 0
	}
}

func statKeys(paths []string, key func(os.FileInfo) int64) map[string]int64 {
	keys := make(map[string]int64, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			keys[p] = missing
			continue
		}
		keys[p] = key(info)
	}
	return keys
}

func sortBy(paths []string, descending bool, cmp func(a, b string) int) {
	sort.SliceStable(paths, func(i, j int) bool {
		c := cmp(paths[i], paths[j])
		if descending {
			return c > 0
		}
		return c < 0
	})
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
