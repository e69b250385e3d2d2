package filter

import (
	"path/filepath"
	"sort"
	"strings"
)

// GroupOther selects files whose extension belongs to no known group.
const GroupOther = "other"

// Groups maps each predefined type group to its extensions, without dots.
var Groups = map[string][]string{
	"images": {
		"jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp", "heic",
		"heif", "svg", "ico", "raw", "cr2", "nef", "arw", "dng", "psd",
	},
	"videos": {
		"mp4", "mov", "avi", "mkv", "wmv", "flv", "webm", "m4v", "mpg",
		"mpeg", "3gp",
	},
	"audio": {
		"mp3", "wav", "flac", "aac", "ogg", "m4a", "wma", "aiff", "aif",
		"opus", "mid", "midi",
	},
	"documents": {
		"pdf", "doc", "docx", "txt", "rtf", "odt", "md", "pages", "tex",
		"epub", "log",
	},
	"spreadsheets":  {"xls", "xlsx", "csv", "ods", "numbers", "tsv"},
	"presentations": {"ppt", "pptx", "odp", "key"},
	"archives": {
		"zip", "tar", "gz", "tgz", "bz2", "xz", "7z", "rar", "dmg", "iso",
		"zst",
	},
	"code": {
		"go", "py", "js", "ts", "jsx", "tsx", "java", "c", "h", "cpp",
		"hpp", "cc", "cs", "rb", "rs", "swift", "kt", "php", "sh", "html",
		"css", "json", "yaml", "yml", "toml", "xml", "sql",
	},
	"executables": {"exe", "msi", "app", "bin", "apk", "deb", "rpm", "pkg", "bat", "cmd"},
	"fonts":       {"ttf", "otf", "woff", "woff2", "fon"},
}

var extGroup = func() map[string]string {
	m := make(map[string]string)
	for g, exts := range Groups {
		for _, e := range exts {
			m[e] = g
		}
	}
	return m
}()

// GroupNames returns the predefined groups sorted, plus "other".
func GroupNames() []string {
	names := make([]string, 0, len(Groups)+1)
	for g := range Groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return append(names, GroupOther)
}

// IsGroup reports whether name is a predefined group or "other".
func IsGroup(name string) bool {
	if name == GroupOther {
		return true
	}
	_, ok := Groups[name]
	return ok
}

// Extension returns the lower-cased extension of path without its dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// GroupOf returns the group an extension belongs to, or "other".
func GroupOf(ext string) string {
	if g, ok := extGroup[strings.ToLower(ext)]; ok {
		return g
	}
	return GroupOther
}

// ParseCustomExtensions splits a semicolon separated list such as
// ".txt; md;.LOG" into normalized extensions.
func ParseCustomExtensions(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ";") {
		e := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "."))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// typeMatcher answers whether an extension is selected.
type typeMatcher struct {
	exts  map[string]struct{}
	other bool
}

func newTypeMatcher(groups []string, custom string) typeMatcher {
	m := typeMatcher{exts: make(map[string]struct{})}
	for _, g := range groups {
		if g == GroupOther {
			m.other = true
			continue
		}
		for _, e := range Groups[g] {
			m.exts[e] = struct{}{}
		}
	}
	for _, e := range ParseCustomExtensions(custom) {
		m.exts[e] = struct{}{}
	}
	return m
}

func (m typeMatcher) match(ext string) bool {
	if _, ok := m.exts[ext]; ok {
		return true
	}
	return m.other && GroupOf(ext) == GroupOther
}
