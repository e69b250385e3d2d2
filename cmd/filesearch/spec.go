package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/fenilsonani/filesearch/internal/config"
	"github.com/fenilsonani/filesearch/internal/filter"
	"github.com/fenilsonani/filesearch/internal/sorter"
)

// specFlags are the filter flags shared by every command that searches.
type specFlags struct {
	preset        string
	name          string
	nameMode      string
	caseSensitive bool
	fuzzy         int
	fuzzyLimit    int
	extension     string
	system        bool
	kind          string
	types         []string
	customExt     string
	exclude       []string
	createdFrom   string
	createdTo     string
	modifiedFrom  string
	modifiedTo    string
	minSize       string
	maxSize       string
	content       string
	depth         int
	sort          string
	reverse       bool
	fresh         bool
}

func (f *specFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.preset, "preset", "", "start from a saved filter preset")
	fs.StringVarP(&f.name, "name", "n", "", "name pattern")
	fs.StringVar(&f.nameMode, "name-mode", string(filter.NameExact), "name match (exact, contains, begins, ends, fuzzy, not-contains, regex)")
	fs.BoolVar(&f.caseSensitive, "case-sensitive", false, "case sensitive name match")
	fs.IntVar(&f.fuzzy, "fuzzy", 80, "minimum similarity percent for fuzzy names")
	fs.IntVar(&f.fuzzyLimit, "fuzzy-limit", 0, "keep only the N closest fuzzy names, 0 keeps all")
	fs.StringVarP(&f.extension, "ext", "e", "", "extension, e.g. txt")
	fs.BoolVar(&f.system, "system", false, "include system files")
	fs.StringVar(&f.kind, "kind", string(filter.KindBoth), "files, folders or both")
	fs.StringSliceVar(&f.types, "type", nil, "type groups, e.g. image,video")
	fs.StringVar(&f.customExt, "custom-ext", "", "extra type extensions, e.g. \"txt;md\"")
	fs.StringSliceVar(&f.exclude, "exclude", nil, "directories to skip")
	fs.StringVar(&f.createdFrom, "created-from", "", "created on or after YYYY-MM-DD")
	fs.StringVar(&f.createdTo, "created-to", "", "created on or before YYYY-MM-DD")
	fs.StringVar(&f.modifiedFrom, "modified-from", "", "modified on or after YYYY-MM-DD")
	fs.StringVar(&f.modifiedTo, "modified-to", "", "modified on or before YYYY-MM-DD")
	fs.StringVar(&f.minSize, "min-size", "", "minimum size, e.g. 10MB")
	fs.StringVar(&f.maxSize, "max-size", "", "maximum size, e.g. 1GiB")
	fs.StringVarP(&f.content, "content", "c", "", "text the file must contain")
	fs.IntVar(&f.depth, "depth", 0, "maximum depth below the directory, 0 is unlimited")
	fs.StringVarP(&f.sort, "sort", "s", string(sorter.ModeNone), "sort by (none, name, size, modified, created, path)")
	fs.BoolVarP(&f.reverse, "reverse", "r", false, "reverse the sort")
	fs.BoolVar(&f.fresh, "fresh", false, "rescan instead of reusing the cache")
}

// build starts from the preset, or the configured defaults, and applies
// every flag the user set.
func (f *specFlags) build(fs *pflag.FlagSet, cfg *config.Config) (filter.Spec, error) {
	spec := filter.DefaultSpec()
	spec.SystemFiles = cfg.Search.SystemFiles
	spec.ExcludedDirs = cfg.ExcludedDirs()

	if f.preset != "" {
		dir, err := cfg.PresetsDir()
		if err != nil {
			return spec, err
		}
		spec, err = config.LoadPreset(config.PresetPath(dir, f.preset))
		if err != nil {
			return spec, fmt.Errorf("failed to load preset %q: %w", f.preset, err)
		}
	}

	changed := fs.Changed
	if changed("name") {
		spec.Name = f.name
	}
	if changed("name-mode") {
		spec.NameMode = filter.NameMode(f.nameMode)
	}
	if changed("case-sensitive") {
		spec.CaseSensitive = f.caseSensitive
	}
	if changed("fuzzy") {
		spec.FuzzyPercent = f.fuzzy
	}
	if changed("fuzzy-limit") {
		spec.FuzzyLimit = f.fuzzyLimit
	}
	if changed("ext") {
		spec.Extension = f.extension
	}
	if changed("system") {
		spec.SystemFiles = f.system
	}
	if changed("kind") {
		spec.Kind = filter.Kind(f.kind)
	}
	if changed("type") {
		spec.TypeFilter = true
		spec.TypeGroups = f.types
	}
	if changed("custom-ext") {
		spec.TypeFilter = true
		spec.CustomExtensions = f.customExt
	}
	if changed("exclude") {
		for _, dir := range f.exclude {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return spec, err
			}
			spec.ExcludedDirs = append(spec.ExcludedDirs, abs)
		}
	}

	dates := []struct {
		flag  string
		value string
		dst   *filter.Date
	}{
		{"created-from", f.createdFrom, &spec.Created.From},
		{"created-to", f.createdTo, &spec.Created.To},
		{"modified-from", f.modifiedFrom, &spec.Modified.From},
		{"modified-to", f.modifiedTo, &spec.Modified.To},
	}
	for _, d := range dates {
		if !changed(d.flag) {
			continue
		}
		parsed, err := filter.ParseDate(d.value)
		if err != nil {
			return spec, fmt.Errorf("--%s: %w", d.flag, err)
		}
		*d.dst = parsed
	}

	if changed("min-size") {
		spec.SizeMin = f.minSize
	}
	if changed("max-size") {
		spec.SizeMax = f.maxSize
	}
	if changed("content") {
		spec.Content = f.content
	}
	if changed("depth") {
		spec.MaxDepth = f.depth
	}
	if changed("sort") {
		mode, err := sorter.ParseMode(f.sort)
		if err != nil {
			return spec, err
		}
		spec.Sort = mode
	}
	if changed("reverse") {
		spec.Reverse = f.reverse
	}
	if changed("fresh") {
		spec.NewCacheFile = f.fresh
	}
	return spec, nil
}

// dirArg returns the absolute directory named by args, or the working
// directory.
func dirArg(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	return filepath.Abs(dir)
}
