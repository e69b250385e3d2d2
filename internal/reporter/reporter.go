package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/filesearch/internal/cache"
	"github.com/fenilsonani/filesearch/internal/duplicates"
	"github.com/fenilsonani/filesearch/internal/engine"
	"github.com/fenilsonani/filesearch/internal/model"
	"github.com/fenilsonani/filesearch/internal/progress"
	"github.com/fenilsonani/filesearch/internal/ui/styles"
	"github.com/fenilsonani/filesearch/pkg/utils"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
	FormatPlain   OutputFormat = "plain" // one path per line
)

// Formats lists every output format.
var Formats = []OutputFormat{FormatTable, FormatJSON, FormatYAML, FormatSummary, FormatPlain}

// ParseFormat validates s as an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	for _, f := range Formats {
		if OutputFormat(strings.ToLower(s)) == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

const defaultWidth = 100

// Reporter handles report generation
type Reporter struct {
	writer io.Writer
	format OutputFormat
	width  int
	now    func() time.Time
}

// New creates a new Reporter. Table width follows the terminal when writer
// is one.
func New(writer io.Writer, format OutputFormat) *Reporter {
	width := defaultWidth
	if f, ok := writer.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	return &Reporter{writer: writer, format: format, width: width, now: time.Now}
}

// Entry is one reported path.
type Entry struct {
	Path     string    `json:"path" yaml:"path"`
	Kind     string    `json:"kind" yaml:"kind"`
	Size     int64     `json:"size" yaml:"size"`
	Modified time.Time `json:"modified" yaml:"modified"`
	Marked   bool      `json:"marked,omitempty" yaml:"marked,omitempty"`
}

func entries(r *model.SearchResult) ([]Entry, int64) {
	out := make([]Entry, 0, len(r.Paths))
	var total int64
	for _, p := range r.Paths {
		e := Entry{Path: p, Kind: r.KindOf(p).String(), Marked: r.Marked[p]}
		if info, err := os.Lstat(p); err == nil {
			e.Modified = info.ModTime()
			if !info.IsDir() {
				e.Size = info.Size()
				total += e.Size
			}
		}
		out = append(out, e)
	}
	return out, total
}

// ReportSearch reports a search result
func (r *Reporter) ReportSearch(result *model.SearchResult) error {
	if r.format == FormatPlain {
		return r.plain(result.Paths)
	}

	list, total := entries(result)
	switch r.format {
	case FormatTable:
		return r.searchTable(result, list, total)
	case FormatSummary:
		return r.searchSummary(result, total)
	case FormatJSON, FormatYAML:
		report := struct {
			Timestamp          string        `json:"timestamp" yaml:"timestamp"`
			Directory          string        `json:"directory" yaml:"directory"`
			TotalResults       int           `json:"total_results" yaml:"total_results"`
			TotalSize          int64         `json:"total_size" yaml:"total_size"`
			TotalSizeFormatted string        `json:"total_size_formatted" yaml:"total_size_formatted"`
			Scanned            int           `json:"scanned" yaml:"scanned"`
			FromCache          bool          `json:"from_cache" yaml:"from_cache"`
			Timings            model.Timings `json:"timings" yaml:"timings"`
			Results            []Entry       `json:"results" yaml:"results"`
		}{
			Timestamp:          r.now().Format(time.RFC3339),
			Directory:          result.Directory,
			TotalResults:       result.Len(),
			TotalSize:          total,
			TotalSizeFormatted: utils.FormatBytes(total),
			Scanned:            result.Scanned,
			FromCache:          result.FromCache,
			Timings:            result.Timings,
			Results:            list,
		}
		return r.encode(report)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// searchSummary generates a summary report
func (r *Reporter) searchSummary(result *model.SearchResult, total int64) error {
	source := "disk"
	if result.FromCache {
		source = "cache"
	}

	fmt.Fprintln(r.writer, styles.TitleStyle.Render("=== Search Summary ==="))
	fmt.Fprintf(r.writer, "Directory: %s\n", result.Directory)
	fmt.Fprintf(r.writer, "Results: %s of %s entries (from %s)\n",
		utils.FormatCount(result.Len()), utils.FormatCount(result.Scanned), source)
	fmt.Fprintf(r.writer, "Total Size: %s\n", utils.FormatBytes(total))
	fmt.Fprintf(r.writer, "Time: scan %s, filter %s, sort %s\n",
		progress.FormatDuration(result.Timings.Scan),
		progress.FormatDuration(result.Timings.Filter),
		progress.FormatDuration(result.Timings.Sort))
	return nil
}

// searchTable generates a table report
func (r *Reporter) searchTable(result *model.SearchResult, list []Entry, total int64) error {
	pathWidth := r.width - 46
	if pathWidth < 20 {
		pathWidth = 20
	}
	rule := strings.Repeat("─", pathWidth+46)

	header := fmt.Sprintf("%-*s | %-6s | %-10s | %s", pathWidth, "Path", "Kind", "Size", "Modified")
	fmt.Fprintln(r.writer, styles.BoldStyle.Render(header))
	fmt.Fprintln(r.writer, rule)

	for _, e := range list {
		mark := " "
		if e.Marked {
			mark = "*"
		}
		size := utils.FormatBytes(e.Size)
		if e.Kind == model.KindFolder.String() {
			size = "-"
		}
		modified := "-"
		if !e.Modified.IsZero() {
			modified = e.Modified.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(r.writer, "%-*s | %-6s | %-10s | %s%s\n",
			pathWidth, truncatePath(e.Path, pathWidth), e.Kind, size, modified, mark)
	}

	fmt.Fprintln(r.writer, rule)
	fmt.Fprintf(r.writer, "Total: %s results, %s\n", utils.FormatCount(result.Len()), utils.FormatBytes(total))
	return nil
}

// Group is one reported duplicate group.
type Group struct {
	Key            string   `json:"key" yaml:"key"`
	Representative string   `json:"representative" yaml:"representative"`
	Members        []string `json:"members" yaml:"members"`
	Size           int64    `json:"size" yaml:"size"`
}

// ReportDuplicates reports duplicate groups in their result order
func (r *Reporter) ReportDuplicates(result *duplicates.Result) error {
	groups := make([]Group, 0, len(result.Order))
	var wasted int64
	for _, key := range result.Order {
		g := Group{Key: key, Representative: result.Representative[key], Members: result.Groups[key]}
		if info, err := os.Stat(g.Representative); err == nil && !info.IsDir() {
			g.Size = info.Size()
			wasted += g.Size * int64(len(g.Members)-1)
		}
		groups = append(groups, g)
	}

	switch r.format {
	case FormatPlain:
		for i, g := range groups {
			if i > 0 {
				fmt.Fprintln(r.writer)
			}
			if err := r.plain(g.Members); err != nil {
				return err
			}
		}
		return nil
	case FormatTable, FormatSummary:
		fmt.Fprintln(r.writer, styles.TitleStyle.Render("=== Duplicate Groups ==="))
		fmt.Fprintf(r.writer, "Groups: %s, Files: %s, Reclaimable: %s\n",
			utils.FormatCount(len(groups)), utils.FormatCount(result.Members()), utils.FormatBytes(wasted))
		if result.Skipped > 0 {
			fmt.Fprintf(r.writer, "Skipped: %s unreadable\n", utils.FormatCount(result.Skipped))
		}
		if r.format == FormatSummary {
			return nil
		}
		for _, g := range groups {
			fmt.Fprintf(r.writer, "\n%s (%d files, %s each)\n",
				styles.BoldStyle.Render(filepath.Base(g.Representative)), len(g.Members), utils.FormatBytes(g.Size))
			for i, m := range g.Members {
				connector := "├──"
				if i == len(g.Members)-1 {
					connector = "╰──"
				}
				fmt.Fprintf(r.writer, "%s %s\n", connector, truncatePath(m, r.width-4))
			}
		}
		return nil
	case FormatJSON, FormatYAML:
		report := struct {
			Timestamp   string  `json:"timestamp" yaml:"timestamp"`
			TotalGroups int     `json:"total_groups" yaml:"total_groups"`
			Reclaimable int64   `json:"reclaimable" yaml:"reclaimable"`
			Skipped     int     `json:"skipped" yaml:"skipped"`
			Groups      []Group `json:"groups" yaml:"groups"`
		}{
			Timestamp:   r.now().Format(time.RFC3339),
			TotalGroups: len(groups),
			Reclaimable: wasted,
			Skipped:     result.Skipped,
			Groups:      groups,
		}
		return r.encode(report)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// ReportCompare reports the difference between two searches
func (r *Reporter) ReportCompare(result *engine.CompareResult) error {
	switch r.format {
	case FormatPlain:
		for _, p := range result.OnlyA {
			fmt.Fprintf(r.writer, "< %s\n", p)
		}
		for _, p := range result.OnlyB {
			fmt.Fprintf(r.writer, "> %s\n", p)
		}
		return nil
	case FormatTable, FormatSummary:
		fmt.Fprintln(r.writer, styles.TitleStyle.Render("=== Comparison ==="))
		fmt.Fprintf(r.writer, "Only in A (%s): %s\n", result.DirA, utils.FormatCount(len(result.OnlyA)))
		fmt.Fprintf(r.writer, "Only in B (%s): %s\n", result.DirB, utils.FormatCount(len(result.OnlyB)))
		if r.format == FormatSummary {
			return nil
		}
		for _, p := range result.OnlyA {
			fmt.Fprintf(r.writer, "< %s\n", truncatePath(p, r.width-2))
		}
		for _, p := range result.OnlyB {
			fmt.Fprintf(r.writer, "> %s\n", truncatePath(p, r.width-2))
		}
		return nil
	case FormatJSON, FormatYAML:
		return r.encode(result)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// ReportCaches lists cached directories, newest first as given
func (r *Reporter) ReportCaches(metas []cache.Metadata) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		type row struct {
			Directory string    `json:"directory" yaml:"directory"`
			Created   time.Time `json:"created" yaml:"created"`
			Version   int       `json:"format_version" yaml:"format_version"`
		}
		rows := make([]row, 0, len(metas))
		for _, m := range metas {
			rows = append(rows, row{Directory: m.CacheKey, Created: m.CreatedTime(), Version: m.FormatVersion})
		}
		return r.encode(rows)
	default:
		now := r.now()
		for _, m := range metas {
			fmt.Fprintf(r.writer, "%s  %s ago\n", m.CacheKey, progress.FormatDuration(m.Age(now)))
		}
		fmt.Fprintf(r.writer, "%s cached directories\n", utils.FormatCount(len(metas)))
		return nil
	}
}

func (r *Reporter) plain(paths []string) error {
	for _, p := range paths {
		if _, err := fmt.Fprintln(r.writer, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) encode(v any) error {
	if r.format == FormatYAML {
		encoder := yaml.NewEncoder(r.writer)
		defer encoder.Close()
		return encoder.Encode(v)
	}
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// truncatePath keeps the tail of path within maxLen runes
func truncatePath(path string, maxLen int) string {
	runes := []rune(path)
	if maxLen < 4 || len(runes) <= maxLen {
		return path
	}
	return "..." + string(runes[len(runes)-maxLen+3:])
}

// SaveToFile saves a search report to a file
func SaveToFile(result *model.SearchResult, path string, format OutputFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return New(file, format).ReportSearch(result)
}
