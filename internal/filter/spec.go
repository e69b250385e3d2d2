// Package filter is the search filter pipeline: the immutable Spec a search
// runs with, its validation, and the ordered narrowing stages applied to a
// candidate set.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/fenilsonani/filesearch/internal/sorter"
)

// NameMode selects how Spec.Name is matched against basenames.
type NameMode string

const (
	NameExact       NameMode = "exact" // glob over the whole basename
	NameContains    NameMode = "contains"
	NameBegins      NameMode = "begins"
	NameEnds        NameMode = "ends"
	NameFuzzy       NameMode = "fuzzy"
	NameNotContains NameMode = "not-contains"
	NameRegex       NameMode = "regex"
)

// NameModes lists every name mode.
var NameModes = []NameMode{NameExact, NameContains, NameBegins, NameEnds, NameFuzzy, NameNotContains, NameRegex}

// Kind restricts results to files, folders or both.
type Kind string

const (
	KindBoth    Kind = "both"
	KindFiles   Kind = "files"
	KindFolders Kind = "folders"
)

// Date is a calendar day in local time. The zero Date is unset.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// NewDate returns the given day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.Local)}
}

// DateOf returns the day t falls on, in local time.
func DateOf(t time.Time) Date {
	t = t.In(time.Local)
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD. The empty string is the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

// IsZero reports whether d is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Start is midnight at the beginning of d.
func (d Date) Start() time.Time { return d.t }

// End is midnight at the beginning of the following day.
func (d Date) End() time.Time { return d.t.AddDate(0, 0, 1) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// Before reports whether d is an earlier day than o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Epoch is the unset lower date bound.
var Epoch = NewDate(1970, time.January, 1)

// DateRange is an inclusive range of days.
type DateRange struct {
	From Date `json:"from" yaml:"from"`
	To   Date `json:"to" yaml:"to"`
}

// bounds resolves unset ends to the epoch and today.
func (r DateRange) bounds(today Date) (Date, Date) {
	from, to := r.From, r.To
	if from.IsZero() {
		from = Epoch
	}
	if to.IsZero() {
		to = today
	}
	return from, to
}

// Active reports whether the range narrows anything: it is inactive when
// both ends are unset or sit on the epoch and today.
func (r DateRange) Active(today Date) bool {
	from, to := r.bounds(today)
	return !(from.Equal(Epoch) && to.Equal(today))
}

// Contains reports whether t falls on a day within the range.
func (r DateRange) Contains(t time.Time, today Date) bool {
	from, to := r.bounds(today)
	return !t.Before(from.Start()) && t.Before(to.End())
}

// Spec is the immutable set of filters one search runs with.
type Spec struct {
	Name          string   `json:"name" yaml:"name"`
	NameMode      NameMode `json:"name_mode" yaml:"name_mode"`
	CaseSensitive bool     `json:"case_sensitive" yaml:"case_sensitive"`
	FuzzyPercent  int      `json:"fuzzy_percent" yaml:"fuzzy_percent"` // 1..100, NameFuzzy only
	FuzzyLimit    int      `json:"fuzzy_limit" yaml:"fuzzy_limit"`     // closest names kept, 0 is all

	Extension   string `json:"extension" yaml:"extension"`
	SystemFiles bool   `json:"system_files" yaml:"system_files"`
	Kind        Kind   `json:"kind" yaml:"kind"`

	TypeFilter       bool     `json:"type_filter" yaml:"type_filter"`
	TypeGroups       []string `json:"type_groups" yaml:"type_groups"`
	CustomExtensions string   `json:"custom_extensions" yaml:"custom_extensions"` // "txt;md;log"

	ExcludedDirs []string `json:"excluded_dirs" yaml:"excluded_dirs"`

	Created  DateRange `json:"created" yaml:"created"`
	Modified DateRange `json:"modified" yaml:"modified"`

	SizeMin string `json:"size_min" yaml:"size_min"` // humanized, "" is unset
	SizeMax string `json:"size_max" yaml:"size_max"`

	Content  string `json:"content" yaml:"content"`
	MaxDepth int    `json:"max_depth" yaml:"max_depth"` // 0 is unlimited

	Sort    sorter.Mode `json:"sort" yaml:"sort"`
	Reverse bool        `json:"reverse" yaml:"reverse"`

	NewCacheFile bool `json:"new_cache_file" yaml:"new_cache_file"`
}

// DefaultSpec returns a Spec that keeps every non-junk entry.
func DefaultSpec() Spec {
	return Spec{
		NameMode:     NameExact,
		FuzzyPercent: 80,
		Kind:         KindBoth,
		Sort:         sorter.ModeNone,
	}
}

// NameActive reports whether the name stage runs.
func (s Spec) NameActive() bool {
	return s.Name != ""
}

// Clone returns a deep copy so the caller's slices are never shared.
func (s Spec) Clone() Spec {
	out := s
	out.TypeGroups = append([]string(nil), s.TypeGroups...)
	out.ExcludedDirs = append([]string(nil), s.ExcludedDirs...)
	return out
}
