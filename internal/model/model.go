// Package model holds the data types shared by the traversal, cache,
// filter, sort and duplicate engines.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// EntryKind tags every discovered path.
type EntryKind uint8

const (
	KindFile EntryKind = iota
	KindFolder
)

// String returns the persisted tag of the kind.
func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of String.
func ParseKind(s string) (EntryKind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "folder":
		return KindFolder, nil
	default:
		return 0, fmt.Errorf("unknown entry kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EntryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EntryKind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// FileRecord is one discovered filesystem entry.
type FileRecord struct {
	Path string    `json:"path"`
	Kind EntryKind `json:"kind"`
}

// CandidateSet maps every discovered path to its kind. Filtering only ever
// removes keys.
type CandidateSet map[string]EntryKind

// NewCandidateSet returns an empty set sized for n entries.
func NewCandidateSet(n int) CandidateSet {
	return make(CandidateSet, n)
}

// Add records path with kind.
func (s CandidateSet) Add(path string, kind EntryKind) {
	s[path] = kind
}

// Clone returns an independent copy.
func (s CandidateSet) Clone() CandidateSet {
	out := make(CandidateSet, len(s))
	for p, k := range s {
		out[p] = k
	}
	return out
}

// Paths returns the keys sorted lexicographically.
func (s CandidateSet) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Records returns the set as path-sorted records.
func (s CandidateSet) Records() []FileRecord {
	paths := s.Paths()
	out := make([]FileRecord, len(paths))
	for i, p := range paths {
		out[i] = FileRecord{Path: p, Kind: s[p]}
	}
	return out
}

// Files returns the number of file entries.
func (s CandidateSet) Files() int {
	n := 0
	for _, k := range s {
		if k == KindFile {
			n++
		}
	}
	return n
}

// Timings is the per-phase breakdown returned with every search.
type Timings struct {
	Scan   time.Duration `json:"scan" yaml:"scan"`
	Filter time.Duration `json:"filter" yaml:"filter"`
	Sort   time.Duration `json:"sort" yaml:"sort"`
}

// Total is the sum of all phases.
func (t Timings) Total() time.Duration {
	return t.Scan + t.Filter + t.Sort
}

// SearchResult is the ordered outcome of one search.
type SearchResult struct {
	Directory string          `json:"directory" yaml:"directory"`
	Paths     []string        `json:"paths" yaml:"paths"`
	Kinds     CandidateSet    `json:"-" yaml:"-"`
	Marked    map[string]bool `json:"-" yaml:"-"`
	Timings   Timings         `json:"timings" yaml:"timings"`
	FromCache bool            `json:"from_cache" yaml:"from_cache"`
	Scanned   int             `json:"scanned" yaml:"scanned"`

	// Filter is the FilterSpec the result was produced with, kept opaque
	// here so the model stays a leaf package.
	Filter json.RawMessage `json:"filter,omitempty" yaml:"-"`
}

// Len returns the number of result paths.
func (r *SearchResult) Len() int {
	return len(r.Paths)
}

// KindOf returns the recorded kind of path, statting it when unknown.
func (r *SearchResult) KindOf(path string) EntryKind {
	if k, ok := r.Kinds[path]; ok {
		return k
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return KindFolder
	}
	return KindFile
}
