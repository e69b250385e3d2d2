// Package compare computes the differences between two search results.
package compare

import (
	"fmt"

	"github.com/fenilsonani/filesearch/internal/config"
)

// Compare returns the paths only in a and the paths only in b, each in its
// input order. Duplicates within one side are reported once.
func Compare(a, b []string) (onlyA, onlyB []string) {
	return difference(a, b), difference(b, a)
}

func difference(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, p := range b {
		exclude[p] = struct{}{}
	}

	out := []string{}
	for _, p := range a {
		if _, ok := exclude[p]; ok {
			continue
		}
		exclude[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Diff is the outcome of comparing two saved searches.
type Diff struct {
	A, B         *config.SavedSearch
	OnlyA, OnlyB []string
}

// Common returns the number of paths found by both searches.
func (d *Diff) Common() int {
	return len(unique(d.A.Paths)) - len(d.OnlyA)
}

func unique(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

// CompareFiles loads two saved-search files and compares their paths.
func CompareFiles(pathA, pathB string) (*Diff, error) {
	a, err := config.ReadSavedSearch(pathA)
	if err != nil {
		return nil, fmt.Errorf("failed to load first search: %w", err)
	}
	b, err := config.ReadSavedSearch(pathB)
	if err != nil {
		return nil, fmt.Errorf("failed to load second search: %w", err)
	}

	onlyA, onlyB := Compare(a.Paths, b.Paths)
	return &Diff{A: a, B: b, OnlyA: onlyA, OnlyB: onlyB}, nil
}
