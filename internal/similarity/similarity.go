// Package similarity scores how alike two names are. The filter pipeline's
// fuzzy name mode and fuzzy duplicate grouping share it.
package similarity

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Ratio returns a similarity in [0, 1]: 1 for identical strings, falling
// with the edit distance relative to the combined length.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}

// Fold lower-cases s unless caseSensitive is set.
func Fold(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

// Threshold converts a match percentage to a ratio.
func Threshold(percent int) float64 {
	return float64(percent) / 100
}

// Closest returns the index of the candidate most similar to s and its
// ratio. The first candidate wins ties. It returns -1 for no candidates.
func Closest(s string, candidates []string) (int, float64) {
	best, bestRatio := -1, -1.0
	for i, c := range candidates {
		r := Ratio(s, c)
		if r > bestRatio {
			best, bestRatio = i, r
		}
		if r == 1 {
			break
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, bestRatio
}

// Match is one candidate scored against a pattern.
type Match struct {
	Name  string
	Ratio float64
}

// CloseMatches scores every candidate against pattern and returns those
// whose ratio is at least cutoff, closest first. Equal ratios keep name
// order. limit caps the result when positive.
func CloseMatches(pattern string, candidates []string, cutoff float64, limit int) []Match {
	var out []Match
	for _, c := range candidates {
		if r := Ratio(pattern, c); r >= cutoff {
			out = append(out, Match{Name: c, Ratio: r})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ratio != out[j].Ratio {
			return out[i].Ratio > out[j].Ratio
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
