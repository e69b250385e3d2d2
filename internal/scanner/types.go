package scanner

import (
	"errors"
	"time"

	"github.com/fenilsonani/filesearch/internal/model"
)

// ErrNotDirectory is returned when the search root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// ScanInfo describes where a candidate set came from.
type ScanInfo struct {
	Root      string
	FromCache bool
	Narrowed  bool      // reused from an ancestor directory's cache
	CacheKey  string    // key of the cache that served the set
	Created   time.Time // scan time of the data, inherited on reuse
	Entries   int
	Skipped   int // unreadable entries during a fresh walk
	Duration  time.Duration
}

// recordsToSet collects records into a candidate set.
func recordsToSet(set model.CandidateSet, records []model.FileRecord) {
	for _, r := range records {
		set.Add(r.Path, r.Kind)
	}
}
