package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fenilsonani/filesearch/internal/filelock"
	"github.com/fenilsonani/filesearch/internal/model"
)

// SavedSearchVersion is the current saved-search file format.
const SavedSearchVersion = 1

// ErrUnsupportedVersion is returned for files written by a newer release.
var ErrUnsupportedVersion = errors.New("unsupported format version")

// SavedSearch is a search result persisted for later reloading or comparison
type SavedSearch struct {
	FormatVersion int             `json:"format_version"`
	ID            string          `json:"id"`
	Directory     string          `json:"directory"`
	Created       time.Time       `json:"created"`
	Paths         []string        `json:"paths"`
	Marked        []string        `json:"marked"`
	Filter        json.RawMessage `json:"filter,omitempty"`
}

// NewSavedSearch captures result. Marked paths are stored sorted.
func NewSavedSearch(result *model.SearchResult) *SavedSearch {
	s := &SavedSearch{
		Directory: result.Directory,
		Paths:     append([]string(nil), result.Paths...),
		Marked:    []string{},
		Filter:    result.Filter,
	}
	for path, marked := range result.Marked {
		if marked {
			s.Marked = append(s.Marked, path)
		}
	}
	sort.Strings(s.Marked)
	return s
}

// Result converts s back into a search result. Kinds are left for the
// caller to restore.
func (s *SavedSearch) Result() *model.SearchResult {
	marked := make(map[string]bool, len(s.Marked))
	for _, p := range s.Marked {
		marked[p] = true
	}
	return &model.SearchResult{
		Directory: s.Directory,
		Paths:     append([]string(nil), s.Paths...),
		Marked:    marked,
		Filter:    s.Filter,
	}
}

// SearchStore manages saved-search persistence
type SearchStore struct {
	dir string
}

// NewSearchStore creates a store rooted at dir
func NewSearchStore(dir string) (*SearchStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create searches directory: %w", err)
	}
	return &SearchStore{dir: dir}, nil
}

// Save writes s to the store, assigning an ID and timestamp when unset
func (ss *SearchStore) Save(s *SavedSearch) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Created.IsZero() {
		s.Created = time.Now()
	}
	path := ss.path(s.ID)
	return path, WriteSavedSearch(path, s)
}

// Load loads a saved search by ID
func (ss *SearchStore) Load(id string) (*SavedSearch, error) {
	return ReadSavedSearch(ss.path(id))
}

// List returns all saved searches, newest first. Unreadable files are skipped.
func (ss *SearchStore) List() ([]*SavedSearch, error) {
	entries, err := os.ReadDir(ss.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read searches directory: %w", err)
	}

	var searches []*SavedSearch
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		s, err := ss.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		searches = append(searches, s)
	}

	sort.SliceStable(searches, func(i, j int) bool {
		return searches[i].Created.After(searches[j].Created)
	})
	return searches, nil
}

// Delete deletes a saved search by ID
func (ss *SearchStore) Delete(id string) error {
	if err := os.Remove(ss.path(id)); err != nil {
		return fmt.Errorf("failed to delete saved search: %w", err)
	}
	return nil
}

// GetLatest returns the most recent saved search
func (ss *SearchStore) GetLatest() (*SavedSearch, error) {
	searches, err := ss.List()
	if err != nil {
		return nil, err
	}
	if len(searches) == 0 {
		return nil, fmt.Errorf("no saved searches found")
	}
	return searches[0], nil
}

// CleanOld removes saved searches older than days and returns how many
// were removed
func (ss *SearchStore) CleanOld(days int) (int, error) {
	searches, err := ss.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	for _, s := range searches {
		if s.Created.Before(cutoff) {
			if err := ss.Delete(s.ID); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// Dir returns the store directory
func (ss *SearchStore) Dir() string {
	return ss.dir
}

func (ss *SearchStore) path(id string) string {
	return filepath.Join(ss.dir, id+".json")
}

// WriteSavedSearch writes s to path atomically.
func WriteSavedSearch(path string, s *SavedSearch) error {
	s.FormatVersion = SavedSearchVersion
	if s.Marked == nil {
		s.Marked = []string{}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal saved search: %w", err)
	}
	if err := filelock.AtomicWrite(path, data); err != nil {
		return fmt.Errorf("failed to write saved search: %w", err)
	}
	return nil
}

// ReadSavedSearch reads a saved search from any path.
func ReadSavedSearch(path string) (*SavedSearch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read saved search: %w", err)
	}

	var s SavedSearch
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse saved search %s: %w", path, err)
	}
	if s.FormatVersion > SavedSearchVersion {
		return nil, fmt.Errorf("saved search %s has version %d: %w", path, s.FormatVersion, ErrUnsupportedVersion)
	}
	if s.Directory == "" {
		return nil, fmt.Errorf("saved search %s has no directory", path)
	}
	return &s, nil
}
