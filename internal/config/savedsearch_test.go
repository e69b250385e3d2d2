package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/filesearch/internal/model"
)

func TestSearchStoreSaveAndLoad(t *testing.T) {
	store, err := NewSearchStore(filepath.Join(t.TempDir(), "searches"))
	require.NoError(t, err)

	result := &model.SearchResult{
		Directory: "/data",
		Paths:     []string{"/data/b.txt", "/data/a.txt"},
		Marked:    map[string]bool{"/data/b.txt": true, "/data/a.txt": false},
		Filter:    json.RawMessage(`{"name":"*.txt"}`),
	}

	saved := NewSavedSearch(result)
	path, err := store.Save(saved)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = uuid.Parse(saved.ID)
	assert.NoError(t, err, "saved searches get uuid ids")
	assert.False(t, saved.Created.IsZero())

	loaded, err := store.Load(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, SavedSearchVersion, loaded.FormatVersion)
	assert.Equal(t, "/data", loaded.Directory)
	assert.Equal(t, []string{"/data/b.txt", "/data/a.txt"}, loaded.Paths, "result order is preserved")
	assert.Equal(t, []string{"/data/b.txt"}, loaded.Marked)
	assert.JSONEq(t, `{"name":"*.txt"}`, string(loaded.Filter))

	back := loaded.Result()
	assert.True(t, back.Marked["/data/b.txt"])
	assert.False(t, back.Marked["/data/a.txt"])
	assert.Equal(t, result.Paths, back.Paths)
}

func TestSearchStoreListNewestFirst(t *testing.T) {
	store, err := NewSearchStore(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	for i, dir := range []string{"/old", "/newest", "/middle"} {
		offset := map[int]time.Duration{0: 0, 1: 2 * time.Hour, 2: time.Hour}[i]
		_, err := store.Save(&SavedSearch{Directory: dir, Created: base.Add(offset)})
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "junk.json"), []byte("{"), 0644))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 3, "unreadable files are skipped")
	assert.Equal(t, "/newest", list[0].Directory)
	assert.Equal(t, "/middle", list[1].Directory)
	assert.Equal(t, "/old", list[2].Directory)

	latest, err := store.GetLatest()
	require.NoError(t, err)
	assert.Equal(t, "/newest", latest.Directory)
}

func TestSearchStoreDeleteAndCleanOld(t *testing.T) {
	store, err := NewSearchStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(&SavedSearch{ID: "old", Directory: "/a", Created: time.Now().AddDate(0, 0, -10)})
	require.NoError(t, err)
	_, err = store.Save(&SavedSearch{ID: "fresh", Directory: "/b"})
	require.NoError(t, err)

	removed, err := store.CleanOld(7)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Load("old")
	assert.Error(t, err)

	require.NoError(t, store.Delete("fresh"))
	_, err = store.GetLatest()
	assert.Error(t, err)
}

func TestReadSavedSearchRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"format_version": 99, "directory": "/x", "paths": []}`), 0644))

	_, err := ReadSavedSearch(path)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestReadSavedSearchRequiresDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodir.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"format_version": 1, "paths": ["/a"]}`), 0644))

	_, err := ReadSavedSearch(path)
	assert.Error(t, err)
}
