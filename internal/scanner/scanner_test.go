package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/filesearch/internal/cache"
	"github.com/fenilsonani/filesearch/internal/model"
	"github.com/fenilsonani/filesearch/internal/progress"
	"github.com/fenilsonani/filesearch/internal/testutil"
)

func newStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestScanFreshWalk(t *testing.T) {
	f := testutil.NewFixture(t)
	f.PopulateSearchTree()

	s := New(newStore(t))
	set, info, err := s.Scan(context.Background(), f.RootDir, false)
	require.NoError(t, err)

	assert.False(t, info.FromCache)
	assert.Equal(t, f.RootDir, info.Root)
	assert.Equal(t, len(set), info.Entries)

	_, hasRoot := set[f.RootDir]
	assert.False(t, hasRoot, "root itself is never a candidate")

	assert.Equal(t, model.KindFile, set[f.Path("docs/report.pdf")])
	assert.Equal(t, model.KindFolder, set[f.Path("docs/old")])
	assert.Equal(t, model.KindFolder, set[f.Path("empty")])
	assert.Equal(t, model.KindFile, set[f.Path("photos/.DS_Store")])
	assert.Len(t, set, 13)
}

func TestScanRecordsSymlinkWithoutFollowing(t *testing.T) {
	testutil.SkipOnWindows(t)
	f := testutil.NewFixture(t)
	target := f.CreateDir("real")
	f.CreateFile("real/inside.txt", []byte("x"))
	f.CreateSymlink(target, "link")
	f.CreateSymlink(f.RootDir, "loop")
	f.CreateBrokenSymlink("broken")

	set, _, err := New(nil).Scan(context.Background(), f.RootDir, true)
	require.NoError(t, err)

	assert.Equal(t, model.KindFile, set[f.Path("link")])
	assert.Equal(t, model.KindFile, set[f.Path("loop")])
	assert.Equal(t, model.KindFile, set[f.Path("broken")])
	assert.NotContains(t, set, f.Path("link/inside.txt"))
	assert.Contains(t, set, f.Path("real/inside.txt"))
}

func TestScanSkipsUnreadableDirectory(t *testing.T) {
	testutil.SkipOnWindows(t)
	testutil.SkipIfRoot(t)

	f := testutil.NewFixture(t)
	f.CreateFile("ok.txt", []byte("ok"))
	locked := f.CreateUnreadableDir("locked")

	set, info, err := New(nil).Scan(context.Background(), f.RootDir, true)
	require.NoError(t, err)

	assert.Contains(t, set, f.Path("ok.txt"))
	assert.Contains(t, set, locked)
	assert.NotContains(t, set, filepath.Join(locked, "hidden.txt"))
	assert.Equal(t, 1, info.Skipped)
}

func TestScanServesFromCacheWithoutTouchingDisk(t *testing.T) {
	f := testutil.NewFixture(t)
	f.PopulateSearchTree()
	s := New(newStore(t))

	_, _, err := s.Scan(context.Background(), f.RootDir, false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(f.Path("src/util.go")))

	set, info, err := s.Scan(context.Background(), f.RootDir, false)
	require.NoError(t, err)
	assert.True(t, info.FromCache)
	assert.False(t, info.Narrowed)
	assert.Equal(t, f.RootDir, info.CacheKey)
	assert.Contains(t, set, f.Path("src/util.go"), "cached snapshot is returned as stored")

	fresh, info, err := s.Scan(context.Background(), f.RootDir, true)
	require.NoError(t, err)
	assert.False(t, info.FromCache)
	assert.NotContains(t, fresh, f.Path("src/util.go"))

	again, info, err := s.Scan(context.Background(), f.RootDir, false)
	require.NoError(t, err)
	assert.True(t, info.FromCache)
	assert.NotContains(t, again, f.Path("src/util.go"), "forced scan refreshes the cache")
}

func TestScanNarrowsAncestorCache(t *testing.T) {
	f := testutil.NewFixture(t)
	f.PopulateSearchTree()
	store := newStore(t)
	s := New(store)

	_, _, err := s.Scan(context.Background(), f.RootDir, false)
	require.NoError(t, err)

	// A new file would appear in a walk but not in the reused cache.
	f.CreateFile("docs/new.txt", []byte("new"))

	docs := f.Path("docs")
	set, info, err := s.Scan(context.Background(), docs, false)
	require.NoError(t, err)

	assert.True(t, info.FromCache)
	assert.True(t, info.Narrowed)
	assert.Equal(t, f.RootDir, info.CacheKey)
	assert.Equal(t,
		[]string{"docs/notes.txt", "docs/old", "docs/old/draft.txt", "docs/report.pdf"},
		f.RelPaths(set.Paths()))
	assert.NotContains(t, set, docs)
	assert.NotContains(t, set, f.Path("docs/new.txt"))

	assert.True(t, store.Exists(docs), "narrowed set is persisted under its own key")

	_, info, err = s.Scan(context.Background(), docs, false)
	require.NoError(t, err)
	assert.Equal(t, docs, info.CacheKey, "the deeper inherited cache is preferred")
}

func TestScanWithoutStore(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("a.txt", []byte("a"))

	set, info, err := New(nil).Scan(context.Background(), f.RootDir, false)
	require.NoError(t, err)
	assert.False(t, info.FromCache)
	assert.Empty(t, info.CacheKey)
	assert.Len(t, set, 1)
}

func TestScanRejectsNonDirectory(t *testing.T) {
	f := testutil.NewFixture(t)
	file := f.CreateFile("a.txt", []byte("a"))

	_, _, err := New(nil).Scan(context.Background(), file, false)
	assert.True(t, errors.Is(err, ErrNotDirectory))

	_, _, err = New(nil).Scan(context.Background(), f.Path("missing"), false)
	assert.Error(t, err)
}

func TestScanCancelled(t *testing.T) {
	f := testutil.NewFixture(t)
	f.PopulateSearchTree()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(newStore(t)).Scan(ctx, f.RootDir, true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanEmitsProgress(t *testing.T) {
	f := testutil.NewFixture(t)
	f.PopulateSearchTree()

	var phases []progress.Phase
	ctx := progress.WithEmitter(context.Background(), progress.EmitterFunc(func(e progress.Event) {
		phases = append(phases, e.Phase)
	}))

	_, _, err := New(newStore(t), WithBatchSize(2)).Scan(ctx, f.RootDir, false)
	require.NoError(t, err)

	require.NotEmpty(t, phases)
	assert.Equal(t, progress.PhaseScanning, phases[0])
	assert.Equal(t, progress.PhaseCaching, phases[len(phases)-1])
}

func TestStreamBatches(t *testing.T) {
	f := testutil.NewFixture(t)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		f.CreateFile(name, []byte(name))
	}

	s := New(nil, WithBatchSize(2))
	var batches []*Batch
	for b := range s.Stream(context.Background(), f.RootDir) {
		batches = append(batches, b)
	}

	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Records, 2)
	assert.Len(t, batches[1].Records, 2)
	assert.Len(t, batches[2].Records, 1)
	assert.True(t, batches[2].Final)
	for _, b := range batches[:2] {
		assert.False(t, b.Final)
	}
}

func TestCollectAllReportsWalkError(t *testing.T) {
	ch := make(chan *Batch, 2)
	ch <- &Batch{Records: []model.FileRecord{{Path: "/x", Kind: model.KindFile}}}
	ch <- &Batch{Error: errors.New("boom"), Final: true}
	close(ch)

	_, _, err := CollectAll(context.Background(), ch, nil)
	assert.EqualError(t, err, "boom")
}

func TestScanConcurrentWalksAgree(t *testing.T) {
	f := testutil.NewFixture(t)
	f.PopulateSearchTree()

	s := New(nil)
	const n = 4
	sets := make([]model.CandidateSet, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sets[i], _, errs[i] = s.Scan(context.Background(), f.RootDir, true)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, sets[0], sets[i])
	}
}

func TestScanJoinedWalkReceivesCounts(t *testing.T) {
	f := testutil.NewFixture(t)
	f.PopulateSearchTree()
	s := New(nil, WithBatchSize(1))

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	leaderCtx := progress.WithEmitter(context.Background(), progress.EmitterFunc(func(e progress.Event) {
		if e.Phase == progress.PhaseScanning && e.Count > 0 {
			once.Do(func() {
				close(started)
				<-release
			})
		}
	}))

	var mu sync.Mutex
	var counts []int
	followerCtx := progress.WithEmitter(context.Background(), progress.EmitterFunc(func(e progress.Event) {
		if e.Phase == progress.PhaseScanning && e.Count > 0 {
			mu.Lock()
			counts = append(counts, e.Count)
			mu.Unlock()
		}
	}))

	var wg sync.WaitGroup
	var leaderSet, followerSet model.CandidateSet
	var leaderErr, followerErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		leaderSet, _, leaderErr = s.Scan(leaderCtx, f.RootDir, true)
	}()
	<-started
	go func() {
		defer wg.Done()
		followerSet, _, followerErr = s.Scan(followerCtx, f.RootDir, true)
	}()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.watchers[f.RootDir]) == 2
	}, 5*time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, leaderErr)
	require.NoError(t, followerErr)
	assert.Equal(t, leaderSet, followerSet)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, counts, "a caller joining a running walk still sees its counts")
	assert.Equal(t, len(followerSet), counts[len(counts)-1])

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.watchers, "finished walks leave no watchers behind")
}
