// Package scanner is the traversal engine: it produces the raw candidate set
// for a directory, from the cache when one is usable and from a full walk
// otherwise.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fenilsonani/filesearch/internal/cache"
	"github.com/fenilsonani/filesearch/internal/logger"
	"github.com/fenilsonani/filesearch/internal/model"
	"github.com/fenilsonani/filesearch/internal/pathutil"
	"github.com/fenilsonani/filesearch/internal/progress"
)

// Scanner walks directory trees. It is safe for concurrent use.
type Scanner struct {
	cache     *cache.Store
	logger    *zap.Logger
	batchSize int
	walks     singleflight.Group

	mu       sync.Mutex
	watchers map[string][]*watcher
}

// watcher receives the count events of any walk of one root.
type watcher struct {
	emit progress.Emitter
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the scanner's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithBatchSize sets how many records a streaming walk groups per batch.
func WithBatchSize(n int) Option {
	return func(s *Scanner) { s.batchSize = n }
}

// New creates a Scanner. A nil store disables caching.
func New(store *cache.Store, opts ...Option) *Scanner {
	s := &Scanner{
		cache:     store,
		logger:    logger.Named("scanner"),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns every file and folder beneath dir, excluding dir itself.
//
// Unless forceFresh is set, a cache of dir or of one of its ancestors is
// used without touching the filesystem. A set reused from an ancestor is
// persisted under dir's own key. A fresh walk is always persisted.
func (s *Scanner) Scan(ctx context.Context, dir string, forceFresh bool) (model.CandidateSet, ScanInfo, error) {
	start := time.Now()
	emit := progress.FromContext(ctx)

	if err := ctx.Err(); err != nil {
		return nil, ScanInfo{}, err
	}

	root, err := resolveRoot(dir)
	if err != nil {
		return nil, ScanInfo{}, err
	}
	info := ScanInfo{Root: root}
	emit.Emit(progress.Event{Phase: progress.PhaseScanning, Detail: root})

	if !forceFresh && s.cache != nil {
		set, ok := s.fromCache(ctx, root, &info)
		if ok {
			info.Entries = len(set)
			info.Duration = time.Since(start)
			return set, info, nil
		}
	}

	set, skipped, err := s.walk(ctx, root)
	if err != nil {
		return nil, ScanInfo{}, err
	}

	info.Created = time.Now()
	info.Entries = len(set)
	info.Skipped = skipped

	if s.cache != nil {
		emit.Emit(progress.Event{Phase: progress.PhaseCaching, Detail: root, Count: len(set)})
		if err := s.cache.Store(root, set, nil); err != nil {
			s.logger.Warn("failed to cache scan result", zap.String("dir", root), zap.Error(err))
		} else {
			info.CacheKey = root
		}
	}

	s.logger.Debug("fresh scan complete",
		zap.String("dir", root),
		zap.Int("entries", len(set)),
		zap.Int("skipped", skipped),
		zap.Duration("elapsed", time.Since(start)))

	info.Duration = time.Since(start)
	return set, info, nil
}

type walkResult struct {
	set     model.CandidateSet
	skipped int
}

// walk collects root from disk. Concurrent walks of the same root share
// one traversal; callers other than the leader get their own copy. Every
// caller waiting on the traversal receives its count events, including
// one that joins after counting started.
func (s *Scanner) walk(ctx context.Context, root string) (model.CandidateSet, int, error) {
	unwatch := s.watch(root, progress.FromContext(ctx))
	defer unwatch()

	collect := func() (model.CandidateSet, int, error) {
		return CollectAll(ctx, s.Stream(ctx, root), func(found int) {
			s.broadcast(root, progress.Event{Phase: progress.PhaseScanning, Detail: root, Count: found})
		})
	}

	v, err, shared := s.walks.Do(root, func() (any, error) {
		set, skipped, err := collect()
		return walkResult{set: set, skipped: skipped}, err
	})
	if err != nil {
		if shared && ctx.Err() == nil {
			// the leader was cancelled, not us
			return collect()
		}
		return nil, 0, err
	}

	r := v.(walkResult)
	if shared {
		return r.set.Clone(), r.skipped, nil
	}
	return r.set, r.skipped, nil
}

// watch subscribes emit to walks of root until the returned func is called.
func (s *Scanner) watch(root string, emit progress.Emitter) func() {
	w := &watcher{emit: emit}
	s.mu.Lock()
	if s.watchers == nil {
		s.watchers = make(map[string][]*watcher)
	}
	s.watchers[root] = append(s.watchers[root], w)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		ws := s.watchers[root]
		for i, other := range ws {
			if other == w {
				ws = append(ws[:i:i], ws[i+1:]...)
				break
			}
		}
		if len(ws) == 0 {
			delete(s.watchers, root)
			return
		}
		s.watchers[root] = ws
	}
}

func (s *Scanner) broadcast(root string, e progress.Event) {
	s.mu.Lock()
	ws := s.watchers[root]
	s.mu.Unlock()
	for _, w := range ws {
		w.emit.Emit(e)
	}
}

// fromCache serves root from the best usable cache.
func (s *Scanner) fromCache(ctx context.Context, root string, info *ScanInfo) (model.CandidateSet, bool) {
	hit, err := s.cache.LookupBest(root)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache lookup failed", zap.String("dir", root), zap.Error(err))
		}
		return nil, false
	}

	info.FromCache = true
	info.Narrowed = hit.Narrowed
	info.CacheKey = hit.Key
	info.Created = hit.Meta.CreatedTime()

	if hit.Narrowed {
		progress.FromContext(ctx).Emit(progress.Event{
			Phase: progress.PhaseCaching, Detail: root, Count: len(hit.Set),
		})
		origin := hit.Meta
		if err := s.cache.Store(root, hit.Set, &origin); err != nil {
			s.logger.Warn("failed to persist narrowed cache", zap.String("dir", root), zap.Error(err))
		}
	}
	return hit.Set, true
}

// Stream walks root and sends its entries in batches. The channel is closed
// after the final batch. Symlinks are recorded as files and never followed.
func (s *Scanner) Stream(ctx context.Context, root string) <-chan *Batch {
	batches := make(chan *Batch, ChannelBufferSize)

	go func() {
		defer close(batches)
		collector := NewBatchCollector(ctx, s.batchSize, batches)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				// Permission denied or vanished - skip and continue
				s.logger.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
				collector.Skip()
				return nil
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if path == root {
				return nil
			}

			kind := model.KindFile
			if d.IsDir() {
				kind = model.KindFolder
			}
			return collector.Add(model.FileRecord{Path: path, Kind: kind})
		})

		if err != nil {
			collector.SendError(err)
			return
		}
		collector.Finalize()
	}()

	return batches
}

// resolveRoot canonicalizes dir and checks it is a directory. A symlinked
// root is resolved so the walk has a real tree to descend.
func resolveRoot(dir string) (string, error) {
	root, err := pathutil.Canonical(dir)
	if err != nil {
		return "", err
	}

	lst, err := os.Lstat(root)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if lst.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", root, err)
		}
		root = resolved
		if lst, err = os.Stat(root); err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", root, err)
		}
	}
	if !lst.IsDir() {
		return "", fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}
	return root, nil
}
