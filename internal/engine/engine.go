// Package engine runs searches, duplicate detection and comparisons on top
// of the scanner, filter pipeline and cache, and keeps the cache in step
// with files the caller moves or deletes.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fenilsonani/filesearch/internal/cache"
	"github.com/fenilsonani/filesearch/internal/compare"
	"github.com/fenilsonani/filesearch/internal/config"
	"github.com/fenilsonani/filesearch/internal/duplicates"
	"github.com/fenilsonani/filesearch/internal/filter"
	"github.com/fenilsonani/filesearch/internal/logger"
	"github.com/fenilsonani/filesearch/internal/model"
	"github.com/fenilsonani/filesearch/internal/pathutil"
	"github.com/fenilsonani/filesearch/internal/platform"
	"github.com/fenilsonani/filesearch/internal/progress"
	"github.com/fenilsonani/filesearch/internal/scanner"
	"github.com/fenilsonani/filesearch/internal/sorter"
)

// Engine holds the components shared by every session. It keeps no
// per-search state and is safe for concurrent use.
type Engine struct {
	cache    *cache.Store
	scanner  *scanner.Scanner
	pipeline *filter.Pipeline
	finder   *duplicates.Finder
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger      *zap.Logger
	now         func() time.Time
	dupeOptions []duplicates.Option
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithClock sets the time source used for date filters.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// WithDuplicateOptions configures the duplicate finder.
func WithDuplicateOptions(opts ...duplicates.Option) Option {
	return func(o *engineOptions) { o.dupeOptions = append(o.dupeOptions, opts...) }
}

// New creates an Engine. A nil store disables caching.
func New(store *cache.Store, info *platform.Info, opts ...Option) *Engine {
	o := engineOptions{
		logger: logger.Named("engine"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Engine{
		cache:    store,
		scanner:  scanner.New(store),
		pipeline: filter.New(info, filter.WithClock(o.now)),
		finder:   duplicates.New(o.dupeOptions...),
		logger:   o.logger,
	}
}

// Search validates spec, then scans dir, filters and sorts the result.
// Validation failures are returned before anything is read from disk.
func (e *Engine) Search(ctx context.Context, dir string, spec filter.Spec) (*model.SearchResult, error) {
	if err := e.pipeline.Validate(spec, dir); err != nil {
		return nil, err
	}
	emit := progress.FromContext(ctx)
	log := logger.FromContext(ctx)

	var timings model.Timings

	start := time.Now()
	set, info, err := e.scanner.Scan(ctx, dir, spec.NewCacheFile)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	timings.Scan = time.Since(start)

	start = time.Now()
	filtered, err := e.pipeline.Apply(ctx, set, spec, info.Root)
	if err != nil {
		return nil, fmt.Errorf("filter failed: %w", err)
	}
	timings.Filter = time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	emit.Emit(progress.Event{Phase: progress.PhaseSorting, Detail: string(spec.Sort), Count: len(filtered)})
	paths := sorter.Sort(filtered.Paths(), spec.Sort, spec.Reverse)
	timings.Sort = time.Since(start)

	raw, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}

	log.Debug("search complete",
		zap.String("dir", info.Root),
		zap.Bool("from_cache", info.FromCache),
		zap.Int("scanned", info.Entries),
		zap.Int("results", len(paths)),
		zap.Duration("scan", timings.Scan),
		zap.Duration("filter", timings.Filter),
		zap.Duration("sort", timings.Sort))

	return &model.SearchResult{
		Directory: info.Root,
		Paths:     paths,
		Kinds:     filtered,
		Marked:    make(map[string]bool),
		Timings:   timings,
		FromCache: info.FromCache,
		Scanned:   info.Entries,
		Filter:    raw,
	}, nil
}

// Duplicates groups paths by criteria.
func (e *Engine) Duplicates(ctx context.Context, paths []string, c duplicates.Criteria) (*duplicates.Result, error) {
	return e.finder.Find(ctx, paths, c)
}

// Compare compares two results.
func (e *Engine) Compare(a, b *model.SearchResult) *CompareResult {
	onlyA, onlyB := compare.Compare(a.Paths, b.Paths)
	return &CompareResult{DirA: a.Directory, DirB: b.Directory, OnlyA: onlyA, OnlyB: onlyB}
}

// CompareResult is the difference between two searches.
type CompareResult struct {
	DirA  string   `json:"dir_a"`
	DirB  string   `json:"dir_b"`
	OnlyA []string `json:"only_a"`
	OnlyB []string `json:"only_b"`
}

// Reload re-checks every path of result against the filesystem. Vanished
// paths are dropped from a copy of result and from the cache; the copy and
// the removed paths are returned.
func (e *Engine) Reload(ctx context.Context, result *model.SearchResult) (*model.SearchResult, []string, error) {
	kept, removed, err := existing(ctx, result.Paths)
	if err != nil {
		return nil, nil, err
	}

	out := *result
	out.Paths = kept
	out.Kinds = model.NewCandidateSet(len(kept))
	out.Marked = make(map[string]bool)
	for _, p := range kept {
		out.Kinds.Add(p, result.KindOf(p))
		if result.Marked[p] {
			out.Marked[p] = true
		}
	}

	if len(removed) > 0 {
		if err := e.NotifyRemoved(result.Directory, removed...); err != nil {
			e.logger.Warn("failed to invalidate removed paths", zap.String("dir", result.Directory), zap.Error(err))
		}
	}
	return &out, removed, nil
}

// NotifyRemoved tells the engine paths under dir were moved or deleted by
// the caller, so no cache serves them again.
func (e *Engine) NotifyRemoved(dir string, paths ...string) error {
	if e.cache == nil {
		return nil
	}

	var err error
	for _, p := range paths {
		err = multierr.Append(err, e.cache.InvalidatePath(dir, p))
	}
	return err
}

// OpenSaved rebuilds a search result from a saved search. When no cache
// exists for its directory, one is regenerated from the saved paths.
func (e *Engine) OpenSaved(s *config.SavedSearch) (*model.SearchResult, error) {
	result := s.Result()

	dir, err := pathutil.Canonical(s.Directory)
	if err != nil {
		dir = s.Directory
	}
	result.Directory = dir

	result.Kinds = model.NewCandidateSet(len(result.Paths))
	for _, p := range result.Paths {
		info, err := os.Lstat(p)
		if err != nil {
			continue
		}
		kind := model.KindFile
		if info.IsDir() {
			kind = model.KindFolder
		}
		result.Kinds.Add(p, kind)
	}

	if e.cache != nil && !e.cache.Exists(dir) {
		if err := e.cache.Store(dir, result.Kinds, nil); err != nil {
			e.logger.Warn("failed to regenerate cache", zap.String("dir", dir), zap.Error(err))
		} else {
			e.logger.Debug("regenerated cache from saved search",
				zap.String("dir", dir), zap.Int("entries", len(result.Kinds)))
		}
	}
	return result, nil
}

// existing splits paths into those still present and those gone.
func existing(ctx context.Context, paths []string) (kept, removed []string, err error) {
	kept = make([]string, 0, len(paths))
	for i, p := range paths {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		if _, err := os.Lstat(p); err != nil {
			removed = append(removed, p)
			continue
		}
		kept = append(kept, p)
	}
	return kept, removed, nil
}
