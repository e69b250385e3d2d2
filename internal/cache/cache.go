// Package cache persists the unfiltered traversal result of every searched
// directory so later searches of the same directory, or of any directory
// beneath it, can skip the filesystem walk.
//
// Each cache key (the canonical searched directory) owns two files: the
// entry, holding the kind-tagged path collection, and a small metadata
// record used to choose between caches without decoding large entries.
// They live in separate directories. Every mutation holds a per-key file
// lock and writes through a temp file and rename.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/fenilsonani/filesearch/internal/filelock"
	"github.com/fenilsonani/filesearch/internal/logger"
	"github.com/fenilsonani/filesearch/internal/model"
	"github.com/fenilsonani/filesearch/internal/pathutil"
)

// FormatVersion is written into every entry and metadata file. Files with a
// different version are treated as missing.
const FormatVersion = 2

// depthTick is added per extra path segment when a narrower cache inherits
// an ancestor's timestamp, so the deeper cache wins ties.
const depthTick = 1e-6

var (
	// ErrCacheMiss is returned when no usable cache exists.
	ErrCacheMiss = errors.New("cache miss")
	// ErrVersion marks a cache file written by another format version.
	ErrVersion = errors.New("unsupported cache format version")
)

// Metadata is the lightweight freshness record stored beside each entry.
type Metadata struct {
	Created       float64 `json:"created"` // epoch seconds
	FormatVersion int     `json:"format_version"`
	CacheKey      string  `json:"cache_key"`
}

// CreatedTime converts Created to a time.Time.
func (m Metadata) CreatedTime() time.Time {
	sec := int64(m.Created)
	nsec := int64((m.Created - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Age returns how long ago the cache was created relative to now.
func (m Metadata) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedTime())
}

type entryFile struct {
	FormatVersion int               `json:"format_version"`
	Paths         []string          `json:"paths"`
	Kinds         []model.EntryKind `json:"kinds"`
}

// Hit is a usable cache returned by LookupBest.
type Hit struct {
	Key  string
	Set  model.CandidateSet
	Meta Metadata

	// Narrowed is true when Key is a strict ancestor of the searched
	// directory and Set was reduced to that directory's descendants.
	Narrowed bool
}

// Store manages the on-disk cache directory.
type Store struct {
	entriesDir string
	metaDir    string
	locksDir   string
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides time.Now; tests use it to control timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store rooted at dir.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		entriesDir: filepath.Join(dir, "entries"),
		metaDir:    filepath.Join(dir, "meta"),
		locksDir:   filepath.Join(dir, "locks"),
		logger:     logger.Named("cache"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, d := range []string{s.entriesDir, s.metaDir, s.locksDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	return s, nil
}

// FileName maps a cache key to its file name: a readable tail of the path
// plus a hash of the full key so distinct directories never collide.
func FileName(key string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, key)
	sanitized = strings.Trim(sanitized, "_")
	if len(sanitized) > 48 {
		sanitized = sanitized[len(sanitized)-48:]
	}
	if sanitized == "" {
		sanitized = "root"
	}
	return fmt.Sprintf("%s-%016x.json", sanitized, xxhash.Sum64String(key))
}

func (s *Store) entryPath(key string) string {
	return filepath.Join(s.entriesDir, FileName(key))
}

func (s *Store) metaPath(key string) string {
	return filepath.Join(s.metaDir, FileName(key))
}

func (s *Store) lockPath(key string) string {
	return filepath.Join(s.locksDir, strings.TrimSuffix(FileName(key), ".json")+".lock")
}

func nowSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// LookupBest returns the most recently created cache usable for dir: the
// cache of dir itself or of any ancestor directory. Ties prefer the deeper
// key, then the lexicographically smaller one. An ancestor's set is narrowed
// to the strict descendants of dir.
func (s *Store) LookupBest(dir string) (*Hit, error) {
	dir = filepath.Clean(dir)

	metas, err := s.Keys()
	if err != nil {
		return nil, err
	}

	usable := metas[:0]
	for _, m := range metas {
		if pathutil.IsWithin(m.CacheKey, dir) {
			usable = append(usable, m)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool {
		a, b := usable[i], usable[j]
		if a.Created != b.Created {
			return a.Created > b.Created
		}
		if da, db := pathutil.Depth(a.CacheKey), pathutil.Depth(b.CacheKey); da != db {
			return da > db
		}
		return a.CacheKey < b.CacheKey
	})

	for _, m := range usable {
		set, err := s.load(m.CacheKey)
		if err != nil {
			s.logger.Debug("skipping unreadable cache",
				zap.String("key", m.CacheKey), zap.Error(err))
			continue
		}

		hit := &Hit{Key: m.CacheKey, Set: set, Meta: m}
		if m.CacheKey != dir {
			hit.Set = narrow(set, dir)
			hit.Narrowed = true
		} else {
			delete(hit.Set, dir)
		}
		s.logger.Debug("cache hit",
			zap.String("dir", dir),
			zap.String("key", m.CacheKey),
			zap.Bool("narrowed", hit.Narrowed),
			zap.Int("entries", len(hit.Set)))
		return hit, nil
	}

	return nil, ErrCacheMiss
}

// narrow keeps the strict descendants of dir.
func narrow(set model.CandidateSet, dir string) model.CandidateSet {
	out := make(model.CandidateSet)
	for p, k := range set {
		if pathutil.IsStrictDescendant(dir, p) {
			out[p] = k
		}
	}
	return out
}

// Load reads the entry stored under key exactly.
func (s *Store) Load(key string) (model.CandidateSet, Metadata, error) {
	key = filepath.Clean(key)
	meta, err := s.readMeta(s.metaPath(key))
	if err != nil {
		return nil, Metadata{}, err
	}
	set, err := s.load(key)
	if err != nil {
		return nil, Metadata{}, err
	}
	return set, meta, nil
}

func (s *Store) load(key string) (model.CandidateSet, error) {
	var set model.CandidateSet
	err := filelock.WithLock(s.lockPath(key), func() error {
		var err error
		set, err = readEntry(s.entryPath(key))
		return err
	})
	return set, err
}

func readEntry(path string) (model.CandidateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var ef entryFile
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("failed to parse cache entry: %w", err)
	}
	if ef.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, ef.FormatVersion)
	}
	if len(ef.Paths) != len(ef.Kinds) {
		return nil, fmt.Errorf("corrupt cache entry: %d paths, %d kinds", len(ef.Paths), len(ef.Kinds))
	}

	set := model.NewCandidateSet(len(ef.Paths))
	for i, p := range ef.Paths {
		set[p] = ef.Kinds[i]
	}
	return set, nil
}

func (s *Store) readMeta(path string) (Metadata, error) {
	var m Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, ErrCacheMiss
		}
		return m, fmt.Errorf("failed to read cache metadata: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to parse cache metadata: %w", err)
	}
	if m.FormatVersion != FormatVersion {
		return m, fmt.Errorf("%w: %d", ErrVersion, m.FormatVersion)
	}
	if m.CacheKey == "" {
		return m, fmt.Errorf("corrupt cache metadata: empty key")
	}
	return m, nil
}

// Store writes set as the cache for dir. When origin is non-nil the data was
// narrowed from that ancestor cache, and the new metadata inherits its
// creation time plus a small depth-proportional offset.
func (s *Store) Store(dir string, set model.CandidateSet, origin *Metadata) error {
	dir = filepath.Clean(dir)

	created := nowSeconds(s.now())
	if origin != nil {
		extra := pathutil.Depth(dir) - pathutil.Depth(origin.CacheKey)
		if extra < 1 {
			extra = 1
		}
		created = origin.Created + float64(extra)*depthTick
	}

	meta := Metadata{
		Created:       created,
		FormatVersion: FormatVersion,
		CacheKey:      dir,
	}

	return filelock.WithLock(s.lockPath(dir), func() error {
		return s.write(dir, set, meta)
	})
}

func (s *Store) write(key string, set model.CandidateSet, meta Metadata) error {
	records := set.Records()
	ef := entryFile{
		FormatVersion: FormatVersion,
		Paths:         make([]string, len(records)),
		Kinds:         make([]model.EntryKind, len(records)),
	}
	for i, r := range records {
		ef.Paths[i] = r.Path
		ef.Kinds[i] = r.Kind
	}

	data, err := json.Marshal(ef)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := filelock.AtomicWrite(s.entryPath(key), data); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	// Metadata goes last: a reader that finds it can rely on the entry.
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal cache metadata: %w", err)
	}
	if err := filelock.AtomicWrite(s.metaPath(key), metaData); err != nil {
		return fmt.Errorf("failed to write cache metadata: %w", err)
	}

	s.logger.Debug("cache stored",
		zap.String("key", key),
		zap.Int("entries", len(records)),
		zap.Time("created", meta.CreatedTime()))
	return nil
}

// InvalidatePath removes path, and everything beneath it, from every cache
// that can contain it: the cache for dir, its ancestors, and any cache
// between them. Caches rooted at or under path are deleted outright.
func (s *Store) InvalidatePath(dir, path string) error {
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)

	metas, err := s.Keys()
	if err != nil {
		return err
	}

	var errs []error
	for _, m := range metas {
		switch {
		case pathutil.IsWithin(path, m.CacheKey):
			if err := s.remove(m.CacheKey); err != nil {
				errs = append(errs, err)
			}
		case pathutil.IsStrictDescendant(m.CacheKey, path):
			if err := s.dropFrom(m, path); err != nil {
				errs = append(errs, err)
			}
		}
	}

	s.logger.Debug("cache invalidated",
		zap.String("dir", dir),
		zap.String("path", path))
	return errors.Join(errs...)
}

func (s *Store) dropFrom(meta Metadata, path string) error {
	return filelock.WithLock(s.lockPath(meta.CacheKey), func() error {
		set, err := readEntry(s.entryPath(meta.CacheKey))
		if err != nil {
			if errors.Is(err, ErrCacheMiss) {
				return nil
			}
			return err
		}

		removed := 0
		for p := range set {
			if pathutil.IsWithin(path, p) {
				delete(set, p)
				removed++
			}
		}
		if removed == 0 {
			return nil
		}
		return s.write(meta.CacheKey, set, meta)
	})
}

func (s *Store) remove(key string) error {
	return filelock.WithLock(s.lockPath(key), func() error {
		var errs []error
		for _, p := range []string{s.metaPath(key), s.entryPath(key)} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Keys returns the metadata of every readable cache.
func (s *Store) Keys() ([]Metadata, error) {
	entries, err := os.ReadDir(s.metaDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list cache metadata: %w", err)
	}

	metas := make([]Metadata, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		m, err := s.readMeta(filepath.Join(s.metaDir, e.Name()))
		if err != nil {
			s.logger.Debug("skipping cache metadata",
				zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		metas = append(metas, m)
	}
	return metas, nil
}

// Exists reports whether a cache is stored under dir exactly.
func (s *Store) Exists(dir string) bool {
	_, err := s.readMeta(s.metaPath(filepath.Clean(dir)))
	return err == nil
}

// ClearAll deletes every cache entry and metadata file.
func (s *Store) ClearAll() error {
	var errs []error
	for _, d := range []string{s.entriesDir, s.metaDir} {
		entries, err := os.ReadDir(d)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(d, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	s.logger.Info("cache cleared")
	return nil
}

// Prune removes caches older than maxAge and returns how many were removed.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	metas, err := s.Keys()
	if err != nil {
		return 0, err
	}

	now := s.now()
	removed := 0
	var errs []error
	for _, m := range metas {
		if m.Age(now) <= maxAge {
			continue
		}
		if err := s.remove(m.CacheKey); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
