// Package duplicates groups paths that look alike by name, size or content.
//
// Every active criterion partitions the groups of the previous one, in the
// order name, size, content. Name and size grouping are greedy: each path
// joins the closest group seen so far or starts a new one, so the input is
// sorted first to make the outcome reproducible.
package duplicates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/filesearch/internal/logger"
	"github.com/fenilsonani/filesearch/internal/progress"
	"github.com/fenilsonani/filesearch/internal/similarity"
	"github.com/fenilsonani/filesearch/internal/sorter"
	"github.com/fenilsonani/filesearch/pkg/utils"
)

var (
	// ErrFuzzyContent is returned for content matching below 100 percent.
	ErrFuzzyContent = errors.New("fuzzy content matching is not supported")

	// ErrNoCriteria is returned when no criterion is enabled.
	ErrNoCriteria = errors.New("no duplicate criteria enabled")
)

// ModeSetting enables one criterion with a match percentage; 100 is exact.
type ModeSetting struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Percent int  `json:"percent" yaml:"percent"`
}

// Exact returns an enabled 100 percent setting.
func Exact() ModeSetting {
	return ModeSetting{Enabled: true, Percent: 100}
}

// Fuzzy returns an enabled setting at percent.
func Fuzzy(percent int) ModeSetting {
	return ModeSetting{Enabled: true, Percent: percent}
}

func (m ModeSetting) exact() bool {
	return m.Percent >= 100
}

// Criteria selects how paths are compared.
type Criteria struct {
	Name    ModeSetting `json:"name" yaml:"name"`
	Size    ModeSetting `json:"size" yaml:"size"`
	Content ModeSetting `json:"content" yaml:"content"`
	Sort    sorter.Mode `json:"sort" yaml:"sort"`
	Reverse bool        `json:"reverse" yaml:"reverse"`
}

// Validate checks that c can be run.
func (c Criteria) Validate() error {
	if !c.Name.Enabled && !c.Size.Enabled && !c.Content.Enabled {
		return ErrNoCriteria
	}
	for label, m := range map[string]ModeSetting{"name": c.Name, "size": c.Size, "content": c.Content} {
		if m.Enabled && (m.Percent < 1 || m.Percent > 100) {
			return fmt.Errorf("%s match percentage must be between 1 and 100, got %d", label, m.Percent)
		}
	}
	if c.Content.Enabled && !c.Content.exact() {
		return ErrFuzzyContent
	}
	if _, err := sorter.ParseMode(string(c.Sort)); err != nil {
		return err
	}
	return nil
}

// Result holds the groups found.
type Result struct {
	// Groups maps a group key to its members; the representative is first.
	Groups map[string][]string `json:"groups"`

	// Representative maps a group key to a concrete member path.
	Representative map[string]string `json:"representative"`

	// Order lists the group keys by the sort mode of their representative.
	Order []string `json:"order"`

	// Skipped counts paths dropped because they could not be read.
	Skipped int `json:"skipped"`
}

// Len returns the number of groups.
func (r *Result) Len() int {
	return len(r.Groups)
}

// Members returns the number of paths across every group.
func (r *Result) Members() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g)
	}
	return n
}

// Finder runs duplicate detection. It is safe for concurrent use.
type Finder struct {
	logger     *zap.Logger
	workers    int
	hashBuffer int
	algorithms []utils.Algorithm
}

// Option configures a Finder.
type Option func(*Finder)

// WithLogger sets the finder's logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Finder) { f.logger = l }
}

// WithWorkers bounds how many files are hashed at once.
func WithWorkers(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithHashBuffer sets the read buffer size used while hashing.
func WithHashBuffer(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.hashBuffer = n
		}
	}
}

// WithAlgorithms sets the digests computed per file. With more than one,
// each algorithm runs as its own task and all must agree.
func WithAlgorithms(algs ...utils.Algorithm) Option {
	return func(f *Finder) {
		if len(algs) > 0 {
			f.algorithms = algs
		}
	}
}

// New creates a Finder.
func New(opts ...Option) *Finder {
	f := &Finder{
		logger:     logger.Named("duplicates"),
		workers:    runtime.NumCPU(),
		hashBuffer: utils.DefaultBufferSize,
		algorithms: []utils.Algorithm{utils.SHA256},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// group is a partition of candidate paths under construction.
type group struct {
	key     string
	members []string
}

// Find groups paths by c.
func (f *Finder) Find(ctx context.Context, paths []string, c Criteria) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	emit := progress.FromContext(ctx)

	candidates := dedupeSorted(paths)
	groups := []group{{members: candidates}}
	skipped := 0

	if c.Name.Enabled {
		emit.Emit(progress.Event{Phase: progress.PhaseGrouping, Detail: "name", Count: len(candidates)})
		groups = refine(groups, func(members []string) []group {
			return byName(members, c.Name)
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.Size.Enabled || c.Content.Enabled {
		size := c.Size
		if c.Content.Enabled {
			size = Exact()
		}
		emit.Emit(progress.Event{Phase: progress.PhaseGrouping, Detail: "size", Count: countMembers(groups)})

		sizes, n := f.sizes(ctx, groups)
		skipped += n
		groups = refine(groups, func(members []string) []group {
			return bySize(members, sizes, size)
		})
	}

	if c.Content.Enabled {
		digests, n, err := f.digests(ctx, groups)
		if err != nil {
			return nil, err
		}
		skipped += n
		emit.Emit(progress.Event{Phase: progress.PhaseGrouping, Detail: "content", Count: len(digests)})
		groups = refine(groups, func(members []string) []group {
			return byDigest(members, digests)
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return f.result(groups, c, skipped), nil
}

// result builds the public Result from the final partitions.
func (f *Finder) result(groups []group, c Criteria, skipped int) *Result {
	res := &Result{
		Groups:         make(map[string][]string),
		Representative: make(map[string]string),
		Skipped:        skipped,
	}

	byRep := make(map[string]string)
	reps := make([]string, 0, len(groups))
	for _, g := range groups {
		if len(g.members) < 2 {
			continue
		}
		members := g.members
		rep := members[0]
		key := g.key
		if c.Content.Enabled {
			i := firstFile(members)
			if i < 0 {
				continue
			}
			if i > 0 {
				members = withFirst(members, i)
			}
			rep = members[0]
			key = rep
		}
		res.Groups[key] = members
		res.Representative[key] = rep
		byRep[rep] = key
		reps = append(reps, rep)
	}

	for _, rep := range sorter.Sort(reps, c.Sort, c.Reverse) {
		res.Order = append(res.Order, byRep[rep])
	}
	return res
}

// firstFile returns the index of the first member that is not a folder, or
// -1 when every member is one.
func firstFile(members []string) int {
	for i, p := range members {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return i
		}
	}
	return -1
}

// withFirst returns a copy of members with members[i] moved to the front.
func withFirst(members []string, i int) []string {
	out := make([]string, 0, len(members))
	out = append(out, members[i])
	out = append(out, members[:i]...)
	return append(out, members[i+1:]...)
}

// refine splits every group with split and keeps the parts with at least two
// members. Keys are joined so they stay unique across parents.
func refine(groups []group, split func([]string) []group) []group {
	var out []group
	for _, g := range groups {
		if len(g.members) < 2 {
			continue
		}
		for _, sub := range split(g.members) {
			if len(sub.members) < 2 {
				continue
			}
			if g.key != "" {
				sub.key = g.key + "|" + sub.key
			}
			out = append(out, sub)
		}
	}
	return out
}

// byName groups by case-folded basename: exact equality at 100 percent,
// otherwise the closest representative by similarity ratio.
func byName(members []string, m ModeSetting) []group {
	var groups []group

	if m.exact() {
		index := make(map[string]int)
		for _, p := range members {
			name := similarity.Fold(filepath.Base(p), false)
			if i, ok := index[name]; ok {
				groups[i].members = append(groups[i].members, p)
				continue
			}
			index[name] = len(groups)
			groups = append(groups, group{key: "name:" + name, members: []string{p}})
		}
		return groups
	}

	threshold := similarity.Threshold(m.Percent)
	var reps []string
	for _, p := range members {
		name := similarity.Fold(filepath.Base(p), false)
		if i, ratio := similarity.Closest(name, reps); i >= 0 && ratio >= threshold {
			groups[i].members = append(groups[i].members, p)
			continue
		}
		reps = append(reps, name)
		groups = append(groups, group{key: "name:" + name, members: []string{p}})
	}
	return groups
}

// bySize groups by byte size. A fuzzy match joins the representative
// closest to the new size S when it lies within [S*t, S*(2-t)].
func bySize(members []string, sizes map[string]int64, m ModeSetting) []group {
	var groups []group
	var reps []int64

	if m.exact() {
		index := make(map[int64]int)
		for _, p := range members {
			s, ok := sizes[p]
			if !ok {
				continue
			}
			if i, ok := index[s]; ok {
				groups[i].members = append(groups[i].members, p)
				continue
			}
			index[s] = len(groups)
			groups = append(groups, group{key: "size:" + strconv.FormatInt(s, 10), members: []string{p}})
		}
		return groups
	}

	t := similarity.Threshold(m.Percent)
	for _, p := range members {
		s, ok := sizes[p]
		if !ok {
			continue
		}

		best, bestDiff := -1, int64(math.MaxInt64)
		for i, r := range reps {
			diff := r - s
			if diff < 0 {
				diff = -diff
			}
			if diff < bestDiff {
				best, bestDiff = i, diff
			}
		}
		if best >= 0 {
			r := float64(reps[best])
			if r >= float64(s)*t && r <= float64(s)*(2-t) {
				groups[best].members = append(groups[best].members, p)
				continue
			}
		}
		reps = append(reps, s)
		groups = append(groups, group{key: "size:" + strconv.FormatInt(s, 10), members: []string{p}})
	}
	return groups
}

// byDigest groups by exact digest equality.
func byDigest(members []string, digests map[string]string) []group {
	var groups []group
	index := make(map[string]int)
	for _, p := range members {
		d, ok := digests[p]
		if !ok {
			continue
		}
		if i, ok := index[d]; ok {
			groups[i].members = append(groups[i].members, p)
			continue
		}
		index[d] = len(groups)
		groups = append(groups, group{key: "content:" + d, members: []string{p}})
	}
	return groups
}

// sizes stats every member. A folder's size is the total of the regular
// files beneath it; folders without files are left out.
func (f *Finder) sizes(ctx context.Context, groups []group) (map[string]int64, int) {
	out := make(map[string]int64)
	skipped := 0
	for _, g := range groups {
		for _, p := range g.members {
			if ctx.Err() != nil {
				return out, skipped
			}
			s, err := sizeOf(p)
			if err != nil {
				f.logger.Debug("skipping unreadable path", zap.String("path", p), zap.Error(err))
				skipped++
				continue
			}
			out[p] = s
		}
	}
	return out, skipped
}

func sizeOf(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	files := 0
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files++
		total += fi.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if files == 0 {
		return 0, utils.ErrEmptyFolder
	}
	return total, nil
}

// digests hashes every member of every group, one task per path, bounded
// by the worker count. Unreadable paths are left out.
func (f *Finder) digests(ctx context.Context, groups []group) (map[string]string, int, error) {
	var paths []string
	for _, g := range groups {
		paths = append(paths, g.members...)
	}

	var (
		mu      sync.Mutex
		out     = make(map[string]string, len(paths))
		skipped int
		bytes   int64
	)

	emit := progress.FromContext(ctx)
	emit.Emit(progress.Event{Phase: progress.PhaseHashing, Count: len(paths)})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for _, p := range paths {
		g.Go(func() error {
			sum, err := utils.HashPathMulti(gctx, p, f.algorithms, f.hashBuffer)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				f.logger.Debug("skipping unhashable path", zap.String("path", p), zap.Error(err))
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			size, _ := sizeOf(p)

			mu.Lock()
			out[p] = sum
			bytes += size
			done, total := len(out), bytes
			mu.Unlock()

			emit.Emit(progress.Event{Phase: progress.PhaseHashing, Detail: p, Count: done, Bytes: total})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, skipped, err
	}
	return out, skipped, nil
}

func dedupeSorted(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func countMembers(groups []group) int {
	n := 0
	for _, g := range groups {
		n += len(g.members)
	}
	return n
}
