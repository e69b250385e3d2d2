package filter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fenilsonani/filesearch/internal/logger"
	"github.com/fenilsonani/filesearch/internal/model"
	"github.com/fenilsonani/filesearch/internal/pathutil"
	"github.com/fenilsonani/filesearch/internal/platform"
	"github.com/fenilsonani/filesearch/internal/progress"
	"github.com/fenilsonani/filesearch/internal/similarity"
	"github.com/fenilsonani/filesearch/pkg/utils"
)

const (
	// checkEvery is how many paths a stage handles between cancellation checks.
	checkEvery = 256

	// maxLineSize bounds one line of a content search.
	maxLineSize = 4 * 1024 * 1024
)

// Pipeline applies a Spec to candidate sets. It is safe for concurrent use.
type Pipeline struct {
	platform *platform.Info
	logger   *zap.Logger
	now      func() time.Time

	ctimeOnce sync.Once
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the clock that decides "today".
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline for the given platform.
func New(info *platform.Info, opts ...Option) *Pipeline {
	p := &Pipeline{
		platform: info,
		logger:   logger.Named("filter"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Today is the day unset upper date bounds resolve to.
func (p *Pipeline) Today() Date {
	return DateOf(p.now())
}

// Validate checks spec for a search of root.
func (p *Pipeline) Validate(spec Spec, root string) error {
	return Validate(spec, root, p.platform, p.Today())
}

// stage is one narrowing predicate. A stage whose verdict depends on the
// whole set builds its predicate from the surviving entries with prepare.
type stage struct {
	phase   progress.Phase
	keep    func(path string, kind model.EntryKind) bool
	prepare func(work model.CandidateSet) func(path string, kind model.EntryKind) bool
}

// Apply narrows set by every active stage of spec, in order, and returns a
// new set. set itself is not modified. root is the directory the set was
// scanned from.
func (p *Pipeline) Apply(ctx context.Context, set model.CandidateSet, spec Spec, root string) (model.CandidateSet, error) {
	stages, err := p.stages(spec, root)
	if err != nil {
		return nil, err
	}

	emit := progress.FromContext(ctx)
	work := set.Clone()

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emit.Emit(progress.Event{Phase: st.phase, Count: len(work)})

		keep := st.keep
		if st.prepare != nil {
			keep = st.prepare(work)
		}

		before := len(work)
		i := 0
		for path, kind := range work {
			i++
			if i%checkEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if !keep(path, kind) {
				delete(work, path)
			}
		}

		p.logger.Debug("stage applied",
			zap.String("phase", string(st.phase)),
			zap.Int("in", before),
			zap.Int("out", len(work)))
	}

	return work, nil
}

// stages builds the active stages of spec in their fixed order.
func (p *Pipeline) stages(spec Spec, root string) ([]stage, error) {
	var out []stage
	today := p.Today()

	if spec.NameActive() && spec.NameMode == NameFuzzy {
		out = append(out, stage{phase: progress.PhaseIndexingName, prepare: func(work model.CandidateSet) func(string, model.EntryKind) bool {
			return p.closestNames(work, spec)
		}})
	} else if spec.NameActive() {
		match, err := nameMatcher(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, stage{phase: progress.PhaseIndexingName, keep: func(path string, _ model.EntryKind) bool {
			return match(filepath.Base(path))
		}})
	}

	if spec.Extension != "" {
		suffix := "." + strings.ToLower(strings.TrimPrefix(spec.Extension, "."))
		out = append(out, stage{phase: progress.PhaseIndexingExtension, keep: func(path string, _ model.EntryKind) bool {
			return strings.HasSuffix(strings.ToLower(filepath.Base(path)), suffix)
		}})
	}

	if !spec.SystemFiles && p.platform != nil {
		out = append(out, stage{phase: progress.PhaseIndexingSystem, keep: func(path string, _ model.EntryKind) bool {
			_, system := p.platform.SystemRootFor(path)
			return !system
		}})
	}

	if (spec.Kind != "" && spec.Kind != KindBoth) || spec.MaxDepth > 0 {
		out = append(out, stage{phase: progress.PhaseIndexingKind, keep: func(path string, kind model.EntryKind) bool {
			switch {
			case spec.Kind == KindFiles && kind != model.KindFile:
				return false
			case spec.Kind == KindFolders && kind != model.KindFolder:
				return false
			}
			if spec.MaxDepth > 0 {
				return pathutil.RelDepth(root, path) <= spec.MaxDepth
			}
			return true
		}})
	}

	if spec.TypeFilter {
		types := newTypeMatcher(spec.TypeGroups, spec.CustomExtensions)
		out = append(out, stage{phase: progress.PhaseIndexingType, keep: func(path string, kind model.EntryKind) bool {
			return kind == model.KindFile && types.match(Extension(path))
		}})
	}

	if p.platform != nil {
		out = append(out, stage{phase: progress.PhaseIndexingJunk, keep: func(path string, _ model.EntryKind) bool {
			return !p.platform.IsJunk(filepath.Base(path))
		}})
	}

	if excluded := canonicalDirs(spec.ExcludedDirs); pathutil.AnyWithin(root, excluded) {
		out = append(out, stage{phase: progress.PhaseIndexingExcluded, keep: func(path string, _ model.EntryKind) bool {
			_, hit := pathutil.ContainedBy(path, excluded)
			return !hit
		}})
	}

	if spec.Created.Active(today) {
		r := spec.Created
		out = append(out, stage{phase: progress.PhaseIndexingCreated, keep: func(path string, _ model.EntryKind) bool {
			info, err := os.Stat(path)
			if err != nil {
				p.logger.Debug("dropping unreadable entry", zap.String("path", path), zap.Error(err))
				return false
			}
			created, exact := platform.CreationTime(info)
			if !exact {
				p.ctimeOnce.Do(func() {
					p.logger.Debug("creation time unavailable on this platform, using modification time")
				})
			}
			return r.Contains(created, today)
		}})
	}

	if spec.Modified.Active(today) {
		r := spec.Modified
		out = append(out, stage{phase: progress.PhaseIndexingModified, keep: func(path string, _ model.EntryKind) bool {
			info, err := os.Stat(path)
			if err != nil {
				p.logger.Debug("dropping unreadable entry", zap.String("path", path), zap.Error(err))
				return false
			}
			return r.Contains(info.ModTime(), today)
		}})
	}

	if spec.SizeMin != "" && spec.SizeMax != "" {
		lo, err := utils.ParseSize(spec.SizeMin)
		if err != nil {
			return nil, fmt.Errorf("minimum size: %w", err)
		}
		hi, err := utils.ParseSize(spec.SizeMax)
		if err != nil {
			return nil, fmt.Errorf("maximum size: %w", err)
		}
		out = append(out, stage{phase: progress.PhaseIndexingSize, keep: func(path string, kind model.EntryKind) bool {
			// a folder's stat size says nothing about its contents
			if kind != model.KindFile {
				return false
			}
			info, err := os.Stat(path)
			if err != nil {
				p.logger.Debug("dropping unreadable entry", zap.String("path", path), zap.Error(err))
				return false
			}
			return info.Size() >= lo && info.Size() <= hi
		}})
	}

	if spec.Content != "" {
		needle := []byte(spec.Content)
		out = append(out, stage{phase: progress.PhaseIndexingContent, keep: func(path string, kind model.EntryKind) bool {
			return kind == model.KindFile && p.containsText(path, needle)
		}})
	}

	return out, nil
}

// containsText reports whether some line of the file at path contains
// needle. Unreadable files and lines that are not UTF-8 are non-matches.
func (p *Pipeline) containsText(path string, needle []byte) bool {
	file, err := os.Open(path)
	if err != nil {
		p.logger.Debug("content search skipped", zap.String("path", path), zap.Error(err))
		return false
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		if !utf8.Valid(line) {
			return false
		}
		if bytes.Contains(line, needle) {
			return true
		}
	}
	if err := sc.Err(); err != nil {
		p.logger.Debug("content search failed", zap.String("path", path), zap.Error(err))
	}
	return false
}

// closestNames ranks the distinct basenames of work by similarity to the
// fuzzy pattern and keeps the entries whose basename made the cut.
func (p *Pipeline) closestNames(work model.CandidateSet, spec Spec) func(string, model.EntryKind) bool {
	fold := func(s string) string { return similarity.Fold(s, spec.CaseSensitive) }

	seen := make(map[string]struct{})
	var names []string
	for path := range work {
		name := fold(filepath.Base(path))
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	matches := similarity.CloseMatches(fold(spec.Name), names, similarity.Threshold(spec.FuzzyPercent), spec.FuzzyLimit)
	kept := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		kept[m.Name] = struct{}{}
	}
	p.logger.Debug("fuzzy names ranked", zap.Int("names", len(names)), zap.Int("kept", len(kept)))

	return func(path string, _ model.EntryKind) bool {
		_, ok := kept[fold(filepath.Base(path))]
		return ok
	}
}

// nameMatcher compiles the name predicate of spec. Fuzzy names are ranked
// across the set by closestNames instead.
func nameMatcher(spec Spec) (func(base string) bool, error) {
	fold := func(s string) string { return similarity.Fold(s, spec.CaseSensitive) }
	pattern := fold(spec.Name)

	switch spec.NameMode {
	case NameExact, "":
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid name pattern: %w", err)
		}
		return func(base string) bool {
			ok, _ := filepath.Match(pattern, fold(base))
			return ok
		}, nil
	case NameContains:
		return func(base string) bool { return strings.Contains(fold(base), pattern) }, nil
	case NameNotContains:
		return func(base string) bool { return !strings.Contains(fold(base), pattern) }, nil
	case NameBegins:
		return func(base string) bool { return strings.HasPrefix(fold(base), pattern) }, nil
	case NameEnds:
		return func(base string) bool { return strings.HasSuffix(fold(base), pattern) }, nil
	case NameRegex:
		re, err := compileRegex(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid regular expression: %w", err)
		}
		return re.MatchString, nil
	default:
		return nil, fmt.Errorf("unknown name mode %q", spec.NameMode)
	}
}

func canonicalDirs(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if c, err := pathutil.Canonical(d); err == nil {
			out = append(out, c)
		}
	}
	return out
}
