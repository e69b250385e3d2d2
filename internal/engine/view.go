package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fenilsonani/filesearch/internal/duplicates"
	"github.com/fenilsonani/filesearch/internal/model"
)

// ViewKind is the kind of result a view shows.
type ViewKind int

const (
	ViewSearch ViewKind = iota
	ViewCompare
	ViewDuplicates
)

func (k ViewKind) String() string {
	switch k {
	case ViewSearch:
		return "search"
	case ViewCompare:
		return "compare"
	case ViewDuplicates:
		return "duplicates"
	default:
		return fmt.Sprintf("ViewKind(%d)", int(k))
	}
}

// View is a result the caller is showing and may act on.
type View struct {
	kind   ViewKind
	engine *Engine

	search     *model.SearchResult
	compare    *CompareResult
	duplicates *duplicates.Result
	dir        string // root the duplicate candidates came from
}

// SearchView wraps a search result.
func (e *Engine) SearchView(r *model.SearchResult) *View {
	return &View{kind: ViewSearch, engine: e, search: r}
}

// CompareView wraps a comparison.
func (e *Engine) CompareView(r *CompareResult) *View {
	return &View{kind: ViewCompare, engine: e, compare: r}
}

// DuplicatesView wraps duplicate groups found among the results of a search
// of dir.
func (e *Engine) DuplicatesView(dir string, r *duplicates.Result) *View {
	return &View{kind: ViewDuplicates, engine: e, duplicates: r, dir: dir}
}

// Kind returns the view kind.
func (v *View) Kind() ViewKind { return v.kind }

// Search returns the search result of a ViewSearch.
func (v *View) Search() *model.SearchResult { return v.search }

// Compare returns the comparison of a ViewCompare.
func (v *View) Compare() *CompareResult { return v.compare }

// Duplicates returns the groups of a ViewDuplicates.
func (v *View) Duplicates() *duplicates.Result { return v.duplicates }

// Selection returns the paths the view offers for action. For a search
// these are the marked paths, or every path when none is marked. For a
// comparison both one-sided lists; for duplicates every member except the
// group representatives.
func (v *View) Selection() []string {
	switch v.kind {
	case ViewSearch:
		var marked []string
		for _, p := range v.search.Paths {
			if v.search.Marked[p] {
				marked = append(marked, p)
			}
		}
		if len(marked) > 0 {
			return marked
		}
		return append([]string(nil), v.search.Paths...)
	case ViewCompare:
		out := append([]string(nil), v.compare.OnlyA...)
		return append(out, v.compare.OnlyB...)
	case ViewDuplicates:
		var out []string
		for _, key := range v.duplicates.Order {
			members := v.duplicates.Groups[key]
			if len(members) > 1 {
				out = append(out, members[1:]...)
			}
		}
		return out
	default:
		panic(fmt.Sprintf("engine: selection of unknown view kind %s", v.kind))
	}
}

// Reload drops every path that no longer exists from the view and from the
// cache, and returns the dropped paths.
func (v *View) Reload(ctx context.Context) ([]string, error) {
	switch v.kind {
	case ViewSearch:
		updated, removed, err := v.engine.Reload(ctx, v.search)
		if err != nil {
			return nil, err
		}
		v.search = updated
		return removed, nil

	case ViewCompare:
		onlyA, goneA, err := existing(ctx, v.compare.OnlyA)
		if err != nil {
			return nil, err
		}
		onlyB, goneB, err := existing(ctx, v.compare.OnlyB)
		if err != nil {
			return nil, err
		}
		v.notify(v.compare.DirA, goneA)
		v.notify(v.compare.DirB, goneB)

		updated := *v.compare
		updated.OnlyA, updated.OnlyB = onlyA, onlyB
		v.compare = &updated
		return append(goneA, goneB...), nil

	case ViewDuplicates:
		updated, removed, err := reloadGroups(ctx, v.duplicates)
		if err != nil {
			return nil, err
		}
		v.notify(v.dir, removed)
		v.duplicates = updated
		return removed, nil

	default:
		panic(fmt.Sprintf("engine: reload of unknown view kind %s", v.kind))
	}
}

func (v *View) notify(dir string, removed []string) {
	if dir == "" || len(removed) == 0 {
		return
	}
	if err := v.engine.NotifyRemoved(dir, removed...); err != nil {
		v.engine.logger.Warn("failed to invalidate removed paths", zap.String("dir", dir), zap.Error(err))
	}
}

// reloadGroups drops vanished members. A group left with fewer than two
// members is dropped; a group whose representative vanished is kept under
// its key with the next member as representative.
func reloadGroups(ctx context.Context, r *duplicates.Result) (*duplicates.Result, []string, error) {
	out := &duplicates.Result{
		Groups:         make(map[string][]string, len(r.Groups)),
		Representative: make(map[string]string, len(r.Groups)),
		Skipped:        r.Skipped,
	}

	var removed []string
	for _, key := range r.Order {
		members, gone, err := existing(ctx, r.Groups[key])
		if err != nil {
			return nil, nil, err
		}
		removed = append(removed, gone...)
		if len(members) < 2 {
			continue
		}
		out.Groups[key] = members
		out.Representative[key] = members[0]
		out.Order = append(out.Order, key)
	}
	return out, removed, nil
}
