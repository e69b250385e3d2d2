package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Phase is a named transition in a search, comparison or duplicate run.
type Phase string

const (
	PhaseScanning          Phase = "scanning"
	PhaseIndexingName      Phase = "indexing-name"
	PhaseIndexingExtension Phase = "indexing-extension"
	PhaseIndexingSystem    Phase = "indexing-system"
	PhaseIndexingKind      Phase = "indexing-kind"
	PhaseIndexingType      Phase = "indexing-type"
	PhaseIndexingJunk      Phase = "indexing-junk"
	PhaseIndexingExcluded  Phase = "indexing-excluded"
	PhaseIndexingCreated   Phase = "indexing-created"
	PhaseIndexingModified  Phase = "indexing-modified"
	PhaseIndexingSize      Phase = "indexing-size"
	PhaseIndexingContent   Phase = "indexing-content"
	PhaseSorting           Phase = "sorting"
	PhaseCaching           Phase = "caching"
	PhaseHashing           Phase = "hashing"
	PhaseGrouping          Phase = "grouping"
	PhaseComparing         Phase = "comparing"
	PhaseComplete          Phase = "complete"
	PhaseError             Phase = "error"
)

var phaseLabels = map[Phase]string{
	PhaseScanning:          "Scanning",
	PhaseIndexingName:      "Matching names",
	PhaseIndexingExtension: "Matching extension",
	PhaseIndexingSystem:    "Excluding system files",
	PhaseIndexingKind:      "Filtering by kind",
	PhaseIndexingType:      "Filtering by type",
	PhaseIndexingJunk:      "Removing junk files",
	PhaseIndexingExcluded:  "Applying exclusions",
	PhaseIndexingCreated:   "Checking creation dates",
	PhaseIndexingModified:  "Checking modification dates",
	PhaseIndexingSize:      "Checking sizes",
	PhaseIndexingContent:   "Searching file contents",
	PhaseSorting:           "Sorting",
	PhaseCaching:           "Caching",
	PhaseHashing:           "Hashing",
	PhaseGrouping:          "Grouping",
	PhaseComparing:         "Comparing",
	PhaseComplete:          "Complete",
	PhaseError:             "Error",
}

// Label returns a human-readable name for the phase.
func (p Phase) Label() string {
	if l, ok := phaseLabels[p]; ok {
		return l
	}
	return string(p)
}

// Known reports whether p is one of the declared phases.
func (p Phase) Known() bool {
	_, ok := phaseLabels[p]
	return ok
}

// Event is one phase transition.
type Event struct {
	Phase  Phase
	Detail string
	Count  int   // entries remaining or processed, phase dependent
	Bytes  int64 // bytes hashed, for PhaseHashing
	Time   time.Time
	Err    error
}

// Emitter receives events. Implementations must not block.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f.
func (f EmitterFunc) Emit(e Event) { f(e) }

// Nop discards every event.
var Nop Emitter = EmitterFunc(func(Event) {})

type emitterKey struct{}

// WithEmitter returns a context carrying e.
func WithEmitter(ctx context.Context, e Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, e)
}

// FromContext returns the emitter carried by ctx, or Nop.
func FromContext(ctx context.Context) Emitter {
	if e, ok := ctx.Value(emitterKey{}).(Emitter); ok && e != nil {
		return e
	}
	return Nop
}

// Reporter fans events out to subscribers without ever blocking the sender.
type Reporter struct {
	mu        sync.RWMutex
	last      *Event
	listeners []chan Event
	closed    bool
}

// NewReporter creates a new reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Subscribe returns a channel that receives events.
func (r *Reporter) Subscribe() <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Event, 32)
	if r.closed {
		close(ch)
		return ch
	}
	r.listeners = append(r.listeners, ch)
	return ch
}

// Unsubscribe closes and removes a listener channel.
func (r *Reporter) Unsubscribe(ch <-chan Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, listener := range r.listeners {
		if listener == ch {
			close(listener)
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Emit records the event and forwards it to every listener whose buffer
// has room. It never blocks.
func (r *Reporter) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.last = &e
	for _, listener := range r.listeners {
		select {
		case listener <- e:
		default:
		}
	}
}

// Last returns the most recent event, or nil.
func (r *Reporter) Last() *Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Close closes every listener. Later events are dropped.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, l := range r.listeners {
		close(l)
	}
	r.listeners = nil
}

// Format returns a one-line description of e.
func Format(e Event, start time.Time) string {
	elapsed := FormatDuration(e.Time.Sub(start))

	switch e.Phase {
	case PhaseScanning:
		if e.Detail != "" {
			return fmt.Sprintf("Scanning %s... [%s]", e.Detail, elapsed)
		}
		return fmt.Sprintf("Scanning... [%s]", elapsed)
	case PhaseHashing:
		return fmt.Sprintf("Hashing %d files (%s) [%s]", e.Count, humanize.IBytes(uint64(e.Bytes)), elapsed)
	case PhaseComplete:
		return fmt.Sprintf("Complete: %d results in %s", e.Count, elapsed)
	case PhaseError:
		return fmt.Sprintf("Error: %v", e.Err)
	default:
		return fmt.Sprintf("%s... %d entries [%s]", e.Phase.Label(), e.Count, elapsed)
	}
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
