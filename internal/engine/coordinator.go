package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fenilsonani/filesearch/internal/duplicates"
	"github.com/fenilsonani/filesearch/internal/filter"
	"github.com/fenilsonani/filesearch/internal/logger"
	"github.com/fenilsonani/filesearch/internal/model"
	"github.com/fenilsonani/filesearch/internal/progress"
)

// Job is one unit of work run by a session.
type Job struct {
	Name string
	run  func(ctx context.Context, e *Engine) (any, int, error)
}

// SearchJob searches dir with spec. The session result is a
// *model.SearchResult.
func SearchJob(dir string, spec filter.Spec) Job {
	return Job{Name: "search", run: func(ctx context.Context, e *Engine) (any, int, error) {
		r, err := e.Search(ctx, dir, spec)
		if err != nil {
			return nil, 0, err
		}
		return r, r.Len(), nil
	}}
}

// DuplicatesJob groups paths by c. The session result is a
// *duplicates.Result.
func DuplicatesJob(paths []string, c duplicates.Criteria) Job {
	return Job{Name: "duplicates", run: func(ctx context.Context, e *Engine) (any, int, error) {
		r, err := e.Duplicates(ctx, paths, c)
		if err != nil {
			return nil, 0, err
		}
		return r, r.Len(), nil
	}}
}

// CompareJob compares two results. The session result is a *CompareResult.
func CompareJob(a, b *model.SearchResult) Job {
	return Job{Name: "compare", run: func(ctx context.Context, e *Engine) (any, int, error) {
		progress.FromContext(ctx).Emit(progress.Event{Phase: progress.PhaseComparing, Count: a.Len() + b.Len()})
		r := e.Compare(a, b)
		return r, len(r.OnlyA) + len(r.OnlyB), nil
	}}
}

// ReloadJob reloads v. The session result is the []string of removed paths.
func ReloadJob(v *View) Job {
	return Job{Name: "reload", run: func(ctx context.Context, _ *Engine) (any, int, error) {
		removed, err := v.Reload(ctx)
		if err != nil {
			return nil, 0, err
		}
		return removed, len(removed), nil
	}}
}

// Session is one submitted job. Progress arrives on Events until the job
// finishes, then the channel is closed.
type Session struct {
	ID      string
	Job     string
	Started time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	reporter *progress.Reporter
	events   <-chan progress.Event
	done     chan struct{}

	result any
	err    error
}

// Events returns the session's progress channel. Events are dropped, not
// queued, when the reader falls behind.
func (s *Session) Events() <-chan progress.Event {
	return s.events
}

// Done is closed when the job has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the job finishes and returns its result.
func (s *Session) Wait() (any, error) {
	<-s.done
	return s.result, s.err
}

// Cancel abandons the job at its next cancellation check.
func (s *Session) Cancel() {
	s.cancel()
}

// Await waits for s and asserts its result type.
func Await[T any](s *Session) (T, error) {
	var zero T
	v, err := s.Wait()
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("session %s (%s) returned %T", s.ID, s.Job, v)
	}
	return out, nil
}

// Coordinator runs sessions on a bounded worker pool.
type Coordinator struct {
	engine   *Engine
	slots    chan struct{}
	inFlight atomic.Int64
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewCoordinator creates a coordinator running at most workers jobs at
// once; workers <= 0 means one per CPU.
func NewCoordinator(e *Engine, workers int) *Coordinator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Coordinator{
		engine: e,
		slots:  make(chan struct{}, workers),
		logger: logger.Named("coordinator"),
	}
}

// Engine returns the engine jobs run against.
func (c *Coordinator) Engine() *Engine {
	return c.engine
}

// InFlight returns the number of submitted sessions not yet finished.
func (c *Coordinator) InFlight() int {
	return int(c.inFlight.Load())
}

// Submit starts job in a new session. The session is cancelled with ctx.
func (c *Coordinator) Submit(ctx context.Context, job Job) *Session {
	reporter := progress.NewReporter()
	s := &Session{
		ID:       uuid.NewString(),
		Job:      job.Name,
		Started:  time.Now(),
		reporter: reporter,
		events:   reporter.Subscribe(),
		done:     make(chan struct{}),
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.ctx = logger.WithSession(s.ctx, s.ID)
	s.ctx = progress.WithEmitter(s.ctx, reporter)

	c.inFlight.Add(1)
	c.wg.Add(1)
	go c.run(s, job)
	return s
}

func (c *Coordinator) run(s *Session, job Job) {
	defer c.wg.Done()
	defer close(s.done)
	defer c.inFlight.Add(-1)
	defer s.reporter.Close()
	defer s.cancel()

	log := c.logger.With(zap.String("session_id", s.ID), zap.String("job", job.Name))

	select {
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		s.reporter.Emit(progress.Event{Phase: progress.PhaseError, Err: s.err})
		log.Debug("session cancelled before start")
		return
	case c.slots <- struct{}{}:
	}
	defer func() { <-c.slots }()

	log.Debug("session started", zap.Int("in_flight", c.InFlight()))

	result, count, err := job.run(s.ctx, c.engine)
	if err != nil {
		s.err = err
		s.reporter.Emit(progress.Event{Phase: progress.PhaseError, Detail: job.Name, Err: err})
		log.Debug("session failed", zap.Error(err), zap.Duration("elapsed", time.Since(s.Started)))
		return
	}

	s.result = result
	s.reporter.Emit(progress.Event{Phase: progress.PhaseComplete, Detail: job.Name, Count: count})
	log.Debug("session complete", zap.Int("count", count), zap.Duration("elapsed", time.Since(s.Started)))
}

// Shutdown waits for every submitted session to finish, or for ctx.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
