package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"tigrinya.news/pipeline/common/id"
	"tigrinya.news/pipeline/common/logger"
	"tigrinya.news/pipeline/internal/model"
)

var (
	ErrAlreadyRunning = errors.New("job already running")
	ErrCancelled      = errors.New("job cancelled")
	ErrUnknownKind    = errors.New("unknown job kind")
	ErrNotStarted     = errors.New("job has not run yet")
)

const defaultObserverTimeout = 5 * time.Second

// Task is the body of a job. Its return value becomes the record's result.
type Task func(ctx context.Context, rep *Reporter) (any, error)

type Option func(*Runner)

func WithObservers(obs ...Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, obs...)
	}
}

// WithTimeout bounds a whole run. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithObserverTimeout bounds each observer call. Observers run on the task's
// path, so a stalled backend must not hold up progress updates.
func WithObserverTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.observerTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func WithIDGenerator(fn func() int64) Option {
	return func(r *Runner) {
		r.newID = fn
	}
}

// Runner executes at most one task per job kind at a time and publishes
// every state change to the StatusStore.
type Runner struct {
	store     *StatusStore
	slots     map[model.JobKind]*slot
	observers []Observer
	timeout   time.Duration
	now       func() time.Time
	newID     func() int64
	wg        sync.WaitGroup

	// Upper bound for a single Observe call.
	observerTimeout time.Duration
}

type slot struct {
	// Serializes the check-and-set in Start. Never held while a task runs.
	mu     sync.Mutex
	active atomic.Pointer[activeRun]
}

type activeRun struct {
	id        int64
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
}

func NewRunner(store *StatusStore, opts ...Option) *Runner {
	r := &Runner{
		store: store,
		slots: make(map[model.JobKind]*slot, len(model.AllJobKinds)),
		now:   time.Now,
		newID: id.New,

		observerTimeout: defaultObserverTimeout,
	}
	for _, kind := range model.AllJobKinds {
		r.slots[kind] = &slot{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status returns the latest record for kind.
func (r *Runner) Status(kind model.JobKind) (model.JobRecord, bool) {
	return r.store.Get(kind)
}

// Start publishes a "starting" record and runs task in the background.
// It returns ErrAlreadyRunning, together with the in-flight record, when a run
// of the same kind has not finished yet.
func (r *Runner) Start(ctx context.Context, kind model.JobKind, task Task) (model.JobRecord, error) {
	s, ok := r.slots[kind]
	if !ok {
		return model.JobRecord{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := r.store.Get(kind); ok && current.Running {
		return current, ErrAlreadyRunning
	}

	now := r.now()
	stage := model.StageStarting
	rec := model.JobRecord{
		Kind:      kind,
		RunID:     r.newID(),
		Running:   true,
		Stage:     &stage,
		StartedAt: &now,
	}

	// The run outlives the request that started it but keeps its values (trace, log fields).
	base := context.WithoutCancel(ctx)
	var runCtx context.Context
	var cancel context.CancelFunc
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(base, r.timeout)
	} else {
		runCtx, cancel = context.WithCancel(base)
	}
	runCtx = logger.WithLogFields(runCtx, logger.LogFields{
		JobKind: logger.Ptr(string(kind)),
		RunID:   logger.Ptr(rec.RunID),
	})

	active := &activeRun{id: rec.RunID, cancel: cancel, done: make(chan struct{})}
	s.active.Store(active)
	r.store.Set(kind, rec)

	r.wg.Add(1)
	go r.execute(runCtx, active, rec, task)

	return rec, nil
}

// Cancel asks the active run of kind to stop at its next checkpoint.
// Returns false when nothing is running.
func (r *Runner) Cancel(kind model.JobKind) bool {
	s, ok := r.slots[kind]
	if !ok {
		return false
	}
	active := s.active.Load()
	if active == nil {
		return false
	}
	select {
	case <-active.done:
		return false
	default:
	}
	active.cancelled.Store(true)
	active.cancel()
	return true
}

// Wait blocks until the current run of kind ends and returns its terminal record.
func (r *Runner) Wait(ctx context.Context, kind model.JobKind) (model.JobRecord, error) {
	s, ok := r.slots[kind]
	if !ok {
		return model.JobRecord{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if active := s.active.Load(); active != nil {
		select {
		case <-active.done:
		case <-ctx.Done():
			return model.JobRecord{}, ctx.Err()
		}
	}

	rec, ok := r.store.Get(kind)
	if !ok {
		return model.JobRecord{}, ErrNotStarted
	}
	return rec, nil
}

// Shutdown cancels every active run and waits for them to publish their terminal records.
func (r *Runner) Shutdown(ctx context.Context) error {
	for _, kind := range model.AllJobKinds {
		r.Cancel(kind)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

func (r *Runner) execute(ctx context.Context, active *activeRun, rec model.JobRecord, task Task) {
	defer r.wg.Done()
	defer close(active.done)
	defer active.cancel()

	sc := logger.StartSpan(ctx, "jobs."+string(rec.Kind))
	defer sc.End()
	ctx = sc.Context()

	// Observers hear about the starting record here, off the caller's path.
	r.notify(ctx, rec)
	slog.InfoContext(ctx, "job started")

	rep := &Reporter{runner: r, run: active, current: rec}
	result, err := r.invoke(ctx, task, rep)

	final := rep.finish()
	ended := r.now()
	final.Running = false
	final.EndedAt = &ended

	duration := ended.Sub(*rec.StartedAt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && r.timeout > 0 && ctx.Err() != nil {
			err = fmt.Errorf("job exceeded %s: %w", r.timeout, err)
		}
		msg := err.Error()
		final.Result = nil
		final.Error = &msg
		sc.RecordError(err)
		slog.ErrorContext(ctx, "job failed", "error", err, "duration_ms", duration.Milliseconds())
	} else {
		final.Result = result
		final.Error = nil
		slog.InfoContext(ctx, "job completed", "duration_ms", duration.Milliseconds())
	}
	sc.SetAttributes(attribute.String("job.status", final.Status()))

	// The run context may already be expired; the terminal record must still reach observers.
	r.publish(context.WithoutCancel(ctx), final)
}

func (r *Runner) invoke(ctx context.Context, task Task, rep *Reporter) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "panic recovered in job", "panic", p, "stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return task(ctx, rep)
}

func (r *Runner) publish(ctx context.Context, rec model.JobRecord) {
	r.store.Set(rec.Kind, rec)
	r.notify(ctx, rec)
}

func (r *Runner) notify(ctx context.Context, rec model.JobRecord) {
	for _, obs := range r.observers {
		obsCtx, cancel := context.WithTimeout(ctx, r.observerTimeout)
		err := obs.Observe(obsCtx, rec)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "job observer failed", "error", err)
		}
	}
}
