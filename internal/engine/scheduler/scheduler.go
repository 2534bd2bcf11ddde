package scheduler

import (
	"container/heap"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"apexintel/internal/core/errors"
	"apexintel/internal/shared/observability"
	"apexintel/internal/shared/util"
)

// Scheduler runs file tasks on a bounded worker pool over a priority queue.
//
// Per-key guarantees: at most one task per key runs at a time; a newer
// queued task replaces an older queued one for the same key without running
// it; a running task is never preempted, but if a newer task for its key
// arrives before it commits, its outcome is reported as superseded and the
// caller must discard the output.
type Scheduler struct {
	workers int
	limiter *util.Limiter // throttles background tasks, nil for no limit

	mu      sync.Mutex
	tasks   taskHeap
	queued  map[Key]*Task
	running map[Key]bool
	latest  map[Key]uint64
	seq     uint64
	started bool
	stopped bool

	wake   chan struct{}
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New builds a scheduler with the given worker count. backgroundRate caps
// background-priority task starts per second; zero disables the throttle.
func New(workers int, backgroundRate float64) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	s := &Scheduler{
		workers: workers,
		queued:  make(map[Key]*Task),
		running: make(map[Key]bool),
		latest:  make(map[Key]uint64),
		wake:    make(chan struct{}, 1),
	}
	if backgroundRate > 0 {
		s.limiter = util.NewLimiter(backgroundRate, workers)
	}
	return s
}

// Start launches the worker pool. The pool stops when ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New(errors.CodeInternal, "scheduler already started")
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.group, runCtx = errgroup.WithContext(runCtx)
	for i := 0; i < s.workers; i++ {
		s.group.Go(func() error {
			s.workerLoop(runCtx)
			return nil
		})
	}
	slog.Debug("scheduler started", "workers", s.workers)
	return nil
}

// Stop cancels the workers, waits for running tasks to finish their current
// execution, and delivers a cancelled result to every still-queued task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.group.Wait()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.queued {
		t.result <- Result{TaskID: t.ID, Key: t.Key, Outcome: OutcomeCancelled, Attempts: t.attempts}
		observability.TasksCompletedTotal.WithLabelValues(OutcomeCancelled.String()).Inc()
	}
	s.queued = make(map[Key]*Task)
	s.tasks = nil
	observability.TaskQueueDepth.Set(0)
}

// Enqueue accepts a task and returns the channel its single Result will
// arrive on. An already-queued task for the same key is superseded and
// receives its own result immediately.
func (s *Scheduler) Enqueue(t *Task) (<-chan Result, error) {
	if t.Fn == nil {
		return nil, errors.New(errors.CodeValidationError, "task has no function")
	}
	if t.Key.FileID == "" {
		return nil, errors.New(errors.CodeValidationError, "task has no file")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errors.New(errors.CodeInternal, "scheduler is stopped")
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.result = make(chan Result, 1)
	s.seq++
	t.seq = s.seq
	s.latest[t.Key] = t.seq

	if old, ok := s.queued[t.Key]; ok {
		heap.Remove(&s.tasks, old.index)
		old.result <- Result{
			TaskID:   old.ID,
			Key:      old.Key,
			Outcome:  OutcomeSuperseded,
			Err:      errors.AddContext(errors.New(errors.CodeTaskSuperseded, "replaced by a newer task before running"), errors.CtxFile, old.Key.FileID),
			Attempts: old.attempts,
		}
		observability.TasksSupersededTotal.Inc()
		observability.TasksCompletedTotal.WithLabelValues(OutcomeSuperseded.String()).Inc()
	}

	s.queued[t.Key] = t
	heap.Push(&s.tasks, t)
	observability.TasksEnqueuedTotal.Inc()
	observability.TaskQueueDepth.Set(float64(s.tasks.Len()))
	s.signal()
	return t.result, nil
}

// QueueDepth reports the number of queued (not running) tasks.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks.Len()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) workerLoop(ctx context.Context) {
	for {
		t := s.next(ctx)
		if t == nil {
			return
		}
		if t.Priority == PriorityBackground && s.limiter != nil {
			if err := s.limiter.Wait(ctx, 1); err != nil {
				s.finish(t, OutcomeCancelled, err)
				return
			}
		}
		s.run(ctx, t)
	}
}

// next blocks until a task whose key is idle becomes available, or the
// context ends.
func (s *Scheduler) next(ctx context.Context) *Task {
	for {
		s.mu.Lock()
		t := s.popRunnableLocked()
		s.mu.Unlock()
		if t != nil {
			return t
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}
	}
}

// popRunnableLocked pops the highest-priority task whose key is not already
// running. Tasks for busy keys are pushed back untouched.
func (s *Scheduler) popRunnableLocked() *Task {
	var skipped []*Task
	var picked *Task
	for s.tasks.Len() > 0 {
		t := heap.Pop(&s.tasks).(*Task)
		if s.running[t.Key] {
			skipped = append(skipped, t)
			continue
		}
		picked = t
		break
	}
	for _, t := range skipped {
		heap.Push(&s.tasks, t)
	}
	if picked != nil {
		delete(s.queued, picked.Key)
		s.running[picked.Key] = true
		observability.TaskQueueDepth.Set(float64(s.tasks.Len()))
		if len(skipped) > 0 {
			s.signal()
		}
	}
	return picked
}

func (s *Scheduler) run(ctx context.Context, t *Task) {
	t.attempts++

	taskCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	taskCtx, span := observability.Tracer.Start(taskCtx, "scheduler.task")
	err := t.Fn(taskCtx)
	span.End()

	if err != nil && stderrors.Is(err, context.DeadlineExceeded) {
		err = errors.AddContext(
			errors.Wrap(err, errors.CodeTaskTimeout, fmt.Sprintf("task exceeded its %s budget", t.Timeout)),
			errors.CtxFile, t.Key.FileID)
	}

	s.mu.Lock()
	delete(s.running, t.Key)
	stale := s.latest[t.Key] > t.seq

	switch {
	case stale:
		// A newer task for this key arrived while we ran. The output is
		// not trustworthy regardless of success.
		s.mu.Unlock()
		s.signal()
		s.finish(t, OutcomeSuperseded, errors.AddContext(
			errors.New(errors.CodeTaskSuperseded, "a newer task for this file arrived before commit"),
			errors.CtxFile, t.Key.FileID))

	case err == nil:
		s.mu.Unlock()
		s.signal()
		s.finish(t, OutcomeCompleted, nil)

	case t.attempts <= t.MaxRetries:
		// Failed but retryable: immediate requeue, original sequence so it
		// keeps its place in the FIFO band.
		if s.stopped {
			s.mu.Unlock()
			s.finish(t, OutcomeCancelled, err)
			return
		}
		s.queued[t.Key] = t
		heap.Push(&s.tasks, t)
		observability.TaskRetriesTotal.Inc()
		observability.TaskQueueDepth.Set(float64(s.tasks.Len()))
		s.mu.Unlock()
		slog.Debug("task requeued", "task", t.ID, "file", t.Key.FileID, "kind", t.Key.Kind, "attempt", t.attempts, "error", err)
		s.signal()

	default:
		s.mu.Unlock()
		s.signal()
		s.finish(t, OutcomeTerminal, errors.AddContext(
			errors.Wrap(err, errors.CodeRetriesExhausted, fmt.Sprintf("task failed after %d attempts", t.attempts)),
			errors.CtxFile, t.Key.FileID))
	}
}

func (s *Scheduler) finish(t *Task, outcome Outcome, err error) {
	t.result <- Result{TaskID: t.ID, Key: t.Key, Outcome: outcome, Err: err, Attempts: t.attempts}
	observability.TasksCompletedTotal.WithLabelValues(outcome.String()).Inc()
	if outcome == OutcomeTerminal {
		slog.Warn("task failed terminally", "task", t.ID, "file", t.Key.FileID, "kind", t.Key.Kind, "error", err)
	}
}
