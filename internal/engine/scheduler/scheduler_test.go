package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"apexintel/internal/core/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for task result")
		return Result{}
	}
}

func TestScheduler_CompletesTask(t *testing.T) {
	s := New(2, 0)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	var ran atomic.Bool
	ch, err := s.Enqueue(&Task{
		Key:      Key{FileID: "file:///classes/A.cls", Kind: KindParse},
		Priority: PriorityRequest,
		Fn: func(ctx context.Context) error {
			ran.Store(true)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	res := waitResult(t, ch)
	if res.Outcome != OutcomeCompleted || res.Err != nil {
		t.Fatalf("expected completed, got %s err=%v", res.Outcome, res.Err)
	}
	if !ran.Load() {
		t.Fatal("task function never ran")
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
}

func TestScheduler_ThreeRapidEditsRunOnlyTheLast(t *testing.T) {
	s := New(2, 0)

	key := Key{FileID: "file:///classes/Edited.cls", Kind: KindParse}
	var first, second, third atomic.Bool
	mk := func(flag *atomic.Bool) *Task {
		return &Task{
			Key:      key,
			Priority: PriorityRequest,
			Fn: func(ctx context.Context) error {
				flag.Store(true)
				return nil
			},
		}
	}

	// Enqueue all three before the workers start, as rapid edits would.
	ch1, _ := s.Enqueue(mk(&first))
	ch2, _ := s.Enqueue(mk(&second))
	ch3, _ := s.Enqueue(mk(&third))

	res1 := waitResult(t, ch1)
	res2 := waitResult(t, ch2)
	if res1.Outcome != OutcomeSuperseded || res2.Outcome != OutcomeSuperseded {
		t.Fatalf("older edits should be superseded, got %s and %s", res1.Outcome, res2.Outcome)
	}
	if !errors.IsCode(res1.Err, errors.CodeTaskSuperseded) {
		t.Errorf("superseded result should carry the typed code, got %v", res1.Err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	res3 := waitResult(t, ch3)
	if res3.Outcome != OutcomeCompleted {
		t.Fatalf("last edit should complete, got %s err=%v", res3.Outcome, res3.Err)
	}
	if first.Load() || second.Load() {
		t.Fatal("a superseded task ran")
	}
	if !third.Load() {
		t.Fatal("the surviving task never ran")
	}
}

func TestScheduler_RetryThenSuccess(t *testing.T) {
	s := New(1, 0)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	var calls atomic.Int32
	ch, _ := s.Enqueue(&Task{
		Key:        Key{FileID: "file:///classes/Flaky.cls", Kind: KindCrossResolve},
		Priority:   PriorityRequest,
		MaxRetries: 2,
		Fn: func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				return errors.New(errors.CodeInternal, "transient failure")
			}
			return nil
		},
	})

	res := waitResult(t, ch)
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("expected completion after retry, got %s err=%v", res.Outcome, res.Err)
	}
	if res.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", res.Attempts)
	}
}

func TestScheduler_RetriesExhaustedIsReported(t *testing.T) {
	s := New(1, 0)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	ch, _ := s.Enqueue(&Task{
		Key:        Key{FileID: "file:///classes/Broken.cls", Kind: KindParse},
		Priority:   PriorityRequest,
		MaxRetries: 1,
		Fn: func(ctx context.Context) error {
			return errors.New(errors.CodeInternal, "always fails")
		},
	})

	res := waitResult(t, ch)
	if res.Outcome != OutcomeTerminal {
		t.Fatalf("expected terminal failure, got %s", res.Outcome)
	}
	if !errors.IsCode(res.Err, errors.CodeRetriesExhausted) {
		t.Errorf("terminal result should carry RETRIES_EXHAUSTED, got %v", res.Err)
	}
	if res.Attempts != 2 {
		t.Errorf("expected 2 attempts (initial + 1 retry), got %d", res.Attempts)
	}
}

func TestScheduler_TimeoutIsRetryable(t *testing.T) {
	s := New(1, 0)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	var calls atomic.Int32
	ch, _ := s.Enqueue(&Task{
		Key:        Key{FileID: "file:///classes/Slow.cls", Kind: KindEnrich},
		Priority:   PriorityRequest,
		Timeout:    20 * time.Millisecond,
		MaxRetries: 1,
		Fn: func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		},
	})

	res := waitResult(t, ch)
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("timed-out task should be retried and complete, got %s err=%v", res.Outcome, res.Err)
	}
	if res.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", res.Attempts)
	}
}

func TestScheduler_AtMostOneRunningPerKey(t *testing.T) {
	s := New(4, 0)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	key := Key{FileID: "file:///classes/Busy.cls", Kind: KindParse}
	started := make(chan struct{})
	release := make(chan struct{})
	var concurrent atomic.Int32
	var peak atomic.Int32

	body := func(ctx context.Context) error {
		n := concurrent.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		defer concurrent.Add(-1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}

	ch1, _ := s.Enqueue(&Task{Key: key, Priority: PriorityRequest, Fn: body})
	<-started
	ch2, _ := s.Enqueue(&Task{Key: key, Priority: PriorityRequest, Fn: body})

	// Give the pool a chance to (wrongly) start the second task.
	time.Sleep(50 * time.Millisecond)
	if got := concurrent.Load(); got != 1 {
		t.Fatalf("expected exactly one running task for the key, got %d", got)
	}

	close(release)
	res1 := waitResult(t, ch1)
	res2 := waitResult(t, ch2)

	// The first task committed after a newer task arrived for its key, so
	// its output is reported as superseded.
	if res1.Outcome != OutcomeSuperseded {
		t.Errorf("first task should commit as superseded, got %s", res1.Outcome)
	}
	if res2.Outcome != OutcomeCompleted {
		t.Errorf("second task should complete, got %s err=%v", res2.Outcome, res2.Err)
	}
	if peak.Load() != 1 {
		t.Errorf("peak concurrency for one key should be 1, got %d", peak.Load())
	}
}

func TestScheduler_RequestOutranksBackground(t *testing.T) {
	s := New(1, 0)

	var order []string
	done := make(chan struct{}, 2)
	mk := func(name string, prio Priority) *Task {
		return &Task{
			Key:      Key{FileID: "file:///classes/" + name + ".cls", Kind: KindCrossResolve},
			Priority: prio,
			Fn: func(ctx context.Context) error {
				order = append(order, name)
				done <- struct{}{}
				return nil
			},
		}
	}

	// Background first, then request: with a single worker the request
	// task must still run first.
	s.Enqueue(mk("Background", PriorityBackground))
	s.Enqueue(mk("Request", PriorityRequest))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for tasks")
		}
	}
	if len(order) != 2 || order[0] != "Request" || order[1] != "Background" {
		t.Fatalf("expected request before background, got %v", order)
	}
}

func TestScheduler_StopCancelsQueuedTasks(t *testing.T) {
	s := New(1, 0)

	ch, err := s.Enqueue(&Task{
		Key:      Key{FileID: "file:///classes/Never.cls", Kind: KindParse},
		Priority: PriorityBackground,
		Fn:       func(ctx context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	s.Stop()

	res := waitResult(t, ch)
	if res.Outcome != OutcomeCancelled {
		t.Fatalf("queued task should be cancelled on stop, got %s", res.Outcome)
	}

	if _, err := s.Enqueue(&Task{
		Key: Key{FileID: "file:///classes/Late.cls", Kind: KindParse},
		Fn:  func(ctx context.Context) error { return nil },
	}); err == nil {
		t.Fatal("enqueue after stop should fail")
	}
}

func TestScheduler_EnqueueValidation(t *testing.T) {
	s := New(1, 0)
	defer s.Stop()

	if _, err := s.Enqueue(&Task{Key: Key{FileID: "file:///x.cls"}}); !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("missing function should be a validation error, got %v", err)
	}
	if _, err := s.Enqueue(&Task{Fn: func(ctx context.Context) error { return nil }}); !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("missing file should be a validation error, got %v", err)
	}
}
