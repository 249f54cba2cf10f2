// Package scheduler runs a function on a fixed interval until it reports
// completion, runs out of attempts, or is stopped.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrAlreadyStarted = errors.New("scheduler: task already started")

// Func is one attempt. Returning done=true ends the task. A non-nil error
// is recorded and the task keeps going until MaxAttempts.
type Func func(ctx context.Context, attempt int) (done bool, err error)

// Policy controls pacing. MaxAttempts <= 0 means no limit.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
	// RunImmediately makes the first attempt fire at Start instead of
	// after one Interval.
	RunImmediately bool
}

type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeStopped   Outcome = "stopped"
)

type Result struct {
	Outcome  Outcome
	Attempts int
	LastErr  error
}

type Task struct {
	name    string
	policy  Policy
	fn      Func
	onError func(attempt int, err error)

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	result  Result
}

type Option func(*Task)

// WithErrorHook is called after every failed attempt.
func WithErrorHook(hook func(attempt int, err error)) Option {
	return func(t *Task) {
		t.onError = hook
	}
}

func New(name string, policy Policy, fn Func, opts ...Option) *Task {
	t := &Task{
		name:   name,
		policy: policy,
		fn:     fn,
		done:   make(chan struct{}),
		result: Result{Outcome: OutcomeRunning},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Task) Name() string {
	return t.name
}

// Start launches the loop in its own goroutine. The task stops when ctx
// is cancelled or Stop is called.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.loop(runCtx)
	return nil
}

// Stop cancels the task and waits for the current attempt to return.
func (t *Task) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	started := t.started
	t.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-t.done
}

// Done is closed once the loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) Result() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

func (t *Task) finish(outcome Outcome) {
	t.mu.Lock()
	t.result.Outcome = outcome
	t.mu.Unlock()
}

func (t *Task) loop(ctx context.Context) {
	defer close(t.done)
	defer t.cancel()

	if !t.policy.RunImmediately {
		if !sleep(ctx, t.policy.Interval) {
			t.finish(OutcomeStopped)
			return
		}
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			t.finish(OutcomeStopped)
			return
		}

		done, err := t.fn(ctx, attempt)

		t.mu.Lock()
		t.result.Attempts = attempt
		t.result.LastErr = err
		t.mu.Unlock()

		if err != nil && t.onError != nil {
			t.onError(attempt, err)
		}
		if done {
			t.finish(OutcomeCompleted)
			return
		}
		if t.policy.MaxAttempts > 0 && attempt >= t.policy.MaxAttempts {
			t.finish(OutcomeExhausted)
			return
		}
		if !sleep(ctx, t.policy.Interval) {
			t.finish(OutcomeStopped)
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
