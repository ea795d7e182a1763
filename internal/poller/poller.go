// Package poller runs a check at a fixed interval until it reports success,
// a ceiling is reached or the task is stopped.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/polygonid/launchpad-identity/internal/log"
)

// Outcome is the reason a task finished
type Outcome string

// Task outcomes
const (
	OutcomeRunning   Outcome = ""
	OutcomeResolved  Outcome = "resolved"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCancelled Outcome = "cancelled"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("poller: task already started")
	// ErrInvalidSchedule is returned when interval or ceiling are not positive
	ErrInvalidSchedule = errors.New("poller: interval and ceiling must be positive")
)

// CheckFunc is called on every tick. Returning true finishes the task as resolved.
// Errors are logged and polling goes on.
type CheckFunc func(ctx context.Context) (bool, error)

// Task is a single use polling loop
type Task struct {
	name     string
	interval time.Duration
	ceiling  time.Duration
	check    CheckFunc

	mu       sync.Mutex
	started  bool
	resolved bool
	cancel   context.CancelFunc
	outcome  Outcome
	ticks    int
	done     chan struct{}
}

// New returns a task polling check every interval for at most ceiling
func New(name string, interval, ceiling time.Duration, check CheckFunc) *Task {
	return &Task{
		name:     name,
		interval: interval,
		ceiling:  ceiling,
		check:    check,
		done:     make(chan struct{}),
	}
}

// Start launches the loop in the background. The first check runs one interval after Start.
func (t *Task) Start(ctx context.Context) error {
	if t.interval <= 0 || t.ceiling <= 0 {
		return ErrInvalidSchedule
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	ctx, t.cancel = context.WithCancel(ctx)
	go t.run(ctx)
	return nil
}

func (t *Task) run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	ceiling := time.NewTimer(t.ceiling)
	defer ticker.Stop()
	defer ceiling.Stop()

	outcome := OutcomeCancelled
	defer func() { t.finish(outcome) }()

	for {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			if t.resolved {
				outcome = OutcomeResolved
			}
			t.mu.Unlock()
			return
		case <-ceiling.C:
			outcome = OutcomeTimedOut
			return
		case <-ticker.C:
			t.mu.Lock()
			t.ticks++
			t.mu.Unlock()

			ok, err := t.check(ctx)
			if err != nil {
				log.Warn(ctx, "poll check failed", "task", t.name, "err", err)
				continue
			}
			if ok {
				outcome = OutcomeResolved
				return
			}
		}
	}
}

func (t *Task) finish(outcome Outcome) {
	t.mu.Lock()
	t.outcome = outcome
	t.cancel()
	t.mu.Unlock()
	close(t.done)
}

// Stop cancels the loop. It does not wait, use Done or Wait for that.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// Resolve finishes the loop as resolved, for when the condition was met outside the check
func (t *Task) Resolve() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolved = true
	if t.cancel != nil {
		t.cancel()
	}
}

// Done is closed when the loop has exited and its timers are released
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the loop exits and returns its outcome
func (t *Task) Wait() Outcome {
	<-t.done
	return t.Outcome()
}

// Outcome returns the result of a finished task or OutcomeRunning
func (t *Task) Outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

// Ticks returns how many checks were run
func (t *Task) Ticks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}
