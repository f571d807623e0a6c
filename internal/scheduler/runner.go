// Package scheduler provides a minimal in-process job runner: one-shot jobs
// keyed by opaque handles, fired by timers. It backs the reminder batcher,
// which persists its own schedule and re-registers jobs on start, so losing
// timers on process exit is acceptable.
package scheduler

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRunnerClosed is returned by Schedule after Shutdown.
var ErrRunnerClosed = errors.New("scheduler: runner is shut down")

// Runner schedules one-shot jobs. Safe for concurrent use.
type Runner struct {
	log *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewRunner creates a new job runner.
func NewRunner(log *slog.Logger) *Runner {
	return &Runner{
		log:    log.With("component", "scheduler"),
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arranges for fn to run once at fireAt and returns the job's
// handle. An instant in the past fires immediately. fn runs on the timer's
// own goroutine.
func (r *Runner) Schedule(fireAt time.Time, fn func()) (string, error) {
	handle := uuid.NewString()
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRunnerClosed
	}

	r.timers[handle] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, handle)
		r.mu.Unlock()
		fn()
	})

	r.log.Debug("job scheduled",
		slog.String("handle", handle),
		slog.Time("fire_at", fireAt),
	)

	return handle, nil
}

// Cancel stops a pending job. Unknown or already-fired handles are ignored,
// so cancelling is always safe.
func (r *Runner) Cancel(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer, ok := r.timers[handle]
	if !ok {
		return
	}
	timer.Stop()
	delete(r.timers, handle)
}

// Pending returns the number of jobs waiting to fire.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Shutdown stops all pending timers and rejects further scheduling. Jobs
// already running are not interrupted.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for handle, timer := range r.timers {
		timer.Stop()
		delete(r.timers, handle)
	}
}
