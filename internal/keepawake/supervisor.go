package keepawake

import (
	"context"
	"os"
	"sync"
	"time"

	hostErrors "github.com/wakesentry/host/internal/errors"
	"github.com/wakesentry/host/internal/interval"
)

// Supervisor owns at most one assertion process at a time and keeps its
// lifetime matched to the scheduled interval (or the host lifetime, for
// Indefinite). Schedule replaces any active session; there is no queue.
type Supervisor struct {
	mu sync.Mutex

	asserter       Asserter
	now            func() time.Time
	hostPID        int
	releaseTimeout time.Duration

	defaultInterval interval.Interval
	status          Status
	handle          Handle
	onComplete      CompleteFunc
	observers       []func(Status)
	closed          bool
	watch           uint64
}

// NewSupervisor creates a supervisor with the given platform asserter.
func NewSupervisor(asserter Asserter, opts Options) *Supervisor {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	pid := opts.HostPID
	if pid == 0 {
		pid = os.Getpid()
	}
	def := opts.DefaultInterval
	if !def.Valid() {
		def = interval.Indefinite
	}
	release := opts.ReleaseTimeout
	if release <= 0 {
		release = 3 * time.Second
	}

	return &Supervisor{
		asserter:        asserter,
		now:             nowFn,
		hostPID:         pid,
		releaseTimeout:  release,
		defaultInterval: def,
		status: Status{
			Interval:  def,
			UpdatedAt: nowFn(),
		},
	}
}

// Snapshot returns a copy of the current session state.
func (s *Supervisor) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Active reports whether an assertion process is currently held.
func (s *Supervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Active
}

// ScheduledInterval returns the active session's interval, or the configured
// default when idle.
func (s *Supervisor) ScheduledInterval() interval.Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Interval
}

// FireDeadline returns the active session's deadline. ok is false when idle
// or when the session is indefinite.
func (s *Supervisor) FireDeadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Deadline.IsZero() {
		return time.Time{}, false
	}
	return s.status.Deadline, true
}

// SetDefaultInterval registers the persisted default interval the supervisor
// resets to on idle. The configuration collaborator calls this directly on
// preference changes; non-catalog values are ignored.
func (s *Supervisor) SetDefaultInterval(iv interval.Interval) {
	if !iv.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultInterval = iv
	if !s.status.Active {
		s.status.Interval = iv
	}
}

// OnChange registers an observer notified after every state transition.
// Observers are called without the supervisor lock held and must not assume
// the snapshot is still current.
func (s *Supervisor) OnChange(fn func(Status)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Schedule starts a keep-awake session for the given interval, replacing any
// active session. The replaced session's process is terminated first and its
// completion callback is dropped without being invoked; the caller initiating
// the replacement already knows the prior session ended.
//
// On success the session is active, the deadline is now+interval (none for
// Indefinite), and onComplete is stored as the pending completion callback.
// On spawn failure the session is idle and onComplete is never invoked.
func (s *Supervisor) Schedule(iv interval.Interval, onComplete CompleteFunc) error {
	if !iv.Valid() {
		return hostErrors.InvalidInterval(iv.Seconds())
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return hostErrors.New(hostErrors.CodeWakeClosed, "supervisor is shut down")
	}

	// Detach the old session: drop its callback, bump the watcher generation
	// so its exit observer is inert, and take ownership of its handle.
	old := s.handle
	s.handle = nil
	s.onComplete = nil
	s.watch++
	gen := s.watch
	s.mu.Unlock()

	// Terminate the old process before spawning the new one so at most one
	// assertion process is alive at any instant.
	if old != nil {
		s.release(old)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.releaseTimeout)
	h, err := s.asserter.Assert(ctx, AssertRequest{
		HostPID:        s.hostPID,
		TimeoutSeconds: iv.Seconds(),
	})
	cancel()

	s.mu.Lock()
	if err != nil {
		s.status.Active = false
		s.status.Interval = s.defaultInterval
		s.status.Deadline = time.Time{}
		s.transitionLocked(err.Error())
		s.mu.Unlock()
		s.notify()
		return err
	}

	if s.closed || s.watch != gen {
		// A concurrent Cancel, Schedule, or Close superseded this request
		// while the spawn was in flight. The newcomer owns the session slot.
		s.mu.Unlock()
		s.release(h)
		return nil
	}

	s.handle = h
	s.onComplete = onComplete
	s.status.Active = true
	s.status.Interval = iv
	if iv == interval.Indefinite {
		s.status.Deadline = time.Time{}
	} else {
		s.status.Deadline = s.now().Add(iv.Duration())
	}
	s.transitionLocked("")
	s.mu.Unlock()

	go s.watchHandle(h, gen)
	s.notify()
	return nil
}

// Cancel terminates the active session, resets to the configured default, and
// invokes the pending completion callback with cancelled=true. Calling Cancel
// on an idle supervisor is a no-op: no callback, no transition.
//
// Session state reflects idle as soon as Cancel returns, even though the
// OS-level process teardown may complete slightly later.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	if s.closed || !s.status.Active {
		s.mu.Unlock()
		return
	}

	h := s.handle
	cb := s.onComplete
	s.handle = nil
	s.onComplete = nil
	s.watch++
	s.resetIdleLocked("")
	s.mu.Unlock()

	if h != nil {
		s.release(h)
	}
	s.notify()
	if cb != nil {
		cb(true)
	}
}

// Close forces a cancel-equivalent cleanup on host teardown: the assertion
// process must never outlive the host. The pending completion callback is not
// invoked; the observers it would update are going away with the host.
// Close is idempotent and blocks until the release attempt completes.
func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	h := s.handle
	s.handle = nil
	s.onComplete = nil
	s.watch++
	s.resetIdleLocked("")
	s.mu.Unlock()

	s.notify()
	if h == nil {
		return nil
	}

	if err := h.Release(ctx); err != nil {
		s.mu.Lock()
		s.status.LastError = err.Error()
		s.mu.Unlock()
		return hostErrors.Wrap(hostErrors.CodeWakeReleaseFailed, "failed to release assertion on shutdown", err)
	}
	return nil
}

// watchHandle observes natural completion: the assertion process exiting on
// its own (self-timeout elapsed, or killed out-of-band). The generation check
// keeps a superseded session's watcher from touching the new session.
func (s *Supervisor) watchHandle(h Handle, gen uint64) {
	<-h.Done()

	s.mu.Lock()
	if s.handle != h || s.watch != gen || s.closed {
		s.mu.Unlock()
		return
	}

	var lastErr string
	if err := h.Err(); err != nil {
		lastErr = err.Error()
	}

	cb := s.onComplete
	s.handle = nil
	s.onComplete = nil
	s.resetIdleLocked(lastErr)
	s.mu.Unlock()

	s.notify()
	if cb != nil {
		cb(false)
	}
}

// release tears the process down with a bounded grace period.
// Failures are recorded as lifecycle diagnostics, not surfaced to callers;
// the session state has already settled.
func (s *Supervisor) release(h Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), s.releaseTimeout)
	defer cancel()
	if err := h.Release(ctx); err != nil {
		s.mu.Lock()
		s.status.LastError = err.Error()
		s.mu.Unlock()
	}
}

func (s *Supervisor) resetIdleLocked(lastErr string) {
	s.status.Active = false
	s.status.Interval = s.defaultInterval
	s.status.Deadline = time.Time{}
	s.transitionLocked(lastErr)
}

func (s *Supervisor) transitionLocked(lastErr string) {
	s.status.LastError = lastErr
	s.status.UpdatedAt = s.now()
	s.status.Revision++
}

func (s *Supervisor) notify() {
	s.mu.Lock()
	st := s.status
	obs := make([]func(Status), len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()

	for _, fn := range obs {
		fn(st)
	}
}
