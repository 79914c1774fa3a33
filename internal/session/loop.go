// Package session implements the single-threaded event loop that every
// driver engine runs on: it owns the registered I/O sources, drives them
// with a cooperative wait, and fans datafeed packets out to subscribers.
//
// The loop itself never blocks inside a callback; the only suspension point
// is Run's internal wait-for-readiness call, matching spec.md §5's
// concurrency model.
package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openbench/acquire-core/internal/device"
)

// Handle identifies a registered source. Engines pass whatever comparable
// value makes sense for their transport (an *os.File, a serial handle, a
// USB transfer index) — the loop treats it as an opaque map key.
type Handle any

// Events is a bitmask of readiness an engine is interested in.
type Events int

const (
	EventReadable Events = 1 << iota
	EventWritable
)

// SourceFunc is invoked when a source is ready, or on timeout if it was
// registered with one. revents reports which of the registered Events
// actually fired; on a timeout wake, revents is 0. Returning false requests
// removal of the source (spec.md §4.1).
type SourceFunc func(revents Events) (keepRegistered bool)

// source is the loop's internal bookkeeping for one registered handle.
type source struct {
	handle    Handle
	events    Events
	timeoutMs int // -1 = wait indefinitely, 0 = poll-only
	fn        SourceFunc
	// poll reports readiness for this source; the loop calls it once per
	// wake to decide whether fn should run with EventReadable/EventWritable
	// or with 0 (timeout).
	poll func() (ready bool, err error)
	// lastActive is when fn last ran (or when the source was first
	// dispatched); timeoutMs is measured from it.
	lastActive time.Time
}

// Loop multiplexes I/O readiness across heterogeneous devices and
// dispatches datafeed packets to subscribers. It is not safe for
// concurrent use from multiple goroutines beyond the exported
// thread-safe registration methods; Run itself must be called from a
// single goroutine.
type Loop struct {
	log *logrus.Logger

	mu      sync.Mutex
	order   []Handle
	sources map[Handle]*source
	stopped bool

	subsMu sync.Mutex
	subs   []subscriber
}

type subscriber struct {
	id int
	fn DatafeedFunc
}

// DatafeedFunc receives one datafeed packet emitted on behalf of inst.
type DatafeedFunc func(inst *device.Instance, packet any)

// New constructs an empty Loop.
func New(log *logrus.Logger) *Loop {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loop{
		log:     log,
		sources: make(map[Handle]*source),
	}
}

// SourceAdd registers a new source. A duplicate handle replaces the
// existing registration. timeoutMs -1 waits indefinitely; 0 polls only.
//
// poll is the readiness check the loop runs once per wake-up; the engines
// in this repo implement it as a single short transport read (the ols and
// dmm receive states read one byte, dslogic one bulk transfer), while tests
// can supply a trivial always-ready or channel-backed poll.
func (l *Loop) SourceAdd(handle Handle, events Events, timeoutMs int, poll func() (bool, error), fn SourceFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.sources[handle]; !exists {
		l.order = append(l.order, handle)
	}
	l.sources[handle] = &source{
		handle:    handle,
		events:    events,
		timeoutMs: timeoutMs,
		fn:        fn,
		poll:      poll,
	}
}

// SourceRemove unregisters handle. It is an error to remove a handle that
// was never registered (spec.md §4.1).
func (l *Loop) SourceRemove(handle Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.sources[handle]; !ok {
		return &errNotRegistered{handle: handle}
	}
	delete(l.sources, handle)
	for i, h := range l.order {
		if h == handle {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// errNotRegistered implements error without importing fmt per call site.
type errNotRegistered struct{ handle Handle }

func (e *errNotRegistered) Error() string {
	return "session: no source registered for handle"
}

// sourceCount reports how many sources are currently registered.
func (l *Loop) sourceCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// snapshot copies the current registration order and source table so Run
// can iterate without holding the lock across callback invocation (a
// callback may itself call SourceAdd/SourceRemove).
func (l *Loop) snapshot() ([]Handle, map[Handle]*source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order := make([]Handle, len(l.order))
	copy(order, l.order)
	srcs := make(map[Handle]*source, len(l.sources))
	for k, v := range l.sources {
		srcs[k] = v
	}
	return order, srcs
}

// minPositiveTimeout returns the smallest nonnegative timeout across all
// registered sources, treating -1 (wait indefinitely) as "no opinion".
// If every source waits indefinitely, it returns -1.
func minPositiveTimeout(srcs map[Handle]*source) int {
	min := -1
	for _, s := range srcs {
		if s.timeoutMs < 0 {
			continue
		}
		if min < 0 || s.timeoutMs < min {
			min = s.timeoutMs
		}
	}
	return min
}

// Run loops while any source exists. Each iteration it polls every
// registered source once (in registration order) and runs each one's
// callback at most once: with the readiness events that fired, or with 0
// once the source has gone its own timeoutMs without being ready (a 0
// timeout fires on the first not-ready poll; -1 never fires).
//
// Stop requests termination after the current iteration drains.
func (l *Loop) Run() {
	for {
		if l.isStopped() {
			return
		}
		order, srcs := l.snapshot()
		if len(order) == 0 {
			return
		}

		timeoutMs := minPositiveTimeout(srcs)
		l.waitOnce(timeoutMs)

		for _, h := range order {
			_, ok := srcs[h]
			if !ok {
				// removed by an earlier callback this same iteration
				continue
			}
			// the handle may have been re-registered with a new source
			// object since the snapshot; always dispatch the live one.
			l.mu.Lock()
			live, stillRegistered := l.sources[h]
			l.mu.Unlock()
			if !stillRegistered {
				continue
			}
			l.dispatch(h, live)
		}
	}
}

// waitOnce sleeps for the loop's single shared tick. Real readiness is
// determined per-source by source.poll, called from dispatch; this sleep
// just paces the cooperative loop so a 0ms (poll-only) source doesn't spin
// the CPU when mixed with sources that have a real timeout.
func (l *Loop) waitOnce(timeoutMs int) {
	switch {
	case timeoutMs == 0:
		return
	case timeoutMs < 0:
		time.Sleep(5 * time.Millisecond)
	default:
		d := time.Duration(timeoutMs) * time.Millisecond
		if d > 5*time.Millisecond {
			d = 5 * time.Millisecond
		}
		time.Sleep(d)
	}
}

func (l *Loop) dispatch(h Handle, s *source) {
	revents := Events(0)
	if s.poll != nil {
		ready, err := s.poll()
		if err != nil {
			l.log.WithError(err).WithField("handle", h).Warn("session: source poll failed, removing")
			_ = l.SourceRemove(h)
			return
		}
		if ready {
			revents = s.events
		}
	}

	if s.lastActive.IsZero() {
		s.lastActive = time.Now()
	}
	if revents == 0 {
		// Not ready: only a source whose own timeout has run out is called
		// with 0; a -1 source waits indefinitely.
		if s.timeoutMs < 0 || time.Since(s.lastActive) < time.Duration(s.timeoutMs)*time.Millisecond {
			return
		}
	}
	s.lastActive = time.Now()

	keep := s.fn(revents)
	if !keep {
		_ = l.SourceRemove(h)
	}
}

func (l *Loop) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// Stop marks the loop for termination. It does not forcibly interrupt an
// in-flight wait; Run drains the current iteration's callbacks and returns
// on its next check.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}
