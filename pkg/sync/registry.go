// Package sync implements the signal registry that fail points use to
// rendezvous across goroutines.
//
// A Registry holds a set of active signal names. A rendezvous inserts its own
// signals into the set, wakes every waiter, and then blocks until all the
// signals it waits for are active. Signal names need no registration; emitting
// a name nobody waits for is legal and inert.
package sync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/testground/failpoint/pkg/logging"
)

// Registry is a process-scoped set of active signals plus a broadcast used to
// wake waiters whenever the set changes. It is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}

	// changed is closed and replaced every time the active set changes.
	changed chan struct{}

	interval time.Duration
	log      *zap.SugaredLogger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithWaitInterval sets the default wait iteration bound.
func WithWaitInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		active:   make(map[string]struct{}),
		changed:  make(chan struct{}),
		interval: DefaultWaitInterval,
		log:      logging.S(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WaitInterval returns the default wait iteration bound.
func (r *Registry) WaitInterval() time.Duration {
	return r.interval
}

// Signal marks the supplied names active and wakes all waiters.
func (r *Registry) Signal(names ...string) {
	if len(names) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.insertLocked(names)
}

// IsActive reports whether the named signal is active.
func (r *Registry) IsActive(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.active[name]
	return ok
}

// Active returns the active signals, sorted.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.active))
	for n := range r.active {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of active signals.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.active)
}

// Clear deactivates the supplied names. Unknown names are ignored.
func (r *Registry) Clear(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(names)
}

// Reset deactivates every signal.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.active) == 0 {
		return
	}
	r.active = make(map[string]struct{})
	r.broadcastLocked()
}

// Wait performs a rendezvous. It inserts req.Signals into the active set, wakes
// all waiters, and blocks until every name in req.WaitFor is active.
//
// Each wait iteration is bounded by req.Interval (or the registry default); an
// expired iteration is logged and the wait continues. The only error returned
// is the cancellation of ctx.
func (r *Registry) Wait(ctx context.Context, req Request) error {
	interval := req.Interval
	if interval <= 0 {
		interval = r.interval
	}

	r.mu.Lock()
	r.insertLocked(req.Signals)

	for iteration := 1; ; iteration++ {
		if r.satisfiedLocked(req.WaitFor) {
			if req.ClearSignal {
				r.removeLocked(req.WaitFor)
			}
			r.mu.Unlock()
			return nil
		}
		changed := r.changed
		r.mu.Unlock()

		timer := time.NewTimer(interval)
		select {
		case <-changed:
		case <-timer.C:
			r.log.Debugw("still waiting for signals", "wait_for", req.WaitFor, "iteration", iteration, "interval", interval)
		case <-ctx.Done():
			timer.Stop()
			r.log.Warnw("signal wait interrupted", "wait_for", req.WaitFor, "err", ctx.Err())
			return fmt.Errorf("interrupted while waiting for signals %v: %w", req.WaitFor, ctx.Err())
		}
		timer.Stop()

		r.mu.Lock()
	}
}

func (r *Registry) satisfiedLocked(waitFor []string) bool {
	for _, w := range waitFor {
		if _, ok := r.active[w]; !ok {
			return false
		}
	}
	return true
}

func (r *Registry) insertLocked(names []string) {
	if len(names) == 0 {
		return
	}
	for _, n := range names {
		r.active[n] = struct{}{}
	}
	r.broadcastLocked()
}

func (r *Registry) removeLocked(names []string) {
	removed := false
	for _, n := range names {
		if _, ok := r.active[n]; ok {
			delete(r.active, n)
			removed = true
		}
	}
	if removed {
		r.broadcastLocked()
	}
}

// broadcastLocked wakes every goroutine parked on the current changed channel.
func (r *Registry) broadcastLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}
