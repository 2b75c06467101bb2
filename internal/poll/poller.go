// Package poll drives an asynchronous probe on a timer until a stop
// condition, an error, or cancellation.
//
// A Poller is a small state machine:
//
//	Idle -> Polling -> Stopped   (stopWhen returned true)
//	                -> Failed    (probe returned an error)
//	                -> Cancelled (Stop or parent context cancelled)
//
// At most one probe is in flight at a time. The next probe is scheduled
// interval after the previous one completes. Every scheduled callback and
// in-flight probe carries the generation it was started under; once the
// poller leaves Polling the generation moves on and late arrivals are
// discarded unread.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrAlreadyStarted is returned when Start is called on a poller that
	// has left the Idle state.
	ErrAlreadyStarted = errors.New("poller already started")
	// ErrInvalidInterval is returned for a non-positive interval.
	ErrInvalidInterval = errors.New("poll interval must be positive")
)

// State is the lifecycle state of a Poller.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the poller will never probe again.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed || s == StateCancelled
}

// Probe fetches one observation. It must honour ctx cancellation.
type Probe[T any] func(ctx context.Context) (T, error)

// Snapshot is a consistent view of a poller at one instant.
type Snapshot[T any] struct {
	Value    T
	HasValue bool  // at least one probe succeeded
	Loading  bool  // a probe is in flight
	Err      error // terminal probe error, if any
	State    State
	Probes   int // probes issued so far
}

// Option configures a Poller.
type Option[T any] func(*Poller[T])

// WithOnUpdate registers fn to receive every state change. fn runs with
// the poller's lock held: it must not call back into the Poller.
func WithOnUpdate[T any](fn func(Snapshot[T])) Option[T] {
	return func(p *Poller[T]) { p.onUpdate = fn }
}

// Poller repeatedly invokes a probe. Create one with New or Start.
type Poller[T any] struct {
	probe    Probe[T]
	interval time.Duration
	stopWhen func(T) bool
	onUpdate func(Snapshot[T])

	mu         sync.Mutex
	gen        uint64
	snap       Snapshot[T]
	ctx        context.Context
	cancel     context.CancelFunc
	timer      *time.Timer
	stopParent func() bool
	done       chan struct{}
}

// New returns an idle poller. stopWhen may be nil, in which case polling
// continues until an error or Stop.
func New[T any](probe Probe[T], interval time.Duration, stopWhen func(T) bool, opts ...Option[T]) *Poller[T] {
	p := &Poller[T]{
		probe:    probe,
		interval: interval,
		stopWhen: stopWhen,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start creates a poller and starts it under ctx.
func Start[T any](ctx context.Context, probe Probe[T], interval time.Duration, stopWhen func(T) bool, opts ...Option[T]) (*Poller[T], error) {
	p := New(probe, interval, stopWhen, opts...)
	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Start issues the first probe immediately. Cancelling ctx has the same
// effect as Stop.
func (p *Poller[T]) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return ErrInvalidInterval
	}

	p.mu.Lock()
	if p.snap.State != StateIdle {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.gen++
	gen := p.gen
	p.snap.State = StatePolling
	p.stopParent = context.AfterFunc(ctx, p.Stop)
	p.notify()
	p.mu.Unlock()

	go p.run(gen)
	return nil
}

// Stop cancels polling. Any pending timer is invalidated and the result of
// an in-flight probe is discarded. Stop is idempotent and a no-op once the
// poller has reached a terminal state.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.snap.State {
	case StateIdle:
		p.snap.State = StateCancelled
		close(p.done)
		p.notify()
	case StatePolling:
		p.finish(StateCancelled)
	}
}

// Snapshot returns the current view of the poller.
func (p *Poller[T]) Snapshot() Snapshot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Done is closed when the poller reaches a terminal state.
func (p *Poller[T]) Done() <-chan struct{} {
	return p.done
}

// run performs one probe for generation gen and schedules the next.
func (p *Poller[T]) run(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.snap.State != StatePolling {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.timer = nil
	p.snap.Probes++
	p.snap.Loading = true
	p.notify()
	p.mu.Unlock()

	v, err := p.probe(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	// Stopped or superseded while the probe was in flight.
	if gen != p.gen || p.snap.State != StatePolling {
		return
	}

	p.snap.Loading = false
	if err != nil {
		p.snap.Err = err
		p.finish(StateFailed)
		return
	}

	p.snap.Value = v
	p.snap.HasValue = true
	if p.stopWhen != nil && p.stopWhen(v) {
		p.finish(StateStopped)
		return
	}

	p.timer = time.AfterFunc(p.interval, func() { p.run(gen) })
	p.notify()
}

// finish moves to a terminal state. Callers hold p.mu.
func (p *Poller[T]) finish(state State) {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.cancel()
	if p.stopParent != nil {
		p.stopParent()
	}
	p.snap.State = state
	p.snap.Loading = false
	close(p.done)
	p.notify()
}

func (p *Poller[T]) notify() {
	if p.onUpdate != nil {
		p.onUpdate(p.snap)
	}
}
