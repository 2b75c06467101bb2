package tracker

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/bioverify/internal/poll"
)

// Registry owns at most one live tracker per job id. Trackers for
// different jobs share nothing.
type Registry struct {
	ctx     context.Context
	fetcher JobFetcher
	opts    []Option

	mu       sync.Mutex
	trackers map[string]*Tracker
}

// NewRegistry creates a registry whose trackers live no longer than ctx.
func NewRegistry(ctx context.Context, f JobFetcher, opts ...Option) *Registry {
	return &Registry{
		ctx:      ctx,
		fetcher:  f,
		opts:     opts,
		trackers: make(map[string]*Tracker),
	}
}

// Watch returns the tracker for id, starting one if none exists. A
// cancelled tracker is replaced by a fresh one. A failed tracker that has
// shown a job is kept so its error stays visible until the consumer
// releases it; one that failed before any job arrived is forgotten, so the
// next Watch probes again.
func (r *Registry) Watch(id string) (*Tracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.trackers[id]; ok {
		if t.Snapshot().State != poll.StateCancelled {
			return t, nil
		}
		delete(r.trackers, id)
	}

	t, err := Start(r.ctx, r.fetcher, id, r.opts...)
	if err != nil {
		return nil, err
	}
	r.trackers[id] = t
	go r.forgetIfEmpty(t)
	return t, nil
}

func (r *Registry) forgetIfEmpty(t *Tracker) {
	<-t.Done()
	if s := t.Snapshot(); s.State == poll.StateFailed && s.Job == nil {
		r.Forget(t)
	}
}

// Forget stops t and removes it if it is still the registered tracker for
// its id. A newer tracker for the same id is left alone.
func (r *Registry) Forget(t *Tracker) bool {
	r.mu.Lock()
	cur, ok := r.trackers[t.ID()]
	ok = ok && cur == t
	if ok {
		delete(r.trackers, t.ID())
	}
	r.mu.Unlock()

	t.Stop()
	return ok
}

// Get returns the tracker for id without starting one.
func (r *Registry) Get(id string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[id]
	return t, ok
}

// Release stops and forgets the tracker for id. It reports whether one
// existed.
func (r *Registry) Release(id string) bool {
	r.mu.Lock()
	t, ok := r.trackers[id]
	delete(r.trackers, id)
	r.mu.Unlock()

	if ok {
		t.Stop()
	}
	return ok
}

// StopAll stops every tracker. Used on shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	trackers := r.trackers
	r.trackers = make(map[string]*Tracker)
	r.mu.Unlock()

	for _, t := range trackers {
		t.Stop()
	}
}

// Len returns the number of registered trackers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}
