// Package tracker follows one analysis job until the server reports a
// terminal status.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/bioverify/internal/poll"
	"github.com/kiranshivaraju/bioverify/pkg/models"
)

// DefaultInterval is the delay between the end of one status probe and the
// start of the next.
const DefaultInterval = 2 * time.Second

// JobFetcher fetches the current state of an analysis job.
type JobFetcher interface {
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisJob, error)
}

// Option configures a Tracker.
type Option func(*options)

type options struct {
	interval     time.Duration
	onComplete   func(*models.AnalysisJob)
	onTransition func(job *models.AnalysisJob, from models.JobStatus)
	logger       *slog.Logger
}

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithOnComplete registers fn to run once, on its own goroutine, when the
// job transitions into done.
func WithOnComplete(fn func(*models.AnalysisJob)) Option {
	return func(o *options) { o.onComplete = fn }
}

// WithOnTransition registers fn to observe every status change. from is
// empty for the first observation. fn must not call back into the Tracker.
func WithOnTransition(fn func(job *models.AnalysisJob, from models.JobStatus)) Option {
	return func(o *options) { o.onTransition = fn }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Snapshot is the tracker's view of its job.
type Snapshot struct {
	ID      string              `json:"analysis_id"`
	Job     *models.AnalysisJob `json:"job,omitempty"`
	Loading bool                `json:"loading"`
	Error   string              `json:"error,omitempty"`
	State   poll.State          `json:"state"`
	Probes  int                 `json:"probes"`

	err error
}

// Err returns the terminal probe error, if any.
func (s Snapshot) Err() error { return s.err }

// Tracker polls a single job. Create one with Start.
type Tracker struct {
	id     string
	opts   options
	poller *poll.Poller[*models.AnalysisJob]

	// last is only touched from the poller's update hook, which is serialized.
	last models.JobStatus

	readyOnce    sync.Once
	ready        chan struct{}
	completeOnce sync.Once
	completed    chan struct{}
}

// Start begins polling job id. The tracker stops on done/failed, on the
// first fetch error, when Stop is called, or when ctx is cancelled.
func Start(ctx context.Context, f JobFetcher, id string, opts ...Option) (*Tracker, error) {
	o := options{interval: DefaultInterval, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Tracker{
		id:        id,
		opts:      o,
		ready:     make(chan struct{}),
		completed: make(chan struct{}),
	}

	probe := func(ctx context.Context) (*models.AnalysisJob, error) {
		return f.GetAnalysis(ctx, id)
	}
	stopWhen := func(job *models.AnalysisJob) bool {
		return job != nil && job.Status.Terminal()
	}

	t.poller = poll.New(probe, o.interval, stopWhen, poll.WithOnUpdate(t.observe))
	if err := t.poller.Start(ctx); err != nil {
		return nil, err
	}
	go t.settle()
	return t, nil
}

// ID returns the tracked job id.
func (t *Tracker) ID() string { return t.id }

// Stop tears the tracker down. A response that arrives afterwards is
// discarded.
func (t *Tracker) Stop() { t.poller.Stop() }

// Done is closed when polling has ended for any reason.
func (t *Tracker) Done() <-chan struct{} { return t.poller.Done() }

// Ready is closed once the first probe has resolved or polling has ended.
func (t *Tracker) Ready() <-chan struct{} { return t.ready }

// Completed is closed exactly once, when the job is observed entering done.
// It is never closed for failed jobs or cancelled trackers.
func (t *Tracker) Completed() <-chan struct{} { return t.completed }

// Snapshot returns the latest job and polling state.
func (t *Tracker) Snapshot() Snapshot {
	ps := t.poller.Snapshot()
	s := Snapshot{
		ID:      t.id,
		Loading: ps.Loading || (ps.State == poll.StatePolling && !ps.HasValue),
		State:   ps.State,
		Probes:  ps.Probes,
		err:     ps.Err,
	}
	if ps.HasValue {
		s.Job = ps.Value
	}
	if ps.Err != nil {
		s.Error = ps.Err.Error()
	}
	return s
}

// observe runs under the poller's lock for every update.
func (t *Tracker) observe(s poll.Snapshot[*models.AnalysisJob]) {
	if s.HasValue || s.State.Terminal() {
		t.readyOnce.Do(func() { close(t.ready) })
	}
	if s.State == poll.StateFailed {
		t.opts.logger.Warn("analysis polling failed",
			"analysis_id", t.id,
			"probes", s.Probes,
			"error", s.Err,
		)
		return
	}
	if !s.HasValue || s.Value == nil || s.Value.Status == t.last {
		return
	}

	from := t.last
	t.last = s.Value.Status
	t.opts.logger.Debug("analysis status changed",
		"analysis_id", t.id,
		"from", string(from),
		"to", string(s.Value.Status),
	)
	if t.opts.onTransition != nil {
		t.opts.onTransition(s.Value, from)
	}
}

// settle raises the completion signal once polling ends on a done job.
// Polling stops at the first terminal status, so done is observed at most
// once per tracker.
func (t *Tracker) settle() {
	<-t.poller.Done()

	s := t.poller.Snapshot()
	if s.State != poll.StateStopped || !s.HasValue || s.Value.Status != models.JobStatusDone {
		return
	}

	t.completeOnce.Do(func() {
		close(t.completed)
		t.opts.logger.Info("analysis completed", "analysis_id", t.id, "probes", s.Probes)
		if t.opts.onComplete != nil {
			go t.opts.onComplete(s.Value)
		}
	})
}
