package tracker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/bioverify/internal/bioverify"
	"github.com/kiranshivaraju/bioverify/internal/config"
	"github.com/kiranshivaraju/bioverify/internal/poll"
	"github.com/kiranshivaraju/bioverify/pkg/models"
)

// --- mocks ---

// scriptedFetcher returns the scripted statuses in order, repeating the last.
type scriptedFetcher struct {
	mu       sync.Mutex
	statuses []models.JobStatus
	err      error
	errAt    int
	calls    map[string]int
}

func newScriptedFetcher(statuses ...models.JobStatus) *scriptedFetcher {
	return &scriptedFetcher{statuses: statuses, calls: make(map[string]int)}
}

func (f *scriptedFetcher) GetAnalysis(ctx context.Context, id string) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.calls[id]
	f.calls[id]++
	if f.err != nil && n == f.errAt {
		return nil, f.err
	}
	status := f.statuses[len(f.statuses)-1]
	if n < len(f.statuses) {
		status = f.statuses[n]
	}
	return &models.AnalysisJob{ID: id, Status: status}, nil
}

func (f *scriptedFetcher) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func waitDone(t *testing.T, tr *Tracker) Snapshot {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("tracker did not finish")
	}
	return tr.Snapshot()
}

// --- Tracker ---

func TestTracker_PollsUntilDone(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusQueued, models.JobStatusRunning, models.JobStatusRunning, models.JobStatusDone)

	tr, err := Start(context.Background(), f, "a-1", WithInterval(time.Millisecond))
	require.NoError(t, err)

	snap := waitDone(t, tr)
	assert.Equal(t, poll.StateStopped, snap.State)
	require.NotNil(t, snap.Job)
	assert.Equal(t, models.JobStatusDone, snap.Job.Status)
	assert.Equal(t, 4, snap.Probes)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.Loading)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, f.callCount("a-1"), "no probe after a terminal status")
}

func TestTracker_FailedJobFromWorker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"analysis_id":"a-1","status":"failed","error_code":"ENGINE_ERROR",` +
			`"error_message":"decode failed","result_json":{"status":"failed","verdict":null,` +
			`"score":null,"confidence":null,"reasons":null,"error_code":"ENGINE_ERROR"}}`))
	}))
	defer ts.Close()

	client := bioverify.NewHTTPClient(config.APIConfig{BaseURL: ts.URL, Timeout: time.Second})
	tr, err := Start(context.Background(), client, "a-1", WithInterval(time.Millisecond))
	require.NoError(t, err)

	snap := waitDone(t, tr)
	assert.Equal(t, poll.StateStopped, snap.State)
	assert.NoError(t, snap.Err())
	require.NotNil(t, snap.Job)
	assert.Equal(t, models.JobStatusFailed, snap.Job.Status)
	require.NotNil(t, snap.Job.ErrorCode)
	assert.Equal(t, "ENGINE_ERROR", *snap.Job.ErrorCode)
}

func TestTracker_FailedStatusStopsWithoutCompletion(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusRunning, models.JobStatusFailed)

	tr, err := Start(context.Background(), f, "a-1", WithInterval(time.Millisecond))
	require.NoError(t, err)

	snap := waitDone(t, tr)
	assert.Equal(t, poll.StateStopped, snap.State)
	assert.Equal(t, models.JobStatusFailed, snap.Job.Status)

	select {
	case <-tr.Completed():
		t.Fatal("completion must not fire for failed jobs")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTracker_CompletedFiresExactlyOnce(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusRunning, models.JobStatusDone, models.JobStatusDone)

	var fired atomic.Int32
	got := make(chan *models.AnalysisJob, 4)
	tr, err := Start(context.Background(), f, "a-1",
		WithInterval(time.Millisecond),
		WithOnComplete(func(job *models.AnalysisJob) {
			fired.Add(1)
			got <- job
		}))
	require.NoError(t, err)

	select {
	case <-tr.Completed():
	case <-time.After(2 * time.Second):
		t.Fatal("completion not signalled")
	}

	select {
	case job := <-got:
		assert.Equal(t, models.JobStatusDone, job.Status)
	case <-time.After(time.Second):
		t.Fatal("OnComplete not called")
	}

	// Stopping again and waiting must not re-raise the signal.
	tr.Stop()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, 2, f.callCount("a-1"))
}

func TestTracker_AlreadyDoneOnFirstProbe(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusDone)

	tr, err := Start(context.Background(), f, "a-1", WithInterval(time.Millisecond))
	require.NoError(t, err)

	select {
	case <-tr.Completed():
	case <-time.After(2 * time.Second):
		t.Fatal("completion not signalled")
	}
	assert.Equal(t, 1, f.callCount("a-1"))
}

func TestTracker_FetchErrorIsTerminal(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusRunning)
	f.err = errors.New("analysis api unreachable: connection refused")
	f.errAt = 1

	tr, err := Start(context.Background(), f, "a-1", WithInterval(time.Millisecond))
	require.NoError(t, err)

	snap := waitDone(t, tr)
	assert.Equal(t, poll.StateFailed, snap.State)
	assert.Equal(t, "analysis api unreachable: connection refused", snap.Error)
	assert.ErrorIs(t, snap.Err(), f.err)
	require.NotNil(t, snap.Job, "last good job is kept")
	assert.Equal(t, models.JobStatusRunning, snap.Job.Status)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, f.callCount("a-1"))
}

func TestTracker_StopDuringPolling(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusRunning)

	tr, err := Start(context.Background(), f, "a-1", WithInterval(time.Hour))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return tr.Snapshot().Job != nil }, time.Second, time.Millisecond)

	tr.Stop()
	snap := waitDone(t, tr)
	assert.Equal(t, poll.StateCancelled, snap.State)
	assert.Equal(t, 1, f.callCount("a-1"))
}

func TestTracker_Transitions(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusQueued, models.JobStatusQueued, models.JobStatusRunning, models.JobStatusDone)

	var mu sync.Mutex
	var seen [][2]models.JobStatus
	tr, err := Start(context.Background(), f, "a-1",
		WithInterval(time.Millisecond),
		WithOnTransition(func(job *models.AnalysisJob, from models.JobStatus) {
			mu.Lock()
			seen = append(seen, [2]models.JobStatus{from, job.Status})
			mu.Unlock()
		}))
	require.NoError(t, err)
	waitDone(t, tr)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][2]models.JobStatus{
		{"", models.JobStatusQueued},
		{models.JobStatusQueued, models.JobStatusRunning},
		{models.JobStatusRunning, models.JobStatusDone},
	}, seen)
}

func TestTracker_InvalidInterval(t *testing.T) {
	_, err := Start(context.Background(), newScriptedFetcher(models.JobStatusQueued), "a-1", WithInterval(0))
	assert.ErrorIs(t, err, poll.ErrInvalidInterval)
}

// --- Registry ---

func TestRegistry_WatchReusesLiveTracker(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusRunning)
	r := NewRegistry(context.Background(), f, WithInterval(time.Hour))
	defer r.StopAll()

	t1, err := r.Watch("a-1")
	require.NoError(t, err)
	t2, err := r.Watch("a-1")
	require.NoError(t, err)

	assert.Same(t, t1, t2)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_IndependentHandles(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusRunning)
	r := NewRegistry(context.Background(), f, WithInterval(time.Hour))
	defer r.StopAll()

	t1, err := r.Watch("a-1")
	require.NoError(t, err)
	t2, err := r.Watch("a-2")
	require.NoError(t, err)
	require.NotSame(t, t1, t2)

	r.Release("a-1")
	waitDone(t, t1)

	assert.Equal(t, poll.StateCancelled, t1.Snapshot().State)
	assert.Equal(t, poll.StatePolling, t2.Snapshot().State)
}

func TestRegistry_WatchReplacesCancelledTracker(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusRunning)
	r := NewRegistry(context.Background(), f, WithInterval(time.Hour))
	defer r.StopAll()

	t1, err := r.Watch("a-1")
	require.NoError(t, err)
	t1.Stop()
	waitDone(t, t1)

	t2, err := r.Watch("a-1")
	require.NoError(t, err)
	assert.NotSame(t, t1, t2)
}

func TestRegistry_KeepsFailedTrackerWithJob(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusRunning)
	f.err = errors.New("boom")
	f.errAt = 1
	r := NewRegistry(context.Background(), f, WithInterval(time.Millisecond))
	defer r.StopAll()

	t1, err := r.Watch("a-1")
	require.NoError(t, err)
	snap := waitDone(t, t1)
	assert.Equal(t, poll.StateFailed, snap.State)
	require.NotNil(t, snap.Job)

	t2, err := r.Watch("a-1")
	require.NoError(t, err)
	assert.Same(t, t1, t2, "failed tracker is not retried automatically")
	assert.Equal(t, 2, f.callCount("a-1"))

	require.True(t, r.Release("a-1"))
	t3, err := r.Watch("a-1")
	require.NoError(t, err)
	assert.NotSame(t, t1, t3)
}

func TestRegistry_ForgetsTrackerFailedWithoutJob(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusRunning)
	f.err = errors.New("not found")
	f.errAt = 0
	r := NewRegistry(context.Background(), f, WithInterval(time.Millisecond))
	defer r.StopAll()

	t1, err := r.Watch("a-1")
	require.NoError(t, err)
	assert.Equal(t, poll.StateFailed, waitDone(t, t1).State)

	require.Eventually(t, func() bool { return r.Len() == 0 },
		time.Second, 5*time.Millisecond, "nobody has to view the id again")

	t2, err := r.Watch("a-1")
	require.NoError(t, err)
	assert.NotSame(t, t1, t2)
}

func TestRegistry_ForgetLeavesNewerTracker(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusQueued)
	r := NewRegistry(context.Background(), f, WithInterval(time.Hour))
	defer r.StopAll()

	t1, err := r.Watch("a-1")
	require.NoError(t, err)
	require.True(t, r.Release("a-1"))
	t2, err := r.Watch("a-1")
	require.NoError(t, err)

	assert.False(t, r.Forget(t1))
	got, ok := r.Get("a-1")
	require.True(t, ok)
	assert.Same(t, t2, got)

	assert.True(t, r.Forget(t2))
	assert.Zero(t, r.Len())
}

func TestTracker_Ready(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusQueued)
	tr, err := Start(context.Background(), f, "a-1", WithInterval(time.Hour))
	require.NoError(t, err)
	defer tr.Stop()

	select {
	case <-tr.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("ready not signalled")
	}
	require.NotNil(t, tr.Snapshot().Job)
}

func TestRegistry_KeepsTerminalTracker(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusDone)
	r := NewRegistry(context.Background(), f, WithInterval(time.Millisecond))
	defer r.StopAll()

	t1, err := r.Watch("a-1")
	require.NoError(t, err)
	waitDone(t, t1)

	t2, err := r.Watch("a-1")
	require.NoError(t, err)
	assert.Same(t, t1, t2)
	assert.Equal(t, 1, f.callCount("a-1"))
}

func TestRegistry_ReleaseUnknown(t *testing.T) {
	r := NewRegistry(context.Background(), newScriptedFetcher(models.JobStatusRunning))
	assert.False(t, r.Release("nope"))
	_, ok := r.Get("nope")
	assert.False(t, ok)
}

func TestRegistry_StopAll(t *testing.T) {
	f := newScriptedFetcher(models.JobStatusRunning)
	r := NewRegistry(context.Background(), f, WithInterval(time.Hour))

	var trackers []*Tracker
	for _, id := range []string{"a-1", "a-2", "a-3"} {
		tr, err := r.Watch(id)
		require.NoError(t, err)
		trackers = append(trackers, tr)
	}

	r.StopAll()
	assert.Zero(t, r.Len())
	for _, tr := range trackers {
		assert.Equal(t, poll.StateCancelled, waitDone(t, tr).State)
	}
}

func TestRegistry_ParentContextStopsTrackers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRegistry(ctx, newScriptedFetcher(models.JobStatusRunning), WithInterval(time.Hour))

	tr, err := r.Watch("a-1")
	require.NoError(t, err)
	cancel()

	assert.Equal(t, poll.StateCancelled, waitDone(t, tr).State)
}
