package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/bioverify/internal/api/response"
	"github.com/kiranshivaraju/bioverify/internal/bioverify"
	"github.com/kiranshivaraju/bioverify/internal/cache"
	"github.com/kiranshivaraju/bioverify/internal/report"
	"github.com/kiranshivaraju/bioverify/internal/tracker"
	"github.com/kiranshivaraju/bioverify/pkg/models"
)

const (
	// MaxUploadBytes caps a proxied video upload.
	MaxUploadBytes = 2 << 30

	defaultListLimit = 50
	maxListLimit     = 200
	maxPolicyNameLen = 256

	// firstProbeWait bounds how long a view waits for a new tracker's first
	// status before answering with a loading snapshot.
	firstProbeWait = 3 * time.Second
)

// Submitter uploads a video for analysis.
type Submitter interface {
	CreateAnalysis(ctx context.Context, req bioverify.SubmitRequest) (*models.Submission, error)
}

// Lister pages through analyses.
type Lister interface {
	ListAnalyses(ctx context.Context, limit, offset int) ([]models.AnalysisJob, error)
}

// Trackers starts and releases job trackers.
type Trackers interface {
	Watch(id string) (*tracker.Tracker, error)
	Release(id string) bool
	Forget(t *tracker.Tracker) bool
}

type submitResponse struct {
	AnalysisID string           `json:"analysis_id"`
	Status     models.JobStatus `json:"status"`
	Watching   bool             `json:"watching"`
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/analyses.
// The multipart "video" part is streamed to the API without buffering.
func NewSubmitHandler(svc Submitter, trackers Trackers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

		mr, err := r.MultipartReader()
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Expected a multipart/form-data upload", nil)
			return
		}

		policy := strings.TrimSpace(r.URL.Query().Get("policy_name"))
		part, formPolicy, err := videoPart(mr)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}
		defer part.Close()
		if policy == "" {
			policy = formPolicy
		}

		src := &readTracker{r: part}
		sub, err := svc.CreateAnalysis(r.Context(), bioverify.SubmitRequest{
			Filename:   part.FileName(),
			Video:      src,
			PolicyName: policy,
		})
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(src.err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
					"Upload exceeds the maximum size", map[string]int64{"limit_bytes": tooLarge.Limit})
				return
			}
			writeUpstreamError(w, r, "create_analysis", err)
			return
		}

		watching := true
		if _, err := trackers.Watch(sub.ID); err != nil {
			slog.Warn("failed to start tracker", "analysis_id", sub.ID, "error", err)
			watching = false
		}

		response.Created(w, submitResponse{
			AnalysisID: sub.ID,
			Status:     sub.Status,
			Watching:   watching,
		})
	}
}

// videoPart advances to the "video" file part, collecting a policy_name
// form field if it precedes the file.
func videoPart(mr *multipart.Reader) (*multipart.Part, string, error) {
	var policy string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", errors.New("video part is required")
		}
		if err != nil {
			return nil, "", errors.New("malformed multipart body")
		}

		switch part.FormName() {
		case "video":
			if part.FileName() == "" {
				part.Close()
				return nil, "", errors.New("video part must carry a filename")
			}
			return part, policy, nil
		case "policy_name":
			b, err := io.ReadAll(io.LimitReader(part, maxPolicyNameLen+1))
			part.Close()
			if err != nil || len(b) > maxPolicyNameLen {
				return nil, "", errors.New("policy_name is too long")
			}
			policy = strings.TrimSpace(string(b))
		default:
			part.Close()
		}
	}
}

// readTracker remembers the first read error so an oversized upload can be
// told apart from an upstream failure.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}

// NewListHandler returns an http.HandlerFunc for GET /api/v1/analyses.
func NewListHandler(svc Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		details := map[string][]string{}

		limit := defaultListLimit
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > maxListLimit {
				details["limit"] = append(details["limit"], "limit must be an integer between 1 and 200")
			} else {
				limit = n
			}
		}

		offset := 0
		if s := q.Get("offset"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				details["offset"] = append(details["offset"], "offset must be a non-negative integer")
			} else {
				offset = n
			}
		}

		if len(details) > 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", details)
			return
		}

		jobs, err := svc.ListAnalyses(r.Context(), limit, offset)
		if err != nil {
			writeUpstreamError(w, r, "list_analyses", err)
			return
		}
		if jobs == nil {
			jobs = []models.AnalysisJob{}
		}
		response.Collection(w, jobs, response.NewPaginationMeta(limit, offset, len(jobs)))
	}
}

type trackingView struct {
	State   string `json:"state"`
	Loading bool   `json:"loading"`
	Probes  int    `json:"probes"`
	Error   string `json:"error,omitempty"`
}

type analysisResponse struct {
	AnalysisID string              `json:"analysis_id"`
	Source     string              `json:"source"`
	Job        *models.AnalysisJob `json:"job,omitempty"`
	Tracking   *trackingView       `json:"tracking,omitempty"`
	Report     report.Report       `json:"report"`
}

// NewGetAnalysisHandler returns an http.HandlerFunc for
// GET /api/v1/analyses/{id}. The first view of a job starts its tracker.
// Terminal jobs are cached and their trackers released.
func NewGetAnalysisHandler(trackers Trackers, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ctx := r.Context()

		job, ok, err := cache.GetJobSnapshot(ctx, c, id)
		if err != nil {
			slog.Warn("job snapshot cache read failed", "analysis_id", id, "error", err)
		}
		if ok {
			response.JSON(w, analysisResponse{
				AnalysisID: id,
				Source:     "cache",
				Job:        job,
				Report:     report.Build(job, nil),
			})
			return
		}

		t, err := trackers.Watch(id)
		if err != nil {
			writeUpstreamError(w, r, "watch", err)
			return
		}

		timer := time.NewTimer(firstProbeWait)
		defer timer.Stop()
		select {
		case <-t.Ready():
		case <-timer.C:
		case <-ctx.Done():
			return
		}

		snap := t.Snapshot()
		if snap.Job == nil && snap.Err() != nil {
			// Nothing to show; let the next view try again.
			trackers.Forget(t)
			writeUpstreamError(w, r, "get_analysis", snap.Err())
			return
		}

		if snap.Job != nil && snap.Job.Status.Terminal() {
			if err := cache.SetJobSnapshot(ctx, c, snap.Job); err != nil {
				slog.Warn("job snapshot cache write failed", "analysis_id", id, "error", err)
			} else {
				trackers.Forget(t)
			}
		}

		response.JSON(w, analysisResponse{
			AnalysisID: id,
			Source:     "tracker",
			Job:        snap.Job,
			Tracking: &trackingView{
				State:   snap.State.String(),
				Loading: snap.Loading,
				Probes:  snap.Probes,
				Error:   snap.Error,
			},
			Report: report.Build(snap.Job, nil),
		})
	}
}

// NewReleaseHandler returns an http.HandlerFunc for
// DELETE /api/v1/analyses/{id}/watch.
func NewReleaseHandler(trackers Trackers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !trackers.Release(id) {
			response.Error(w, http.StatusNotFound, "NOT_WATCHED", "No tracker is running for this analysis", nil)
			return
		}
		response.NoContent(w)
	}
}
