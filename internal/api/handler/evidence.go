package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/bioverify/internal/api/response"
	"github.com/kiranshivaraju/bioverify/internal/cache"
	"github.com/kiranshivaraju/bioverify/internal/evidence"
	"github.com/kiranshivaraju/bioverify/pkg/models"
)

const maxVerifyParallel = 16

// EvidenceFetcher loads the evidence bundle of a finished analysis.
type EvidenceFetcher interface {
	GetEvidence(ctx context.Context, id string) (*models.EvidenceBundle, error)
}

type evidenceFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type evidenceResponse struct {
	AnalysisID    string            `json:"analysis_id"`
	ConfigVersion string            `json:"config_version,omitempty"`
	Groups        []evidence.Group  `json:"groups"`
	Verified      bool              `json:"verified"`
	Failures      []evidenceFailure `json:"failures,omitempty"`
}

// NewEvidenceHandler returns an http.HandlerFunc for
// GET /api/v1/analyses/{id}/evidence. With ?verify=true every signed URL is
// probed through probe and unreachable artifacts are dropped.
func NewEvidenceHandler(svc EvidenceFetcher, c cache.Cache, probe evidence.Doer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ctx := r.Context()
		q := r.URL.Query()

		verify, err := parseBoolParam(q.Get("verify"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "verify must be a boolean", nil)
			return
		}
		parallel := evidence.DefaultParallel
		if s := q.Get("parallel"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > maxVerifyParallel {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
					"parallel must be an integer between 1 and 16", nil)
				return
			}
			parallel = n
		}

		bundle, ok, err := cache.GetEvidence(ctx, c, id)
		if err != nil {
			slog.Warn("evidence cache read failed", "analysis_id", id, "error", err)
		}
		if !ok {
			bundle, err = svc.GetEvidence(ctx, id)
			if err != nil {
				writeUpstreamError(w, r, "get_evidence", err)
				return
			}
			if err := cache.SetEvidence(ctx, c, id, bundle); err != nil {
				slog.Warn("evidence cache write failed", "analysis_id", id, "error", err)
			}
		}

		gallery := evidence.Resolve(bundle.Index.Artifacts, bundle.SignedURLs)
		resp := evidenceResponse{
			AnalysisID:    id,
			ConfigVersion: bundle.Index.ConfigVersion,
		}

		if verify && probe != nil {
			checked, failures, err := evidence.Verify(ctx, probe, gallery, parallel)
			if err != nil {
				writeUpstreamError(w, r, "verify_evidence", err)
				return
			}
			gallery = checked
			resp.Verified = true
			for _, f := range failures {
				resp.Failures = append(resp.Failures, evidenceFailure{Path: f.Path, Error: f.Err.Error()})
			}
		}

		resp.Groups = gallery.Groups()
		response.JSON(w, resp)
	}
}

func parseBoolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
