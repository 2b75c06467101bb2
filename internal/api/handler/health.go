package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kiranshivaraju/bioverify/internal/api/response"
	"github.com/kiranshivaraju/bioverify/pkg/models"
)

const healthTimeout = 5 * time.Second

// HealthChecker reports upstream API health.
type HealthChecker interface {
	Health(ctx context.Context) (*models.Health, error)
}

// Pinger checks a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TrackerCounter reports the number of live trackers.
type TrackerCounter interface {
	Len() int
}

type healthResponse struct {
	Status   string         `json:"status"`
	Upstream *models.Health `json:"upstream,omitempty"`
	Cache    string         `json:"cache"`
	Trackers int            `json:"trackers"`
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// An unreachable API fails the check; a failing cache only degrades it.
func NewHealthHandler(api HealthChecker, cache Pinger, trackers TrackerCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		upstream, err := api.Health(ctx)
		if err != nil {
			writeUpstreamError(w, r, "health", err)
			return
		}

		resp := healthResponse{
			Status:   "ok",
			Upstream: upstream,
			Cache:    "ok",
			Trackers: trackers.Len(),
		}
		if err := cache.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Cache = "unavailable"
		}
		response.JSON(w, resp)
	}
}
