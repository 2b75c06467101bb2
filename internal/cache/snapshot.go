package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/bioverify/pkg/models"
)

// TTLs for cached API responses. Evidence URLs are signed for an hour, so
// the bundle must expire well before they do.
const (
	JobSnapshotTTL = 10 * time.Minute
	EvidenceTTL    = 5 * time.Minute
)

// ErrNotTerminal is returned when caching a job that can still change.
var ErrNotTerminal = errors.New("job is not in a terminal state")

// SetJobSnapshot caches a done or failed job. In-flight jobs are refused:
// their status is owned by the server and must be polled.
func SetJobSnapshot(ctx context.Context, c Cache, job *models.AnalysisJob) error {
	if job == nil || !job.Status.Terminal() {
		return ErrNotTerminal
	}
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job snapshot: %w", err)
	}
	return c.Set(ctx, JobSnapshotKey(job.ID), b, JobSnapshotTTL)
}

// GetJobSnapshot returns a cached terminal job.
func GetJobSnapshot(ctx context.Context, c Cache, analysisID string) (*models.AnalysisJob, bool, error) {
	b, ok, err := c.Get(ctx, JobSnapshotKey(analysisID))
	if err != nil || !ok {
		return nil, false, err
	}
	var job models.AnalysisJob
	if err := json.Unmarshal(b, &job); err != nil {
		// Drop undecodable entries rather than serving them.
		_ = c.Delete(ctx, JobSnapshotKey(analysisID))
		return nil, false, nil
	}
	return &job, true, nil
}

// SetEvidence caches an evidence bundle.
func SetEvidence(ctx context.Context, c Cache, analysisID string, bundle *models.EvidenceBundle) error {
	b, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encoding evidence bundle: %w", err)
	}
	return c.Set(ctx, EvidenceKey(analysisID), b, EvidenceTTL)
}

// GetEvidence returns a cached evidence bundle.
func GetEvidence(ctx context.Context, c Cache, analysisID string) (*models.EvidenceBundle, bool, error) {
	b, ok, err := c.Get(ctx, EvidenceKey(analysisID))
	if err != nil || !ok {
		return nil, false, err
	}
	var bundle models.EvidenceBundle
	if err := json.Unmarshal(b, &bundle); err != nil {
		_ = c.Delete(ctx, EvidenceKey(analysisID))
		return nil, false, nil
	}
	return &bundle, true, nil
}
