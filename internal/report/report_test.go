package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/bioverify/internal/diagnostics"
	"github.com/kiranshivaraju/bioverify/internal/evidence"
	"github.com/kiranshivaraju/bioverify/internal/liveness"
	"github.com/kiranshivaraju/bioverify/pkg/models"
)

func strPtr(s string) *string { return &s }

func f64(v float64) *float64 { return &v }

func ts(t time.Time) *models.Timestamp { return &models.Timestamp{Time: t} }

func doneJob() *models.AnalysisJob {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.AnalysisJob{
		ID:         "a-1",
		Status:     models.JobStatusDone,
		PolicyName: strPtr("default"),
		StartedAt:  ts(start),
		FinishedAt: ts(start.Add(42 * time.Second)),
		Result: &models.JobResult{
			Verdict:    models.VerdictSynthetic,
			Score:      0.31,
			Confidence: 0.8,
			Reasons:    []string{"no_clear_heartbeat", "custom_code"},
			Metrics: &models.PipelineMetrics{
				Ingest: &models.IngestMetrics{NumWindows: 4},
				Face:   &models.FaceMetrics{WindowsWithFace: 4},
				ROI:    &models.ROIMetrics{TotalFrames: 100, FramesWithAllRegionsValid: 0},
			},
			MetricsSummary: &models.MetricsSummary{
				Scoring: &models.ScoringBreakdown{
					LivenessScore: f64(0.31),
					BaseScore:     f64(0.62),
					GateFactor:    f64(0.5),
					TauAuth:       f64(0.5),
				},
			},
			EngineVersion: strPtr("1.4.0"),
		},
	}
}

func TestBuild_DoneJob(t *testing.T) {
	bundle := &models.EvidenceBundle{
		Index: models.EvidenceManifest{Artifacts: models.EvidenceIndex{
			evidence.CategoryRPPGTraces: {"a.png", "b.png"},
		}},
		SignedURLs: models.SignedURLs{"a.png": "https://x/a"},
	}

	r := Build(doneJob(), bundle)

	assert.NoError(t, r.Err)
	assert.Empty(t, r.Notice)
	assert.Equal(t, models.VerdictSynthetic, r.Verdict)
	assert.Equal(t, "red", r.VerdictColor)
	assert.Equal(t, "default", r.PolicyName)
	assert.Equal(t, "1.4.0", r.EngineVersion)
	require.NotNil(t, r.DurationSecs)
	assert.Equal(t, 42.0, *r.DurationSecs)

	assert.Equal(t, []Reason{
		{Code: "no_clear_heartbeat", Description: "No plausible heart-rate peak in the pulse spectrum"},
		{Code: "custom_code", Description: "custom_code"},
	}, r.Reasons)

	require.Len(t, r.Pipeline, 4)
	assert.Equal(t, diagnostics.StatusWarning, r.Pipeline[2].Status)
	assert.Equal(t, diagnostics.StatusWarning, r.Pipeline[3].Status)

	require.NotNil(t, r.Liveness)
	assert.Equal(t, liveness.LeanSynthetic, r.Liveness.Score.Lean)
	assert.True(t, r.Liveness.Gate.Penalized)

	require.Len(t, r.Evidence, 1)
	assert.Equal(t, evidence.Available, r.Evidence[0].Availability)
	assert.Len(t, r.Evidence[0].Artifacts, 1)
}

func TestBuild_DoneWithoutResult(t *testing.T) {
	r := Build(&models.AnalysisJob{ID: "a-1", Status: models.JobStatusDone}, nil)

	assert.ErrorIs(t, r.Err, ErrNoResults)
	assert.Equal(t, "no results available", r.Notice)
	assert.Empty(t, r.Pipeline)
	assert.Nil(t, r.Liveness)
}

func TestBuild_FailedJob(t *testing.T) {
	r := Build(&models.AnalysisJob{
		ID:           "a-1",
		Status:       models.JobStatusFailed,
		ErrorCode:    strPtr("NO_FACE"),
		ErrorMessage: strPtr("no face detected"),
	}, nil)

	assert.NoError(t, r.Err)
	assert.Equal(t, "analysis failed (NO_FACE): no face detected", r.Notice)
	assert.Empty(t, r.Verdict)
}

func TestBuild_InProgress(t *testing.T) {
	r := Build(&models.AnalysisJob{ID: "a-1", Status: models.JobStatusRunning}, nil)
	assert.Equal(t, "analysis running", r.Notice)
	assert.Nil(t, r.DurationSecs)
}

func TestBuild_NilJob(t *testing.T) {
	r := Build(nil, nil)
	assert.Equal(t, "analysis not loaded", r.Notice)
}

func TestBuild_NoScoringOmitsLiveness(t *testing.T) {
	job := doneJob()
	job.Result.MetricsSummary = &models.MetricsSummary{}
	assert.Nil(t, Build(job, nil).Liveness)
}

func TestBuild_Idempotent(t *testing.T) {
	job := doneJob()
	first, second := Build(job, nil), Build(job, nil)
	if diff := cmp.Diff(first, second, cmp.Comparer(func(a, b error) bool { return a == b })); diff != "" {
		t.Errorf("Build not idempotent:\n%s", diff)
	}

	*first.Score = 0.99
	assert.Equal(t, 0.31, job.Result.Score, "report must not alias the job")
}

func TestBuild_JSON(t *testing.T) {
	b, err := json.Marshal(Build(&models.AnalysisJob{ID: "a-1", Status: models.JobStatusDone}, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"analysis_id":"a-1","status":"done","notice":"no results available"}`, string(b))
}

func TestVerdictColor(t *testing.T) {
	assert.Equal(t, "green", VerdictColor(models.VerdictHuman))
	assert.Equal(t, "red", VerdictColor(models.VerdictSynthetic))
	assert.Equal(t, "amber", VerdictColor(models.VerdictInconclusive))
	assert.Equal(t, "gray", VerdictColor(""))
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Build(doneJob(), nil)))

	out := buf.String()
	assert.Contains(t, out, "Verdict:")
	assert.Contains(t, out, "Synthetic")
	assert.Contains(t, out, "No plausible heart-rate peak in the pulse spectrum (no_clear_heartbeat)")
	assert.Contains(t, out, "Skin regions")
	assert.Contains(t, out, "A hard gate reduced the liveness score from 0.62 to 0.31 (gate factor 0.50)")
	assert.Contains(t, out, "synthetic-leaning")
}

func TestWriteText_NoResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Build(&models.AnalysisJob{ID: "a-9", Status: models.JobStatusDone}, nil)))
	assert.Contains(t, buf.String(), "no results available")
	assert.NotContains(t, buf.String(), "Pipeline:")
}
