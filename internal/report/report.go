// Package report composes the per-snapshot derivations into one
// presentation model.
package report

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/bioverify/internal/diagnostics"
	"github.com/kiranshivaraju/bioverify/internal/evidence"
	"github.com/kiranshivaraju/bioverify/internal/liveness"
	"github.com/kiranshivaraju/bioverify/pkg/models"
)

// ErrNoResults marks a job that finished without a result payload.
var ErrNoResults = errors.New("no results available")

// Reason is a verdict reason code with its description.
type Reason struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Report is everything rendered for one analysis snapshot.
type Report struct {
	AnalysisID    string                    `json:"analysis_id"`
	Status        models.JobStatus          `json:"status"`
	PolicyName    string                    `json:"policy_name,omitempty"`
	Verdict       models.Verdict            `json:"verdict,omitempty"`
	VerdictColor  string                    `json:"verdict_color,omitempty"`
	Score         *float64                  `json:"score,omitempty"`
	Confidence    *float64                  `json:"confidence,omitempty"`
	Reasons       []Reason                  `json:"reasons,omitempty"`
	Pipeline      []diagnostics.StageResult `json:"pipeline,omitempty"`
	Liveness      *liveness.View            `json:"liveness,omitempty"`
	Evidence      []evidence.Group          `json:"evidence,omitempty"`
	EngineVersion string                    `json:"engine_version,omitempty"`
	PolicyVersion string                    `json:"policy_version,omitempty"`
	DurationSecs  *float64                  `json:"duration_seconds,omitempty"`
	Notice        string                    `json:"notice,omitempty"`

	// Err is ErrNoResults for a done job without a result.
	Err error `json:"-"`
}

// Build derives the report for job. bundle is optional; without it the
// evidence section is omitted. Build never fails: missing data produces a
// notice instead.
func Build(job *models.AnalysisJob, bundle *models.EvidenceBundle) Report {
	if job == nil {
		return Report{Notice: "analysis not loaded"}
	}

	r := Report{
		AnalysisID: job.ID,
		Status:     job.Status,
		PolicyName: deref(job.PolicyName),
	}
	if job.StartedAt != nil && job.FinishedAt != nil {
		d := job.FinishedAt.Sub(job.StartedAt.Time).Seconds()
		r.DurationSecs = &d
	}

	switch job.Status {
	case models.JobStatusQueued, models.JobStatusRunning:
		r.Notice = fmt.Sprintf("analysis %s", job.Status)
		return r
	case models.JobStatusFailed:
		r.Notice = failureNotice(job)
		return r
	}

	res := job.Result
	if res == nil {
		r.Notice = ErrNoResults.Error()
		r.Err = ErrNoResults
		return r
	}

	r.Verdict = res.Verdict
	r.VerdictColor = VerdictColor(res.Verdict)
	score, confidence := res.Score, res.Confidence
	r.Score = &score
	r.Confidence = &confidence
	r.Reasons = reasons(res.Reasons)
	r.Pipeline = diagnostics.Derive(res.Metrics)
	r.EngineVersion = deref(res.EngineVersion)
	r.PolicyVersion = deref(res.PolicyVersion)

	if res.MetricsSummary != nil {
		if v := liveness.Present(res.MetricsSummary.Scoring); !v.Empty() {
			r.Liveness = &v
		}
	}
	if bundle != nil {
		r.Evidence = evidence.Resolve(bundle.Index.Artifacts, bundle.SignedURLs).Groups()
	}
	return r
}

// VerdictColor is the display color of a verdict.
func VerdictColor(v models.Verdict) string {
	switch v {
	case models.VerdictHuman:
		return "green"
	case models.VerdictSynthetic:
		return "red"
	case models.VerdictInconclusive:
		return "amber"
	default:
		return "gray"
	}
}

func failureNotice(job *models.AnalysisJob) string {
	msg := "analysis failed"
	if job.ErrorCode != nil && *job.ErrorCode != "" {
		msg += " (" + *job.ErrorCode + ")"
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		msg += ": " + *job.ErrorMessage
	}
	return msg
}

func reasons(codes []string) []Reason {
	if len(codes) == 0 {
		return nil
	}
	out := make([]Reason, len(codes))
	for i, c := range codes {
		out[i] = Reason{Code: c, Description: Describe(c)}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
