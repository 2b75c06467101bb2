// Package models contains the wire and domain types shared across bioverify.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobStatus is the server-side lifecycle state of an analysis job.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// ParseJobStatus maps a wire value onto a known status. Matching is
// case-insensitive because older workers emitted upper-case enum names.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(strings.ToLower(strings.TrimSpace(s))) {
	case JobStatusQueued:
		return JobStatusQueued, nil
	case JobStatusRunning:
		return JobStatusRunning, nil
	case JobStatusDone:
		return JobStatusDone, nil
	case JobStatusFailed:
		return JobStatusFailed, nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Rank orders statuses along the lifecycle. Statuses never move to a lower rank.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusRunning:
		return 1
	case JobStatusDone, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

func (s *JobStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("job status: %w", err)
	}
	parsed, err := ParseJobStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AnalysisJob is the client's read-only copy of a server-owned analysis.
// The client polls GET /analyses/{id} until status is done or failed.
type AnalysisJob struct {
	ID           string     `json:"analysis_id"`
	Status       JobStatus  `json:"status"`
	PolicyName   *string    `json:"policy_name,omitempty"`
	Result       *JobResult `json:"result_json,omitempty"`
	ErrorCode    *string    `json:"error_code,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    *Timestamp `json:"created_at,omitempty"`
	StartedAt    *Timestamp `json:"started_at,omitempty"`
	FinishedAt   *Timestamp `json:"finished_at,omitempty"`
}

// UnmarshalJSON decodes result_json leniently: a result that does not decode
// is dropped so the job's status and error fields still come through.
func (j *AnalysisJob) UnmarshalJSON(b []byte) error {
	type plain AnalysisJob
	aux := struct {
		*plain
		Result json.RawMessage `json:"result_json"`
	}{plain: (*plain)(j)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	j.Result = decodeLenient[JobResult](aux.Result)
	return nil
}

// Duration returns the processing time for a started job, measured against
// now when the job has not finished yet.
func (j *AnalysisJob) Duration(now time.Time) (time.Duration, bool) {
	if j == nil || j.StartedAt == nil {
		return 0, false
	}
	end := now
	if j.FinishedAt != nil {
		end = j.FinishedAt.Time
	}
	return end.Sub(j.StartedAt.Time), true
}

// Submission is the server's acknowledgement of a new analysis.
type Submission struct {
	ID     string    `json:"analysis_id"`
	Status JobStatus `json:"status"`
}

// Health is the response of GET /health.
type Health struct {
	Status         string   `json:"status"`
	EngineVersion  *string  `json:"engine_version,omitempty"`
	PolicyVersions []string `json:"policy_versions,omitempty"`
}
