package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Verdict is the engine's classification of an analyzed video.
type Verdict string

const (
	VerdictHuman        Verdict = "Human"
	VerdictSynthetic    Verdict = "Synthetic"
	VerdictInconclusive Verdict = "Inconclusive"
)

// ParseVerdict maps a wire value onto a known verdict.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "human":
		return VerdictHuman, nil
	case "synthetic":
		return VerdictSynthetic, nil
	case "inconclusive":
		return VerdictInconclusive, nil
	default:
		return "", fmt.Errorf("unknown verdict %q", s)
	}
}

// UnmarshalJSON leaves v unset for null or an empty string; failed jobs
// carry a result without a verdict.
func (v *Verdict) UnmarshalJSON(b []byte) error {
	var raw *string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("verdict: %w", err)
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	parsed, err := ParseVerdict(*raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// JobResult is the engine output attached to a finished analysis.
// Score and Confidence are opaque inputs in [0, 1].
type JobResult struct {
	Verdict        Verdict          `json:"verdict"`
	Score          float64          `json:"score"`
	Confidence     float64          `json:"confidence"`
	Reasons        []string         `json:"reasons"`
	MetricsSummary *MetricsSummary  `json:"metrics_summary,omitempty"`
	Metrics        *PipelineMetrics `json:"metrics,omitempty"`
	EvidenceIndex  *string          `json:"evidence_index,omitempty"`
	EngineVersion  *string          `json:"engine_version,omitempty"`
	PolicyVersion  *string          `json:"policy_version,omitempty"`
}

// MetricsSummary holds the scoring-side metrics. SQI and feature payloads are
// kept raw; only the scoring breakdown is interpreted client-side.
type MetricsSummary struct {
	SQI      json.RawMessage   `json:"sqi,omitempty"`
	Features json.RawMessage   `json:"features,omitempty"`
	Scoring  *ScoringBreakdown `json:"scoring,omitempty"`
}

func (s *MetricsSummary) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*s = MetricsSummary{}
		return nil
	}
	*s = MetricsSummary{
		SQI:      nonNull(raw["sqi"]),
		Features: nonNull(raw["features"]),
		Scoring:  decodeLenient[ScoringBreakdown](raw["scoring"]),
	}
	return nil
}

// decodeLenient decodes raw into a new T, returning nil when raw is absent,
// null, or malformed. Derivers treat nil sub-objects conservatively.
func decodeLenient[T any](raw json.RawMessage) *T {
	raw = nonNull(raw)
	if raw == nil {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil
	}
	return v
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
