package models

// ScoringBreakdown explains how the engine arrived at its liveness score.
// Every field is optional; presenters degrade to a partial view.
type ScoringBreakdown struct {
	LivenessScore *float64                `json:"liveness_score,omitempty"`
	BaseScore     *float64                `json:"base_score,omitempty"`
	GateFactor    *float64                `json:"gate_factor,omitempty"`
	TauAuth       *float64                `json:"tau_auth,omitempty"`
	AggregateSQI  *float64                `json:"aggregate_sqi,omitempty"`
	Features      map[string]FeatureScore `json:"features,omitempty"`
	Gates         map[string]GateScore    `json:"gates,omitempty"`
}

// FeatureScore is one weighted physiological feature, value in [0, 1].
type FeatureScore struct {
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// GateScore is a hard gate: Gate is min(1, Value/Threshold).
type GateScore struct {
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Gate      float64 `json:"gate"`
}
