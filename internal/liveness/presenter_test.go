package liveness

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/bioverify/pkg/models"
)

func f64(v float64) *float64 { return &v }

func TestLabelFor(t *testing.T) {
	tests := []struct {
		value float64
		want  Label
	}{
		{0.75, LabelStrong},
		{0.7, LabelStrong},
		{0.6999, LabelModerate},
		{0.5, LabelModerate},
		{0.4, LabelModerate},
		{0.3999, LabelWeak},
		{0.1, LabelWeak},
		{0.0, LabelNone},
		{-0.2, LabelNone},
		{math.NaN(), LabelNone},
		{1.0, LabelStrong},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LabelFor(tt.value), "LabelFor(%v)", tt.value)
	}
}

func TestLabel_TierMatchesLabel(t *testing.T) {
	assert.Equal(t, TierHigh, LabelStrong.Tier())
	assert.Equal(t, TierMid, LabelModerate.Tier())
	assert.Equal(t, TierLow, LabelWeak.Tier())
	assert.Equal(t, TierLow, LabelNone.Tier())

	assert.Equal(t, "green", TierHigh.Color())
	assert.Equal(t, "amber", TierMid.Color())
	assert.Equal(t, "red", TierLow.Color())
}

func TestPresent_NilBreakdown(t *testing.T) {
	v := Present(nil)
	assert.True(t, v.Empty())
}

func TestPresent_EmptyBreakdown(t *testing.T) {
	v := Present(&models.ScoringBreakdown{})
	assert.True(t, v.Empty())
	assert.Nil(t, v.Gate, "absent gate factor gives no gating message")
}

func TestPresent_Features(t *testing.T) {
	b := &models.ScoringBreakdown{
		Features: map[string]models.FeatureScore{
			"hrv":                    {Value: 0.1, Weight: 0.05},
			"spectral_concentration": {Value: 0.75, Weight: 0.20},
			"periodicity":            {Value: 0.5, Weight: 0.10},
			"respiratory":            {Value: 0, Weight: 0.10},
		},
	}

	want := []FeatureView{
		{ID: "spectral_concentration", Name: "Spectral concentration", Value: 0.75, Weight: 0.20, Label: LabelStrong, Tier: TierHigh},
		{ID: "periodicity", Name: "Periodicity", Value: 0.5, Weight: 0.10, Label: LabelModerate, Tier: TierMid},
		{ID: "respiratory", Name: "Respiratory modulation", Value: 0, Weight: 0.10, Label: LabelNone, Tier: TierLow},
		{ID: "hrv", Name: "Heart-rate variability", Value: 0.1, Weight: 0.05, Label: LabelWeak, Tier: TierLow},
	}
	if diff := cmp.Diff(want, Present(b).Features); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}
}

func TestPresent_ScorePosition(t *testing.T) {
	tests := []struct {
		name          string
		score, tau    *float64
		wantLean      Lean
		wantTau       float64
		wantDefaulted bool
	}{
		{"above threshold", f64(0.62), f64(0.5), LeanHuman, 0.5, false},
		{"at threshold", f64(0.5), f64(0.5), LeanHuman, 0.5, false},
		{"below threshold", f64(0.3), f64(0.5), LeanSynthetic, 0.5, false},
		{"default tau human", f64(0.45), nil, LeanHuman, DefaultTauAuth, true},
		{"default tau synthetic", f64(0.44), nil, LeanSynthetic, DefaultTauAuth, true},
		{"NaN tau falls back", f64(0.46), f64(math.NaN()), LeanHuman, DefaultTauAuth, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Present(&models.ScoringBreakdown{LivenessScore: tt.score, TauAuth: tt.tau})
			require.NotNil(t, v.Score)
			assert.Equal(t, tt.wantLean, v.Score.Lean)
			assert.Equal(t, tt.wantTau, v.Score.TauAuth)
			assert.Equal(t, tt.wantDefaulted, v.Score.TauDefaulted)
			assert.InDelta(t, *tt.score-tt.wantTau, v.Score.Margin, 1e-9)
		})
	}
}

func TestPresent_MissingScoreIsPartial(t *testing.T) {
	v := Present(&models.ScoringBreakdown{
		TauAuth:  f64(0.5),
		Features: map[string]models.FeatureScore{"hrv": {Value: 0.9, Weight: 1}},
	})
	assert.Nil(t, v.Score)
	assert.Len(t, v.Features, 1)
	assert.False(t, v.Empty())
}

func TestPresent_GatePenalty(t *testing.T) {
	v := Present(&models.ScoringBreakdown{
		GateFactor:    f64(0.6),
		BaseScore:     f64(0.8),
		LivenessScore: f64(0.48),
	})

	require.NotNil(t, v.Gate)
	assert.True(t, v.Gate.Penalized)
	assert.Equal(t, 0.6, v.Gate.Factor)
	require.NotNil(t, v.Gate.BaseScore)
	require.NotNil(t, v.Gate.LivenessScore)
	assert.Equal(t, 0.8, *v.Gate.BaseScore)
	assert.Equal(t, 0.48, *v.Gate.LivenessScore)
	assert.Equal(t, "A hard gate reduced the liveness score from 0.80 to 0.48 (gate factor 0.60)", v.Gate.Message)
}

func TestPresent_GatePenaltyWithoutScores(t *testing.T) {
	v := Present(&models.ScoringBreakdown{GateFactor: f64(0.25)})
	require.NotNil(t, v.Gate)
	assert.True(t, v.Gate.Penalized)
	assert.Equal(t, "A hard gate penalized the liveness score (gate factor 0.25)", v.Gate.Message)
}

func TestPresent_NoPenaltyAtFullGate(t *testing.T) {
	v := Present(&models.ScoringBreakdown{GateFactor: f64(1.0), BaseScore: f64(0.7), LivenessScore: f64(0.7)})
	require.NotNil(t, v.Gate)
	assert.False(t, v.Gate.Penalized)
	assert.Empty(t, v.Gate.Message)
}

func TestPresent_GateHighlights(t *testing.T) {
	v := Present(&models.ScoringBreakdown{
		Gates: map[string]models.GateScore{
			"spectral_concentration": {Value: 0.3, Threshold: 0.5, Gate: 0.6},
			"temporal_stability":     {Value: 0.9, Threshold: 0.3, Gate: 1.0},
			"respiratory":            {Value: 0.05, Threshold: 0.2, Gate: 0.25},
		},
	})

	want := []GateHighlight{
		{ID: "respiratory", Name: "Respiratory modulation", Value: 0.05, Threshold: 0.2, Gate: 0.25},
		{ID: "spectral_concentration", Name: "Spectral concentration", Value: 0.3, Threshold: 0.5, Gate: 0.6},
	}
	if diff := cmp.Diff(want, v.Highlights); diff != "" {
		t.Errorf("highlights mismatch (-want +got):\n%s", diff)
	}
}

func TestPresent_Idempotent(t *testing.T) {
	b := &models.ScoringBreakdown{
		LivenessScore: f64(0.48),
		BaseScore:     f64(0.8),
		GateFactor:    f64(0.6),
		Features: map[string]models.FeatureScore{
			"a": {Value: 0.5, Weight: 0.1},
			"b": {Value: 0.5, Weight: 0.1},
		},
	}
	if diff := cmp.Diff(Present(b), Present(b)); diff != "" {
		t.Errorf("Present not idempotent:\n%s", diff)
	}
}

func TestPresent_FromWirePayload(t *testing.T) {
	payload := `{
		"scoring": {
			"liveness_score": 0.31,
			"base_score": 0.62,
			"gate_factor": 0.5,
			"aggregate_sqi": 0.71,
			"gates": {"hr_plausibility": {"value": 0.1, "threshold": 0.4, "gate": 0.25}},
			"features": {"hr_plausibility": {"value": 0.1, "weight": 0.15}}
		}
	}`
	var ms models.MetricsSummary
	require.NoError(t, json.Unmarshal([]byte(payload), &ms))

	v := Present(ms.Scoring)
	require.NotNil(t, v.Score)
	assert.Equal(t, LeanSynthetic, v.Score.Lean)
	assert.True(t, v.Score.TauDefaulted)
	require.NotNil(t, v.AggregateSQI)
	assert.Equal(t, 0.71, *v.AggregateSQI)
	require.Len(t, v.Highlights, 1)
	assert.Equal(t, "Heart-rate plausibility", v.Highlights[0].Name)

	b, err := json.Marshal(v.Features[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"hr_plausibility","name":"Heart-rate plausibility","value":0.1,"weight":0.15,"label":"Weak","tier":"low"}`, string(b))
}

func TestFeatureName_Unknown(t *testing.T) {
	assert.Equal(t, "Blink rate", FeatureName("blink_rate"))
	assert.Equal(t, "", FeatureName(""))
}
