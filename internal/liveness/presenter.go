// Package liveness turns the engine's scoring breakdown into labelled,
// threshold-relative display data.
package liveness

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/kiranshivaraju/bioverify/pkg/models"
)

// DefaultTauAuth is used when the breakdown carries no decision threshold.
const DefaultTauAuth = 0.45

// FeatureView is one labelled feature.
type FeatureView struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
	Label  Label   `json:"label"`
	Tier   Tier    `json:"tier"`
}

// ScoreView positions the aggregate liveness score against tau_auth.
type ScoreView struct {
	Score        float64 `json:"score"`
	TauAuth      float64 `json:"tau_auth"`
	TauDefaulted bool    `json:"tau_defaulted,omitempty"`
	Lean         Lean    `json:"lean"`
	Margin       float64 `json:"margin"`
}

// GateView describes the multiplicative gate penalty.
type GateView struct {
	Factor        float64  `json:"factor"`
	Penalized     bool     `json:"penalized"`
	BaseScore     *float64 `json:"base_score,omitempty"`
	LivenessScore *float64 `json:"liveness_score,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// GateHighlight is a hard gate that pulled the score down.
type GateHighlight struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Gate      float64 `json:"gate"`
}

// View is everything the presenter derives from one breakdown. Each part is
// optional and missing input yields the zero value for that part.
type View struct {
	Features     []FeatureView   `json:"features,omitempty"`
	Score        *ScoreView      `json:"score,omitempty"`
	Gate         *GateView       `json:"gate,omitempty"`
	Highlights   []GateHighlight `json:"gate_highlights,omitempty"`
	AggregateSQI *float64        `json:"aggregate_sqi,omitempty"`
}

// Empty reports whether there is nothing to render.
func (v View) Empty() bool {
	return len(v.Features) == 0 && v.Score == nil && v.Gate == nil &&
		len(v.Highlights) == 0 && v.AggregateSQI == nil
}

// Present derives the view for b. A nil breakdown gives an empty view.
func Present(b *models.ScoringBreakdown) View {
	if b == nil {
		return View{}
	}
	return View{
		Features:     features(b.Features),
		Score:        score(b.LivenessScore, b.TauAuth),
		Gate:         gate(b),
		Highlights:   highlights(b.Gates),
		AggregateSQI: finite(b.AggregateSQI),
	}
}

// features orders by descending weight, then id.
func features(in map[string]models.FeatureScore) []FeatureView {
	if len(in) == 0 {
		return nil
	}
	out := make([]FeatureView, 0, len(in))
	for _, id := range slices.Sorted(maps.Keys(in)) {
		f := in[id]
		label := LabelFor(f.Value)
		out = append(out, FeatureView{
			ID:     id,
			Name:   FeatureName(id),
			Value:  f.Value,
			Weight: f.Weight,
			Label:  label,
			Tier:   label.Tier(),
		})
	}
	slices.SortStableFunc(out, func(a, b FeatureView) int {
		return cmp.Compare(b.Weight, a.Weight)
	})
	return out
}

func score(liveness, tau *float64) *ScoreView {
	s := finite(liveness)
	if s == nil {
		return nil
	}

	v := ScoreView{Score: *s, TauAuth: DefaultTauAuth, TauDefaulted: true}
	if t := finite(tau); t != nil {
		v.TauAuth, v.TauDefaulted = *t, false
	}
	v.Margin = v.Score - v.TauAuth
	if v.Score >= v.TauAuth {
		v.Lean = LeanHuman
	} else {
		v.Lean = LeanSynthetic
	}
	return &v
}

func gate(b *models.ScoringBreakdown) *GateView {
	factor := finite(b.GateFactor)
	if factor == nil {
		return nil
	}

	v := GateView{
		Factor:        *factor,
		BaseScore:     finite(b.BaseScore),
		LivenessScore: finite(b.LivenessScore),
	}
	if v.Factor >= 1 {
		return &v
	}

	v.Penalized = true
	if v.BaseScore != nil && v.LivenessScore != nil {
		v.Message = fmt.Sprintf("A hard gate reduced the liveness score from %.2f to %.2f (gate factor %.2f)",
			*v.BaseScore, *v.LivenessScore, v.Factor)
	} else {
		v.Message = fmt.Sprintf("A hard gate penalized the liveness score (gate factor %.2f)", v.Factor)
	}
	return &v
}

// highlights lists gates below 1, most severe first.
func highlights(in map[string]models.GateScore) []GateHighlight {
	var out []GateHighlight
	for _, id := range slices.Sorted(maps.Keys(in)) {
		g := in[id]
		if math.IsNaN(g.Gate) || g.Gate >= 1 {
			continue
		}
		out = append(out, GateHighlight{
			ID:        id,
			Name:      FeatureName(id),
			Value:     g.Value,
			Threshold: g.Threshold,
			Gate:      g.Gate,
		})
	}
	slices.SortStableFunc(out, func(a, b GateHighlight) int {
		return cmp.Compare(a.Gate, b.Gate)
	})
	return out
}

func finite(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	v := *p
	return &v
}
