package liveness

import (
	"fmt"
	"math"
	"strings"
)

// Feature-value thresholds. Both are inclusive toward the higher tier.
const (
	StrongThreshold   = 0.7
	ModerateThreshold = 0.4
)

// Label is the categorical strength of a feature value.
type Label int

const (
	LabelNone Label = iota
	LabelWeak
	LabelModerate
	LabelStrong
)

// LabelFor maps a feature value in [0, 1] to a label. Zero, negative and
// NaN values are None.
func LabelFor(v float64) Label {
	switch {
	case math.IsNaN(v) || v <= 0:
		return LabelNone
	case v >= StrongThreshold:
		return LabelStrong
	case v >= ModerateThreshold:
		return LabelModerate
	default:
		return LabelWeak
	}
}

func (l Label) String() string {
	switch l {
	case LabelNone:
		return "None"
	case LabelWeak:
		return "Weak"
	case LabelModerate:
		return "Moderate"
	case LabelStrong:
		return "Strong"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Tier is the color band of a label.
func (l Label) Tier() Tier {
	switch l {
	case LabelStrong:
		return TierHigh
	case LabelModerate:
		return TierMid
	default:
		return TierLow
	}
}

func (l Label) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Tier is a three-step band used for bars and indicators.
type Tier int

const (
	TierLow Tier = iota
	TierMid
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMid:
		return "mid"
	case TierHigh:
		return "high"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

func (t Tier) Color() string {
	switch t {
	case TierHigh:
		return "green"
	case TierMid:
		return "amber"
	default:
		return "red"
	}
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Lean is the side of the decision threshold a score falls on.
type Lean int

const (
	LeanSynthetic Lean = iota
	LeanHuman
)

func (l Lean) String() string {
	switch l {
	case LeanHuman:
		return "human-leaning"
	case LeanSynthetic:
		return "synthetic-leaning"
	default:
		return fmt.Sprintf("Lean(%d)", int(l))
	}
}

func (l Lean) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// FeatureName returns the display name of a feature or gate id. Unknown ids
// are rendered from their snake_case form.
func FeatureName(id string) string {
	switch id {
	case "hr_plausibility":
		return "Heart-rate plausibility"
	case "spectral_concentration":
		return "Spectral concentration"
	case "spectral_sharpness":
		return "Spectral sharpness"
	case "inter_region_coherence":
		return "Inter-region coherence"
	case "phase_coherence":
		return "Pulse transit (phase)"
	case "periodicity":
		return "Periodicity"
	case "harmonic_structure":
		return "Harmonic structure"
	case "hrv":
		return "Heart-rate variability"
	case "temporal_stability":
		return "Temporal stability"
	case "respiratory":
		return "Respiratory modulation"
	default:
		s := strings.ReplaceAll(id, "_", " ")
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	}
}
