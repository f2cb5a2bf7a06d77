package assessment

import (
	"strings"
	"time"
)

// RegimeLabel is the volatility environment classification.
type RegimeLabel string

const (
	RegimeCalm         RegimeLabel = "calm"
	RegimeTransitional RegimeLabel = "transitional"
	RegimeStressed     RegimeLabel = "stressed"
)

// ParseRegimeLabel folds collaborator vocabulary ("Calm", "Normal", "Spike",
// "crisis", ...) onto the three internal labels. Unknown labels are a contract
// problem, not a default.
func ParseRegimeLabel(raw string) (RegimeLabel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "calm", "quiet", "low":
		return RegimeCalm, true
	case "transitional", "normal", "elevated", "transition":
		return RegimeTransitional, true
	case "stressed", "stress", "spike", "crisis", "high":
		return RegimeStressed, true
	default:
		return "", false
	}
}

// StressMultiplier scales tail-risk estimates by regime. Calm books carry the
// model volatility as-is; stressed books are haircut harder.
func (l RegimeLabel) StressMultiplier() float64 {
	switch l {
	case RegimeTransitional:
		return 1.25
	case RegimeStressed:
		return 1.6
	default:
		return 1.0
	}
}

// Regime is the normalized output of the volatility-forecasting collaborator.
// Produced exactly once per signal and never mutated afterward.
type Regime struct {
	Label        RegimeLabel `json:"label"`
	TermSlope    float64     `json:"term_slope"`
	ZScore       float64     `json:"z_score"`
	Confidence   float64     `json:"confidence"`
	ModelVersion string      `json:"model_version"`
}

// EventDescriptor is one event found by the research collaborator.
type EventDescriptor struct {
	Kind   string    `json:"kind"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// EventRisk is the normalized event-risk verdict. Veto is absolute: a vetoed
// signal is rejected no matter what the other stages say.
type EventRisk struct {
	Veto       bool              `json:"veto"`
	Events     []EventDescriptor `json:"events"`
	Confidence float64           `json:"confidence"`
}
