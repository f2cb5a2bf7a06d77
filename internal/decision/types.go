package decision

import (
	"time"

	"tribune/internal/assessment"
	"tribune/internal/riskgate"

	"github.com/shopspring/decimal"
)

// Outcome is the committee's final word on a signal.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReject  Outcome = "reject"
	OutcomeReduce  Outcome = "approve-with-size-reduction"
)

// Rationale is the structured explanation of an outcome. No free text: every
// field is a value a downstream system can branch on.
type Rationale struct {
	Veto             bool                   `json:"veto"`
	VetoEvents       []string               `json:"veto_events,omitempty"`
	RegimeLabel      assessment.RegimeLabel `json:"regime_label"`
	RegimeConfidence float64                `json:"regime_confidence"`
	Violated         []riskgate.Constraint  `json:"violated,omitempty"`
	Binding          []riskgate.Constraint  `json:"binding,omitempty"`
}

// Decision is the terminal artifact of one pipeline run. It references
// exactly one regime assessment, one event-risk assessment, and one risk
// verdict, all for the same signal identifier. It is never updated; a changed
// view requires a brand-new signal.
type Decision struct {
	ID           string               `json:"id"`
	SignalID     string               `json:"signal_id"`
	Outcome      Outcome              `json:"outcome"`
	AdjustedSize decimal.Decimal      `json:"adjusted_size"`
	Rationale    Rationale            `json:"rationale"`
	Regime       assessment.Regime    `json:"regime"`
	EventRisk    assessment.EventRisk `json:"event_risk"`
	Verdict      riskgate.Verdict     `json:"risk_verdict"`
	DecidedAt    time.Time            `json:"decided_at"`
}

// Compose renders the final decision from the three upstream assessments. The
// event-risk veto is absolute: it forces a reject no matter how favorable the
// regime or the risk verdict.
func Compose(id, signalID string, proposed decimal.Decimal, regime assessment.Regime, events assessment.EventRisk, verdict riskgate.Verdict, decidedAt time.Time) Decision {
	d := Decision{
		ID:        id,
		SignalID:  signalID,
		Regime:    regime,
		EventRisk: events,
		Verdict:   verdict,
		DecidedAt: decidedAt,
		Rationale: Rationale{
			Veto:             events.Veto,
			RegimeLabel:      regime.Label,
			RegimeConfidence: regime.Confidence,
			Violated:         verdict.Violated,
			Binding:          verdict.Binding,
		},
	}
	if events.Veto {
		d.Outcome = OutcomeReject
		d.AdjustedSize = decimal.Zero
		for _, ev := range events.Events {
			d.Rationale.VetoEvents = append(d.Rationale.VetoEvents, ev.Kind+"/"+ev.Source)
		}
		return d
	}
	switch {
	case !verdict.Approved:
		d.Outcome = OutcomeReject
		d.AdjustedSize = decimal.Zero
	case verdict.AdjustedSize.LessThan(proposed):
		d.Outcome = OutcomeReduce
		d.AdjustedSize = verdict.AdjustedSize
	default:
		d.Outcome = OutcomeApprove
		d.AdjustedSize = verdict.AdjustedSize
	}
	return d
}
