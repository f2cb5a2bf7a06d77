package pipelinehttp

import (
	"fmt"
	"time"

	"tribune/internal/decision"
	"tribune/internal/ledger"
	"tribune/internal/signal"

	"github.com/shopspring/decimal"
)

// submitRequest is the intake shape for POST /api/signals.
type submitRequest struct {
	ID           string `json:"id" binding:"required"`
	Symbol       string `json:"symbol" binding:"required"`
	Direction    string `json:"direction" binding:"required"`
	ProposedSize string `json:"proposed_size" binding:"required"`
	Timestamp    string `json:"timestamp"`
	Strategy     string `json:"strategy"`
}

func (r submitRequest) toSignal(now time.Time) (signal.Signal, error) {
	dir, err := signal.ParseDirection(r.Direction)
	if err != nil {
		return signal.Signal{}, err
	}
	size, err := decimal.NewFromString(r.ProposedSize)
	if err != nil {
		return signal.Signal{}, fmt.Errorf("invalid proposed_size %q: %w", r.ProposedSize, err)
	}
	ts := now
	if r.Timestamp != "" {
		ts, err = time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			return signal.Signal{}, fmt.Errorf("invalid timestamp %q: %w", r.Timestamp, err)
		}
	}
	return signal.Signal{
		ID:           r.ID,
		Symbol:       r.Symbol,
		Direction:    dir,
		ProposedSize: size,
		Timestamp:    ts,
		Strategy:     r.Strategy,
	}, nil
}

// decisionView renders a committee decision with string-typed sizes so no
// client ever sees a float-rounded quantity.
type decisionView struct {
	ID           string             `json:"id"`
	SignalID     string             `json:"signal_id"`
	Outcome      string             `json:"outcome"`
	AdjustedSize string             `json:"adjusted_size"`
	Rationale    decision.Rationale `json:"rationale"`
	Regime       any                `json:"regime"`
	EventRisk    any                `json:"event_risk"`
	Verdict      any                `json:"risk_verdict"`
	DecidedAt    time.Time          `json:"decided_at"`
}

func renderDecision(d decision.Decision) decisionView {
	return decisionView{
		ID:           d.ID,
		SignalID:     d.SignalID,
		Outcome:      string(d.Outcome),
		AdjustedSize: d.AdjustedSize.String(),
		Rationale:    d.Rationale,
		Regime:       d.Regime,
		EventRisk:    d.EventRisk,
		Verdict:      d.Verdict,
		DecidedAt:    d.DecidedAt,
	}
}

// auditView renders one ledger record.
type auditView struct {
	ID         string    `json:"id"`
	Stage      string    `json:"stage"`
	Attempt    int       `json:"attempt"`
	Input      any       `json:"input,omitempty"`
	Output     any       `json:"output,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
}

func renderAudit(records []ledger.Record) []auditView {
	out := make([]auditView, 0, len(records))
	for _, rec := range records {
		out = append(out, auditView{
			ID:         rec.ID,
			Stage:      rec.Stage,
			Attempt:    rec.Attempt,
			Input:      rawJSON(rec.Input),
			Output:     rawJSON(rec.Output),
			StartedAt:  rec.StartedAt,
			FinishedAt: rec.FinishedAt,
			Outcome:    string(rec.Outcome),
			Detail:     rec.Detail,
		})
	}
	return out
}

func rawJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return jsonRaw(b)
}

type jsonRaw []byte

func (r jsonRaw) MarshalJSON() ([]byte, error) { return r, nil }
