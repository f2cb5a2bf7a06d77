package ledger

import (
	"context"
	"encoding/json"
	"time"
)

// Outcome classifies how a single stage execution ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCancelled Outcome = "cancelled"
)

// Record is one stage execution of one signal. Records are append-only: a
// pipeline run never rewrites history, it only adds to it.
type Record struct {
	ID         string
	SignalID   string
	Stage      string
	Attempt    int
	Input      json.RawMessage
	Output     json.RawMessage
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Outcome
	Detail     string
}

// Appender is the write side of the audit ledger.
type Appender interface {
	Append(ctx context.Context, rec Record) error
}

// Ledger adds the read-only query side used for replay and review.
type Ledger interface {
	Appender
	// Records returns every record for the signal in append order.
	Records(ctx context.Context, signalID string) ([]Record, error)
	Close() error
}

// MarshalSnapshot renders a stage input or output for the audit trail. A value
// that cannot marshal must not abort the pipeline, so it degrades to an error
// note instead.
func MarshalSnapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"marshal_error":` + strconvQuote(err.Error()) + `}`)
	}
	return b
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
