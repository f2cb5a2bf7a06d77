package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tribune/internal/signal"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
)

// StageRegime and StageEventRisk name the two assessment stages everywhere:
// adapters, audit records, retry policy, failure reasons.
const (
	StageRegime    = "regime"
	StageEventRisk = "event_risk"
)

// RegimeAssessor produces a regime assessment within a caller-supplied
// timeout, or fails with an AdapterError. Never a partial result.
type RegimeAssessor interface {
	Assess(ctx context.Context, sig signal.Signal, timeout time.Duration) (Regime, error)
}

// RegimeAdapter normalizes the forecasting collaborator's payload into the
// internal Regime schema.
type RegimeAdapter struct {
	client       RegimeClient
	breaker      *gobreaker.CircuitBreaker
	schema       *jsonschema.Schema
	lookbackDays int
}

func NewRegimeAdapter(client RegimeClient, lookbackDays int) (*RegimeAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("regime adapter requires a client")
	}
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	schema, err := compileSchema("regime.json", regimeSchemaJSON)
	if err != nil {
		return nil, err
	}
	return &RegimeAdapter{
		client:       client,
		breaker:      newBreaker(StageRegime),
		schema:       schema,
		lookbackDays: lookbackDays,
	}, nil
}

func (a *RegimeAdapter) Assess(ctx context.Context, sig signal.Signal, timeout time.Duration) (Regime, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := a.breaker.Execute(func() (any, error) {
		return a.client.Forecast(callCtx, sig.Symbol, a.lookbackDays)
	})
	if err != nil {
		return Regime{}, classifyCallError(StageRegime, ctx, callCtx, err)
	}
	payload, _ := raw.([]byte)
	if err := validatePayload(a.schema, payload); err != nil {
		return Regime{}, contractErr(StageRegime, err)
	}
	return a.normalize(payload)
}

func (a *RegimeAdapter) normalize(payload []byte) (Regime, error) {
	doc := gjson.ParseBytes(payload)
	label, ok := ParseRegimeLabel(doc.Get("regime").String())
	if !ok {
		return Regime{}, contractErr(StageRegime,
			fmt.Errorf("unknown regime label %q", doc.Get("regime").String()))
	}
	return Regime{
		Label:        label,
		TermSlope:    doc.Get("term_slope").Float(),
		ZScore:       doc.Get("z_score").Float(),
		Confidence:   doc.Get("confidence").Float(),
		ModelVersion: doc.Get("model_version").String(),
	}, nil
}

// classifyCallError maps a failed collaborator call onto the adapter error
// taxonomy. Caller cancellation passes through untyped so the orchestrator can
// tell it apart from a stage failure.
func classifyCallError(stage string, parent, call context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	switch {
	case breakerOpen(err):
		return unavailableErr(stage, err)
	case errors.Is(err, context.DeadlineExceeded) || call.Err() == context.DeadlineExceeded:
		return timeoutErr(stage, err)
	default:
		return unavailableErr(stage, err)
	}
}

func validatePayload(schema *jsonschema.Schema, payload []byte) error {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("payload is not valid json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("payload violates contract: %w", err)
	}
	return nil
}
