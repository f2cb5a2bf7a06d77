package orchestrator

import (
	"context"
	"errors"
	"time"

	"tribune/internal/assessment"
	"tribune/internal/ledger"
	"tribune/internal/monitoring"
	"tribune/internal/signal"

	"tribune/internal/logger"
)

// RetryPolicy bounds how often a retryable adapter failure is retried.
// Backoff doubles per attempt up to MaxBackoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Backoff <= 0 {
		p.Backoff = 250 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 5 * time.Second
	}
	return p
}

type assessFn[T any] func(ctx context.Context, sig signal.Signal, timeout time.Duration) (T, error)

// stageRun is the bookkeeping for one stage's full execution, across retries.
type stageRun struct {
	startedAt  time.Time
	finishedAt time.Time
	retries    int
}

// runWithRetry drives one assessment stage to success or a terminal stage
// error. Timeouts and unavailability are retried with exponential backoff;
// contract violations abort immediately; caller cancellation passes through.
// Every failed attempt is appended to the audit ledger.
func runWithRetry[T any](ctx context.Context, o *Orchestrator, sig signal.Signal, stage string, timeout time.Duration, policy RetryPolicy, fn assessFn[T]) (T, stageRun, error) {
	var zero T
	policy = policy.normalized()
	run := stageRun{startedAt: o.nowFn()}
	backoff := policy.Backoff

	for attempt := 0; ; attempt++ {
		attemptStart := o.nowFn()
		out, err := fn(ctx, sig, timeout)
		attemptEnd := o.nowFn()
		if err == nil {
			run.finishedAt = attemptEnd
			run.retries = attempt
			monitoring.ObserveStage(stage, string(ledger.OutcomeSuccess), attemptEnd.Sub(attemptStart))
			return out, run, nil
		}

		outcome, detail := classifyAttempt(err)
		o.appendRecord(ledger.Record{
			ID:         o.nextID(),
			SignalID:   sig.ID,
			Stage:      stage,
			Attempt:    attempt,
			Input:      ledger.MarshalSnapshot(sig),
			StartedAt:  attemptStart,
			FinishedAt: attemptEnd,
			Outcome:    outcome,
			Detail:     detail,
		})
		monitoring.ObserveStage(stage, string(outcome), attemptEnd.Sub(attemptStart))

		ae, isAdapter := assessment.AsAdapterError(err)
		if !isAdapter || !ae.Retryable() || attempt >= policy.MaxRetries {
			run.finishedAt = attemptEnd
			run.retries = attempt
			return zero, run, err
		}

		logger.Stage(sig.ID, stage).Warn("retrying after adapter failure",
			"attempt", attempt+1, "backoff", backoff.String(), "cause", detail)
		monitoring.RecordRetry(stage)
		select {
		case <-ctx.Done():
			run.finishedAt = o.nowFn()
			run.retries = attempt
			return zero, run, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
}

func classifyAttempt(err error) (ledger.Outcome, string) {
	if ae, ok := assessment.AsAdapterError(err); ok {
		if ae.Kind == assessment.KindTimeout {
			return ledger.OutcomeTimeout, ae.Error()
		}
		return ledger.OutcomeFailure, ae.Error()
	}
	if errors.Is(err, context.Canceled) {
		return ledger.OutcomeCancelled, err.Error()
	}
	return ledger.OutcomeFailure, err.Error()
}
