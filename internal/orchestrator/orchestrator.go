package orchestrator

import (
	"context"
	"errors"
	"time"

	"tribune/internal/assessment"
	"tribune/internal/decision"
	"tribune/internal/ledger"
	"tribune/internal/logger"
	"tribune/internal/monitoring"
	"tribune/internal/portfolio"
	"tribune/internal/riskgate"
	"tribune/internal/signal"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	stageRiskGate = "risk_gate"
	stageDecision = "decision"
	stagePipeline = "pipeline"
)

// Config is the per-stage timeout and retry surface.
type Config struct {
	RegimeTimeout time.Duration
	EventTimeout  time.Duration
	RegimeRetry   RetryPolicy
	EventRetry    RetryPolicy
}

// Orchestrator is the workflow engine. It schedules the two assessment stages
// concurrently, joins them, feeds the risk gate, and renders the committee
// decision, owning retry policy, timeout policy, and failure-to-decision
// mapping along the way.
type Orchestrator struct {
	cfg    Config
	store  *signal.Store
	regime assessment.RegimeAssessor
	events assessment.EventAssessor
	gate   *riskgate.Engine
	book   portfolio.Provider
	led    ledger.Ledger
	cache  *decision.Cache

	nowFn  func() time.Time
	nextID func() string
}

func New(cfg Config, store *signal.Store, regime assessment.RegimeAssessor, events assessment.EventAssessor,
	gate *riskgate.Engine, book portfolio.Provider, led ledger.Ledger, cache *decision.Cache) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		regime: regime,
		events: events,
		gate:   gate,
		book:   book,
		led:    led,
		cache:  cache,
		nowFn:  time.Now,
		nextID: uuid.NewString,
	}
}

// Submit runs the full pipeline for one signal. A completed identifier
// returns its cached decision without touching any adapter; an in-flight or
// failed-but-not-abandoned identifier is a duplicate.
func (o *Orchestrator) Submit(ctx context.Context, sig signal.Signal) (decision.Decision, error) {
	if err := sig.Validate(); err != nil {
		return decision.Decision{}, err
	}
	if d, ok := o.lookupDecided(sig.ID); ok {
		monitoring.RecordCacheHit()
		return d, nil
	}

	h, err := o.store.Create(sig)
	if err != nil {
		return decision.Decision{}, err
	}
	logger.Infof("signal %s admitted (attempt=%d, symbol=%s, size=%s)",
		sig.ID, h.Attempt(), sig.Symbol, sig.ProposedSize.String())

	d, reason := o.run(ctx, h)
	if reason != nil {
		o.store.MarkFailed(h)
		o.recordFailure(sig, *reason)
		return decision.Decision{}, &FailedError{Reason: *reason}
	}
	return d, nil
}

// Decision returns the committee decision for a signal, if one was reached.
func (o *Orchestrator) Decision(signalID string) (decision.Decision, bool) {
	return o.lookupDecided(signalID)
}

// Abandon marks a failed run abandoned so the identifier can be resubmitted
// as a fresh attempt.
func (o *Orchestrator) Abandon(ctx context.Context, signalID string) error {
	if err := o.store.Abandon(signalID); err != nil {
		return err
	}
	now := o.nowFn()
	o.appendRecord(ledger.Record{
		ID:         o.nextID(),
		SignalID:   signalID,
		Stage:      stagePipeline,
		StartedAt:  now,
		FinishedAt: now,
		Outcome:    ledger.OutcomeFailure,
		Detail:     "run abandoned by caller",
	})
	return nil
}

// AuditTrail returns every ledger record for a signal, in append order.
func (o *Orchestrator) AuditTrail(ctx context.Context, signalID string) ([]ledger.Record, error) {
	return o.led.Records(ctx, signalID)
}

// Prune expires idempotency-cache entries and their decided store handles.
func (o *Orchestrator) Prune() {
	now := o.nowFn()
	expired := o.cache.Prune(now)
	removed := o.store.PruneDecided(now.Add(-o.cache.TTL()))
	if expired > 0 || removed > 0 {
		logger.Debugf("idempotency prune: cache=%d store=%d", expired, removed)
	}
}

func (o *Orchestrator) lookupDecided(signalID string) (decision.Decision, bool) {
	if d, ok := o.cache.Get(signalID, o.nowFn()); ok {
		return d, true
	}
	if h, ok := o.store.Get(signalID); ok {
		if raw, ok := h.Decision(); ok {
			if d, ok := raw.(decision.Decision); ok {
				return d, true
			}
		}
	}
	return decision.Decision{}, false
}

// run drives the state machine for one admitted handle. It returns either a
// decision or the structured failure reason; never both.
func (o *Orchestrator) run(ctx context.Context, h *signal.Handle) (decision.Decision, *FailureReason) {
	sig := h.Signal()

	// Admitted -> AssessingParallel. The two assessments are independent, so
	// they run without waiting on each other; the join below is the only
	// synchronization barrier in the pipeline.
	var (
		reg    assessment.Regime
		ev     assessment.EventRisk
		regErr error
		evErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var run stageRun
		reg, run, regErr = runWithRetry(gctx, o, sig, assessment.StageRegime,
			o.cfg.RegimeTimeout, o.cfg.RegimeRetry, o.regime.Assess)
		if regErr != nil {
			return regErr
		}
		return o.attach(gctx, h, signal.StageExecution{
			Stage:      assessment.StageRegime,
			Input:      sig,
			Output:     reg,
			StartedAt:  run.startedAt,
			FinishedAt: run.finishedAt,
			Retries:    run.retries,
		})
	})
	g.Go(func() error {
		var run stageRun
		ev, run, evErr = runWithRetry(gctx, o, sig, assessment.StageEventRisk,
			o.cfg.EventTimeout, o.cfg.EventRetry, o.events.Assess)
		if evErr != nil {
			return evErr
		}
		return o.attach(gctx, h, signal.StageExecution{
			Stage:      assessment.StageEventRisk,
			Input:      sig,
			Output:     ev,
			StartedAt:  run.startedAt,
			FinishedAt: run.finishedAt,
			Retries:    run.retries,
		})
	})
	joinErr := g.Wait()

	if ctx.Err() != nil {
		return decision.Decision{}, o.cancelled(sig)
	}
	if joinErr != nil {
		reason := o.classifyJoinFailure(regErr, evErr, joinErr)
		return decision.Decision{}, &reason
	}

	// Joined -> RiskGating. The gate is pure and local: one synchronous call,
	// no retry. It runs even under a veto so the audit trail records what
	// sizing would have been.
	snap := o.book.Snapshot()
	gateStart := o.nowFn()
	verdict, err := o.gate.Evaluate(sig, reg, ev, snap)
	gateEnd := o.nowFn()
	monitoring.ObserveStage(stageRiskGate, outcomeOf(err), gateEnd.Sub(gateStart))
	if err != nil {
		// Data-integrity fault: log the full input surface for diagnosis.
		logger.Errorf("risk gate fault for %s: %v (input=%s)",
			sig.ID, err, string(ledger.MarshalSnapshot(map[string]any{
				"signal": sig, "regime": reg, "event_risk": ev, "book_as_of": snap.AsOf,
			})))
		return decision.Decision{}, &FailureReason{
			Code:    FailureRiskGateFault,
			Stage:   stageRiskGate,
			Message: err.Error(),
		}
	}
	if err := o.attach(ctx, h, signal.StageExecution{
		Stage:      stageRiskGate,
		Input:      map[string]any{"signal": sig, "regime": reg, "event_risk": ev, "book_as_of": snap.AsOf},
		Output:     verdict,
		StartedAt:  gateStart,
		FinishedAt: gateEnd,
	}); err != nil {
		return decision.Decision{}, &FailureReason{Code: FailureInternal, Stage: stageRiskGate, Message: err.Error()}
	}

	// RiskGating -> Decided.
	d := decision.Compose(o.nextID(), sig.ID, sig.ProposedSize, reg, ev, verdict, o.nowFn())
	if err := o.attach(ctx, h, signal.StageExecution{
		Stage:      stageDecision,
		Input:      verdict,
		Output:     d,
		StartedAt:  d.DecidedAt,
		FinishedAt: d.DecidedAt,
	}); err != nil {
		return decision.Decision{}, &FailureReason{Code: FailureInternal, Stage: stageDecision, Message: err.Error()}
	}
	o.store.MarkDecided(h, d)
	o.cache.Set(d)
	monitoring.RecordDecision(string(d.Outcome))
	logger.Infof("signal %s decided: %s (size=%s)", sig.ID, d.Outcome, d.AdjustedSize.String())
	return d, nil
}

func (o *Orchestrator) attach(ctx context.Context, h *signal.Handle, exec signal.StageExecution) error {
	// Ledger appends must survive caller cancellation: the audit trail of a
	// cancelled run is still evidence.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	return o.store.Attach(ctx, h, exec)
}

func (o *Orchestrator) cancelled(sig signal.Signal) *FailureReason {
	now := o.nowFn()
	o.appendRecord(ledger.Record{
		ID:         o.nextID(),
		SignalID:   sig.ID,
		Stage:      stagePipeline,
		StartedAt:  now,
		FinishedAt: now,
		Outcome:    ledger.OutcomeCancelled,
		Detail:     "cancelled by caller",
	})
	return &FailureReason{Code: FailureCancelled, Message: "cancelled by caller"}
}

// classifyJoinFailure maps assessment-stage errors onto the failure taxonomy.
// The errgroup cancels the sibling stage when one fails, so a context error
// on one side never masks the stage that actually failed.
func (o *Orchestrator) classifyJoinFailure(regErr, evErr, joinErr error) FailureReason {
	staged := []struct {
		stage string
		err   error
	}{
		{assessment.StageRegime, regErr},
		{assessment.StageEventRisk, evErr},
	}
	for _, s := range staged {
		if ae, ok := assessment.AsAdapterError(s.err); ok && ae.Kind == assessment.KindContractViolation {
			return FailureReason{Code: FailureContractViolation, Stage: s.stage, Message: ae.Error()}
		}
	}
	if ae, ok := assessment.AsAdapterError(regErr); ok {
		return FailureReason{Code: FailurePartialAssessment, Stage: assessment.StageRegime, Message: ae.Error()}
	}
	if ae, ok := assessment.AsAdapterError(evErr); ok {
		return FailureReason{Code: FailurePartialAssessment, Stage: assessment.StageEventRisk, Message: ae.Error()}
	}
	return FailureReason{Code: FailureInternal, Message: joinErr.Error()}
}

func (o *Orchestrator) recordFailure(sig signal.Signal, reason FailureReason) {
	now := o.nowFn()
	outcome := ledger.OutcomeFailure
	if reason.Code == FailureCancelled {
		outcome = ledger.OutcomeCancelled
	}
	o.appendRecord(ledger.Record{
		ID:         o.nextID(),
		SignalID:   sig.ID,
		Stage:      stagePipeline,
		Input:      ledger.MarshalSnapshot(sig),
		Output:     ledger.MarshalSnapshot(reason),
		StartedAt:  now,
		FinishedAt: now,
		Outcome:    outcome,
		Detail:     reason.Message,
	})
	monitoring.RecordFailure(string(reason.Code))
	logger.Warnf("signal %s failed: %s", sig.ID, (&FailedError{Reason: reason}).Error())
}

func (o *Orchestrator) appendRecord(rec ledger.Record) {
	if err := o.led.Append(context.Background(), rec); err != nil {
		logger.Errorf("audit ledger append failed (signal=%s stage=%s): %v", rec.SignalID, rec.Stage, err)
	}
}

func outcomeOf(err error) string {
	if err != nil {
		return string(ledger.OutcomeFailure)
	}
	return string(ledger.OutcomeSuccess)
}

// errors referenced by transport for status mapping.
var (
	ErrDuplicateSignal = signal.ErrDuplicateSignal
	ErrUnknownSignal   = signal.ErrUnknownSignal
)

// IsDuplicate reports whether err is the duplicate-submission rejection.
func IsDuplicate(err error) bool { return errors.Is(err, signal.ErrDuplicateSignal) }
