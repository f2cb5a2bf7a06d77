package riskgate

import (
	"fmt"

	"tribune/internal/assessment"
	"tribune/internal/portfolio"
	"tribune/internal/signal"

	"github.com/shopspring/decimal"
)

// expectedShortfall multipliers for a standard normal tail, keyed by
// confidence level. Fixed table so every process computes the same number.
var esMultipliers = map[string]decimal.Decimal{
	"0.9":   decimal.RequireFromString("1.7550"),
	"0.95":  decimal.RequireFromString("2.0627"),
	"0.975": decimal.RequireFromString("2.3378"),
	"0.99":  decimal.RequireFromString("2.6652"),
}

const cvarSearchIterations = 48

// Engine applies the portfolio constraints in fixed order: sector hard cap,
// then correlation, then CVaR. It is a pure function of its inputs: no clock,
// no randomness, no external calls. This is the audit anchor of the pipeline.
type Engine struct {
	limits Limits
	esMult decimal.Decimal
}

func New(limits Limits) (*Engine, error) {
	if err := limits.validate(); err != nil {
		return nil, fmt.Errorf("risk gate: %w", err)
	}
	mult, ok := esMultipliers[fmt.Sprintf("%g", limits.CVaRConfidence)]
	if !ok {
		mult = esMultipliers["0.95"]
	}
	return &Engine{limits: limits, esMult: mult}, nil
}

// Evaluate sizes the proposed trade against the book. The event-risk
// assessment is part of the verdict's input surface for replay, even though a
// veto is decided above the gate: the gate runs either way so the audit trail
// records what sizing would have been.
func (e *Engine) Evaluate(sig signal.Signal, regime assessment.Regime, events assessment.EventRisk, snap *portfolio.Snapshot) (Verdict, error) {
	if snap == nil {
		return Verdict{}, fmt.Errorf("risk gate: nil portfolio snapshot")
	}
	if err := snap.Validate(); err != nil {
		return Verdict{}, fmt.Errorf("risk gate: %w", err)
	}
	total := snap.TotalValue()
	if total.Sign() <= 0 {
		return Verdict{}, fmt.Errorf("risk gate: portfolio has no value")
	}
	price, ok := snap.PriceOf(sig.Symbol)
	if !ok {
		return Verdict{}, fmt.Errorf("risk gate: no reference price for %s", sig.Symbol)
	}
	vol, ok := snap.VolatilityOf(sig.Symbol)
	if !ok {
		return Verdict{}, fmt.Errorf("risk gate: no volatility for %s", sig.Symbol)
	}

	size := sig.ProposedSize

	// Step 1: sector hard cap. A breach rejects outright; partial sizing is
	// not allowed to creep under a mandate limit.
	sector := snap.SectorOf(sig.Symbol)
	sectorExposure := snap.SectorValue(sector).Add(size.Mul(price)).Div(total)
	if sectorExposure.GreaterThan(e.limits.sectorLimitFor(sector)) {
		return Verdict{
			Approved:     false,
			AdjustedSize: decimal.Zero,
			Violated:     []Constraint{ConstraintSectorLimit},
			Deltas:       Deltas{SectorExposure: sectorExposure},
		}, nil
	}

	var binding []Constraint

	// Step 2: correlation budget, proportional size-down.
	bookScore := e.correlationBookScore(sig.Symbol, snap, total)
	contribution := e.correlationContribution(size, price, total, bookScore)
	if contribution.GreaterThan(e.limits.CorrelationThreshold) {
		binding = append(binding, ConstraintCorrelation)
		scale := e.limits.CorrelationThreshold.Div(contribution)
		size = size.Mul(scale).Floor()
		for i := 0; i < 4 && size.Sign() > 0; i++ {
			contribution = e.correlationContribution(size, price, total, bookScore)
			if !contribution.GreaterThan(e.limits.CorrelationThreshold) {
				break
			}
			size = size.Mul(e.limits.CorrelationThreshold.Div(contribution)).Floor()
		}
		if size.Sign() <= 0 {
			size = decimal.Zero
		}
	}

	// Step 3: CVaR budget, binary search on size.
	cvarRate := e.cvarRate(vol, regime.Label, price, total)
	cvar := e.cvarContribution(size, cvarRate)
	if size.Sign() > 0 && cvar.GreaterThan(e.limits.CVaRBudget) {
		binding = append(binding, ConstraintCVaR)
		size = e.searchCVaRSize(size, cvarRate)
	}

	deltas := Deltas{
		SectorExposure:          snap.SectorValue(sector).Add(size.Mul(price)).Div(total),
		CorrelationContribution: e.correlationContribution(size, price, total, bookScore),
		CVaRContribution:        e.cvarContribution(size, cvarRate),
	}
	if size.Sign() <= 0 {
		violated := make([]Constraint, len(binding))
		copy(violated, binding)
		return Verdict{
			Approved:     false,
			AdjustedSize: decimal.Zero,
			Violated:     violated,
			Deltas:       deltas,
		}, nil
	}
	return Verdict{
		Approved:     true,
		AdjustedSize: size,
		Binding:      binding,
		Deltas:       deltas,
	}, nil
}

// correlationBookScore is the position-weighted absolute correlation of the
// candidate symbol against the existing book.
func (e *Engine) correlationBookScore(symbol string, snap *portfolio.Snapshot, total decimal.Decimal) decimal.Decimal {
	score := decimal.Zero
	for _, pos := range snap.Positions {
		rho := decimal.NewFromFloat(snap.Correlation(symbol, pos.Symbol)).Abs()
		weight := pos.Value().Div(total)
		score = score.Add(weight.Mul(rho))
	}
	return score
}

// correlationContribution is the marginal trade weight times the book score,
// linear in size so the proportional reduction is exact.
func (e *Engine) correlationContribution(size, price, total, bookScore decimal.Decimal) decimal.Decimal {
	return size.Mul(price).Div(total).Mul(bookScore)
}

// cvarRate is the marginal CVaR contribution per unit of size, as a fraction
// of book value: ES multiplier x volatility x regime stress x price / total.
func (e *Engine) cvarRate(vol float64, label assessment.RegimeLabel, price, total decimal.Decimal) decimal.Decimal {
	return e.esMult.
		Mul(decimal.NewFromFloat(vol)).
		Mul(decimal.NewFromFloat(label.StressMultiplier())).
		Mul(price).
		Div(total)
}

func (e *Engine) cvarContribution(size, rate decimal.Decimal) decimal.Decimal {
	return size.Mul(rate)
}

// searchCVaRSize finds the largest whole size within the CVaR budget via a
// fixed-iteration binary search, so the result is identical across processes.
func (e *Engine) searchCVaRSize(size, rate decimal.Decimal) decimal.Decimal {
	lo := decimal.Zero
	hi := size
	two := decimal.NewFromInt(2)
	for i := 0; i < cvarSearchIterations; i++ {
		mid := lo.Add(hi).Div(two)
		if e.cvarContribution(mid, rate).GreaterThan(e.limits.CVaRBudget) {
			hi = mid
		} else {
			lo = mid
		}
	}
	adjusted := lo.Floor()
	for adjusted.Sign() > 0 && e.cvarContribution(adjusted, rate).GreaterThan(e.limits.CVaRBudget) {
		adjusted = adjusted.Sub(decimal.NewFromInt(1))
	}
	if adjusted.Sign() < 0 {
		return decimal.Zero
	}
	return adjusted
}
