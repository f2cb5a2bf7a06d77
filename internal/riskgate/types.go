package riskgate

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Constraint names a portfolio limit checked by the gate.
type Constraint string

const (
	ConstraintSectorLimit Constraint = "sector-limit"
	ConstraintCorrelation Constraint = "correlation-threshold"
	ConstraintCVaR        Constraint = "cvar-budget"
)

// Limits is the configured risk budget. Sector limits are hard caps;
// correlation and CVaR are soft budgets satisfied by sizing down.
type Limits struct {
	SectorLimit          decimal.Decimal
	SectorOverrides      map[string]decimal.Decimal
	CorrelationThreshold decimal.Decimal
	CVaRBudget           decimal.Decimal
	CVaRConfidence       float64
}

func (l Limits) sectorLimitFor(sector string) decimal.Decimal {
	if override, ok := l.SectorOverrides[sector]; ok {
		return override
	}
	return l.SectorLimit
}

func (l Limits) validate() error {
	if l.SectorLimit.Sign() <= 0 || l.SectorLimit.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("sector limit must be in (0,1]")
	}
	for sector, v := range l.SectorOverrides {
		if v.Sign() <= 0 || v.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("sector override %s must be in (0,1]", sector)
		}
	}
	if l.CorrelationThreshold.Sign() <= 0 {
		return fmt.Errorf("correlation threshold must be > 0")
	}
	if l.CVaRBudget.Sign() <= 0 {
		return fmt.Errorf("cvar budget must be > 0")
	}
	return nil
}

// Deltas are the exposure contributions computed for the verdict, at the
// final adjusted size.
type Deltas struct {
	SectorExposure          decimal.Decimal `json:"sector_exposure"`
	CorrelationContribution decimal.Decimal `json:"correlation_contribution"`
	CVaRContribution        decimal.Decimal `json:"cvar_contribution"`
}

// Verdict is the gate's output. AdjustedSize never exceeds the proposed size.
// Violated lists hard failures (empty when approved); Binding lists the soft
// constraints that forced a size reduction.
type Verdict struct {
	Approved     bool            `json:"approved"`
	AdjustedSize decimal.Decimal `json:"adjusted_size"`
	Violated     []Constraint    `json:"violated,omitempty"`
	Binding      []Constraint    `json:"binding,omitempty"`
	Deltas       Deltas          `json:"deltas"`
}
