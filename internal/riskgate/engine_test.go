package riskgate

import (
	"testing"
	"time"

	"tribune/internal/assessment"
	"tribune/internal/portfolio"
	"tribune/internal/signal"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	return Limits{
		SectorLimit:          decimal.RequireFromString("0.10"),
		CorrelationThreshold: decimal.RequireFromString("0.05"),
		CVaRBudget:           decimal.RequireFromString("0.02"),
		CVaRConfidence:       0.95,
	}
}

// testBook is a 100k book: 90k cash plus 5k TECH and 5k ENERGY holdings.
func testBook() *portfolio.Snapshot {
	return &portfolio.Snapshot{
		AsOf: time.Date(2026, 8, 28, 21, 0, 0, 0, time.UTC),
		Cash: decimal.NewFromInt(90000),
		Positions: []portfolio.Position{
			{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(500), Sector: "TECH"},
			{Symbol: "XOM", Quantity: decimal.NewFromInt(50), Price: decimal.NewFromInt(100), Sector: "ENERGY"},
		},
		Prices: map[string]decimal.Decimal{
			"NVDA": decimal.NewFromInt(100),
		},
		Sectors:    map[string]string{"NVDA": "TECH"},
		Volatility: map[string]float64{"NVDA": 0.0001, "AAPL": 0.02, "XOM": 0.02},
	}
}

func calmRegime() assessment.Regime {
	return assessment.Regime{Label: assessment.RegimeCalm, Confidence: 0.9, ModelVersion: "v3"}
}

func sig(symbol string, size int64) signal.Signal {
	return signal.Signal{
		ID:           "sig-" + symbol,
		Symbol:       symbol,
		Direction:    signal.DirectionLong,
		ProposedSize: decimal.NewFromInt(size),
		Timestamp:    time.Date(2026, 8, 28, 21, 0, 0, 0, time.UTC),
	}
}

func TestEngine_SectorHardCap(t *testing.T) {
	engine, err := New(testLimits())
	require.NoError(t, err)
	snap := testBook()

	t.Run("under the cap approves full size", func(t *testing.T) {
		// (5000 + 30*100) / 100000 = 8% against a 10% limit.
		v, err := engine.Evaluate(sig("NVDA", 30), calmRegime(), assessment.EventRisk{}, snap)
		require.NoError(t, err)
		assert.True(t, v.Approved)
		assert.True(t, v.AdjustedSize.Equal(decimal.NewFromInt(30)))
		assert.Empty(t, v.Violated)
		assert.Empty(t, v.Binding)
	})

	t.Run("exactly at the cap approves", func(t *testing.T) {
		// (5000 + 50*100) / 100000 = 10% exactly.
		v, err := engine.Evaluate(sig("NVDA", 50), calmRegime(), assessment.EventRisk{}, snap)
		require.NoError(t, err)
		assert.True(t, v.Approved)
		assert.True(t, v.AdjustedSize.Equal(decimal.NewFromInt(50)))
	})

	t.Run("over the cap rejects outright, no partial sizing", func(t *testing.T) {
		// (5000 + 70*100) / 100000 = 12% against a 10% limit.
		v, err := engine.Evaluate(sig("NVDA", 70), calmRegime(), assessment.EventRisk{}, snap)
		require.NoError(t, err)
		assert.False(t, v.Approved)
		assert.True(t, v.AdjustedSize.IsZero())
		assert.Equal(t, []Constraint{ConstraintSectorLimit}, v.Violated)
		assert.True(t, v.Deltas.SectorExposure.Equal(decimal.RequireFromString("0.12")))
	})

	t.Run("sector override lifts the cap for that sector only", func(t *testing.T) {
		limits := testLimits()
		limits.SectorOverrides = map[string]decimal.Decimal{"TECH": decimal.RequireFromString("0.15")}
		lifted, err := New(limits)
		require.NoError(t, err)

		v, err := lifted.Evaluate(sig("NVDA", 70), calmRegime(), assessment.EventRisk{}, snap)
		require.NoError(t, err)
		assert.True(t, v.Approved, "12% should pass under the 15% override")

		v, err = engine.Evaluate(sig("NVDA", 70), calmRegime(), assessment.EventRisk{}, snap)
		require.NoError(t, err)
		assert.False(t, v.Approved, "12% fails the base 10% limit")
	})
}

func TestEngine_CorrelationProportionalReduction(t *testing.T) {
	limits := testLimits()
	limits.CorrelationThreshold = decimal.RequireFromString("0.03")
	limits.CVaRBudget = decimal.NewFromInt(1)
	engine, err := New(limits)
	require.NoError(t, err)

	// 50k of MEGA perfectly correlated with the candidate gives a book score
	// of 0.5. The candidate sits in its own sector so only correlation binds.
	snap := &portfolio.Snapshot{
		Cash: decimal.NewFromInt(50000),
		Positions: []portfolio.Position{
			{Symbol: "MEGA", Quantity: decimal.NewFromInt(500), Price: decimal.NewFromInt(100), Sector: "INDEX"},
		},
		Prices:     map[string]decimal.Decimal{"NVDA": decimal.NewFromInt(10)},
		Sectors:    map[string]string{"NVDA": "SEMIS"},
		Volatility: map[string]float64{"NVDA": 0.0001},
		Correlations: map[string]map[string]float64{
			"NVDA": {"MEGA": 1.0},
		},
	}
	require.NoError(t, snap.Validate())

	// Contribution at 1000 shares: (1000*10/100000) * 0.5 = 0.05 > 0.03.
	// Proportional scale 0.03/0.05 = 0.6 lands exactly on 600 shares.
	v, err := engine.Evaluate(sig("NVDA", 1000), calmRegime(), assessment.EventRisk{}, snap)
	require.NoError(t, err)
	assert.True(t, v.Approved)
	assert.True(t, v.AdjustedSize.Equal(decimal.NewFromInt(600)),
		"got %s", v.AdjustedSize)
	assert.Equal(t, []Constraint{ConstraintCorrelation}, v.Binding)
	assert.Empty(t, v.Violated)
	assert.True(t, v.Deltas.CorrelationContribution.Equal(decimal.RequireFromString("0.03")))
}

func TestEngine_CVaRBinarySearch(t *testing.T) {
	// Sector cap lifted to 100% so only the CVaR budget binds.
	limits := testLimits()
	limits.SectorLimit = decimal.NewFromInt(1)
	engine, err := New(limits)
	require.NoError(t, err)

	snap := &portfolio.Snapshot{
		Cash:       decimal.NewFromInt(100000),
		Prices:     map[string]decimal.Decimal{"NVDA": decimal.NewFromInt(100)},
		Sectors:    map[string]string{"NVDA": "SEMIS"},
		Volatility: map[string]float64{"NVDA": 0.02},
	}
	require.NoError(t, snap.Validate())

	t.Run("calm regime", func(t *testing.T) {
		// rate = 2.0627 * 0.02 * 1.0 * 100/100000; budget 0.02 caps size at 484.
		v, err := engine.Evaluate(sig("NVDA", 1000), calmRegime(), assessment.EventRisk{}, snap)
		require.NoError(t, err)
		assert.True(t, v.Approved)
		assert.True(t, v.AdjustedSize.Equal(decimal.NewFromInt(484)), "got %s", v.AdjustedSize)
		assert.Equal(t, []Constraint{ConstraintCVaR}, v.Binding)
		assert.True(t, v.Deltas.CVaRContribution.LessThanOrEqual(decimal.RequireFromString("0.02")))
	})

	t.Run("stressed regime tightens the same budget", func(t *testing.T) {
		stressed := assessment.Regime{Label: assessment.RegimeStressed, Confidence: 0.8, ModelVersion: "v3"}
		v, err := engine.Evaluate(sig("NVDA", 1000), stressed, assessment.EventRisk{}, snap)
		require.NoError(t, err)
		assert.True(t, v.Approved)
		assert.True(t, v.AdjustedSize.Equal(decimal.NewFromInt(303)), "got %s", v.AdjustedSize)
	})

	t.Run("size inside the budget passes untouched", func(t *testing.T) {
		v, err := engine.Evaluate(sig("NVDA", 100), calmRegime(), assessment.EventRisk{}, snap)
		require.NoError(t, err)
		assert.True(t, v.Approved)
		assert.True(t, v.AdjustedSize.Equal(decimal.NewFromInt(100)))
		assert.Empty(t, v.Binding)
	})
}

func TestEngine_Deterministic(t *testing.T) {
	engine, err := New(testLimits())
	require.NoError(t, err)
	snap := testBook()
	s := sig("NVDA", 45)

	first, err := engine.Evaluate(s, calmRegime(), assessment.EventRisk{}, snap)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Evaluate(s, calmRegime(), assessment.EventRisk{}, snap)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEngine_AdjustedNeverExceedsProposed(t *testing.T) {
	engine, err := New(testLimits())
	require.NoError(t, err)
	snap := testBook()

	for _, size := range []int64{1, 30, 50, 70, 500, 10000} {
		v, err := engine.Evaluate(sig("NVDA", size), calmRegime(), assessment.EventRisk{}, snap)
		require.NoError(t, err)
		assert.True(t, v.AdjustedSize.LessThanOrEqual(decimal.NewFromInt(size)),
			"size %d adjusted to %s", size, v.AdjustedSize)
	}
}

func TestEngine_InputErrors(t *testing.T) {
	engine, err := New(testLimits())
	require.NoError(t, err)
	snap := testBook()

	t.Run("nil snapshot", func(t *testing.T) {
		_, err := engine.Evaluate(sig("NVDA", 10), calmRegime(), assessment.EventRisk{}, nil)
		assert.Error(t, err)
	})

	t.Run("unknown reference price", func(t *testing.T) {
		_, err := engine.Evaluate(sig("ZZZZ", 10), calmRegime(), assessment.EventRisk{}, snap)
		assert.ErrorContains(t, err, "no reference price")
	})

	t.Run("missing volatility", func(t *testing.T) {
		bare := testBook()
		delete(bare.Volatility, "NVDA")
		_, err := engine.Evaluate(sig("NVDA", 10), calmRegime(), assessment.EventRisk{}, bare)
		assert.ErrorContains(t, err, "no volatility")
	})
}

func TestLimits_Validate(t *testing.T) {
	t.Run("rejects zero sector limit", func(t *testing.T) {
		limits := testLimits()
		limits.SectorLimit = decimal.Zero
		_, err := New(limits)
		assert.Error(t, err)
	})

	t.Run("rejects out-of-range override", func(t *testing.T) {
		limits := testLimits()
		limits.SectorOverrides = map[string]decimal.Decimal{"TECH": decimal.NewFromInt(2)}
		_, err := New(limits)
		assert.Error(t, err)
	})

	t.Run("unknown confidence falls back to 95%", func(t *testing.T) {
		limits := testLimits()
		limits.CVaRConfidence = 0.42
		engine, err := New(limits)
		require.NoError(t, err)
		assert.True(t, engine.esMult.Equal(esMultipliers["0.95"]))
	})
}
