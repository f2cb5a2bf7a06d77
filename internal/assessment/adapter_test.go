package assessment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tribune/internal/signal"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 8, 28, 21, 0, 0, 0, time.UTC)

func testSig() signal.Signal {
	return signal.Signal{
		ID:           "sig-1",
		Symbol:       "NVDA",
		Direction:    signal.DirectionLong,
		ProposedSize: decimal.NewFromInt(100),
		Timestamp:    asOf,
	}
}

type fakeRegimeClient struct {
	payload []byte
	err     error
	calls   int
}

func (c *fakeRegimeClient) Forecast(ctx context.Context, symbol string, lookbackDays int) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.payload, nil
}

type fakeEventClient struct {
	payload []byte
	err     error
}

func (c *fakeEventClient) Search(ctx context.Context, symbol string, asOf time.Time) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.payload, nil
}

func TestRegimeAdapter_Normalize(t *testing.T) {
	client := &fakeRegimeClient{payload: []byte(`{
		"regime": "Spike",
		"term_slope": -0.12,
		"z_score": 2.4,
		"confidence": 0.81,
		"model_version": "garch-v3"
	}`)}
	adapter, err := NewRegimeAdapter(client, 30)
	require.NoError(t, err)

	got, err := adapter.Assess(context.Background(), testSig(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, RegimeStressed, got.Label)
	assert.Equal(t, -0.12, got.TermSlope)
	assert.Equal(t, 0.81, got.Confidence)
	assert.Equal(t, "garch-v3", got.ModelVersion)
}

func TestRegimeAdapter_ContractViolations(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"missing required field", `{"regime": "calm", "term_slope": 0, "z_score": 0, "confidence": 0.5}`},
		{"wrong type", `{"regime": "calm", "term_slope": "steep", "z_score": 0, "confidence": 0.5, "model_version": "v1"}`},
		{"not json", `<html>bad gateway</html>`},
		{"unknown label", `{"regime": "sideways", "term_slope": 0, "z_score": 0, "confidence": 0.5, "model_version": "v1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter, err := NewRegimeAdapter(&fakeRegimeClient{payload: []byte(tc.payload)}, 30)
			require.NoError(t, err)

			_, err = adapter.Assess(context.Background(), testSig(), time.Second)
			ae, ok := AsAdapterError(err)
			require.True(t, ok, "want AdapterError, got %v", err)
			assert.Equal(t, KindContractViolation, ae.Kind)
			assert.False(t, ae.Retryable())
		})
	}
}

func TestRegimeAdapter_CallFailures(t *testing.T) {
	t.Run("collaborator error is retryable unavailable", func(t *testing.T) {
		adapter, err := NewRegimeAdapter(&fakeRegimeClient{err: fmt.Errorf("connection refused")}, 30)
		require.NoError(t, err)

		_, err = adapter.Assess(context.Background(), testSig(), time.Second)
		ae, ok := AsAdapterError(err)
		require.True(t, ok)
		assert.Equal(t, KindUnavailable, ae.Kind)
		assert.True(t, ae.Retryable())
	})

	t.Run("timeout is retryable", func(t *testing.T) {
		adapter, err := NewRegimeAdapter(&fakeRegimeClient{err: context.DeadlineExceeded}, 30)
		require.NoError(t, err)

		_, err = adapter.Assess(context.Background(), testSig(), time.Second)
		ae, ok := AsAdapterError(err)
		require.True(t, ok)
		assert.Equal(t, KindTimeout, ae.Kind)
		assert.True(t, ae.Retryable())
	})

	t.Run("caller cancellation passes through untyped", func(t *testing.T) {
		adapter, err := NewRegimeAdapter(&fakeRegimeClient{err: context.Canceled}, 30)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = adapter.Assess(ctx, testSig(), time.Second)
		assert.ErrorIs(t, err, context.Canceled)
		_, ok := AsAdapterError(err)
		assert.False(t, ok)
	})

	t.Run("open breaker reports unavailable", func(t *testing.T) {
		client := &fakeRegimeClient{err: fmt.Errorf("boom")}
		adapter, err := NewRegimeAdapter(client, 30)
		require.NoError(t, err)

		// Three consecutive failures trip the breaker; the fourth call is
		// rejected without reaching the collaborator.
		for i := 0; i < 3; i++ {
			_, _ = adapter.Assess(context.Background(), testSig(), time.Second)
		}
		calls := client.calls
		_, err = adapter.Assess(context.Background(), testSig(), time.Second)
		ae, ok := AsAdapterError(err)
		require.True(t, ok)
		assert.Equal(t, KindUnavailable, ae.Kind)
		assert.Equal(t, calls, client.calls, "open breaker must not call the collaborator")
	})
}

func TestEventRiskAdapter_VetoDerivation(t *testing.T) {
	newAdapter := func(t *testing.T, payload string) *EventRiskAdapter {
		t.Helper()
		adapter, err := NewEventRiskAdapter(&fakeEventClient{payload: []byte(payload)}, nil, 48*time.Hour)
		require.NoError(t, err)
		return adapter
	}

	t.Run("empty events means no veto", func(t *testing.T) {
		adapter := newAdapter(t, `{"events": [], "confidence": 0.9}`)
		got, err := adapter.Assess(context.Background(), testSig(), time.Second)
		require.NoError(t, err)
		assert.False(t, got.Veto)
		assert.Empty(t, got.Events)
	})

	t.Run("blocking kind inside the window vetoes", func(t *testing.T) {
		adapter := newAdapter(t, fmt.Sprintf(`{"events": [
			{"kind": "Earnings", "source": "edgar", "at": %q}
		], "confidence": 0.9}`, asOf.Add(24*time.Hour).Format(time.RFC3339)))
		got, err := adapter.Assess(context.Background(), testSig(), time.Second)
		require.NoError(t, err)
		assert.True(t, got.Veto, "kind matching is case-insensitive")
	})

	t.Run("blocking kind outside the window does not veto", func(t *testing.T) {
		adapter := newAdapter(t, fmt.Sprintf(`{"events": [
			{"kind": "earnings", "source": "edgar", "at": %q}
		], "confidence": 0.9}`, asOf.Add(72*time.Hour).Format(time.RFC3339)))
		got, err := adapter.Assess(context.Background(), testSig(), time.Second)
		require.NoError(t, err)
		assert.False(t, got.Veto)
		assert.Len(t, got.Events, 1, "non-blocking events are still reported")
	})

	t.Run("non-blocking kind never vetoes", func(t *testing.T) {
		adapter := newAdapter(t, fmt.Sprintf(`{"events": [
			{"kind": "conference", "source": "news", "at": %q}
		], "confidence": 0.9}`, asOf.Format(time.RFC3339)))
		got, err := adapter.Assess(context.Background(), testSig(), time.Second)
		require.NoError(t, err)
		assert.False(t, got.Veto)
	})

	t.Run("past events inside the window also veto", func(t *testing.T) {
		adapter := newAdapter(t, fmt.Sprintf(`{"events": [
			{"kind": "halt", "source": "exchange", "at": %q}
		], "confidence": 0.9}`, asOf.Add(-12*time.Hour).Format(time.RFC3339)))
		got, err := adapter.Assess(context.Background(), testSig(), time.Second)
		require.NoError(t, err)
		assert.True(t, got.Veto)
	})

	t.Run("events are sorted by time", func(t *testing.T) {
		adapter := newAdapter(t, fmt.Sprintf(`{"events": [
			{"kind": "conference", "source": "news", "at": %q},
			{"kind": "conference", "source": "news", "at": %q}
		], "confidence": 0.9}`,
			asOf.Add(80*time.Hour).Format(time.RFC3339),
			asOf.Add(60*time.Hour).Format(time.RFC3339)))
		got, err := adapter.Assess(context.Background(), testSig(), time.Second)
		require.NoError(t, err)
		require.Len(t, got.Events, 2)
		assert.True(t, got.Events[0].At.Before(got.Events[1].At))
	})

	t.Run("malformed event timestamp is a contract violation", func(t *testing.T) {
		adapter := newAdapter(t, `{"events": [
			{"kind": "earnings", "source": "edgar", "at": "yesterday"}
		], "confidence": 0.9}`)
		_, err := adapter.Assess(context.Background(), testSig(), time.Second)
		ae, ok := AsAdapterError(err)
		require.True(t, ok)
		assert.Equal(t, KindContractViolation, ae.Kind)
	})

	t.Run("missing confidence is a contract violation", func(t *testing.T) {
		adapter := newAdapter(t, `{"events": []}`)
		_, err := adapter.Assess(context.Background(), testSig(), time.Second)
		ae, ok := AsAdapterError(err)
		require.True(t, ok)
		assert.Equal(t, KindContractViolation, ae.Kind)
	})
}

func TestEventRiskAdapter_CustomVetoKinds(t *testing.T) {
	payload := fmt.Sprintf(`{"events": [
		{"kind": "earnings", "source": "edgar", "at": %q}
	], "confidence": 0.9}`, asOf.Format(time.RFC3339))

	adapter, err := NewEventRiskAdapter(&fakeEventClient{payload: []byte(payload)}, []string{"merger"}, time.Hour)
	require.NoError(t, err)

	got, err := adapter.Assess(context.Background(), testSig(), time.Second)
	require.NoError(t, err)
	assert.False(t, got.Veto, "earnings is not in the configured kinds")
}

func TestParseRegimeLabel(t *testing.T) {
	for raw, want := range map[string]RegimeLabel{
		"calm": RegimeCalm, "Quiet": RegimeCalm,
		"Normal": RegimeTransitional, "elevated": RegimeTransitional,
		"SPIKE": RegimeStressed, "crisis": RegimeStressed,
	} {
		got, ok := ParseRegimeLabel(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseRegimeLabel("sideways")
	assert.False(t, ok)
}

func TestStressMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, RegimeCalm.StressMultiplier())
	assert.Equal(t, 1.25, RegimeTransitional.StressMultiplier())
	assert.Equal(t, 1.6, RegimeStressed.StressMultiplier())
}

func TestAdapterError(t *testing.T) {
	inner := errors.New("boom")
	ae := unavailableErr(StageRegime, inner)
	assert.ErrorIs(t, ae, inner)
	assert.Contains(t, ae.Error(), "unavailable")
	assert.Contains(t, ae.Error(), StageRegime)
}
