package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of the proposed trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Signal is one incoming trading signal. Immutable once admitted to the
// pipeline: every downstream stage only reads it.
type Signal struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Direction    Direction       `json:"direction"`
	ProposedSize decimal.Decimal `json:"proposed_size"`
	Timestamp    time.Time       `json:"timestamp"`
	Strategy     string          `json:"strategy"`
}

// Validate rejects signals that cannot be admitted.
func (s Signal) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("signal id cannot be empty")
	}
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("signal %s: symbol cannot be empty", s.ID)
	}
	switch s.Direction {
	case DirectionLong, DirectionShort:
	default:
		return fmt.Errorf("signal %s: invalid direction %q", s.ID, s.Direction)
	}
	if s.ProposedSize.Sign() <= 0 {
		return fmt.Errorf("signal %s: proposed size must be > 0", s.ID)
	}
	// The event-risk veto window is anchored to this timestamp.
	if s.Timestamp.IsZero() {
		return fmt.Errorf("signal %s: timestamp cannot be zero", s.ID)
	}
	return nil
}

// ParseDirection normalizes an external direction token.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return DirectionLong, nil
	case "short", "sell":
		return DirectionShort, nil
	default:
		return "", fmt.Errorf("unknown direction %q", raw)
	}
}
