package portfolio

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Position is one holding in the current book.
type Position struct {
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Sector   string
}

func (p Position) Value() decimal.Decimal { return p.Quantity.Mul(p.Price) }

// Snapshot is an immutable read-only view of the book: positions, reference
// prices and sectors for non-held symbols, per-symbol volatility, and the
// correlation matrix. The pipeline never mutates it; each run reads one copy.
type Snapshot struct {
	AsOf         time.Time
	Cash         decimal.Decimal
	Positions    []Position
	Prices       map[string]decimal.Decimal
	Sectors      map[string]string
	Volatility   map[string]float64
	Correlations map[string]map[string]float64
}

// Validate rejects snapshots the risk gate cannot safely consume.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("nil portfolio snapshot")
	}
	if s.Cash.Sign() < 0 {
		return fmt.Errorf("cash balance must be >= 0")
	}
	seen := make(map[string]bool, len(s.Positions))
	for _, p := range s.Positions {
		sym := strings.ToUpper(strings.TrimSpace(p.Symbol))
		if sym == "" {
			return fmt.Errorf("position with empty symbol")
		}
		if seen[sym] {
			return fmt.Errorf("duplicate position %s", sym)
		}
		seen[sym] = true
		if p.Quantity.Sign() < 0 {
			return fmt.Errorf("position %s: negative quantity", sym)
		}
		if p.Price.Sign() <= 0 {
			return fmt.Errorf("position %s: price must be > 0", sym)
		}
	}
	for sym, px := range s.Prices {
		if px.Sign() <= 0 {
			return fmt.Errorf("price for %s must be > 0", sym)
		}
	}
	for sym, vol := range s.Volatility {
		if vol < 0 {
			return fmt.Errorf("volatility for %s must be >= 0", sym)
		}
	}
	for a, row := range s.Correlations {
		for b, rho := range row {
			if rho < -1 || rho > 1 {
				return fmt.Errorf("correlation %s/%s out of [-1,1]: %v", a, b, rho)
			}
		}
	}
	return nil
}

// normalize upper-cases symbols and sorts positions so downstream iteration
// order is deterministic.
func (s *Snapshot) normalize() {
	for i := range s.Positions {
		s.Positions[i].Symbol = strings.ToUpper(strings.TrimSpace(s.Positions[i].Symbol))
	}
	sort.Slice(s.Positions, func(i, j int) bool {
		return s.Positions[i].Symbol < s.Positions[j].Symbol
	})
	s.Prices = upperKeys(s.Prices)
	s.Sectors = upperKeys(s.Sectors)
	s.Volatility = upperKeys(s.Volatility)
	if s.Correlations != nil {
		fixed := make(map[string]map[string]float64, len(s.Correlations))
		for a, row := range s.Correlations {
			fixed[strings.ToUpper(strings.TrimSpace(a))] = upperKeys(row)
		}
		s.Correlations = fixed
	}
}

func upperKeys[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}

// TotalValue is the mark-to-snapshot value of the book: cash plus holdings.
// Buying converts cash into a holding, so the pipeline treats it as constant
// across a proposed trade.
func (s *Snapshot) TotalValue() decimal.Decimal {
	total := s.Cash
	for _, p := range s.Positions {
		total = total.Add(p.Value())
	}
	return total
}

// SectorValue sums holdings in one sector.
func (s *Snapshot) SectorValue(sector string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		if s.sectorOfPosition(p) == sector {
			total = total.Add(p.Value())
		}
	}
	return total
}

// SectorOf resolves a symbol's sector: the position's own tag first, then the
// sector map, then "Unknown".
func (s *Snapshot) SectorOf(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return s.sectorOfPosition(p)
		}
	}
	if sector, ok := s.Sectors[symbol]; ok && strings.TrimSpace(sector) != "" {
		return sector
	}
	return "Unknown"
}

func (s *Snapshot) sectorOfPosition(p Position) string {
	if strings.TrimSpace(p.Sector) != "" {
		return p.Sector
	}
	if sector, ok := s.Sectors[p.Symbol]; ok && strings.TrimSpace(sector) != "" {
		return sector
	}
	return "Unknown"
}

// PriceOf resolves a reference price: held position first, then the price map.
func (s *Snapshot) PriceOf(symbol string) (decimal.Decimal, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p.Price, true
		}
	}
	px, ok := s.Prices[symbol]
	return px, ok
}

// VolatilityOf returns the annualized volatility for a symbol.
func (s *Snapshot) VolatilityOf(symbol string) (float64, bool) {
	vol, ok := s.Volatility[strings.ToUpper(strings.TrimSpace(symbol))]
	return vol, ok
}

// Correlation looks up the pairwise correlation, symmetric with zero default.
func (s *Snapshot) Correlation(a, b string) float64 {
	a = strings.ToUpper(strings.TrimSpace(a))
	b = strings.ToUpper(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	if row, ok := s.Correlations[a]; ok {
		if rho, ok := row[b]; ok {
			return rho
		}
	}
	if row, ok := s.Correlations[b]; ok {
		if rho, ok := row[a]; ok {
			return rho
		}
	}
	return 0
}
