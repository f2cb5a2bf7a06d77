package ledger

import (
	"context"
	"sync"
)

// MemoryLedger keeps the audit trail in process memory. It backs tests and
// deployments that do not configure a ledger path.
type MemoryLedger struct {
	mu       sync.RWMutex
	records  []Record
	bySignal map[string][]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{bySignal: make(map[string][]int)}
}

func (l *MemoryLedger) Append(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := len(l.records)
	l.records = append(l.records, rec)
	l.bySignal[rec.SignalID] = append(l.bySignal[rec.SignalID], idx)
	return nil
}

func (l *MemoryLedger) Records(_ context.Context, signalID string) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idxs := l.bySignal[signalID]
	out := make([]Record, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, l.records[i])
	}
	return out, nil
}

func (l *MemoryLedger) Close() error { return nil }

// Len reports the total number of records across all signals.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
