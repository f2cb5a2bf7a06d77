package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tribune/internal/ledger"
)

// Sentinel errors for the context store contract.
var (
	ErrDuplicateSignal      = errors.New("signal already admitted")
	ErrStageAlreadyRecorded = errors.New("stage output already recorded")
	ErrUnknownSignal        = errors.New("unknown signal")
	ErrNotAbandonable       = errors.New("only failed runs can be abandoned")
)

// Status tracks the lifecycle of one pipeline run in the store.
type Status string

const (
	StatusInFlight  Status = "in_flight"
	StatusDecided   Status = "decided"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// Handle is the per-signal context bundle: the admitted signal plus every
// stage output accumulated so far. Stage outputs are write-once.
type Handle struct {
	mu        sync.RWMutex
	sig       Signal
	attempt   int
	createdAt time.Time
	status    Status
	stages    map[string]any
	decision  any
}

// Signal returns the immutable admitted signal.
func (h *Handle) Signal() Signal { return h.sig }

// Attempt is 1 for the first admission of an identifier and increments each
// time an abandoned run is resubmitted.
func (h *Handle) Attempt() int { return h.attempt }

func (h *Handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Decision returns the terminal decision, if the run reached one.
func (h *Handle) Decision() (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.status != StatusDecided {
		return nil, false
	}
	return h.decision, true
}

// Snapshot is the accumulated state of a run, usable mid-pipeline.
type Snapshot struct {
	Signal    Signal
	Attempt   int
	Status    Status
	CreatedAt time.Time
	Stages    map[string]any
}

// StageExecution describes one successful stage execution to record against a
// handle. The output lands in the handle and the execution lands in the audit
// ledger atomically from the caller's point of view.
type StageExecution struct {
	Stage      string
	Input      any
	Output     any
	StartedAt  time.Time
	FinishedAt time.Time
	Retries    int
}

// Store keys pipeline runs by signal identifier. Each key is written only by
// its own run, so cross-signal submissions never contend beyond the map lock.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]*Handle
	led    ledger.Appender
	nowFn  func() time.Time
	nextID func() string
}

func NewStore(led ledger.Appender, nextID func() string) *Store {
	return &Store{
		runs:   make(map[string]*Handle),
		led:    led,
		nowFn:  time.Now,
		nextID: nextID,
	}
}

// Create admits a signal and returns its context handle. An identifier that is
// in flight, failed-but-not-abandoned, or already decided is a duplicate; an
// abandoned run is replaced by a fresh attempt.
func (s *Store) Create(sig Signal) (*Handle, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt := 1
	if prev, ok := s.runs[sig.ID]; ok {
		if prev.Status() != StatusAbandoned {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSignal, sig.ID)
		}
		attempt = prev.attempt + 1
	}
	h := &Handle{
		sig:       sig,
		attempt:   attempt,
		createdAt: s.nowFn(),
		status:    StatusInFlight,
		stages:    make(map[string]any),
	}
	s.runs[sig.ID] = h
	return h, nil
}

// Get returns the handle for an identifier, if any.
func (s *Store) Get(id string) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.runs[id]
	return h, ok
}

// Attach records a stage output exactly once and appends the execution to the
// audit ledger.
func (s *Store) Attach(ctx context.Context, h *Handle, exec StageExecution) error {
	if h == nil {
		return ErrUnknownSignal
	}
	h.mu.Lock()
	if _, dup := h.stages[exec.Stage]; dup {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrStageAlreadyRecorded, h.sig.ID, exec.Stage)
	}
	h.stages[exec.Stage] = exec.Output
	h.mu.Unlock()

	return s.led.Append(ctx, ledger.Record{
		ID:         s.nextID(),
		SignalID:   h.sig.ID,
		Stage:      exec.Stage,
		Attempt:    exec.Retries,
		Input:      ledger.MarshalSnapshot(exec.Input),
		Output:     ledger.MarshalSnapshot(exec.Output),
		StartedAt:  exec.StartedAt,
		FinishedAt: exec.FinishedAt,
		Outcome:    ledger.OutcomeSuccess,
	})
}

// Snapshot copies the current accumulated state of a run.
func (s *Store) Snapshot(h *Handle) Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stages := make(map[string]any, len(h.stages))
	for k, v := range h.stages {
		stages[k] = v
	}
	return Snapshot{
		Signal:    h.sig,
		Attempt:   h.attempt,
		Status:    h.status,
		CreatedAt: h.createdAt,
		Stages:    stages,
	}
}

// MarkDecided records the terminal decision on the handle.
func (s *Store) MarkDecided(h *Handle, dec any) {
	h.mu.Lock()
	h.status = StatusDecided
	h.decision = dec
	h.mu.Unlock()
}

// MarkFailed moves the run to the terminal failed state.
func (s *Store) MarkFailed(h *Handle) {
	h.mu.Lock()
	h.status = StatusFailed
	h.mu.Unlock()
}

// Abandon marks a failed run abandoned so the identifier can be resubmitted.
func (s *Store) Abandon(id string) error {
	s.mu.RLock()
	h, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSignal, id)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != StatusFailed {
		return fmt.Errorf("%w: %s is %s", ErrNotAbandonable, id, h.status)
	}
	h.status = StatusAbandoned
	return nil
}

// PruneDecided drops decided runs older than the retention window. After a
// prune the identifier is free again; resubmission becomes a fresh run.
func (s *Store) PruneDecided(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, h := range s.runs {
		h.mu.RLock()
		expired := h.status == StatusDecided && h.createdAt.Before(olderThan)
		h.mu.RUnlock()
		if expired {
			delete(s.runs, id)
			removed++
		}
	}
	return removed
}
