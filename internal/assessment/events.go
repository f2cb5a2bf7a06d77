package assessment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tribune/internal/signal"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
)

// EventAssessor produces an event-risk assessment within a caller-supplied
// timeout, or fails with an AdapterError.
type EventAssessor interface {
	Assess(ctx context.Context, sig signal.Signal, timeout time.Duration) (EventRisk, error)
}

// defaultVetoKinds are the event kinds that block a trade when they fall
// inside the veto window around the signal timestamp.
var defaultVetoKinds = []string{"earnings", "regulatory", "halt"}

// EventRiskAdapter normalizes research-collaborator findings and derives the
// veto flag. An empty result list means "no veto", never failure.
type EventRiskAdapter struct {
	client     EventClient
	breaker    *gobreaker.CircuitBreaker
	schema     *jsonschema.Schema
	vetoKinds  map[string]bool
	vetoWindow time.Duration
}

func NewEventRiskAdapter(client EventClient, vetoKinds []string, vetoWindow time.Duration) (*EventRiskAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("event-risk adapter requires a client")
	}
	if len(vetoKinds) == 0 {
		vetoKinds = defaultVetoKinds
	}
	if vetoWindow <= 0 {
		vetoWindow = 48 * time.Hour
	}
	schema, err := compileSchema("events.json", eventSchemaJSON)
	if err != nil {
		return nil, err
	}
	kinds := make(map[string]bool, len(vetoKinds))
	for _, k := range vetoKinds {
		kinds[strings.ToLower(strings.TrimSpace(k))] = true
	}
	return &EventRiskAdapter{
		client:     client,
		breaker:    newBreaker(StageEventRisk),
		schema:     schema,
		vetoKinds:  kinds,
		vetoWindow: vetoWindow,
	}, nil
}

func (a *EventRiskAdapter) Assess(ctx context.Context, sig signal.Signal, timeout time.Duration) (EventRisk, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := a.breaker.Execute(func() (any, error) {
		return a.client.Search(callCtx, sig.Symbol, sig.Timestamp)
	})
	if err != nil {
		return EventRisk{}, classifyCallError(StageEventRisk, ctx, callCtx, err)
	}
	payload, _ := raw.([]byte)
	if err := validatePayload(a.schema, payload); err != nil {
		return EventRisk{}, contractErr(StageEventRisk, err)
	}
	return a.normalize(payload, sig.Timestamp)
}

func (a *EventRiskAdapter) normalize(payload []byte, asOf time.Time) (EventRisk, error) {
	doc := gjson.ParseBytes(payload)
	var events []EventDescriptor
	var parseErr error
	doc.Get("events").ForEach(func(_, item gjson.Result) bool {
		at, err := time.Parse(time.RFC3339, item.Get("at").String())
		if err != nil {
			parseErr = fmt.Errorf("event timestamp %q: %w", item.Get("at").String(), err)
			return false
		}
		events = append(events, EventDescriptor{
			Kind:   strings.ToLower(strings.TrimSpace(item.Get("kind").String())),
			Source: item.Get("source").String(),
			At:     at,
		})
		return true
	})
	if parseErr != nil {
		return EventRisk{}, contractErr(StageEventRisk, parseErr)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	return EventRisk{
		Veto:       a.anyBlocking(events, asOf),
		Events:     events,
		Confidence: doc.Get("confidence").Float(),
	}, nil
}

func (a *EventRiskAdapter) anyBlocking(events []EventDescriptor, asOf time.Time) bool {
	for _, ev := range events {
		if !a.vetoKinds[ev.Kind] {
			continue
		}
		delta := ev.At.Sub(asOf)
		if delta < 0 {
			delta = -delta
		}
		if delta <= a.vetoWindow {
			return true
		}
	}
	return false
}
