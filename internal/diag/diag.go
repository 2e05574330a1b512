// Package diag carries the access engine's diagnostics. Nothing here affects
// a query's result: anomalies are observability-only, so the engine reports
// them through a Logger and moves on.
package diag

import "go.uber.org/zap"

// Kind enumerates the diagnostic event kinds.
type Kind int

const (
	// KindOptionDropped: a deck option carried at most one recognized
	// constraint and was discarded as too weak to trust.
	KindOptionDropped Kind = iota
	// KindNoopQuery: an access query targeted a deck kind the investigator
	// has no rules for.
	KindNoopQuery
	// KindSelectionFallback: an option referenced a runtime selection that
	// was not provided; its static candidates were used instead.
	KindSelectionFallback
)

func (k Kind) String() string {
	switch k {
	case KindOptionDropped:
		return "OptionDropped"
	case KindNoopQuery:
		return "NoopQuery"
	case KindSelectionFallback:
		return "SelectionFallback"
	default:
		return "Unknown"
	}
}

// Event is a single diagnostic occurrence.
type Event struct {
	Seq    int    // monotonic sequence number, assigned by the sink
	Kind   Kind   // what happened
	Code   string // investigator or card code the event concerns
	Detail string // human-readable detail
}

// Logger is the sink for diagnostic events.
type Logger interface {
	Log(event Event)
}

// --- Nop: discards everything ---

type Nop struct{}

func (Nop) Log(Event) {}

// --- Memory: stores events for test assertions ---

type Memory struct {
	events []Event
	seq    int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Log(event Event) {
	m.seq++
	event.Seq = m.seq
	m.events = append(m.events, event)
}

func (m *Memory) Events() []Event {
	return m.events
}

// OfKind returns all events matching the given kind.
func (m *Memory) OfKind(k Kind) []Event {
	var result []Event
	for _, e := range m.events {
		if e.Kind == k {
			result = append(result, e)
		}
	}
	return result
}

// Last returns the most recent event, or a zero event if none.
func (m *Memory) Last() Event {
	if len(m.events) == 0 {
		return Event{}
	}
	return m.events[len(m.events)-1]
}

// --- Zap: forwards events to a structured logger ---

type Zap struct {
	l *zap.Logger
}

func NewZap(l *zap.Logger) *Zap {
	return &Zap{l: l}
}

func (z *Zap) Log(event Event) {
	fields := []zap.Field{
		zap.String("kind", event.Kind.String()),
		zap.String("code", event.Code),
	}
	switch event.Kind {
	case KindNoopQuery:
		z.l.Warn(event.Detail, fields...)
	default:
		z.l.Debug(event.Detail, fields...)
	}
}
