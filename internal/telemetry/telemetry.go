// Package telemetry records coordination session events.
package telemetry

import (
	"log"
	"time"
)

// EventType names a coordination event.
type EventType string

const (
	// EventSessionStarted marks the start of a coordination session.
	EventSessionStarted EventType = "session_started"
	// EventStageStarted marks a stage dispatch.
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted marks a worker result arriving for a stage.
	EventStageCompleted EventType = "stage_completed"
	// EventGateResult marks a quality gate evaluation.
	EventGateResult EventType = "gate_result"
	// EventHallucinationFlagged marks a detected fabrication.
	EventHallucinationFlagged EventType = "hallucination_flagged"
	// EventCompletionVetoed marks an enforced continuation after a
	// premature finish attempt.
	EventCompletionVetoed EventType = "completion_vetoed"
	// EventForcedAssignment marks the fallback assignment path.
	EventForcedAssignment EventType = "forced_assignment"
	// EventSessionDone marks the end of a session.
	EventSessionDone EventType = "session_done"
)

// Event is one recorded coordination event.
type Event struct {
	// SessionID is the coordination session the event belongs to.
	SessionID string
	// Type is the event kind.
	Type EventType
	// Stage names the affected pipeline stage, when applicable.
	Stage string
	// AgentID names the involved worker, when applicable.
	AgentID string
	// Detail is a human-readable description.
	Detail string
	// At is when the event occurred.
	At time.Time
}

// Sink receives coordination events. Implementations must be safe for
// concurrent use and must never block the coordination loop.
type Sink interface {
	Record(ev Event)
}

// LogSink writes events to the process log.
type LogSink struct{}

// NewLogSink creates a log-backed sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Record logs the event.
func (s *LogSink) Record(ev Event) {
	if ev.AgentID != "" {
		log.Printf("[telemetry] %s session=%s stage=%s agent=%s: %s", ev.Type, ev.SessionID, ev.Stage, ev.AgentID, ev.Detail)
		return
	}
	log.Printf("[telemetry] %s session=%s stage=%s: %s", ev.Type, ev.SessionID, ev.Stage, ev.Detail)
}

// MultiSink fans events out to several sinks.
type MultiSink []Sink

// Record forwards the event to every sink.
func (m MultiSink) Record(ev Event) {
	for _, s := range m {
		s.Record(ev)
	}
}

// Nop is a sink that discards events.
type Nop struct{}

// Record discards the event.
func (Nop) Record(Event) {}
