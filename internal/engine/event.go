package engine

import (
	"strconv"

	"github.com/seantiz/conductor/internal/model"
)

// EventKind tags the variant carried by an Event.
type EventKind string

// Event kinds delivered to subscribers.
const (
	EventStats     EventKind = "stats"
	EventQueuePos  EventKind = "queuepos"
	EventStatus    EventKind = "status"
	EventLog       EventKind = "log"
	EventCancelled EventKind = "cancelled"
	EventEnd       EventKind = "end"
	EventKeepAlive EventKind = "keepalive"
)

// OutcomeCancelled is the END outcome of a cancelled execution. Any other
// outcome is the decimal process exit code.
const OutcomeCancelled = "CANCELLED"

// Event is a tagged message on an execution's stream. Only the field
// matching Kind is meaningful.
type Event struct {
	Kind     EventKind
	Stats    model.Stats
	Position int
	Status   model.Status
	Text     string
	Outcome  string
}

// StatsEvent carries a capacity snapshot.
func StatsEvent(s model.Stats) Event { return Event{Kind: EventStats, Stats: s} }

// QueuePosEvent carries a 1-based admission queue position.
func QueuePosEvent(pos int) Event { return Event{Kind: EventQueuePos, Position: pos} }

// StatusEvent carries a status transition.
func StatusEvent(s model.Status) Event { return Event{Kind: EventStatus, Status: s} }

// LogEvent carries a verbatim chunk of process output.
func LogEvent(text string) Event { return Event{Kind: EventLog, Text: text} }

// CancelledEvent marks an explicit stop request.
func CancelledEvent() Event { return Event{Kind: EventCancelled} }

// EndEvent is the terminal marker of a stream.
func EndEvent(outcome string) Event { return Event{Kind: EventEnd, Outcome: outcome} }

// ExitOutcome formats a process exit code as an END outcome.
func ExitOutcome(code int) string { return strconv.Itoa(code) }

// control reports whether the event must never be dropped.
func (e Event) control() bool {
	return e.Kind != EventLog && e.Kind != EventKeepAlive
}
