package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeRunStarted       Type = "run_started"
	TypeCaseCompleted    Type = "case_completed"
	TypeRunCompleted     Type = "run_completed"
	TypeRunFailed        Type = "run_failed"
	TypeRunCancelled     Type = "run_cancelled"
	TypeInstructionAdded Type = "instruction_added"
)

// Channel is a domain-scoped notification channel.
// All event types within a domain share one subscription.
type Channel string

const (
	ChannelRun         Channel = "run"
	ChannelInstruction Channel = "instruction"
)

var typeToChannel = map[Type]Channel{
	TypeRunStarted:       ChannelRun,
	TypeCaseCompleted:    ChannelRun,
	TypeRunCompleted:     ChannelRun,
	TypeRunFailed:        ChannelRun,
	TypeRunCancelled:     ChannelRun,
	TypeInstructionAdded: ChannelInstruction,
}

// ChannelFor returns the domain channel for a given event type.
func ChannelFor(t Type) Channel { return typeToChannel[t] }

// Event carries identifiers and small progress data, not full state.
// Subscribers fetch the run report from the repository when they need it.
type Event struct {
	Type      Type      `json:"type"`
	EntityID  uuid.UUID `json:"entity_id"`
	Key       string    `json:"key,omitempty"`
	Index     int       `json:"index,omitempty"`
	Total     int       `json:"total,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func New(eventType Type, entityID uuid.UUID) Event {
	return Event{
		Type:      eventType,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// Progress builds a case-completed event for case index (1-based) of total.
func Progress(runID uuid.UUID, index, total int) Event {
	e := New(TypeCaseCompleted, runID)
	e.Index = index
	e.Total = total
	return e
}

// InstructionAdded builds the event published when a custom instruction is
// registered at runtime.
func InstructionAdded(key string) Event {
	e := New(TypeInstructionAdded, uuid.Nil)
	e.Key = key
	return e
}
