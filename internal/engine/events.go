package engine

import (
	"time"

	"github.com/alienxp03/agora/internal/core"
)

// EventType identifies a change to a debate.
type EventType string

const (
	EventTurnAdded     EventType = "turn_added"
	EventDebateUpdated EventType = "debate_updated"
	EventDebateDeleted EventType = "debate_deleted"
)

// Event describes a committed change. Turn is set for EventTurnAdded,
// Debate for EventDebateUpdated.
type Event struct {
	Type     EventType    `json:"type"`
	DebateID string       `json:"debate_id"`
	Turn     *core.Turn   `json:"turn,omitempty"`
	Debate   *core.Debate `json:"debate,omitempty"`
	At       time.Time    `json:"at"`
}

// Notifier receives events after they are committed. Publish must not block.
type Notifier interface {
	Publish(Event)
}

func (e *Engine) publish(ev Event) {
	if e.notifier == nil {
		return
	}
	ev.At = time.Now()
	e.notifier.Publish(ev)
}
