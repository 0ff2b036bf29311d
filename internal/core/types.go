// Package core contains the core domain types for agora.
package core

import (
	"bytes"
	"encoding/json"
	"time"
)

// DebateStatus represents the current status of a debate.
type DebateStatus string

const (
	StatusWIP      DebateStatus = "WIP"
	StatusComplete DebateStatus = "COMPLETE"
)

// TurnKind tags who produced a turn.
type TurnKind string

const (
	KindAI     TurnKind = "AI"
	KindUser   TurnKind = "USER"
	KindSystem TurnKind = "SYSTEM"
)

// Recognized keys of a debate's generation config. Any other key is passed
// through to the generation backend untouched.
const (
	ConfigModelName   = "model_name"
	ConfigTemperature = "temperature"
	ConfigProvider    = "provider"
)

// Participant is a persona that can be scheduled to speak in debates.
type Participant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Instruction string    `json:"system_instruction"`
	Temperature *float64  `json:"temperature,omitempty"` // Overrides the debate's temperature
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConsumedSlot marks a rotation slot whose speaker has already spoken.
const ConsumedSlot = ""

// RotationPlan is the ordered list of participant ids expected to speak.
// Consumed entries hold ConsumedSlot and are encoded as JSON null.
type RotationPlan []string

// MarshalJSON encodes consumed slots as null.
func (p RotationPlan) MarshalJSON() ([]byte, error) {
	out := make([]*string, len(p))
	for i := range p {
		if p[i] != ConsumedSlot {
			id := p[i]
			out[i] = &id
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null entries as consumed slots.
func (p *RotationPlan) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}
	var in []*string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	plan := make(RotationPlan, len(in))
	for i, id := range in {
		if id != nil {
			plan[i] = *id
		}
	}
	*p = plan
	return nil
}

// Clone returns a copy of the plan that shares no memory with p.
func (p RotationPlan) Clone() RotationPlan {
	if p == nil {
		return nil
	}
	out := make(RotationPlan, len(p))
	copy(out, p)
	return out
}

// Debate is one discussion instance on a topic.
type Debate struct {
	ID          string         `json:"id"`
	Topic       string         `json:"topic"`
	Rounds      int            `json:"rounds"` // Presentation only
	Status      DebateStatus   `json:"status"`
	Config      map[string]any `json:"config"`
	Plan        RotationPlan   `json:"participant_order"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// IsComplete reports whether the rotation plan has been fully consumed.
func (d *Debate) IsComplete() bool {
	return d.Status == StatusComplete
}

// Turn is one immutable contribution to a debate's transcript.
type Turn struct {
	ID            string    `json:"id"`
	DebateID      string    `json:"debate_id"`
	ParticipantID string    `json:"participant_id,omitempty"` // Empty for user, moderator and system turns
	Speaker       string    `json:"speaker,omitempty"`        // Participant name at write time
	Kind          TurnKind  `json:"turn_type"`
	Number        int       `json:"number"` // Creation order within the debate
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"timestamp"`
}

// HasParticipant reports whether the turn references a participant.
func (t *Turn) HasParticipant() bool {
	return t.ParticipantID != ""
}

// DebateSummary is a lightweight representation for listing debates.
type DebateSummary struct {
	ID        string       `json:"id"`
	Topic     string       `json:"topic"`
	Status    DebateStatus `json:"status"`
	Rounds    int          `json:"rounds"`
	PlanSize  int          `json:"plan_size"`
	TurnCount int          `json:"turn_count"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewDebateConfig holds the configuration for creating a new debate.
type NewDebateConfig struct {
	Topic          string         `json:"topic"`
	Rounds         int            `json:"rounds"`
	ParticipantIDs []string       `json:"participant_ids"`
	Config         map[string]any `json:"config"`
}

// ParticipantInput holds the editable fields of a participant.
type ParticipantInput struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Instruction string   `json:"system_instruction"`
	Temperature *float64 `json:"temperature,omitempty"`
}
