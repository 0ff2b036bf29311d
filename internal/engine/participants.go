package engine

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/alienxp03/agora/internal/core"
	"github.com/alienxp03/agora/internal/persona"
)

// CreateParticipant adds a participant. Names must be unique.
func (e *Engine) CreateParticipant(in core.ParticipantInput) (*core.Participant, error) {
	if err := validateParticipant(in); err != nil {
		return nil, err
	}

	now := time.Now()
	p := &core.Participant{
		ID:          core.GenerateID(),
		Name:        strings.TrimSpace(in.Name),
		Role:        in.Role,
		Instruction: in.Instruction,
		Temperature: in.Temperature,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.storage.CreateParticipant(p); err != nil {
		return nil, storeError("create participant", err)
	}

	slog.Debug("Participant created", "participant_id", p.ID, "name", p.Name)
	return p, nil
}

// GetParticipant returns a participant by ID.
func (e *Engine) GetParticipant(id string) (*core.Participant, error) {
	return e.loadParticipant(id)
}

// ListParticipants returns every participant ordered by name.
func (e *Engine) ListParticipants() ([]*core.Participant, error) {
	participants, err := e.storage.ListParticipants()
	if err != nil {
		return nil, core.NewPersistenceError("list participants", err)
	}
	return participants, nil
}

// UpdateParticipant replaces the editable fields of a participant. Turns
// already recorded keep the name they were spoken under.
func (e *Engine) UpdateParticipant(id string, in core.ParticipantInput) (*core.Participant, error) {
	if err := validateParticipant(in); err != nil {
		return nil, err
	}
	p, err := e.loadParticipant(id)
	if err != nil {
		return nil, err
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Role = in.Role
	p.Instruction = in.Instruction
	p.Temperature = in.Temperature
	if err := e.storage.UpdateParticipant(p); err != nil {
		return nil, storeError("update participant", err)
	}
	return p, nil
}

// DeleteParticipant removes a participant. Plans and turns that reference
// it are left as they are.
func (e *Engine) DeleteParticipant(id string) error {
	if _, err := e.loadParticipant(id); err != nil {
		return err
	}
	if err := e.storage.DeleteParticipant(id); err != nil {
		return core.NewPersistenceError("delete participant", err)
	}
	slog.Debug("Participant deleted", "participant_id", id)
	return nil
}

// SeedPersonas creates a participant for every built-in persona whose name
// is not taken yet and returns the ones created.
func (e *Engine) SeedPersonas() ([]*core.Participant, error) {
	var created []*core.Participant
	for _, preset := range persona.DefaultPersonas() {
		existing, err := e.storage.GetParticipantByName(preset.Name)
		if err != nil {
			return created, core.NewPersistenceError("get participant", err)
		}
		if existing != nil {
			continue
		}
		p, err := e.CreateParticipant(preset.Input())
		if errors.Is(err, core.ErrConflict) {
			continue
		}
		if err != nil {
			return created, err
		}
		created = append(created, p)
	}
	slog.Info("Personas seeded", "created", len(created))
	return created, nil
}

func validateParticipant(in core.ParticipantInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return core.Invalidf("name is required")
	}
	if in.Temperature != nil && (*in.Temperature < 0 || *in.Temperature > 2) {
		return core.Invalidf("temperature must be between 0 and 2")
	}
	return nil
}

// storeError keeps conflicts recognizable and wraps everything else as a
// persistence failure.
func storeError(op string, err error) error {
	if errors.Is(err, core.ErrConflict) {
		return err
	}
	return core.NewPersistenceError(op, err)
}
