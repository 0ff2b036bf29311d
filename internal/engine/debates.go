package engine

import (
	"log/slog"
	"strings"
	"time"

	"github.com/alienxp03/agora/internal/core"
)

// CreateDebate validates the participants and creates a debate whose plan
// lists them in the given order. A debate with an empty plan starts out
// COMPLETE.
func (e *Engine) CreateDebate(cfg core.NewDebateConfig) (*core.Debate, error) {
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil, core.Invalidf("topic is required")
	}

	plan := make(core.RotationPlan, 0, len(cfg.ParticipantIDs))
	for _, id := range cfg.ParticipantIDs {
		p, err := e.storage.GetParticipant(id)
		if err != nil {
			return nil, core.NewPersistenceError("get participant", err)
		}
		if p == nil {
			return nil, core.Invalidf("one or more participants not found: %s", id)
		}
		plan = append(plan, p.ID)
	}

	config := make(map[string]any, len(cfg.Config)+len(e.defaultConfig))
	for k, v := range e.defaultConfig {
		config[k] = v
	}
	for k, v := range cfg.Config {
		config[k] = v
	}

	rounds := cfg.Rounds
	if rounds <= 0 {
		rounds = e.defaultRounds
	}

	now := time.Now()
	debate := &core.Debate{
		ID:        core.GenerateID(),
		Topic:     topic,
		Rounds:    rounds,
		Config:    config,
		Plan:      plan,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyStatus(debate, 0)

	if err := e.storage.CreateDebate(debate); err != nil {
		return nil, core.NewPersistenceError("create debate", err)
	}

	slog.Info("Debate created", "debate_id", debate.ID, "topic", topic, "plan_size", len(plan))
	return debate, nil
}

// GetDebate returns a debate by ID.
func (e *Engine) GetDebate(id string) (*core.Debate, error) {
	return e.loadDebate(id)
}

// GetDebateWithTurns returns a debate and its transcript in creation order.
func (e *Engine) GetDebateWithTurns(id string) (*core.Debate, []*core.Turn, error) {
	debate, err := e.loadDebate(id)
	if err != nil {
		return nil, nil, err
	}
	turns, err := e.storage.ListTurns(id)
	if err != nil {
		return nil, nil, core.NewPersistenceError("list turns", err)
	}
	return debate, turns, nil
}

// ListDebates returns debate summaries, newest first.
func (e *Engine) ListDebates(limit, offset int) ([]*core.DebateSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	summaries, err := e.storage.ListDebates(limit, offset)
	if err != nil {
		return nil, core.NewPersistenceError("list debates", err)
	}
	return summaries, nil
}

// SpeakerNames maps participant ids to their current names.
func (e *Engine) SpeakerNames() (map[string]string, error) {
	return e.participantNames()
}
