// Package engine orchestrates turns in multi-participant debates.
//
// An advance runs in two phases. The generation call happens without any
// lock, so a slow backend never blocks other readers or debates. The state
// transition (slot consumption, status, the new turn) then runs under a
// per-debate lock against freshly reloaded state and is written in one
// store transaction.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alienxp03/agora/internal/core"
	"github.com/alienxp03/agora/internal/generation"
	"github.com/alienxp03/agora/internal/prompt"
	"github.com/alienxp03/agora/internal/rotation"
	"github.com/alienxp03/agora/internal/storage"
)

// DefaultModeratorTemperature is used for turns without a participant.
const DefaultModeratorTemperature = 0.7

// DefaultRounds is stored on debates created without a round count.
const DefaultRounds = 3

// Engine orchestrates debate turns.
type Engine struct {
	storage  storage.Storage
	client   *generation.Client
	locks    *locker
	notifier Notifier

	moderatorTemperature float64
	defaultConfig        map[string]any
	defaultRounds        int
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier publishes committed changes to n.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithModeratorTemperature sets the temperature of moderator turns.
func WithModeratorTemperature(t float64) Option {
	return func(e *Engine) { e.moderatorTemperature = t }
}

// WithDefaults sets config keys and the round count applied to new debates
// that do not set them.
func WithDefaults(config map[string]any, rounds int) Option {
	return func(e *Engine) {
		e.defaultConfig = config
		if rounds > 0 {
			e.defaultRounds = rounds
		}
	}
}

// New creates a new debate engine.
func New(store storage.Storage, client *generation.Client, opts ...Option) *Engine {
	e := &Engine{
		storage:              store,
		client:               client,
		locks:                newLocker(),
		moderatorTemperature: DefaultModeratorTemperature,
		defaultRounds:        DefaultRounds,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Advance generates the next AI turn of a debate. An empty participantID
// produces a moderator turn, which never consumes a rotation slot.
//
// The generation call is detached from ctx cancellation: once started, the
// retry loop runs to completion and its outcome is always recorded. On
// generation failure a SYSTEM turn describing it is appended, the plan and
// status are left untouched, and the *generation.Error is returned. A debate
// deleted during generation gets no turn; the error then also wraps
// ErrNotFound.
func (e *Engine) Advance(ctx context.Context, debateID, participantID string) (*core.Turn, error) {
	debate, err := e.loadDebate(debateID)
	if err != nil {
		return nil, err
	}

	var participant *core.Participant
	if participantID != "" {
		participant, err = e.loadParticipant(participantID)
		if err != nil {
			return nil, err
		}
	}

	turns, err := e.storage.ListTurns(debateID)
	if err != nil {
		return nil, core.NewPersistenceError("list turns", err)
	}
	names, err := e.participantNames()
	if err != nil {
		return nil, err
	}

	input := prompt.BuildContext(debate.Topic, turns, names, participant)
	opts := e.generationOptions(debate, participant)

	slog.Debug("Generating turn",
		"debate_id", debateID,
		"participant_id", participantID,
		"provider", opts.Provider,
		"model", opts.Model,
		"context_len", len(input),
	)
	start := time.Now()
	text, genErr := e.client.Generate(context.WithoutCancel(ctx), input, opts)

	unlock := e.locks.Lock(debateID)
	defer unlock()

	if genErr != nil {
		slog.Error("Turn generation failed",
			"debate_id", debateID,
			"participant_id", participantID,
			"kind", generation.KindOf(genErr).String(),
			"error", genErr,
		)
		// The debate may have been deleted while generating.
		if _, err := e.loadDebate(debateID); err != nil {
			return nil, errors.Join(genErr, err)
		}
		failure := &core.Turn{
			DebateID: debateID,
			Speaker:  prompt.SystemSpeaker,
			Kind:     core.KindSystem,
			Content:  fmt.Sprintf("Generation failed: %v", genErr),
		}
		if err := e.storage.AppendTurn(failure); err != nil {
			slog.Error("Failed to record generation failure", "debate_id", debateID, "error", err)
			return nil, errors.Join(genErr, core.NewPersistenceError("append system turn", err))
		}
		e.publish(Event{Type: EventTurnAdded, DebateID: debateID, Turn: failure})
		return nil, genErr
	}

	// Reload: other turns may have been committed while generating.
	current, err := e.loadDebate(debateID)
	if err != nil {
		return nil, err
	}
	turns, err = e.storage.ListTurns(debateID)
	if err != nil {
		return nil, core.NewPersistenceError("list turns", err)
	}

	filled := rotation.FilledCount(turns)
	turn := &core.Turn{
		DebateID: debateID,
		Kind:     core.KindAI,
		Content:  text,
		Speaker:  prompt.SystemSpeaker,
	}
	if participant != nil {
		current.Plan = rotation.Consume(current.Plan, rotation.CurrentSlot(current.Plan, filled))
		filled++
		turn.ParticipantID = participant.ID
		turn.Speaker = participant.Name
	}
	applyStatus(current, filled)

	if err := e.storage.RecordTurn(turn, current); err != nil {
		return nil, core.NewPersistenceError("record turn", err)
	}

	slog.Info("Turn recorded",
		"debate_id", debateID,
		"participant_id", participantID,
		"number", turn.Number,
		"status", current.Status,
		"duration", time.Since(start),
	)
	e.publish(Event{Type: EventTurnAdded, DebateID: debateID, Turn: turn})
	e.publish(Event{Type: EventDebateUpdated, DebateID: debateID, Debate: current})
	return turn, nil
}

// AdvanceNext advances the debate with the participant expected at the
// current rotation slot.
func (e *Engine) AdvanceNext(ctx context.Context, debateID string) (*core.Turn, error) {
	participantID, ok, err := e.NextParticipant(debateID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.Invalidf("debate %s has no scheduled participant at its current slot", debateID)
	}
	return e.Advance(ctx, debateID, participantID)
}

// NextParticipant returns the participant expected at the current rotation
// slot, or false when the slot is consumed or the plan is exhausted.
func (e *Engine) NextParticipant(debateID string) (string, bool, error) {
	debate, err := e.loadDebate(debateID)
	if err != nil {
		return "", false, err
	}
	turns, err := e.storage.ListTurns(debateID)
	if err != nil {
		return "", false, core.NewPersistenceError("list turns", err)
	}
	id, ok := rotation.Next(debate.Plan, rotation.FilledCount(turns))
	return id, ok, nil
}

// Inject appends a USER turn. Plan and status are unchanged.
func (e *Engine) Inject(debateID, content string) (*core.Turn, error) {
	if strings.TrimSpace(content) == "" {
		return nil, core.Invalidf("content is required")
	}

	unlock := e.locks.Lock(debateID)
	defer unlock()

	if _, err := e.loadDebate(debateID); err != nil {
		return nil, err
	}

	turn := &core.Turn{
		DebateID: debateID,
		Speaker:  prompt.UserSpeaker,
		Kind:     core.KindUser,
		Content:  content,
	}
	if err := e.storage.AppendTurn(turn); err != nil {
		return nil, core.NewPersistenceError("append user turn", err)
	}

	slog.Debug("User turn injected", "debate_id", debateID, "number", turn.Number)
	e.publish(Event{Type: EventTurnAdded, DebateID: debateID, Turn: turn})
	return turn, nil
}

// Reorder replaces the rotation plan wholesale and recomputes status from
// the existing transcript. Every entry must name an existing participant or
// be core.ConsumedSlot.
func (e *Engine) Reorder(debateID string, plan core.RotationPlan) (*core.Debate, error) {
	if plan == nil {
		plan = core.RotationPlan{}
	}
	for _, id := range plan {
		if id == core.ConsumedSlot {
			continue
		}
		p, err := e.storage.GetParticipant(id)
		if err != nil {
			return nil, core.NewPersistenceError("get participant", err)
		}
		if p == nil {
			return nil, core.Invalidf("unknown participant in plan: %s", id)
		}
	}

	unlock := e.locks.Lock(debateID)
	defer unlock()

	debate, err := e.loadDebate(debateID)
	if err != nil {
		return nil, err
	}
	turns, err := e.storage.ListTurns(debateID)
	if err != nil {
		return nil, core.NewPersistenceError("list turns", err)
	}

	debate.Plan = plan.Clone()
	applyStatus(debate, rotation.FilledCount(turns))
	if err := e.storage.SaveDebate(debate); err != nil {
		return nil, core.NewPersistenceError("save debate", err)
	}

	slog.Info("Rotation plan replaced", "debate_id", debateID, "plan_size", len(plan), "status", debate.Status)
	e.publish(Event{Type: EventDebateUpdated, DebateID: debateID, Debate: debate})
	return debate, nil
}

// Delete removes a debate's turns, then the debate itself.
func (e *Engine) Delete(debateID string) error {
	unlock := e.locks.Lock(debateID)
	defer unlock()

	if _, err := e.loadDebate(debateID); err != nil {
		return err
	}
	if err := e.storage.DeleteTurns(debateID); err != nil {
		return core.NewPersistenceError("delete turns", err)
	}
	if err := e.storage.DeleteDebate(debateID); err != nil {
		return core.NewPersistenceError("delete debate", err)
	}

	slog.Info("Debate deleted", "debate_id", debateID)
	e.publish(Event{Type: EventDebateDeleted, DebateID: debateID})
	return nil
}

// applyStatus sets Status and CompletedAt from the filled slot count.
func applyStatus(debate *core.Debate, filled int) {
	debate.Status = rotation.Status(debate.Plan, filled)
	if debate.Status == core.StatusComplete {
		if debate.CompletedAt == nil {
			now := time.Now()
			debate.CompletedAt = &now
		}
		return
	}
	debate.CompletedAt = nil
}

// generationOptions merges the debate config with the acting participant.
// Recognized keys are lifted out; everything else passes through.
func (e *Engine) generationOptions(debate *core.Debate, p *core.Participant) generation.Options {
	extra := make(map[string]any, len(debate.Config))
	for k, v := range debate.Config {
		extra[k] = v
	}

	opts := generation.Options{SystemInstruction: prompt.SystemInstruction(p)}
	if model, ok := extra[core.ConfigModelName].(string); ok {
		opts.Model = model
	}
	if provider, ok := extra[core.ConfigProvider].(string); ok {
		opts.Provider = provider
	}

	temperature := core.DefaultTemperature
	if t, ok := toFloat(extra[core.ConfigTemperature]); ok {
		temperature = t
	}
	switch {
	case p == nil:
		temperature = e.moderatorTemperature
	case p.Temperature != nil:
		temperature = *p.Temperature
	}
	opts.Temperature = &temperature

	delete(extra, core.ConfigModelName)
	delete(extra, core.ConfigProvider)
	delete(extra, core.ConfigTemperature)
	if len(extra) > 0 {
		opts.Extra = extra
	}
	return opts
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func (e *Engine) loadDebate(id string) (*core.Debate, error) {
	debate, err := e.storage.GetDebate(id)
	if err != nil {
		return nil, core.NewPersistenceError("get debate", err)
	}
	if debate == nil {
		return nil, core.NewNotFoundError("debate", id)
	}
	return debate, nil
}

func (e *Engine) loadParticipant(id string) (*core.Participant, error) {
	p, err := e.storage.GetParticipant(id)
	if err != nil {
		return nil, core.NewPersistenceError("get participant", err)
	}
	if p == nil {
		return nil, core.NewNotFoundError("participant", id)
	}
	return p, nil
}

// participantNames maps every participant id to its current name.
func (e *Engine) participantNames() (map[string]string, error) {
	participants, err := e.storage.ListParticipants()
	if err != nil {
		return nil, core.NewPersistenceError("list participants", err)
	}
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
	}
	return names, nil
}
