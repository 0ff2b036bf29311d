// Package storage provides persistence for debates, their transcripts and
// the participant directory.
package storage

import (
	"os"
	"path/filepath"

	"github.com/alienxp03/agora/internal/core"
)

// Storage defines the interface for debate persistence.
//
// Lookups of a missing row return nil with a nil error. Implementations
// must be safe for concurrent use.
type Storage interface {
	// Initialize sets up the storage (creates tables, etc.)
	Initialize() error

	// Close closes the storage connection.
	Close() error

	// Debate operations
	CreateDebate(debate *core.Debate) error
	GetDebate(id string) (*core.Debate, error)
	SaveDebate(debate *core.Debate) error
	DeleteDebate(id string) error
	ListDebates(limit, offset int) ([]*core.DebateSummary, error)

	// Turn operations. AppendTurn and RecordTurn assign the turn's Number
	// (and ID when empty) inside their transaction.
	AppendTurn(turn *core.Turn) error
	RecordTurn(turn *core.Turn, debate *core.Debate) error
	ListTurns(debateID string) ([]*core.Turn, error)
	DeleteTurns(debateID string) error

	// Participant operations. A duplicate name yields core.ErrConflict.
	CreateParticipant(p *core.Participant) error
	GetParticipant(id string) (*core.Participant, error)
	GetParticipantByName(name string) (*core.Participant, error)
	ListParticipants() ([]*core.Participant, error)
	UpdateParticipant(p *core.Participant) error
	DeleteParticipant(id string) error
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agora.db"
	}
	return filepath.Join(home, ".agora", "agora.db")
}
