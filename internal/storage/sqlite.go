package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/alienxp03/agora/internal/core"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection serializes transactions
	// instead of failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStorage{
		db:   db,
		path: dbPath,
	}, nil
}

// Initialize creates the database schema.
func (s *SQLiteStorage) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT '',
		system_instruction TEXT NOT NULL DEFAULT '',
		temperature REAL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS debates (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		rounds INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'WIP',
		config_json TEXT NOT NULL DEFAULT '{}',
		plan_json TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		debate_id TEXT NOT NULL,
		participant_id TEXT,
		speaker TEXT NOT NULL DEFAULT '',
		turn_type TEXT NOT NULL,
		number INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (debate_id) REFERENCES debates(id) ON DELETE CASCADE,
		UNIQUE (debate_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_turns_debate_id ON turns(debate_id);
	CREATE INDEX IF NOT EXISTS idx_debates_status ON debates(status);
	CREATE INDEX IF NOT EXISTS idx_debates_created_at ON debates(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// CreateDebate creates a new debate.
func (s *SQLiteStorage) CreateDebate(debate *core.Debate) error {
	configJSON, planJSON, err := marshalDebateColumns(debate)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO debates (id, topic, rounds, status, config_json, plan_json, created_at, updated_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		debate.ID,
		debate.Topic,
		debate.Rounds,
		debate.Status,
		configJSON,
		planJSON,
		debate.CreatedAt,
		debate.UpdatedAt,
		debate.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert debate: %w", err)
	}

	return nil
}

// GetDebate retrieves a debate by ID.
func (s *SQLiteStorage) GetDebate(id string) (*core.Debate, error) {
	query := `
	SELECT id, topic, rounds, status, config_json, plan_json, created_at, updated_at, completed_at
	FROM debates
	WHERE id = ?
	`

	debate, err := scanDebate(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debate: %w", err)
	}
	return debate, nil
}

func scanDebate(row scanner) (*core.Debate, error) {
	var debate core.Debate
	var configJSON, planJSON string
	var completedAt sql.NullTime

	err := row.Scan(
		&debate.ID,
		&debate.Topic,
		&debate.Rounds,
		&debate.Status,
		&configJSON,
		&planJSON,
		&debate.CreatedAt,
		&debate.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(configJSON), &debate.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if debate.Config == nil {
		debate.Config = map[string]any{}
	}
	if err := json.Unmarshal([]byte(planJSON), &debate.Plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}
	if debate.Plan == nil {
		debate.Plan = core.RotationPlan{}
	}
	if completedAt.Valid {
		debate.CompletedAt = &completedAt.Time
	}

	return &debate, nil
}

func marshalDebateColumns(debate *core.Debate) (string, string, error) {
	config := debate.Config
	if config == nil {
		config = map[string]any{}
	}
	configJSON, err := json.Marshal(config)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal config: %w", err)
	}

	plan := debate.Plan
	if plan == nil {
		plan = core.RotationPlan{}
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal plan: %w", err)
	}

	return string(configJSON), string(planJSON), nil
}

// SaveDebate writes the mutable fields of an existing debate.
func (s *SQLiteStorage) SaveDebate(debate *core.Debate) error {
	return saveDebate(s.db, debate)
}

func saveDebate(db execer, debate *core.Debate) error {
	configJSON, planJSON, err := marshalDebateColumns(debate)
	if err != nil {
		return err
	}

	debate.UpdatedAt = time.Now()

	query := `
	UPDATE debates
	SET topic = ?, rounds = ?, status = ?, config_json = ?, plan_json = ?, updated_at = ?, completed_at = ?
	WHERE id = ?
	`

	_, err = db.Exec(query,
		debate.Topic,
		debate.Rounds,
		debate.Status,
		configJSON,
		planJSON,
		debate.UpdatedAt,
		debate.CompletedAt,
		debate.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update debate: %w", err)
	}

	return nil
}

// DeleteDebate deletes a debate and any turns left behind.
func (s *SQLiteStorage) DeleteDebate(id string) error {
	_, err := s.db.Exec("DELETE FROM debates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete debate: %w", err)
	}
	return nil
}

// ListDebates returns a list of debate summaries, newest first.
func (s *SQLiteStorage) ListDebates(limit, offset int) ([]*core.DebateSummary, error) {
	query := `
	SELECT d.id, d.topic, d.status, d.rounds, d.plan_json, d.created_at,
		   (SELECT COUNT(*) FROM turns WHERE debate_id = d.id) as turn_count
	FROM debates d
	ORDER BY d.created_at DESC
	LIMIT ? OFFSET ?
	`

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	defer rows.Close()

	var summaries []*core.DebateSummary
	for rows.Next() {
		var summary core.DebateSummary
		var planJSON string

		err := rows.Scan(
			&summary.ID,
			&summary.Topic,
			&summary.Status,
			&summary.Rounds,
			&planJSON,
			&summary.CreatedAt,
			&summary.TurnCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debate summary: %w", err)
		}

		var plan core.RotationPlan
		if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
		}
		summary.PlanSize = len(plan)

		summaries = append(summaries, &summary)
	}

	return summaries, rows.Err()
}

// AppendTurn adds a turn to a debate.
func (s *SQLiteStorage) AppendTurn(turn *core.Turn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTurn(tx, turn); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

// RecordTurn appends a turn and saves the debate in one transaction.
func (s *SQLiteStorage) RecordTurn(turn *core.Turn, debate *core.Debate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTurn(tx, turn); err != nil {
		return err
	}
	if err := saveDebate(tx, debate); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

func insertTurn(tx execer, turn *core.Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	var number int
	err := tx.QueryRow("SELECT COALESCE(MAX(number), 0) + 1 FROM turns WHERE debate_id = ?", turn.DebateID).Scan(&number)
	if err != nil {
		return fmt.Errorf("failed to assign turn number: %w", err)
	}
	turn.Number = number

	query := `
	INSERT INTO turns (id, debate_id, participant_id, speaker, turn_type, number, content, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		turn.ID,
		turn.DebateID,
		nullString(turn.ParticipantID),
		turn.Speaker,
		turn.Kind,
		turn.Number,
		turn.Content,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	return nil
}

// ListTurns returns all turns for a debate in creation order.
func (s *SQLiteStorage) ListTurns(debateID string) ([]*core.Turn, error) {
	query := `
	SELECT id, debate_id, participant_id, speaker, turn_type, number, content, created_at
	FROM turns
	WHERE debate_id = ?
	ORDER BY number ASC
	`

	rows, err := s.db.Query(query, debateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer rows.Close()

	var turns []*core.Turn
	for rows.Next() {
		var turn core.Turn
		var participantID sql.NullString
		err := rows.Scan(
			&turn.ID,
			&turn.DebateID,
			&participantID,
			&turn.Speaker,
			&turn.Kind,
			&turn.Number,
			&turn.Content,
			&turn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.ParticipantID = participantID.String
		turns = append(turns, &turn)
	}

	return turns, rows.Err()
}

// DeleteTurns removes every turn of a debate.
func (s *SQLiteStorage) DeleteTurns(debateID string) error {
	_, err := s.db.Exec("DELETE FROM turns WHERE debate_id = ?", debateID)
	if err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	return nil
}

// CreateParticipant creates a new participant.
func (s *SQLiteStorage) CreateParticipant(p *core.Participant) error {
	query := `
	INSERT INTO participants (id, name, role, system_instruction, temperature, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		p.ID,
		p.Name,
		p.Role,
		p.Instruction,
		nullFloat(p.Temperature),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("participant name %q already exists: %w", p.Name, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

const participantColumns = `id, name, role, system_instruction, temperature, created_at, updated_at`

// GetParticipant retrieves a participant by ID.
func (s *SQLiteStorage) GetParticipant(id string) (*core.Participant, error) {
	row := s.db.QueryRow("SELECT "+participantColumns+" FROM participants WHERE id = ?", id)
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// GetParticipantByName retrieves a participant by its unique name.
func (s *SQLiteStorage) GetParticipantByName(name string) (*core.Participant, error) {
	row := s.db.QueryRow("SELECT "+participantColumns+" FROM participants WHERE name = ?", name)
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// ListParticipants returns every participant ordered by name.
func (s *SQLiteStorage) ListParticipants() ([]*core.Participant, error) {
	rows, err := s.db.Query("SELECT " + participantColumns + " FROM participants ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*core.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func scanParticipant(row scanner) (*core.Participant, error) {
	var p core.Participant
	var temperature sql.NullFloat64
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Role,
		&p.Instruction,
		&temperature,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if temperature.Valid {
		p.Temperature = &temperature.Float64
	}
	return &p, nil
}

// UpdateParticipant writes the editable fields of an existing participant.
func (s *SQLiteStorage) UpdateParticipant(p *core.Participant) error {
	p.UpdatedAt = time.Now()

	query := `
	UPDATE participants
	SET name = ?, role = ?, system_instruction = ?, temperature = ?, updated_at = ?
	WHERE id = ?
	`

	_, err := s.db.Exec(query,
		p.Name,
		p.Role,
		p.Instruction,
		nullFloat(p.Temperature),
		p.UpdatedAt,
		p.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("participant name %q already exists: %w", p.Name, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}
	return nil
}

// DeleteParticipant deletes a participant. Turns and plans referencing it
// are left untouched.
func (s *SQLiteStorage) DeleteParticipant(id string) error {
	_, err := s.db.Exec("DELETE FROM participants WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
