package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alienxp03/agora/internal/core"
)

type participantRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"uniqueIndex;not null"`
	Role        string `gorm:"not null;default:''"`
	Instruction string `gorm:"column:system_instruction;type:text"`
	Temperature *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (participantRow) TableName() string { return "participants" }

type debateRow struct {
	ID          string            `gorm:"primaryKey;size:64"`
	Topic       string            `gorm:"type:text;not null"`
	Rounds      int               `gorm:"not null;default:1"`
	Status      core.DebateStatus `gorm:"type:varchar(16);index;not null"`
	Config      map[string]any    `gorm:"column:config_json;type:text;serializer:json"`
	Plan        core.RotationPlan `gorm:"column:plan_json;type:text;serializer:json"`
	CreatedAt   time.Time         `gorm:"index"`
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (debateRow) TableName() string { return "debates" }

type turnRow struct {
	ID            string        `gorm:"primaryKey;size:64"`
	DebateID      string        `gorm:"size:64;not null;uniqueIndex:idx_turns_debate_number"`
	ParticipantID *string       `gorm:"size:64"`
	Speaker       string        `gorm:"not null;default:''"`
	Kind          core.TurnKind `gorm:"column:turn_type;type:varchar(16);not null"`
	Number        int           `gorm:"not null;uniqueIndex:idx_turns_debate_number"`
	Content       string        `gorm:"type:text;not null"`
	CreatedAt     time.Time

	// Debate is never loaded; it declares the foreign key turns hang off.
	Debate *debateRow `gorm:"foreignKey:DebateID;references:ID;constraint:OnDelete:CASCADE"`
}

func (turnRow) TableName() string { return "turns" }

// GormStorage implements Storage on PostgreSQL through gorm.
type GormStorage struct {
	db *gorm.DB
}

// NewPostgresStorage connects to PostgreSQL using dsn.
func NewPostgresStorage(dsn string) (*GormStorage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewGormStorage(db), nil
}

// NewGormStorage wraps an already opened gorm connection.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// Initialize migrates the schema.
func (s *GormStorage) Initialize() error {
	if err := s.db.AutoMigrate(&participantRow{}, &debateRow{}, &turnRow{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateDebate creates a new debate.
func (s *GormStorage) CreateDebate(debate *core.Debate) error {
	if err := s.db.Create(toDebateRow(debate)).Error; err != nil {
		return fmt.Errorf("failed to insert debate: %w", err)
	}
	return nil
}

// GetDebate retrieves a debate by ID.
func (s *GormStorage) GetDebate(id string) (*core.Debate, error) {
	var row debateRow
	err := s.db.Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debate: %w", err)
	}
	return row.toDebate(), nil
}

// SaveDebate writes the mutable fields of an existing debate.
func (s *GormStorage) SaveDebate(debate *core.Debate) error {
	return gormSaveDebate(s.db, debate)
}

func gormSaveDebate(db *gorm.DB, debate *core.Debate) error {
	debate.UpdatedAt = time.Now()
	err := db.Model(&debateRow{}).Where("id = ?", debate.ID).
		Select("topic", "rounds", "status", "config_json", "plan_json", "updated_at", "completed_at").
		Updates(toDebateRow(debate)).Error
	if err != nil {
		return fmt.Errorf("failed to update debate: %w", err)
	}
	return nil
}

// DeleteDebate deletes a debate and any turns left behind.
func (s *GormStorage) DeleteDebate(id string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("debate_id = ?", id).Delete(&turnRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&debateRow{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete debate: %w", err)
	}
	return nil
}

// ListDebates returns a list of debate summaries, newest first.
func (s *GormStorage) ListDebates(limit, offset int) ([]*core.DebateSummary, error) {
	var rows []debateRow
	if err := s.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var counts []struct {
		DebateID string
		Count    int
	}
	if len(ids) > 0 {
		err := s.db.Model(&turnRow{}).
			Select("debate_id, COUNT(*) AS count").
			Where("debate_id IN ?", ids).
			Group("debate_id").
			Scan(&counts).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count turns: %w", err)
		}
	}
	turnCounts := make(map[string]int, len(counts))
	for _, c := range counts {
		turnCounts[c.DebateID] = c.Count
	}

	summaries := make([]*core.DebateSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, &core.DebateSummary{
			ID:        row.ID,
			Topic:     row.Topic,
			Status:    row.Status,
			Rounds:    row.Rounds,
			PlanSize:  len(row.Plan),
			TurnCount: turnCounts[row.ID],
			CreatedAt: row.CreatedAt,
		})
	}
	return summaries, nil
}

// AppendTurn adds a turn to a debate.
func (s *GormStorage) AppendTurn(turn *core.Turn) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return gormInsertTurn(tx, turn)
	})
}

// RecordTurn appends a turn and saves the debate in one transaction.
func (s *GormStorage) RecordTurn(turn *core.Turn, debate *core.Debate) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := gormInsertTurn(tx, turn); err != nil {
			return err
		}
		return gormSaveDebate(tx, debate)
	})
}

func gormInsertTurn(tx *gorm.DB, turn *core.Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	var number int
	err := tx.Model(&turnRow{}).
		Where("debate_id = ?", turn.DebateID).
		Select("COALESCE(MAX(number), 0) + 1").
		Scan(&number).Error
	if err != nil {
		return fmt.Errorf("failed to assign turn number: %w", err)
	}
	turn.Number = number

	if err := tx.Create(toTurnRow(turn)).Error; err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// ListTurns returns all turns for a debate in creation order.
func (s *GormStorage) ListTurns(debateID string) ([]*core.Turn, error) {
	var rows []turnRow
	if err := s.db.Where("debate_id = ?", debateID).Order("number ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	turns := make([]*core.Turn, 0, len(rows))
	for i := range rows {
		turns = append(turns, rows[i].toTurn())
	}
	return turns, nil
}

// DeleteTurns removes every turn of a debate.
func (s *GormStorage) DeleteTurns(debateID string) error {
	if err := s.db.Where("debate_id = ?", debateID).Delete(&turnRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	return nil
}

// CreateParticipant creates a new participant.
func (s *GormStorage) CreateParticipant(p *core.Participant) error {
	err := s.db.Create(toParticipantRow(p)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("participant name %q already exists: %w", p.Name, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

// GetParticipant retrieves a participant by ID.
func (s *GormStorage) GetParticipant(id string) (*core.Participant, error) {
	return s.findParticipant("id = ?", id)
}

// GetParticipantByName retrieves a participant by its unique name.
func (s *GormStorage) GetParticipantByName(name string) (*core.Participant, error) {
	return s.findParticipant("name = ?", name)
}

func (s *GormStorage) findParticipant(where string, arg string) (*core.Participant, error) {
	var row participantRow
	err := s.db.Where(where, arg).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return row.toParticipant(), nil
}

// ListParticipants returns every participant ordered by name.
func (s *GormStorage) ListParticipants() ([]*core.Participant, error) {
	var rows []participantRow
	if err := s.db.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	participants := make([]*core.Participant, 0, len(rows))
	for i := range rows {
		participants = append(participants, rows[i].toParticipant())
	}
	return participants, nil
}

// UpdateParticipant writes the editable fields of an existing participant.
func (s *GormStorage) UpdateParticipant(p *core.Participant) error {
	p.UpdatedAt = time.Now()
	err := s.db.Model(&participantRow{}).Where("id = ?", p.ID).
		Select("name", "role", "system_instruction", "temperature", "updated_at").
		Updates(toParticipantRow(p)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("participant name %q already exists: %w", p.Name, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}
	return nil
}

// DeleteParticipant deletes a participant. Turns and plans referencing it
// are left untouched.
func (s *GormStorage) DeleteParticipant(id string) error {
	if err := s.db.Where("id = ?", id).Delete(&participantRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return nil
}

func toDebateRow(d *core.Debate) *debateRow {
	config := d.Config
	if config == nil {
		config = map[string]any{}
	}
	plan := d.Plan
	if plan == nil {
		plan = core.RotationPlan{}
	}
	return &debateRow{
		ID:          d.ID,
		Topic:       d.Topic,
		Rounds:      d.Rounds,
		Status:      d.Status,
		Config:      config,
		Plan:        plan,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		CompletedAt: d.CompletedAt,
	}
}

func (r *debateRow) toDebate() *core.Debate {
	d := &core.Debate{
		ID:          r.ID,
		Topic:       r.Topic,
		Rounds:      r.Rounds,
		Status:      r.Status,
		Config:      r.Config,
		Plan:        r.Plan,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}
	if d.Config == nil {
		d.Config = map[string]any{}
	}
	if d.Plan == nil {
		d.Plan = core.RotationPlan{}
	}
	return d
}

func toTurnRow(t *core.Turn) *turnRow {
	row := &turnRow{
		ID:        t.ID,
		DebateID:  t.DebateID,
		Speaker:   t.Speaker,
		Kind:      t.Kind,
		Number:    t.Number,
		Content:   t.Content,
		CreatedAt: t.CreatedAt,
	}
	if t.ParticipantID != "" {
		id := t.ParticipantID
		row.ParticipantID = &id
	}
	return row
}

func (r *turnRow) toTurn() *core.Turn {
	t := &core.Turn{
		ID:        r.ID,
		DebateID:  r.DebateID,
		Speaker:   r.Speaker,
		Kind:      r.Kind,
		Number:    r.Number,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
	}
	if r.ParticipantID != nil {
		t.ParticipantID = *r.ParticipantID
	}
	return t
}

func toParticipantRow(p *core.Participant) *participantRow {
	return &participantRow{
		ID:          p.ID,
		Name:        p.Name,
		Role:        p.Role,
		Instruction: p.Instruction,
		Temperature: p.Temperature,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (r *participantRow) toParticipant() *core.Participant {
	return &core.Participant{
		ID:          r.ID,
		Name:        r.Name,
		Role:        r.Role,
		Instruction: r.Instruction,
		Temperature: r.Temperature,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
