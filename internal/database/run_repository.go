package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/snappy-loop/podcasts/internal/models"
)

// Run statuses
const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// DefaultListLimit caps ListRecent when no limit is given
const DefaultListLimit = 20

// RunRepository stores the generation run history
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new RunRepository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// RunFromEvent converts a generation event into a history row
func RunFromEvent(event *models.GenerationEvent) *models.GenerationRun {
	run := &models.GenerationRun{
		ID:         event.RunID,
		Topic:      event.Topic,
		Style:      event.Style,
		Model:      event.Model,
		SkipAudio:  event.SkipAudio,
		Status:     RunStatusSucceeded,
		DurationMs: event.Duration().Milliseconds(),
		CreatedAt:  event.StartedAt,
	}
	if event.Type == models.EventFailed {
		run.Status = RunStatusFailed
	}
	if event.ScriptPath != "" {
		run.ScriptPath = &event.ScriptPath
	}
	if event.AudioPath != "" {
		run.AudioPath = &event.AudioPath
	}
	if event.Error != "" {
		run.ErrorMessage = &event.Error
	}
	return run
}

// RecordEvent stores the outcome of one pipeline run
func (r *RunRepository) RecordEvent(ctx context.Context, event *models.GenerationEvent) error {
	return r.Create(ctx, RunFromEvent(event))
}

// Create inserts a run row
func (r *RunRepository) Create(ctx context.Context, run *models.GenerationRun) error {
	query := `
		INSERT INTO generation_runs (
			id, topic, style, model, skip_audio, status,
			script_path, audio_path, error_message, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Topic, run.Style, run.Model, run.SkipAudio, run.Status,
		run.ScriptPath, run.AudioPath, run.ErrorMessage, run.DurationMs, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GenerationRun, error) {
	query := `
		SELECT id, topic, style, model, skip_audio, status,
			script_path, audio_path, error_message, duration_ms, created_at
		FROM generation_runs WHERE id = $1
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("generation run %s: %w", id, models.ErrNotFound)
	}
	return run, err
}

// ListRecent returns the newest runs first
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*models.GenerationRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, topic, style, model, skip_audio, status,
			script_path, audio_path, error_message, duration_ms, created_at
		FROM generation_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.GenerationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.GenerationRun, error) {
	run := &models.GenerationRun{}
	err := row.Scan(
		&run.ID, &run.Topic, &run.Style, &run.Model, &run.SkipAudio, &run.Status,
		&run.ScriptPath, &run.AudioPath, &run.ErrorMessage, &run.DurationMs, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}
