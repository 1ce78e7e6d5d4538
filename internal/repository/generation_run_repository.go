package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studyforge/internal/domain"
	"studyforge/internal/repository/models"
	"studyforge/internal/util"

	"github.com/jmoiron/sqlx"
)

const (
	insertRunQuery = `INSERT INTO generation_runs
	(id, origin, kind, difficulty, requested, delivered, status, rounds, failure_reason, created_at)
	VALUES (:id, :origin, :kind, :difficulty, :requested, :delivered, :status, :rounds, :failure_reason, :created_at)`

	insertAttemptQuery = `INSERT INTO attempt_records
	(run_id, sequence, round, provider_id, attempt, outcome, error, started_at, elapsed_ms)
	VALUES (:run_id, :sequence, :round, :provider_id, :attempt, :outcome, :error, :started_at, :elapsed_ms)`

	selectRunQuery = `SELECT id, origin, kind, difficulty, requested, delivered, status, rounds, failure_reason, created_at
	FROM generation_runs WHERE id = ?`

	selectRecentRunsQuery = `SELECT id, origin, kind, difficulty, requested, delivered, status, rounds, failure_reason, created_at
	FROM generation_runs ORDER BY created_at DESC, id DESC LIMIT ?`

	selectAttemptsQuery = `SELECT run_id, sequence, round, provider_id, attempt, outcome, error, started_at, elapsed_ms
	FROM attempt_records WHERE run_id = ? ORDER BY sequence`
)

// DefaultListLimit caps ListRecentRuns when the caller passes no limit.
const DefaultListLimit = 50

type sqlxGenerationRunRepository struct {
	db *sqlx.DB
	tm domain.TransactionManager
}

// NewGenerationRunRepository stores runs and their attempt logs in the given
// database. A run and its attempts are written in one transaction.
func NewGenerationRunRepository(db *sqlx.DB, tm domain.TransactionManager) domain.GenerationRunRepository {
	if tm == nil {
		tm = NewTransactionManagerAdapter(db)
	}
	return &sqlxGenerationRunRepository{db: db, tm: tm}
}

func toRunModel(run *domain.GenerationRun) *models.GenerationRun {
	return &models.GenerationRun{
		ID:            run.ID,
		Origin:        string(run.Origin),
		Kind:          string(run.Kind),
		Difficulty:    string(run.Difficulty),
		Requested:     run.Requested,
		Delivered:     run.Delivered,
		Status:        string(run.Status),
		Rounds:        run.Rounds,
		FailureReason: util.StringToNullString(run.FailureReason),
		CreatedAt:     run.CreatedAt.UTC(),
	}
}

func toAttemptModel(runID string, a domain.AttemptRecord) models.AttemptRecord {
	return models.AttemptRecord{
		RunID:      runID,
		Sequence:   a.Sequence,
		Round:      a.Round,
		ProviderID: a.ProviderID,
		Attempt:    a.Attempt,
		Outcome:    string(a.Outcome),
		Error:      util.StringToNullString(a.Error),
		StartedAt:  a.StartedAt.UTC(),
		ElapsedMS:  a.Elapsed.Milliseconds(),
	}
}

func toDomainRun(m *models.GenerationRun, attempts []models.AttemptRecord) *domain.GenerationRun {
	run := &domain.GenerationRun{
		ID:            m.ID,
		Origin:        domain.Origin(m.Origin),
		Kind:          domain.ItemKind(m.Kind),
		Difficulty:    domain.Difficulty(m.Difficulty),
		Requested:     m.Requested,
		Delivered:     m.Delivered,
		Status:        domain.TerminalStatus(m.Status),
		Rounds:        m.Rounds,
		FailureReason: m.FailureReason.String,
		CreatedAt:     m.CreatedAt,
		Attempts:      make([]domain.AttemptRecord, 0, len(attempts)),
	}
	for _, a := range attempts {
		run.Attempts = append(run.Attempts, domain.AttemptRecord{
			Sequence:   a.Sequence,
			Round:      a.Round,
			ProviderID: a.ProviderID,
			Attempt:    a.Attempt,
			Outcome:    domain.AttemptOutcome(a.Outcome),
			Error:      a.Error.String,
			StartedAt:  a.StartedAt,
			Elapsed:    time.Duration(a.ElapsedMS) * time.Millisecond,
		})
	}
	return run
}

func (r *sqlxGenerationRunRepository) SaveRun(ctx context.Context, run *domain.GenerationRun) error {
	if run == nil || run.ID == "" {
		return domain.NewInvalidInputError("run id is required")
	}
	return r.tm.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, r.db)
		if _, err := exec.NamedExecContext(ctx, insertRunQuery, toRunModel(run)); err != nil {
			return fmt.Errorf("failed to insert generation run %s: %w", run.ID, err)
		}
		for _, a := range run.Attempts {
			if _, err := exec.NamedExecContext(ctx, insertAttemptQuery, toAttemptModel(run.ID, a)); err != nil {
				return fmt.Errorf("failed to insert attempt %d of run %s: %w", a.Sequence, run.ID, err)
			}
		}
		return nil
	})
}

// GetRunByID returns nil, nil when the run does not exist.
func (r *sqlxGenerationRunRepository) GetRunByID(ctx context.Context, id string) (*domain.GenerationRun, error) {
	exec := GetExecutor(ctx, r.db)

	var m models.GenerationRun
	if err := exec.GetContext(ctx, &m, selectRunQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get generation run %s: %w", id, err)
	}

	var attempts []models.AttemptRecord
	if err := exec.SelectContext(ctx, &attempts, selectAttemptsQuery, id); err != nil {
		return nil, fmt.Errorf("failed to get attempts for run %s: %w", id, err)
	}
	return toDomainRun(&m, attempts), nil
}

// ListRecentRuns returns the newest runs first, without attempt logs.
func (r *sqlxGenerationRunRepository) ListRecentRuns(ctx context.Context, limit int) ([]*domain.GenerationRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var rows []models.GenerationRun
	if err := GetExecutor(ctx, r.db).SelectContext(ctx, &rows, selectRecentRunsQuery, limit); err != nil {
		return nil, fmt.Errorf("failed to list generation runs: %w", err)
	}
	runs := make([]*domain.GenerationRun, 0, len(rows))
	for i := range rows {
		runs = append(runs, toDomainRun(&rows[i], nil))
	}
	return runs, nil
}
