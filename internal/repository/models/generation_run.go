package models

import (
	"database/sql"
	"time"
)

// GenerationRun maps the generation_runs table.
type GenerationRun struct {
	ID            string         `db:"id"`
	Origin        string         `db:"origin"`
	Kind          string         `db:"kind"`
	Difficulty    string         `db:"difficulty"`
	Requested     int            `db:"requested"`
	Delivered     int            `db:"delivered"`
	Status        string         `db:"status"`
	Rounds        int            `db:"rounds"`
	FailureReason sql.NullString `db:"failure_reason"`
	CreatedAt     time.Time      `db:"created_at"`
}

// AttemptRecord maps the attempt_records table.
type AttemptRecord struct {
	RunID      string         `db:"run_id"`
	Sequence   int            `db:"sequence"`
	Round      int            `db:"round"`
	ProviderID string         `db:"provider_id"`
	Attempt    int            `db:"attempt"`
	Outcome    string         `db:"outcome"`
	Error      sql.NullString `db:"error"`
	StartedAt  time.Time      `db:"started_at"`
	ElapsedMS  int64          `db:"elapsed_ms"`
}
