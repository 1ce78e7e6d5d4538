package domain

import (
	"context"
	"time"
)

// GenerationRun is the persisted summary of one generation request together
// with its attempt log.
type GenerationRun struct {
	ID            string
	Origin        Origin
	Kind          ItemKind
	Difficulty    Difficulty
	Requested     int
	Delivered     int
	Status        TerminalStatus
	Rounds        int
	FailureReason string
	CreatedAt     time.Time
	Attempts      []AttemptRecord
}

// NewGenerationRun captures the diagnostic parts of an outcome.
func NewGenerationRun(o *GenerationOutcome) *GenerationRun {
	attempts := make([]AttemptRecord, len(o.Attempts))
	copy(attempts, o.Attempts)
	return &GenerationRun{
		ID:            o.RequestID,
		Origin:        o.Origin,
		Kind:          o.Kind,
		Difficulty:    o.Difficulty,
		Requested:     o.Requested,
		Delivered:     o.Delivered,
		Status:        o.Status,
		Rounds:        o.Rounds,
		FailureReason: o.FailureReason,
		CreatedAt:     o.CreatedAt,
		Attempts:      attempts,
	}
}

// GenerationRunRepository persists run diagnostics.
type GenerationRunRepository interface {
	SaveRun(ctx context.Context, run *GenerationRun) error
	GetRunByID(ctx context.Context, id string) (*GenerationRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]*GenerationRun, error)
}

// TransactionManager runs fn inside a single database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
