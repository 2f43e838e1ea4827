package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeletionLog is the immutable copy of an event taken just before it was
// deleted.
type DeletionLog struct {
	ID              uuid.UUID
	EventID         int64
	PumpID          int64
	PumpNumber      int
	Action          Action
	EventTime       time.Time
	RecordedTime    time.Time
	Reason          string
	Notes           string
	Manual          bool
	OriginalActorID uuid.UUID
	DeletedByID     uuid.UUID
	DeletionReason  string
	DeletedAt       time.Time
}

type DeletionLogRepository interface {
	Create(ctx context.Context, l *DeletionLog) error
	List(ctx context.Context, limit int) ([]*DeletionLog, error)
}
