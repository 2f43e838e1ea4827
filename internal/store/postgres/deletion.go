package postgres

import (
	"context"
	"fmt"

	"github.com/gosuda/pumpwatch/internal/domain"
)

type DeletionLogRepo struct {
	db DB
}

func NewDeletionLogRepo(db DB) *DeletionLogRepo {
	return &DeletionLogRepo{db: db}
}

func (r *DeletionLogRepo) Create(ctx context.Context, l *domain.DeletionLog) error {
	_, err := querierFromCtx(ctx, r.db).Exec(ctx,
		`INSERT INTO deletion_logs (id, event_id, pump_id, pump_number, action, event_time, recorded_time,
		        reason, notes, manual, original_actor_id, deleted_by_id, deletion_reason, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		l.ID, l.EventID, l.PumpID, l.PumpNumber, string(l.Action), l.EventTime, l.RecordedTime,
		l.Reason, l.Notes, l.Manual, l.OriginalActorID, l.DeletedByID, l.DeletionReason, l.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("deletionLogRepo.Create: %w", err)
	}

	return nil
}

func (r *DeletionLogRepo) List(ctx context.Context, limit int) ([]*domain.DeletionLog, error) {
	rows, err := querierFromCtx(ctx, r.db).Query(ctx,
		`SELECT id, event_id, pump_id, pump_number, action, event_time, recorded_time,
		        reason, notes, manual, original_actor_id, deleted_by_id, deletion_reason, deleted_at
		 FROM deletion_logs
		 ORDER BY deleted_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("deletionLogRepo.List: %w", err)
	}
	defer rows.Close()

	var logs []*domain.DeletionLog
	for rows.Next() {
		var l domain.DeletionLog
		var action string

		if err := rows.Scan(
			&l.ID, &l.EventID, &l.PumpID, &l.PumpNumber, &action, &l.EventTime, &l.RecordedTime,
			&l.Reason, &l.Notes, &l.Manual, &l.OriginalActorID, &l.DeletedByID, &l.DeletionReason, &l.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("deletionLogRepo.List: scan: %w", err)
		}
		l.Action = domain.Action(action)
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deletionLogRepo.List: rows: %w", err)
	}

	return logs, nil
}
