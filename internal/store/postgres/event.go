package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/pumpwatch/internal/domain"
)

const eventColumns = `id, pump_id, actor_id, action, event_time, recorded_time, reason, notes, manual`

type EventRepo struct {
	db DB
}

func NewEventRepo(db DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) error {
	err := querierFromCtx(ctx, r.db).QueryRow(ctx,
		`INSERT INTO pump_events (pump_id, actor_id, action, event_time, recorded_time, reason, notes, manual)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		e.PumpID, e.ActorID, string(e.Action), e.EventTime, e.RecordedTime,
		e.Reason, e.Notes, e.Manual,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("eventRepo.Create: %w", err)
	}

	return nil
}

func (r *EventRepo) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	return r.one(ctx, "eventRepo.GetByID",
		`SELECT `+eventColumns+` FROM pump_events WHERE id = $1`, id)
}

func (r *EventRepo) Latest(ctx context.Context, pumpID int64) (*domain.Event, error) {
	return r.one(ctx, "eventRepo.Latest",
		`SELECT `+eventColumns+` FROM pump_events WHERE pump_id = $1
		 ORDER BY event_time DESC, id DESC LIMIT 1`, pumpID)
}

func (r *EventRepo) LatestBefore(ctx context.Context, pumpID int64, t time.Time) (*domain.Event, error) {
	return r.one(ctx, "eventRepo.LatestBefore",
		`SELECT `+eventColumns+` FROM pump_events WHERE pump_id = $1 AND event_time < $2
		 ORDER BY event_time DESC, id DESC LIMIT 1`, pumpID, t)
}

func (r *EventRepo) LatestAtOrBefore(ctx context.Context, pumpID int64, t time.Time) (*domain.Event, error) {
	return r.one(ctx, "eventRepo.LatestAtOrBefore",
		`SELECT `+eventColumns+` FROM pump_events WHERE pump_id = $1 AND event_time <= $2
		 ORDER BY event_time DESC, id DESC LIMIT 1`, pumpID, t)
}

func (r *EventRepo) one(ctx context.Context, caller, query string, args ...any) (*domain.Event, error) {
	rows, err := querierFromCtx(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}
	defer rows.Close()

	events, err := scanEvents(rows, caller)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}

	return events[0], nil
}

func (r *EventRepo) ListRange(ctx context.Context, pumpID int64, from, to time.Time) ([]*domain.Event, error) {
	rows, err := querierFromCtx(ctx, r.db).Query(ctx,
		`SELECT `+eventColumns+` FROM pump_events
		 WHERE pump_id = $1 AND event_time >= $2 AND event_time <= $3
		 ORDER BY event_time, id`,
		pumpID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.ListRange: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows, "eventRepo.ListRange")
}

func (r *EventRepo) ListByPump(ctx context.Context, pumpID int64) ([]*domain.Event, error) {
	rows, err := querierFromCtx(ctx, r.db).Query(ctx,
		`SELECT `+eventColumns+` FROM pump_events WHERE pump_id = $1 ORDER BY event_time, id`,
		pumpID,
	)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.ListByPump: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows, "eventRepo.ListByPump")
}

func applyEventFilter(b squirrel.SelectBuilder, f domain.EventFilter) squirrel.SelectBuilder {
	if f.PumpID != 0 {
		b = b.Where(squirrel.Eq{"pump_id": f.PumpID})
	}
	if !f.From.IsZero() {
		b = b.Where(squirrel.GtOrEq{"event_time": f.From})
	}
	if !f.To.IsZero() {
		b = b.Where(squirrel.LtOrEq{"event_time": f.To})
	}
	return b
}

func (r *EventRepo) List(ctx context.Context, f domain.EventFilter) ([]*domain.Event, error) {
	b := applyEventFilter(psql.Select(eventColumns).From("pump_events"), f)
	if f.Desc {
		b = b.OrderBy("event_time DESC", "id DESC")
	} else {
		b = b.OrderBy("pump_id", "event_time", "id")
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("eventRepo.List: build: %w", err)
	}

	rows, err := querierFromCtx(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.List: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows, "eventRepo.List")
}

func (r *EventRepo) Count(ctx context.Context, f domain.EventFilter) (int, error) {
	query, args, err := applyEventFilter(psql.Select("count(*)").From("pump_events"), f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("eventRepo.Count: build: %w", err)
	}

	var n int
	if err := querierFromCtx(ctx, r.db).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("eventRepo.Count: %w", err)
	}

	return n, nil
}

func (r *EventRepo) Delete(ctx context.Context, id int64) error {
	tag, err := querierFromCtx(ctx, r.db).Exec(ctx, `DELETE FROM pump_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("eventRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("eventRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func scanEvents(rows pgx.Rows, caller string) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		var e domain.Event
		var action string

		if err := rows.Scan(
			&e.ID, &e.PumpID, &e.ActorID, &action, &e.EventTime, &e.RecordedTime,
			&e.Reason, &e.Notes, &e.Manual,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		e.Action = domain.Action(action)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return events, nil
}
