package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gosuda/pumpwatch/internal/domain"
)

type PumpRepo struct {
	db DB
}

func NewPumpRepo(db DB) *PumpRepo {
	return &PumpRepo{db: db}
}

func (r *PumpRepo) Create(ctx context.Context, p *domain.Pump) error {
	if p.Status == "" {
		p.Status = domain.ActionOff
	}

	_, err := querierFromCtx(ctx, r.db).Exec(ctx,
		`INSERT INTO pumps (id, number, name, location, status, last_change)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Number, p.Name, p.Location, string(p.Status), p.LastChange,
	)
	if err != nil {
		return fmt.Errorf("pumpRepo.Create: %w", err)
	}

	return nil
}

func (r *PumpRepo) GetByID(ctx context.Context, id int64) (*domain.Pump, error) {
	return r.get(ctx, "pumpRepo.GetByID",
		`SELECT id, number, name, location, status, last_change FROM pumps WHERE id = $1`, id)
}

func (r *PumpRepo) GetByNumber(ctx context.Context, number int) (*domain.Pump, error) {
	return r.get(ctx, "pumpRepo.GetByNumber",
		`SELECT id, number, name, location, status, last_change FROM pumps WHERE number = $1`, number)
}

func (r *PumpRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Pump, error) {
	return r.get(ctx, "pumpRepo.GetForUpdate",
		`SELECT id, number, name, location, status, last_change FROM pumps WHERE id = $1 FOR UPDATE`, id)
}

func (r *PumpRepo) get(ctx context.Context, caller, query string, arg any) (*domain.Pump, error) {
	var p domain.Pump
	var status string

	err := querierFromCtx(ctx, r.db).QueryRow(ctx, query, arg).
		Scan(&p.ID, &p.Number, &p.Name, &p.Location, &status, &p.LastChange)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}

	p.Status = domain.Action(status)
	return &p, nil
}

func (r *PumpRepo) List(ctx context.Context) ([]*domain.Pump, error) {
	rows, err := querierFromCtx(ctx, r.db).Query(ctx,
		`SELECT p.id, p.number, p.name, p.location, p.status, p.last_change,
		        EXISTS (SELECT 1 FROM pump_events e WHERE e.pump_id = p.id)
		 FROM pumps p
		 ORDER BY p.number`,
	)
	if err != nil {
		return nil, fmt.Errorf("pumpRepo.List: %w", err)
	}
	defer rows.Close()

	var pumps []*domain.Pump
	for rows.Next() {
		var p domain.Pump
		var status string

		if err := rows.Scan(&p.ID, &p.Number, &p.Name, &p.Location, &status, &p.LastChange, &p.HasHistory); err != nil {
			return nil, fmt.Errorf("pumpRepo.List: scan: %w", err)
		}
		p.Status = domain.Action(status)
		pumps = append(pumps, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pumpRepo.List: rows: %w", err)
	}

	return pumps, nil
}

func (r *PumpRepo) UpdateStatus(ctx context.Context, id int64, status domain.Action, lastChange *time.Time) error {
	tag, err := querierFromCtx(ctx, r.db).Exec(ctx,
		`UPDATE pumps SET status = $1, last_change = $2 WHERE id = $3`,
		string(status), lastChange, id,
	)
	if err != nil {
		return fmt.Errorf("pumpRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pumpRepo.UpdateStatus: %w", domain.ErrNotFound)
	}

	return nil
}
