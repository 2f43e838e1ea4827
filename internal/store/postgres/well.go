package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/pumpwatch/internal/domain"
)

var wellColumns = "id, number, pump_id, " + strings.Join(domain.EditableWellFields, ", ") + ", created_at, updated_at"

type WellRepo struct {
	db DB
}

func NewWellRepo(db DB) *WellRepo {
	return &WellRepo{db: db}
}

func (r *WellRepo) Create(ctx context.Context, w *domain.Well) error {
	values := map[string]any{
		"id":         w.ID,
		"number":     w.Number,
		"pump_id":    w.PumpID,
		"created_at": w.CreatedAt,
		"updated_at": w.UpdatedAt,
	}
	for _, f := range domain.EditableWellFields {
		values[f] = w.Attrs[f]
	}

	query, args, err := psql.Insert("wells").SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("wellRepo.Create: build: %w", err)
	}

	if _, err := querierFromCtx(ctx, r.db).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("wellRepo.Create: %w", err)
	}

	return nil
}

func (r *WellRepo) GetByID(ctx context.Context, id int64) (*domain.Well, error) {
	return r.get(ctx, "wellRepo.GetByID", `SELECT `+wellColumns+` FROM wells WHERE id = $1`, id)
}

func (r *WellRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Well, error) {
	return r.get(ctx, "wellRepo.GetForUpdate", `SELECT `+wellColumns+` FROM wells WHERE id = $1 FOR UPDATE`, id)
}

func (r *WellRepo) get(ctx context.Context, caller, query string, id int64) (*domain.Well, error) {
	w, dest := newWellDest()

	err := querierFromCtx(ctx, r.db).QueryRow(ctx, query, id).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}

	return w.finish(), nil
}

func (r *WellRepo) List(ctx context.Context) ([]*domain.Well, error) {
	rows, err := querierFromCtx(ctx, r.db).Query(ctx, `SELECT `+wellColumns+` FROM wells ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("wellRepo.List: %w", err)
	}
	defer rows.Close()

	var wells []*domain.Well
	for rows.Next() {
		w, dest := newWellDest()
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("wellRepo.List: scan: %w", err)
		}
		wells = append(wells, w.finish())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wellRepo.List: rows: %w", err)
	}

	return wells, nil
}

func (r *WellRepo) UpdateFields(ctx context.Context, id int64, fields map[string]*string, updatedAt time.Time) error {
	set := make(map[string]any, len(fields)+1)
	for name, v := range fields {
		if !domain.IsEditableWellField(name) {
			return fmt.Errorf("wellRepo.UpdateFields: %w", domain.Validationf("field %q is not editable", name))
		}
		set[name] = v
	}
	set["updated_at"] = updatedAt

	query, args, err := psql.Update("wells").SetMap(set).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("wellRepo.UpdateFields: build: %w", err)
	}

	tag, err := querierFromCtx(ctx, r.db).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("wellRepo.UpdateFields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wellRepo.UpdateFields: %w", domain.ErrNotFound)
	}

	return nil
}

// wellDest holds scan targets for one wells row.
type wellDest struct {
	well  domain.Well
	attrs []*string
}

func newWellDest() (*wellDest, []any) {
	d := &wellDest{attrs: make([]*string, len(domain.EditableWellFields))}
	dest := []any{&d.well.ID, &d.well.Number, &d.well.PumpID}
	for i := range d.attrs {
		dest = append(dest, &d.attrs[i])
	}
	dest = append(dest, &d.well.CreatedAt, &d.well.UpdatedAt)
	return d, dest
}

func (d *wellDest) finish() *domain.Well {
	d.well.Attrs = make(map[string]*string, len(domain.EditableWellFields))
	for i, f := range domain.EditableWellFields {
		d.well.Attrs[f] = d.attrs[i]
	}
	return &d.well
}

type WellHistoryRepo struct {
	db DB
}

func NewWellHistoryRepo(db DB) *WellHistoryRepo {
	return &WellHistoryRepo{db: db}
}

func (r *WellHistoryRepo) Create(ctx context.Context, rec *domain.AuditRecord) error {
	changedFields, err := json.Marshal(rec.ChangedFields)
	if err != nil {
		return fmt.Errorf("wellHistoryRepo.Create: marshal changed fields: %w", err)
	}
	changedValues, err := json.Marshal(rec.ChangedValues)
	if err != nil {
		return fmt.Errorf("wellHistoryRepo.Create: marshal changed values: %w", err)
	}
	snapshot, err := json.Marshal(rec.FullSnapshot)
	if err != nil {
		return fmt.Errorf("wellHistoryRepo.Create: marshal snapshot: %w", err)
	}

	_, err = querierFromCtx(ctx, r.db).Exec(ctx,
		`INSERT INTO well_history (id, well_id, actor_id, operation_type, operation_date, performed_by,
		        changed_fields, changed_values, full_snapshot, reason, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.WellID, rec.ActorID, rec.OperationType, rec.OperationDate, rec.PerformedBy,
		changedFields, changedValues, snapshot, rec.Reason, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("wellHistoryRepo.Create: %w", err)
	}

	return nil
}

func (r *WellHistoryRepo) ListByWell(ctx context.Context, wellID int64, limit int) ([]*domain.AuditRecord, error) {
	rows, err := querierFromCtx(ctx, r.db).Query(ctx,
		`SELECT id, well_id, actor_id, operation_type, operation_date, performed_by,
		        changed_fields, changed_values, full_snapshot, reason, recorded_at
		 FROM well_history WHERE well_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`,
		wellID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("wellHistoryRepo.ListByWell: %w", err)
	}
	defer rows.Close()

	var records []*domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var changedFields, changedValues, snapshot []byte

		if err := rows.Scan(
			&rec.ID, &rec.WellID, &rec.ActorID, &rec.OperationType, &rec.OperationDate, &rec.PerformedBy,
			&changedFields, &changedValues, &snapshot, &rec.Reason, &rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("wellHistoryRepo.ListByWell: scan: %w", err)
		}
		if err := json.Unmarshal(changedFields, &rec.ChangedFields); err != nil {
			return nil, fmt.Errorf("wellHistoryRepo.ListByWell: unmarshal changed fields: %w", err)
		}
		if err := json.Unmarshal(changedValues, &rec.ChangedValues); err != nil {
			return nil, fmt.Errorf("wellHistoryRepo.ListByWell: unmarshal changed values: %w", err)
		}
		if err := json.Unmarshal(snapshot, &rec.FullSnapshot); err != nil {
			return nil, fmt.Errorf("wellHistoryRepo.ListByWell: unmarshal snapshot: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wellHistoryRepo.ListByWell: rows: %w", err)
	}

	return records, nil
}
