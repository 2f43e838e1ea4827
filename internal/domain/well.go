package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EditableWellFields lists, in column order, the well attributes that a
// recorded change may modify. Anything else in a proposed update is ignored.
var EditableWellFields = []string{
	"name",
	"location",
	"total_depth",
	"pump_installation_depth",
	"well_diameter",
	"current_pump_brand",
	"current_pump_model",
	"current_pump_power",
	"current_pipe_material",
	"current_pipe_diameter",
	"current_pipe_length_m",
	"main_cable_specs",
	"well_cable_specs",
	"current_panel_specs",
	"status",
}

// IsEditableWellField reports whether name is in EditableWellFields.
func IsEditableWellField(name string) bool {
	for _, f := range EditableWellFields {
		if f == name {
			return true
		}
	}
	return false
}

// Well is the mutable equipment metadata attached to a pump. Attrs is keyed
// by EditableWellFields; a nil value is a NULL column.
type Well struct {
	ID        int64
	Number    int
	PumpID    *int64
	Attrs     map[string]*string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot returns every field of the well as a flat map.
func (w *Well) Snapshot() map[string]any {
	snap := make(map[string]any, len(EditableWellFields)+5)
	snap["id"] = w.ID
	snap["well_number"] = w.Number
	if w.PumpID != nil {
		snap["pump_id"] = *w.PumpID
	} else {
		snap["pump_id"] = nil
	}
	for _, f := range EditableWellFields {
		if v := w.Attrs[f]; v != nil {
			snap[f] = *v
		} else {
			snap[f] = nil
		}
	}
	snap["created_at"] = w.CreatedAt.UTC().Format(time.RFC3339)
	snap["updated_at"] = w.UpdatedAt.UTC().Format(time.RFC3339)
	return snap
}

// FieldChange is the before/after pair of one changed well attribute.
type FieldChange struct {
	Old *string `json:"old"`
	New *string `json:"new"`
}

// AuditRecord is an append-only entry in a well's change history. A record
// with no ChangedFields documents an operation that left the well unchanged.
type AuditRecord struct {
	ID            uuid.UUID
	WellID        int64
	ActorID       uuid.UUID
	OperationType string
	OperationDate time.Time
	PerformedBy   string
	ChangedFields []string
	ChangedValues map[string]FieldChange
	FullSnapshot  map[string]any
	Reason        string
	RecordedAt    time.Time
}

type WellRepository interface {
	Create(ctx context.Context, w *Well) error
	GetByID(ctx context.Context, id int64) (*Well, error)
	GetForUpdate(ctx context.Context, id int64) (*Well, error)
	List(ctx context.Context) ([]*Well, error)
	// UpdateFields writes only the given attributes plus updated_at.
	UpdateFields(ctx context.Context, id int64, fields map[string]*string, updatedAt time.Time) error
}

type WellHistoryRepository interface {
	Create(ctx context.Context, r *AuditRecord) error
	ListByWell(ctx context.Context, wellID int64, limit int) ([]*AuditRecord, error)
}
