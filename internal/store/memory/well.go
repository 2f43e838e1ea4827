package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/gosuda/pumpwatch/internal/domain"
)

func cloneWell(w *domain.Well) *domain.Well {
	cw := *w
	if w.PumpID != nil {
		id := *w.PumpID
		cw.PumpID = &id
	}
	cw.Attrs = make(map[string]*string, len(w.Attrs))
	for k, v := range w.Attrs {
		if v != nil {
			s := *v
			cw.Attrs[k] = &s
		} else {
			cw.Attrs[k] = nil
		}
	}
	return &cw
}

type WellRepo struct{ s *Store }

func (r *WellRepo) Create(ctx context.Context, w *domain.Well) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.wells[w.ID]; ok {
			return fmt.Errorf("wellRepo.Create: well %d already exists", w.ID)
		}
		t.wells[w.ID] = cloneWell(w)
		return nil
	})
}

func (r *WellRepo) GetByID(ctx context.Context, id int64) (*domain.Well, error) {
	var out *domain.Well
	err := r.s.read(ctx, func(t *tables) error {
		w, ok := t.wells[id]
		if !ok {
			return fmt.Errorf("wellRepo.GetByID: %w", domain.ErrNotFound)
		}
		out = cloneWell(w)
		return nil
	})
	return out, err
}

func (r *WellRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Well, error) {
	return r.GetByID(ctx, id)
}

func (r *WellRepo) List(ctx context.Context) ([]*domain.Well, error) {
	var out []*domain.Well
	err := r.s.read(ctx, func(t *tables) error {
		for _, w := range t.wells {
			out = append(out, cloneWell(w))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, err
}

func (r *WellRepo) UpdateFields(ctx context.Context, id int64, fields map[string]*string, updatedAt time.Time) error {
	return r.s.write(ctx, func(t *tables) error {
		w, ok := t.wells[id]
		if !ok {
			return fmt.Errorf("wellRepo.UpdateFields: %w", domain.ErrNotFound)
		}
		for name := range fields {
			if !domain.IsEditableWellField(name) {
				return fmt.Errorf("wellRepo.UpdateFields: %w", domain.Validationf("field %q is not editable", name))
			}
		}
		updated := cloneWell(w)
		for name, v := range fields {
			if v != nil {
				s := *v
				updated.Attrs[name] = &s
			} else {
				updated.Attrs[name] = nil
			}
		}
		updated.UpdatedAt = updatedAt
		t.wells[id] = updated
		return nil
	})
}

// --- Well history ---

type WellHistoryRepo struct{ s *Store }

func (r *WellHistoryRepo) Create(ctx context.Context, rec *domain.AuditRecord) error {
	return r.s.write(ctx, func(t *tables) error {
		cr := *rec
		cr.ChangedFields = append([]string{}, rec.ChangedFields...)
		cr.ChangedValues = maps.Clone(rec.ChangedValues)
		cr.FullSnapshot = maps.Clone(rec.FullSnapshot)
		t.wellHistory = append(t.wellHistory, &cr)
		return nil
	})
}

func (r *WellHistoryRepo) ListByWell(ctx context.Context, wellID int64, limit int) ([]*domain.AuditRecord, error) {
	var out []*domain.AuditRecord
	err := r.s.read(ctx, func(t *tables) error {
		for i := len(t.wellHistory) - 1; i >= 0; i-- {
			if limit > 0 && len(out) == limit {
				break
			}
			if rec := t.wellHistory[i]; rec.WellID == wellID {
				cr := *rec
				out = append(out, &cr)
			}
		}
		return nil
	})
	return out, err
}
