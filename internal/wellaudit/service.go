// Package wellaudit records changes to well equipment metadata. Every
// accepted request leaves exactly one audit record, even when nothing
// changed.
package wellaudit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/metrics"
)

// DefaultHistoryLimit bounds History when the caller passes no limit.
const DefaultHistoryLimit = 100

type Service struct {
	store domain.Store
	now   func() time.Time
}

func NewService(store domain.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// ChangeRequest is a proposed update of a well's attributes. Keys of Updates
// that are not editable are ignored; a nil value clears the attribute.
type ChangeRequest struct {
	WellID        int64
	Actor         domain.Actor
	OperationType string
	OperationDate time.Time
	PerformedBy   string
	Updates       map[string]*string
	Reason        string
}

// RecordChange applies the fields of req that differ from the stored well and
// writes the audit record, in one transaction.
func (s *Service) RecordChange(ctx context.Context, req ChangeRequest) (*domain.AuditRecord, error) {
	if !req.Actor.Role.Can(domain.CapRecordWellChange) {
		metrics.Reject("record_change", domain.KindPermission)
		return nil, fmt.Errorf("wellaudit.RecordChange: role %q: %w", req.Actor.Role, domain.ErrPermission)
	}
	opType := strings.TrimSpace(req.OperationType)
	if opType == "" {
		return nil, fmt.Errorf("wellaudit.RecordChange: %w", domain.Validationf("operation type is required"))
	}

	now := s.now()
	opDate := req.OperationDate
	if opDate.IsZero() {
		opDate = now
	}

	var rec *domain.AuditRecord
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		well, err := s.store.Wells().GetForUpdate(ctx, req.WellID)
		if err != nil {
			return err
		}

		changed, values, fields := diff(well.Attrs, req.Updates)
		if len(changed) > 0 {
			if err := s.store.Wells().UpdateFields(ctx, well.ID, fields, now); err != nil {
				return err
			}
			if well, err = s.store.Wells().GetByID(ctx, well.ID); err != nil {
				return err
			}
		}

		rec = &domain.AuditRecord{
			ID:            uuid.New(),
			WellID:        well.ID,
			ActorID:       req.Actor.ID,
			OperationType: opType,
			OperationDate: opDate,
			PerformedBy:   strings.TrimSpace(req.PerformedBy),
			ChangedFields: changed,
			ChangedValues: values,
			FullSnapshot:  well.Snapshot(),
			Reason:        strings.TrimSpace(req.Reason),
			RecordedAt:    now,
		}
		return s.store.WellHistory().Create(ctx, rec)
	})
	if err != nil {
		err = domain.Persistence("wellaudit.RecordChange", err)
		metrics.Reject("record_change", domain.KindOf(err))
		return nil, err
	}

	metrics.AuditRecords.WithLabelValues(strconv.FormatBool(len(rec.ChangedFields) > 0)).Inc()
	log.Info().
		Int64("well_id", rec.WellID).
		Str("operation", rec.OperationType).
		Strs("changed", rec.ChangedFields).
		Msg("wellaudit.RecordChange: recorded")

	return rec, nil
}

// diff compares updates with current in EditableWellFields order. NULL and
// the empty string are the same value. fields holds the normalized new
// values of the changed attributes only.
func diff(current, updates map[string]*string) ([]string, map[string]domain.FieldChange, map[string]*string) {
	changed := []string{}
	values := make(map[string]domain.FieldChange)
	fields := make(map[string]*string)

	for _, name := range domain.EditableWellFields {
		proposed, ok := updates[name]
		if !ok {
			continue
		}
		old := current[name]
		if deref(old) == deref(proposed) {
			continue
		}
		changed = append(changed, name)
		values[name] = domain.FieldChange{Old: old, New: proposed}
		if deref(proposed) == "" {
			fields[name] = nil
		} else {
			fields[name] = proposed
		}
	}

	return changed, values, fields
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// History returns the audit records of a well, newest first.
func (s *Service) History(ctx context.Context, wellID int64, limit int) ([]*domain.AuditRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if _, err := s.store.Wells().GetByID(ctx, wellID); err != nil {
		return nil, domain.Persistence("wellaudit.History", err)
	}
	recs, err := s.store.WellHistory().ListByWell(ctx, wellID, limit)
	if err != nil {
		return nil, domain.Persistence("wellaudit.History", err)
	}
	return recs, nil
}

func (s *Service) ListWells(ctx context.Context) ([]*domain.Well, error) {
	wells, err := s.store.Wells().List(ctx)
	if err != nil {
		return nil, domain.Persistence("wellaudit.ListWells", err)
	}
	return wells, nil
}

func (s *Service) GetWell(ctx context.Context, id int64) (*domain.Well, error) {
	w, err := s.store.Wells().GetByID(ctx, id)
	if err != nil {
		return nil, domain.Persistence("wellaudit.GetWell", err)
	}
	return w, nil
}
