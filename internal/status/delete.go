package status

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/metrics"
)

// MinDeletionReason is the minimum length, in characters, of a deletion
// reason.
const MinDeletionReason = 10

// CheckDeletable reports why actor could not delete the event, or nil when
// the deletion would be allowed. Nothing is written.
func (s *Service) CheckDeletable(ctx context.Context, eventID int64, actor domain.Actor) error {
	ev, err := s.store.Events().GetByID(ctx, eventID)
	if err != nil {
		return domain.Persistence("status.CheckDeletable", err)
	}
	return domain.Persistence("status.CheckDeletable", s.checkDeletable(ctx, ev, actor))
}

func (s *Service) checkDeletable(ctx context.Context, ev *domain.Event, actor domain.Actor) error {
	latest, err := s.store.Events().Latest(ctx, ev.PumpID)
	if err != nil {
		return err
	}
	if latest.ID != ev.ID {
		return fmt.Errorf("event %d is not the latest event of pump %d: %w", ev.ID, ev.PumpID, domain.ErrNotLatest)
	}

	if actor.Role.Can(domain.CapDeleteAnyEvent) {
		return nil
	}
	if ev.ActorID != actor.ID {
		return fmt.Errorf("event %d was recorded by another user: %w", ev.ID, domain.ErrPermission)
	}
	if s.now().Sub(ev.RecordedTime) > s.deleteWindow {
		return fmt.Errorf("event %d was recorded more than %s ago: %w", ev.ID, s.deleteWindow, domain.ErrTooOld)
	}

	return nil
}

// DeleteRequest asks for the latest event of a pump to be removed.
type DeleteRequest struct {
	EventID int64
	Actor   domain.Actor
	Reason  string
}

// DeleteLatestEvent removes the latest event of its pump, keeps a copy in
// the deletion log and recomputes the pump's status, all in one
// transaction.
func (s *Service) DeleteLatestEvent(ctx context.Context, req DeleteRequest) (*domain.DeletionLog, error) {
	entry, err := s.deleteLatestEvent(ctx, req)
	if err != nil {
		metrics.Reject("delete_event", domain.KindOf(err))
		log.Debug().Err(err).Int64("event_id", req.EventID).Msg("status.DeleteLatestEvent: rejected")
		return nil, err
	}

	metrics.EventsDeleted.Inc()
	log.Info().
		Int64("event_id", entry.EventID).
		Int("pump_number", entry.PumpNumber).
		Str("deleted_by", entry.DeletedByID.String()).
		Msg("status.DeleteLatestEvent: event deleted")

	return entry, nil
}

func (s *Service) deleteLatestEvent(ctx context.Context, req DeleteRequest) (*domain.DeletionLog, error) {
	reason := strings.TrimSpace(req.Reason)
	if utf8.RuneCountInString(reason) < MinDeletionReason {
		return nil, fmt.Errorf("status.DeleteLatestEvent: %w",
			domain.Validationf("deletion reason must be at least %d characters", MinDeletionReason))
	}

	var entry *domain.DeletionLog
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		ev, err := s.store.Events().GetByID(ctx, req.EventID)
		if err != nil {
			return err
		}
		pump, err := s.store.Pumps().GetForUpdate(ctx, ev.PumpID)
		if err != nil {
			return err
		}
		if err := s.checkDeletable(ctx, ev, req.Actor); err != nil {
			return err
		}

		entry = &domain.DeletionLog{
			ID:              uuid.New(),
			EventID:         ev.ID,
			PumpID:          ev.PumpID,
			PumpNumber:      pump.Number,
			Action:          ev.Action,
			EventTime:       ev.EventTime,
			RecordedTime:    ev.RecordedTime,
			Reason:          ev.Reason,
			Notes:           ev.Notes,
			Manual:          ev.Manual,
			OriginalActorID: ev.ActorID,
			DeletedByID:     req.Actor.ID,
			DeletionReason:  reason,
			DeletedAt:       s.now(),
		}
		if err := s.store.DeletionLogs().Create(ctx, entry); err != nil {
			return err
		}
		if err := s.store.Events().Delete(ctx, ev.ID); err != nil {
			return err
		}
		return Recompute(ctx, s.store, ev.PumpID)
	})
	if err != nil {
		return nil, domain.Persistence("status.DeleteLatestEvent", err)
	}

	return entry, nil
}

// DeletionLogs returns the most recent deletion log entries, newest first.
func (s *Service) DeletionLogs(ctx context.Context, actor domain.Actor, limit int) ([]*domain.DeletionLog, error) {
	if !actor.Role.Can(domain.CapViewDeletionLogs) {
		return nil, fmt.Errorf("status.DeletionLogs: %w", domain.ErrPermission)
	}
	if limit <= 0 {
		limit = 100
	}

	logs, err := s.store.DeletionLogs().List(ctx, limit)
	if err != nil {
		return nil, domain.Persistence("status.DeletionLogs", err)
	}
	return logs, nil
}
