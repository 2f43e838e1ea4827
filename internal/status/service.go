// Package status owns the live write path of the pump timeline: recording
// ON/OFF events, deleting the latest event and keeping each pump's cached
// status in step with its events.
package status

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/metrics"
	"github.com/gosuda/pumpwatch/internal/timeline"
)

// DefaultDeleteWindow is how long after recording a non-admin may delete
// their own event.
const DefaultDeleteWindow = 48 * time.Hour

// Service implements the event command handler and the deletion path.
type Service struct {
	store        domain.Store
	deleteWindow time.Duration
	now          func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDeleteWindow overrides DefaultDeleteWindow.
func WithDeleteWindow(d time.Duration) Option {
	return func(s *Service) { s.deleteWindow = d }
}

func NewService(store domain.Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		deleteWindow: DefaultDeleteWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyRequest is one live status change. A nil EventTime records the
// change at the current time; a non-nil one is a manual entry.
type ApplyRequest struct {
	PumpID    int64
	ActorID   uuid.UUID
	Action    domain.Action
	Reason    string
	Notes     string
	EventTime *time.Time
}

// ApplyEvent appends one event and updates the pump's cached status in a
// single transaction.
//
// A pump that already has events rejects a change to the state it is in
// with ErrDuplicateState. The event time must be strictly after the pump's
// latest event, otherwise an *domain.OrderingError naming that time is
// returned.
func (s *Service) ApplyEvent(ctx context.Context, req ApplyRequest) (*domain.Event, error) {
	ev, err := s.applyEvent(ctx, req)
	if err != nil {
		metrics.Reject("apply_event", domain.KindOf(err))
		log.Debug().Err(err).Int64("pump_id", req.PumpID).Str("action", string(req.Action)).Msg("status.ApplyEvent: rejected")
		return nil, err
	}

	metrics.EventsRecorded.WithLabelValues("live").Inc()
	log.Info().
		Int64("pump_id", ev.PumpID).
		Int64("event_id", ev.ID).
		Str("action", string(ev.Action)).
		Bool("manual", ev.Manual).
		Time("event_time", ev.EventTime).
		Msg("status.ApplyEvent: event recorded")

	return ev, nil
}

func (s *Service) applyEvent(ctx context.Context, req ApplyRequest) (*domain.Event, error) {
	action, err := domain.ParseAction(string(req.Action))
	if err != nil {
		return nil, fmt.Errorf("status.ApplyEvent: %w", err)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("status.ApplyEvent: %w", domain.Validationf("reason is required"))
	}

	now := s.now().Truncate(time.Second)
	ev := &domain.Event{
		PumpID:       req.PumpID,
		ActorID:      req.ActorID,
		Action:       action,
		EventTime:    now,
		RecordedTime: now,
		Reason:       reason,
		Notes:        strings.TrimSpace(req.Notes),
	}
	if req.EventTime != nil {
		ev.EventTime = *req.EventTime
		ev.Manual = true
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		pump, err := s.store.Pumps().GetForUpdate(ctx, req.PumpID)
		if err != nil {
			return err
		}

		latest, err := s.store.Events().Latest(ctx, pump.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			latest = nil
		case err != nil:
			return err
		}

		if latest != nil {
			if pump.Status == action {
				return fmt.Errorf("pump %d is already %s: %w", pump.Number, action, domain.ErrDuplicateState)
			}
			if !ev.EventTime.After(latest.EventTime) {
				return &domain.OrderingError{Latest: latest.EventTime}
			}
		}

		if err := s.store.Events().Create(ctx, ev); err != nil {
			return err
		}
		eventTime := ev.EventTime
		return s.store.Pumps().UpdateStatus(ctx, pump.ID, ev.Action, &eventTime)
	})
	if err != nil {
		return nil, domain.Persistence("status.ApplyEvent", err)
	}

	return ev, nil
}

// StateAt returns the pump's state at t as implied by its event log.
func (s *Service) StateAt(ctx context.Context, pumpID int64, t time.Time) (domain.Action, error) {
	if _, err := s.store.Pumps().GetByID(ctx, pumpID); err != nil {
		return "", domain.Persistence("status.StateAt", err)
	}

	ev, err := s.store.Events().LatestAtOrBefore(ctx, pumpID, t)
	if errors.Is(err, domain.ErrNotFound) {
		return timeline.DefaultState, nil
	}
	if err != nil {
		return "", domain.Persistence("status.StateAt", err)
	}

	return ev.Action, nil
}

// Recompute rewrites the pump's cached status from its latest event, or
// resets it to OFF with no last change when no events remain. It must run
// inside the transaction that changed the pump's events.
func Recompute(ctx context.Context, store domain.Store, pumpID int64) error {
	latest, err := store.Events().Latest(ctx, pumpID)
	if errors.Is(err, domain.ErrNotFound) {
		return store.Pumps().UpdateStatus(ctx, pumpID, timeline.DefaultState, nil)
	}
	if err != nil {
		return fmt.Errorf("status.Recompute: %w", err)
	}

	lastChange := latest.EventTime
	return store.Pumps().UpdateStatus(ctx, pumpID, latest.Action, &lastChange)
}
