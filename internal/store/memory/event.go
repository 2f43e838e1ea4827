package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gosuda/pumpwatch/internal/domain"
)

type EventRepo struct{ s *Store }

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.pumps[e.PumpID]; !ok {
			return fmt.Errorf("eventRepo.Create: pump %d does not exist", e.PumpID)
		}
		t.nextEventID++
		e.ID = t.nextEventID
		ce := *e
		t.events[e.ID] = &ce
		return nil
	})
}

func (r *EventRepo) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	var out *domain.Event
	err := r.s.read(ctx, func(t *tables) error {
		e, ok := t.events[id]
		if !ok {
			return fmt.Errorf("eventRepo.GetByID: %w", domain.ErrNotFound)
		}
		ce := *e
		out = &ce
		return nil
	})
	return out, err
}

// timeline returns copies of the pump's events matching keep, in
// (event_time, id) order.
func (r *EventRepo) timeline(ctx context.Context, pumpID int64, keep func(*domain.Event) bool) []*domain.Event {
	var out []*domain.Event
	_ = r.s.read(ctx, func(t *tables) error {
		for _, e := range t.events {
			if (pumpID == 0 || e.PumpID == pumpID) && keep(e) {
				ce := *e
				out = append(out, &ce)
			}
		}
		return nil
	})
	sortEvents(out)
	return out
}

func sortEvents(events []*domain.Event) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.EventTime.Equal(b.EventTime) {
			return a.EventTime.Before(b.EventTime)
		}
		return a.ID < b.ID
	})
}

func all(*domain.Event) bool { return true }

func last(caller string, events []*domain.Event) (*domain.Event, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	return events[len(events)-1], nil
}

func (r *EventRepo) Latest(ctx context.Context, pumpID int64) (*domain.Event, error) {
	return last("eventRepo.Latest", r.timeline(ctx, pumpID, all))
}

func (r *EventRepo) LatestBefore(ctx context.Context, pumpID int64, at time.Time) (*domain.Event, error) {
	return last("eventRepo.LatestBefore", r.timeline(ctx, pumpID, func(e *domain.Event) bool {
		return e.EventTime.Before(at)
	}))
}

func (r *EventRepo) LatestAtOrBefore(ctx context.Context, pumpID int64, at time.Time) (*domain.Event, error) {
	return last("eventRepo.LatestAtOrBefore", r.timeline(ctx, pumpID, func(e *domain.Event) bool {
		return !e.EventTime.After(at)
	}))
}

func (r *EventRepo) ListRange(ctx context.Context, pumpID int64, from, to time.Time) ([]*domain.Event, error) {
	return r.timeline(ctx, pumpID, func(e *domain.Event) bool {
		return !e.EventTime.Before(from) && !e.EventTime.After(to)
	}), nil
}

func (r *EventRepo) ListByPump(ctx context.Context, pumpID int64) ([]*domain.Event, error) {
	return r.timeline(ctx, pumpID, all), nil
}

func (r *EventRepo) filter(ctx context.Context, f domain.EventFilter) []*domain.Event {
	return r.timeline(ctx, f.PumpID, func(e *domain.Event) bool {
		if !f.From.IsZero() && e.EventTime.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && e.EventTime.After(f.To) {
			return false
		}
		return true
	})
}

func (r *EventRepo) List(ctx context.Context, f domain.EventFilter) ([]*domain.Event, error) {
	events := r.filter(ctx, f)
	if f.Desc {
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
	} else {
		sort.SliceStable(events, func(i, j int) bool { return events[i].PumpID < events[j].PumpID })
	}

	if f.Offset > 0 {
		if f.Offset >= len(events) {
			return nil, nil
		}
		events = events[f.Offset:]
	}
	if f.Limit > 0 && len(events) > f.Limit {
		events = events[:f.Limit]
	}
	return events, nil
}

func (r *EventRepo) Count(ctx context.Context, f domain.EventFilter) (int, error) {
	return len(r.filter(ctx, f)), nil
}

func (r *EventRepo) Delete(ctx context.Context, id int64) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.events[id]; !ok {
			return fmt.Errorf("eventRepo.Delete: %w", domain.ErrNotFound)
		}
		delete(t.events, id)
		return nil
	})
}

// --- Deletion logs ---

type DeletionLogRepo struct{ s *Store }

func (r *DeletionLogRepo) Create(ctx context.Context, l *domain.DeletionLog) error {
	return r.s.write(ctx, func(t *tables) error {
		cl := *l
		t.deletions = append(t.deletions, &cl)
		return nil
	})
}

func (r *DeletionLogRepo) List(ctx context.Context, limit int) ([]*domain.DeletionLog, error) {
	var out []*domain.DeletionLog
	err := r.s.read(ctx, func(t *tables) error {
		for i := len(t.deletions) - 1; i >= 0; i-- {
			if limit > 0 && len(out) == limit {
				break
			}
			cl := *t.deletions[i]
			out = append(out, &cl)
		}
		return nil
	})
	return out, err
}
