package report

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/timeline"
)

// Filter selects pumps by state in a status report.
type Filter string

const (
	FilterAll Filter = "all"
	FilterOn  Filter = "on"
	FilterOff Filter = "off"
)

// ParseFilter accepts all, on and off in any case. Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterOn, FilterOff:
		return f, nil
	default:
		return "", domain.Validationf("unknown status filter %q", s)
	}
}

func (f Filter) match(a domain.Action) bool {
	switch f {
	case FilterOn:
		return a == domain.ActionOn
	case FilterOff:
		return a == domain.ActionOff
	default:
		return true
	}
}

// PumpStatus is a pump's reconstructed state at an instant. LastChange is
// nil, and Reason empty, when the pump had no event by then.
type PumpStatus struct {
	PumpNumber int
	Name       string
	Status     domain.Action
	LastChange *time.Time
	Reason     string
	Notes      string
}

// StatusAt reconstructs every pump's state at t and keeps those matching
// filter, ordered by number.
func (s *Service) StatusAt(ctx context.Context, t time.Time, filter Filter) ([]PumpStatus, error) {
	pumps, err := s.store.Pumps().List(ctx)
	if err != nil {
		return nil, domain.Persistence("report.StatusAt", err)
	}

	var out []PumpStatus
	for _, p := range pumps {
		row := PumpStatus{PumpNumber: p.Number, Name: p.Name, Status: timeline.DefaultState}

		ev, err := s.store.Events().LatestAtOrBefore(ctx, p.ID, t)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return nil, domain.Persistence("report.StatusAt", err)
		default:
			changed := ev.EventTime
			row.Status = ev.Action
			row.LastChange = &changed
			row.Reason = ev.Reason
			row.Notes = ev.Notes
		}

		if filter.match(row.Status) {
			out = append(out, row)
		}
	}

	return out, nil
}

// HistoryRow is one event in a history report.
type HistoryRow struct {
	EventID    int64
	PumpNumber int
	Name       string
	Action     domain.Action
	EventTime  time.Time
	Reason     string
	Notes      string
	Manual     bool
	UserName   string
}

// FullHistory lists the events between the start of from and the end of to,
// newest first. pumpNumber 0 selects every pump.
func (s *Service) FullHistory(ctx context.Context, from, to calendar.Date, pumpNumber int) ([]HistoryRow, error) {
	start, _, err := s.cal.DayBounds(from)
	if err != nil {
		return nil, domain.Persistence("report.FullHistory", err)
	}
	_, end, err := s.cal.DayBounds(to)
	if err != nil {
		return nil, domain.Persistence("report.FullHistory", err)
	}
	if end.Before(start) {
		return nil, domain.Validationf("report.FullHistory: range ends before it starts")
	}

	pumps, err := s.store.Pumps().List(ctx)
	if err != nil {
		return nil, domain.Persistence("report.FullHistory", err)
	}
	byID := make(map[int64]*domain.Pump, len(pumps))
	for _, p := range pumps {
		byID[p.ID] = p
	}

	filter := domain.EventFilter{From: start, To: end, Desc: true}
	if pumpNumber != 0 {
		p, err := s.store.Pumps().GetByNumber(ctx, pumpNumber)
		if err != nil {
			return nil, domain.Persistence("report.FullHistory", err)
		}
		filter.PumpID = p.ID
	}

	events, err := s.store.Events().List(ctx, filter)
	if err != nil {
		return nil, domain.Persistence("report.FullHistory", err)
	}

	names := make(map[uuid.UUID]string)
	rows := make([]HistoryRow, 0, len(events))
	for _, ev := range events {
		name, ok := names[ev.ActorID]
		if !ok {
			name = s.userName(ctx, ev.ActorID)
			names[ev.ActorID] = name
		}

		row := HistoryRow{
			EventID:   ev.ID,
			Action:    ev.Action,
			EventTime: ev.EventTime,
			Reason:    ev.Reason,
			Notes:     ev.Notes,
			Manual:    ev.Manual,
			UserName:  name,
		}
		if p := byID[ev.PumpID]; p != nil {
			row.PumpNumber = p.Number
			row.Name = p.Name
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (s *Service) userName(ctx context.Context, id uuid.UUID) string {
	u, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
