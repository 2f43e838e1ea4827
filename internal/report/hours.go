// Package report computes read-only views over pump timelines: operating
// hours per day and month, fleet status at an instant and event history.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/timeline"
)

// DefaultConcurrency bounds how many pumps a fleet report computes at once.
const DefaultConcurrency = 8

// Service is the operating time aggregator and the fleet report builder.
type Service struct {
	store       domain.Store
	cal         calendar.Converter
	concurrency int
}

func NewService(store domain.Store, cal calendar.Converter, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{store: store, cal: cal, concurrency: concurrency}
}

// Calendar returns the converter used for day and month boundaries.
func (s *Service) Calendar() calendar.Converter { return s.cal }

// DailyHours returns how many hours the pump was ON during day, rounded to
// two decimals.
func (s *Service) DailyHours(ctx context.Context, pumpID int64, day calendar.Date) (float64, error) {
	if _, err := s.store.Pumps().GetByID(ctx, pumpID); err != nil {
		return 0, domain.Persistence("report.DailyHours", err)
	}

	h, err := s.dailyHours(ctx, pumpID, day)
	if err != nil {
		return 0, domain.Persistence("report.DailyHours", err)
	}
	return h, nil
}

func (s *Service) dailyHours(ctx context.Context, pumpID int64, day calendar.Date) (float64, error) {
	start, end, err := s.cal.DayBounds(day)
	if err != nil {
		return 0, err
	}

	carryIn, err := s.stateBefore(ctx, pumpID, start)
	if err != nil {
		return 0, err
	}

	events, err := s.store.Events().ListRange(ctx, pumpID, start, end)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		if carryIn == domain.ActionOn {
			return 24.0, nil
		}
		return 0.0, nil
	}

	return timeline.Hours(timeline.OnDuration(carryIn, events, start, end)), nil
}

// stateBefore is the state carried into a window that starts at t.
func (s *Service) stateBefore(ctx context.Context, pumpID int64, t time.Time) (domain.Action, error) {
	ev, err := s.store.Events().LatestBefore(ctx, pumpID, t)
	if errors.Is(err, domain.ErrNotFound) {
		return timeline.DefaultState, nil
	}
	if err != nil {
		return "", err
	}
	return ev.Action, nil
}

// MonthlyHours sums the rounded daily hours of every day of the month and
// rounds the total to two decimals.
func (s *Service) MonthlyHours(ctx context.Context, pumpID int64, year, month int) (float64, error) {
	if _, err := s.store.Pumps().GetByID(ctx, pumpID); err != nil {
		return 0, domain.Persistence("report.MonthlyHours", err)
	}

	h, err := s.monthlyHours(ctx, pumpID, year, month)
	if err != nil {
		return 0, domain.Persistence("report.MonthlyHours", err)
	}
	return h, nil
}

func (s *Service) monthlyHours(ctx context.Context, pumpID int64, year, month int) (float64, error) {
	days, err := s.cal.DaysInMonth(year, month)
	if err != nil {
		return 0, err
	}

	var total float64
	for d := 1; d <= days; d++ {
		h, err := s.dailyHours(ctx, pumpID, calendar.Date{Year: year, Month: month, Day: d})
		if err != nil {
			return 0, fmt.Errorf("day %d: %w", d, err)
		}
		total += h
	}

	return timeline.Round2(total), nil
}

// PumpHours is one row of a fleet operating-hours report.
type PumpHours struct {
	PumpNumber int
	Name       string
	Hours      float64
}

// DailyFleetHours returns DailyHours for every pump, ordered by number.
func (s *Service) DailyFleetHours(ctx context.Context, day calendar.Date) ([]PumpHours, error) {
	if _, _, err := s.cal.DayBounds(day); err != nil {
		return nil, fmt.Errorf("report.DailyFleetHours: %w", err)
	}
	rows, err := s.fleetHours(ctx, func(ctx context.Context, pumpID int64) (float64, error) {
		return s.dailyHours(ctx, pumpID, day)
	})
	if err != nil {
		return nil, domain.Persistence("report.DailyFleetHours", err)
	}
	return rows, nil
}

// MonthlyFleetHours returns MonthlyHours for every pump, ordered by number.
func (s *Service) MonthlyFleetHours(ctx context.Context, year, month int) ([]PumpHours, error) {
	if _, err := s.cal.DaysInMonth(year, month); err != nil {
		return nil, fmt.Errorf("report.MonthlyFleetHours: %w", err)
	}
	rows, err := s.fleetHours(ctx, func(ctx context.Context, pumpID int64) (float64, error) {
		return s.monthlyHours(ctx, pumpID, year, month)
	})
	if err != nil {
		return nil, domain.Persistence("report.MonthlyFleetHours", err)
	}
	return rows, nil
}

func (s *Service) fleetHours(ctx context.Context, hours func(context.Context, int64) (float64, error)) ([]PumpHours, error) {
	pumps, err := s.store.Pumps().List(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]PumpHours, len(pumps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, p := range pumps {
		g.Go(func() error {
			h, err := hours(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("pump %d: %w", p.Number, err)
			}
			rows[i] = PumpHours{PumpNumber: p.Number, Name: p.Name, Hours: h}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
