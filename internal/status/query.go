package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/pumpwatch/internal/domain"
)

// RecordsPerPage is the page size of Records.
const RecordsPerPage = 20

// ListPumps returns every pump ordered by number.
func (s *Service) ListPumps(ctx context.Context) ([]*domain.Pump, error) {
	pumps, err := s.store.Pumps().List(ctx)
	if err != nil {
		return nil, domain.Persistence("status.ListPumps", err)
	}
	return pumps, nil
}

// GetPump returns one pump by number.
func (s *Service) GetPump(ctx context.Context, number int) (*domain.Pump, error) {
	p, err := s.store.Pumps().GetByNumber(ctx, number)
	if err != nil {
		return nil, domain.Persistence("status.GetPump", err)
	}
	return p, nil
}

// Record is one row of a records page.
type Record struct {
	Event     *domain.Event
	Deletable bool
}

// RecordsPage is one page of a pump's events, newest first.
type RecordsPage struct {
	Records    []Record
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// Records returns page (1-based) of the pump's events, newest first, and
// marks the row actor could delete.
func (s *Service) Records(ctx context.Context, pumpID int64, page int, actor domain.Actor) (*RecordsPage, error) {
	if page < 1 {
		page = 1
	}
	if _, err := s.store.Pumps().GetByID(ctx, pumpID); err != nil {
		return nil, domain.Persistence("status.Records", err)
	}

	filter := domain.EventFilter{PumpID: pumpID}
	total, err := s.store.Events().Count(ctx, filter)
	if err != nil {
		return nil, domain.Persistence("status.Records", err)
	}

	filter.Desc = true
	filter.Limit = RecordsPerPage
	filter.Offset = (page - 1) * RecordsPerPage
	events, err := s.store.Events().List(ctx, filter)
	if err != nil {
		return nil, domain.Persistence("status.Records", err)
	}

	out := &RecordsPage{
		Records:    make([]Record, 0, len(events)),
		Page:       page,
		PerPage:    RecordsPerPage,
		Total:      total,
		TotalPages: (total + RecordsPerPage - 1) / RecordsPerPage,
	}
	for _, ev := range events {
		rec := Record{Event: ev}
		// Only the newest event on the first page can be the latest one.
		if page == 1 && len(out.Records) == 0 {
			rec.Deletable = s.checkDeletable(ctx, ev, actor) == nil
		}
		out.Records = append(out.Records, rec)
	}

	return out, nil
}

// SeedPumps creates pumps 1..count that do not exist yet.
func (s *Service) SeedPumps(ctx context.Context, count int) error {
	created := 0
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		for n := 1; n <= count; n++ {
			_, err := s.store.Pumps().GetByNumber(ctx, n)
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}

			p := &domain.Pump{
				ID:     int64(n),
				Number: n,
				Name:   fmt.Sprintf("Pump %d", n),
				Status: domain.ActionOff,
			}
			if err := s.store.Pumps().Create(ctx, p); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return domain.Persistence("status.SeedPumps", err)
	}

	if created > 0 {
		log.Info().Int("created", created).Msg("status.SeedPumps: pumps created")
	}
	return nil
}
