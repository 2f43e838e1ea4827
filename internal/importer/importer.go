// Package importer reconciles externally supplied historical events with
// the timelines already stored. Each pump's rows are committed all together
// or not at all, independently of the other pumps in the batch.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/metrics"
	"github.com/gosuda/pumpwatch/internal/status"
	"github.com/gosuda/pumpwatch/internal/timeline"
)

// DefaultMaxRows caps the size of one batch.
const DefaultMaxRows = 10000

// RawRow is one unparsed row as it comes from a spreadsheet or API call.
// Ref identifies the row in error messages.
type RawRow struct {
	Ref        int    `json:"row_ref,omitempty"`
	PumpNumber string `json:"pump_number"`
	Action     string `json:"action"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Reason     string `json:"reason"`
	Notes      string `json:"notes,omitempty"`
}

// Row is a parsed, validated row.
type Row struct {
	Ref        int
	PumpNumber int
	Action     domain.Action
	EventTime  time.Time
	Reason     string
	Notes      string
}

// RowError explains why a row, or a pump group containing it, was not
// imported. Ref is zero for conflicts between two already stored events.
type RowError struct {
	Ref        int
	PumpNumber int
	Kind       string
	Message    string
}

// Report summarizes one batch.
type Report struct {
	BatchID       uuid.UUID
	InsertedCount int
	ErrorCount    int
	Errors        []RowError
}

func (r *Report) fail(e RowError) {
	r.Errors = append(r.Errors, e)
	r.ErrorCount = len(r.Errors)
}

type Service struct {
	store   domain.Store
	cal     calendar.Converter
	maxRows int
	now     func() time.Time
}

func NewService(store domain.Store, cal calendar.Converter, maxRows int) *Service {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Service{store: store, cal: cal, maxRows: maxRows, now: time.Now}
}

// ParseRows validates raw rows. Rows that fail are reported and left out.
func (s *Service) ParseRows(raw []RawRow) ([]Row, []RowError) {
	rows := make([]Row, 0, len(raw))
	var errs []RowError

	for i, r := range raw {
		ref := r.Ref
		if ref == 0 {
			ref = i + 1
		}

		row, err := s.parseRow(ref, r)
		if err != nil {
			n, _ := strconv.Atoi(strings.TrimSpace(r.PumpNumber))
			errs = append(errs, RowError{
				Ref:        ref,
				PumpNumber: n,
				Kind:       domain.KindOf(err),
				Message:    fmt.Sprintf("row %d: %v", ref, err),
			})
			continue
		}
		rows = append(rows, row)
	}

	return rows, errs
}

func (s *Service) parseRow(ref int, r RawRow) (Row, error) {
	n, err := strconv.Atoi(strings.TrimSpace(r.PumpNumber))
	if err != nil || n <= 0 {
		return Row{}, domain.Validationf("invalid pump number %q", r.PumpNumber)
	}

	action, err := domain.ParseAction(r.Action)
	if err != nil {
		return Row{}, err
	}

	date := strings.TrimSpace(r.Date)
	if date == "" {
		return Row{}, domain.Validationf("date is required")
	}
	local := date
	if clock := strings.TrimSpace(r.Time); clock != "" {
		local += " " + clock
	}
	at, err := s.cal.ToCanonical(local)
	if err != nil {
		return Row{}, err
	}

	reason := strings.TrimSpace(r.Reason)
	if reason == "" {
		return Row{}, domain.Validationf("reason is required")
	}

	return Row{
		Ref:        ref,
		PumpNumber: n,
		Action:     action,
		EventTime:  at,
		Reason:     reason,
		Notes:      strings.TrimSpace(r.Notes),
	}, nil
}

// ImportBatch parses raw, groups the valid rows by pump and reconciles every
// group with its stored timeline. Failures are collected in the report; the
// returned error is reserved for requests that cannot be processed at all.
func (s *Service) ImportBatch(ctx context.Context, actor domain.Actor, raw []RawRow) (*Report, error) {
	if !actor.Role.Can(domain.CapImportHistory) {
		return nil, fmt.Errorf("importer.ImportBatch: %w", domain.ErrPermission)
	}
	if len(raw) > s.maxRows {
		return nil, fmt.Errorf("importer.ImportBatch: %w",
			domain.Validationf("batch has %d rows, the limit is %d", len(raw), s.maxRows))
	}

	report := &Report{BatchID: uuid.New()}
	rows, parseErrs := s.ParseRows(raw)
	for _, e := range parseErrs {
		report.fail(e)
	}

	groups := make(map[int][]Row)
	for _, r := range rows {
		groups[r.PumpNumber] = append(groups[r.PumpNumber], r)
	}
	numbers := make([]int, 0, len(groups))
	for n := range groups {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("importer.ImportBatch: %w", err)
		}
		s.importGroup(ctx, actor, n, groups[n], report)
	}

	metrics.EventsRecorded.WithLabelValues("import").Add(float64(report.InsertedCount))
	log.Info().
		Str("batch_id", report.BatchID.String()).
		Int("rows", len(raw)).
		Int("inserted", report.InsertedCount).
		Int("errors", report.ErrorCount).
		Msg("importer.ImportBatch: batch processed")

	return report, nil
}

// errConflicts aborts a group transaction after its conflicts were reported.
var errConflicts = errors.New("importer: group has conflicts")

func (s *Service) importGroup(ctx context.Context, actor domain.Actor, number int, rows []Row, report *Report) {
	var conflicts []RowError

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		pump, err := s.store.Pumps().GetByNumber(ctx, number)
		if err != nil {
			return err
		}
		if _, err := s.store.Pumps().GetForUpdate(ctx, pump.ID); err != nil {
			return err
		}

		existing, err := s.store.Events().ListByPump(ctx, pump.ID)
		if err != nil {
			return err
		}

		entries := timeline.FromEvents(existing)
		for i, r := range rows {
			entries = append(entries, timeline.Entry{Action: r.Action, Time: r.EventTime, Index: i, Ref: r.Ref})
		}
		timeline.Sort(entries)

		for _, c := range timeline.Validate(entries) {
			conflicts = append(conflicts, s.conflictError(number, c))
		}
		if len(conflicts) > 0 {
			return errConflicts
		}

		now := s.now()
		for _, e := range entries {
			if e.Stored() {
				continue
			}
			r := rows[e.Index]
			ev := &domain.Event{
				PumpID:       pump.ID,
				ActorID:      actor.ID,
				Action:       r.Action,
				EventTime:    r.EventTime,
				RecordedTime: now,
				Reason:       r.Reason,
				Notes:        r.Notes,
				Manual:       true,
			}
			if err := s.store.Events().Create(ctx, ev); err != nil {
				return err
			}
		}

		return status.Recompute(ctx, s.store, pump.ID)
	})

	switch {
	case err == nil:
		report.InsertedCount += len(rows)
		log.Debug().Int("pump_number", number).Int("rows", len(rows)).Msg("importer: group committed")
	case errors.Is(err, errConflicts):
		metrics.ImportConflicts.Add(float64(len(conflicts)))
		for _, c := range conflicts {
			report.fail(c)
		}
	default:
		err = domain.Persistence("importer.importGroup", err)
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Int("pump_number", number).Msg("importer: group rolled back")
		}
		for _, r := range rows {
			report.fail(RowError{
				Ref:        r.Ref,
				PumpNumber: number,
				Kind:       domain.KindOf(err),
				Message:    fmt.Sprintf("row %d: pump %d: %v", r.Ref, number, err),
			})
		}
	}
}

func (s *Service) conflictError(number int, c timeline.Conflict) RowError {
	offending, other := c.Next, c.Prev
	if offending.Stored() {
		offending, other = c.Prev, c.Next
	}

	var msg string
	if c.SameTime {
		msg = fmt.Sprintf("%s at %s has the same time as %s",
			offending.Action, s.cal.ToLocal(offending.Time, true), other.Action)
	} else {
		msg = fmt.Sprintf("%s at %s follows another %s at %s",
			c.Next.Action, s.cal.ToLocal(c.Next.Time, true), c.Prev.Action, s.cal.ToLocal(c.Prev.Time, true))
	}

	if offending.Stored() {
		msg = fmt.Sprintf("pump %d: stored events conflict: %s", number, msg)
	} else {
		msg = fmt.Sprintf("row %d: pump %d: %s", offending.Ref, number, msg)
	}

	return RowError{
		Ref:        offending.Ref,
		PumpNumber: number,
		Kind:       domain.KindOrdering,
		Message:    msg,
	}
}
