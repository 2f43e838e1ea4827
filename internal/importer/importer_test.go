package importer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/store/memory"
)

var admin = domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}

func newService(t *testing.T, pumps ...int) (*Service, *memory.Store) {
	t.Helper()

	st := memory.New()
	for _, n := range pumps {
		require.NoError(t, st.Pumps().Create(context.Background(), &domain.Pump{ID: int64(n), Number: n}))
	}
	svc := NewService(st, calendar.NewGregorian(time.UTC), 100)
	svc.now = func() time.Time { return time.Date(2024, 10, 2, 9, 0, 0, 0, time.UTC) }
	return svc, st
}

func row(pump, action, clock string) RawRow {
	return RawRow{PumpNumber: pump, Action: action, Date: "2024-10-01", Time: clock, Reason: "backfill"}
}

func count(t *testing.T, st *memory.Store, pump int64) int {
	t.Helper()

	n, err := st.Events().Count(context.Background(), domain.EventFilter{PumpID: pump})
	require.NoError(t, err)
	return n
}

func addEvent(t *testing.T, st *memory.Store, pump int64, action domain.Action, at time.Time) {
	t.Helper()

	require.NoError(t, st.Events().Create(context.Background(), &domain.Event{
		PumpID: pump, Action: action, EventTime: at, RecordedTime: at, Reason: "live",
	}))
	require.NoError(t, st.Pumps().UpdateStatus(context.Background(), pump, action, &at))
}

// flakyEvents fails the second insert for one pump.
type flakyEvents struct {
	domain.EventRepository
	pumpID  int64
	creates int
}

func (f *flakyEvents) Create(ctx context.Context, e *domain.Event) error {
	if e.PumpID == f.pumpID {
		f.creates++
		if f.creates == 2 {
			return errors.New("connection reset")
		}
	}
	return f.EventRepository.Create(ctx, e)
}

type flakyStore struct {
	*memory.Store
	events *flakyEvents
}

func (s flakyStore) Events() domain.EventRepository { return s.events }

// ---------------------------------------------------------------------------
// ImportBatch
// ---------------------------------------------------------------------------

func TestImportRejectsAdjacentSameAction(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, 7)

	report, err := svc.ImportBatch(context.Background(), admin, []RawRow{
		row("7", "ON", "09:00"),
		row("7", "ON", "10:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.InsertedCount)
	require.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, 2, report.Errors[0].Ref)
	assert.Equal(t, domain.KindOrdering, report.Errors[0].Kind)
	assert.Contains(t, report.Errors[0].Message, "2024-10-01 09:00:00")
	assert.Equal(t, 0, count(t, st, 7))
}

func TestImportIsolatesPumpGroups(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, 5, 7)

	report, err := svc.ImportBatch(context.Background(), admin, []RawRow{
		row("7", "ON", "09:00"),
		row("5", "ON", "08:00"),
		row("7", "ON", "10:00"),
		row("5", "OFF", "12:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.InsertedCount)
	assert.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, 7, report.Errors[0].PumpNumber)
	assert.NotEqual(t, uuid.Nil, report.BatchID)

	assert.Equal(t, 2, count(t, st, 5))
	assert.Equal(t, 0, count(t, st, 7))

	p, err := st.Pumps().GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionOff, p.Status)
	assert.Equal(t, time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC), *p.LastChange)
}

func TestImportStorageFailureRollsBackOnlyThatPump(t *testing.T) {
	t.Parallel()

	_, st := newService(t, 5, 7)
	svc := NewService(flakyStore{Store: st, events: &flakyEvents{EventRepository: st.Events(), pumpID: 7}},
		calendar.NewGregorian(time.UTC), 100)

	report, err := svc.ImportBatch(context.Background(), admin, []RawRow{
		row("5", "ON", "08:00"),
		row("5", "OFF", "12:00"),
		row("7", "ON", "09:00"),
		row("7", "OFF", "10:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.InsertedCount)
	require.Equal(t, 2, report.ErrorCount)
	for _, e := range report.Errors {
		assert.Equal(t, 7, e.PumpNumber)
		assert.Equal(t, domain.KindPersistence, e.Kind)
	}

	assert.Equal(t, 2, count(t, st, 5))
	assert.Equal(t, 0, count(t, st, 7))

	p5, err := st.Pumps().GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionOff, p5.Status)
	require.NotNil(t, p5.LastChange)
	assert.Equal(t, time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC), *p5.LastChange)

	p7, err := st.Pumps().GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionOff, p7.Status)
	assert.Nil(t, p7.LastChange)
}

func TestImportMergesWithStoredTimeline(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, 5)
	addEvent(t, st, 5, domain.ActionOn, time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC))
	addEvent(t, st, 5, domain.ActionOff, time.Date(2024, 10, 1, 17, 0, 0, 0, time.UTC))

	// Fills a gap inside the stored run: ON 08 / OFF 10 / ON 11 / OFF 17.
	report, err := svc.ImportBatch(context.Background(), admin, []RawRow{
		row("5", "OFF", "10:00"),
		row("5", "ON", "11:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.InsertedCount)
	assert.Zero(t, report.ErrorCount)
	assert.Equal(t, 4, count(t, st, 5))

	events, err := st.Events().ListByPump(context.Background(), 5)
	require.NoError(t, err)
	manual := 0
	for _, e := range events {
		if e.Manual {
			manual++
			assert.Equal(t, admin.ID, e.ActorID)
		}
	}
	assert.Equal(t, 2, manual)

	p, err := st.Pumps().GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionOff, p.Status)
}

func TestImportConflictWithStoredEvent(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, 5)
	addEvent(t, st, 5, domain.ActionOn, time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC))

	report, err := svc.ImportBatch(context.Background(), admin, []RawRow{
		row("5", "ON", "12:00"),
		row("5", "OFF", "13:00"),
	})
	require.NoError(t, err)
	assert.Zero(t, report.InsertedCount)
	require.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, 1, report.Errors[0].Ref)
	assert.Contains(t, report.Errors[0].Message, "2024-10-01 08:00:00")
	assert.Equal(t, 1, count(t, st, 5))
}

func TestImportSameTimeAsStoredEvent(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, 5)
	addEvent(t, st, 5, domain.ActionOff, time.Date(2024, 10, 1, 10, 0, 0, 0, time.UTC))

	report, err := svc.ImportBatch(context.Background(), admin, []RawRow{
		row("5", "ON", "10:00"),
		row("5", "OFF", "11:00"),
	})
	require.NoError(t, err)
	assert.Zero(t, report.ErrorCount)
	assert.Equal(t, 2, report.InsertedCount)

	events, err := st.Events().ListByPump(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []domain.Action{domain.ActionOff, domain.ActionOn, domain.ActionOff},
		[]domain.Action{events[0].Action, events[1].Action, events[2].Action})
}

func TestImportNewRowsAtSameTimeConflict(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, 5)

	report, err := svc.ImportBatch(context.Background(), admin, []RawRow{
		row("5", "ON", "08:00"),
		row("5", "OFF", "08:00"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, 2, report.Errors[0].Ref)
	assert.Contains(t, report.Errors[0].Message, "same time")
	assert.Zero(t, count(t, st, 5))
}

func TestImportRowsSharingARef(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, 5)

	on := row("5", "ON", "09:00")
	on.Ref = 1
	off := row("5", "OFF", "10:00")
	off.Ref = 1
	report, err := svc.ImportBatch(context.Background(), admin, []RawRow{on, off})
	require.NoError(t, err)
	assert.Zero(t, report.ErrorCount)
	assert.Equal(t, 2, report.InsertedCount)

	events, err := st.Events().ListByPump(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.ActionOn, events[0].Action)
	assert.Equal(t, time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC), events[0].EventTime)
	assert.Equal(t, domain.ActionOff, events[1].Action)
	assert.Equal(t, time.Date(2024, 10, 1, 10, 0, 0, 0, time.UTC), events[1].EventTime)

	p, err := st.Pumps().GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionOff, p.Status)
}

func TestImportRowErrors(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, 5)

	report, err := svc.ImportBatch(context.Background(), admin, []RawRow{
		{Ref: 2, PumpNumber: "x", Action: "ON", Date: "2024-10-01", Time: "08:00", Reason: "r"},
		{Ref: 3, PumpNumber: "5", Action: "MAYBE", Date: "2024-10-01", Time: "08:00", Reason: "r"},
		{Ref: 4, PumpNumber: "5", Action: "ON", Date: "2024-13-01", Time: "08:00", Reason: "r"},
		{Ref: 5, PumpNumber: "5", Action: "ON", Date: "2024-10-01", Time: "08:00", Reason: ""},
		{Ref: 6, PumpNumber: "5", Action: "on", Date: "2024-10-01", Time: "08:00", Reason: "r"},
		{Ref: 7, PumpNumber: "9", Action: "ON", Date: "2024-10-01", Time: "08:00", Reason: "r"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.InsertedCount)
	require.Equal(t, 5, report.ErrorCount)

	refs := make([]int, 0, len(report.Errors))
	for _, e := range report.Errors {
		refs = append(refs, e.Ref)
	}
	assert.Equal(t, []int{2, 3, 4, 5, 7}, refs)
	assert.Equal(t, domain.KindValidation, report.Errors[0].Kind)
	assert.Equal(t, domain.KindNotFound, report.Errors[4].Kind)
	assert.Equal(t, 1, count(t, st, 5))
}

func TestImportPermissionAndLimit(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, 5)

	_, err := svc.ImportBatch(context.Background(), domain.Actor{ID: uuid.New(), Role: domain.RoleOperator}, nil)
	assert.ErrorIs(t, err, domain.ErrPermission)

	svc.maxRows = 1
	_, err = svc.ImportBatch(context.Background(), admin, []RawRow{row("5", "ON", "08:00"), row("5", "OFF", "09:00")})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---------------------------------------------------------------------------
// Workbooks
// ---------------------------------------------------------------------------

func TestTemplateRoundTrip(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, 1, 2, 3)

	data, err := svc.Template()
	require.NoError(t, err)

	raw, err := ParseWorkbook(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, raw, 4)
	assert.Equal(t, 2, raw[0].Ref)
	assert.Equal(t, "1", raw[0].PumpNumber)
	assert.Equal(t, "ON", raw[0].Action)
	assert.Equal(t, "2024-10-02", raw[0].Date)
	assert.Equal(t, "08:00", raw[0].Time)

	report, err := svc.ImportWorkbook(context.Background(), admin, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 4, report.InsertedCount)
	assert.Zero(t, report.ErrorCount)
	assert.Equal(t, 2, count(t, st, 1))
}

func TestParseWorkbookErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseWorkbook(strings.NewReader("not a workbook"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
