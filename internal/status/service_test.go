package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/store/memory"
)

var day = time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time { return day.Add(time.Duration(hour) * time.Hour) }

type fixture struct {
	store    *memory.Store
	svc      *Service
	clock    *time.Time
	admin    domain.Actor
	operator domain.Actor
	other    domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memory.New()
	now := at(20)
	f := &fixture{
		store:    st,
		clock:    &now,
		admin:    domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin},
		operator: domain.Actor{ID: uuid.New(), Role: domain.RoleOperator},
		other:    domain.Actor{ID: uuid.New(), Role: domain.RoleOperator},
	}
	f.svc = NewService(st, WithClock(func() time.Time { return *f.clock }))

	require.NoError(t, f.svc.SeedPumps(context.Background(), 10))
	return f
}

func (f *fixture) apply(t *testing.T, pumpID int64, actor domain.Actor, action domain.Action, when time.Time) *domain.Event {
	t.Helper()

	ev, err := f.svc.ApplyEvent(context.Background(), ApplyRequest{
		PumpID:    pumpID,
		ActorID:   actor.ID,
		Action:    action,
		Reason:    "routine",
		EventTime: &when,
	})
	require.NoError(t, err)
	return ev
}

func (f *fixture) pump(t *testing.T, id int64) *domain.Pump {
	t.Helper()

	p, err := f.store.Pumps().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

// ---------------------------------------------------------------------------
// ApplyEvent
// ---------------------------------------------------------------------------

func TestApplyEventUpdatesCache(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ev := f.apply(t, 5, f.operator, domain.ActionOn, at(8))

	assert.True(t, ev.Manual)
	assert.Equal(t, f.operator.ID, ev.ActorID)

	p := f.pump(t, 5)
	assert.Equal(t, domain.ActionOn, p.Status)
	require.NotNil(t, p.LastChange)
	assert.Equal(t, at(8), *p.LastChange)
}

func TestApplyEventAutomaticUsesClock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ev, err := f.svc.ApplyEvent(context.Background(), ApplyRequest{
		PumpID: 5, ActorID: f.operator.ID, Action: domain.ActionOn, Reason: "start",
	})
	require.NoError(t, err)
	assert.False(t, ev.Manual)
	assert.Equal(t, *f.clock, ev.EventTime)
	assert.Equal(t, *f.clock, ev.RecordedTime)
}

func TestApplyEventBootstrapAllowsEitherAction(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	// A fresh pump is OFF, but its first event may still be OFF.
	f.apply(t, 3, f.operator, domain.ActionOff, at(6))
	assert.Equal(t, domain.ActionOff, f.pump(t, 3).Status)
}

func TestApplyEventDuplicateState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.apply(t, 5, f.operator, domain.ActionOn, at(8))

	when := at(9)
	_, err := f.svc.ApplyEvent(context.Background(), ApplyRequest{
		PumpID: 5, ActorID: f.operator.ID, Action: domain.ActionOn, Reason: "again", EventTime: &when,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateState)
	assert.Equal(t, domain.KindDuplicateState, domain.KindOf(err))

	n, err := f.store.Events().Count(context.Background(), domain.EventFilter{PumpID: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestApplyEventOrdering(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.apply(t, 5, f.operator, domain.ActionOn, at(8))
	f.apply(t, 5, f.operator, domain.ActionOff, at(12))

	tests := []struct {
		name string
		when time.Time
	}{
		{name: "before latest", when: at(7)},
		{name: "equal to latest", when: at(12)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			when := tc.when
			_, err := f.svc.ApplyEvent(context.Background(), ApplyRequest{
				PumpID: 5, ActorID: f.operator.ID, Action: domain.ActionOn, Reason: "late entry", EventTime: &when,
			})
			require.Error(t, err)

			var oe *domain.OrderingError
			require.True(t, errors.As(err, &oe))
			assert.Equal(t, at(12), oe.Latest)
			assert.Equal(t, domain.KindOrdering, domain.KindOf(err))
		})
	}

	p := f.pump(t, 5)
	assert.Equal(t, domain.ActionOff, p.Status)
	assert.Equal(t, at(12), *p.LastChange)
}

func TestApplyEventValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name string
		req  ApplyRequest
		want error
	}{
		{name: "empty reason", req: ApplyRequest{PumpID: 5, Action: domain.ActionOn, Reason: "  "}, want: domain.ErrValidation},
		{name: "bad action", req: ApplyRequest{PumpID: 5, Action: "STANDBY", Reason: "x"}, want: domain.ErrValidation},
		{name: "unknown pump", req: ApplyRequest{PumpID: 404, Action: domain.ActionOn, Reason: "x"}, want: domain.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ApplyEvent(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestApplyEventLowercaseAction(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ev, err := f.svc.ApplyEvent(context.Background(), ApplyRequest{
		PumpID: 2, ActorID: f.operator.ID, Action: "on", Reason: "start",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionOn, ev.Action)
}

// ---------------------------------------------------------------------------
// StateAt
// ---------------------------------------------------------------------------

func TestStateAt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.apply(t, 5, f.operator, domain.ActionOn, at(8))
	f.apply(t, 5, f.operator, domain.ActionOff, at(12))
	ctx := context.Background()

	tests := []struct {
		t    time.Time
		want domain.Action
	}{
		{at(7), domain.ActionOff},
		{at(8), domain.ActionOn},
		{at(10), domain.ActionOn},
		{at(12), domain.ActionOff},
		{at(23), domain.ActionOff},
	}
	for _, tc := range tests {
		got, err := f.svc.StateAt(ctx, 5, tc.t)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.t.String())
	}

	_, err := f.svc.StateAt(ctx, 404, at(1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Deletion
// ---------------------------------------------------------------------------

func TestDeleteLatestRestoresPriorState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.apply(t, 5, f.operator, domain.ActionOn, at(8))
	off := f.apply(t, 5, f.operator, domain.ActionOff, at(17))

	entry, err := f.svc.DeleteLatestEvent(context.Background(), DeleteRequest{
		EventID: off.ID, Actor: f.operator, Reason: "entered by mistake",
	})
	require.NoError(t, err)
	assert.Equal(t, off.ID, entry.EventID)
	assert.Equal(t, 5, entry.PumpNumber)
	assert.Equal(t, f.operator.ID, entry.OriginalActorID)

	p := f.pump(t, 5)
	assert.Equal(t, domain.ActionOn, p.Status)
	require.NotNil(t, p.LastChange)
	assert.Equal(t, at(8), *p.LastChange)

	logs, err := f.svc.DeletionLogs(context.Background(), f.admin, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "entered by mistake", logs[0].DeletionReason)
}

func TestDeleteOnlyEventResetsToOff(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	on := f.apply(t, 5, f.operator, domain.ActionOn, at(8))

	_, err := f.svc.DeleteLatestEvent(context.Background(), DeleteRequest{
		EventID: on.ID, Actor: f.admin, Reason: "wrong pump selected",
	})
	require.NoError(t, err)

	p := f.pump(t, 5)
	assert.Equal(t, domain.ActionOff, p.Status)
	assert.Nil(t, p.LastChange)

	// With no events left the next event is a bootstrap again.
	f.apply(t, 5, f.operator, domain.ActionOff, at(9))
}

func TestDeletePreconditions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first := f.apply(t, 5, f.operator, domain.ActionOn, at(8))
	latest := f.apply(t, 5, f.operator, domain.ActionOff, at(12))

	tests := []struct {
		name    string
		eventID int64
		actor   domain.Actor
		reason  string
		clock   time.Time
		want    error
	}{
		{name: "short reason", eventID: latest.ID, actor: f.operator, reason: "oops", clock: at(20), want: domain.ErrValidation},
		{name: "not latest", eventID: first.ID, actor: f.admin, reason: "entered by mistake", clock: at(20), want: domain.ErrNotLatest},
		{name: "someone else's event", eventID: latest.ID, actor: f.other, reason: "entered by mistake", clock: at(20), want: domain.ErrPermission},
		{name: "too old", eventID: latest.ID, actor: f.operator, reason: "entered by mistake", clock: at(20).Add(49 * time.Hour), want: domain.ErrTooOld},
		{name: "unknown event", eventID: 999, actor: f.admin, reason: "entered by mistake", clock: at(20), want: domain.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			*f.clock = tc.clock
			_, err := f.svc.DeleteLatestEvent(context.Background(), DeleteRequest{
				EventID: tc.eventID, Actor: tc.actor, Reason: tc.reason,
			})
			assert.ErrorIs(t, err, tc.want)
		})
	}

	n, err := f.store.Events().Count(context.Background(), domain.EventFilter{PumpID: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAdminDeletesOldEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ev := f.apply(t, 5, f.operator, domain.ActionOn, at(8))
	*f.clock = at(8).Add(30 * 24 * time.Hour)

	require.NoError(t, f.svc.CheckDeletable(context.Background(), ev.ID, f.admin))
	assert.ErrorIs(t, f.svc.CheckDeletable(context.Background(), ev.ID, f.operator), domain.ErrTooOld)
}

func TestDeletionLogsRequireCapability(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.DeletionLogs(context.Background(), f.operator, 10)
	assert.ErrorIs(t, err, domain.ErrPermission)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func TestRecordsPaging(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	action := domain.ActionOn
	for i := 0; i < 25; i++ {
		f.apply(t, 5, f.operator, action, day.Add(time.Duration(i)*time.Minute))
		if action == domain.ActionOn {
			action = domain.ActionOff
		} else {
			action = domain.ActionOn
		}
	}
	*f.clock = at(21)

	page1, err := f.svc.Records(context.Background(), 5, 1, f.operator)
	require.NoError(t, err)
	assert.Equal(t, 25, page1.Total)
	assert.Equal(t, 2, page1.TotalPages)
	require.Len(t, page1.Records, RecordsPerPage)
	assert.Equal(t, day.Add(24*time.Minute), page1.Records[0].Event.EventTime)
	assert.True(t, page1.Records[0].Deletable)
	assert.False(t, page1.Records[1].Deletable)

	page2, err := f.svc.Records(context.Background(), 5, 2, f.other)
	require.NoError(t, err)
	require.Len(t, page2.Records, 5)
	assert.Equal(t, day, page2.Records[4].Event.EventTime)

	other, err := f.svc.Records(context.Background(), 5, 1, f.other)
	require.NoError(t, err)
	assert.False(t, other.Records[0].Deletable)
}

func TestListPumpsHasHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.apply(t, 2, f.operator, domain.ActionOn, at(8))

	pumps, err := f.svc.ListPumps(context.Background())
	require.NoError(t, err)
	require.Len(t, pumps, 10)
	assert.Equal(t, 1, pumps[0].Number)
	assert.False(t, pumps[0].HasHistory)
	assert.True(t, pumps[1].HasHistory)
	assert.Equal(t, domain.ActionOn, pumps[1].Status)

	// Seeding again is a no-op.
	require.NoError(t, f.svc.SeedPumps(context.Background(), 10))
	pumps, err = f.svc.ListPumps(context.Background())
	require.NoError(t, err)
	assert.Len(t, pumps, 10)
}

// ---------------------------------------------------------------------------
// Storage failures
// ---------------------------------------------------------------------------

// brokenStatus fails every write of the cached pump status.
type brokenStatus struct{ domain.PumpRepository }

func (brokenStatus) UpdateStatus(context.Context, int64, domain.Action, *time.Time) error {
	return errors.New("connection reset")
}

type brokenStatusStore struct{ *memory.Store }

func (b brokenStatusStore) Pumps() domain.PumpRepository {
	return brokenStatus{b.Store.Pumps()}
}

func TestApplyEventRollsBackWhenStatusWriteFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := NewService(brokenStatusStore{f.store}, WithClock(func() time.Time { return *f.clock }))

	when := at(8)
	_, err := svc.ApplyEvent(context.Background(), ApplyRequest{
		PumpID: 5, ActorID: f.operator.ID, Action: domain.ActionOn, Reason: "start", EventTime: &when,
	})
	require.ErrorIs(t, err, domain.ErrPersistence)

	n, err := f.store.Events().Count(context.Background(), domain.EventFilter{PumpID: 5})
	require.NoError(t, err)
	assert.Zero(t, n)

	p := f.pump(t, 5)
	assert.Equal(t, domain.ActionOff, p.Status)
	assert.Nil(t, p.LastChange)
}

func TestDeleteRollsBackWhenRecomputeFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.apply(t, 5, f.operator, domain.ActionOn, at(8))
	off := f.apply(t, 5, f.operator, domain.ActionOff, at(17))

	svc := NewService(brokenStatusStore{f.store}, WithClock(func() time.Time { return *f.clock }))
	_, err := svc.DeleteLatestEvent(context.Background(), DeleteRequest{
		EventID: off.ID, Actor: f.operator, Reason: "entered by mistake",
	})
	require.ErrorIs(t, err, domain.ErrPersistence)

	latest, err := f.store.Events().Latest(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, off.ID, latest.ID)

	p := f.pump(t, 5)
	assert.Equal(t, domain.ActionOff, p.Status)
	require.NotNil(t, p.LastChange)
	assert.Equal(t, at(17), *p.LastChange)

	logs, err := f.svc.DeletionLogs(context.Background(), f.admin, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestApplyEventAutomaticTruncatesToSecond(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	*f.clock = day.Add(24*time.Hour - 600*time.Millisecond)

	ev, err := f.svc.ApplyEvent(context.Background(), ApplyRequest{
		PumpID: 5, ActorID: f.operator.ID, Action: domain.ActionOn, Reason: "start",
	})
	require.NoError(t, err)
	assert.Equal(t, day.Add(24*time.Hour-time.Second), ev.EventTime)
	assert.Equal(t, ev.EventTime, ev.RecordedTime)
}
