package v1_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/pumpwatch/internal/api/v1"
	"github.com/gosuda/pumpwatch/internal/domain"
)

// ---------------------------------------------------------------------------
// POST /pumps/{number}/events
// ---------------------------------------------------------------------------

func TestRecordEvent(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.api.PostCtx(as(f.operator), "/pumps/1/events", map[string]any{
			"action": "on",
			"reason": "morning start",
			"notes":  "pressure ok",
		})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		out := decode[recordResponse](t, resp)
		assert.True(t, out.OK)
		assert.Equal(t, "ON", out.Event.Action)
		assert.False(t, out.Event.Manual)
		assert.Equal(t, f.operator.ID, out.Event.ActorID)
		assert.Equal(t, "ON", out.Pump.Status)
		assert.True(t, out.Pump.HasHistory)
		assert.NotEmpty(t, out.Pump.LastChange)
	})

	t.Run("manual_entry", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.api.PostCtx(as(f.operator), "/pumps/2/events", map[string]any{
			"action":     "ON",
			"reason":     "backfill",
			"event_time": "2024-10-01 08:30",
		})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		out := decode[recordResponse](t, resp)
		assert.True(t, out.Event.Manual)
		assert.Equal(t, "2024-10-01 08:30:00", out.Event.EventTime)
		assert.Equal(t, "2024-10-01 08:30:00", out.Pump.LastChange)
	})

	t.Run("duplicate_state", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.record(t, f.operator, 1, "ON", "")

		resp := f.api.PostCtx(as(f.operator), "/pumps/1/events", map[string]any{"action": "ON", "reason": "again"})
		assert.Equal(t, http.StatusConflict, resp.Code)

		body := decode[errorBody](t, resp)
		assert.False(t, body.OK)
		assert.Equal(t, domain.KindDuplicateState, body.Kind)
	})

	t.Run("ordering_names_latest", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.record(t, f.operator, 1, "ON", "2024-10-01 10:00")

		resp := f.api.PostCtx(as(f.operator), "/pumps/1/events", map[string]any{
			"action":     "OFF",
			"reason":     "late entry",
			"event_time": "2024-10-01 09:00",
		})
		assert.Equal(t, http.StatusConflict, resp.Code)

		body := decode[errorBody](t, resp)
		assert.Equal(t, domain.KindOrdering, body.Kind)
		assert.Equal(t, "2024-10-01 10:00:00", body.Latest)
	})

	tests := []struct {
		name     string
		ctx      context.Context
		path     string
		body     map[string]any
		wantCode int
		wantKind string
	}{
		{
			name:     "no_actor",
			ctx:      context.Background(),
			path:     "/pumps/1/events",
			body:     map[string]any{"action": "ON", "reason": "x"},
			wantCode: http.StatusUnauthorized,
			wantKind: v1.KindUnauthorized,
		},
		{
			name:     "unknown_pump",
			path:     "/pumps/99/events",
			body:     map[string]any{"action": "ON", "reason": "x"},
			wantCode: http.StatusNotFound,
			wantKind: domain.KindNotFound,
		},
		{
			name:     "bad_action",
			path:     "/pumps/1/events",
			body:     map[string]any{"action": "MAYBE", "reason": "x"},
			wantCode: http.StatusBadRequest,
			wantKind: domain.KindValidation,
		},
		{
			name:     "invalid_local_time",
			path:     "/pumps/1/events",
			body:     map[string]any{"action": "ON", "reason": "x", "event_time": "2024-13-01 10:00"},
			wantCode: http.StatusBadRequest,
			wantKind: domain.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			ctx := tt.ctx
			if ctx == nil {
				ctx = as(f.operator)
			}

			resp := f.api.PostCtx(ctx, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, resp.Code, resp.Body.String())
			assert.Equal(t, tt.wantKind, decode[errorBody](t, resp).Kind)
		})
	}

	t.Run("viewer_forbidden", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.api.PostCtx(as(f.viewer), "/pumps/1/events", map[string]any{"action": "ON", "reason": "x"})
		assert.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, domain.KindPermission, decode[errorBody](t, resp).Kind)
	})
}

// ---------------------------------------------------------------------------
// GET /pumps, /pumps/{number}, /pumps/{number}/state, /pumps/{number}/records
// ---------------------------------------------------------------------------

func TestListPumps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.record(t, f.operator, 2, "ON", "2024-10-01 08:00")

	resp := f.api.GetCtx(as(f.viewer), "/pumps")
	require.Equal(t, http.StatusOK, resp.Code)

	pumps := decode[[]v1.PumpView](t, resp)
	require.Len(t, pumps, 3)
	assert.Equal(t, 1, pumps[0].Number)
	assert.Equal(t, "OFF", pumps[0].Status)
	assert.False(t, pumps[0].HasHistory)
	assert.Equal(t, "ON", pumps[1].Status)
	assert.True(t, pumps[1].HasHistory)

	resp = f.api.GetCtx(as(f.viewer), "/pumps/2")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Pump 2", decode[v1.PumpView](t, resp).Name)

	resp = f.api.GetCtx(as(f.viewer), "/pumps/42")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestPumpStateAt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.record(t, f.operator, 1, "ON", "2024-10-01 08:00")
	f.record(t, f.operator, 1, "OFF", "2024-10-01 12:00")

	tests := []struct {
		at   string
		want string
	}{
		{at: "2024-10-01 07:59", want: "OFF"},
		{at: "2024-10-01 08:00", want: "ON"},
		{at: "2024-10-01 11:59:59", want: "ON"},
		{at: "2024-10-01 12:00", want: "OFF"},
	}

	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			resp := f.api.GetCtx(as(f.viewer), "/pumps/1/state?at="+urlQuery(tt.at))
			require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

			out := decode[struct {
				PumpNumber int    `json:"pump_number"`
				Status     string `json:"status"`
			}](t, resp)
			assert.Equal(t, 1, out.PumpNumber)
			assert.Equal(t, tt.want, out.Status)
		})
	}

	t.Run("invalid_time", func(t *testing.T) {
		resp := f.api.GetCtx(as(f.viewer), "/pumps/1/state?at=2024-02-30")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestPumpRecords(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for i := range 25 {
		action := "ON"
		if i%2 == 1 {
			action = "OFF"
		}
		f.record(t, f.operator, 1, action, fmt.Sprintf("2024-10-01 08:%02d", i))
	}

	type page struct {
		Records    []v1.RecordView `json:"records"`
		Page       int             `json:"page"`
		Total      int             `json:"total"`
		TotalPages int             `json:"total_pages"`
	}

	resp := f.api.GetCtx(as(f.operator), "/pumps/1/records")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	first := decode[page](t, resp)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 25, first.Total)
	assert.Equal(t, 2, first.TotalPages)
	require.Len(t, first.Records, 20)
	assert.True(t, first.Records[0].Deletable)
	assert.False(t, first.Records[1].Deletable)
	assert.Equal(t, "ON", first.Records[0].Action)

	resp = f.api.GetCtx(as(f.operator), "/pumps/1/records?page=2")
	require.Equal(t, http.StatusOK, resp.Code)
	second := decode[page](t, resp)
	assert.Len(t, second.Records, 5)
	for _, r := range second.Records {
		assert.False(t, r.Deletable)
	}

	resp = f.api.GetCtx(as(stranger()), "/pumps/1/records")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[page](t, resp).Records[0].Deletable)
}

// ---------------------------------------------------------------------------
// Deletion
// ---------------------------------------------------------------------------

func TestDeleteEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first := f.record(t, f.operator, 1, "ON", "2024-10-01 08:00")
	latest := f.record(t, f.operator, 1, "OFF", "2024-10-01 09:00")

	type deletable struct {
		Deletable bool   `json:"deletable"`
		Kind      string `json:"kind"`
	}

	check := func(actor domain.Actor, id int64) deletable {
		resp := f.api.GetCtx(as(actor), fmt.Sprintf("/events/%d/deletable", id))
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		return decode[deletable](t, resp)
	}

	assert.Equal(t, deletable{Kind: domain.KindNotLatest}, check(f.operator, first))
	assert.Equal(t, deletable{Kind: domain.KindPermission}, check(f.tech, latest))
	assert.Equal(t, deletable{Deletable: true}, check(f.operator, latest))
	assert.Equal(t, deletable{Deletable: true}, check(f.admin, latest))

	resp := f.api.GetCtx(as(f.operator), "/events/999/deletable")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = f.api.PostCtx(as(f.operator), fmt.Sprintf("/events/%d/delete", latest), map[string]any{"reason": "typo"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, domain.KindValidation, decode[errorBody](t, resp).Kind)

	resp = f.api.PostCtx(as(f.operator), fmt.Sprintf("/events/%d/delete", first), map[string]any{"reason": "recorded on the wrong pump"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, domain.KindNotLatest, decode[errorBody](t, resp).Kind)

	resp = f.api.PostCtx(as(f.operator), fmt.Sprintf("/events/%d/delete", latest), map[string]any{"reason": "recorded on the wrong pump"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	out := decode[struct {
		OK          bool               `json:"ok"`
		DeletionLog v1.DeletionLogView `json:"deletion_log"`
		Pump        v1.PumpView        `json:"pump"`
	}](t, resp)
	assert.True(t, out.OK)
	assert.Equal(t, latest, out.DeletionLog.EventID)
	assert.Equal(t, "OFF", out.DeletionLog.Action)
	assert.Equal(t, f.operator.ID, out.DeletionLog.DeletedByID)
	assert.Equal(t, "ON", out.Pump.Status, "status recomputed from the remaining event")

	resp = f.api.GetCtx(as(f.operator), "/deletion-logs")
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = f.api.GetCtx(as(f.admin), "/deletion-logs")
	require.Equal(t, http.StatusOK, resp.Code)
	logs := decode[[]v1.DeletionLogView](t, resp)
	require.Len(t, logs, 1)
	assert.Equal(t, "recorded on the wrong pump", logs[0].DeletionReason)
}
