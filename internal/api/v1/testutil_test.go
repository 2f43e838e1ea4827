package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/pumpwatch/internal/api/v1"
	"github.com/gosuda/pumpwatch/internal/auth"
	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/importer"
	"github.com/gosuda/pumpwatch/internal/report"
	"github.com/gosuda/pumpwatch/internal/server/middleware"
	"github.com/gosuda/pumpwatch/internal/status"
	"github.com/gosuda/pumpwatch/internal/store/memory"
	"github.com/gosuda/pumpwatch/internal/wellaudit"
)

const testSecret = "api-test-secret-that-is-long-enough"

// fixture wires every route against the in-memory store with a Gregorian
// calendar in UTC and pumps 1..3.
type fixture struct {
	api   humatest.TestAPI
	store *memory.Store
	auth  *auth.Service

	admin    domain.Actor
	operator domain.Actor
	tech     domain.Actor
	viewer   domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	_, api := humatest.New(t)
	st := memory.New()
	cal := calendar.NewGregorian(time.UTC)

	statusSvc := status.NewService(st)
	require.NoError(t, statusSvc.SeedPumps(ctx, 3))
	reportSvc := report.NewService(st, cal, 2)
	authSvc := auth.NewService(st.Users(), testSecret, time.Hour)

	f := &fixture{api: api, store: st, auth: authSvc}
	for _, u := range []struct {
		actor *domain.Actor
		name  string
		role  domain.Role
	}{
		{&f.admin, "admin", domain.RoleAdmin},
		{&f.operator, "operator", domain.RoleOperator},
		{&f.tech, "tech", domain.RoleTechnician},
		{&f.viewer, "viewer", domain.RoleViewer},
	} {
		user, err := authSvc.CreateUser(ctx, u.name, "", "password-"+u.name, u.role)
		require.NoError(t, err)
		*u.actor = domain.Actor{ID: user.ID, Role: u.role}
	}

	v1.RegisterAuthRoutes(api, authSvc)
	v1.RegisterAccountRoutes(api, authSvc)
	v1.RegisterPumpRoutes(api, statusSvc, cal)
	v1.RegisterReportRoutes(api, reportSvc, statusSvc)
	v1.RegisterImportRoutes(api, importer.NewService(st, cal, 100))
	v1.RegisterWellRoutes(api, wellaudit.NewService(st), cal)

	return f
}

func as(actor domain.Actor) context.Context {
	return middleware.WithActor(context.Background(), actor)
}

func stranger() domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: domain.RoleOperator}
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

// errorBody mirrors the failure envelope.
type errorBody struct {
	OK      bool   `json:"ok"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Latest  string `json:"latest"`
}

// record posts an event and returns its ID.
func (f *fixture) record(t *testing.T, actor domain.Actor, pump int, action, eventTime string) int64 {
	t.Helper()

	body := map[string]any{"action": action, "reason": "scheduled"}
	if eventTime != "" {
		body["event_time"] = eventTime
	}
	resp := f.api.PostCtx(as(actor), "/pumps/"+strconv.Itoa(pump)+"/events", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	return decode[recordResponse](t, resp).Event.ID
}

type recordResponse struct {
	OK    bool         `json:"ok"`
	Event v1.EventView `json:"event"`
	Pump  v1.PumpView  `json:"pump"`
}

func urlQuery(s string) string {
	return url.QueryEscape(s)
}
