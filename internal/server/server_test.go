package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/pumpwatch/internal/auth"
	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/config"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/importer"
	"github.com/gosuda/pumpwatch/internal/report"
	"github.com/gosuda/pumpwatch/internal/server"
	"github.com/gosuda/pumpwatch/internal/status"
	"github.com/gosuda/pumpwatch/internal/store/memory"
	"github.com/gosuda/pumpwatch/internal/wellaudit"
)

const testSecret = "server-test-secret-at-least-32-chars"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: testSecret, AccessTTL: time.Hour},
		Server: config.ServerConfig{
			Addr:           ":0",
			CORSOrigins:    []string{"http://localhost:5173"},
			LoginRateLimit: 0.01,
			LoginBurst:     3,
		},
	}

	st := memory.New()
	cal := calendar.NewGregorian(time.UTC)
	statusSvc := status.NewService(st)
	require.NoError(t, statusSvc.SeedPumps(ctx, 2))

	authSvc := auth.NewService(st.Users(), testSecret, time.Hour)
	_, err := authSvc.CreateUser(ctx, "op", "Operator One", "op-password", domain.RoleOperator)
	require.NoError(t, err)

	srv := server.New(ctx, cfg, st.Users(), server.Services{
		Auth:     authSvc,
		Status:   statusSvc,
		Reports:  report.NewService(st, cal, 2),
		Imports:  importer.NewService(st, cal, 100),
		Wells:    wellaudit.NewService(st),
		Calendar: cal,
	})
	return srv.Handler()
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()

	rec := do(h, http.MethodPost, "/api/v1/auth/login", "", `{"username":"op","password":"op-password"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := do(newTestServer(t), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLoginThenRecordEvent(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	token := login(t, h)

	rec := do(h, http.MethodPost, "/api/v1/pumps/1/events", token, `{"action":"ON","reason":"start of shift"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/v1/pumps/1", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ON"`)

	rec = do(h, http.MethodPost, "/api/v1/pumps/1/events", token, `{"action":"ON","reason":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"duplicate_state"`)
}

func TestAPIRequiresToken(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/v1/pumps", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/pumps", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestValidationUsesEnvelope(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	token := login(t, h)

	rec := do(h, http.MethodGet, "/api/v1/pumps/0", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		OK   bool   `json:"ok"`
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.OK)
	assert.Equal(t, domain.KindValidation, body.Kind)
}

func TestLoginRateLimited(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	bad := `{"username":"op","password":"wrong-password"}`

	for range 3 {
		rec := do(h, http.MethodPost, "/api/v1/auth/login", "", bad)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := do(h, http.MethodPost, "/api/v1/auth/login", "", bad)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	do(h, http.MethodGet, "/healthz", "", "")

	rec := do(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pumpwatch_http_requests_total")
}
