package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/ogurasousui/user-api/internal/adapters/repository/sqlstore"
	"github.com/ogurasousui/user-api/internal/core/user"
	"github.com/ogurasousui/user-api/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickClock は呼び出しごとに 1 秒進む時計です。
type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testServer struct {
	e   *echo.Echo
	reg *prometheus.Registry
}

func newTestServer(t *testing.T, checks map[string]Check) *testServer {
	t.Helper()

	db, err := sqlstore.Open("file:handler_" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlstore.Close(db) })

	reg := prometheus.NewRegistry()
	svc := user.NewService(
		sqlstore.NewUserStore(db),
		&tickClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		sqlstore.NewTransactionManager(db),
		user.WithRecorder(metrics.NewUserMetrics(reg)),
	)

	e := NewRouter(RouterDeps{
		Users:      svc,
		Health:     NewHealthHandler(checks, time.Second),
		Metrics:    metrics.NewHTTPMetrics(reg),
		Exposition: metrics.Handler(reg),
		Logger:     zerolog.New(io.Discard),
	})
	return &testServer{e: e, reg: reg}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createUser(t *testing.T, body string) userResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/users", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[userResponse](t, rec)
}

func TestCreateUser_Defaults(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/users", `{"username":"alex_01","email":"alex_01@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	raw := decodeBody[map[string]any](t, rec)
	assert.Contains(t, raw, "first_name")
	assert.Nil(t, raw["first_name"])
	assert.Contains(t, raw, "last_name")

	created := decodeBody[userResponse](t, rec)
	_, err := uuid.Parse(created.ID)
	assert.NoError(t, err)
	assert.Equal(t, "alex_01", created.Username)
	assert.Equal(t, "user", created.Role)
	assert.True(t, created.Active)
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))
	assert.Equal(t, "/api/v1/users/"+created.ID, rec.Header().Get(echo.HeaderLocation))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestCreateUser_AllFields(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	created := s.createUser(t, `{"username":"jane","email":"jane@example.com","first_name":"Jane","last_name":"Doe","role":"admin","active":false}`)
	require.NotNil(t, created.FirstName)
	assert.Equal(t, "Jane", *created.FirstName)
	require.NotNil(t, created.LastName)
	assert.Equal(t, "Doe", *created.LastName)
	assert.Equal(t, "admin", created.Role)
	assert.False(t, created.Active)
}

func TestCreateUser_Conflicts(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	s.createUser(t, `{"username":"alex_01","email":"alex_01@example.com"}`)

	tests := map[string]struct {
		body string
		want string
	}{
		"username taken":            {`{"username":"alex_01","email":"other@example.com"}`, "username_exists"},
		"email taken":               {`{"username":"other","email":"alex_01@example.com"}`, "email_exists"},
		"both taken, username wins": {`{"username":"alex_01","email":"alex_01@example.com"}`, "username_exists"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/users", tt.body)
			require.Equal(t, http.StatusConflict, rec.Code)
			assert.Equal(t, tt.want, decodeBody[errorResponse](t, rec).Error)
		})
	}
}

func TestCreateUser_Validation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	tests := map[string]struct {
		body  string
		field string
	}{
		"invalid email":   {`{"username":"alex_01","email":"not-an-email"}`, "email"},
		"short username":  {`{"username":"ab","email":"ab@example.com"}`, "username"},
		"missing email":   {`{"username":"alex_01"}`, "email"},
		"unknown role":    {`{"username":"alex_01","email":"alex_01@example.com","role":"root"}`, "role"},
		"unknown field":   {`{"username":"alex_01","email":"alex_01@example.com","nickname":"al"}`, "nickname"},
		"wrong type":      {`{"username":"alex_01","email":"alex_01@example.com","active":"yes"}`, "active"},
		"malformed json":  {`{"username":`, "body"},
		"empty body":      {"", "body"},
		"trailing object": {`{"username":"alex_01","email":"alex_01@example.com"}{}`, "body"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/users", tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

			body := decodeBody[errorResponse](t, rec)
			assert.Equal(t, "validation failed", body.Error)
			fields := make([]string, 0, len(body.Details))
			for _, d := range body.Details {
				fields = append(fields, d.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}

	rec := s.do(t, http.MethodGet, "/api/v1/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]userResponse](t, rec))
}

func TestGetUser(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	created := s.createUser(t, `{"username":"alex_01","email":"alex_01@example.com"}`)

	rec := s.do(t, http.MethodGet, "/api/v1/users/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decodeBody[userResponse](t, rec))

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		rec := s.do(t, http.MethodGet, "/api/v1/users/"+id, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "user not found", decodeBody[errorResponse](t, rec).Error)
	}
}

func TestListUsers(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	first := s.createUser(t, `{"username":"first","email":"first@example.com"}`)
	second := s.createUser(t, `{"username":"second","email":"second@example.com","active":false}`)
	third := s.createUser(t, `{"username":"third","email":"third@example.com"}`)

	rec := s.do(t, http.MethodGet, "/api/v1/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[[]userResponse](t, rec)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	rec = s.do(t, http.MethodGet, "/api/v1/users?active=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	inactive := decodeBody[[]userResponse](t, rec)
	require.Len(t, inactive, 1)
	assert.Equal(t, second.ID, inactive[0].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/users?limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[[]userResponse](t, rec)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	for _, query := range []string{"limit=0", "limit=201", "offset=-1", "limit=abc", "active=maybe"} {
		rec := s.do(t, http.MethodGet, "/api/v1/users?"+query, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, query)
	}
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	created := s.createUser(t, `{"username":"alex_01","email":"alex_01@example.com","first_name":"Alex"}`)
	s.createUser(t, `{"username":"other","email":"other@example.com"}`)
	path := "/api/v1/users/" + created.ID

	rec := s.do(t, http.MethodPut, path, `{"role":"guest","last_name":"Smith"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[userResponse](t, rec)
	assert.Equal(t, "guest", updated.Role)
	require.NotNil(t, updated.FirstName)
	assert.Equal(t, "Alex", *updated.FirstName)
	require.NotNil(t, updated.LastName)
	assert.Equal(t, "Smith", *updated.LastName)
	assert.Equal(t, "alex_01@example.com", updated.Email)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))

	rec = s.do(t, http.MethodPatch, path, `{"first_name":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decodeBody[userResponse](t, rec).FirstName)

	rec = s.do(t, http.MethodPut, path, `{"email":"other@example.com"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email_exists", decodeBody[errorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPut, path, `{"username":"renamed"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "username", decodeBody[errorResponse](t, rec).Details[0].Field)

	rec = s.do(t, http.MethodPut, path, `{"email":"broken"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/users/"+uuid.NewString(), `{"role":"admin"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	created := s.createUser(t, `{"username":"alex_01","email":"alex_01@example.com"}`)
	path := "/api/v1/users/" + created.ID

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodDelete, path, "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	}

	rec := s.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[userResponse](t, rec).Active)

	rec = s.do(t, http.MethodPost, "/api/v1/users", `{"username":"alex_01","email":"new@example.com"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "username_exists", decodeBody[errorResponse](t, rec).Error)

	rec = s.do(t, http.MethodDelete, "/api/v1/users/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	healthy := newTestServer(t, map[string]Check{
		"database": func(context.Context) error { return nil },
	})
	rec := healthy.do(t, http.MethodGet, "/api/v1/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = healthy.do(t, http.MethodGet, "/api/v1/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[readinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "ok", ready.Dependencies["database"].Status)

	degraded := newTestServer(t, map[string]Check{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("connection refused") },
	})
	rec = degraded.do(t, http.MethodGet, "/api/v1/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	ready = decodeBody[readinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, dependencyStatus{Status: "unhealthy", Error: "connection refused"}, ready.Dependencies["cache"])
	assert.Equal(t, "ok", ready.Dependencies["database"].Status)

	rec = degraded.do(t, http.MethodGet, "/api/v1/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady_RespectsTimeout(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(map[string]Check{
		"slow": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}, 10*time.Millisecond)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil), rec)

	require.NoError(t, h.Ready(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	s.createUser(t, `{"username":"alex_01","email":"alex_01@example.com"}`)
	s.do(t, http.MethodPost, "/api/v1/users", `{"username":"alex_01","email":"x@example.com"}`)

	rec := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "user_api_users_created_total 1")
	assert.Contains(t, body, `user_api_user_conflicts_total{reason="username_exists"} 1`)
	assert.Contains(t, body, `route="/api/v1/users"`)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestOpenAPIDocument(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)

	doc := decodeBody[struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}](t, rec)
	assert.Equal(t, "/api/v1", doc.BasePath)
	require.Contains(t, doc.Paths, "/users")
	require.Contains(t, doc.Paths, "/users/{id}")
	assert.Contains(t, doc.Paths["/users"], "post")
	assert.Contains(t, doc.Paths["/users"], "get")
	for _, method := range []string{"get", "put", "delete"} {
		assert.Contains(t, doc.Paths["/users/{id}"], method)
	}
}

func TestSwaggerUI(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/docs", "")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/api/v1/docs/index.html", rec.Header().Get(echo.HeaderLocation))

	rec = s.do(t, http.MethodGet, "/api/v1/docs/index.html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/openapi.json")
}
