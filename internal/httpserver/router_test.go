package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habittracker/internal/analytics"
	"habittracker/internal/handler"
	"habittracker/internal/model"
	"habittracker/internal/service"
	"habittracker/internal/service/auth"
	"habittracker/internal/service/habit"
	"habittracker/pkg/outbox"
	"habittracker/pkg/trace"
	"habittracker/pkg/util"
)

const (
	habitUUID = "3f1c9a52-8a3b-4c55-9a9e-0c7b2e7d1a10"
	userToken = "user-token"
	adminTok  = "admin-token"
)

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(_ context.Context, token string) (*util.Claims, error) {
	switch token {
	case userToken:
		return &util.Claims{UserID: "u1", Role: "user"}, nil
	case adminTok:
		return &util.Claims{UserID: "admin", Role: "admin"}, nil
	}
	return nil, auth.ErrInvalidToken
}

type stubAuth struct{}

func (stubAuth) Register(_ context.Context, email, _, name string) (*auth.Session, error) {
	if email == "taken@example.com" {
		return nil, auth.ErrEmailTaken
	}
	if len(name) < 2 {
		return nil, service.Invalid("display_name", "must be at least 2 characters")
	}
	return &auth.Session{User: &model.User{ID: "u1", Email: email, DisplayName: name}, Token: "t"}, nil
}

func (stubAuth) Login(_ context.Context, _, password string) (*auth.Session, error) {
	if password != "secret1" {
		return nil, auth.ErrInvalidCredentials
	}
	return &auth.Session{User: &model.User{ID: "u1"}, Token: "t"}, nil
}

func (stubAuth) Logout(context.Context, string) error { return nil }

func (stubAuth) CurrentUser(_ context.Context, id string) (*model.User, error) {
	return &model.User{ID: id, DisplayName: "Alice", PasswordHash: "hash"}, nil
}

type stubHabits struct {
	lastNow    time.Time
	lastDate   string
	lastActive bool
	err        error
}

func (s *stubHabits) List(_ context.Context, _ string, now time.Time, activeOnly bool) ([]model.HabitWithEntries, error) {
	s.lastNow, s.lastActive = now, activeOnly
	return []model.HabitWithEntries{{Habit: model.Habit{ID: habitUUID, Name: "Read", IsActive: true}, Streak: 3}}, s.err
}

func (s *stubHabits) Get(_ context.Context, _, id string, _ time.Time) (*model.HabitWithEntries, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.HabitWithEntries{Habit: model.Habit{ID: id}}, nil
}

func (s *stubHabits) Create(_ context.Context, userID string, in model.CreateHabitInput) (*model.Habit, error) {
	if in.Name == "" {
		return nil, service.Invalid("name", "is required")
	}
	return &model.Habit{ID: habitUUID, UserID: userID, Name: in.Name}, nil
}

func (s *stubHabits) Update(_ context.Context, _, id string, in model.UpdateHabitInput) (*model.Habit, error) {
	if in.Empty() {
		return nil, habit.ErrEmptyUpdate
	}
	return &model.Habit{ID: id}, nil
}

func (s *stubHabits) Delete(context.Context, string, string) error { return s.err }

func (s *stubHabits) Toggle(_ context.Context, _, habitID, date string, now time.Time) (*model.Entry, error) {
	s.lastNow, s.lastDate = now, date
	if date > analytics.FormatDate(analytics.Day(now)) {
		return nil, habit.ErrFutureDate
	}
	if date == "" {
		date = analytics.FormatDate(analytics.Day(now))
	}
	return &model.Entry{HabitID: habitID, Date: date, Completed: true}, nil
}

func (s *stubHabits) Entries(context.Context, string, string, string, string) ([]model.Entry, error) {
	return []model.Entry{}, nil
}

func (s *stubHabits) Dashboard(_ context.Context, _ string, now time.Time) (*habit.Dashboard, error) {
	return &habit.Dashboard{Date: analytics.FormatDate(analytics.Day(now))}, nil
}

func (s *stubHabits) Analytics(context.Context, string, string, time.Time) (*habit.Analytics, error) {
	return nil, errors.New("db exploded")
}

func (s *stubHabits) Calendar(_ context.Context, _, id, _ string, _ time.Time) (*analytics.MonthView, error) {
	return &analytics.MonthView{HabitID: id}, nil
}

func (s *stubHabits) Milestones(context.Context, string) ([]model.Milestone, error) {
	return []model.Milestone{}, nil
}

type stubReplayer struct{}

func (stubReplayer) ReplayEvent(_ context.Context, id int64) error {
	if id == 404 {
		return outbox.ErrEventNotFound
	}
	return nil
}

func (stubReplayer) ReplayFailedEvents(_ context.Context, limit int) (int, error) {
	return limit, nil
}

type harness struct {
	router *Router
	habits *stubHabits
}

func newHarness(t *testing.T, ready map[string]ReadinessCheck) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	habits := &stubHabits{}
	hh := handler.NewHabitHandler(habits, time.UTC, zap.NewNop())
	handler.SetClock(hh, func() time.Time { return time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC) })

	r := NewRouter(Deps{
		Auth:          handler.NewAuthHandler(stubAuth{}, zap.NewNop()),
		Habits:        hh,
		Admin:         handler.NewAdminHandler(stubReplayer{}, zap.NewNop()),
		Authenticator: stubAuthenticator{},
		AuthLimiter:   NewIPRateLimiter(100, 100),
		Ready:         ready,
		Logger:        zap.NewNop(),
	})
	return &harness{router: r, habits: habits}
}

func (h *harness) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.router.Engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthAndReadiness(t *testing.T) {
	h := newHarness(t, map[string]ReadinessCheck{
		"db": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/readyz", "", nil).Code)

	down := newHarness(t, map[string]ReadinessCheck{
		"mq": func(context.Context) error { return errors.New("not connected") },
	})
	w := down.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "mq_not_ready", decode(t, w)["status"])
}

func TestTraceHeaderEchoed(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodGet, "/healthz", "", nil, trace.HeaderName, "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(trace.HeaderName))

	w = h.do(http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, w.Header().Get(trace.HeaderName))
}

func TestAuthEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "a@example.com", "password": "secret1", "display_name": "Alice",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = h.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "taken@example.com", "password": "secret1", "display_name": "Alice",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "a@example.com", "password": "secret1", "display_name": "A",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "display_name", decode(t, w)["field"])

	w = h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "a@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/auth/me", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "u1", body["id"])
	assert.NotContains(t, body, "password_hash")

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/auth/logout", userToken, nil).Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/habits", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/habits", "bogus", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/habits", userToken, nil).Code)
}

func TestListUsesRequestTimezone(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodGet, "/habits?active=true&tz=Asia/Tokyo", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, h.habits.lastActive)
	assert.Equal(t, "2026-10-20", analytics.FormatDate(analytics.Day(h.habits.lastNow)))

	w = h.do(http.MethodGet, "/habits", userToken, nil, handler.TimezoneHeader, "America/New_York")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-10-19", analytics.FormatDate(analytics.Day(h.habits.lastNow)))

	w = h.do(http.MethodGet, "/habits?tz=Not/AZone", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHabitCRUDRoutes(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/habits", userToken, map[string]string{"name": "Read"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = h.do(http.MethodPost, "/habits", userToken, map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPatch, "/habits/"+habitUUID, userToken, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPatch, "/habits/"+habitUUID, userToken, map[string]any{"is_active": false})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/habits/not-a-uuid", userToken, nil).Code)

	h.habits.err = habit.ErrHabitNotFound
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/habits/"+habitUUID, userToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/habits/"+habitUUID, userToken, nil).Code)

	h.habits.err = nil
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/habits/"+habitUUID, userToken, nil).Code)
}

func TestToggleRoute(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/habits/"+habitUUID+"/toggle", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-10-19", decode(t, w)["date"])

	w = h.do(http.MethodPost, "/habits/"+habitUUID+"/toggle", userToken, map[string]string{"date": "2026-10-15"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-10-15", h.habits.lastDate)

	w = h.do(http.MethodPost, "/habits/"+habitUUID+"/toggle", userToken, map[string]string{"date": "2026-10-21"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodGet, "/analytics", userToken, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w)["error"])
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/admin/outbox/replay?id=1", userToken, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/admin/outbox/replay?id=1", adminTok, nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/admin/outbox/replay?id=x", adminTok, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/admin/outbox/replay?id=404", adminTok, nil).Code)

	w := h.do(http.MethodPost, "/admin/outbox/replay-failed?limit=7", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(7), decode(t, w)["success_count"])
}

func TestAuthRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{
		Auth:          handler.NewAuthHandler(stubAuth{}, zap.NewNop()),
		Habits:        handler.NewHabitHandler(&stubHabits{}, time.UTC, zap.NewNop()),
		Authenticator: stubAuthenticator{},
		AuthLimiter:   NewIPRateLimiter(0.001, 2),
		Logger:        zap.NewNop(),
	})
	h := &harness{router: r}

	body := map[string]string{"email": "a@example.com", "password": "secret1"}
	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/login", "", body).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/login", "", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodPost, "/auth/login", "", body).Code)
}
