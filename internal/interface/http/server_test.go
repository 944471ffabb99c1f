package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alem-hub/learnhub/internal/application/command"
	"github.com/alem-hub/learnhub/internal/application/query"
	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/leveling"
	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/learnhub/internal/infrastructure/security"
	"github.com/alem-hub/learnhub/internal/interface/http/health"
	"github.com/alem-hub/learnhub/pkg/logger"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "learnhub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cat := store.Catalog()
	require.NoError(t, cat.UpsertCourse(ctx, &catalog.Course{ID: 1, Title: "Software Design Patterns", Price: 2990, Published: true, DisplayOrder: 1}))
	require.NoError(t, cat.UpsertCourse(ctx, &catalog.Course{ID: 2, Title: "Introduction to Programming", IsFree: true, Published: true, DisplayOrder: 2}))
	require.NoError(t, cat.UpsertLesson(ctx, &catalog.Lesson{ID: 10, CourseID: 1, Title: "Strategy", VideoURL: "https://video.example.com/10", VideoDuration: 600, ExperienceReward: 200, DisplayOrder: 1}))
	require.NoError(t, cat.UpsertLesson(ctx, &catalog.Lesson{ID: 20, CourseID: 2, Title: "Variables", VideoURL: "https://video.example.com/20", VideoDuration: 600, ExperienceReward: 200, DisplayOrder: 1}))

	log := logger.Nop()
	levels := leveling.Default()
	rules := command.DefaultProgressRules()
	tokens := security.NewTokenManager("test-secret", time.Hour)
	access := query.NewAccessResolver(cat, store.Purchases())

	checks := health.NewRegistry("test")
	checks.Register("database", health.Ping(store))

	return NewServer(cfg, Dependencies{
		UpdateProgress: command.NewUpdateProgressHandler(cat, store.Progress(), access, rules, log),
		SubmitLesson:   command.NewSubmitLessonHandler(cat, store.Progress(), store.Accounts(), levels, rules, log),
		PurchaseCourse: command.NewPurchaseCourseHandler(cat, store.Purchases(), log),
		Auth:           command.NewAuthHandler(store.Accounts(), security.NewPasswordHasherWithCost(bcrypt.MinCost), tokens, levels, log),
		UpdateProfile:  command.NewUpdateProfileHandler(store.Accounts(), levels, log),
		Access:         access,
		Catalog:        query.NewCatalogViews(cat, store.Progress(), access, rules.DefaultReward),
		ListPurchases:  query.NewListPurchasesHandler(store.Purchases()),
		CheckPurchase:  query.NewCheckPurchaseHandler(store.Purchases()),
		GetProfile:     query.NewGetProfileHandler(store.Accounts(), levels),
		Tokens:         tokens,
		Logger:         log,
		HealthChecker:  checks,
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return cfg
}

type client struct {
	t     *testing.T
	srv   *Server
	token string
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func register(t *testing.T, srv *Server, email string) *client {
	t.Helper()
	c := &client{t: t, srv: srv}
	rec := c.do(http.MethodPost, "/api/auth/register", gin.H{"email": email, "password": "password123", "displayName": "Tester"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c.token = decode[authResponse](t, rec).Token
	return c
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[ErrorResponse](t, rec)
	assert.False(t, body.Success)
	return body.Error.Code
}

// ─────────────────────────────────────────────────────────────────────────────
// Health & auth
// ─────────────────────────────────────────────────────────────────────────────

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, testConfig())
	anon := &client{t: t, srv: srv}

	rec := anon.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	report := decode[health.Report](t, rec)
	assert.True(t, report.Healthy())
	assert.Equal(t, "test", report.Version)
	require.Len(t, report.Probes, 1)
	assert.Equal(t, "database", report.Probes[0].Name)

	assert.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/live", nil).Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, testConfig())
	user := register(t, srv, "learner@example.com")

	rec := user.do(http.MethodGet, "/api/users/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[query.UserDTO](t, rec)
	assert.Equal(t, "learner@example.com", me.Email)
	assert.Equal(t, "FREE", me.Role)
	assert.Equal(t, 1, me.Level)
	assert.Equal(t, int64(200), me.ExpToNextLevel)

	rec = user.do(http.MethodPut, "/api/users/me", gin.H{"displayName": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", decode[query.UserDTO](t, rec).DisplayName)

	anon := &client{t: t, srv: srv}
	rec = anon.do(http.MethodPost, "/api/auth/login", gin.H{"email": "learner@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[authResponse](t, rec).Token)

	rec = anon.do(http.MethodPost, "/api/auth/login", gin.H{"email": "learner@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	rec = anon.do(http.MethodPost, "/api/auth/register", gin.H{"email": "learner@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", errorCode(t, rec))
}

func TestRegister_PasswordTooLong(t *testing.T) {
	srv := newTestServer(t, testConfig())
	anon := &client{t: t, srv: srv}

	rec := anon.do(http.MethodPost, "/api/auth/register", gin.H{"email": "long@example.com", "password": strings.Repeat("a", 80)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))
	assert.Contains(t, rec.Body.String(), "at most 72 bytes")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, testConfig())

	anon := &client{t: t, srv: srv}
	rec := anon.do(http.MethodGet, "/api/purchases/my-purchases", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "unauthorized", body.Error.Code)
	assert.NotEmpty(t, body.RequestID)

	forged := &client{t: t, srv: srv, token: "not-a-jwt"}
	assert.Equal(t, http.StatusUnauthorized, forged.do(http.MethodPost, "/api/progress/submit", gin.H{"lessonId": 10}).Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Purchases & access
// ─────────────────────────────────────────────────────────────────────────────

func TestPurchaseEndpoints(t *testing.T) {
	srv := newTestServer(t, testConfig())
	user := register(t, srv, "buyer@example.com")

	rec := user.do(http.MethodGet, "/api/purchases/access/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]bool](t, rec)["hasAccess"])

	rec = user.do(http.MethodPost, "/api/purchases/courses/1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bought := decode[query.PurchaseDTO](t, rec)
	assert.Equal(t, int64(1), bought.CourseID)
	assert.Equal(t, int64(2990), bought.PurchasePrice)
	assert.Equal(t, "COMPLETED", bought.PaymentStatus)

	rec = user.do(http.MethodPost, "/api/purchases/courses/1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_purchased", errorCode(t, rec))
	assert.Contains(t, rec.Body.String(), "already purchased")

	rec = user.do(http.MethodPost, "/api/purchases/courses/2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "free_course", errorCode(t, rec))
	assert.Contains(t, rec.Body.String(), "cannot purchase free course")

	rec = user.do(http.MethodPost, "/api/purchases/courses/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = user.do(http.MethodPost, "/api/purchases/courses/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))

	rec = user.do(http.MethodGet, "/api/purchases/check/1", nil)
	assert.Equal(t, true, decode[map[string]bool](t, rec)["purchased"])

	rec = user.do(http.MethodGet, "/api/purchases/access/1", nil)
	assert.Equal(t, true, decode[map[string]bool](t, rec)["hasAccess"])

	rec = user.do(http.MethodGet, "/api/purchases/my-purchases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]query.PurchaseDTO](t, rec), 1)
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

func TestProgressAndSubmit(t *testing.T) {
	srv := newTestServer(t, testConfig())
	user := register(t, srv, "watcher@example.com")

	rec := user.do(http.MethodPost, "/api/progress/update", gin.H{"lessonId": 10, "position": 10, "duration": 600})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = user.do(http.MethodPost, "/api/progress/submit", gin.H{"lessonId": 20})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "lesson_not_completed", errorCode(t, rec))

	rec = user.do(http.MethodPost, "/api/progress/update", gin.H{"lessonId": 20, "position": 570, "duration": 600})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	upd := decode[updateProgressResponse](t, rec)
	assert.Equal(t, 95, upd.ProgressPercentage)
	assert.True(t, upd.IsCompleted)
	assert.True(t, upd.JustCompleted)
	assert.Equal(t, "CAN_SUBMIT", upd.State)

	rec = user.do(http.MethodPost, "/api/progress/submit", gin.H{"lessonId": 20})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub := decode[submitLessonResponse](t, rec)
	assert.True(t, sub.IsSubmitted)
	assert.Equal(t, int64(200), sub.ExperienceGained)
	assert.True(t, sub.LeveledUp)
	assert.Equal(t, 2, sub.User.Level)

	rec = user.do(http.MethodPost, "/api/progress/submit", gin.H{"lessonId": 20})
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[submitLessonResponse](t, rec)
	assert.Equal(t, int64(0), again.ExperienceGained)
	assert.Equal(t, int64(200), again.User.Experience)

	rec = user.do(http.MethodGet, "/api/progress/lessons/20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[query.ProgressDTO](t, rec)
	assert.Equal(t, "SUBMITTED", view.State)
	assert.Equal(t, int64(200), view.ExperienceGained)
}

func TestProgressValidation(t *testing.T) {
	srv := newTestServer(t, testConfig())
	user := register(t, srv, "validator@example.com")

	cases := []struct {
		name string
		body any
	}{
		{"missing position", gin.H{"lessonId": 20, "duration": 600}},
		{"negative position", gin.H{"lessonId": 20, "position": -5, "duration": 600}},
		{"zero lesson", gin.H{"lessonId": 0, "position": 5, "duration": 600}},
		{"wrong type", gin.H{"lessonId": "twenty", "position": 5, "duration": 600}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := user.do(http.MethodPost, "/api/progress/update", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation_error", errorCode(t, rec))
		})
	}

	rec := user.do(http.MethodPost, "/api/progress/update", gin.H{"lessonId": 404, "position": 5, "duration": 600})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgress_FutureReportedAtIsClamped(t *testing.T) {
	srv := newTestServer(t, testConfig())
	user := register(t, srv, "skewed@example.com")

	ahead := time.Now().AddDate(1, 0, 0).Format(time.RFC3339)
	rec := user.do(http.MethodPost, "/api/progress/update", gin.H{"lessonId": 20, "position": 30, "duration": 600, "reportedAt": ahead})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = user.do(http.MethodPost, "/api/progress/update", gin.H{"lessonId": 20, "position": 300, "duration": 600})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	upd := decode[updateProgressResponse](t, rec)
	assert.Equal(t, 300.0, upd.LastPosition)
	assert.Equal(t, 50, upd.ProgressPercentage)
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

func TestCatalogBrowsing(t *testing.T) {
	srv := newTestServer(t, testConfig())
	anon := &client{t: t, srv: srv}

	rec := anon.do(http.MethodGet, "/api/courses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	courses := decode[[]query.CourseDTO](t, rec)
	require.Len(t, courses, 2)
	assert.False(t, courses[0].HasAccess)
	assert.True(t, courses[1].HasAccess)

	rec = anon.do(http.MethodGet, "/api/courses/lessons/10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[query.LessonDTO](t, rec).VideoURL)

	user := register(t, srv, "browser@example.com")
	require.Equal(t, http.StatusCreated, user.do(http.MethodPost, "/api/purchases/courses/1", nil).Code)

	rec = user.do(http.MethodGet, "/api/courses/1/lessons", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lessons := decode[[]query.LessonDTO](t, rec)
	require.Len(t, lessons, 1)
	assert.Equal(t, "https://video.example.com/10", lessons[0].VideoURL)
	assert.Equal(t, "NOT_STARTED", lessons[0].Progress.State)

	rec = user.do(http.MethodGet, "/api/courses/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[query.CourseDTO](t, rec).HasAccess)

	assert.Equal(t, http.StatusNotFound, user.do(http.MethodGet, "/api/courses/42", nil).Code)
	assert.Equal(t, http.StatusNotFound, anon.do(http.MethodGet, "/api/nowhere", nil).Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 2
	srv := newTestServer(t, cfg)
	anon := &client{t: t, srv: srv}

	assert.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/api/courses", nil).Code)
	assert.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/api/courses", nil).Code)

	rec := anon.do(http.MethodGet, "/api/courses", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", errorCode(t, rec))

	// Probes are never limited.
	assert.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/live", nil).Code)
}

func TestMemoryRateLimiter_WindowSlides(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := newMemoryRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	ok, _, _ := rl.Allow(context.Background(), "ip")
	assert.True(t, ok)

	ok, retry, _ := rl.Allow(context.Background(), "ip")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _, _ = rl.Allow(context.Background(), "other")
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	ok, _, _ = rl.Allow(context.Background(), "ip")
	assert.True(t, ok)
}

func TestRespondError_Mapping(t *testing.T) {
	srv := &Server{logger: logger.Nop()}

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{shared.Invalid("x", "y", shared.ErrNegativeValue, "bad"), http.StatusBadRequest, "validation_error"},
		{shared.ErrLessonNotCompleted, http.StatusBadRequest, "lesson_not_completed"},
		{shared.ErrCannotPurchaseFree, http.StatusBadRequest, "free_course"},
		{shared.ErrCourseNotFound, http.StatusNotFound, "not_found"},
		{shared.ErrCourseAlreadyPurchased, http.StatusConflict, "already_purchased"},
		{shared.ErrEmailTaken, http.StatusConflict, "already_exists"},
		{shared.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
		{shared.ErrCourseNotOwned, http.StatusForbidden, "forbidden"},
		{shared.Storage("progress", "Record", errors.New("database is locked"), true), http.StatusServiceUnavailable, "storage_error"},
		{shared.Storage("progress", "Record", errors.New("disk I/O"), false), http.StatusInternalServerError, "storage_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

		srv.respondError(c, tc.err)

		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		body := decode[ErrorResponse](t, rec)
		assert.Equal(t, tc.code, body.Error.Code, tc.err.Error())
		if tc.status >= 500 {
			assert.Equal(t, http.StatusText(tc.status), body.Error.Message)
		}
	}
}
