package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/honeynil/mdd-api/internal/handler"
	"github.com/honeynil/mdd-api/internal/infrastructure/auth"
	"github.com/honeynil/mdd-api/internal/infrastructure/observability"
	"github.com/honeynil/mdd-api/internal/models"
	service "github.com/honeynil/mdd-api/internal/services"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

var jane = &models.User{ID: 7, Email: "jane@x.com", Username: "jane"}

type directory struct{}

func (directory) FindByEmailOrUsername(_ context.Context, login string) (*models.User, error) {
	if login == jane.Email || login == jane.Username {
		return jane, nil
	}
	return nil, pkgerrors.ErrUserNotFound
}

type stubAuth struct{}

func (stubAuth) Register(context.Context, service.RegisterInput) (string, error) { return "tok", nil }

func (stubAuth) Login(_ context.Context, login, _ string) (string, error) {
	if login == "panic" {
		panic("boom")
	}
	return "tok", nil
}

func (stubAuth) Me(_ context.Context, userID int64) (*models.UserProfile, error) {
	return &models.UserProfile{UserID: userID, Email: jane.Email, Username: jane.Username, Subscriptions: []models.SubscriptionView{}}, nil
}

func (stubAuth) UpdateMe(context.Context, int64, service.UpdateProfileInput) (string, error) {
	return "tok", nil
}

type stubSubjects struct{}

func (stubSubjects) List(context.Context, int64, *bool) ([]models.SubjectView, error) {
	return []models.SubjectView{}, nil
}
func (stubSubjects) Subscribe(context.Context, int64, int64) error   { return nil }
func (stubSubjects) Unsubscribe(context.Context, int64, int64) error { return nil }

type stubArticles struct{}

func (stubArticles) Feed(context.Context, int64, bool) ([]models.ArticleView, error) {
	return []models.ArticleView{}, nil
}

func (stubArticles) Create(context.Context, int64, service.CreateArticleInput) (*models.ArticleView, error) {
	return &models.ArticleView{}, nil
}

func (stubArticles) Get(_ context.Context, _ int64, id int64) (*models.ArticleView, error) {
	return &models.ArticleView{ArticleID: id, Comments: []models.CommentView{}}, nil
}

func (stubArticles) AddComment(context.Context, int64, int64, string) (*models.CommentView, error) {
	return &models.CommentView{}, nil
}

func (stubArticles) ListComments(context.Context, int64) ([]models.CommentView, error) {
	return []models.CommentView{}, nil
}

func newTestRouter(t *testing.T, mutate func(*RouterConfig)) (http.Handler, *auth.JWTService) {
	t.Helper()
	tokens, err := auth.NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	cfg := RouterConfig{
		Handler:             handler.NewHandler(stubAuth{}, stubSubjects{}, stubArticles{}),
		Tokens:              tokens,
		Users:               directory{},
		Metrics:             http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		AllowedOrigin:       "http://localhost:4200",
		AuthRateLimitPerMin: 100,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return SetupRouter(cfg), tokens
}

func send(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_ProtectedRoutesRequirePrincipal(t *testing.T) {
	h, tokens := newTestRouter(t, nil)

	t.Run("Anonymous", func(t *testing.T) {
		rec := send(h, http.MethodGet, "/api/auth/me", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body handler.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, http.StatusUnauthorized, body.Status)
		assert.NotEmpty(t, body.Message)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		rec := send(h, http.MethodGet, "/api/articles", "not-a-token", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("TokenForUnknownUser", func(t *testing.T) {
		token, err := tokens.Issue("ghost@x.com", 99)
		require.NoError(t, err)
		rec := send(h, http.MethodGet, "/api/subjects", token, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("ValidToken", func(t *testing.T) {
		token, err := tokens.Issue(jane.Email, jane.ID)
		require.NoError(t, err)
		rec := send(h, http.MethodGet, "/api/auth/me", token, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"userId":7`)
	})
}

func TestRouter_PublicRoutes(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := send(h, http.MethodPost, "/api/auth/login", "", `{"usernameOrEmail":"jane","password":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = send(h, http.MethodPost, "/api/auth/register", "garbage", `{"email":"a@b.c","username":"abc","password":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "an invalid token must not block public routes")

	rec = send(h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = send(h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := send(h, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	rec = send(h, http.MethodGet, "/api/auth/login", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_Healthz_Unhealthy(t *testing.T) {
	h, _ := newTestRouter(t, func(cfg *RouterConfig) {
		cfg.Health = func(context.Context) error { return errors.New("db down") }
	})
	rec := send(h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_RateLimitsAuthRoutes(t *testing.T) {
	h, tokens := newTestRouter(t, func(cfg *RouterConfig) { cfg.AuthRateLimitPerMin = 2 })

	for i := 0; i < 2; i++ {
		rec := send(h, http.MethodPost, "/api/auth/login", "", `{"usernameOrEmail":"jane","password":"x"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := send(h, http.MethodPost, "/api/auth/login", "", `{"usernameOrEmail":"jane","password":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	// Protected routes are not throttled by the auth limiter.
	token, err := tokens.Issue(jane.Email, jane.ID)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, send(h, http.MethodGet, "/api/subjects", token, "").Code)
	}
}

func TestRouter_RequestID(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := send(h, http.MethodGet, "/healthz", "", "")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/articles", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:4200", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodOptions, "/api/articles", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RecoversPanics(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := send(h, http.MethodPost, "/api/auth/login", "", `{"usernameOrEmail":"panic","password":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_MetricsUseRouteTemplate(t *testing.T) {
	h, tokens := newTestRouter(t, nil)
	token, err := tokens.Issue(jane.Email, jane.ID)
	require.NoError(t, err)

	counter := observability.RequestCounter.WithLabelValues(http.MethodGet, "/api/articles/{id}", "200")
	before := testutil.ToFloat64(counter)

	send(h, http.MethodGet, "/api/articles/5", token, "")
	send(h, http.MethodGet, "/api/articles/6", token, "")

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestIPRateLimiter_SweepsIdleClients(t *testing.T) {
	l := NewIPRateLimiter(60)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
	assert.Equal(t, 2, l.clientCount())

	now = now.Add(11 * time.Minute)
	assert.True(t, l.allow("10.0.0.3"))
	assert.Equal(t, 1, l.clientCount())
}
