//go:build integration

package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cicalumni/alumni-api/internal/auth"
	"github.com/cicalumni/alumni-api/internal/database"
	"github.com/cicalumni/alumni-api/internal/handlers"
	"github.com/cicalumni/alumni-api/internal/middleware"
	"github.com/cicalumni/alumni-api/internal/repositories"
	"github.com/cicalumni/alumni-api/internal/services"
	pkgauth "github.com/cicalumni/alumni-api/pkg/auth"
	pkglogger "github.com/cicalumni/alumni-api/pkg/logger"
)

// captureMailer records outbound mail so tests can follow the links.
type captureMailer struct {
	mu   sync.Mutex
	sent []services.Message
}

func (m *captureMailer) Send(ctx context.Context, msg services.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

var tokenParam = regexp.MustCompile(`token=([0-9a-f]+)`)

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	match := tokenParam.FindStringSubmatch(m.sent[len(m.sent)-1].TextBody)
	require.Len(t, match, 2, "mail has no token link")
	return match[1]
}

type testServer struct {
	server *httptest.Server
	mailer *captureMailer
	admin  *services.AdminService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("alumni"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, database.Migrate(ctx, dsn, logger))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := repositories.NewAccountRepository(database.NewFromPool(pool, logger))
	tm := auth.NewTokenManager("integration-access-secret-0123", "integration-refresh-secret-012", 15*time.Minute, time.Hour)
	hasher := pkgauth.NewPasswordHasher(4)
	audit := pkglogger.NewAuditLogger(logger)
	mailer := &captureMailer{}

	authService := services.NewAuthService(repo, tm, hasher, mailer, nil, services.AuthConfig{
		OpaqueTokenTTL:         time.Hour,
		VerifyURL:              "http://api.test/api/auth/email/verify",
		VerifiedRedirectURL:    "http://app.test/email/verified",
		AllowedRedirectOrigins: []string{"http://app.test"},
	}, logger, audit)
	adminService := services.NewAdminService(repo, hasher, logger, audit)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Route("/api", func(api chi.Router) {
		RegisterRoutes(api, Dependencies{
			AuthHandler:  handlers.NewAuthHandler(authService, nil),
			AdminHandler: handlers.NewAdminHandler(adminService),
			Tokens:       tm,
			Accounts:     repo,
			RateLimit:    middleware.RateLimitConfig{RequestsPerMinute: 1000},
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testServer{server: server, mailer: mailer, admin: adminService}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// request sends body as JSON and decodes the response envelope.
func (ts *testServer) request(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func TestAccountLifecycle_Integration(t *testing.T) {
	ts := newTestServer(t)
	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	status, env := ts.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "ada",
		"fullname": "Ada Obi",
		"email":    "ada@example.com",
		"password": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = ts.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "ada2",
		"fullname": "Ada Obi",
		"email":    "ADA@example.com",
		"password": "Str0ng!Pass",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)

	// Unverified accounts cannot fetch their profile.
	status, env = ts.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var first tokens
	decodeData(t, env, &first)
	status, _ = ts.request(t, http.MethodGet, "/api/auth/user/verify", first.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	t.Run("verification link redirects once", func(t *testing.T) {
		link := ts.server.URL + "/api/auth/email/verify?token=" + ts.mailer.lastToken(t)

		resp, err := noRedirect.Get(link)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "http://app.test/email/verified", resp.Header.Get("Location"))

		resp, err = noRedirect.Get(link)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	status, env = ts.request(t, http.MethodGet, "/api/auth/user/verify", first.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status, env.Message)

	t.Run("refresh rotates and old token is rejected", func(t *testing.T) {
		status, env := ts.request(t, http.MethodPost, "/api/auth/refresh-token", "", map[string]string{
			"refreshToken": first.RefreshToken,
		})
		require.Equal(t, http.StatusOK, status, env.Message)
		var next tokens
		decodeData(t, env, &next)
		assert.NotEqual(t, first.RefreshToken, next.RefreshToken)

		status, _ = ts.request(t, http.MethodPost, "/api/auth/refresh-token", "", map[string]string{
			"refreshToken": first.RefreshToken,
		})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("password reset", func(t *testing.T) {
		status, env := ts.request(t, http.MethodPost, "/api/auth/password/forgot", "", map[string]string{
			"email": "ada@example.com", "redirectUrl": "http://app.test/reset",
		})
		require.Equal(t, http.StatusOK, status, env.Message)

		status, env = ts.request(t, http.MethodPost, "/api/auth/password/reset", "", map[string]string{
			"token": ts.mailer.lastToken(t), "password": "N3w!Passw0rd",
		})
		require.Equal(t, http.StatusOK, status, env.Message)

		status, _ = ts.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "ada@example.com", "password": "Str0ng!Pass",
		})
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = ts.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "ada@example.com", "password": "N3w!Passw0rd",
		})
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("admin moderation", func(t *testing.T) {
		status, _ := ts.request(t, http.MethodGet, "/api/admin/users", first.AccessToken, nil)
		assert.Equal(t, http.StatusForbidden, status)

		require.NoError(t, ts.admin.EnsureAdmin(context.Background(), "root@example.com", "root", "R00t!Passw0rd"))
		status, env := ts.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "root@example.com", "password": "R00t!Passw0rd",
		})
		require.Equal(t, http.StatusOK, status, env.Message)
		var adminTokens tokens
		decodeData(t, env, &adminTokens)

		status, env = ts.request(t, http.MethodGet, "/api/admin/users", adminTokens.AccessToken, nil)
		require.Equal(t, http.StatusOK, status, env.Message)
		var page struct {
			Users []services.AccountResponse `json:"users"`
		}
		decodeData(t, env, &page)
		require.Len(t, page.Users, 2)

		var adaID string
		for _, u := range page.Users {
			if u.Username == "ada" {
				adaID = u.ID
			}
		}
		require.NotEmpty(t, adaID)

		status, env = ts.request(t, http.MethodPost, "/api/admin/user/"+adaID+"/deactivate", adminTokens.AccessToken, nil)
		require.Equal(t, http.StatusOK, status, env.Message)

		status, env = ts.request(t, http.MethodGet, "/api/auth/user/verify", first.AccessToken, nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "This account is not active, please contact administrators", env.Message)
	})
}
