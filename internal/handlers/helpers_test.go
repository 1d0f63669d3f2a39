package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicalumni/alumni-api/internal/auth"
	"github.com/cicalumni/alumni-api/internal/models"
	"github.com/cicalumni/alumni-api/internal/services"
	pkghttp "github.com/cicalumni/alumni-api/pkg/http"
)

// newTestRequest creates an HTTP request with JSON body for testing
func newTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withAccount marks req as authenticated by the access guard.
func withAccount(req *http.Request, id string) *http.Request {
	return req.WithContext(auth.WithAccount(req.Context(), &models.Account{ID: id, IsActive: true}))
}

// withURLParams attaches chi route params to req.
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func assertSuccess(t *testing.T, w *httptest.ResponseRecorder, status int, data interface{}) envelope {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	if message != "" {
		assert.Equal(t, message, resp.Message)
	}
}

type mockAuthService struct {
	RegisterFunc                 func(ctx context.Context, in services.RegisterInput) (*services.AccountResponse, error)
	LoginFunc                    func(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error)
	RequestEmailVerificationFunc func(ctx context.Context, email string) error
	VerifyEmailFunc              func(ctx context.Context, token string) (string, error)
	RefreshTokenFunc             func(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	ForgotPasswordFunc           func(ctx context.Context, email, username, redirectURL string) error
	ResetPasswordFunc            func(ctx context.Context, token, password string) error
	ChangePasswordFunc           func(ctx context.Context, accountID, password string) (string, error)
	CurrentAccountFunc           func(ctx context.Context, accountID string) (*services.AccountResponse, error)
}

func (m *mockAuthService) Register(ctx context.Context, in services.RegisterInput) (*services.AccountResponse, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, in)
	}
	return nil, models.ErrInternalServer
}

func (m *mockAuthService) Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ipAddress)
	}
	return nil, models.ErrInternalServer
}

func (m *mockAuthService) RequestEmailVerification(ctx context.Context, email string) error {
	if m.RequestEmailVerificationFunc != nil {
		return m.RequestEmailVerificationFunc(ctx, email)
	}
	return nil
}

func (m *mockAuthService) VerifyEmail(ctx context.Context, token string) (string, error) {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, token)
	}
	return "", models.ErrNotFound
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, refreshToken)
	}
	return nil, models.ErrUnauthorized
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email, username, redirectURL string) error {
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email, username, redirectURL)
	}
	return nil
}

func (m *mockAuthService) ResetPassword(ctx context.Context, token, password string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, password)
	}
	return nil
}

func (m *mockAuthService) ChangePassword(ctx context.Context, accountID, password string) (string, error) {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, accountID, password)
	}
	return "", models.ErrInternalServer
}

func (m *mockAuthService) CurrentAccount(ctx context.Context, accountID string) (*services.AccountResponse, error) {
	if m.CurrentAccountFunc != nil {
		return m.CurrentAccountFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *mockAuthService) VerifiedRedirectURL() string {
	return "https://www.example.org/email/verified"
}

type mockAdminService struct {
	ListAccountsFunc func(ctx context.Context, limit, offset int) ([]*services.AccountResponse, error)
	GetAccountFunc   func(ctx context.Context, id string) (*services.AccountResponse, error)
	ApplyFunc        func(ctx context.Context, actorID, id, action string) (*services.AccountResponse, error)
}

func (m *mockAdminService) ListAccounts(ctx context.Context, limit, offset int) ([]*services.AccountResponse, error) {
	if m.ListAccountsFunc != nil {
		return m.ListAccountsFunc(ctx, limit, offset)
	}
	return []*services.AccountResponse{}, nil
}

func (m *mockAdminService) GetAccount(ctx context.Context, id string) (*services.AccountResponse, error) {
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *mockAdminService) Apply(ctx context.Context, actorID, id, action string) (*services.AccountResponse, error) {
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, actorID, id, action)
	}
	return nil, models.ErrNotFound
}
