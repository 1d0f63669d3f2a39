package handlers

import (
	"context"
	"net/http"

	"github.com/cicalumni/alumni-api/internal/auth"
	"github.com/cicalumni/alumni-api/internal/models"
	"github.com/cicalumni/alumni-api/internal/services"
	pkghttp "github.com/cicalumni/alumni-api/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AccountResponse, error)
	Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error)
	RequestEmailVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) (string, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	ForgotPassword(ctx context.Context, email, username, redirectURL string) error
	ResetPassword(ctx context.Context, token, password string) error
	ChangePassword(ctx context.Context, accountID, password string) (string, error)
	CurrentAccount(ctx context.Context, accountID string) (*services.AccountResponse, error)
	VerifiedRedirectURL() string
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs. Required fields and policies are enforced by the service so
// that every flow reports them the same way; tags here bound sizes and formats.

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username string `json:"username" validate:"max=50"`
	Fullname string `json:"fullname" validate:"max=100"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
	Phone    string `json:"phone" validate:"max=20"`
	Location string `json:"location" validate:"max=100"`
	Admin    bool   `json:"admin"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

// EmailVerificationRequest represents the request body for requesting a verification email
type EmailVerificationRequest struct {
	Email       string `json:"email" validate:"required,email"`
	RedirectURL string `json:"redirect_url" validate:"omitempty,url"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ForgotPasswordRequest represents the request body for starting a password reset
type ForgotPasswordRequest struct {
	Email       string `json:"email" validate:"omitempty,email"`
	Username    string `json:"username" validate:"max=50"`
	RedirectURL string `json:"redirectUrl" validate:"omitempty,url"`
}

// ResetPasswordRequest represents the request body for completing a password reset
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"max=128"`
	Password string `json:"password" validate:"max=72"`
}

// ChangePasswordRequest represents the request body for changing the password
type ChangePasswordRequest struct {
	Password string `json:"password" validate:"max=72"`
}

// decodeAndValidate writes a 400 and returns false when the body is unusable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := decodeJSON(w, r, req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return false
	}
	return true
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.service.Register(r.Context(), services.RegisterInput{
		Username: req.Username,
		Fullname: req.Fullname,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Location: req.Location,
		Admin:    req.Admin,
	})
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusCreated, "Account created. Check your email to verify your address.", account)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Login(r.Context(), req.Email, req.Password, ipAddress)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Login successful", result)
}

// RequestEmailVerification handles POST /auth/email/request
func (h *AuthHandler) RequestEmailVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailVerificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.RequestEmailVerification(r.Context(), req.Email); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Verification email sent", map[string]string{
		"redirectUrl": h.service.VerifiedRedirectURL(),
	})
}

// VerifyEmail handles GET /auth/email/verify?token=...
// Success redirects to the confirmation page instead of returning JSON.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := h.service.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// RefreshToken handles POST /auth/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pair, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Token refreshed", pair)
}

// ForgotPassword handles POST /auth/password/forgot
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email, req.Username, req.RedirectURL); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Password reset email sent", nil)
}

// ResetPassword handles POST /auth/password/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Password reset successful", nil)
}

// ChangePassword handles PUT /auth/change-password. Requires AccessGuard.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountIDFromContext(r.Context())
	if accountID == "" {
		pkghttp.WriteUnauthorized(w, "No token provided")
		return
	}

	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	email, err := h.service.ChangePassword(r.Context(), accountID, req.Password)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Password changed successfully", map[string]any{
		"user": map[string]string{"email": email},
	})
}

// CurrentUser handles GET /auth/user/verify. Requires AccessGuard.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountIDFromContext(r.Context())
	if accountID == "" {
		pkghttp.WriteUnauthorized(w, "No token provided")
		return
	}

	account, err := h.service.CurrentAccount(r.Context(), accountID)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "User verified", account)
}
