package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cicalumni/alumni-api/internal/auth"
	"github.com/cicalumni/alumni-api/internal/services"
	pkghttp "github.com/cicalumni/alumni-api/pkg/http"
)

// AdminServiceInterface defines the moderation service contract.
type AdminServiceInterface interface {
	ListAccounts(ctx context.Context, limit, offset int) ([]*services.AccountResponse, error)
	GetAccount(ctx context.Context, id string) (*services.AccountResponse, error)
	Apply(ctx context.Context, actorID, id, action string) (*services.AccountResponse, error)
}

// AdminHandler handles admin moderation HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// ListUsers handles GET /admin/users
// Accepts optional query params ?limit=N&offset=M.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", services.DefaultListLimit)
	offset := queryInt(r, "offset", 0)

	accounts, err := h.service.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "", map[string]any{
		"users":  accounts,
		"limit":  limit,
		"offset": offset,
	})
}

// GetUser handles GET /admin/user/{userId}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "", account)
}

// ApplyAction handles POST /admin/user/{userId}/{action}
func (h *AdminHandler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, chi.URLParam(r, "action"))
}

// VerifyUser handles POST /admin/user/{userId}
func (h *AdminHandler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, services.ActionVerify)
}

func (h *AdminHandler) apply(w http.ResponseWriter, r *http.Request, action string) {
	actorID := auth.AccountIDFromContext(r.Context())

	account, err := h.service.Apply(r.Context(), actorID, chi.URLParam(r, "userId"), action)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "User updated", account)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
