package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cicalumni/alumni-api/internal/models"
	pkghttp "github.com/cicalumni/alumni-api/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	accountIDContextKey contextKey = "account_id"
	accountContextKey   contextKey = "account"
)

// AccountFetcher loads an account by id.
type AccountFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// AccessTokenValidator resolves an access token to an account id.
type AccessTokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

// AccessGuard validates the bearer access token, loads the account and rejects
// inactive accounts. The account id and account are attached to the context.
func AccessGuard(tv AccessTokenValidator, accounts AccountFetcher) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "No token provided")
				return
			}

			accountID, err := tv.ValidateAccessToken(token)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid token")
				return
			}

			account, err := accounts.GetByID(r.Context(), accountID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteForbidden(w, "Unauthorized Access")
					return
				}
				slog.Error("access guard account lookup failed", slog.String("user_id", accountID), slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if !account.IsActive {
				pkghttp.WriteForbidden(w, "This account is not active, please contact administrators")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

// AdminGuard must run after AccessGuard. It re-resolves the account and
// requires a verified admin.
func AdminGuard(accounts AccountFetcher) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID := AccountIDFromContext(r.Context())
			if accountID == "" {
				pkghttp.WriteUnauthorized(w, "No token provided")
				return
			}

			account, err := accounts.GetByID(r.Context(), accountID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteForbidden(w, "User not found")
					return
				}
				slog.Error("admin guard account lookup failed", slog.String("user_id", accountID), slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if !account.IsVerified {
				pkghttp.WriteUnauthorized(w, "User email is not verified")
				return
			}

			if !account.IsAdmin {
				pkghttp.WriteForbidden(w, "User is not an admin")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountContextKey, account)))
		})
	}
}

// AccountIDFromContext returns the authenticated account id, or "".
func AccountIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(accountIDContextKey).(string)
	return id
}

// AccountFromContext returns the account loaded by the guards, or nil.
func AccountFromContext(ctx context.Context) *models.Account {
	account, _ := ctx.Value(accountContextKey).(*models.Account)
	return account
}

// WithAccount attaches an authenticated account to ctx.
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	ctx = context.WithValue(ctx, accountIDContextKey, account.ID)
	return context.WithValue(ctx, accountContextKey, account)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}

	return strings.TrimSpace(parts[1]), true
}
