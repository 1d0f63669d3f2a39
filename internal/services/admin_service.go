package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cicalumni/alumni-api/internal/models"
	pkgauth "github.com/cicalumni/alumni-api/pkg/auth"
	pkglogger "github.com/cicalumni/alumni-api/pkg/logger"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Moderation actions accepted by AdminService.Apply.
const (
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
	ActionVerify     = "verify"
)

// AdminAccountRepository is the subset of the credential store needed for moderation.
type AdminAccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	Update(ctx context.Context, a *models.Account) (*models.Account, error)
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
}

// AdminService implements account moderation for administrators.
type AdminService struct {
	repo        AdminAccountRepository
	hasher      *pkgauth.PasswordHasher
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAdminService creates a new AdminService.
func NewAdminService(repo AdminAccountRepository, hasher *pkgauth.PasswordHasher, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AdminService {
	return &AdminService{
		repo:        repo,
		hasher:      hasher,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// ListAccounts returns a page of accounts, newest first.
func (s *AdminService) ListAccounts(ctx context.Context, limit, offset int) ([]*AccountResponse, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	accounts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list accounts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return newAccountResponses(accounts), nil
}

// GetAccount returns the public view of one account.
func (s *AdminService) GetAccount(ctx context.Context, id string) (*AccountResponse, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewAccountResponse(account), nil
}

// Apply runs a moderation action on the account id on behalf of actorID.
func (s *AdminService) Apply(ctx context.Context, actorID, id, action string) (*AccountResponse, error) {
	action = strings.ToLower(action)

	switch action {
	case ActionActivate, ActionDeactivate, ActionVerify:
	default:
		return nil, models.NewError(models.ErrBadRequest, "Invalid action")
	}

	if action == ActionDeactivate && actorID == id {
		return nil, models.NewError(models.ErrBadRequest, "Admins cannot deactivate their own account")
	}

	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionActivate:
		account.IsActive = true
	case ActionDeactivate:
		account.IsActive = false
	case ActionVerify:
		account.IsVerified = true
		account.ClearVerificationToken()
	}

	updated, err := s.repo.Update(ctx, account)
	if err != nil {
		s.logger.Error("failed to apply moderation action",
			slog.String("user_id", id),
			slog.String("action", action),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("moderation action applied",
		slog.String("user_id", id),
		slog.String("actor_id", actorID),
		slog.String("action", action))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: "admin_" + action,
		AccountID: id,
		ActorID:   actorID,
		Success:   true,
	})

	return NewAccountResponse(updated), nil
}

// EnsureAdmin creates or promotes the bootstrap administrator. An existing
// account keeps its password.
func (s *AdminService) EnsureAdmin(ctx context.Context, email, username, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin && existing.IsVerified && existing.IsActive {
			return nil
		}
		existing.IsAdmin = true
		existing.IsVerified = true
		existing.IsActive = true
		existing.ClearVerificationToken()
		if _, err := s.repo.Update(ctx, existing); err != nil {
			return err
		}
		s.logger.Info("bootstrap admin promoted", slog.String("user_id", existing.ID))
		return nil
	case !errors.Is(err, models.ErrNotFound):
		return err
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return models.NewError(models.ErrValidation, "ADMIN_PASSWORD: "+passwordPolicyMessage)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	created, err := s.repo.Create(ctx, &models.Account{
		Username:     username,
		Fullname:     "Site Administrator",
		Email:        email,
		PasswordHash: hash,
		IsVerified:   true,
		IsActive:     true,
		IsAdmin:      true,
	})
	if err != nil {
		return err
	}

	s.logger.Info("bootstrap admin created", slog.String("user_id", created.ID))
	s.auditLogger.Success(ctx, "admin_bootstrap", created.ID)
	return nil
}

func (s *AdminService) load(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrNotFound, "User not found")
		}
		s.logger.Error("failed to load account", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return account, nil
}
