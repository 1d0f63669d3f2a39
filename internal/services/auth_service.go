package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cicalumni/alumni-api/internal/auth"
	"github.com/cicalumni/alumni-api/internal/models"
	pkgauth "github.com/cicalumni/alumni-api/pkg/auth"
	pkglogger "github.com/cicalumni/alumni-api/pkg/logger"
)

const passwordPolicyMessage = "Password must be at least 8 characters and contain uppercase, lowercase, number, and special character"

// AccountRepository is the credential store used by the auth flows.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.Account, error)
	GetByResetToken(ctx context.Context, token string) (*models.Account, error)
	FindIdentityConflict(ctx context.Context, email, phone, username string) (*models.Account, error)
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	Update(ctx context.Context, a *models.Account) (*models.Account, error)
	RotateRefreshToken(ctx context.Context, id, expected, next string) error
}

// TokenIssuer issues and verifies signed session tokens.
type TokenIssuer interface {
	IssuePair(accountID string) (*models.TokenPair, error)
	ValidateRefreshToken(token string) (string, error)
}

// AuthConfig holds the flow settings of AuthService.
type AuthConfig struct {
	OpaqueTokenTTL   time.Duration
	AllowAdminSignup bool

	// VerifyURL is the public address of the email verification endpoint.
	VerifyURL string
	// VerifiedRedirectURL is where a consumed verification link redirects.
	VerifiedRedirectURL string
	// AllowedRedirectOrigins restricts password reset redirect targets.
	// Empty allows any http(s) URL.
	AllowedRedirectOrigins []string
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        AccountRepository
	tokens      TokenIssuer
	hasher      *pkgauth.PasswordHasher
	mailer      Mailer
	delay       *auth.FailureDelay
	cfg         AuthConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger

	now      func() time.Time
	newToken func() (string, error)
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo AccountRepository,
	tokens TokenIssuer,
	hasher *pkgauth.PasswordHasher,
	mailer Mailer,
	delay *auth.FailureDelay,
	cfg AuthConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	if cfg.OpaqueTokenTTL <= 0 {
		cfg.OpaqueTokenTTL = time.Hour
	}

	return &AuthService{
		repo:        repo,
		tokens:      tokens,
		hasher:      hasher,
		mailer:      mailer,
		delay:       delay,
		cfg:         cfg,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
		newToken:    pkgauth.GenerateOpaqueToken,
	}
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Username string
	Fullname string
	Email    string
	Password string
	Phone    string
	Location string
	Admin    bool
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User         *AccountResponse `json:"user"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
}

// VerifiedRedirectURL is the confirmation page shown after email verification.
func (s *AuthService) VerifiedRedirectURL() string {
	return s.cfg.VerifiedRedirectURL
}

// Register creates an unverified account and emails a verification link.
// A mail failure returns ErrMailDelivery; the account is already persisted.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AccountResponse, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Fullname = strings.TrimSpace(in.Fullname)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)

	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	if err := s.checkIdentityConflict(ctx, in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, err := s.newToken()
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account := &models.Account{
		Username:     in.Username,
		Fullname:     in.Fullname,
		Email:        in.Email,
		Location:     strings.TrimSpace(in.Location),
		PasswordHash: hash,
		IsActive:     true,
		IsAdmin:      in.Admin && s.cfg.AllowAdminSignup,
	}
	if in.Phone != "" {
		account.Phone = &in.Phone
	}
	account.SetVerificationToken(token, s.now().Add(s.cfg.OpaqueTokenTTL))

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account registered", slog.String("user_id", created.ID))
	s.auditLogger.Success(ctx, "register", created.ID)

	if err := s.sendVerification(ctx, created, token); err != nil {
		return nil, models.NewError(models.ErrMailDelivery, "Account created but the verification email could not be sent")
	}

	return NewAccountResponse(created), nil
}

func validateRegistration(in RegisterInput) error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"username", in.Username},
		{"fullname", in.Fullname},
		{"email", in.Email},
		{"password", in.Password},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return models.NewError(models.ErrValidation, "Missing required fields: "+strings.Join(missing, ", "))
	}

	if !pkgauth.ValidFullname(in.Fullname) {
		return models.NewError(models.ErrValidation, "Please provide your full name (first and last name)")
	}
	if !pkgauth.ValidEmail(in.Email) {
		return models.NewError(models.ErrValidation, "Invalid email address")
	}
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return models.NewError(models.ErrValidation, passwordPolicyMessage)
	}
	return nil
}

// checkIdentityConflict reports the first of email, phone or username already
// taken by another account.
func (s *AuthService) checkIdentityConflict(ctx context.Context, in RegisterInput) error {
	existing, err := s.repo.FindIdentityConflict(ctx, in.Email, in.Phone, in.Username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to check identity conflict", slog.Any("error", err))
		return models.ErrInternalServer
	}

	switch {
	case strings.EqualFold(existing.Email, in.Email):
		return models.NewError(models.ErrConflict, "Email already exists")
	case in.Phone != "" && existing.Phone != nil && *existing.Phone == in.Phone:
		return models.NewError(models.ErrConflict, "Phone number already exists")
	default:
		return models.NewError(models.ErrConflict, "Username already exists")
	}
}

// Login checks credentials and starts a new session, replacing any previous
// refresh token.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*LoginResult, error) {
	start := time.Now()
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" || password == "" {
		return nil, models.NewError(models.ErrValidation, "Email and password are required")
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: unknown email")
			s.auditLogger.Log(ctx, pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ipAddress,
				FailureReason: "unknown_email",
			})
			s.delay.WaitFrom(start)
			return nil, models.NewError(models.ErrNotFound, "User not found")
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.logger.Info("login failed: invalid credentials", slog.String("user_id", account.ID))
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     "login_failed",
			AccountID:     account.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
		})
		s.delay.WaitFrom(start)
		return nil, models.NewError(models.ErrUnauthorized, "Invalid credentials")
	}

	pair, err := s.tokens.IssuePair(account.ID)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("user_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account.RefreshToken = &pair.RefreshToken
	updated, err := s.repo.Update(ctx, account)
	if err != nil {
		s.logger.Error("failed to persist refresh token", slog.String("user_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", account.ID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: "login",
		AccountID: account.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return &LoginResult{
		User:         NewAccountResponse(updated),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// RequestEmailVerification mints a fresh verification token, replacing any
// pending one, and emails the link.
func (s *AuthService) RequestEmailVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.NewError(models.ErrBadRequest, "Email is required")
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewError(models.ErrNotFound, "User not found")
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if account.IsVerified {
		return models.NewError(models.ErrBadRequest, "Email is already verified")
	}

	token, err := s.newToken()
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	account.SetVerificationToken(token, s.now().Add(s.cfg.OpaqueTokenTTL))
	if _, err := s.repo.Update(ctx, account); err != nil {
		s.logger.Error("failed to store verification token", slog.String("user_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.sendVerification(ctx, account, token); err != nil {
		return models.NewError(models.ErrMailDelivery, "Verification email could not be sent")
	}

	s.auditLogger.Success(ctx, "verification_requested", account.ID)
	return nil
}

// VerifyEmail consumes a verification token and returns the confirmation
// page to redirect to.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", models.NewError(models.ErrBadRequest, "Verification token is required")
	}

	invalid := models.NewError(models.ErrNotFound, "Invalid or expired verification token")

	account, err := s.repo.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", invalid
		}
		s.logger.Error("failed to look up verification token", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if !account.HasValidVerificationToken(token, s.now()) {
		s.auditLogger.Failure(ctx, "email_verified", account.ID, "token_expired")
		return "", invalid
	}

	account.IsVerified = true
	account.ClearVerificationToken()
	if _, err := s.repo.Update(ctx, account); err != nil {
		s.logger.Error("failed to mark account verified", slog.String("user_id", account.ID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.logger.Info("email verified", slog.String("user_id", account.ID))
	s.auditLogger.Success(ctx, "email_verified", account.ID)

	return s.cfg.VerifiedRedirectURL, nil
}

// RefreshToken exchanges the current refresh token for a new pair. The
// presented token must be the one stored on the account; after rotation it is
// dead.
func (s *AuthService) RefreshToken(ctx context.Context, presented string) (*models.TokenPair, error) {
	if presented == "" {
		return nil, models.NewError(models.ErrBadRequest, "Refresh token is required")
	}

	invalid := models.NewError(models.ErrUnauthorized, "Invalid refresh token")

	accountID, err := s.tokens.ValidateRefreshToken(presented)
	if err != nil {
		s.auditLogger.Failure(ctx, "token_refresh", "", "invalid_token")
		return nil, invalid
	}

	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, invalid
		}
		s.logger.Error("failed to load account for refresh", slog.String("user_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !account.RefreshTokenMatches(presented) {
		s.logger.Warn("refresh token reuse detected", slog.String("user_id", account.ID))
		s.auditLogger.Failure(ctx, "token_refresh", account.ID, "token_mismatch")
		return nil, invalid
	}

	pair, err := s.tokens.IssuePair(account.ID)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("user_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.repo.RotateRefreshToken(ctx, account.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("concurrent refresh lost rotation race", slog.String("user_id", account.ID))
			s.auditLogger.Failure(ctx, "token_refresh", account.ID, "rotation_race")
			return nil, invalid
		}
		s.logger.Error("failed to rotate refresh token", slog.String("user_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.Success(ctx, "token_refresh", account.ID)
	return pair, nil
}

// ForgotPassword emails a reset link to the account identified by email or
// username. The link is redirectURL with the reset token as a query parameter.
func (s *AuthService) ForgotPassword(ctx context.Context, email, username, redirectURL string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	redirectURL = strings.TrimSpace(redirectURL)

	if (email == "" && username == "") || redirectURL == "" {
		return models.NewError(models.ErrBadRequest, "Email/Username and redirect URL are required")
	}

	if !s.redirectAllowed(redirectURL) {
		return models.NewError(models.ErrBadRequest, "Redirect URL is not allowed")
	}

	var (
		account *models.Account
		err     error
	)
	if email != "" {
		account, err = s.repo.GetByEmail(ctx, email)
	} else {
		account, err = s.repo.GetByUsername(ctx, username)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewError(models.ErrNotFound, "User not found")
		}
		s.logger.Error("failed to look up account for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := s.newToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	account.SetResetToken(token, s.now().Add(s.cfg.OpaqueTokenTTL))
	if _, err := s.repo.Update(ctx, account); err != nil {
		s.logger.Error("failed to store reset token", slog.String("user_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	link, err := withToken(redirectURL, token)
	if err != nil {
		return models.NewError(models.ErrBadRequest, "Invalid redirect URL")
	}

	msg, err := passwordResetMessage(account.Email, account.Fullname, link, s.cfg.OpaqueTokenTTL)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Error("failed to send password reset email", slog.String("user_id", account.ID), slog.Any("error", err))
		return models.NewError(models.ErrMailDelivery, "Password reset email could not be sent")
	}

	s.logger.Info("password reset requested", slog.String("user_id", account.ID))
	s.auditLogger.Success(ctx, "password_reset_requested", account.ID)
	return nil
}

// ResetPassword replaces the password of the account holding a live reset
// token and consumes the token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" || password == "" {
		return models.NewError(models.ErrBadRequest, "Token and password are required")
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return models.NewError(models.ErrValidation, passwordPolicyMessage)
	}

	invalid := models.NewError(models.ErrNotFound, "Invalid or expired reset token")

	account, err := s.repo.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return invalid
		}
		s.logger.Error("failed to look up reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !account.HasValidResetToken(token, s.now()) {
		s.auditLogger.Failure(ctx, "password_reset", account.ID, "token_expired")
		return invalid
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	account.PasswordHash = hash
	account.ClearResetToken()
	if _, err := s.repo.Update(ctx, account); err != nil {
		s.logger.Error("failed to save reset password", slog.String("user_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset", slog.String("user_id", account.ID))
	s.auditLogger.Success(ctx, "password_reset", account.ID)
	return nil
}

// ChangePassword sets a new password for an authenticated account and returns
// its email. Outstanding sessions stay valid.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, password string) (string, error) {
	if password == "" {
		return "", models.NewError(models.ErrBadRequest, "Password is required")
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return "", models.NewError(models.ErrValidation, passwordPolicyMessage)
	}

	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.NewError(models.ErrNotFound, "User not found")
		}
		s.logger.Error("failed to load account", slog.String("user_id", accountID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	account.PasswordHash = hash
	if _, err := s.repo.Update(ctx, account); err != nil {
		s.logger.Error("failed to save password", slog.String("user_id", account.ID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.String("user_id", account.ID))
	s.auditLogger.Success(ctx, "password_changed", account.ID)
	return account.Email, nil
}

// CurrentAccount returns the public view of a verified account.
func (s *AuthService) CurrentAccount(ctx context.Context, accountID string) (*AccountResponse, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrNotFound, "User not found")
		}
		s.logger.Error("failed to load account", slog.String("user_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !account.IsVerified {
		return nil, models.NewError(models.ErrUnauthorized, "User email is not verified")
	}

	return NewAccountResponse(account), nil
}

func (s *AuthService) sendVerification(ctx context.Context, account *models.Account, token string) error {
	link, err := withToken(s.cfg.VerifyURL, token)
	if err != nil {
		s.logger.Error("invalid verification URL", slog.Any("error", err))
		return err
	}

	msg, err := verificationMessage(account.Email, account.Fullname, link, s.cfg.OpaqueTokenTTL)
	if err != nil {
		s.logger.Error("failed to render verification email", slog.Any("error", err))
		return err
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send verification email",
			slog.String("user_id", account.ID),
			slog.String("email", pkglogger.SanitizedEmail(account.Email)),
			slog.Any("error", err))
		return err
	}
	return nil
}

func (s *AuthService) redirectAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if len(s.cfg.AllowedRedirectOrigins) == 0 {
		return true
	}

	origin := u.Scheme + "://" + u.Host
	for _, allowed := range s.cfg.AllowedRedirectOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// withToken returns base with token set as the "token" query parameter.
func withToken(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse link base: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
