package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cicalumni/alumni-api/internal/database"
	"github.com/cicalumni/alumni-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, username, fullname, email, phone, location, password_hash,
	is_verified, is_active, is_admin,
	verification_token, verification_token_expires, reset_token, reset_token_expires,
	refresh_token, created_at, updated_at`

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account

	err := scanner.Scan(
		&a.ID, &a.Username, &a.Fullname, &a.Email, &a.Phone, &a.Location, &a.PasswordHash,
		&a.IsVerified, &a.IsActive, &a.IsAdmin,
		&a.VerificationToken, &a.VerificationTokenExpires, &a.ResetToken, &a.ResetTokenExpires,
		&a.RefreshToken, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &a, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}

func (r *AccountRepository) getOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where
	return scanAccountRow(r.pool.QueryRow(ctx, query, arg))
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	return r.getOne(ctx, "id = $1", id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, "email = $1", strings.ToLower(email))
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getOne(ctx, "username = $1", username)
}

// GetByVerificationToken looks up the account holding token. Expiry is left to
// the caller.
func (r *AccountRepository) GetByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, models.ErrNotFound
	}
	return r.getOne(ctx, "verification_token = $1", token)
}

func (r *AccountRepository) GetByResetToken(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, models.ErrNotFound
	}
	return r.getOne(ctx, "reset_token = $1", token)
}

// FindIdentityConflict returns any account sharing the email, phone or username.
// An empty phone is not matched.
func (r *AccountRepository) FindIdentityConflict(ctx context.Context, email, phone, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE email = $1 OR username = $2 OR ($3 <> '' AND phone = $3)
		ORDER BY created_at LIMIT 1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, strings.ToLower(email), username, phone))
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}

	return scanAccountRows(rows)
}

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	a.ID = uuid.New().String()
	a.Email = strings.ToLower(a.Email)

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO accounts (id, username, fullname, email, phone, location, password_hash,
			is_verified, is_active, is_admin,
			verification_token, verification_token_expires, reset_token, reset_token_expires,
			refresh_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		a.ID, a.Username, a.Fullname, a.Email, a.Phone, a.Location, a.PasswordHash,
		a.IsVerified, a.IsActive, a.IsAdmin,
		a.VerificationToken, a.VerificationTokenExpires, a.ResetToken, a.ResetTokenExpires,
		a.RefreshToken, a.CreatedAt, a.UpdatedAt,
	))
}

// Update saves every mutable field of a. Last write wins.
func (r *AccountRepository) Update(ctx context.Context, a *models.Account) (*models.Account, error) {
	a.UpdatedAt = time.Now()

	query := `
		UPDATE accounts SET
			fullname = $1, phone = $2, location = $3, password_hash = $4,
			is_verified = $5, is_active = $6, is_admin = $7,
			verification_token = $8, verification_token_expires = $9,
			reset_token = $10, reset_token_expires = $11,
			refresh_token = $12, updated_at = $13
		WHERE id = $14
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		a.Fullname, a.Phone, a.Location, a.PasswordHash,
		a.IsVerified, a.IsActive, a.IsAdmin,
		a.VerificationToken, a.VerificationTokenExpires,
		a.ResetToken, a.ResetTokenExpires,
		a.RefreshToken, a.UpdatedAt, a.ID,
	))
}

// RotateRefreshToken replaces the stored refresh token with next only if it
// still equals expected. ErrNotFound means another request rotated first.
func (r *AccountRepository) RotateRefreshToken(ctx context.Context, id, expected, next string) error {
	query := `UPDATE accounts SET refresh_token = $1, updated_at = $2 WHERE id = $3 AND refresh_token = $4`

	result, err := r.pool.Exec(ctx, query, next, time.Now(), id, expected)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearExpiredTokens nulls verification and reset tokens whose expiry is at or
// before now.
func (r *AccountRepository) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE accounts SET
			verification_token = CASE WHEN verification_token_expires <= $1 THEN NULL ELSE verification_token END,
			verification_token_expires = CASE WHEN verification_token_expires <= $1 THEN NULL ELSE verification_token_expires END,
			reset_token = CASE WHEN reset_token_expires <= $1 THEN NULL ELSE reset_token END,
			reset_token_expires = CASE WHEN reset_token_expires <= $1 THEN NULL ELSE reset_token_expires END
		WHERE verification_token_expires <= $1 OR reset_token_expires <= $1`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
