package database

import (
	"errors"

	"github.com/cicalumni/alumni-api/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError translates driver errors into model sentinels.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.NewError(models.ErrConflict, conflictMessage(pgErr.ConstraintName))
		case "23502", "23514": // not_null_violation, check_violation
			return models.ErrBadRequest
		}
	}

	return err
}

func conflictMessage(constraint string) string {
	switch constraint {
	case "accounts_email_key":
		return "Email already exists"
	case "accounts_phone_key":
		return "Phone number already exists"
	case "accounts_username_key":
		return "Username already exists"
	}
	return "Account already exists"
}
