//go:build integration

package repositories

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cicalumni/alumni-api/internal/database"
	"github.com/cicalumni/alumni-api/internal/models"
)

func setupAccountRepo(t *testing.T) *AccountRepository {
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

	return NewAccountRepository(database.NewFromPool(pool, logger))
}

func newTestAccount(username, email string) *models.Account {
	return &models.Account{
		Username:     username,
		Fullname:     "Ada Obi",
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuuJ0z9Qw9gK1u6Vb3Zl8p2zK1o5x0XyZa",
		IsActive:     true,
	}
}

func TestAccountRepository_Integration(t *testing.T) {
	repo := setupAccountRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestAccount("ada", "Ada@Example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.False(t, created.IsVerified)

	t.Run("lookup by email and username", func(t *testing.T) {
		byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)

		byUsername, err := repo.GetByUsername(ctx, "ada")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byUsername.ID)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, models.ErrNotFound)

		_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("duplicate email maps to conflict", func(t *testing.T) {
		_, err := repo.Create(ctx, newTestAccount("other", "ada@example.com"))
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrConflict)
		assert.Equal(t, "Email already exists", models.PublicMessage(err, ""))
	})

	t.Run("identity conflict ignores empty phone", func(t *testing.T) {
		_, err := repo.FindIdentityConflict(ctx, "new@example.com", "", "newuser")
		assert.ErrorIs(t, err, models.ErrNotFound)

		found, err := repo.FindIdentityConflict(ctx, "new@example.com", "", "ada")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("opaque tokens round trip and sweep", func(t *testing.T) {
		acc, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)

		past := time.Now().Add(-time.Minute)
		acc.SetVerificationToken("expired-token", past)
		acc.SetResetToken("live-token", time.Now().Add(time.Hour))
		_, err = repo.Update(ctx, acc)
		require.NoError(t, err)

		found, err := repo.GetByResetToken(ctx, "live-token")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)

		cleared, err := repo.ClearExpiredTokens(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), cleared)

		_, err = repo.GetByVerificationToken(ctx, "expired-token")
		assert.ErrorIs(t, err, models.ErrNotFound)

		_, err = repo.GetByResetToken(ctx, "live-token")
		assert.NoError(t, err)
	})

	t.Run("refresh rotation is compare and swap", func(t *testing.T) {
		acc, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		first := "refresh-1"
		acc.RefreshToken = &first
		_, err = repo.Update(ctx, acc)
		require.NoError(t, err)

		require.NoError(t, repo.RotateRefreshToken(ctx, created.ID, "refresh-1", "refresh-2"))
		assert.ErrorIs(t, repo.RotateRefreshToken(ctx, created.ID, "refresh-1", "refresh-3"), models.ErrNotFound)

		acc, err = repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, acc.RefreshTokenMatches("refresh-2"))
	})

	t.Run("list pages newest first", func(t *testing.T) {
		_, err := repo.Create(ctx, newTestAccount("bola", "bola@example.com"))
		require.NoError(t, err)

		page, err := repo.List(ctx, 1, 0)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "bola", page[0].Username)

		all, err := repo.List(ctx, 10, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}
