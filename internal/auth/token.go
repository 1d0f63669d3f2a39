package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/cicalumni/alumni-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any signed token that fails verification.
// Callers cannot tell a bad signature from an expired or mistyped token.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and verifies signed access and refresh tokens.
// Access and refresh tokens are signed with distinct secrets.
type TokenManager struct {
	accessSecret       []byte
	refreshSecret      []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	now                func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:       []byte(accessSecret),
		refreshSecret:      []byte(refreshSecret),
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
		now:                time.Now,
	}
}

// IssuePair creates a fresh access and refresh token for accountID.
// The caller persists the refresh token.
func (tm *TokenManager) IssuePair(accountID string) (*models.TokenPair, error) {
	access, err := tm.sign(accountID, models.TokenTypeAccess, tm.accessTokenExpiry, tm.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := tm.sign(accountID, models.TokenTypeRefresh, tm.refreshTokenExpiry, tm.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ValidateAccessToken returns the account id bound to an access token.
func (tm *TokenManager) ValidateAccessToken(token string) (string, error) {
	return tm.verifySigned(token, tm.accessSecret, models.TokenTypeAccess)
}

// ValidateRefreshToken returns the account id bound to a refresh token.
func (tm *TokenManager) ValidateRefreshToken(token string) (string, error) {
	return tm.verifySigned(token, tm.refreshSecret, models.TokenTypeRefresh)
}

func (tm *TokenManager) sign(accountID, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := tm.now()

	claims := &models.TokenClaims{
		Type:      tokenType,
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (tm *TokenManager) verifySigned(tokenString string, secret []byte, tokenType string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Type != tokenType || claims.AccountID == "" {
		return "", ErrInvalidToken
	}

	return claims.AccountID, nil
}
