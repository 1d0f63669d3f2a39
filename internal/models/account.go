package models

import (
	"time"
)

// Account is the credential record of an alumni member.
type Account struct {
	ID           string
	Username     string
	Fullname     string
	Email        string
	Phone        *string
	Location     string
	PasswordHash string

	IsVerified bool
	IsActive   bool
	IsAdmin    bool

	VerificationToken        *string
	VerificationTokenExpires *time.Time
	ResetToken               *string
	ResetTokenExpires        *time.Time

	// RefreshToken is the single live refresh token; issuing a new one overwrites it.
	RefreshToken *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasValidVerificationToken reports whether token matches the pending verification
// token and its expiry is strictly after now.
func (a *Account) HasValidVerificationToken(token string, now time.Time) bool {
	return opaqueTokenValid(a.VerificationToken, a.VerificationTokenExpires, token, now)
}

// HasValidResetToken is the reset-token counterpart of HasValidVerificationToken.
func (a *Account) HasValidResetToken(token string, now time.Time) bool {
	return opaqueTokenValid(a.ResetToken, a.ResetTokenExpires, token, now)
}

// SetVerificationToken stores a pending verification token, replacing any previous one.
func (a *Account) SetVerificationToken(token string, expiresAt time.Time) {
	a.VerificationToken = &token
	a.VerificationTokenExpires = &expiresAt
}

// ClearVerificationToken consumes the pending verification token.
func (a *Account) ClearVerificationToken() {
	a.VerificationToken = nil
	a.VerificationTokenExpires = nil
}

// SetResetToken stores a pending password reset token, replacing any previous one.
func (a *Account) SetResetToken(token string, expiresAt time.Time) {
	a.ResetToken = &token
	a.ResetTokenExpires = &expiresAt
}

// ClearResetToken consumes the pending reset token.
func (a *Account) ClearResetToken() {
	a.ResetToken = nil
	a.ResetTokenExpires = nil
}

// RefreshTokenMatches reports whether presented equals the stored refresh token.
// A missing stored token never matches.
func (a *Account) RefreshTokenMatches(presented string) bool {
	return a.RefreshToken != nil && presented != "" && *a.RefreshToken == presented
}

func opaqueTokenValid(stored *string, expires *time.Time, token string, now time.Time) bool {
	if stored == nil || expires == nil || token == "" {
		return false
	}
	if *stored != token {
		return false
	}
	return expires.After(now)
}
