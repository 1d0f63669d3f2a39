package services

import (
	"time"

	"github.com/cicalumni/alumni-api/internal/models"
)

// AccountResponse is the only shape in which an account leaves the service
// layer. Credential and token fields are never included.
type AccountResponse struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Fullname   string  `json:"fullname"`
	Email      string  `json:"email"`
	Phone      *string `json:"phone"`
	Location   string  `json:"location"`
	IsVerified bool    `json:"isVerified"`
	IsActive   bool    `json:"isActive"`
	IsAdmin    bool    `json:"isAdmin"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

// NewAccountResponse projects a onto its public view.
func NewAccountResponse(a *models.Account) *AccountResponse {
	return &AccountResponse{
		ID:         a.ID,
		Username:   a.Username,
		Fullname:   a.Fullname,
		Email:      a.Email,
		Phone:      a.Phone,
		Location:   a.Location,
		IsVerified: a.IsVerified,
		IsActive:   a.IsActive,
		IsAdmin:    a.IsAdmin,
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func newAccountResponses(accounts []*models.Account) []*AccountResponse {
	out := make([]*AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, NewAccountResponse(a))
	}
	return out
}
