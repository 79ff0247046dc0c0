package auth

import (
	"github.com/notemarket/backend/internal/users"
)

// RegisterRequest contains the payload required to create an account.
type RegisterRequest struct {
	Name     string   `json:"name" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	AsMaker  bool     `json:"as_notemaker"`
	Subjects []string `json:"subjects,omitempty"`
}

// LoginRequest carries the credential pair.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`

	// ClientIP is populated by the controller for rate limiting, never from
	// the request body.
	ClientIP string `json:"-"`
}

// RefreshRequest exchanges an expired access token plus refresh token for a
// new pair.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPair is the issued credential set.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse returns tokens alongside the authenticated profile.
type AuthResponse struct {
	TokenPair
	User *users.UserDTO `json:"user"`
}
