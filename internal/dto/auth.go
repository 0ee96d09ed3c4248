package dto

import (
	"time"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
)

// LoginRequest represents a sign-in
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the session token
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *domain.Profile `json:"profile"`
}

// PasswordResetRequest requests a reset email
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// MeResponse describes the current session
type MeResponse struct {
	SessionID string          `json:"session_id"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *domain.Profile `json:"profile"`
}
