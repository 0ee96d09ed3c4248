package identity

import "context"

// Account is the identity provider's view of a user
type Account struct {
	SubjectID string `json:"subject_id"`
	Email     string `json:"email"`
}

// Provider is the external identity service that owns credentials
type Provider interface {
	// CreateAccount registers email/password and returns the new subject
	CreateAccount(ctx context.Context, email, password string) (*Account, error)
	// DeleteAccount removes the subject's account
	DeleteAccount(ctx context.Context, subjectID string) error
	// SignIn verifies credentials and returns the subject
	SignIn(ctx context.Context, email, password string) (*Account, error)
	// SignOut revokes the subject's refresh tokens
	SignOut(ctx context.Context, subjectID string) error
	// SendPasswordReset emails a password reset link
	SendPasswordReset(ctx context.Context, email string) error
}
