package service

import (
	"context"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/dto"
	"github.com/angelpublicista/tenemos-filo-api/pkg/saga"
	"github.com/angelpublicista/tenemos-filo-api/pkg/session"
)

// DuplicateChecker detects profiles that already use an email or document number
type DuplicateChecker interface {
	// ExistsByEmail checks the normalized email
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// ExistsByDocumentNumber checks the trimmed document number
	ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error)
	// Check fails with *domain.DuplicateError on the first hit, email first
	Check(ctx context.Context, email, documentNumber string) error
}

// ProvisioningService creates an identity account and its profile as one unit
type ProvisioningService interface {
	// Provision registers a guest account and profile
	Provision(ctx context.Context, email, password string, fields domain.ProfileFields) (*domain.Profile, error)
	// CompensateAccount deletes the orphan account of a saga stuck before its
	// profile, or records the profile when one exists for the account
	CompensateAccount(ctx context.Context, sg *saga.ProvisioningSaga) (*saga.ProvisioningSaga, error)
}

// OnboardingService registers hosts with their organization and main venue
type OnboardingService interface {
	// OnboardHost provisions a host and creates the organization and venue.
	// A call for a parked saga of the same email retries from the organization stage.
	OnboardHost(ctx context.Context, personal domain.PersonalInfo, org domain.OrganizationInfo, venue domain.VenueInfo) (*domain.HostOnboarding, error)
	// Resume finishes a host saga from its recorded ids and inputs
	Resume(ctx context.Context, sg *saga.ProvisioningSaga) (*domain.HostOnboarding, error)
	// RollBack removes the organization and venue of an abandoned saga
	RollBack(ctx context.Context, sg *saga.ProvisioningSaga) error
}

// AuthService signs users in and out
type AuthService interface {
	// SignIn verifies credentials and issues a session
	SignIn(ctx context.Context, email, password string) (*dto.LoginResponse, error)
	// SignOut revokes the session and the provider refresh tokens
	SignOut(ctx context.Context, s *session.Session) error
	// SendPasswordReset asks the identity provider to email a reset link
	SendPasswordReset(ctx context.Context, email string) error
	// Me returns the session and its profile
	Me(ctx context.Context, s *session.Session) (*dto.MeResponse, error)
}

// EmailService sends transactional emails on request
type EmailService interface {
	// Send validates req and sends it synchronously, returning the message id
	Send(ctx context.Context, req *dto.SendEmailRequest) (string, error)
}

// VenueService reads venues
type VenueService interface {
	// ListByOrganization returns the venues of an organization, main venue first
	ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Venue, error)
}
