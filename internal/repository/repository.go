package repository

import (
	"context"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
)

// ProfileRepository defines the interface for profile data access
type ProfileRepository interface {
	// Create inserts a profile and assigns its ID. A unique index hit
	// is returned as *domain.DuplicateError.
	Create(ctx context.Context, profile *domain.Profile) error
	// GetByID retrieves a profile by ID, nil when absent
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	// GetBySubjectID retrieves the profile of an identity subject, nil when absent
	GetBySubjectID(ctx context.Context, subjectID string) (*domain.Profile, error)
	// ExistsByEmail checks for a profile with this exact email
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// ExistsByDocumentNumber checks for a profile with this exact document number
	ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error)
	// AppendLocationRef adds ref to the profile's location references
	AppendLocationRef(ctx context.Context, id string, ref domain.LocationRef) error
}

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) error
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	AppendLocationRef(ctx context.Context, id string, ref domain.LocationRef) error
	// Delete removes an organization. Deleting a missing one is not an error.
	Delete(ctx context.Context, id string) error
}

// VenueRepository defines the interface for venue data access
type VenueRepository interface {
	Create(ctx context.Context, venue *domain.Venue) error
	GetByID(ctx context.Context, id string) (*domain.Venue, error)
	// ListByOrganization returns venues ordered by isMain desc, then name asc
	ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Venue, error)
	// Delete removes a venue. Deleting a missing one is not an error.
	Delete(ctx context.Context, id string) error
}

// HasLocationRef reports whether refs already point at venueID
func HasLocationRef(refs []domain.LocationRef, venueID string) bool {
	for _, r := range refs {
		if r.Ref == venueID {
			return true
		}
	}
	return false
}
