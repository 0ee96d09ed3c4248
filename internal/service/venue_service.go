package service

import (
	"context"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/repository"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

type venueService struct {
	venues repository.VenueRepository
}

// NewVenueService creates a new VenueService
func NewVenueService(venues repository.VenueRepository) VenueService {
	return &venueService{venues: venues}
}

func (s *venueService) ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Venue, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.list_venues")
	defer span.End()

	venues, err := s.venues.ListByOrganization(ctx, organizationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return venues, nil
}
