package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/dto"
	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

// DefaultTTL is the draft lifetime when none is configured
const DefaultTTL = 2 * time.Hour

const genericFailure = "Ha ocurrido un error. Por favor, intenta de nuevo."

// Onboarder runs the host onboarding on submit
type Onboarder interface {
	OnboardHost(ctx context.Context, personal domain.PersonalInfo, org domain.OrganizationInfo, venue domain.VenueInfo) (*domain.HostOnboarding, error)
}

// Service drives drafts through the wizard states
type Service struct {
	store      Store
	onboarding Onboarder
	validator  *Validator
	ttl        time.Duration
	now        func() time.Time
	log        *logger.Logger
}

// NewService creates a wizard service
func NewService(store Store, onboarding Onboarder, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:      store,
		onboarding: onboarding,
		validator:  NewValidator(),
		ttl:        ttl,
		now:        time.Now,
		log:        logger.Get().Named("wizard"),
	}
}

// TTL returns the draft lifetime
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Create starts a draft on step 1
func (s *Service) Create(ctx context.Context) (*Draft, error) {
	d := NewDraft(s.now())
	if err := s.store.Save(ctx, d, s.ttl); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

// Get loads a draft
func (s *Service) Get(ctx context.Context, id string) (*Draft, error) {
	return s.store.Get(ctx, id)
}

// SavePersonal validates and stores step 1
func (s *Service) SavePersonal(ctx context.Context, id string, req *dto.WizardPersonalRequest) (*Draft, error) {
	return s.update(ctx, id, req, func(d *Draft) error { return d.SetPersonal(req) })
}

// SaveOrganization validates and stores step 2
func (s *Service) SaveOrganization(ctx context.Context, id string, req *dto.OrganizationInfoRequest) (*Draft, error) {
	return s.update(ctx, id, req, func(d *Draft) error { return d.SetOrganization(req) })
}

// SaveVenue validates and stores step 3
func (s *Service) SaveVenue(ctx context.Context, id string, req *dto.VenueInfoRequest) (*Draft, error) {
	return s.update(ctx, id, req, func(d *Draft) error { return d.SetVenue(req) })
}

// Back returns the draft to its previous step
func (s *Service) Back(ctx context.Context, id string) (*Draft, error) {
	return s.update(ctx, id, nil, (*Draft).Back)
}

func (s *Service) update(ctx context.Context, id string, payload any, apply func(*Draft) error) (*Draft, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		if err := s.validator.Struct(payload); err != nil {
			return nil, err
		}
	}
	if err := apply(d); err != nil {
		return nil, err
	}
	return d, s.save(ctx, d)
}

func (s *Service) save(ctx context.Context, d *Draft) error {
	d.UpdatedAt = s.now()
	if err := s.store.Save(ctx, d, s.ttl); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Submit runs the onboarding for a complete draft. On failure the draft is
// kept in the failed state with the translated error and the caller may
// submit again. On success it is deleted and returned in the done state.
func (s *Service) Submit(ctx context.Context, id, password string) (*Draft, error) {
	ctx, span := telemetry.StartSpan(ctx, "wizard.submit")
	defer span.End()

	if password == "" {
		return nil, &ValidationError{Fields: map[string]string{"password": "Este campo es requerido"}}
	}

	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.BeginSubmit(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}

	result, onboardErr := s.onboarding.OnboardHost(ctx,
		d.Personal.ToDomain(password),
		d.Organization.ToDomain(),
		d.Venue.ToDomain(),
	)
	// the outcome is recorded even when the caller went away mid-submit
	ctx = context.WithoutCancel(ctx)
	if onboardErr != nil {
		telemetry.RecordError(span, onboardErr)
		var sagaID string
		var oe *domain.OnboardingError
		if errors.As(onboardErr, &oe) {
			sagaID = oe.SagaID
		}
		_ = d.Fail(userMessage(onboardErr), sagaID)
		if err := s.save(ctx, d); err != nil {
			s.log.ErrorContext(ctx, "failed draft not saved", zap.String("draft_id", d.ID), zap.Error(err))
		}
		return d, onboardErr
	}

	_ = d.Succeed(result)
	if err := s.store.Delete(ctx, d.ID); err != nil {
		s.log.WarnContext(ctx, "completed draft not deleted", zap.String("draft_id", d.ID), zap.Error(err))
	}
	s.log.InfoContext(ctx, "wizard completed", zap.String("draft_id", d.ID), zap.String("profile_id", result.Profile.ID))
	return d, nil
}

func userMessage(err error) string {
	var um domain.UserMessenger
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return genericFailure
}

// Response converts a draft for the API
func (s *Service) Response(d *Draft) *dto.WizardDraftResponse {
	resp := &dto.WizardDraftResponse{
		ID:           d.ID,
		State:        string(d.State),
		CurrentStep:  d.CurrentStep(),
		Personal:     d.Personal,
		Organization: d.Organization,
		Venue:        d.Venue,
		LastError:    d.LastError,
		SagaID:       d.SagaID,
		ExpiresAt:    d.UpdatedAt.Add(s.ttl),
	}
	if d.Result != nil {
		resp.Result = dto.NewHostOnboardingResponse(d.Result)
	}
	return resp
}
