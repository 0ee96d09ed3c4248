package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/identity"
	"github.com/angelpublicista/tenemos-filo-api/internal/notification"
	"github.com/angelpublicista/tenemos-filo-api/internal/repository"
	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
	"github.com/angelpublicista/tenemos-filo-api/pkg/saga"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

var (
	// ErrSagaNotResumable is returned by Resume for sagas outside the host onboarding stages
	ErrSagaNotResumable = errors.New("saga is not a resumable host onboarding")
	// ErrSagaNotAbandoned is returned by RollBack for sagas that were not superseded
	ErrSagaNotAbandoned = errors.New("saga is not abandoned")
	// ErrSagaSuperseded is returned by Resume when a retry abandoned the saga mid-run
	ErrSagaSuperseded = errors.New("saga superseded during resume")
)

// onboardingService implements OnboardingService
type onboardingService struct {
	prov   *provisioningService
	orgs   repository.OrganizationRepository
	venues repository.VenueRepository
	log    *logger.Logger
}

// NewOnboardingService creates a new OnboardingService
func NewOnboardingService(
	profiles repository.ProfileRepository,
	orgs repository.OrganizationRepository,
	venues repository.VenueRepository,
	idp identity.Provider,
	checker DuplicateChecker,
	sagas *saga.StateMachine,
	dispatcher notification.Dispatcher,
	metrics *telemetry.Metrics,
) OnboardingService {
	return &onboardingService{
		prov:   newProvisioningService(profiles, idp, checker, sagas, dispatcher, metrics),
		orgs:   orgs,
		venues: venues,
		log:    logger.Get().Named("onboarding"),
	}
}

// OnboardHost runs provision(host) followed by the organization, venue and link stages
func (s *onboardingService) OnboardHost(
	ctx context.Context,
	personal domain.PersonalInfo,
	orgInfo domain.OrganizationInfo,
	venueInfo domain.VenueInfo,
) (*domain.HostOnboarding, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.onboard_host")
	defer span.End()

	start := time.Now()
	role := string(domain.RoleHost)
	personal.Email = domain.NormalizeEmail(personal.Email)

	stored := personal
	stored.Password = ""
	data := map[string]any{
		dataPersonal:     stored,
		dataOrganization: orgInfo,
		dataVenue:        venueInfo,
	}

	prev, err := s.latestParked(ctx, personal.Email)
	if err != nil {
		return nil, err
	}

	var (
		profile *domain.Profile
		sg      *saga.ProvisioningSaga
	)
	if prev != nil {
		profile, sg, err = s.restart(ctx, prev, personal.Password, data)
	} else {
		fields := domain.ProfileFields{
			Name:           personal.FullName(),
			Role:           domain.RoleHost,
			Phone:          personal.Phone,
			DocumentType:   personal.DocumentType,
			DocumentNumber: personal.DocumentNumber,
		}.Normalize()
		profile, sg, err = s.prov.provision(ctx, saga.KindHost, personal.Email, personal.Password, fields, data)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.prov.metrics.RecordOutcome(ctx, role, telemetry.ResultFailure, start)
		return nil, err
	}

	ctx = context.WithValue(ctx, logger.SagaIDKey, sg.ID)
	result, err := s.advance(ctx, sg, profile, orgInfo, venueInfo, false)
	if err != nil {
		telemetry.RecordError(span, err)
		s.prov.metrics.RecordOutcome(ctx, role, telemetry.ResultFailure, start)
		return nil, err
	}

	s.prov.metrics.RecordOutcome(ctx, role, telemetry.ResultSuccess, start)
	return result, nil
}

// latestParked returns the newest host saga for email when it stopped on a
// stage failure after its profile was created
func (s *onboardingService) latestParked(ctx context.Context, email string) (*saga.ProvisioningSaga, error) {
	prev, err := s.prov.sagas.GetLatestByEmail(ctx, email, saga.KindHost)
	if errors.Is(err, saga.ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load previous onboarding: %w", err)
	}
	if !prev.IsParked() || prev.ProfileID == "" {
		return nil, nil
	}
	return prev, nil
}

// restart re-verifies the password, supersedes prev and opens a new saga at
// PROFILE_CREATED. The stages then run from scratch.
func (s *onboardingService) restart(ctx context.Context, prev *saga.ProvisioningSaga, password string, data map[string]any) (*domain.Profile, *saga.ProvisioningSaga, error) {
	account, err := s.prov.identity.SignIn(ctx, prev.Email, password)
	if err != nil {
		return nil, nil, &domain.IdentityError{Cause: err, Message: identity.Translate(err)}
	}
	if account.SubjectID != prev.SubjectID {
		return nil, nil, &domain.IdentityError{Cause: identity.ErrSubjectMismatch, Message: identity.Translate(identity.ErrSubjectMismatch)}
	}

	profile, err := s.prov.profiles.GetByID(ctx, prev.ProfileID)
	if err != nil {
		return nil, nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, nil, domain.ErrProfileNotFound
	}

	next, err := s.prov.sagas.Restart(ctx, prev, data)
	if err != nil {
		return nil, nil, fmt.Errorf("restart onboarding saga: %w", err)
	}
	// prev must be abandoned before new records are written, or the reconciler
	// could finish it alongside this retry
	if _, err := s.prov.sagas.MarkAbandoned(ctx, prev.ID, next.ID); err != nil {
		s.prov.track(ctx, func() (*saga.ProvisioningSaga, error) {
			return s.prov.sagas.MarkFailed(ctx, next.ID, "previous onboarding changed concurrently")
		})
		if errors.Is(err, saga.ErrInvalidStateTransition) {
			s.log.WarnContext(ctx, "parked onboarding moved on before retry",
				zap.String("previous_saga_id", prev.ID),
				zap.Error(err),
			)
			return nil, nil, domain.ErrOnboardingInProgress
		}
		return nil, nil, fmt.Errorf("abandon previous onboarding: %w", err)
	}

	s.log.InfoContext(ctx, "retrying parked onboarding",
		zap.String("previous_saga_id", prev.ID),
		zap.String("saga_id", next.ID),
		zap.String("failed_stage", prev.FailedStage),
	)
	return profile, next, nil
}

// advance runs the organization, venue and link stages. With reuse set it
// picks up records and references already written for sg; without it every
// stage writes anew.
func (s *onboardingService) advance(
	ctx context.Context,
	sg *saga.ProvisioningSaga,
	profile *domain.Profile,
	orgInfo domain.OrganizationInfo,
	venueInfo domain.VenueInfo,
	reuse bool,
) (*domain.HostOnboarding, error) {
	var (
		org   *domain.Organization
		venue *domain.Venue
		err   error
	)
	orgID, venueID := sg.OrganizationID, sg.VenueID

	if reuse && orgID != "" {
		if org, err = s.orgs.GetByID(ctx, orgID); err != nil {
			return nil, s.stageFailure(ctx, sg, domain.StageOrganization, err)
		}
	}
	createdOrg := org == nil
	if createdOrg {
		org = newOrganization(orgInfo)
		if err := s.orgs.Create(ctx, org); err != nil {
			return nil, s.stageFailure(ctx, sg, domain.StageOrganization, err)
		}
	}
	if sg.State == saga.StateProfileCreated {
		if sg, err = s.mark(ctx, sg, reuse, func() (*saga.ProvisioningSaga, error) {
			return s.prov.sagas.MarkOrganizationCreated(ctx, sg.ID, org.ID)
		}); err != nil {
			if createdOrg {
				s.discard(ctx, "organization", org.ID, s.orgs.Delete)
			}
			return nil, err
		}
	}

	if reuse && venueID != "" {
		if venue, err = s.venues.GetByID(ctx, venueID); err != nil {
			return nil, s.stageFailure(ctx, sg, domain.StageVenue, err)
		}
	}
	createdVenue := venue == nil
	if createdVenue {
		venue = newMainVenue(venueInfo, org.ID)
		if err := s.venues.Create(ctx, venue); err != nil {
			return nil, s.stageFailure(ctx, sg, domain.StageVenue, err)
		}
	}
	if sg.State == saga.StateOrganizationCreated {
		if sg, err = s.mark(ctx, sg, reuse, func() (*saga.ProvisioningSaga, error) {
			return s.prov.sagas.MarkVenueCreated(ctx, sg.ID, venue.ID)
		}); err != nil {
			if createdVenue {
				s.discard(ctx, "venue", venue.ID, s.venues.Delete)
			}
			return nil, err
		}
	}

	if !reuse || !repository.HasLocationRef(org.LocationRefs, venue.ID) {
		ref := domain.NewLocationRef(venue.ID)
		if err := s.orgs.AppendLocationRef(ctx, org.ID, ref); err != nil {
			return nil, s.stageFailure(ctx, sg, domain.StageLinkOrg, err)
		}
		org.LocationRefs = append(org.LocationRefs, ref)
	}
	if sg.State == saga.StateVenueCreated {
		if sg, err = s.mark(ctx, sg, reuse, func() (*saga.ProvisioningSaga, error) {
			return s.prov.sagas.MarkOrganizationLinked(ctx, sg.ID)
		}); err != nil {
			return nil, err
		}
	}

	if !reuse || !repository.HasLocationRef(profile.LocationRefs, venue.ID) {
		ref := domain.NewLocationRef(venue.ID)
		if err := s.prov.profiles.AppendLocationRef(ctx, profile.ID, ref); err != nil {
			return nil, s.stageFailure(ctx, sg, domain.StageLinkProfile, err)
		}
		profile.LocationRefs = append(profile.LocationRefs, ref)
	}
	s.prov.track(ctx, func() (*saga.ProvisioningSaga, error) {
		return s.prov.sagas.MarkCompleted(ctx, sg.ID, "host onboarded")
	})

	s.log.InfoContext(ctx, "host onboarded",
		zap.String("profile_id", profile.ID),
		zap.String("organization_id", org.ID),
		zap.String("venue_id", venue.ID),
	)
	return &domain.HostOnboarding{Profile: profile, Organization: org, Venue: venue}, nil
}

// mark applies a stage transition. Bookkeeping failures are logged and the
// previous saga is kept, except during a resume where a rejected transition
// means a retry abandoned the saga and the run stops.
func (s *onboardingService) mark(ctx context.Context, sg *saga.ProvisioningSaga, reuse bool, step func() (*saga.ProvisioningSaga, error)) (*saga.ProvisioningSaga, error) {
	next, err := step()
	if err == nil {
		return next, nil
	}
	if reuse && errors.Is(err, saga.ErrInvalidStateTransition) {
		s.log.WarnContext(ctx, "resume stopped, saga changed underneath", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSagaSuperseded, err)
	}
	s.prov.log.WarnContext(ctx, "saga bookkeeping failed", zap.Error(err))
	return sg, nil
}

// discard removes a record written by a resume that was then superseded.
// The abandoned saga never recorded it, so its rollback would miss it.
func (s *onboardingService) discard(ctx context.Context, kind, id string, del func(context.Context, string) error) {
	if err := del(ctx, id); err != nil {
		s.log.ErrorContext(ctx, "unrecorded record left behind",
			zap.String("kind", kind),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}

func (s *onboardingService) stageFailure(ctx context.Context, sg *saga.ProvisioningSaga, stage string, cause error) error {
	s.prov.track(ctx, func() (*saga.ProvisioningSaga, error) {
		return s.prov.sagas.RecordStageFailure(ctx, sg.ID, stage, cause.Error())
	})
	s.prov.metrics.IncOnboardingFailure(ctx, stage)
	s.log.ErrorContext(ctx, "onboarding stage failed", zap.String("stage", stage), zap.Error(cause))
	return &domain.OnboardingError{Stage: stage, Cause: cause, SagaID: sg.ID}
}

// Resume completes a host saga left between PROFILE_CREATED and COMPLETED
func (s *onboardingService) Resume(ctx context.Context, sg *saga.ProvisioningSaga) (*domain.HostOnboarding, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.resume_onboarding")
	defer span.End()

	if sg.Kind != saga.KindHost || sg.ProfileID == "" {
		return nil, ErrSagaNotResumable
	}
	switch sg.State {
	case saga.StateProfileCreated, saga.StateOrganizationCreated, saga.StateVenueCreated, saga.StateOrganizationLinked:
	default:
		return nil, ErrSagaNotResumable
	}

	var orgInfo domain.OrganizationInfo
	if err := sg.DecodeData(dataOrganization, &orgInfo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSagaNotResumable, err)
	}
	var venueInfo domain.VenueInfo
	if err := sg.DecodeData(dataVenue, &venueInfo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSagaNotResumable, err)
	}

	profile, err := s.prov.profiles.GetByID(ctx, sg.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	if err := s.recoverLinked(ctx, sg, profile); err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, logger.SagaIDKey, sg.ID)
	result, err := s.advance(ctx, sg, profile, orgInfo, venueInfo, true)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// recoverLinked fills in the organization and venue of a saga whose stage
// writes were not recorded, using the venue already linked to the profile
func (s *onboardingService) recoverLinked(ctx context.Context, sg *saga.ProvisioningSaga, profile *domain.Profile) error {
	if sg.OrganizationID != "" || len(profile.LocationRefs) == 0 {
		return nil
	}
	ref := profile.LocationRefs[len(profile.LocationRefs)-1].Ref
	venue, err := s.venues.GetByID(ctx, ref)
	if err != nil {
		return fmt.Errorf("load linked venue: %w", err)
	}
	if venue == nil {
		return nil
	}
	sg.OrganizationID = venue.OrganizationRef
	sg.VenueID = venue.ID
	s.log.InfoContext(ctx, "recovered onboarding records from profile link",
		zap.String("saga_id", sg.ID),
		zap.String("organization_id", venue.OrganizationRef),
		zap.String("venue_id", venue.ID),
	)
	return nil
}

// RollBack deletes the venue and organization recorded on an abandoned saga
func (s *onboardingService) RollBack(ctx context.Context, sg *saga.ProvisioningSaga) error {
	ctx, span := telemetry.StartSpan(ctx, "service.rollback_onboarding")
	defer span.End()

	if sg.State != saga.StateAbandoned {
		return ErrSagaNotAbandoned
	}

	if sg.VenueID != "" {
		if err := s.venues.Delete(ctx, sg.VenueID); err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("delete venue: %w", err)
		}
	}
	if sg.OrganizationID != "" {
		if err := s.orgs.Delete(ctx, sg.OrganizationID); err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("delete organization: %w", err)
		}
	}

	if _, err := s.prov.sagas.MarkRolledBack(ctx, sg.ID); err != nil {
		return fmt.Errorf("mark rolled back: %w", err)
	}
	s.log.InfoContext(ctx, "abandoned onboarding rolled back",
		zap.String("saga_id", sg.ID),
		zap.String("superseded_by", sg.SupersededBy),
	)
	return nil
}

func newOrganization(info domain.OrganizationInfo) *domain.Organization {
	return &domain.Organization{
		Name:         info.Name,
		Slug:         domain.Slugify(info.Name),
		Type:         info.Type,
		Description:  info.Description,
		ContactEmail: info.ContactEmail,
		ContactPhone: info.ContactPhone,
		IsActive:     false,
		LocationRefs: []domain.LocationRef{},
	}
}

func newMainVenue(info domain.VenueInfo, organizationID string) *domain.Venue {
	return &domain.Venue{
		Name:            info.Name,
		Slug:            domain.Slugify(info.Name),
		OrganizationRef: organizationID,
		IsMain:          true,
		Description:     info.Description,
		Address:         info.Address,
		ContactInfo:     info.ContactInfo,
		Capacity:        info.Capacity,
		IsActive:        false,
	}
}
