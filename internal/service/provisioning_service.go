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

// Saga data keys for the stored onboarding inputs
const (
	dataPersonal     = "personal"
	dataOrganization = "organization"
	dataVenue        = "venue"
)

// provisioningService implements ProvisioningService
type provisioningService struct {
	profiles   repository.ProfileRepository
	identity   identity.Provider
	checker    DuplicateChecker
	sagas      *saga.StateMachine
	dispatcher notification.Dispatcher
	metrics    *telemetry.Metrics
	log        *logger.Logger
}

// NewProvisioningService creates a new ProvisioningService.
// dispatcher and metrics may be nil.
func NewProvisioningService(
	profiles repository.ProfileRepository,
	idp identity.Provider,
	checker DuplicateChecker,
	sagas *saga.StateMachine,
	dispatcher notification.Dispatcher,
	metrics *telemetry.Metrics,
) ProvisioningService {
	return newProvisioningService(profiles, idp, checker, sagas, dispatcher, metrics)
}

func newProvisioningService(
	profiles repository.ProfileRepository,
	idp identity.Provider,
	checker DuplicateChecker,
	sagas *saga.StateMachine,
	dispatcher notification.Dispatcher,
	metrics *telemetry.Metrics,
) *provisioningService {
	return &provisioningService{
		profiles:   profiles,
		identity:   idp,
		checker:    checker,
		sagas:      sagas,
		dispatcher: dispatcher,
		metrics:    metrics,
		log:        logger.Get().Named("provisioning"),
	}
}

// Provision registers a guest: account, then profile, then welcome email
func (s *provisioningService) Provision(ctx context.Context, email, password string, fields domain.ProfileFields) (*domain.Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.provision")
	defer span.End()

	start := time.Now()
	fields = fields.Normalize()

	profile, sg, err := s.provision(ctx, saga.KindGuest, email, password, fields, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordOutcome(ctx, string(fields.Role), telemetry.ResultFailure, start)
		return nil, err
	}

	s.track(ctx, func() (*saga.ProvisioningSaga, error) {
		return s.sagas.MarkCompleted(ctx, sg.ID, "guest provisioned")
	})
	s.metrics.RecordOutcome(ctx, string(fields.Role), telemetry.ResultSuccess, start)
	return profile, nil
}

// provision runs the shared account and profile steps. The returned saga is
// left at PROFILE_CREATED for the caller to finish.
func (s *provisioningService) provision(
	ctx context.Context,
	kind saga.Kind,
	email, password string,
	fields domain.ProfileFields,
	data map[string]any,
) (*domain.Profile, *saga.ProvisioningSaga, error) {
	email = domain.NormalizeEmail(email)
	s.metrics.IncProvision(ctx, string(fields.Role))

	sg, err := s.sagas.Start(ctx, kind, email, data)
	if err != nil {
		return nil, nil, fmt.Errorf("start provisioning saga: %w", err)
	}
	ctx = context.WithValue(ctx, logger.SagaIDKey, sg.ID)
	log := s.log.WithContext(ctx).WithFields(zap.String("kind", string(kind)))

	if err := s.checker.Check(ctx, email, fields.DocumentNumber); err != nil {
		s.track(ctx, func() (*saga.ProvisioningSaga, error) {
			return s.sagas.MarkFailed(ctx, sg.ID, "duplicate")
		})
		var dup *domain.DuplicateError
		if errors.As(err, &dup) {
			log.Info("registration rejected as duplicate", zap.String("field", dup.Field))
		}
		return nil, nil, err
	}

	account, err := s.identity.CreateAccount(ctx, email, password)
	if err != nil {
		s.track(ctx, func() (*saga.ProvisioningSaga, error) {
			return s.sagas.MarkFailed(ctx, sg.ID, err.Error())
		})
		log.Warn("identity account creation failed", zap.String("code", identity.CodeOf(err)))
		return nil, nil, &domain.IdentityError{Cause: err, Message: identity.Translate(err)}
	}
	s.track(ctx, func() (*saga.ProvisioningSaga, error) {
		return s.sagas.MarkAccountCreated(ctx, sg.ID, account.SubjectID)
	})

	profile := &domain.Profile{
		SubjectID:      account.SubjectID,
		Name:           fields.Name,
		Email:          email,
		Role:           fields.Role,
		Phone:          fields.Phone,
		DocumentType:   fields.DocumentType,
		DocumentNumber: fields.DocumentNumber,
		IsActive:       true,
		LocationRefs:   []domain.LocationRef{},
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		s.compensate(ctx, sg.ID, account.SubjectID, err)
		return nil, nil, &domain.ProfileCreateError{Cause: err}
	}
	sg = s.track(ctx, func() (*saga.ProvisioningSaga, error) {
		return s.sagas.MarkProfileCreated(ctx, sg.ID, profile.ID)
	}, sg)

	s.sendWelcome(ctx, profile)
	log.Info("account provisioned", logger.Subject(account.SubjectID), zap.String("profile_id", profile.ID))
	return profile, sg, nil
}

// compensate deletes the account once after a failed profile insert
func (s *provisioningService) compensate(ctx context.Context, sagaID, subjectID string, cause error) {
	s.track(ctx, func() (*saga.ProvisioningSaga, error) {
		return s.sagas.MarkCompensating(ctx, sagaID, cause.Error())
	})

	// an insert whose acknowledgement was lost may still have landed
	if existing, err := s.profiles.GetBySubjectID(ctx, subjectID); err == nil && existing != nil {
		s.log.WarnContext(ctx, "profile found after failed insert, account kept for reconciler",
			logger.Subject(subjectID),
			zap.String("profile_id", existing.ID),
		)
		return
	}

	if err := s.identity.DeleteAccount(ctx, subjectID); err != nil {
		s.metrics.IncCompensation(ctx, telemetry.ResultFailure)
		s.log.ErrorContext(ctx, "compensation failed, account left for reconciler",
			logger.Subject(subjectID),
			zap.Error(err),
		)
		return
	}

	s.metrics.IncCompensation(ctx, telemetry.ResultSuccess)
	s.track(ctx, func() (*saga.ProvisioningSaga, error) {
		return s.sagas.MarkCompensated(ctx, sagaID, "account deleted after profile failure")
	})
}

// CompensateAccount repairs a saga stuck before PROFILE_CREATED. When a profile
// exists for the recorded account the saga is moved to PROFILE_CREATED and the
// account is kept. Otherwise the account is deleted and the saga COMPENSATED.
// It returns the updated saga.
func (s *provisioningService) CompensateAccount(ctx context.Context, sg *saga.ProvisioningSaga) (*saga.ProvisioningSaga, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.compensate_account")
	defer span.End()

	if sg.SubjectID != "" {
		profile, err := s.profiles.GetBySubjectID(ctx, sg.SubjectID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("load profile: %w", err)
		}
		if profile != nil {
			updated, err := s.sagas.MarkProfileCreated(ctx, sg.ID, profile.ID)
			if err != nil {
				return nil, fmt.Errorf("mark profile created: %w", err)
			}
			s.log.InfoContext(ctx, "profile found for saga account, compensation skipped",
				logger.Subject(sg.SubjectID),
				zap.String("profile_id", profile.ID),
			)
			return updated, nil
		}

		if err := s.identity.DeleteAccount(ctx, sg.SubjectID); err != nil {
			telemetry.RecordError(span, err)
			s.metrics.IncCompensation(ctx, telemetry.ResultFailure)
			return nil, fmt.Errorf("delete account: %w", err)
		}
	}
	s.metrics.IncCompensation(ctx, telemetry.ResultSuccess)

	updated, err := s.sagas.MarkCompensated(ctx, sg.ID, "account deleted by reconciler")
	if err != nil {
		return nil, fmt.Errorf("mark compensated: %w", err)
	}
	return updated, nil
}

func (s *provisioningService) sendWelcome(ctx context.Context, profile *domain.Profile) {
	if s.dispatcher == nil {
		return
	}
	job := notification.Job{
		To:     profile.Email,
		Kind:   notification.KindWelcome,
		Params: notification.Params{Name: profile.Name, Role: profile.Role},
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.log.WarnContext(ctx, "welcome email not queued", logger.Email(profile.Email), zap.Error(err))
	}
}

// track applies a saga transition. Bookkeeping failures are logged and never
// change the workflow result. It returns the updated saga, or fallback[0].
func (s *provisioningService) track(ctx context.Context, step func() (*saga.ProvisioningSaga, error), fallback ...*saga.ProvisioningSaga) *saga.ProvisioningSaga {
	sg, err := step()
	if err != nil {
		s.log.WarnContext(ctx, "saga bookkeeping failed", zap.Error(err))
		if len(fallback) > 0 {
			return fallback[0]
		}
		return nil
	}
	return sg
}
