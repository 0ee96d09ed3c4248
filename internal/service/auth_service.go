package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/dto"
	"github.com/angelpublicista/tenemos-filo-api/internal/identity"
	"github.com/angelpublicista/tenemos-filo-api/internal/repository"
	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
	"github.com/angelpublicista/tenemos-filo-api/pkg/session"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

// authService implements AuthService
type authService struct {
	identity identity.Provider
	profiles repository.ProfileRepository
	sessions *session.Manager
	log      *logger.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(idp identity.Provider, profiles repository.ProfileRepository, sessions *session.Manager) AuthService {
	return &authService{
		identity: idp,
		profiles: profiles,
		sessions: sessions,
		log:      logger.Get().Named("auth"),
	}
}

// SignIn verifies credentials with the identity provider and issues a session
func (s *authService) SignIn(ctx context.Context, email, password string) (*dto.LoginResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.sign_in")
	defer span.End()

	email = domain.NormalizeEmail(email)
	account, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, &domain.IdentityError{Cause: err, Message: identity.Translate(err)}
	}

	profile, err := s.profiles.GetBySubjectID(ctx, account.SubjectID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	if !profile.IsActive {
		return nil, domain.ErrAccountPending
	}

	token, sess, err := s.sessions.Issue(ctx, session.Principal{
		SubjectID: account.SubjectID,
		ProfileID: profile.ID,
		Email:     profile.Email,
		Role:      string(profile.Role),
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.log.InfoContext(ctx, "signed in", logger.Subject(account.SubjectID), zap.String("session_id", sess.ID))
	return &dto.LoginResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		Profile:   profile,
	}, nil
}

// SignOut revokes the session, then the provider refresh tokens
func (s *authService) SignOut(ctx context.Context, sess *session.Session) error {
	ctx, span := telemetry.StartSpan(ctx, "service.sign_out")
	defer span.End()

	if err := s.sessions.Revoke(ctx, sess.ID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.identity.SignOut(ctx, sess.SubjectID); err != nil {
		s.log.WarnContext(ctx, "provider sign-out failed",
			logger.Subject(sess.SubjectID),
			zap.String("code", identity.CodeOf(err)),
		)
	}
	return nil
}

// SendPasswordReset asks the identity provider to send a reset email
func (s *authService) SendPasswordReset(ctx context.Context, email string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.send_password_reset")
	defer span.End()

	if err := s.identity.SendPasswordReset(ctx, domain.NormalizeEmail(email)); err != nil {
		telemetry.RecordError(span, err)
		return &domain.IdentityError{Cause: err, Message: identity.Translate(err)}
	}
	return nil
}

// Me returns the session with its profile
func (s *authService) Me(ctx context.Context, sess *session.Session) (*dto.MeResponse, error) {
	profile, err := s.profiles.GetByID(ctx, sess.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	return &dto.MeResponse{
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
		Profile:   profile,
	}, nil
}
