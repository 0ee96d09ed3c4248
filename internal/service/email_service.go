package service

import (
	"context"
	"strings"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/dto"
	"github.com/angelpublicista/tenemos-filo-api/internal/notification"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

// EmailRequestError is a rejected /api/email body
type EmailRequestError struct {
	Message string
}

func (e *EmailRequestError) Error() string { return e.Message }

// emailService implements EmailService
type emailService struct {
	mailer notification.TemplatedSender
}

// NewEmailService creates a new EmailService
func NewEmailService(mailer notification.TemplatedSender) EmailService {
	return &emailService{mailer: mailer}
}

// Send checks the fields each email type needs and sends it synchronously
func (s *emailService) Send(ctx context.Context, req *dto.SendEmailRequest) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.send_email")
	defer span.End()

	kind, params, err := validateEmailRequest(req)
	if err != nil {
		return "", err
	}

	id, err := s.mailer.SendTemplated(ctx, strings.TrimSpace(req.Email), kind, params)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	return id, nil
}

func validateEmailRequest(req *dto.SendEmailRequest) (notification.Kind, notification.Params, error) {
	if strings.TrimSpace(req.Email) == "" {
		return "", notification.Params{}, &EmailRequestError{Message: "Email es requerido"}
	}

	kind := notification.Kind(req.Type)
	params := notification.Params{Name: req.Name, Role: domain.Role(req.Role), Token: req.Token}

	switch kind {
	case notification.KindWelcome:
		if req.Name == "" || req.Role == "" {
			return "", params, &EmailRequestError{Message: "Nombre y rol son requeridos para email de bienvenida"}
		}
	case notification.KindPasswordReset:
		if req.Token == "" {
			return "", params, &EmailRequestError{Message: "Token es requerido para reset de contraseña"}
		}
	case notification.KindEmailVerification:
		if req.Token == "" {
			return "", params, &EmailRequestError{Message: "Token es requerido para verificación de email"}
		}
	default:
		return "", params, &EmailRequestError{Message: "Tipo de email no válido"}
	}
	return kind, params, nil
}
