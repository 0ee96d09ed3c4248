package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProfileNotFound is returned when no profile exists for a subject
	ErrProfileNotFound = &UserError{msg: "profile not found", userMessage: "Usuario no encontrado"}
	// ErrAccountPending is returned when signing into an inactive profile
	ErrAccountPending = &UserError{msg: "account pending activation", userMessage: "Tu cuenta está pendiente de activación"}
	// ErrOnboardingInProgress is returned when a retry races another run of the same onboarding
	ErrOnboardingInProgress = &UserError{msg: "onboarding changed concurrently", userMessage: "Tu registro se está completando. Intenta iniciar sesión en unos minutos"}
	// ErrNotFound is returned by repositories for missing documents
	ErrNotFound = errors.New("not found")
)

// UserMessenger is implemented by errors that carry a Spanish message for end users
type UserMessenger interface {
	UserMessage() string
}

// UserError is a sentinel with a user-facing message
type UserError struct {
	msg         string
	userMessage string
}

func (e *UserError) Error() string       { return e.msg }
func (e *UserError) UserMessage() string { return e.userMessage }

// Duplicate fields
const (
	FieldEmail          = "email"
	FieldDocumentNumber = "documentNumber"
)

// DuplicateError reports an existing profile with the same email or document number
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

// UserMessage returns the Spanish message for the duplicated field
func (e *DuplicateError) UserMessage() string {
	if e.Field == FieldDocumentNumber {
		return "Ya existe un usuario registrado con este número de documento"
	}
	return "Ya existe un usuario registrado con este email"
}

// IdentityError wraps an identity provider failure
type IdentityError struct {
	Cause error
	// Message is the translated cause
	Message string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity provider: %v", e.Cause)
}

func (e *IdentityError) Unwrap() error { return e.Cause }

// UserMessage returns the translated provider message
func (e *IdentityError) UserMessage() string {
	if e.Message == "" {
		return "Ha ocurrido un error. Por favor, intenta de nuevo."
	}
	return e.Message
}

// ProfileCreateError wraps a failed profile insert
type ProfileCreateError struct {
	Cause error
}

func (e *ProfileCreateError) Error() string {
	return fmt.Sprintf("create profile: %v", e.Cause)
}

func (e *ProfileCreateError) Unwrap() error { return e.Cause }

func (e *ProfileCreateError) UserMessage() string {
	var dup *DuplicateError
	if errors.As(e.Cause, &dup) {
		return dup.UserMessage()
	}
	return "No fue posible crear el perfil. Intenta de nuevo."
}

// Onboarding stages after provisioning
const (
	StageOrganization = "organization"
	StageVenue        = "venue"
	StageLinkOrg      = "link_organization"
	StageLinkProfile  = "link_profile"
)

// OnboardingError reports a failed host onboarding stage
type OnboardingError struct {
	Stage  string
	Cause  error
	SagaID string
}

func (e *OnboardingError) Error() string {
	return fmt.Sprintf("onboarding stage %s: %v", e.Stage, e.Cause)
}

func (e *OnboardingError) Unwrap() error { return e.Cause }

func (e *OnboardingError) UserMessage() string {
	return fmt.Sprintf("No fue posible completar el registro (etapa: %s). Intenta de nuevo.", e.Stage)
}
