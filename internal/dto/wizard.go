package dto

import (
	"time"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
)

// WizardPersonalRequest is wizard step 1. The password is only sent on submit.
type WizardPersonalRequest struct {
	FirstName      string `json:"first_name" binding:"required,max=100"`
	LastName       string `json:"last_name" binding:"required,max=100"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone" binding:"required,max=32"`
	DocumentType   string `json:"document_type" binding:"omitempty,max=20"`
	DocumentNumber string `json:"document_number" binding:"omitempty,max=40"`
	Terms          bool   `json:"terms" binding:"required"`
}

// ToDomain converts the step, adding the password given on submit
func (r *WizardPersonalRequest) ToDomain(password string) domain.PersonalInfo {
	return domain.PersonalInfo{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Password:       password,
		Phone:          r.Phone,
		DocumentType:   r.DocumentType,
		DocumentNumber: r.DocumentNumber,
	}
}

// WizardSubmitRequest is the body of the final wizard submit
type WizardSubmitRequest struct {
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// WizardDraftResponse describes a wizard draft
type WizardDraftResponse struct {
	ID           string                   `json:"id"`
	State        string                   `json:"state"`
	CurrentStep  int                      `json:"current_step"`
	Personal     *WizardPersonalRequest   `json:"personal,omitempty"`
	Organization *OrganizationInfoRequest `json:"organization,omitempty"`
	Venue        *VenueInfoRequest        `json:"venue,omitempty"`
	LastError    string                   `json:"last_error,omitempty"`
	SagaID       string                   `json:"saga_id,omitempty"`
	Result       *HostOnboardingResponse  `json:"result,omitempty"`
	ExpiresAt    time.Time                `json:"expires_at"`
}
