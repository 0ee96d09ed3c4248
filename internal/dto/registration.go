package dto

import (
	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
)

// RegisterGuestRequest represents a guest sign-up
type RegisterGuestRequest struct {
	FirstName      string `json:"first_name" binding:"required,max=100"`
	LastName       string `json:"last_name" binding:"required,max=100"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=6,max=128"`
	Phone          string `json:"phone" binding:"omitempty,max=32"`
	DocumentType   string `json:"document_type" binding:"omitempty,max=20"`
	DocumentNumber string `json:"document_number" binding:"omitempty,max=40"`
	Terms          bool   `json:"terms" binding:"required"`
}

// ProfileFields maps the request onto guest profile fields
func (r *RegisterGuestRequest) ProfileFields() domain.ProfileFields {
	p := domain.PersonalInfo{FirstName: r.FirstName, LastName: r.LastName}
	return domain.ProfileFields{
		Name:           p.FullName(),
		Role:           domain.RoleGuest,
		Phone:          r.Phone,
		DocumentType:   r.DocumentType,
		DocumentNumber: r.DocumentNumber,
	}
}

// PersonalInfoRequest is step 1 of host onboarding
type PersonalInfoRequest struct {
	FirstName      string `json:"first_name" binding:"required,max=100"`
	LastName       string `json:"last_name" binding:"required,max=100"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=6,max=128"`
	Phone          string `json:"phone" binding:"required,max=32"`
	DocumentType   string `json:"document_type" binding:"omitempty,max=20"`
	DocumentNumber string `json:"document_number" binding:"omitempty,max=40"`
	Terms          bool   `json:"terms" binding:"required"`
}

// ToDomain converts the request, password included
func (r *PersonalInfoRequest) ToDomain() domain.PersonalInfo {
	return domain.PersonalInfo{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Password:       r.Password,
		Phone:          r.Phone,
		DocumentType:   r.DocumentType,
		DocumentNumber: r.DocumentNumber,
	}
}

// OrganizationInfoRequest is step 2 of host onboarding
type OrganizationInfoRequest struct {
	Name         string `json:"name" binding:"required,min=2,max=255"`
	Type         string `json:"type" binding:"required,oneof=restaurant catering foodtruck other"`
	Description  string `json:"description" binding:"omitempty,max=1000"`
	ContactEmail string `json:"contact_email" binding:"required,email"`
	ContactPhone string `json:"contact_phone" binding:"required,max=32"`
}

// ToDomain converts the request
func (r *OrganizationInfoRequest) ToDomain() domain.OrganizationInfo {
	return domain.OrganizationInfo{
		Name:         r.Name,
		Type:         domain.OrganizationType(r.Type),
		Description:  r.Description,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
	}
}

// VenueInfoRequest is step 3 of host onboarding
type VenueInfoRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=255"`
	Description string `json:"description" binding:"omitempty,max=1000"`
	Street      string `json:"street" binding:"required,max=255"`
	City        string `json:"city" binding:"required,max=100"`
	State       string `json:"state" binding:"omitempty,max=100"`
	PostalCode  string `json:"postal_code" binding:"omitempty,max=20"`
	Country     string `json:"country" binding:"omitempty,max=100"`
	Phone       string `json:"phone" binding:"omitempty,max=32"`
	Email       string `json:"email" binding:"omitempty,email"`
	MinGuests   *int   `json:"min_guests" binding:"omitempty,min=1"`
	MaxGuests   *int   `json:"max_guests" binding:"omitempty,min=1"`
}

// ToDomain converts the request
func (r *VenueInfoRequest) ToDomain() domain.VenueInfo {
	v := domain.VenueInfo{
		Name:        r.Name,
		Description: r.Description,
		Address: domain.Address{
			Street:     r.Street,
			City:       r.City,
			State:      r.State,
			PostalCode: r.PostalCode,
			Country:    r.Country,
		},
	}
	if r.Phone != "" || r.Email != "" {
		v.ContactInfo = &domain.ContactInfo{Phone: r.Phone, Email: r.Email}
	}
	if r.MinGuests != nil || r.MaxGuests != nil {
		v.Capacity = &domain.Capacity{MinGuests: r.MinGuests, MaxGuests: r.MaxGuests}
	}
	return v
}

// HostOnboardingRequest submits all three steps at once
type HostOnboardingRequest struct {
	Personal     PersonalInfoRequest     `json:"personal"`
	Organization OrganizationInfoRequest `json:"organization"`
	Venue        VenueInfoRequest        `json:"venue"`
}

// HostOnboardingResponse is returned by a completed onboarding
type HostOnboardingResponse struct {
	Profile      *domain.Profile      `json:"profile"`
	Organization *domain.Organization `json:"organization"`
	Venue        *domain.Venue        `json:"venue"`
}

// NewHostOnboardingResponse converts the onboarding result
func NewHostOnboardingResponse(r *domain.HostOnboarding) *HostOnboardingResponse {
	return &HostOnboardingResponse{Profile: r.Profile, Organization: r.Organization, Venue: r.Venue}
}
