package domain

import "time"

// OrganizationType classifies a host business
type OrganizationType string

const (
	OrganizationRestaurant OrganizationType = "restaurant"
	OrganizationCatering   OrganizationType = "catering"
	OrganizationFoodTruck  OrganizationType = "foodtruck"
	OrganizationOther      OrganizationType = "other"
)

// IsValid reports whether t is a known organization type
func (t OrganizationType) IsValid() bool {
	switch t {
	case OrganizationRestaurant, OrganizationCatering, OrganizationFoodTruck, OrganizationOther:
		return true
	}
	return false
}

// Organization is a host's business
type Organization struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Slug         string           `json:"slug"`
	Type         OrganizationType `json:"type"`
	Description  string           `json:"description,omitempty"`
	ContactEmail string           `json:"contact_email"`
	ContactPhone string           `json:"contact_phone"`
	IsActive     bool             `json:"is_active"`
	LocationRefs []LocationRef    `json:"location_refs"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Address is a venue's postal address
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// ContactInfo holds optional venue contact details
type ContactInfo struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Capacity bounds the guests a venue accepts
type Capacity struct {
	MinGuests *int `json:"min_guests,omitempty"`
	MaxGuests *int `json:"max_guests,omitempty"`
}

// Venue is a physical location of an organization
type Venue struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Slug            string       `json:"slug"`
	OrganizationRef string       `json:"organization_ref"`
	IsMain          bool         `json:"is_main"`
	Description     string       `json:"description,omitempty"`
	Address         Address      `json:"address"`
	ContactInfo     *ContactInfo `json:"contact_info,omitempty"`
	Capacity        *Capacity    `json:"capacity,omitempty"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// PersonalInfo is the first onboarding step
type PersonalInfo struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Password       string `json:"-"`
	Phone          string `json:"phone"`
	DocumentType   string `json:"document_type,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
}

// FullName joins first and last name
func (p PersonalInfo) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// OrganizationInfo is the second onboarding step
type OrganizationInfo struct {
	Name         string           `json:"name"`
	Type         OrganizationType `json:"type"`
	Description  string           `json:"description,omitempty"`
	ContactEmail string           `json:"contact_email"`
	ContactPhone string           `json:"contact_phone"`
}

// VenueInfo is the third onboarding step
type VenueInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Address     Address      `json:"address"`
	ContactInfo *ContactInfo `json:"contact_info,omitempty"`
	Capacity    *Capacity    `json:"capacity,omitempty"`
}

// HostOnboarding is the result of a completed host onboarding
type HostOnboarding struct {
	Profile      *Profile      `json:"profile"`
	Organization *Organization `json:"organization"`
	Venue        *Venue        `json:"venue"`
}
