package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is a profile role
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleGuest, RoleHost, RoleAdmin:
		return true
	}
	return false
}

// Label returns the Spanish display label used in emails
func (r Role) Label() string {
	if r == RoleHost {
		return "Anfitrión"
	}
	return "Comensal"
}

// LocationRef points at a venue. Key is unique per array entry.
type LocationRef struct {
	Key string `json:"key"`
	Ref string `json:"ref"`
}

// NewLocationRef creates a reference to venueID with a fresh key
func NewLocationRef(venueID string) LocationRef {
	return LocationRef{Key: uuid.New().String(), Ref: venueID}
}

// Profile is the domain record of a registered user, keyed by the identity subject
type Profile struct {
	ID             string        `json:"id"`
	SubjectID      string        `json:"subject_id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Role           Role          `json:"role"`
	Phone          string        `json:"phone,omitempty"`
	DocumentType   string        `json:"document_type,omitempty"`
	DocumentNumber string        `json:"document_number,omitempty"`
	IsActive       bool          `json:"is_active"`
	LocationRefs   []LocationRef `json:"location_refs"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ProfileFields are the caller-supplied attributes of a new profile
type ProfileFields struct {
	Name           string
	Role           Role
	Phone          string
	DocumentType   string
	DocumentNumber string
}

// Normalize trims every field. Phone numbers are accepted as given.
func (f ProfileFields) Normalize() ProfileFields {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.DocumentType = strings.TrimSpace(f.DocumentType)
	f.DocumentNumber = strings.TrimSpace(f.DocumentNumber)
	if f.Role == "" {
		f.Role = RoleGuest
	}
	return f
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
