package wizard

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/dto"
)

// State is a wizard draft state
type State string

const (
	StateStep1      State = "step1"
	StateStep2      State = "step2"
	StateStep3      State = "step3"
	StateSubmitting State = "submitting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

var (
	// ErrDraftNotFound is returned for unknown or expired drafts
	ErrDraftNotFound = errors.New("wizard draft not found")
	// ErrInvalidTransition is returned when an action does not apply to the draft state
	ErrInvalidTransition = errors.New("invalid wizard transition")
	// ErrIncompleteDraft is returned when submitting before all three steps are stored
	ErrIncompleteDraft = errors.New("wizard draft is incomplete")
)

// Draft is the server-side buffer of the three-step host form
type Draft struct {
	ID           string                       `json:"id"`
	State        State                        `json:"state"`
	Personal     *dto.WizardPersonalRequest   `json:"personal,omitempty"`
	Organization *dto.OrganizationInfoRequest `json:"organization,omitempty"`
	Venue        *dto.VenueInfoRequest        `json:"venue,omitempty"`
	LastError    string                       `json:"last_error,omitempty"`
	SagaID       string                       `json:"saga_id,omitempty"`
	Result       *domain.HostOnboarding       `json:"result,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
}

// NewDraft creates a draft on step 1
func NewDraft(now time.Time) *Draft {
	return &Draft{
		ID:        uuid.New().String(),
		State:     StateStep1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CurrentStep is the form step to display. Submitting, failed and done drafts stay on step 3.
func (d *Draft) CurrentStep() int {
	switch d.State {
	case StateStep1:
		return 1
	case StateStep2:
		return 2
	}
	return 3
}

func (d *Draft) transition(from []State, to State) error {
	for _, s := range from {
		if d.State == s {
			d.State = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, d.State, to)
}

// SetPersonal stores step 1 and advances to step 2
func (d *Draft) SetPersonal(p *dto.WizardPersonalRequest) error {
	if err := d.transition([]State{StateStep1}, StateStep2); err != nil {
		return err
	}
	d.Personal = p
	return nil
}

// SetOrganization stores step 2 and advances to step 3
func (d *Draft) SetOrganization(o *dto.OrganizationInfoRequest) error {
	if err := d.transition([]State{StateStep2}, StateStep3); err != nil {
		return err
	}
	d.Organization = o
	return nil
}

// SetVenue stores step 3. The draft stays on step 3 until submitted. A failed
// draft returns to step 3 so the venue can be corrected before submitting again.
func (d *Draft) SetVenue(v *dto.VenueInfoRequest) error {
	if err := d.transition([]State{StateStep3, StateFailed}, StateStep3); err != nil {
		return err
	}
	d.Venue = v
	return nil
}

// Back returns to the previous step, keeping stored payloads
func (d *Draft) Back() error {
	switch d.State {
	case StateStep2:
		d.State = StateStep1
	case StateStep3, StateFailed:
		d.State = StateStep2
	default:
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, d.State)
	}
	return nil
}

// BeginSubmit moves a complete step 3 draft, or a failed one, to submitting
func (d *Draft) BeginSubmit() error {
	if d.State == StateStep3 && (d.Personal == nil || d.Organization == nil || d.Venue == nil) {
		return ErrIncompleteDraft
	}
	return d.transition([]State{StateStep3, StateFailed}, StateSubmitting)
}

// Succeed records the onboarding result
func (d *Draft) Succeed(result *domain.HostOnboarding) error {
	if err := d.transition([]State{StateSubmitting}, StateDone); err != nil {
		return err
	}
	d.Result = result
	d.LastError = ""
	return nil
}

// Fail records the translated backend error
func (d *Draft) Fail(message, sagaID string) error {
	if err := d.transition([]State{StateSubmitting}, StateFailed); err != nil {
		return err
	}
	d.LastError = message
	if sagaID != "" {
		d.SagaID = sagaID
	}
	return nil
}
