package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// State represents the state of a provisioning saga
type State string

const (
	StateStarted             State = "STARTED"
	StateAccountCreated      State = "ACCOUNT_CREATED"
	StateProfileCreated      State = "PROFILE_CREATED"
	StateOrganizationCreated State = "ORGANIZATION_CREATED"
	StateVenueCreated        State = "VENUE_CREATED"
	StateOrganizationLinked  State = "ORGANIZATION_LINKED"
	StateCompensating        State = "COMPENSATING"
	StateAbandoned           State = "ABANDONED"

	StateCompleted   State = "COMPLETED"
	StateCompensated State = "COMPENSATED"
	StateRolledBack  State = "ROLLED_BACK"
	StateFailed      State = "FAILED"
)

// Kind distinguishes guest registrations from host onboardings
type Kind string

const (
	KindGuest Kind = "guest"
	KindHost  Kind = "host"
)

var (
	// ErrInvalidStateTransition is returned when a state transition is not allowed
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrStateNotFound is returned when a saga is not found
	ErrStateNotFound = errors.New("saga state not found")
	// ErrSagaExists is returned when saving a saga whose ID is already stored
	ErrSagaExists = errors.New("saga already exists")
)

// validTransitions lists the allowed next states per state.
// FAILED is additionally reachable from every non-terminal state through MarkFailed.
var validTransitions = map[State][]State{
	StateStarted:             {StateAccountCreated, StateFailed},
	StateAccountCreated:      {StateProfileCreated, StateCompensating, StateCompensated},
	StateCompensating:        {StateCompensated, StateProfileCreated, StateFailed},
	StateProfileCreated:      {StateCompleted, StateOrganizationCreated, StateAbandoned},
	StateOrganizationCreated: {StateVenueCreated, StateAbandoned},
	StateVenueCreated:        {StateOrganizationLinked, StateAbandoned},
	StateOrganizationLinked:  {StateCompleted, StateAbandoned},
	StateAbandoned:           {StateRolledBack},
	StateCompleted:           {},
	StateCompensated:         {},
	StateRolledBack:          {},
	StateFailed:              {},
}

// NonTerminalStates is the set of states the reconciler scans
var NonTerminalStates = []State{
	StateStarted,
	StateAccountCreated,
	StateCompensating,
	StateProfileCreated,
	StateOrganizationCreated,
	StateVenueCreated,
	StateOrganizationLinked,
	StateAbandoned,
}

// IsTerminal returns true if no further transition is possible
func (s State) IsTerminal() bool {
	next, ok := validTransitions[s]
	return ok && len(next) == 0
}

// IsValid returns true if the state is known
func (s State) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if transition to the target state is allowed
func (s State) CanTransitionTo(target State) bool {
	return slices.Contains(validTransitions[s], target)
}

// ProvisioningSaga is the durable record of one registration attempt
type ProvisioningSaga struct {
	ID             string         `json:"id"`
	Kind           Kind           `json:"kind"`
	Email          string         `json:"email"`
	State          State          `json:"state"`
	PreviousState  State          `json:"previous_state,omitempty"`
	SubjectID      string         `json:"subject_id,omitempty"`
	ProfileID      string         `json:"profile_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	VenueID        string         `json:"venue_id,omitempty"`
	FailedStage    string         `json:"failed_stage,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	RetryCount     int            `json:"retry_count"`
	Data           map[string]any `json:"data"`
	SupersededBy   string         `json:"superseded_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// IsParked returns true for a non-terminal saga that stopped on a recorded stage failure
func (s *ProvisioningSaga) IsParked() bool {
	return s.FailedStage != "" && !s.State.IsTerminal() && s.State != StateAbandoned
}

// DecodeData decodes the value stored under key into dst.
// It round-trips through JSON so it behaves the same for fresh and reloaded sagas.
func (s *ProvisioningSaga) DecodeData(key string, dst any) error {
	v, ok := s.Data[key]
	if !ok {
		return fmt.Errorf("saga data %q not found", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal saga data %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to unmarshal saga data %q: %w", key, err)
	}
	return nil
}

// StateTransition represents a state transition record
type StateTransition struct {
	ID        string    `json:"id"`
	SagaID    string    `json:"saga_id"`
	FromState State     `json:"from_state"`
	ToState   State     `json:"to_state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StateStore persists sagas and their transitions
type StateStore interface {
	// SaveSaga persists a new saga
	SaveSaga(ctx context.Context, saga *ProvisioningSaga) error
	// GetSaga retrieves a saga by ID
	GetSaga(ctx context.Context, id string) (*ProvisioningSaga, error)
	// GetLatestByEmail retrieves the most recently created saga of kind for email
	GetLatestByEmail(ctx context.Context, email string, kind Kind) (*ProvisioningSaga, error)
	// UpdateSaga updates an existing saga
	UpdateSaga(ctx context.Context, saga *ProvisioningSaga) error
	// SaveTransition persists a state transition
	SaveTransition(ctx context.Context, transition *StateTransition) error
	// GetTransitions retrieves all transitions for a saga, oldest first
	GetTransitions(ctx context.Context, sagaID string) ([]StateTransition, error)
	// GetStale retrieves sagas in one of states not updated since olderThan, oldest first
	GetStale(ctx context.Context, states []State, olderThan time.Time, limit int) ([]*ProvisioningSaga, error)
}

// StateMachine drives provisioning sagas through their states
type StateMachine struct {
	store StateStore
	now   func() time.Time
}

// NewStateMachine creates a new state machine
func NewStateMachine(store StateStore) *StateMachine {
	return &StateMachine{
		store: store,
		now:   time.Now,
	}
}

// Store returns the underlying store
func (sm *StateMachine) Store() StateStore {
	return sm.store
}

// Start creates a saga in STARTED state
func (sm *StateMachine) Start(ctx context.Context, kind Kind, email string, data map[string]any) (*ProvisioningSaga, error) {
	now := sm.now()
	if data == nil {
		data = make(map[string]any)
	}

	saga := &ProvisioningSaga{
		ID:        generateID(),
		Kind:      kind,
		Email:     email,
		State:     StateStarted,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := sm.store.SaveSaga(ctx, saga); err != nil {
		return nil, fmt.Errorf("failed to save saga: %w", err)
	}

	return saga, nil
}

// Restart creates a new saga that begins at PROFILE_CREATED for the account and profile of prev.
// data replaces the inputs stored on prev.
func (sm *StateMachine) Restart(ctx context.Context, prev *ProvisioningSaga, data map[string]any) (*ProvisioningSaga, error) {
	now := sm.now()
	if data == nil {
		data = make(map[string]any)
	}

	saga := &ProvisioningSaga{
		ID:        generateID(),
		Kind:      prev.Kind,
		Email:     prev.Email,
		State:     StateProfileCreated,
		SubjectID: prev.SubjectID,
		ProfileID: prev.ProfileID,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := sm.store.SaveSaga(ctx, saga); err != nil {
		return nil, fmt.Errorf("failed to save saga: %w", err)
	}

	transition := &StateTransition{
		ID:        generateID(),
		SagaID:    saga.ID,
		ToState:   StateProfileCreated,
		Reason:    "retry of " + prev.ID,
		Timestamp: now,
	}
	if err := sm.store.SaveTransition(ctx, transition); err != nil {
		return nil, fmt.Errorf("failed to save transition: %w", err)
	}

	return saga, nil
}

// TransitionTo moves the saga to newState. mutate, when non-nil, runs on the saga
// before it is written so field updates land with the state change.
func (sm *StateMachine) TransitionTo(ctx context.Context, sagaID string, newState State, reason string, mutate func(*ProvisioningSaga)) (*ProvisioningSaga, error) {
	saga, err := sm.store.GetSaga(ctx, sagaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get saga: %w", err)
	}

	if !saga.State.CanTransitionTo(newState) {
		return nil, fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStateTransition, saga.State, newState)
	}

	return sm.apply(ctx, saga, newState, reason, mutate)
}

func (sm *StateMachine) apply(ctx context.Context, saga *ProvisioningSaga, newState State, reason string, mutate func(*ProvisioningSaga)) (*ProvisioningSaga, error) {
	now := sm.now()
	transition := &StateTransition{
		ID:        generateID(),
		SagaID:    saga.ID,
		FromState: saga.State,
		ToState:   newState,
		Reason:    reason,
		Timestamp: now,
	}

	if err := sm.store.SaveTransition(ctx, transition); err != nil {
		return nil, fmt.Errorf("failed to save transition: %w", err)
	}

	saga.PreviousState = saga.State
	saga.State = newState
	saga.UpdatedAt = now
	if mutate != nil {
		mutate(saga)
	}
	if newState.IsTerminal() {
		saga.CompletedAt = &now
	}

	if err := sm.store.UpdateSaga(ctx, saga); err != nil {
		return nil, fmt.Errorf("failed to update saga: %w", err)
	}

	return saga, nil
}

// MarkAccountCreated records the identity subject
func (sm *StateMachine) MarkAccountCreated(ctx context.Context, sagaID, subjectID string) (*ProvisioningSaga, error) {
	return sm.TransitionTo(ctx, sagaID, StateAccountCreated, "identity account created", func(s *ProvisioningSaga) {
		s.SubjectID = subjectID
	})
}

// MarkProfileCreated records the profile
func (sm *StateMachine) MarkProfileCreated(ctx context.Context, sagaID, profileID string) (*ProvisioningSaga, error) {
	return sm.TransitionTo(ctx, sagaID, StateProfileCreated, "profile created", func(s *ProvisioningSaga) {
		s.ProfileID = profileID
	})
}

// MarkOrganizationCreated records the organization
func (sm *StateMachine) MarkOrganizationCreated(ctx context.Context, sagaID, organizationID string) (*ProvisioningSaga, error) {
	return sm.TransitionTo(ctx, sagaID, StateOrganizationCreated, "organization created", func(s *ProvisioningSaga) {
		s.OrganizationID = organizationID
		s.FailedStage = ""
		s.ErrorMessage = ""
	})
}

// MarkVenueCreated records the main venue
func (sm *StateMachine) MarkVenueCreated(ctx context.Context, sagaID, venueID string) (*ProvisioningSaga, error) {
	return sm.TransitionTo(ctx, sagaID, StateVenueCreated, "venue created", func(s *ProvisioningSaga) {
		s.VenueID = venueID
		s.FailedStage = ""
		s.ErrorMessage = ""
	})
}

// MarkOrganizationLinked records the organization back-reference patch
func (sm *StateMachine) MarkOrganizationLinked(ctx context.Context, sagaID string) (*ProvisioningSaga, error) {
	return sm.TransitionTo(ctx, sagaID, StateOrganizationLinked, "organization linked to venue", func(s *ProvisioningSaga) {
		s.FailedStage = ""
		s.ErrorMessage = ""
	})
}

// MarkCompleted finishes the saga
func (sm *StateMachine) MarkCompleted(ctx context.Context, sagaID, reason string) (*ProvisioningSaga, error) {
	return sm.TransitionTo(ctx, sagaID, StateCompleted, reason, func(s *ProvisioningSaga) {
		s.FailedStage = ""
		s.ErrorMessage = ""
	})
}

// MarkCompensating records that the account is being deleted after a profile failure
func (sm *StateMachine) MarkCompensating(ctx context.Context, sagaID, errorMessage string) (*ProvisioningSaga, error) {
	return sm.TransitionTo(ctx, sagaID, StateCompensating, "profile creation failed", func(s *ProvisioningSaga) {
		s.FailedStage = "profile"
		s.ErrorMessage = errorMessage
	})
}

// MarkCompensated records that the orphan account was deleted
func (sm *StateMachine) MarkCompensated(ctx context.Context, sagaID, reason string) (*ProvisioningSaga, error) {
	return sm.TransitionTo(ctx, sagaID, StateCompensated, reason, nil)
}

// MarkAbandoned records that a retry superseded this saga
func (sm *StateMachine) MarkAbandoned(ctx context.Context, sagaID, supersededBy string) (*ProvisioningSaga, error) {
	return sm.TransitionTo(ctx, sagaID, StateAbandoned, "superseded by "+supersededBy, func(s *ProvisioningSaga) {
		s.SupersededBy = supersededBy
	})
}

// MarkRolledBack records that the records of an abandoned saga were removed
func (sm *StateMachine) MarkRolledBack(ctx context.Context, sagaID string) (*ProvisioningSaga, error) {
	return sm.TransitionTo(ctx, sagaID, StateRolledBack, "abandoned records removed", nil)
}

// MarkFailed moves any non-terminal saga to FAILED with an error message
func (sm *StateMachine) MarkFailed(ctx context.Context, sagaID, errorMessage string) (*ProvisioningSaga, error) {
	saga, err := sm.store.GetSaga(ctx, sagaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get saga: %w", err)
	}

	if saga.State.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot transition from terminal state %s", ErrInvalidStateTransition, saga.State)
	}

	return sm.apply(ctx, saga, StateFailed, errorMessage, func(s *ProvisioningSaga) {
		s.ErrorMessage = errorMessage
	})
}

// RecordStageFailure stamps a failed stage on the saga without changing its state
func (sm *StateMachine) RecordStageFailure(ctx context.Context, sagaID, stage, errorMessage string) (*ProvisioningSaga, error) {
	saga, err := sm.store.GetSaga(ctx, sagaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get saga: %w", err)
	}

	saga.FailedStage = stage
	saga.ErrorMessage = errorMessage
	saga.UpdatedAt = sm.now()
	if err := sm.store.UpdateSaga(ctx, saga); err != nil {
		return nil, fmt.Errorf("failed to update saga: %w", err)
	}
	return saga, nil
}

// IncrementRetry counts a failed recovery attempt
func (sm *StateMachine) IncrementRetry(ctx context.Context, sagaID, errorMessage string) (*ProvisioningSaga, error) {
	saga, err := sm.store.GetSaga(ctx, sagaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get saga: %w", err)
	}

	saga.RetryCount++
	saga.ErrorMessage = errorMessage
	saga.UpdatedAt = sm.now()
	if err := sm.store.UpdateSaga(ctx, saga); err != nil {
		return nil, fmt.Errorf("failed to update saga: %w", err)
	}
	return saga, nil
}

// GetSaga retrieves a saga by ID
func (sm *StateMachine) GetSaga(ctx context.Context, sagaID string) (*ProvisioningSaga, error) {
	return sm.store.GetSaga(ctx, sagaID)
}

// GetLatestByEmail retrieves the newest saga of kind for email
func (sm *StateMachine) GetLatestByEmail(ctx context.Context, email string, kind Kind) (*ProvisioningSaga, error) {
	return sm.store.GetLatestByEmail(ctx, email, kind)
}

// GetTransitionHistory retrieves all transitions for a saga
func (sm *StateMachine) GetTransitionHistory(ctx context.Context, sagaID string) ([]StateTransition, error) {
	return sm.store.GetTransitions(ctx, sagaID)
}

// GetStale retrieves non-terminal sagas untouched for at least staleAfter
func (sm *StateMachine) GetStale(ctx context.Context, staleAfter time.Duration, limit int) ([]*ProvisioningSaga, error) {
	return sm.store.GetStale(ctx, NonTerminalStates, sm.now().Add(-staleAfter), limit)
}

func generateID() string {
	return uuid.New().String()
}
