package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the saga tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS provisioning_sagas (
	id              UUID PRIMARY KEY,
	kind            VARCHAR(16)  NOT NULL,
	email           VARCHAR(320) NOT NULL,
	state           VARCHAR(32)  NOT NULL,
	previous_state  VARCHAR(32),
	subject_id      TEXT,
	profile_id      TEXT,
	organization_id TEXT,
	venue_id        TEXT,
	failed_stage    VARCHAR(32),
	error_message   TEXT,
	retry_count     INT          NOT NULL DEFAULT 0,
	data            JSONB        NOT NULL DEFAULT '{}',
	superseded_by   UUID,
	created_at      TIMESTAMPTZ  NOT NULL,
	updated_at      TIMESTAMPTZ  NOT NULL,
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_provisioning_sagas_email_kind
	ON provisioning_sagas (email, kind, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_provisioning_sagas_state_updated
	ON provisioning_sagas (state, updated_at);

CREATE TABLE IF NOT EXISTS provisioning_transitions (
	id         UUID PRIMARY KEY,
	saga_id    UUID        NOT NULL REFERENCES provisioning_sagas (id),
	from_state VARCHAR(32),
	to_state   VARCHAR(32) NOT NULL,
	reason     TEXT,
	timestamp  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_provisioning_transitions_saga
	ON provisioning_transitions (saga_id, timestamp);
`

const sagaColumns = `id, kind, email, state, previous_state, subject_id, profile_id,
	organization_id, venue_id, failed_stage, error_message, retry_count, data,
	superseded_by, created_at, updated_at, completed_at`

// DBTX is the subset of pgxpool.Pool used by the store
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStateStore implements StateStore using PostgreSQL
type PostgresStateStore struct {
	db DBTX
}

// NewPostgresStateStore creates a new PostgreSQL-based state store
func NewPostgresStateStore(db DBTX) *PostgresStateStore {
	return &PostgresStateStore{db: db}
}

// EnsureSchema creates the saga tables if they do not exist
func (s *PostgresStateStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create saga schema: %w", err)
	}
	return nil
}

// nullable maps the empty string to SQL NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SaveSaga persists a new saga instance
func (s *PostgresStateStore) SaveSaga(ctx context.Context, saga *ProvisioningSaga) error {
	dataJSON, err := json.Marshal(saga.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal saga data: %w", err)
	}

	query := `INSERT INTO provisioning_sagas (` + sagaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = s.db.Exec(ctx, query,
		saga.ID,
		string(saga.Kind),
		saga.Email,
		string(saga.State),
		nullable(string(saga.PreviousState)),
		nullable(saga.SubjectID),
		nullable(saga.ProfileID),
		nullable(saga.OrganizationID),
		nullable(saga.VenueID),
		nullable(saga.FailedStage),
		nullable(saga.ErrorMessage),
		saga.RetryCount,
		dataJSON,
		nullable(saga.SupersededBy),
		saga.CreatedAt,
		saga.UpdatedAt,
		saga.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSagaExists
		}
		return fmt.Errorf("failed to save saga: %w", err)
	}

	return nil
}

// GetSaga retrieves a saga by ID
func (s *PostgresStateStore) GetSaga(ctx context.Context, id string) (*ProvisioningSaga, error) {
	query := `SELECT ` + sagaColumns + ` FROM provisioning_sagas WHERE id = $1`
	return scanSaga(s.db.QueryRow(ctx, query, id))
}

// GetLatestByEmail retrieves the newest saga of kind for email
func (s *PostgresStateStore) GetLatestByEmail(ctx context.Context, email string, kind Kind) (*ProvisioningSaga, error) {
	query := `SELECT ` + sagaColumns + ` FROM provisioning_sagas
		WHERE email = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1`
	return scanSaga(s.db.QueryRow(ctx, query, email, string(kind)))
}

func scanSaga(row pgx.Row) (*ProvisioningSaga, error) {
	var saga ProvisioningSaga
	var kind, state string
	var previousState, subjectID, profileID, organizationID, venueID *string
	var failedStage, errorMessage, supersededBy *string
	var dataJSON []byte

	err := row.Scan(
		&saga.ID,
		&kind,
		&saga.Email,
		&state,
		&previousState,
		&subjectID,
		&profileID,
		&organizationID,
		&venueID,
		&failedStage,
		&errorMessage,
		&saga.RetryCount,
		&dataJSON,
		&supersededBy,
		&saga.CreatedAt,
		&saga.UpdatedAt,
		&saga.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to scan saga: %w", err)
	}

	saga.Kind = Kind(kind)
	saga.State = State(state)
	saga.PreviousState = State(deref(previousState))
	saga.SubjectID = deref(subjectID)
	saga.ProfileID = deref(profileID)
	saga.OrganizationID = deref(organizationID)
	saga.VenueID = deref(venueID)
	saga.FailedStage = deref(failedStage)
	saga.ErrorMessage = deref(errorMessage)
	saga.SupersededBy = deref(supersededBy)

	saga.Data = make(map[string]any)
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &saga.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal saga data: %w", err)
		}
	}

	return &saga, nil
}

// UpdateSaga updates an existing saga instance
func (s *PostgresStateStore) UpdateSaga(ctx context.Context, saga *ProvisioningSaga) error {
	dataJSON, err := json.Marshal(saga.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal saga data: %w", err)
	}

	query := `
		UPDATE provisioning_sagas
		SET state = $2,
			previous_state = $3,
			subject_id = $4,
			profile_id = $5,
			organization_id = $6,
			venue_id = $7,
			failed_stage = $8,
			error_message = $9,
			retry_count = $10,
			data = $11,
			superseded_by = $12,
			updated_at = $13,
			completed_at = $14
		WHERE id = $1
	`

	result, err := s.db.Exec(ctx, query,
		saga.ID,
		string(saga.State),
		nullable(string(saga.PreviousState)),
		nullable(saga.SubjectID),
		nullable(saga.ProfileID),
		nullable(saga.OrganizationID),
		nullable(saga.VenueID),
		nullable(saga.FailedStage),
		nullable(saga.ErrorMessage),
		saga.RetryCount,
		dataJSON,
		nullable(saga.SupersededBy),
		saga.UpdatedAt,
		saga.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update saga: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrStateNotFound
	}

	return nil
}

// SaveTransition persists a state transition
func (s *PostgresStateStore) SaveTransition(ctx context.Context, transition *StateTransition) error {
	query := `
		INSERT INTO provisioning_transitions (id, saga_id, from_state, to_state, reason, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.Exec(ctx, query,
		transition.ID,
		transition.SagaID,
		nullable(string(transition.FromState)),
		string(transition.ToState),
		nullable(transition.Reason),
		transition.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}

	return nil
}

// GetTransitions retrieves all transitions for a saga
func (s *PostgresStateStore) GetTransitions(ctx context.Context, sagaID string) ([]StateTransition, error) {
	query := `
		SELECT id, saga_id, from_state, to_state, reason, timestamp
		FROM provisioning_transitions
		WHERE saga_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := s.db.Query(ctx, query, sagaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transitions: %w", err)
	}
	defer rows.Close()

	var transitions []StateTransition
	for rows.Next() {
		var t StateTransition
		var fromState, reason *string
		var toState string

		if err := rows.Scan(&t.ID, &t.SagaID, &fromState, &toState, &reason, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}

		t.FromState = State(deref(fromState))
		t.ToState = State(toState)
		t.Reason = deref(reason)
		transitions = append(transitions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return transitions, nil
}

// GetStale retrieves sagas in states not updated since olderThan
func (s *PostgresStateStore) GetStale(ctx context.Context, states []State, olderThan time.Time, limit int) ([]*ProvisioningSaga, error) {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}

	query := `SELECT ` + sagaColumns + ` FROM provisioning_sagas
		WHERE state = ANY($1) AND updated_at <= $2
		ORDER BY updated_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(ctx, query, names, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale sagas: %w", err)
	}
	defer rows.Close()

	var sagas []*ProvisioningSaga
	for rows.Next() {
		saga, err := scanSaga(rows)
		if err != nil {
			return nil, err
		}
		sagas = append(sagas, saga)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sagas: %w", err)
	}

	return sagas, nil
}
