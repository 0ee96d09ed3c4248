package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a session was revoked or has expired
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidToken is returned for malformed or badly signed tokens
	ErrInvalidToken = errors.New("invalid session token")
	// ErrTokenExpired is returned when the token exp claim has passed
	ErrTokenExpired = errors.New("session token expired")
)

// Session is the explicit per-user context created on sign-in and removed on sign-out
type Session struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	ProfileID string    `json:"profile_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Principal is the identity a session is issued for
type Principal struct {
	SubjectID string
	ProfileID string
	Email     string
	Role      string
}

// Store persists sessions
type Store interface {
	// Save stores s until ttl elapses
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	// Get loads a session, returning ErrSessionNotFound when absent
	Get(ctx context.Context, id string) (*Session, error)
	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

// Claims are the JWT claims of a session token
type Claims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// ManagerConfig holds session manager settings
type ManagerConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Manager issues, resolves and revokes sessions
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewManager creates a session manager
func NewManager(store Store, cfg ManagerConfig) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		store:  store,
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// Issue creates a session for p and returns its signed token
func (m *Manager) Issue(ctx context.Context, p Principal) (string, *Session, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.New().String(),
		SubjectID: p.SubjectID,
		ProfileID: p.ProfileID,
		Email:     p.Email,
		Role:      p.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return "", nil, fmt.Errorf("failed to save session: %w", err)
	}

	claims := Claims{
		SessionID: s.ID,
		Email:     s.Email,
		Role:      s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.SubjectID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		_ = m.store.Delete(ctx, s.ID)
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, s, nil
}

// Resolve verifies token and loads its live session
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	s, err := m.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if s.SubjectID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return s, nil
}

// Revoke deletes a session
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// TTL returns the session lifetime
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session carried by ctx
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
