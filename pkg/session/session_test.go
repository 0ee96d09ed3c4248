package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-sessions"

func newTestManager() (*Manager, *MemoryStore) {
	store := NewMemoryStore()
	return NewManager(store, ManagerConfig{Secret: testSecret, TTL: time.Hour, Issuer: "test"}), store
}

func TestManager_IssueAndResolve(t *testing.T) {
	m, store := newTestManager()
	ctx := context.Background()

	token, s, err := m.Issue(ctx, Principal{SubjectID: "uid-1", ProfileID: "p-1", Email: "a@example.com", Role: "guest"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, s.IssuedAt.Add(time.Hour), s.ExpiresAt)

	resolved, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, resolved.ID)
	assert.Equal(t, "p-1", resolved.ProfileID)
	assert.Equal(t, "guest", resolved.Role)
}

func TestManager_ResolveRevoked(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	token, s, err := m.Issue(ctx, Principal{SubjectID: "uid-1", Role: "host"})
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, s.ID))

	_, err = m.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_ResolveInvalid(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{
			"wrong secret",
			func() string {
				tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{SessionID: "x"}).SignedString([]byte("other"))
				return tok
			}(),
			ErrInvalidToken,
		},
		{
			"missing sid",
			func() string {
				tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte(testSecret))
				return tok
			}(),
			ErrInvalidToken,
		},
		{
			"expired",
			func() string {
				tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
					SessionID:        "x",
					RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
				}).SignedString([]byte(testSecret))
				return tok
			}(),
			ErrTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Resolve(ctx, tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Session{ID: "s1"}, time.Minute))

	_, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := &Session{ID: "s1"}
	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}
