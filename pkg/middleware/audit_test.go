package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelpublicista/tenemos-filo-api/pkg/session"
)

func TestDefaultActionMapper(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		expected AuditAction
	}{
		{"register", "POST", "/api/v1/auth/register", AuditActionRegister},
		{"login", "POST", "/api/v1/auth/login", AuditActionLogin},
		{"logout", "POST", "/api/v1/auth/logout", AuditActionLogout},
		{"password reset", "POST", "/api/v1/auth/password-reset", AuditActionPasswordReset},
		{"host onboarding", "POST", "/api/v1/onboarding/host", AuditActionOnboard},
		{"wizard step", "PUT", "/api/v1/onboarding/wizard/abc/steps/2", AuditActionWizardStep},
		{"wizard submit", "POST", "/api/v1/onboarding/wizard/abc/submit", AuditActionWizardSubmit},
		{"email", "POST", "/api/email", AuditActionSendEmail},
		{"POST creates", "POST", "/api/v1/onboarding/wizard", AuditActionCreate},
		{"DELETE deletes", "DELETE", "/api/v1/things/1", AuditActionDelete},
		{"GET views", "GET", "/api/v1/me", AuditActionView},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, defaultActionMapper(tt.method, tt.path))
		})
	}
}

func TestDefaultResourceExtractor(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		expectedType string
		expectedID   string
	}{
		{"object id", "/api/v1/organizations/65f1c2a9e4b0a1b2c3d4e5f6/venues", "organization", "65f1c2a9e4b0a1b2c3d4e5f6"},
		{"collection", "/api/v1/onboarding/wizard", "onboarding", ""},
		{"plain", "/api/v1/auth/register", "auth", ""},
		{"email", "/api/email", "email", ""},
		{"empty", "/", "unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, rid := defaultResourceExtractor(tt.path)
			assert.Equal(t, tt.expectedType, rt)
			assert.Equal(t, tt.expectedID, rid)
		})
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	input := map[string]any{
		"email":    "ana@example.com",
		"password": "secret123",
		"personal": map[string]any{"name": "Ana", "token": "t"},
	}

	got := maskSensitiveFields(input, []string{"password", "token"})

	assert.Equal(t, "ana@example.com", got["email"])
	assert.Equal(t, "[REDACTED]", got["password"])
	assert.Equal(t, map[string]any{"name": "Ana", "token": "[REDACTED]"}, got["personal"])
	assert.Nil(t, maskSensitiveFields(nil, nil))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"}, "127.0.0.1:8080", "192.168.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "192.168.1.2"}, "127.0.0.1:8080", "192.168.1.2"},
		{"remote addr", nil, "192.168.1.3:12345", "192.168.1.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, getClientIP(c))
		})
	}
}

func newTestAuditLogger(sink AuditSink) *AuditLogger {
	cfg := DefaultAuditConfig(sink)
	cfg.FlushInterval = 50 * time.Millisecond
	return NewAuditLogger(cfg)
}

func TestAuditLogger_FlushOnClose(t *testing.T) {
	sink := &MemoryAuditSink{}
	al := NewAuditLogger(&AuditConfig{Sink: sink, FlushInterval: time.Hour})

	al.Log(&AuditEntry{ID: "a", Action: AuditActionRegister})
	al.Log(&AuditEntry{ID: "b", Action: AuditActionLogin})
	require.NoError(t, al.Close())

	entries := sink.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
}

func TestAuditLogger_BufferFull(t *testing.T) {
	sink := &MemoryAuditSink{}
	al := NewAuditLogger(&AuditConfig{Sink: sink, BufferSize: 1, FlushInterval: time.Hour, BatchSize: 100})

	for i := 0; i < 50; i++ {
		al.Log(&AuditEntry{ID: "x"})
	}
	require.NoError(t, al.Close())

	assert.Equal(t, int64(50), int64(len(sink.Entries()))+al.Dropped())
}

func TestAuditMiddleware(t *testing.T) {
	sink := &MemoryAuditSink{}
	al := newTestAuditLogger(sink)

	router := gin.New()
	router.Use(RequestID())
	router.Use(func(c *gin.Context) {
		c.Set(ContextKeySession, &session.Session{SubjectID: "uid-1", Email: "ana@example.com", Role: "host"})
		c.Next()
	})
	router.Use(AuditMiddleware(al))
	router.POST("/api/v1/auth/register", func(c *gin.Context) {
		SetAuditResource(c, "profile", "p-1")
		c.Status(http.StatusCreated)
	})
	router.GET("/api/v1/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/v1/auth/logout", func(c *gin.Context) {
		SkipAudit(c)
		c.Status(http.StatusOK)
	})

	body := `{"email":"ana@example.com","password":"hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "TestAgent/1.0")
	router.ServeHTTP(httptest.NewRecorder(), req)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))

	require.NoError(t, al.Close())

	entries := sink.Entries()
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, AuditActionRegister, e.Action)
	assert.Equal(t, "profile", e.ResourceType)
	assert.Equal(t, "p-1", e.ResourceID)
	assert.Equal(t, http.StatusCreated, e.Status)
	assert.Equal(t, "uid-1", e.SubjectID)
	assert.Equal(t, "host", e.UserRole)
	assert.Equal(t, "TestAgent/1.0", e.UserAgent)
	assert.NotEmpty(t, e.RequestID)
	assert.Equal(t, "[REDACTED]", e.Payload["password"])
	assert.Equal(t, "ana@example.com", e.Payload["email"])
}
