package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionRegister      AuditAction = "register"
	AuditActionOnboard       AuditAction = "onboard"
	AuditActionLogin         AuditAction = "login"
	AuditActionLogout        AuditAction = "logout"
	AuditActionPasswordReset AuditAction = "password_reset"
	AuditActionWizardStep    AuditAction = "wizard_step"
	AuditActionWizardSubmit  AuditAction = "wizard_submit"
	AuditActionSendEmail     AuditAction = "send_email"
	AuditActionCreate        AuditAction = "create"
	AuditActionUpdate        AuditAction = "update"
	AuditActionDelete        AuditAction = "delete"
	AuditActionView          AuditAction = "view"
)

// Context keys for audit data
const (
	ContextKeyAuditResourceType = "audit_resource_type"
	ContextKeyAuditResourceID   = "audit_resource_id"
	ContextKeyAuditMetadata     = "audit_metadata"
	contextKeyAuditSkip         = "audit_skip"
)

// AuditSchema creates the audit log table
const AuditSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id            UUID PRIMARY KEY,
    subject_id    TEXT,
    user_email    TEXT,
    user_role     TEXT,
    action        TEXT NOT NULL,
    resource_type TEXT NOT NULL,
    resource_id   TEXT,
    status        INT NOT NULL,
    ip_address    TEXT,
    user_agent    TEXT,
    request_id    TEXT,
    trace_id      TEXT,
    payload       JSONB,
    metadata      JSONB NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at);
CREATE INDEX IF NOT EXISTS idx_audit_logs_subject ON audit_logs (subject_id);
`

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	ID           string         `json:"id"`
	SubjectID    string         `json:"subject_id,omitempty"`
	UserEmail    string         `json:"user_email,omitempty"`
	UserRole     string         `json:"user_role,omitempty"`
	Action       AuditAction    `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Status       int            `json:"status"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	TraceID      string         `json:"trace_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditSink persists batches of audit entries
type AuditSink interface {
	WriteAudit(ctx context.Context, entries []*AuditEntry) error
}

// BatchSender is satisfied by *pgxpool.Pool and pgx.Tx
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresAuditSink writes entries to audit_logs in one pgx batch
type PostgresAuditSink struct {
	db BatchSender
}

// NewPostgresAuditSink creates a Postgres-backed audit sink
func NewPostgresAuditSink(db BatchSender) *PostgresAuditSink {
	return &PostgresAuditSink{db: db}
}

const insertAuditQuery = `
INSERT INTO audit_logs (
    id, subject_id, user_email, user_role, action, resource_type, resource_id,
    status, ip_address, user_agent, request_id, trace_id, payload, metadata, created_at
) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15)`

// WriteAudit inserts entries
func (s *PostgresAuditSink) WriteAudit(ctx context.Context, entries []*AuditEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		var payload []byte
		if e.Payload != nil {
			payload, _ = json.Marshal(e.Payload)
		}
		metadata := []byte("{}")
		if e.Metadata != nil {
			metadata, _ = json.Marshal(e.Metadata)
		}

		batch.Queue(insertAuditQuery,
			e.ID, e.SubjectID, e.UserEmail, e.UserRole, string(e.Action), e.ResourceType, e.ResourceID,
			e.Status, e.IPAddress, e.UserAgent, e.RequestID, e.TraceID, payload, metadata, e.CreatedAt,
		)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	var firstErr error
	for range entries {
		if _, err := br.Exec(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("failed to write audit batch: %w", firstErr)
	}
	return nil
}

// MemoryAuditSink collects entries in memory
type MemoryAuditSink struct {
	mu      sync.Mutex
	entries []*AuditEntry
}

// WriteAudit appends entries
func (s *MemoryAuditSink) WriteAudit(ctx context.Context, entries []*AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

// Entries returns a copy of the collected entries
func (s *MemoryAuditSink) Entries() []*AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// AuditConfig holds configuration for the audit middleware
type AuditConfig struct {
	Sink AuditSink
	// BufferSize is the size of the async buffer (default: 1000)
	BufferSize int
	// FlushInterval is how often the buffer is flushed (default: 5 seconds)
	FlushInterval time.Duration
	// BatchSize caps entries per write (default: 100)
	BatchSize int
	// SkipPaths are never audited
	SkipPaths []string
	// SkipMethods are never audited (default: GET, HEAD, OPTIONS)
	SkipMethods []string
	// ActionMapper maps method and path to an action
	ActionMapper func(method, path string) AuditAction
	// ResourceExtractor derives resource type and id from the path
	ResourceExtractor func(path string) (resourceType string, resourceID string)
	// CaptureBody stores the masked JSON request body as payload
	CaptureBody bool
	// MaxBodySize limits the captured body (default: 10KB)
	MaxBodySize int
	// SensitiveFields are masked in captured bodies
	SensitiveFields []string
}

// DefaultAuditConfig returns defaults for the registration API
func DefaultAuditConfig(sink AuditSink) *AuditConfig {
	return &AuditConfig{
		Sink:              sink,
		BufferSize:        1000,
		FlushInterval:     5 * time.Second,
		BatchSize:         100,
		SkipPaths:         []string{"/health", "/ready"},
		SkipMethods:       []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		ActionMapper:      defaultActionMapper,
		ResourceExtractor: defaultResourceExtractor,
		CaptureBody:       true,
		MaxBodySize:       10 * 1024,
		SensitiveFields:   []string{"password", "token", "secret", "api_key"},
	}
}

// AuditLogger buffers entries and writes them from a background goroutine
type AuditLogger struct {
	config    *AuditConfig
	buffer    chan *AuditEntry
	wg        sync.WaitGroup
	closeOnce sync.Once
	log       *logger.Logger
	dropped   int64
	droppedMu sync.Mutex
}

// NewAuditLogger creates an audit logger and starts its worker
func NewAuditLogger(config *AuditConfig) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 10 * 1024
	}

	al := &AuditLogger{
		config: config,
		buffer: make(chan *AuditEntry, config.BufferSize),
		log:    logger.Get().Named("audit"),
	}

	al.wg.Add(1)
	go al.worker()

	return al
}

// Log enqueues entry without blocking. Entries are dropped when the buffer is full.
func (al *AuditLogger) Log(entry *AuditEntry) {
	select {
	case al.buffer <- entry:
	default:
		al.droppedMu.Lock()
		al.dropped++
		al.droppedMu.Unlock()
	}
}

// Dropped returns the number of entries lost to a full buffer
func (al *AuditLogger) Dropped() int64 {
	al.droppedMu.Lock()
	defer al.droppedMu.Unlock()
	return al.dropped
}

// Close flushes pending entries and stops the worker
func (al *AuditLogger) Close() error {
	al.closeOnce.Do(func() {
		close(al.buffer)
		al.wg.Wait()
	})
	return nil
}

func (al *AuditLogger) worker() {
	defer al.wg.Done()

	ticker := time.NewTicker(al.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*AuditEntry, 0, al.config.BatchSize)

	for {
		select {
		case entry, ok := <-al.buffer:
			if !ok {
				al.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= al.config.BatchSize {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		}
	}
}

func (al *AuditLogger) flush(entries []*AuditEntry) {
	if len(entries) == 0 || al.config.Sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := al.config.Sink.WriteAudit(ctx, entries); err != nil {
		// audit must never block requests
		al.log.Warn("audit flush failed", zap.Int("entries", len(entries)), zap.Error(err))
	}
}

// AuditMiddleware records one entry per mutating request
func AuditMiddleware(al *AuditLogger) gin.HandlerFunc {
	config := al.config

	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if c.Request.URL.Path == path {
				c.Next()
				return
			}
		}
		for _, method := range config.SkipMethods {
			if c.Request.Method == method {
				c.Next()
				return
			}
		}

		var payload map[string]any
		if config.CaptureBody && c.Request.Body != nil {
			body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(config.MaxBodySize)))
			if err == nil && len(body) > 0 {
				c.Request.Body = io.NopCloser(bytes.NewReader(body))
				if json.Unmarshal(body, &payload) == nil {
					payload = maskSensitiveFields(payload, config.SensitiveFields)
				}
			}
		}

		startTime := time.Now()

		c.Next()

		if skip, ok := c.Get(contextKeyAuditSkip); ok && skip == true {
			return
		}

		entry := &AuditEntry{
			ID:        uuid.New().String(),
			Status:    c.Writer.Status(),
			Payload:   payload,
			CreatedAt: startTime,
		}

		if s, ok := GetSession(c); ok {
			entry.SubjectID = s.SubjectID
			entry.UserEmail = s.Email
			entry.UserRole = s.Role
		}

		if config.ActionMapper != nil {
			entry.Action = config.ActionMapper(c.Request.Method, c.Request.URL.Path)
		}
		if config.ResourceExtractor != nil {
			entry.ResourceType, entry.ResourceID = config.ResourceExtractor(c.Request.URL.Path)
		}

		if rt, ok := c.Get(ContextKeyAuditResourceType); ok {
			if s, ok := rt.(string); ok {
				entry.ResourceType = s
			}
		}
		if rid, ok := c.Get(ContextKeyAuditResourceID); ok {
			if s, ok := rid.(string); ok && s != "" {
				entry.ResourceID = s
			}
		}
		if meta, ok := c.Get(ContextKeyAuditMetadata); ok {
			if m, ok := meta.(map[string]any); ok {
				entry.Metadata = m
			}
		}

		entry.IPAddress = getClientIP(c)
		entry.UserAgent = c.GetHeader("User-Agent")
		entry.RequestID = c.GetString(ContextKeyRequestID)
		if entry.RequestID == "" {
			entry.RequestID = c.GetHeader(HeaderRequestID)
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			entry.TraceID = sc.TraceID().String()
		}

		al.Log(entry)
	}
}

func defaultActionMapper(method, path string) AuditAction {
	p := strings.ToLower(path)

	switch {
	case strings.HasSuffix(p, "/auth/register"):
		return AuditActionRegister
	case strings.HasSuffix(p, "/onboarding/host"):
		return AuditActionOnboard
	case strings.HasSuffix(p, "/auth/login"):
		return AuditActionLogin
	case strings.HasSuffix(p, "/auth/logout"):
		return AuditActionLogout
	case strings.HasSuffix(p, "/auth/password-reset"):
		return AuditActionPasswordReset
	case strings.Contains(p, "/wizard/") && strings.Contains(p, "/steps/"):
		return AuditActionWizardStep
	case strings.Contains(p, "/wizard/") && strings.HasSuffix(p, "/submit"):
		return AuditActionWizardSubmit
	case p == "/api/email":
		return AuditActionSendEmail
	}

	switch method {
	case http.MethodPost:
		return AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return AuditActionUpdate
	case http.MethodDelete:
		return AuditActionDelete
	default:
		return AuditActionView
	}
}

// defaultResourceExtractor maps /api/v1/organizations/<id>/venues to ("organization", "<id>")
func defaultResourceExtractor(path string) (resourceType string, resourceID string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	start := -1
	for i, part := range parts {
		if part == "api" || isVersionSegment(part) {
			continue
		}
		start = i
		break
	}
	if start < 0 || parts[start] == "" {
		return "unknown", ""
	}

	resourceType = strings.TrimSuffix(parts[start], "s")
	if start+1 < len(parts) && isValidID(parts[start+1]) {
		resourceID = parts[start+1]
	}
	return resourceType, resourceID
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isValidID accepts UUIDs and 24-char hex object ids
func isValidID(s string) bool {
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	if len(s) != 24 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

func getClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

func maskSensitiveFields(data map[string]any, sensitiveFields []string) map[string]any {
	if data == nil {
		return nil
	}

	result := make(map[string]any, len(data))
	for k, v := range data {
		lk := strings.ToLower(k)
		masked := false
		for _, sf := range sensitiveFields {
			if strings.Contains(lk, strings.ToLower(sf)) {
				result[k] = "[REDACTED]"
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			result[k] = maskSensitiveFields(nested, sensitiveFields)
		} else {
			result[k] = v
		}
	}
	return result
}

// SetAuditResource sets the audited resource from a handler
func SetAuditResource(c *gin.Context, resourceType, resourceID string) {
	c.Set(ContextKeyAuditResourceType, resourceType)
	c.Set(ContextKeyAuditResourceID, resourceID)
}

// SetAuditMetadata attaches metadata to the audit entry
func SetAuditMetadata(c *gin.Context, metadata map[string]any) {
	c.Set(ContextKeyAuditMetadata, metadata)
}

// SkipAudit marks the current request to skip audit logging
func SkipAudit(c *gin.Context) {
	c.Set(contextKeyAuditSkip, true)
}
