package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

// FirebaseConfig configures the Identity Toolkit REST client
type FirebaseConfig struct {
	BaseURL string
	APIKey  string
	// AdminToken is an OAuth2 bearer token for privileged calls (delete, revoke)
	AdminToken string
	Timeout    time.Duration
}

// FirebaseProvider implements Provider over the Identity Toolkit REST API
type FirebaseProvider struct {
	cfg    FirebaseConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	now    func() time.Time
}

// NewFirebaseProvider creates a new FirebaseProvider
func NewFirebaseProvider(cfg FirebaseConfig) *FirebaseProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://identitytoolkit.googleapis.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &FirebaseProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:  CircuitBreaker("identity"),
		now: time.Now,
	}
}

// CircuitBreaker trips after three consecutive failures. Client errors (4xx)
// are answers, not outages, and count as successes.
func CircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		Interval:    0,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 2
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Get().Named("identity").Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var e *Error
			return errors.As(err, &e) && e.Status >= 400 && e.Status < 500
		},
	})
}

type signUpResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

// CreateAccount calls accounts:signUp
func (p *FirebaseProvider) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	ctx, span := telemetry.StartSpan(ctx, "identity.create_account")
	defer span.End()

	var out signUpResponse
	body := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	if err := p.call(ctx, "accounts:signUp", body, false, &out); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &Account{SubjectID: out.LocalID, Email: out.Email}, nil
}

// DeleteAccount calls accounts:delete with admin credentials. An account
// that is already gone counts as deleted.
func (p *FirebaseProvider) DeleteAccount(ctx context.Context, subjectID string) error {
	ctx, span := telemetry.StartSpan(ctx, "identity.delete_account")
	defer span.End()

	err := p.call(ctx, "accounts:delete", map[string]any{"localId": subjectID}, true, nil)
	if CodeOf(err) == CodeUserNotFound {
		return nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

// SignIn calls accounts:signInWithPassword
func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*Account, error) {
	ctx, span := telemetry.StartSpan(ctx, "identity.sign_in")
	defer span.End()

	var out signUpResponse
	body := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	if err := p.call(ctx, "accounts:signInWithPassword", body, false, &out); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &Account{SubjectID: out.LocalID, Email: out.Email}, nil
}

// SignOut revokes refresh tokens by moving validSince to now
func (p *FirebaseProvider) SignOut(ctx context.Context, subjectID string) error {
	ctx, span := telemetry.StartSpan(ctx, "identity.sign_out")
	defer span.End()

	body := map[string]any{
		"localId":    subjectID,
		"validSince": strconv.FormatInt(p.now().Unix(), 10),
	}
	if err := p.call(ctx, "accounts:update", body, true, nil); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

// SendPasswordReset calls accounts:sendOobCode with PASSWORD_RESET
func (p *FirebaseProvider) SendPasswordReset(ctx context.Context, email string) error {
	ctx, span := telemetry.StartSpan(ctx, "identity.send_password_reset")
	defer span.End()

	body := map[string]any{"requestType": "PASSWORD_RESET", "email": email}
	if err := p.call(ctx, "accounts:sendOobCode", body, false, nil); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

type restErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) call(ctx context.Context, method string, body any, admin bool, out any) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.do(ctx, method, body, admin, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Code: CodeServiceUnavailable, Message: err.Error()}
	}
	return err
}

func (p *FirebaseProvider) do(ctx context.Context, method string, body any, admin bool, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/%s?key=%s", p.cfg.BaseURL, method, p.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if admin && p.cfg.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.AdminToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode >= 300 {
		var restErr restErrorResponse
		_ = json.Unmarshal(raw, &restErr)
		return &Error{
			Code:    codeFromREST(restErr.Error.Message, resp.StatusCode),
			Message: restErr.Error.Message,
			Status:  resp.StatusCode,
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", method, err)
		}
	}
	return nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Code: CodeTimeout, Message: err.Error()}
	}
	return &Error{Code: CodeNetworkRequestFailed, Message: err.Error()}
}
