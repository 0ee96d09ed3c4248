package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "Error desconocido"},
		{"email in use code", &Error{Code: CodeEmailAlreadyInUse}, "Ya existe una cuenta con este correo electrónico."},
		{"user not found code", &Error{Code: CodeUserNotFound}, "Credenciales incorrectas. Verifica tu email y contraseña."},
		{"wrong password code", &Error{Code: CodeWrongPassword}, "Credenciales incorrectas. Verifica tu email y contraseña."},
		{"invalid credential code", &Error{Code: CodeInvalidCredential}, "Credenciales incorrectas. Verifica tu email y contraseña."},
		{"service unavailable", &Error{Code: CodeServiceUnavailable}, "El servicio no está disponible temporalmente."},
		{"bare code string", errors.New("auth/user-disabled"), "Esta cuenta ha sido deshabilitada."},
		{"wrapped provider error", fmt.Errorf("sign in: %w", &Error{Code: CodeTimeout}), "La operación ha expirado. Intenta de nuevo."},
		{"partial weak password", errors.New("Password should be at least 6 characters"), "La contraseña debe tener al menos 6 caracteres."},
		{"partial badly formatted", errors.New("The email address is badly formatted."), "El formato del correo electrónico no es válido."},
		{"partial network", errors.New("dial tcp: connection refused"), "Error de conexión. Verifica tu conexión a internet."},
		{"partial too many", errors.New("Firebase: Error (auth/too-many-requests)."), "Demasiados intentos fallidos. Intenta de nuevo más tarde."},
		{"partial email in use", errors.New("Firebase: Error (auth/email-already-in-use)."), "Ya existe una cuenta con este correo electrónico."},
		{"domain passthrough", &domain.DuplicateError{Field: domain.FieldDocumentNumber}, "Ya existe un usuario registrado con este número de documento"},
		{"pending passthrough", domain.ErrAccountPending, "Tu cuenta está pendiente de activación"},
		{"fallback", errors.New("boom"), "Ha ocurrido un error. Por favor, intenta de nuevo."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Translate(tt.err))
		})
	}
}

func TestCodeFromREST(t *testing.T) {
	tests := []struct {
		message string
		status  int
		want    string
	}{
		{"EMAIL_EXISTS", 400, CodeEmailAlreadyInUse},
		{"WEAK_PASSWORD : Password should be at least 6 characters", 400, CodeWeakPassword},
		{"INVALID_LOGIN_CREDENTIALS", 400, CodeInvalidCredential},
		{"EMAIL_NOT_FOUND", 400, CodeUserNotFound},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled", 400, CodeTooManyRequests},
		{"API key not valid. Please pass a valid API key.", 400, CodeInvalidAPIKey},
		{"SOMETHING_NEW", 400, "auth/something-new"},
		{"", 503, CodeInternalError},
		{"BACKEND_ERROR", 500, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, codeFromREST(tt.message, tt.status))
		})
	}
}

func writeRESTError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func TestFirebaseProvider_CreateAndSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch {
		case strings.HasSuffix(r.URL.Path, "accounts:signUp"):
			if body["email"] == "taken@example.com" {
				writeRESTError(w, http.StatusBadRequest, "EMAIL_EXISTS")
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"localId": "uid-1", "email": body["email"].(string)})
		case strings.HasSuffix(r.URL.Path, "accounts:signInWithPassword"):
			_ = json.NewEncoder(w).Encode(map[string]string{"localId": "uid-1", "email": body["email"].(string)})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewFirebaseProvider(FirebaseConfig{BaseURL: srv.URL, APIKey: "test-key"})
	ctx := context.Background()

	acc, err := p.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", acc.SubjectID)

	_, err = p.CreateAccount(ctx, "taken@example.com", "secret1")
	require.Error(t, err)
	assert.Equal(t, CodeEmailAlreadyInUse, CodeOf(err))
	assert.Equal(t, "Ya existe una cuenta con este correo electrónico.", Translate(err))

	acc, err = p.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", acc.SubjectID)
}

func TestFirebaseProvider_AdminCalls(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch {
		case strings.HasSuffix(r.URL.Path, "accounts:delete"):
			if body["localId"] == "gone" {
				writeRESTError(w, http.StatusBadRequest, "USER_NOT_FOUND")
				return
			}
			_, _ = w.Write([]byte(`{}`))
		case strings.HasSuffix(r.URL.Path, "accounts:update"):
			assert.NotEmpty(t, body["validSince"])
			_, _ = w.Write([]byte(`{}`))
		case strings.HasSuffix(r.URL.Path, "accounts:sendOobCode"):
			assert.Equal(t, "PASSWORD_RESET", body["requestType"])
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	p := NewFirebaseProvider(FirebaseConfig{BaseURL: srv.URL, APIKey: "k", AdminToken: "admin"})
	ctx := context.Background()

	require.NoError(t, p.DeleteAccount(ctx, "uid-1"))
	assert.Equal(t, "Bearer admin", gotAuth.Load())

	require.NoError(t, p.DeleteAccount(ctx, "gone"))
	require.NoError(t, p.SignOut(ctx, "uid-1"))
	require.NoError(t, p.SendPasswordReset(ctx, "ana@example.com"))
	assert.Equal(t, "", gotAuth.Load())
}

func TestFirebaseProvider_CircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeRESTError(w, http.StatusInternalServerError, "BACKEND_ERROR")
	}))
	defer srv.Close()

	p := NewFirebaseProvider(FirebaseConfig{BaseURL: srv.URL, APIKey: "k"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.SignIn(ctx, "a@example.com", "x")
		assert.Equal(t, CodeInternalError, CodeOf(err))
	}

	_, err := p.SignIn(ctx, "a@example.com", "x")
	assert.Equal(t, CodeServiceUnavailable, CodeOf(err))
	assert.Equal(t, int32(3), hits.Load())
}

func TestFirebaseProvider_ClientErrorsKeepBreakerClosed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeRESTError(w, http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS")
	}))
	defer srv.Close()

	p := NewFirebaseProvider(FirebaseConfig{BaseURL: srv.URL, APIKey: "k"})
	for i := 0; i < 5; i++ {
		_, err := p.SignIn(context.Background(), "a@example.com", "bad")
		assert.Equal(t, CodeInvalidCredential, CodeOf(err))
	}
	assert.Equal(t, int32(5), hits.Load())
}

func TestFirebaseProvider_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewFirebaseProvider(FirebaseConfig{BaseURL: url, APIKey: "k"})
	_, err := p.SignIn(context.Background(), "a@example.com", "x")
	assert.Equal(t, CodeNetworkRequestFailed, CodeOf(err))
	assert.Equal(t, "Error de conexión. Verifica tu conexión a internet.", Translate(err))
}

func TestMemoryProvider(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	acc, err := p.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.CreateAccount(ctx, "ana@example.com", "secret1")
	assert.Equal(t, CodeEmailAlreadyInUse, CodeOf(err))

	_, err = p.CreateAccount(ctx, "b@example.com", "123")
	assert.Equal(t, CodeWeakPassword, CodeOf(err))

	got, err := p.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, acc.SubjectID, got.SubjectID)

	_, err = p.SignIn(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, &Error{Code: CodeInvalidCredential})

	require.NoError(t, p.DeleteAccount(ctx, acc.SubjectID))
	assert.False(t, p.HasAccount("ana@example.com"))
	assert.Equal(t, 1, p.DeleteCalls())
	assert.Equal(t, 3, p.CreateCalls())
}
