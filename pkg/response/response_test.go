package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSuccess_JSONFormat(t *testing.T) {
	resp := Success(map[string]string{"id": "123"})

	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if parsed["success"] != true {
		t.Errorf("Expected success=true, got %v", parsed["success"])
	}
	if _, ok := parsed["error"]; ok {
		t.Error("Expected error field to be omitted")
	}
}

func TestErrorWithDetails(t *testing.T) {
	resp := ErrorWithDetails(ErrCodeOnboardingFailed, "fallo", map[string]string{"stage": "venue"})

	if resp.Success {
		t.Error("Expected success to be false")
	}
	if resp.Error.Code != ErrCodeOnboardingFailed {
		t.Errorf("Code = %q, want %q", resp.Error.Code, ErrCodeOnboardingFailed)
	}
	if resp.Error.Details["stage"] != "venue" {
		t.Errorf("Details[stage] = %q, want %q", resp.Error.Details["stage"], "venue")
	}
}

func TestDefaultMessages(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		code string
	}{
		{"unauthorized", Unauthorized(""), ErrCodeUnauthorized},
		{"forbidden", Forbidden(""), ErrCodeForbidden},
		{"not found", NotFound(""), ErrCodeNotFound},
		{"internal", InternalError(""), ErrCodeInternalError},
		{"too many", TooManyRequests(""), ErrCodeTooManyRequests},
		{"unavailable", ServiceUnavailable(""), ErrCodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.resp.Error.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.resp.Error.Code, tt.code)
			}
			if tt.resp.Error.Message == "" {
				t.Error("Expected a default message")
			}
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{ErrCodeDuplicateEmail, http.StatusConflict},
		{ErrCodeDuplicateDocument, http.StatusConflict},
		{ErrCodeProfileCreateFailed, http.StatusInternalServerError},
		{ErrCodeOnboardingFailed, http.StatusInternalServerError},
		{ErrCodeUserNotFound, http.StatusNotFound},
		{ErrCodeAccountPending, http.StatusForbidden},
		{ErrCodeSessionExpired, http.StatusUnauthorized},
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := GetHTTPStatus(tt.code); got != tt.status {
				t.Errorf("GetHTTPStatus(%q) = %d, want %d", tt.code, got, tt.status)
			}
		})
	}
}

func TestWrite_UsesCodeStatus(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Write(c, Error(ErrCodeAccountPending, "Tu cuenta está pendiente de activación"))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}

	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to unmarshal body: %v", err)
	}
	if body.Error == nil || body.Error.Code != ErrCodeAccountPending {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestAbort_StopsChain(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Abort(c, Unauthorized(""))

	if !c.IsAborted() {
		t.Error("Expected context to be aborted")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
