package dto

// SendEmailRequest is the body of POST /api/email. Fields are checked per type by the handler.
type SendEmailRequest struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

// SendEmailResponse is returned when the email was accepted by the relay
type SendEmailResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// EmailErrorResponse is the error body of /api/email
type EmailErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
