package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/angelpublicista/tenemos-filo-api/internal/dto"
	"github.com/angelpublicista/tenemos-filo-api/internal/service"
	"github.com/angelpublicista/tenemos-filo-api/pkg/middleware"
	"github.com/angelpublicista/tenemos-filo-api/pkg/response"
)

// AuthHandler handles registration and session requests
type AuthHandler struct {
	provisioning service.ProvisioningService
	auth         service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(provisioning service.ProvisioningService, auth service.AuthService) *AuthHandler {
	return &AuthHandler{provisioning: provisioning, auth: auth}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterGuestRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.provisioning.Provision(c.Request.Context(), req.Email, req.Password, req.ProfileFields())
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetAuditResource(c, "profile", profile.ID)
	c.JSON(http.StatusCreated, response.Success(profile))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Write(c, response.Success(resp))
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	s, ok := middleware.GetSession(c)
	if !ok {
		response.Write(c, response.Unauthorized(""))
		return
	}

	if err := h.auth.SignOut(c.Request.Context(), s); err != nil {
		writeError(c, err)
		return
	}

	response.Write(c, response.Success(gin.H{"message": "Sesión cerrada"}))
}

// PasswordReset handles POST /auth/password-reset
func (h *AuthHandler) PasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.auth.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}

	response.Write(c, response.Success(gin.H{"message": "Te enviamos un correo para restablecer tu contraseña"}))
}

// Me handles GET /me
func (h *AuthHandler) Me(c *gin.Context) {
	s, ok := middleware.GetSession(c)
	if !ok {
		response.Write(c, response.Unauthorized(""))
		return
	}

	me, err := h.auth.Me(c.Request.Context(), s)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Write(c, response.Success(me))
}
