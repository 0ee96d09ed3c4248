package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/internal/dto"
	"github.com/angelpublicista/tenemos-filo-api/internal/service"
	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
)

// EmailHandler serves POST /api/email. Its bodies predate the response
// envelope and are kept as the front end reads them.
type EmailHandler struct {
	emailService service.EmailService
}

// NewEmailHandler creates a new EmailHandler
func NewEmailHandler(emailService service.EmailService) *EmailHandler {
	return &EmailHandler{emailService: emailService}
}

// Send handles POST /api/email
func (h *EmailHandler) Send(c *gin.Context) {
	var req dto.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.EmailErrorResponse{Error: "Email es requerido"})
		return
	}

	messageID, err := h.emailService.Send(c.Request.Context(), &req)
	if err != nil {
		var reqErr *service.EmailRequestError
		if errors.As(err, &reqErr) {
			c.JSON(http.StatusBadRequest, dto.EmailErrorResponse{Error: reqErr.Message})
			return
		}
		logger.ErrorCtx(c.Request.Context(), "email send failed", zap.String("type", req.Type), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.EmailErrorResponse{
			Error:   "Error enviando email",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.SendEmailResponse{
		Success:   true,
		Message:   "Email enviado exitosamente",
		MessageID: messageID,
	})
}
