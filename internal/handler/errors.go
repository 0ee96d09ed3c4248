package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/identity"
	"github.com/angelpublicista/tenemos-filo-api/internal/wizard"
	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
	"github.com/angelpublicista/tenemos-filo-api/pkg/response"
)

// bindJSON binds the request body, writing a validation response on failure
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if fields := wizard.FieldErrors(err); fields != nil {
			response.Write(c, response.ValidationFailed(fields))
			return false
		}
		response.Write(c, response.BadRequest("Cuerpo de la solicitud inválido"))
		return false
	}
	return true
}

// writeError maps workflow errors onto the response envelope
func writeError(c *gin.Context, err error) {
	var (
		dup   *domain.DuplicateError
		idErr *domain.IdentityError
		pce   *domain.ProfileCreateError
		oe    *domain.OnboardingError
		verr  *wizard.ValidationError
	)

	switch {
	case errors.As(err, &verr):
		response.Write(c, response.ValidationFailed(verr.Fields))
	case errors.As(err, &oe):
		response.Write(c, response.ErrorWithDetails(response.ErrCodeOnboardingFailed, oe.UserMessage(), map[string]string{
			"stage":   oe.Stage,
			"saga_id": oe.SagaID,
		}))
	case errors.As(err, &pce):
		// a unique index hit on insert is still a duplicate for the caller
		if errors.As(pce.Cause, &dup) {
			writeDuplicate(c, dup)
			return
		}
		response.Write(c, response.Error(response.ErrCodeProfileCreateFailed, pce.UserMessage()))
	case errors.As(err, &dup):
		writeDuplicate(c, dup)
	case errors.As(err, &idErr):
		c.JSON(identityStatus(idErr.Cause), response.Error(response.ErrCodeIdentityError, idErr.UserMessage()))
	case errors.Is(err, domain.ErrProfileNotFound):
		response.Write(c, response.Error(response.ErrCodeUserNotFound, "Usuario no encontrado"))
	case errors.Is(err, domain.ErrAccountPending):
		response.Write(c, response.Error(response.ErrCodeAccountPending, "Tu cuenta está pendiente de activación"))
	case errors.Is(err, wizard.ErrDraftNotFound):
		response.Write(c, response.NotFound("El registro no existe o ha expirado"))
	case errors.Is(err, domain.ErrOnboardingInProgress):
		response.Write(c, response.Error(response.ErrCodeInvalidState, domain.ErrOnboardingInProgress.UserMessage()))
	case errors.Is(err, wizard.ErrInvalidTransition), errors.Is(err, wizard.ErrIncompleteDraft):
		response.Write(c, response.Error(response.ErrCodeInvalidState, "Esta acción no está disponible en el paso actual"))
	default:
		logger.ErrorCtx(c.Request.Context(), "request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Write(c, response.InternalError(""))
	}
}

func writeDuplicate(c *gin.Context, dup *domain.DuplicateError) {
	code := response.ErrCodeDuplicateEmail
	if dup.Field == domain.FieldDocumentNumber {
		code = response.ErrCodeDuplicateDocument
	}
	response.Write(c, response.Error(code, dup.UserMessage()))
}

// identityStatus picks the HTTP status for an identity provider failure
func identityStatus(cause error) int {
	switch identity.CodeOf(cause) {
	case identity.CodeEmailAlreadyInUse:
		return http.StatusConflict
	case identity.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case identity.CodeServiceUnavailable, identity.CodeNetworkRequestFailed, identity.CodeTimeout, identity.CodeInternalError:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}
