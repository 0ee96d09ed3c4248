package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/angelpublicista/tenemos-filo-api/internal/dto"
	"github.com/angelpublicista/tenemos-filo-api/internal/service"
	"github.com/angelpublicista/tenemos-filo-api/internal/wizard"
	"github.com/angelpublicista/tenemos-filo-api/pkg/middleware"
	"github.com/angelpublicista/tenemos-filo-api/pkg/response"
)

// OnboardingHandler handles host onboarding, one-shot and through the wizard
type OnboardingHandler struct {
	onboarding service.OnboardingService
	wizard     *wizard.Service
}

// NewOnboardingHandler creates a new OnboardingHandler
func NewOnboardingHandler(onboarding service.OnboardingService, wizard *wizard.Service) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, wizard: wizard}
}

// OnboardHost handles POST /onboarding/host
func (h *OnboardingHandler) OnboardHost(c *gin.Context) {
	var req dto.HostOnboardingRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.onboarding.OnboardHost(c.Request.Context(),
		req.Personal.ToDomain(),
		req.Organization.ToDomain(),
		req.Venue.ToDomain(),
	)
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetAuditResource(c, "organization", result.Organization.ID)
	c.JSON(http.StatusCreated, response.Success(dto.NewHostOnboardingResponse(result)))
}

// CreateDraft handles POST /onboarding/wizard
func (h *OnboardingHandler) CreateDraft(c *gin.Context) {
	d, err := h.wizard.Create(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(h.wizard.Response(d)))
}

// GetDraft handles GET /onboarding/wizard/:id
func (h *OnboardingHandler) GetDraft(c *gin.Context) {
	d, err := h.wizard.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Write(c, response.Success(h.wizard.Response(d)))
}

// SaveStep handles PUT /onboarding/wizard/:id/steps/:step
func (h *OnboardingHandler) SaveStep(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		d   *wizard.Draft
		err error
	)
	switch c.Param("step") {
	case "1", "personal":
		var req dto.WizardPersonalRequest
		if !bindJSON(c, &req) {
			return
		}
		d, err = h.wizard.SavePersonal(ctx, id, &req)
	case "2", "organization":
		var req dto.OrganizationInfoRequest
		if !bindJSON(c, &req) {
			return
		}
		d, err = h.wizard.SaveOrganization(ctx, id, &req)
	case "3", "venue":
		var req dto.VenueInfoRequest
		if !bindJSON(c, &req) {
			return
		}
		d, err = h.wizard.SaveVenue(ctx, id, &req)
	default:
		response.Write(c, response.NotFound("Paso no válido"))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	response.Write(c, response.Success(h.wizard.Response(d)))
}

// Back handles POST /onboarding/wizard/:id/back
func (h *OnboardingHandler) Back(c *gin.Context) {
	d, err := h.wizard.Back(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Write(c, response.Success(h.wizard.Response(d)))
}

// Submit handles POST /onboarding/wizard/:id/submit
func (h *OnboardingHandler) Submit(c *gin.Context) {
	var req dto.WizardSubmitRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.wizard.Submit(c.Request.Context(), c.Param("id"), req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetAuditResource(c, "organization", d.Result.Organization.ID)
	c.JSON(http.StatusCreated, response.Success(h.wizard.Response(d)))
}
