package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/angelpublicista/tenemos-filo-api/internal/service"
	"github.com/angelpublicista/tenemos-filo-api/pkg/response"
)

// VenueHandler handles venue requests
type VenueHandler struct {
	venueService service.VenueService
}

// NewVenueHandler creates a new VenueHandler
func NewVenueHandler(venueService service.VenueService) *VenueHandler {
	return &VenueHandler{venueService: venueService}
}

// ListByOrganization handles GET /organizations/:id/venues
func (h *VenueHandler) ListByOrganization(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.Write(c, response.BadRequest("ID es requerido"))
		return
	}

	venues, err := h.venueService.ListByOrganization(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Write(c, response.Success(venues))
}
