package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/covidroom/internal/errors"
	"github.com/stwalsh4118/covidroom/internal/middleware"
	"github.com/stwalsh4118/covidroom/internal/services"
)

// MapHandler serves the map view: the derived layer and pointer interaction.
type MapHandler struct {
	service services.MapService
}

// NewMapHandler creates a new MapHandler instance.
func NewMapHandler(service services.MapService) *MapHandler {
	return &MapHandler{service: service}
}

// PointRequest is a pointer position. Pointers keep 0 distinguishable from
// a missing coordinate.
type PointRequest struct {
	Lat *float64 `json:"lat" binding:"required,latitude"`
	Lng *float64 `json:"lng" binding:"required,longitude"`
}

// HoverResponse wraps the hovered interaction, null when nothing is hovered.
type HoverResponse struct {
	Hover *services.InteractionView `json:"hover"`
}

// SelectResponse wraps the selected interaction shown in the popup.
type SelectResponse struct {
	Selected *services.InteractionView `json:"selected"`
}

// Layer handles GET /api/v1/map/layer.
func (h *MapHandler) Layer(c *gin.Context) {
	layer, err := h.service.Layer()
	if err != nil {
		if !dataError(c, err) {
			apierrors.InternalServerError(c, "Failed to build map layer", err)
		}
		return
	}
	c.JSON(http.StatusOK, layer)
}

// Hover handles POST /api/v1/map/hover.
func (h *MapHandler) Hover(c *gin.Context) {
	var req PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "Invalid pointer position")
		return
	}

	view, err := h.service.Hover(*req.Lat, *req.Lng)
	if err != nil {
		h.pointerError(c, err)
		return
	}
	c.JSON(http.StatusOK, HoverResponse{Hover: view})
}

// Leave handles DELETE /api/v1/map/hover.
func (h *MapHandler) Leave(c *gin.Context) {
	h.service.Leave()
	c.Status(http.StatusNoContent)
}

// Select handles POST /api/v1/map/select.
func (h *MapHandler) Select(c *gin.Context) {
	var req PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "Invalid pointer position")
		return
	}

	view, err := h.service.Click(*req.Lat, *req.Lng)
	if err != nil {
		h.pointerError(c, err)
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Debug("State selected", map[string]interface{}{
			"name":  view.Name,
			"index": view.FeatureIndex,
		})
	}
	c.JSON(http.StatusOK, SelectResponse{Selected: view})
}

// ClosePopup handles DELETE /api/v1/map/select.
func (h *MapHandler) ClosePopup(c *gin.Context) {
	h.service.ClosePopup()
	c.Status(http.StatusNoContent)
}

// Interaction handles GET /api/v1/map/interaction.
func (h *MapHandler) Interaction(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Interaction())
}

func (h *MapHandler) pointerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCoordinates):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrNoFeatureAtPoint):
		apierrors.NotFound(c, "No state at this location")
	case dataError(c, err):
	default:
		apierrors.InternalServerError(c, "Failed to resolve pointer position", err)
	}
}
