package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/covidroom/internal/errors"
	"github.com/stwalsh4118/covidroom/internal/services"
)

// StatesHandler serves the state feature collection.
type StatesHandler struct {
	features services.FeatureService
}

// NewStatesHandler creates a new StatesHandler instance.
func NewStatesHandler(features services.FeatureService) *StatesHandler {
	return &StatesHandler{features: features}
}

// List handles GET /api/v1/states. Responds 503 while the document is
// loading and 502 with the load failure message when it could not be read.
func (h *StatesHandler) List(c *gin.Context) {
	fc, err := h.features.Collection()
	if err != nil {
		if !dataError(c, err) {
			apierrors.InternalServerError(c, "Failed to read state features", err)
		}
		return
	}
	c.JSON(http.StatusOK, fc)
}
