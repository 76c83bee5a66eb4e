package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/covidroom/internal/errors"
	"github.com/stwalsh4118/covidroom/internal/models"
	"github.com/stwalsh4118/covidroom/internal/repository"
	"github.com/stwalsh4118/covidroom/internal/services"
)

// ChartHandler serves the chart views.
type ChartHandler struct {
	charts services.ChartService
}

// NewChartHandler creates a new ChartHandler instance.
func NewChartHandler(charts services.ChartService) *ChartHandler {
	return &ChartHandler{charts: charts}
}

// QueryResponse is one registered query's result.
type QueryResponse struct {
	ID string `json:"id"`
	*models.RowBatch
}

// Charts handles GET /api/v1/charts. A failed batch is reported the same
// way as missing tables: the client keeps showing its loading state.
func (h *ChartHandler) Charts(c *gin.Context) {
	data, err := h.charts.Charts(c.Request.Context())
	if err != nil {
		if !dataError(c, err) {
			apierrors.ServiceUnavailable(c, "Chart data is not available yet", nil)
		}
		return
	}
	c.JSON(http.StatusOK, data)
}

// Query handles GET /api/v1/charts/:id.
func (h *ChartHandler) Query(c *gin.Context) {
	id := repository.QueryID(c.Param("id"))

	batch, err := h.charts.Query(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUnknownQuery):
			apierrors.NotFound(c, "Unknown query: "+string(id))
		case dataError(c, err):
		default:
			apierrors.ServiceUnavailable(c, "Chart data is not available yet", nil)
		}
		return
	}
	c.JSON(http.StatusOK, QueryResponse{ID: string(id), RowBatch: batch})
}
