package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/covidroom/internal/errors"
	"github.com/stwalsh4118/covidroom/internal/services"
)

// QueryHandler serves the SQL editor.
type QueryHandler struct {
	service services.QueryService
}

// NewQueryHandler creates a new QueryHandler instance.
func NewQueryHandler(service services.QueryService) *QueryHandler {
	return &QueryHandler{service: service}
}

// ExecuteRequest is an ad-hoc statement from the editor.
type ExecuteRequest struct {
	SQL string `json:"sql" binding:"required,max=65536"`
}

// HistoryResponse lists past executions, newest first.
type HistoryResponse struct {
	Entries []services.HistoryEntry `json:"entries"`
	Count   int                     `json:"count"`
}

// Execute handles POST /api/v1/query.
func (h *QueryHandler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "Request body must be a JSON object with a sql field")
		return
	}

	result, err := h.service.Execute(c.Request.Context(), req.SQL)
	switch {
	case errors.Is(err, services.ErrEmptyQuery):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrQueryTimeout):
		apierrors.QueryTimeout(c, err.Error())
	case errors.Is(err, services.ErrQueryFailed):
		apierrors.QueryError(c, err.Error())
	case err != nil:
		apierrors.InternalServerError(c, "Failed to execute query", err)
	default:
		// Encode before writing the status so a bad value cannot yield an empty 200.
		body, err := json.Marshal(result)
		if err != nil {
			apierrors.InternalServerError(c, "Query result could not be encoded", err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

// History handles GET /api/v1/query/history.
func (h *QueryHandler) History(c *gin.Context) {
	entries := h.service.History()
	c.JSON(http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}
