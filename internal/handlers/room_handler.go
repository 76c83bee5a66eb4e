package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/covidroom/internal/errors"
	"github.com/stwalsh4118/covidroom/internal/middleware"
	"github.com/stwalsh4118/covidroom/internal/models"
	"github.com/stwalsh4118/covidroom/internal/services"
)

// RoomHandler serves the room shell.
type RoomHandler struct {
	room services.RoomService
}

// NewRoomHandler creates a new RoomHandler instance.
func NewRoomHandler(room services.RoomService) *RoomHandler {
	return &RoomHandler{room: room}
}

// ReloadRequest is the path of the reload endpoint.
type ReloadRequest struct {
	Table string `uri:"table" binding:"required,max=63"`
}

// Get handles GET /api/v1/room.
func (h *RoomHandler) Get(c *gin.Context) {
	view, err := h.room.Room(c.Request.Context())
	if err != nil {
		apierrors.EngineUnavailable(c, "Failed to read room status", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reload handles POST /api/v1/room/sources/:table/reload.
func (h *RoomHandler) Reload(c *gin.Context) {
	var req ReloadRequest
	if err := c.ShouldBindUri(&req); err != nil {
		bindError(c, err, "Invalid table name")
		return
	}
	if !models.IsSQLIdentifier(req.Table) {
		apierrors.BadRequest(c, "Invalid table name", map[string]interface{}{"table": req.Table})
		return
	}

	st, err := h.room.Reload(c.Request.Context(), req.Table)
	switch {
	case errors.Is(err, services.ErrTableNotFound):
		apierrors.NotFound(c, "Data source not found: "+req.Table)
		return
	case errors.Is(err, services.ErrTableLoading):
		apierrors.Conflict(c, "Data source is already loading: "+req.Table)
		return
	case err != nil:
		reason := st.Error
		if reason == "" {
			reason = err.Error()
		}
		apierrors.BadGateway(c, services.FeatureLoadFailedPrefix+reason)
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Data source reloaded", map[string]interface{}{
			"table": st.TableName,
			"rows":  st.Rows,
		})
	}
	c.JSON(http.StatusOK, st)
}
