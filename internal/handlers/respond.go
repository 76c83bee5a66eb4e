package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/covidroom/internal/errors"
	"github.com/stwalsh4118/covidroom/internal/services"
)

// bindError reports a request body or query binding failure.
func bindError(c *gin.Context, err error, message string) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return
	}
	apierrors.BadRequest(c, message, nil)
}

// dataError maps the readiness and loader errors shared by the map, state
// and chart endpoints. It reports whether err was handled.
func dataError(c *gin.Context, err error) bool {
	var notReady *services.NotReadyError
	switch {
	case errors.As(err, &notReady):
		apierrors.ServiceUnavailable(c, "Waiting for data sources to load", notReady.Missing)
	case errors.Is(err, services.ErrTablesNotReady):
		apierrors.ServiceUnavailable(c, "Waiting for data sources to load", nil)
	case errors.Is(err, services.ErrFeaturesLoading):
		apierrors.ServiceUnavailable(c, "State features are still loading", nil)
	case errors.Is(err, services.ErrFeaturesLoadFailed):
		apierrors.BadGateway(c, loadFailedMessage(err))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		apierrors.ServiceUnavailable(c, "Data request did not complete in time", nil)
	default:
		return false
	}
	return true
}

// loadFailedMessage recovers the user-facing "Failed to load data: ..." text.
func loadFailedMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), services.ErrFeaturesLoadFailed.Error()+": ")
	if !strings.HasPrefix(msg, services.FeatureLoadFailedPrefix) {
		msg = services.FeatureLoadFailedPrefix + msg
	}
	return msg
}
