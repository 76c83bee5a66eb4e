package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stwalsh4118/covidroom/internal/middleware"
)

// Error code constants for standardized error responses
const (
	ErrNotFound       = "NOT_FOUND"
	ErrBadRequest     = "BAD_REQUEST"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrValidation     = "VALIDATION_ERROR"
	ErrEngineDown     = "ENGINE_UNAVAILABLE"
	ErrDataNotReady   = "DATA_NOT_READY"
	ErrDataLoadFailed = "DATA_LOAD_FAILED"
	ErrQuery          = "QUERY_ERROR"
	ErrQueryTimeout   = "QUERY_TIMEOUT"
	ErrConflict       = "CONFLICT"
)

const validationMessage = "Validation failed for one or more fields"

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// baseFields are logged with every error response.
func baseFields(c *gin.Context, message string) map[string]interface{} {
	return map[string]interface{}{
		"message":    message,
		"request_id": middleware.GetRequestID(c),
		"path":       c.Request.URL.Path,
	}
}

func write(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(c),
		},
	})
}

// NotFound returns a 404 Not Found error response.
func NotFound(c *gin.Context, message string) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Resource not found", baseFields(c, message))
	}
	write(c, http.StatusNotFound, ErrNotFound, message, nil)
}

// BadRequest returns a 400 Bad Request error response with optional details.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	if log := middleware.GetLogger(c); log != nil {
		fields := baseFields(c, message)
		if details != nil {
			fields["details"] = details
		}
		log.Warn("Bad request", fields)
	}
	write(c, http.StatusBadRequest, ErrBadRequest, message, details)
}

// Conflict returns a 409 response, used when the resource is mid-load.
func Conflict(c *gin.Context, message string) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Conflict", baseFields(c, message))
	}
	write(c, http.StatusConflict, ErrConflict, message, nil)
}

// InternalServerError returns a 500 Internal Server Error response.
// The underlying error is logged but never sent to the client.
func InternalServerError(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		fields := baseFields(c, message)
		fields["method"] = c.Request.Method
		log.Error("Internal server error", err, fields)
	}
	write(c, http.StatusInternalServerError, ErrInternalServer, message, nil)
}

// ServiceUnavailable returns a 503 for data that is still loading or whose
// tables are missing. missing, when non-empty, is reported under details.
func ServiceUnavailable(c *gin.Context, message string, missing []string) {
	var details map[string]interface{}
	if len(missing) > 0 {
		details = map[string]interface{}{"missing": missing}
	}
	if log := middleware.GetLogger(c); log != nil {
		fields := baseFields(c, message)
		if details != nil {
			fields["missing"] = missing
		}
		log.Info("Data not ready", fields)
	}
	write(c, http.StatusServiceUnavailable, ErrDataNotReady, message, details)
}

// EngineUnavailable returns a 503 when the query engine cannot be reached.
func EngineUnavailable(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		log.Error("Query engine unavailable", err, baseFields(c, message))
	}
	write(c, http.StatusServiceUnavailable, ErrEngineDown, message, nil)
}

// BadGateway returns a 502 when an upstream document could not be fetched
// or parsed. message is shown to the user as-is.
func BadGateway(c *gin.Context, message string) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Upstream load failed", baseFields(c, message))
	}
	write(c, http.StatusBadGateway, ErrDataLoadFailed, message, nil)
}

// QueryError returns a 422 carrying the engine's message for a rejected
// ad-hoc statement.
func QueryError(c *gin.Context, message string) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Query rejected", baseFields(c, message))
	}
	write(c, http.StatusUnprocessableEntity, ErrQuery, message, nil)
}

// QueryTimeout returns a 504 for an ad-hoc statement that ran past its deadline.
func QueryTimeout(c *gin.Context, message string) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Query timed out", baseFields(c, message))
	}
	write(c, http.StatusGatewayTimeout, ErrQueryTimeout, message, nil)
}

// ValidationError returns a 400 Bad Request error response with field-specific validation errors.
func ValidationError(c *gin.Context, validationErrors validator.ValidationErrors) {
	details := make(map[string]interface{}, len(validationErrors))
	for _, err := range validationErrors {
		details[err.Field()] = formatValidationError(err)
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Validation error", map[string]interface{}{
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
			"fields":     details,
		})
	}
	write(c, http.StatusBadRequest, ErrValidation, validationMessage, details)
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short or small (minimum: " + err.Param() + ")"
	case "max":
		return "Value is too long or large (maximum: " + err.Param() + ")"
	case "gte":
		return "Must be greater than or equal to " + err.Param()
	case "lte":
		return "Must be less than or equal to " + err.Param()
	case "oneof":
		return "Must be one of: " + err.Param()
	case "latitude":
		return "Must be a latitude between -90 and 90"
	case "longitude":
		return "Must be a longitude between -180 and 180"
	case "sqlident":
		return "Must be a SQL identifier (letters, digits and underscores)"
	case "url":
		return "Must be a valid URL"
	default:
		return "Validation failed for tag: " + err.Tag()
	}
}
