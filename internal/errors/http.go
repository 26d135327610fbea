package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTPErrorResponse represents the structure of error responses sent to clients
type HTTPErrorResponse struct {
	Error   ErrorInfo              `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ErrorInfo contains the core error information
type ErrorInfo struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// ToHTTPError converts a ChainpadError to an Echo HTTP error
func ToHTTPError(err error) error {
	if ce, ok := err.(*ChainpadError); ok {
		return echo.NewHTTPError(ce.GetHTTPStatus(), HTTPErrorResponse{
			Error: ErrorInfo{
				Code:    ce.Code,
				Message: ce.Message,
				Details: ce.Details,
			},
			Context: ce.Context,
		})
	}

	// For non-ChainpadError, create a generic internal error
	return echo.NewHTTPError(http.StatusInternalServerError, HTTPErrorResponse{
		Error: ErrorInfo{
			Code:    ErrInternal,
			Message: "Internal server error",
			Details: err.Error(),
		},
	})
}

// HandleError is a helper function for consistent error handling in HTTP handlers
func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	c.Logger().Error(err)

	return ToHTTPError(err)
}

// BadRequest creates a 400 Bad Request error
func BadRequest(message, details string) error {
	return echo.NewHTTPError(http.StatusBadRequest, HTTPErrorResponse{
		Error: ErrorInfo{
			Code:    ErrInvalidInput,
			Message: message,
			Details: details,
		},
	})
}

// NotFoundHTTP creates a 404 Not Found error
func NotFoundHTTP(resource, id string) error {
	return echo.NewHTTPError(http.StatusNotFound, HTTPErrorResponse{
		Error: ErrorInfo{
			Code:    ErrNotFound,
			Message: "Resource not found",
			Details: resource + " with ID '" + id + "' not found",
		},
	})
}

// Conflict creates a 409 Conflict error
func Conflict(message, details string) error {
	return echo.NewHTTPError(http.StatusConflict, HTTPErrorResponse{
		Error: ErrorInfo{
			Code:    ErrNetworkAlreadyRunning, // Generic conflict code
			Message: message,
			Details: details,
		},
	})
}

// InternalServerError creates a 500 Internal Server Error
func InternalServerError(details string) error {
	return echo.NewHTTPError(http.StatusInternalServerError, HTTPErrorResponse{
		Error: ErrorInfo{
			Code:    ErrInternal,
			Message: "Internal server error",
			Details: details,
		},
	})
}
