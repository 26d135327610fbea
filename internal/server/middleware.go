package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/xid"

	"chainpad/internal/config"
	"chainpad/internal/errors"
	"chainpad/internal/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID contextKey = "request_id"
	// ContextKeyConfig is the key for config manager in context
	ContextKeyConfig contextKey = "config"
)

// contextEnricher stamps every request with an ID and makes the config
// manager reachable from handlers.
func contextEnricher(configMgr *config.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			reqID := c.Request().Header.Get(echo.HeaderXRequestID)
			if reqID == "" {
				reqID = xid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, reqID)
			ctx = context.WithValue(ctx, ContextKeyRequestID, reqID)
			ctx = context.WithValue(ctx, ContextKeyConfig, configMgr)

			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// ErrorHandler is the custom echo error handler. Structured errors keep
// their code and HTTP status; everything else becomes a 500.
func ErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var body interface{} = map[string]interface{}{
		"error":      "Internal server error",
		"request_id": GetRequestID(c.Request().Context()),
	}

	switch e := err.(type) {
	case *echo.HTTPError:
		code = e.Code
		if resp, ok := e.Message.(errors.HTTPErrorResponse); ok {
			body = resp
		} else if msg, ok := e.Message.(string); ok {
			body = map[string]interface{}{
				"error":      msg,
				"request_id": GetRequestID(c.Request().Context()),
			}
		}
	case *errors.ChainpadError:
		code = e.GetHTTPStatus()
		body = errors.HTTPErrorResponse{
			Error: errors.ErrorInfo{
				Code:    e.Code,
				Message: e.Message,
				Details: e.Details,
			},
			Context: e.Context,
		}
	}

	logger.WithFields(logger.Fields{
		"method":     c.Request().Method,
		"path":       c.Request().URL.Path,
		"status":     code,
		"request_id": GetRequestID(c.Request().Context()),
	}).WithError(err).Error("Request failed")

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code)
		} else {
			c.JSON(code, body)
		}
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// GetConfig retrieves the config manager from context
func GetConfig(ctx context.Context) *config.Manager {
	if cfg, ok := ctx.Value(ContextKeyConfig).(*config.Manager); ok {
		return cfg
	}
	return nil
}
