package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"chainpad/internal/db"
	"chainpad/internal/errors"
)

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health check
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")

	// Network lifecycle
	net := api.Group("/network")
	net.GET("", s.handleNetworkStatus)
	net.POST("/start", s.handleStartNetwork)
	net.POST("/stop", s.handleStopNetwork)
	net.POST("/restart", s.handleRestartNetwork)

	// Services
	services := api.Group("/services")
	services.GET("", s.handleListServices)
	services.GET("/:name/logs", s.handleGetServiceLogs)

	// Live streams
	api.GET("/logs/stream", s.handleLogsWebSocket)
	api.GET("/events", s.handleEventsWebSocket)

	// Transaction submission, feeds the confirmation scheduler
	api.POST("/transactions", s.handlePushTransaction)

	// Recorded sessions
	api.GET("/sessions", s.handleListSessions)

	// System status and configuration
	api.GET("/status", s.handleSystemStatus)
	api.GET("/config", s.handleGetConfig)
}

// handleHealth godoc
// @Summary Health check
// @Description Check if the daemon API is healthy
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

// handleSystemStatus godoc
// @Summary System status
// @Description Get daemon status including database health and the running network
// @Tags system
// @Produce json
// @Success 200 {object} SystemStatusResponse
// @Router /api/status [get]
func (s *Server) handleSystemStatus(c echo.Context) error {
	resp := SystemStatusResponse{
		Status:  "healthy",
		Version: "1.0.0",
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Network: s.network.Status(),
	}

	resp.Database = "not configured"
	if s.db != nil {
		resp.Database = "healthy"
		if err := s.db.HealthCheck(c.Request().Context()); err != nil {
			resp.Database = "unhealthy"
			resp.Status = "degraded"
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// handleNetworkStatus godoc
// @Summary Network status
// @Description Get the state of the current network session
// @Tags network
// @Produce json
// @Success 200 {object} network.Status
// @Router /api/network [get]
func (s *Server) handleNetworkStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.network.Status())
}

// handleStartNetwork godoc
// @Summary Start the network
// @Description Start the named profile, or the configured default
// @Tags network
// @Accept json
// @Produce json
// @Param request body StartNetworkRequest false "Profile selection"
// @Success 200 {object} network.Status
// @Failure 409 {object} errors.HTTPErrorResponse
// @Router /api/network/start [post]
func (s *Server) handleStartNetwork(c echo.Context) error {
	var req StartNetworkRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return errors.BadRequest("Invalid request body", err.Error())
		}
	}

	if err := s.network.Start(c.Request().Context(), req.Profile); err != nil {
		return errors.HandleError(c, err)
	}
	return c.JSON(http.StatusOK, s.network.Status())
}

// handleStopNetwork godoc
// @Summary Stop the network
// @Description Stop every service of the current session
// @Tags network
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} errors.HTTPErrorResponse
// @Router /api/network/stop [post]
func (s *Server) handleStopNetwork(c echo.Context) error {
	if err := s.network.Stop(c.Request().Context()); err != nil {
		return errors.HandleError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "Network stopped"})
}

// handleRestartNetwork godoc
// @Summary Restart the network
// @Description Stop and start the current session with the same profile
// @Tags network
// @Produce json
// @Success 200 {object} network.Status
// @Failure 409 {object} errors.HTTPErrorResponse
// @Router /api/network/restart [post]
func (s *Server) handleRestartNetwork(c echo.Context) error {
	if err := s.network.Restart(c.Request().Context()); err != nil {
		return errors.HandleError(c, err)
	}
	return c.JSON(http.StatusOK, s.network.Status())
}

// handleListServices godoc
// @Summary List services
// @Description List every service of the current session with its status
// @Tags services
// @Produce json
// @Success 200 {array} orchestrator.ServiceInfo
// @Router /api/services [get]
func (s *Server) handleListServices(c echo.Context) error {
	status := s.network.Status()
	if status.Services == nil {
		return c.JSON(http.StatusOK, []interface{}{})
	}
	return c.JSON(http.StatusOK, status.Services)
}

// handleGetServiceLogs godoc
// @Summary Get service logs
// @Description Get the captured output of one service
// @Tags services
// @Produce json
// @Param name path string true "Service name"
// @Param lines query int false "Number of lines to retrieve" default(100)
// @Success 200 {object} LogsResponse
// @Failure 404 {object} errors.HTTPErrorResponse
// @Router /api/services/{name}/logs [get]
func (s *Server) handleGetServiceLogs(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return errors.BadRequest("Service name is required", "")
	}

	tail := 100
	if linesParam := c.QueryParam("lines"); linesParam != "" {
		parsed, err := strconv.Atoi(linesParam)
		if err != nil || parsed < 1 {
			return errors.BadRequest("Invalid lines parameter", fmt.Sprintf("lines=%s", linesParam))
		}
		tail = parsed
	}

	data, err := s.network.Logs(c.Request().Context(), name, tail)
	if err != nil {
		return errors.HandleError(c, err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return c.JSON(http.StatusOK, LogsResponse{
		Service: name,
		Lines:   lines,
		Total:   len(lines),
	})
}

// handlePushTransaction godoc
// @Summary Submit a transaction
// @Description Record confirmation demand for a chain; batched demand drives on-demand mining
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body PushTransactionRequest true "Demand"
// @Success 202 {object} SuccessResponse
// @Failure 409 {object} errors.HTTPErrorResponse
// @Router /api/transactions [post]
func (s *Server) handlePushTransaction(c echo.Context) error {
	var req PushTransactionRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest("Invalid request body", err.Error())
	}
	if req.Confirmations < 0 {
		return errors.BadRequest("Confirmations must not be negative", "")
	}

	if err := s.network.PushTransaction(req.ChainID, req.Confirmations); err != nil {
		return errors.HandleError(c, err)
	}
	return c.JSON(http.StatusAccepted, SuccessResponse{Message: "Demand recorded"})
}

// handleListSessions godoc
// @Summary List sessions
// @Description List recorded network sessions, newest first
// @Tags sessions
// @Produce json
// @Success 200 {object} SessionsResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/sessions [get]
func (s *Server) handleListSessions(c echo.Context) error {
	if s.db == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Database not available"})
	}

	repo := db.NewSessionRepository(s.db)
	sessions, err := repo.List(c.Request().Context(), db.DefaultPaginationOptions())
	if err != nil {
		return errors.HandleError(c, err)
	}
	if sessions == nil {
		sessions = []*db.Session{}
	}

	return c.JSON(http.StatusOK, SessionsResponse{
		Sessions: sessions,
		Total:    len(sessions),
	})
}

// handleGetConfig godoc
// @Summary Get configuration
// @Description Get the declared profiles and scheduler settings
// @Tags config
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/config [get]
func (s *Server) handleGetConfig(c echo.Context) error {
	profiles := make(map[string]string, len(s.configMgr.Profiles))
	for name, p := range s.configMgr.Profiles {
		profiles[name] = string(p.Type)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"default_profile": s.configMgr.Network.Profile,
		"profiles":        profiles,
		"scheduler": map[string]string{
			"batch_period":   s.configMgr.Scheduler.BatchPeriod.String(),
			"trigger_period": s.configMgr.Scheduler.TriggerPeriod.String(),
		},
	})
}
