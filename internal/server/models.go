package server

import (
	"chainpad/internal/db"
	"chainpad/internal/network"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error" example:"Resource not found"`
}

// SuccessResponse represents a successful operation response
type SuccessResponse struct {
	Message string `json:"message" example:"Operation completed successfully"`
}

// SystemStatusResponse represents the daemon status
type SystemStatusResponse struct {
	Status   string         `json:"status" example:"healthy"`
	Version  string         `json:"version" example:"1.0.0"`
	Uptime   string         `json:"uptime" example:"2h30m15s"`
	Database string         `json:"database" example:"healthy"`
	Network  network.Status `json:"network"`
}

// StartNetworkRequest selects the profile to start
type StartNetworkRequest struct {
	Profile string `json:"profile" example:"devnet"`
}

// PushTransactionRequest records confirmation demand for a chain
type PushTransactionRequest struct {
	ChainID       uint32 `json:"chain_id" example:"0"`
	Confirmations int    `json:"confirmations" example:"2"`
}

// SessionsResponse represents a list of recorded network sessions
type SessionsResponse struct {
	Sessions []*db.Session `json:"sessions"`
	Total    int           `json:"total" example:"4"`
}

// LogsResponse represents service log output
type LogsResponse struct {
	Service string   `json:"service" example:"api-node"`
	Lines   []string `json:"lines"`
	Total   int      `json:"total" example:"100"`
}
