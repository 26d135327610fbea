// Package db provides database models for Chainpad
package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB represents a JSON column stored as text in SQLite
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			*j = nil
			return nil
		}
		return json.Unmarshal(v, j)
	case string:
		if v == "" {
			*j = nil
			return nil
		}
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("type assertion to []byte or string failed")
	}
}

// SessionStatus represents the lifecycle state of a network session
type SessionStatus string

const (
	SessionStarting SessionStatus = "starting"
	SessionRunning  SessionStatus = "running"
	SessionStopping SessionStatus = "stopping"
	SessionStopped  SessionStatus = "stopped"
	SessionFailed   SessionStatus = "failed"
)

// Session represents one run of a local network, from start to stop. Ports
// maps service names to the host ports resolved for this session, so a
// restarted daemon can report and clean up what a previous run left behind.
type Session struct {
	ID        string        `json:"id" db:"id"`
	Network   string        `json:"network" db:"network"` // profile name
	Profile   string        `json:"profile" db:"profile"` // profile type
	Status    SessionStatus `json:"status" db:"status"`
	Ports     JSONB         `json:"ports" db:"ports"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for Session
func (Session) TableName() string {
	return "sessions"
}

// SessionService represents one service instance belonging to a session
type SessionService struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	Name       string    `json:"name" db:"name"`
	InstanceID string    `json:"instance_id" db:"instance_id"`
	Runtime    string    `json:"runtime" db:"runtime"` // docker or process
	Image      string    `json:"image" db:"image"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for SessionService
func (SessionService) TableName() string {
	return "session_services"
}
