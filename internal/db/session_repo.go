package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// SessionManager defines the interface for session database operations
type SessionManager interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	GetActive(ctx context.Context, network string) (*Session, error)
	List(ctx context.Context, opts PaginationOptions) ([]*Session, error)
	UpdateStatus(ctx context.Context, id string, status SessionStatus) error
	Delete(ctx context.Context, id string) error
	AddService(ctx context.Context, svc *SessionService) error
	UpdateServiceStatus(ctx context.Context, sessionID, name, status string) error
	ListServices(ctx context.Context, sessionID string) ([]*SessionService, error)
}

// SessionRepository handles database operations for sessions
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create records a new session
func (r *SessionRepository) Create(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Status == "" {
		session.Status = SessionStarting
	}

	query := `
		INSERT INTO sessions (id, network, profile, status, ports, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.Network,
		session.Profile,
		session.Status,
		session.Ports,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID returns a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, network, profile, status, ports, created_at, updated_at
		FROM sessions
		WHERE id = ?`

	var s Session
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.Network,
		&s.Profile,
		&s.Status,
		&s.Ports,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &s, nil
}

// GetActive returns the non-stopped session for a network, if any
func (r *SessionRepository) GetActive(ctx context.Context, network string) (*Session, error) {
	query := `
		SELECT id, network, profile, status, ports, created_at, updated_at
		FROM sessions
		WHERE network = ? AND status NOT IN (?, ?)
		ORDER BY created_at DESC
		LIMIT 1`

	var s Session
	err := r.db.QueryRowContext(ctx, query, network, SessionStopped, SessionFailed).Scan(
		&s.ID,
		&s.Network,
		&s.Profile,
		&s.Status,
		&s.Ports,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	return &s, nil
}

// List returns sessions, newest first
func (r *SessionRepository) List(ctx context.Context, opts PaginationOptions) ([]*Session, error) {
	if opts.PageSize == 0 {
		opts = DefaultPaginationOptions()
	}

	query := fmt.Sprintf(`
		SELECT id, network, profile, status, ports, created_at, updated_at
		FROM sessions
		%s %s`, opts.BuildOrderClause(), opts.BuildLimitClause())

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s := &Session{}
		err := rows.Scan(
			&s.ID,
			&s.Network,
			&s.Profile,
			&s.Status,
			&s.Ports,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// UpdateStatus updates only the status of a session
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status SessionStatus) error {
	query := `
		UPDATE sessions
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session not found")
	}

	return nil
}

// Delete removes a session and, via cascade, its services
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session not found")
	}

	return nil
}

// AddService records a service instance belonging to a session
func (r *SessionRepository) AddService(ctx context.Context, svc *SessionService) error {
	if svc.ID == "" {
		svc.ID = uuid.New().String()
	}

	query := `
		INSERT INTO session_services (id, session_id, name, instance_id, runtime, image, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id, name) DO UPDATE SET
			instance_id = excluded.instance_id,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, query,
		svc.ID,
		svc.SessionID,
		svc.Name,
		svc.InstanceID,
		svc.Runtime,
		svc.Image,
		svc.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to add session service: %w", err)
	}

	return nil
}

// UpdateServiceStatus updates one service's status within a session
func (r *SessionRepository) UpdateServiceStatus(ctx context.Context, sessionID, name, status string) error {
	query := `
		UPDATE session_services
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = ? AND name = ?`

	result, err := r.db.ExecContext(ctx, query, status, sessionID, name)
	if err != nil {
		return fmt.Errorf("failed to update service status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session service not found")
	}

	return nil
}

// ListServices returns the services recorded for a session
func (r *SessionRepository) ListServices(ctx context.Context, sessionID string) ([]*SessionService, error) {
	query := `
		SELECT id, session_id, name, instance_id, runtime, image, status, created_at, updated_at
		FROM session_services
		WHERE session_id = ?
		ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session services: %w", err)
	}
	defer rows.Close()

	var services []*SessionService
	for rows.Next() {
		svc := &SessionService{}
		err := rows.Scan(
			&svc.ID,
			&svc.SessionID,
			&svc.Name,
			&svc.InstanceID,
			&svc.Runtime,
			&svc.Image,
			&svc.Status,
			&svc.CreatedAt,
			&svc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session service: %w", err)
		}
		services = append(services, svc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session services: %w", err)
	}

	return services, nil
}
