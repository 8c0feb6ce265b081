package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"seopilot/internal/types"
)

// SessionRepository provides data access for the sessions table. Exactly one
// row exists per local CMS user identity; saving a session for a user who
// already has one replaces it (the backend invalidates the old token on
// re-login, so there is nothing worth keeping).
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository backed by the given
// database connection (pool or transaction).
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `s.local_user_id, s.token, s.remote_user_id, s.email, s.plan,
	s.issued_at, s.expires_at`

// scanSession scans a single session row into a types.Session struct.
// The columns must match the order defined in sessionColumns.
func scanSession(row pgx.Row) (*types.Session, error) {
	var s types.Session
	err := row.Scan(
		&s.LocalUserID,
		&s.Token,
		&s.RemoteUserID,
		&s.Email,
		&s.Plan,
		&s.IssuedAt,
		&s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get retrieves the session record for the given local user.
// Returns ErrCodeNotFoundSession if no session exists.
func (r *SessionRepository) Get(ctx context.Context, localUserID string) (*types.Session, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions s
		 WHERE s.local_user_id = $1`,
		localUserID,
	)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSession, "no session for user", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load session", err)
	}
	return session, nil
}

// Save upserts the session record for its local user. The write is atomic:
// a concurrent reader sees either the old record or the new one, never a
// partially written row.
func (r *SessionRepository) Save(ctx context.Context, session *types.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (local_user_id, token, remote_user_id, email, plan, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (local_user_id) DO UPDATE
		 SET token = EXCLUDED.token,
		     remote_user_id = EXCLUDED.remote_user_id,
		     email = EXCLUDED.email,
		     plan = EXCLUDED.plan,
		     issued_at = EXCLUDED.issued_at,
		     expires_at = EXCLUDED.expires_at`,
		session.LocalUserID,
		session.Token,
		session.RemoteUserID,
		session.Email,
		session.Plan,
		session.IssuedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save session", err)
	}
	return nil
}

// UpdatePlan sets the plan field for an existing session. Used by the plan
// webhook handler to reconcile after a payment event. A missing session is a
// no-op: the user logged out between paying and the webhook arriving, and
// the fresh plan is fetched on next login.
func (r *SessionRepository) UpdatePlan(ctx context.Context, localUserID string, plan types.PlanTier) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET plan = $1 WHERE local_user_id = $2`,
		plan,
		localUserID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update session plan", err)
	}
	return nil
}

// Delete performs a hard delete of the session record so token invalidation
// is immediate on logout.
func (r *SessionRepository) Delete(ctx context.Context, localUserID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE local_user_id = $1`,
		localUserID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete session", err)
	}
	return nil
}
