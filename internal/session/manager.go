package session

import (
	"context"
	"log/slog"

	"seopilot/internal/types"
)

// AuthBackend is the slice of the API client the manager drives.
type AuthBackend interface {
	Register(ctx context.Context, email, password string) (*types.SessionInfo, error)
	Login(ctx context.Context, email, password string) (*types.SessionInfo, error)
	Logout(ctx context.Context) error
}

// Manager runs the account flows: register, login, logout. It owns the
// ordering between the backend call and the local session write.
type Manager struct {
	backend AuthBackend
	store   *Store
	logger  *slog.Logger
}

func NewManager(backend AuthBackend, store *Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{backend: backend, store: store, logger: logger}
}

// Register creates the remote account and persists the issued session.
func (m *Manager) Register(ctx context.Context, localUserID, email, password string) (*types.Session, error) {
	info, err := m.backend.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, localUserID, info)
}

// Login exchanges credentials for a session and persists it.
func (m *Manager) Login(ctx context.Context, localUserID, email, password string) (*types.Session, error) {
	info, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, localUserID, info)
}

// Logout always clears the local session. The remote revocation is
// attempted first but a network failure there must not leave the user
// locked into a broken session; the remote token then dies of expiry.
func (m *Manager) Logout(ctx context.Context, localUserID string) error {
	if err := m.backend.Logout(ctx); err != nil {
		if types.IsAuthRequired(err) {
			// No remote session to revoke; nothing to log.
		} else {
			m.logger.WarnContext(ctx, "remote logout failed, clearing local session anyway",
				slog.String("local_user_id", localUserID),
				slog.String("error", err.Error()))
		}
	}

	return m.store.Clear(ctx, localUserID)
}

func (m *Manager) establish(ctx context.Context, localUserID string, info *types.SessionInfo) (*types.Session, error) {
	if err := m.store.SetSession(ctx, localUserID, info); err != nil {
		return nil, err
	}
	return m.store.Get(ctx, localUserID)
}
