// Package session owns the local credential record that links a CMS user to
// their remote SEOPilot account. The store is the single writer of that
// record: login and register go through SetSession, logout through Clear,
// and plan changes pushed by billing webhooks through UpdatePlan.
package session

import (
	"context"
	"log/slog"

	"seopilot/internal/types"
)

// Repository is the persistence surface the store needs. Implemented by
// db.SessionRepository.
type Repository interface {
	Get(ctx context.Context, localUserID string) (*types.Session, error)
	Save(ctx context.Context, session *types.Session) error
	UpdatePlan(ctx context.Context, localUserID string, plan types.PlanTier) error
	Delete(ctx context.Context, localUserID string) error
}

// UsageInvalidator drops cached usage for a user. Satisfied by usage.Cache.
// Session transitions must invalidate usage: a login may bind a different
// remote account, and after logout stale counters must not leak to the
// next session.
type UsageInvalidator interface {
	Invalidate(localUserID string)
}

// Store manages session lifecycle on top of the repository, applying expiry
// and keeping the usage cache coherent with auth state.
type Store struct {
	repo   Repository
	usage  UsageInvalidator
	clock  types.Clock
	logger *slog.Logger
}

func NewStore(repo Repository, usage UsageInvalidator, clock types.Clock, logger *slog.Logger) *Store {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: repo, usage: usage, clock: clock, logger: logger}
}

// Get returns the user's session, or (nil, nil) when none exists. An
// expired session is indistinguishable from no session: the row is removed
// lazily and the caller sees unauthenticated.
func (s *Store) Get(ctx context.Context, localUserID string) (*types.Session, error) {
	sess, err := s.repo.Get(ctx, localUserID)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeNotFoundSession {
			return nil, nil
		}
		return nil, err
	}

	if sess.ExpiresAt != nil && !sess.ExpiresAt.After(s.clock.Now()) {
		s.logger.InfoContext(ctx, "session expired, removing",
			slog.String("local_user_id", localUserID))
		if delErr := s.repo.Delete(ctx, localUserID); delErr != nil {
			// The read path still reports unauthenticated; the row dies on
			// the next successful delete or overwrite.
			s.logger.WarnContext(ctx, "failed to remove expired session",
				slog.String("local_user_id", localUserID),
				slog.String("error", delErr.Error()))
		}
		s.usage.Invalidate(localUserID)
		return nil, nil
	}

	return sess, nil
}

// SetSession persists the session issued by the backend for this user,
// replacing any previous one. The usage cache is invalidated because the
// new session may belong to a different remote account.
func (s *Store) SetSession(ctx context.Context, localUserID string, info *types.SessionInfo) error {
	sess := &types.Session{
		LocalUserID:  localUserID,
		Token:        info.Token,
		RemoteUserID: info.UserID,
		Email:        info.Email,
		Plan:         info.Plan,
		IssuedAt:     s.clock.Now(),
		ExpiresAt:    info.ExpiresAt,
	}

	if err := s.repo.Save(ctx, sess); err != nil {
		return err
	}

	s.usage.Invalidate(localUserID)

	s.logger.InfoContext(ctx, "session established",
		slog.String("local_user_id", localUserID),
		slog.String("plan", string(info.Plan)))

	return nil
}

// Clear removes the local session and drops the user's cached usage.
// Clearing when no session exists is a no-op, not an error.
func (s *Store) Clear(ctx context.Context, localUserID string) error {
	if err := s.repo.Delete(ctx, localUserID); err != nil {
		if types.CodeOf(err) != types.ErrCodeNotFoundSession {
			return err
		}
	}

	s.usage.Invalidate(localUserID)

	s.logger.InfoContext(ctx, "session cleared",
		slog.String("local_user_id", localUserID))

	return nil
}

// UpdatePlan reconciles the locally cached plan after a billing event.
// Missing sessions are skipped: the user will pick up the new plan at next
// login. The usage cache is invalidated so limits refresh under the new plan.
func (s *Store) UpdatePlan(ctx context.Context, localUserID string, plan types.PlanTier) error {
	if !plan.Valid() {
		return types.NewAppError(types.ErrCodeValidationInvalidPlan,
			"unknown plan tier: "+string(plan), nil)
	}

	if err := s.repo.UpdatePlan(ctx, localUserID, plan); err != nil {
		return err
	}

	s.usage.Invalidate(localUserID)
	return nil
}

// Token implements backend.TokenSource against the actor in the request
// context. It never fails: any miss (no actor, no session, expired, or a
// read error) yields an empty token and the client reports auth_required.
func (s *Store) Token(ctx context.Context) string {
	actor, ok := types.GetActor(ctx)
	if !ok || actor.LocalUserID == "" {
		return ""
	}

	sess, err := s.Get(ctx, actor.LocalUserID)
	if err != nil || sess == nil {
		return ""
	}

	return sess.Token
}
