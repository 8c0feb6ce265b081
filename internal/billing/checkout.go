// Package billing orchestrates the upgrade path: checkout sessions, the
// hosted billing portal, and site API key rotation. The connector never
// touches card data; it only brokers redirect URLs issued by the backend.
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"seopilot/internal/types"
)

// CheckoutState names a step of the checkout flow. States advance strictly
// forward; any failure lands in StateFailed with a reason attached.
type CheckoutState string

const (
	StateIdle              CheckoutState = "idle"
	StateAuthChecking      CheckoutState = "auth_checking"
	StatePriceResolving    CheckoutState = "price_resolving"
	StateSessionRequesting CheckoutState = "session_requesting"
	StateRedirecting       CheckoutState = "redirecting"
	StateFailed            CheckoutState = "failed"
)

// CheckoutResult reports where an attempt ended up. RedirectURL is set only
// in StateRedirecting; FailureReason only in StateFailed.
type CheckoutResult struct {
	State         CheckoutState   `json:"state"`
	RedirectURL   string          `json:"redirect_url,omitempty"`
	FailureReason types.ErrorCode `json:"failure_reason,omitempty"`
}

// SessionReader is the slice of the session store checkout needs.
type SessionReader interface {
	Get(ctx context.Context, localUserID string) (*types.Session, error)
}

// BackendClient is the slice of the API client billing operations use.
type BackendClient interface {
	CreateCheckoutSession(ctx context.Context, req types.CheckoutRequest) (string, error)
	CreatePortalSession(ctx context.Context, returnURL string) (string, error)
	GetPlans(ctx context.Context) ([]types.PlanInfo, error)
	GetBillingInfo(ctx context.Context) (*types.BillingInfo, error)
}

// SettingsReader resolves site-level billing settings stored locally.
type SettingsReader interface {
	Get(ctx context.Context) (*types.SiteSettings, error)
}

// Service runs billing flows. Price IDs stored in site settings take
// precedence over the ones baked into configuration, so an operator can
// rotate prices without a redeploy.
type Service struct {
	sessions     SessionReader
	backend      BackendClient
	settings     SettingsReader
	configPrices types.PlanPriceMap
	dashboardURL string
	logger       *slog.Logger
}

func NewService(
	sessions SessionReader,
	backend BackendClient,
	settings SettingsReader,
	configPrices types.PlanPriceMap,
	dashboardURL string,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:     sessions,
		backend:      backend,
		settings:     settings,
		configPrices: configPrices,
		dashboardURL: dashboardURL,
		logger:       logger,
	}
}

// StartCheckout walks the checkout state machine for one upgrade attempt.
//
// Order matters: the session is checked first, then the price ID is
// resolved locally. A missing price ID is a deployment problem and must
// surface before any request reaches the backend. Only then is the
// checkout session requested, exactly once.
func (s *Service) StartCheckout(ctx context.Context, localUserID string, plan types.PlanTier) (*CheckoutResult, error) {
	attempt := &checkoutAttempt{state: StateIdle, logger: s.logger, userID: localUserID, plan: plan}

	attempt.advance(ctx, StateAuthChecking)
	sess, err := s.sessions.Get(ctx, localUserID)
	if err != nil {
		return attempt.fail(ctx, err)
	}
	if !sess.Authenticated() {
		return attempt.fail(ctx, types.NewAppError(
			types.ErrCodeAuthRequired,
			"sign in before upgrading",
			nil,
		))
	}

	attempt.advance(ctx, StatePriceResolving)
	if !plan.Valid() || !plan.Paid() {
		return attempt.fail(ctx, types.NewAppError(
			types.ErrCodeValidationInvalidPlan,
			fmt.Sprintf("plan %q is not purchasable", plan),
			nil,
		))
	}
	priceID, err := s.resolvePriceID(ctx, plan)
	if err != nil {
		return attempt.fail(ctx, err)
	}

	attempt.advance(ctx, StateSessionRequesting)
	redirectURL, err := s.backend.CreateCheckoutSession(ctx, types.CheckoutRequest{
		PlanKey:    plan,
		PriceID:    priceID,
		SuccessURL: s.dashboardReturnURL("billing", "checkout", "success"),
		CancelURL:  s.dashboardReturnURL("billing", "checkout", "canceled"),
	})
	if err != nil {
		return attempt.fail(ctx, err)
	}

	attempt.advance(ctx, StateRedirecting)
	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("local_user_id", localUserID),
		slog.String("plan", string(plan)))

	return &CheckoutResult{State: StateRedirecting, RedirectURL: redirectURL}, nil
}

// OpenPortal returns a redirect URL into the hosted billing portal for an
// authenticated user.
func (s *Service) OpenPortal(ctx context.Context, localUserID string) (string, error) {
	sess, err := s.sessions.Get(ctx, localUserID)
	if err != nil {
		return "", err
	}
	if !sess.Authenticated() {
		return "", types.NewAppError(types.ErrCodeAuthRequired, "sign in to manage billing", nil)
	}

	return s.backend.CreatePortalSession(ctx, s.dashboardReturnURL("billing", "portal", "done"))
}

// Plans returns the purchasable plan catalog from the backend.
func (s *Service) Plans(ctx context.Context) ([]types.PlanInfo, error) {
	return s.backend.GetPlans(ctx)
}

// Info returns the subscription state for an authenticated user.
func (s *Service) Info(ctx context.Context, localUserID string) (*types.BillingInfo, error) {
	sess, err := s.sessions.Get(ctx, localUserID)
	if err != nil {
		return nil, err
	}
	if !sess.Authenticated() {
		return nil, types.NewAppError(types.ErrCodeAuthRequired, "sign in to view billing", nil)
	}

	return s.backend.GetBillingInfo(ctx)
}

// resolvePriceID looks up the price ID for a plan: site settings first,
// configuration as fallback. Both empty is a configuration error.
func (s *Service) resolvePriceID(ctx context.Context, plan types.PlanTier) (string, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", err
	}

	if id, ok := settings.PriceMap().PriceFor(plan); ok {
		return id, nil
	}
	if id, ok := s.configPrices.PriceFor(plan); ok {
		return id, nil
	}

	return "", types.NewAppErrorWithDetails(
		types.ErrCodeConfigPriceMissing,
		fmt.Sprintf("no price ID configured for plan %q", plan),
		nil,
		map[string]any{"plan": string(plan)},
	)
}

// dashboardReturnURL builds the server-side redirect target. User input
// never reaches these URLs; open-redirect via crafted return targets is
// structurally impossible.
func (s *Service) dashboardReturnURL(section string, parts ...string) string {
	q := url.Values{}
	q.Set("section", section)
	for i := 0; i+1 < len(parts); i += 2 {
		q.Set(parts[i], parts[i+1])
	}
	return s.dashboardURL + "?" + q.Encode()
}

// checkoutAttempt tracks state transitions for one StartCheckout call.
// Attempts are request-scoped and never shared between goroutines.
type checkoutAttempt struct {
	state  CheckoutState
	userID string
	plan   types.PlanTier
	logger *slog.Logger
}

func (a *checkoutAttempt) advance(ctx context.Context, next CheckoutState) {
	a.logger.DebugContext(ctx, "checkout state transition",
		slog.String("local_user_id", a.userID),
		slog.String("plan", string(a.plan)),
		slog.String("from", string(a.state)),
		slog.String("to", string(next)))
	a.state = next
}

func (a *checkoutAttempt) fail(ctx context.Context, err error) (*CheckoutResult, error) {
	reason := types.CodeOf(err)
	a.logger.WarnContext(ctx, "checkout failed",
		slog.String("local_user_id", a.userID),
		slog.String("plan", string(a.plan)),
		slog.String("at", string(a.state)),
		slog.String("reason", string(reason)))
	a.state = StateFailed
	return &CheckoutResult{State: StateFailed, FailureReason: reason}, err
}
