package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seopilot/internal/types"
)

// TokenSource supplies the bearer token for authenticated backend calls.
// Implementations return an empty string when no session exists; the client
// then fails fast with an auth error instead of issuing an anonymous
// request the backend would reject anyway.
type TokenSource interface {
	Token(ctx context.Context) string
}

// StaticToken is a TokenSource that always returns the same token.
// Primarily useful in tests.
type StaticToken string

func (t StaticToken) Token(_ context.Context) string { return string(t) }

// APIClientConfig holds the configuration for creating an APIClient.
type APIClientConfig struct {
	BaseURL   string
	UserAgent string
	Logger    *slog.Logger
}

// APIClient talks to the remote SEOPilot API through BaseClient, inheriting
// its circuit breaker, timeout handling, and retry-on-idempotent behavior.
// Every method returns either a decoded domain value or a types.AppError.
type APIClient struct {
	base    *BaseClient
	baseURL string
	tokens  TokenSource
	logger  *slog.Logger
}

// NewAPIClient creates an APIClient. The httpClient carries the bounded
// request timeout (30s unless configured otherwise).
func NewAPIClient(httpClient *http.Client, tokens TokenSource, cfg APIClientConfig) *APIClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"seopilot-api",
		DefaultRetryPolicy(),
		cfg.UserAgent,
	)

	return &APIClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		tokens:  tokens,
		logger:  logger,
	}
}

// NewAPIClientWithBase creates an APIClient with a pre-configured BaseClient.
// This is useful for testing when you want to control retry and breaker behavior.
func NewAPIClientWithBase(base *BaseClient, tokens TokenSource, cfg APIClientConfig) *APIClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &APIClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		tokens:  tokens,
		logger:  logger,
	}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type authResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Plan      string `json:"plan"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
}

type usageResponse struct {
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Plan      string `json:"plan"`
	ResetDate *int64 `json:"reset_date,omitempty"`
}

type plansResponse struct {
	Plans []planEntry `json:"plans"`
}

type planEntry struct {
	Key             string `json:"key"`
	Name            string `json:"name"`
	GenerationLimit int    `json:"generation_limit"`
	PriceCents      int64  `json:"price_cents"`
	Currency        string `json:"currency"`
}

type billingInfoResponse struct {
	Plan              string `json:"plan"`
	Status            string `json:"status"`
	CurrentPeriodEnd  *int64 `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

type metaResponse struct {
	SEOTitle       string `json:"seo_title"`
	SEODescription string `json:"seo_description"`
}

type siteKeyResponse struct {
	SiteKey string `json:"site_key"`
}

// ---------------------------------------------------------------------------
// Auth operations
// ---------------------------------------------------------------------------

// Register creates a new account on the backend and returns the issued
// session. The backend enforces email uniqueness; a duplicate maps to
// ErrCodeConflictUserExists.
func (c *APIClient) Register(ctx context.Context, email, password string) (*types.SessionInfo, error) {
	body := map[string]string{
		"email":    types.CanonicalizeEmail(email),
		"password": password,
	}

	resp, err := c.doPost(ctx, "/v1/auth/register", body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.handleErrorResponse(resp, "Register")
	}

	return decodeSession(resp.Body)
}

// Login exchanges credentials for a session token.
func (c *APIClient) Login(ctx context.Context, email, password string) (*types.SessionInfo, error) {
	body := map[string]string{
		"email":    types.CanonicalizeEmail(email),
		"password": password,
	}

	resp, err := c.doPost(ctx, "/v1/auth/login", body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, "Login")
	}

	return decodeSession(resp.Body)
}

// Logout invalidates the session token on the backend. A network failure
// here is reported to the caller, who still clears local state; the remote
// token then dies of expiry.
func (c *APIClient) Logout(ctx context.Context) error {
	resp, err := c.doPost(ctx, "/v1/auth/logout", nil, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.handleErrorResponse(resp, "Logout")
	}

	return nil
}

// ---------------------------------------------------------------------------
// Usage and plans
// ---------------------------------------------------------------------------

// GetUsage fetches the caller's current consumption counters. Requires an
// authenticated session.
func (c *APIClient) GetUsage(ctx context.Context) (*types.UsageSnapshot, error) {
	resp, err := c.doGet(ctx, "/v1/usage", nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, "GetUsage")
	}

	var wire usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, decodeError("usage", err)
	}

	snap := &types.UsageSnapshot{
		Used:      wire.Used,
		Limit:     wire.Limit,
		Plan:      types.PlanTier(wire.Plan),
		FetchedAt: time.Now().UTC(),
	}
	if wire.ResetDate != nil {
		snap.ResetDate = time.Unix(*wire.ResetDate, 0).UTC()
	}
	// Limit 0 means unlimited; Remaining is meaningless there and stays 0.
	if wire.Limit > 0 {
		snap.Remaining = wire.Limit - wire.Used
		if snap.Remaining < 0 {
			snap.Remaining = 0
		}
	}

	return snap, nil
}

// GetPlans returns the plan catalog. Public endpoint, no auth required.
func (c *APIClient) GetPlans(ctx context.Context) ([]types.PlanInfo, error) {
	resp, err := c.doGet(ctx, "/v1/plans", nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, "GetPlans")
	}

	var wire plansResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, decodeError("plans", err)
	}

	plans := make([]types.PlanInfo, 0, len(wire.Plans))
	for _, p := range wire.Plans {
		plans = append(plans, types.PlanInfo{
			Name:            p.Name,
			Tier:            types.PlanTier(p.Key),
			PriceCents:      p.PriceCents,
			Currency:        p.Currency,
			GenerationLimit: p.GenerationLimit,
		})
	}

	return plans, nil
}

// GetBillingInfo returns the caller's subscription state.
func (c *APIClient) GetBillingInfo(ctx context.Context) (*types.BillingInfo, error) {
	resp, err := c.doGet(ctx, "/v1/billing", nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, "GetBillingInfo")
	}

	var wire billingInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, decodeError("billing info", err)
	}

	info := &types.BillingInfo{
		Plan:              types.PlanTier(wire.Plan),
		Status:            types.SubscriptionStatus(wire.Status),
		CancelAtPeriodEnd: wire.CancelAtPeriodEnd,
	}
	if wire.CurrentPeriodEnd != nil {
		t := time.Unix(*wire.CurrentPeriodEnd, 0).UTC()
		info.CurrentPeriodEnd = &t
	}

	return info, nil
}

// ---------------------------------------------------------------------------
// Billing sessions
// ---------------------------------------------------------------------------

// CreateCheckoutSession asks the backend to open a hosted checkout for the
// given price and returns the redirect URL. Never retried: a duplicate call
// would open a second checkout.
func (c *APIClient) CreateCheckoutSession(ctx context.Context, req types.CheckoutRequest) (string, error) {
	body := map[string]string{
		"plan":        string(req.PlanKey),
		"price_id":    req.PriceID,
		"success_url": req.SuccessURL,
		"cancel_url":  req.CancelURL,
	}

	resp, err := c.doPost(ctx, "/v1/billing/checkout-sessions", body, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var wire redirectResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", decodeError("checkout session", err)
	}
	if wire.URL == "" {
		return "", types.NewAppError(
			types.ErrCodeCheckoutFailed,
			"backend returned a checkout session without a redirect URL",
			nil,
		)
	}

	return wire.URL, nil
}

// CreatePortalSession returns a redirect URL to the hosted billing portal.
func (c *APIClient) CreatePortalSession(ctx context.Context, returnURL string) (string, error) {
	body := map[string]string{
		"return_url": returnURL,
	}

	resp, err := c.doPost(ctx, "/v1/billing/portal-sessions", body, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.handleErrorResponse(resp, "CreatePortalSession")
	}

	var wire redirectResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", decodeError("portal session", err)
	}

	return wire.URL, nil
}

// ---------------------------------------------------------------------------
// Generation and site key
// ---------------------------------------------------------------------------

// GenerateMeta submits post content for SEO metadata generation. Never
// retried: each successful call consumes quota on the backend.
func (c *APIClient) GenerateMeta(ctx context.Context, req types.MetaRequest) (*types.MetaResult, error) {
	body := map[string]any{
		"post_id": req.PostID,
		"title":   req.Title,
		"content": req.Content,
	}

	resp, err := c.doPost(ctx, "/v1/generate/meta", body, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, "GenerateMeta")
	}

	var wire metaResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, decodeError("meta generation", err)
	}

	return &types.MetaResult{
		PostID:         req.PostID,
		SEOTitle:       wire.SEOTitle,
		SEODescription: wire.SEODescription,
	}, nil
}

// RegenerateSiteKey rotates the site API key on the backend and returns the
// new plaintext key. The caller persists only a hash of it.
func (c *APIClient) RegenerateSiteKey(ctx context.Context) (string, error) {
	resp, err := c.doPost(ctx, "/v1/site-key/regenerate", nil, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.handleErrorResponse(resp, "RegenerateSiteKey")
	}

	var wire siteKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", decodeError("site key", err)
	}
	if wire.SiteKey == "" {
		return "", types.NewAppError(
			types.ErrCodeUpstreamServer,
			"backend returned an empty site key",
			nil,
		)
	}

	return wire.SiteKey, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// doGet performs a GET request against the backend API.
func (c *APIClient) doGet(ctx context.Context, path string, params url.Values, authed bool) (*http.Response, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build backend request", err)
	}
	req.Header.Set("Accept", "application/json")

	if authed {
		if err := c.attachToken(req); err != nil {
			return nil, err
		}
	}

	return c.base.Do(req)
}

// doPost performs a POST request with a JSON body against the backend API.
// A nil body sends an empty request.
func (c *APIClient) doPost(ctx context.Context, path string, body any, authed bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode backend request", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build backend request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed {
		if err := c.attachToken(req); err != nil {
			return nil, err
		}
	}

	return c.base.Do(req)
}

// attachToken sets the bearer token, failing fast when no session exists.
func (c *APIClient) attachToken(req *http.Request) error {
	token := c.tokens.Token(req.Context())
	if token == "" {
		return types.NewAppError(
			types.ErrCodeAuthRequired,
			"no active session; sign in first",
			nil,
		)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// handleErrorResponse reads a backend error envelope and maps it to a
// types.AppError. Unknown codes fall back to a status-based mapping.
func (c *APIClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamServer,
			fmt.Sprintf("%s: backend returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var wire apiErrorResponse
	if jsonErr := json.Unmarshal(body, &wire); jsonErr == nil && wire.Error.Code != "" {
		if code, ok := backendErrorCodes[wire.Error.Code]; ok {
			msg := wire.Error.Message
			if msg == "" {
				msg = fmt.Sprintf("%s: backend rejected the request", operation)
			}
			return types.NewAppError(code, msg, nil)
		}
	}

	return types.NewAppError(
		statusFallbackCode(resp.StatusCode),
		fmt.Sprintf("%s: backend returned status %d", operation, resp.StatusCode),
		nil,
	)
}

// backendErrorCodes maps the backend's wire error codes onto the local
// taxonomy. Codes the backend adds later degrade to the status fallback.
var backendErrorCodes = map[string]types.ErrorCode{
	"USER_EXISTS":         types.ErrCodeConflictUserExists,
	"INVALID_CREDENTIALS": types.ErrCodeAuthInvalidCreds,
	"AUTH_REQUIRED":       types.ErrCodeAuthRequired,
	"TOKEN_INVALID":       types.ErrCodeAuthTokenInvalid,
	"SESSION_EXPIRED":     types.ErrCodeAuthSessionExpired,
	"LIMIT_EXCEEDED":      types.ErrCodeLimitGenerations,
	"CHECKOUT_FAILED":     types.ErrCodeCheckoutFailed,
	"VALIDATION_ERROR":    types.ErrCodeValidationMissingField,
	"WEAK_PASSWORD":       types.ErrCodeValidationPassword,
	"INVALID_PLAN":        types.ErrCodeValidationInvalidPlan,
}

func statusFallbackCode(status int) types.ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return types.ErrCodeAuthRequired
	case status == http.StatusPaymentRequired:
		return types.ErrCodeCheckoutFailed
	case status == http.StatusForbidden:
		return types.ErrCodeAuthTokenInvalid
	case status == http.StatusNotFound:
		return types.ErrCodeNotFoundRecord
	case status == http.StatusConflict:
		return types.ErrCodeConflictUserExists
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return types.ErrCodeValidationMissingField
	case status == http.StatusTooManyRequests:
		return types.ErrCodeUpstreamRateLimited
	case status >= 500:
		return types.ErrCodeUpstreamServer
	default:
		return types.ErrCodeNetworkError
	}
}

func decodeSession(r io.Reader) (*types.SessionInfo, error) {
	var wire authResponse
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, decodeError("auth", err)
	}
	if wire.Token == "" || wire.UserID == "" {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamServer,
			"backend auth response is missing the token or user id",
			nil,
		)
	}

	info := &types.SessionInfo{
		Token:  wire.Token,
		UserID: wire.UserID,
		Email:  wire.Email,
		Plan:   types.PlanTier(wire.Plan),
	}
	if info.Plan == "" {
		info.Plan = types.PlanFree
	}
	if wire.ExpiresAt != nil {
		t := time.Unix(*wire.ExpiresAt, 0).UTC()
		info.ExpiresAt = &t
	}

	return info, nil
}

func decodeError(what string, err error) *types.AppError {
	return types.NewAppError(
		types.ErrCodeInternalUnexpected,
		fmt.Sprintf("failed to decode backend %s response", what),
		err,
	)
}
