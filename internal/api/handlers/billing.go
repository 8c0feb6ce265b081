package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seopilot/internal/billing"
	"seopilot/internal/core"
	"seopilot/internal/types"
)

// CheckoutSessionRequest is the request body for POST /v1/billing/checkout-session.
type CheckoutSessionRequest struct {
	Plan string `json:"plan" validate:"required,purchasable"`
}

// PriceOverrideRequest is the request body for PUT /v1/billing/prices.
// Empty values clear the override, falling back to the configured IDs.
type PriceOverrideRequest struct {
	PriceIDPro    string `json:"price_id_pro" validate:"max=255"`
	PriceIDAgency string `json:"price_id_agency" validate:"max=255"`
}

// BillingService runs checkout, portal, and read-only billing flows.
// Implemented by billing.Service.
type BillingService interface {
	StartCheckout(ctx context.Context, localUserID string, plan types.PlanTier) (*billing.CheckoutResult, error)
	OpenPortal(ctx context.Context, localUserID string) (string, error)
	Plans(ctx context.Context) ([]types.PlanInfo, error)
	Info(ctx context.Context, localUserID string) (*types.BillingInfo, error)
}

// SiteKeyRotator mints a new site key. Implemented by billing.KeyService.
type SiteKeyRotator interface {
	Rotate(ctx context.Context) (string, error)
}

// PriceOverrideStore persists site-level price ID overrides, which take
// precedence over the configured IDs at checkout. Implemented by
// db.SettingsRepository.
type PriceOverrideStore interface {
	SavePriceIDs(ctx context.Context, pro, agency string) error
}

// BillingHandler exposes upgrade and subscription endpoints to the plugin.
type BillingHandler struct {
	billing   BillingService
	keys      SiteKeyRotator
	prices    PriceOverrideStore
	logger    *slog.Logger
	validator *core.Validator
}

func NewBillingHandler(svc BillingService, keys SiteKeyRotator, prices PriceOverrideStore, logger *slog.Logger, validator *core.Validator) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{
		billing:   svc,
		keys:      keys,
		prices:    prices,
		logger:    logger,
		validator: validator,
	}
}

// RegisterRoutes mounts the billing endpoints:
//
//   - POST /billing/checkout-session - start an upgrade, returns redirect URL
//   - POST /billing/portal-session   - open the subscription portal
//   - GET  /billing/plans            - purchasable plans from the backend
//   - GET  /billing/info             - current subscription state
//   - POST /billing/site-key         - rotate the plugin's site key
//   - PUT  /billing/prices           - set or clear price ID overrides
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/checkout-session", h.HandleCreateCheckoutSession)
	r.Post("/billing/portal-session", h.HandleCreatePortalSession)
	r.Get("/billing/plans", h.HandleListPlans)
	r.Get("/billing/info", h.HandleGetInfo)
	r.Post("/billing/site-key", h.HandleRotateSiteKey)
	r.Put("/billing/prices", h.HandleSetPriceOverrides)
}

// HandleCreateCheckoutSession starts the checkout flow. A failed attempt is
// still a structured CheckoutResult so the plugin can show where it stopped;
// the HTTP status comes from the underlying failure.
func (h *BillingHandler) HandleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	var req CheckoutSessionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.billing.StartCheckout(r.Context(), actor.LocalUserID, types.PlanTier(req.Plan))
	if err != nil {
		if result != nil && result.State == billing.StateFailed {
			core.JSON(w, r, types.CodeOf(err).HTTPStatus(), core.APIResponse{Data: result})
			return
		}
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

func (h *BillingHandler) HandleCreatePortalSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	url, err := h.billing.OpenPortal(r.Context(), actor.LocalUserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"url": url}})
}

func (h *BillingHandler) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.billing.Plans(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: plans})
}

func (h *BillingHandler) HandleGetInfo(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	info, err := h.billing.Info(r.Context(), actor.LocalUserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: info})
}

// HandleRotateSiteKey regenerates the site key. The plaintext appears in
// this response and nowhere else; only its hash is stored.
func (h *BillingHandler) HandleRotateSiteKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := core.RequireActor(w, r); !ok {
		return
	}

	key, err := h.keys.Rotate(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"site_key": key}})
}

// HandleSetPriceOverrides stores the site-level price IDs the checkout
// resolver prefers over configuration, so an operator can rotate prices
// without a redeploy.
func (h *BillingHandler) HandleSetPriceOverrides(w http.ResponseWriter, r *http.Request) {
	if _, ok := core.RequireActor(w, r); !ok {
		return
	}

	var req PriceOverrideRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.prices.SavePriceIDs(r.Context(), req.PriceIDPro, req.PriceIDAgency); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "price overrides updated",
		"pro_set", req.PriceIDPro != "",
		"agency_set", req.PriceIDAgency != "")

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{
		"price_id_pro":    req.PriceIDPro,
		"price_id_agency": req.PriceIDAgency,
	}})
}
