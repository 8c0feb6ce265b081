package billing

import (
	"context"
	"encoding/json"
	"log/slog"

	"seopilot/internal/types"

	stripe "github.com/stripe/stripe-go/v82"
)

// WebhookVerifier checks a webhook payload's signature.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// StripeVerifier verifies Stripe-format signatures: HMAC-SHA256 with
// timestamp tolerance, as implemented by stripe-go.
type StripeVerifier struct{}

func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return stripe.ValidatePayload(payload, header, secret)
}

// PlanUpdater applies a verified plan change to the local session record.
// Implemented by session.Store.
type PlanUpdater interface {
	UpdatePlan(ctx context.Context, localUserID string, plan types.PlanTier) error
}

// webhookEvent is the slice of the Stripe event envelope the processor
// reads. The backend puts the connector's local user ID and the resolved
// plan into the object metadata.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// WebhookProcessor applies billing events pushed by the backend. Events are
// idempotent by construction: applying the same plan twice is a no-op at
// the repository level.
type WebhookProcessor struct {
	verifier WebhookVerifier
	secret   string
	sessions PlanUpdater
	logger   *slog.Logger
}

func NewWebhookProcessor(verifier WebhookVerifier, secret string, sessions PlanUpdater, logger *slog.Logger) *WebhookProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookProcessor{verifier: verifier, secret: secret, sessions: sessions, logger: logger}
}

// Process verifies the payload signature and applies the event. Unknown
// event types are acknowledged and skipped so the sender stops retrying
// them; a bad signature is rejected outright.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, sigHeader string) error {
	if err := p.verifier.Verify(payload, sigHeader, p.secret); err != nil {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "webhook signature verification failed", err)
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return types.NewAppError(types.ErrCodeValidationMissingField, "malformed webhook payload", err)
	}

	switch event.Type {
	case "checkout.session.completed", "customer.subscription.updated":
		return p.applyPlanChange(ctx, event, planFromMetadata(event.Data.Object.Metadata))
	case "customer.subscription.deleted":
		// Cancellation lands the account back on the free tier.
		return p.applyPlanChange(ctx, event, types.PlanFree)
	default:
		p.logger.DebugContext(ctx, "ignoring webhook event",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.Type))
		return nil
	}
}

func (p *WebhookProcessor) applyPlanChange(ctx context.Context, event webhookEvent, plan types.PlanTier) error {
	localUserID := event.Data.Object.Metadata["local_user_id"]
	if localUserID == "" {
		p.logger.WarnContext(ctx, "webhook event without local_user_id metadata, skipping",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.Type))
		return nil
	}
	if !plan.Valid() {
		p.logger.WarnContext(ctx, "webhook event with unknown plan, skipping",
			slog.String("event_id", event.ID),
			slog.String("plan", event.Data.Object.Metadata["plan"]))
		return nil
	}

	if err := p.sessions.UpdatePlan(ctx, localUserID, plan); err != nil {
		// A user with no local session just hasn't logged in on this site;
		// nothing to reconcile.
		if types.CodeOf(err) == types.ErrCodeNotFoundSession {
			return nil
		}
		return err
	}

	p.logger.InfoContext(ctx, "plan reconciled from webhook",
		slog.String("event_id", event.ID),
		slog.String("local_user_id", localUserID),
		slog.String("plan", string(plan)))
	return nil
}

func planFromMetadata(metadata map[string]string) types.PlanTier {
	return types.PlanTier(metadata["plan"])
}
