package types

// PlanTier identifies the billing plan for a connected account.
type PlanTier string

const (
	PlanFree   PlanTier = "free"
	PlanPro    PlanTier = "pro"
	PlanAgency PlanTier = "agency"
)

// Valid reports whether the tier is one of the known plans.
func (p PlanTier) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanAgency:
		return true
	}
	return false
}

// Paid reports whether the tier is purchasable through checkout.
// Downgrades to free go through the billing portal, never checkout.
func (p PlanTier) Paid() bool {
	return p == PlanPro || p == PlanAgency
}

// SubscriptionStatus mirrors the payment provider's subscription lifecycle.
type SubscriptionStatus string

const (
	SubStatusActive   SubscriptionStatus = "active"
	SubStatusPastDue  SubscriptionStatus = "past_due"
	SubStatusCanceled SubscriptionStatus = "canceled"
	SubStatusTrialing SubscriptionStatus = "trialing"
	SubStatusUnpaid   SubscriptionStatus = "unpaid"
)

// GenerationStatus tracks the outcome of a single meta-generation attempt.
type GenerationStatus string

const (
	GenerationSucceeded GenerationStatus = "succeeded"
	GenerationFailed    GenerationStatus = "failed"
	GenerationDenied    GenerationStatus = "denied" // blocked by the quota gate
)
