package types

import "time"

// Session is the authenticated identity and plan context for a local CMS user.
// One record exists per local user identity; it is owned exclusively by the
// session store and mutated only by login/register/logout/refresh operations.
//
// Invariant: a non-empty Token implies non-empty RemoteUserID and a valid
// Plan. An absent token means the connector runs in unauthenticated mode and
// every authenticated operation fails with auth_required.
type Session struct {
	LocalUserID  string     `json:"local_user_id" db:"local_user_id"`
	Token        string     `json:"-" db:"token"`
	RemoteUserID string     `json:"remote_user_id" db:"remote_user_id"`
	Email        string     `json:"email" db:"email"`
	Plan         PlanTier   `json:"plan" db:"plan"`
	IssuedAt     time.Time  `json:"issued_at" db:"issued_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// Authenticated reports whether the session carries a usable token.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// UsageSnapshot is a point-in-time view of consumed vs. allowed generations.
// Limit == 0 is the unlimited sentinel per plan convention; Remaining is
// meaningless in that case and must not be used to deny an action.
type UsageSnapshot struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Plan      PlanTier  `json:"plan"`
	ResetDate time.Time `json:"reset_date"`
	FetchedAt time.Time `json:"fetched_at"`

	// Stale marks a snapshot served past its TTL because a refresh failed.
	// Consumers must be able to tell "stale-but-usable" from "unknown".
	Stale bool `json:"stale,omitempty"`
}

// Unlimited reports whether the snapshot's plan has no generation cap.
func (u *UsageSnapshot) Unlimited() bool {
	return u.Limit == 0
}

// SessionInfo is the backend's response to register/login: the issued token
// plus the user/plan snapshot to persist locally.
type SessionInfo struct {
	Token     string     `json:"token"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	Plan      PlanTier   `json:"plan"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// PlanInfo describes a purchasable plan as advertised by the backend.
// Read-only, unauthenticated-allowed.
type PlanInfo struct {
	Name            string   `json:"name"`
	Tier            PlanTier `json:"tier"`
	PriceCents      int64    `json:"price_cents"`
	Currency        string   `json:"currency"`
	GenerationLimit int      `json:"generation_limit"` // 0 = unlimited
}

// BillingInfo is the backend's view of the account's subscription state.
type BillingInfo struct {
	Plan              PlanTier           `json:"plan"`
	Status            SubscriptionStatus `json:"status"`
	CurrentPeriodEnd  *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
}

// CheckoutRequest captures one checkout attempt. Transient; constructed per
// attempt, never persisted.
type CheckoutRequest struct {
	PlanKey    PlanTier `json:"plan_key"`
	PriceID    string   `json:"price_id"`
	SuccessURL string   `json:"success_url"`
	CancelURL  string   `json:"cancel_url"`
}

// PlanPriceMap maps purchasable plan tiers to payment-provider price IDs.
// Resolved from settings at request time; read-only thereafter. Checkout is
// short-circuited with a configuration error when an entry is empty.
type PlanPriceMap map[PlanTier]string

// PriceFor returns the price ID for the given plan and whether it is set.
func (m PlanPriceMap) PriceFor(plan PlanTier) (string, bool) {
	id, ok := m[plan]
	return id, ok && id != ""
}

// MetaRequest describes a single post to generate SEO metadata for.
type MetaRequest struct {
	PostID  string `json:"post_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// MetaResult is the generated SEO title/description pair for one post.
type MetaResult struct {
	PostID         string `json:"post_id"`
	SEOTitle       string `json:"seo_title"`
	SEODescription string `json:"seo_description"`
}

// GenerationRecord is the persisted history row for one generation attempt.
type GenerationRecord struct {
	ID          string           `json:"id" db:"id"`
	LocalUserID string           `json:"local_user_id" db:"local_user_id"`
	PostID      string           `json:"post_id" db:"post_id"`
	Status      GenerationStatus `json:"status" db:"status"`
	ErrorCode   string           `json:"error_code,omitempty" db:"error_code"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

// SiteSettings is the configuration record owned by the settings repo.
// SiteKeyHash stores only a bcrypt hash of the site API key; the plaintext is
// shown exactly once, on regeneration.
type SiteSettings struct {
	PriceIDPro    string    `json:"price_id_pro" db:"price_id_pro"`
	PriceIDAgency string    `json:"price_id_agency" db:"price_id_agency"`
	SiteKeyHash   string    `json:"-" db:"site_key_hash"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// PriceMap assembles the PlanPriceMap from the stored settings.
func (s *SiteSettings) PriceMap() PlanPriceMap {
	return PlanPriceMap{
		PlanPro:    s.PriceIDPro,
		PlanAgency: s.PriceIDAgency,
	}
}
