package types

import "testing"

func TestPlanTier_Valid(t *testing.T) {
	for _, p := range []PlanTier{PlanFree, PlanPro, PlanAgency} {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if PlanTier("enterprise").Valid() {
		t.Error("unknown tier should not be valid")
	}
}

func TestPlanTier_Paid(t *testing.T) {
	if PlanFree.Paid() {
		t.Error("free is not purchasable")
	}
	if !PlanPro.Paid() || !PlanAgency.Paid() {
		t.Error("pro and agency are purchasable")
	}
}

func TestSession_Authenticated(t *testing.T) {
	var nilSession *Session
	if nilSession.Authenticated() {
		t.Error("nil session must not be authenticated")
	}
	if (&Session{LocalUserID: "u1"}).Authenticated() {
		t.Error("session without token must not be authenticated")
	}
	if !(&Session{LocalUserID: "u1", Token: "tok"}).Authenticated() {
		t.Error("session with token must be authenticated")
	}
}

func TestUsageSnapshot_Unlimited(t *testing.T) {
	if !(&UsageSnapshot{Limit: 0, Used: 999}).Unlimited() {
		t.Error("limit 0 is the unlimited sentinel")
	}
	if (&UsageSnapshot{Limit: 10}).Unlimited() {
		t.Error("limit 10 is not unlimited")
	}
}

func TestPlanPriceMap_PriceFor(t *testing.T) {
	m := PlanPriceMap{PlanPro: "price_123", PlanAgency: ""}

	if id, ok := m.PriceFor(PlanPro); !ok || id != "price_123" {
		t.Errorf("PriceFor(pro) = %q, %v", id, ok)
	}
	if _, ok := m.PriceFor(PlanAgency); ok {
		t.Error("empty price entry must not resolve")
	}
	if _, ok := m.PriceFor(PlanFree); ok {
		t.Error("free plan has no price entry")
	}
}
