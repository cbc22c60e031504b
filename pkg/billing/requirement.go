// Package billing decides whether a protected tool may execute for a given
// user and records usage after it does. Denials surface as taxonomy payment
// errors; the remote check fails closed while usage deduction is
// fire-and-forget, since money and observability carry different risk.
package billing

// RequirementKind discriminates the Requirement union.
type RequirementKind string

const (
	KindCredits      RequirementKind = "credits"
	KindSubscription RequirementKind = "subscription"
	KindPrice        RequirementKind = "price"
)

// Requirement is the paywall attached to one tool. It is a tagged union:
// exactly the fields for its Kind are meaningful.
type Requirement struct {
	Kind RequirementKind `json:"kind"`

	// Credits consumed per call (KindCredits).
	Credits int `json:"credits,omitempty"`

	// Tier required, plus optional additional tiers that also satisfy the
	// requirement (KindSubscription).
	Tier         string   `json:"tier,omitempty"`
	AllowedTiers []string `json:"allowedTiers,omitempty"`

	// Billing price identifier for per-call pricing (KindPrice).
	PriceID string `json:"priceId,omitempty"`
}

// Credits builds a consumption requirement of n credits per call.
func Credits(n int) Requirement {
	return Requirement{Kind: KindCredits, Credits: n}
}

// Subscription builds a tier requirement. Additional tiers that also grant
// access may be listed.
func Subscription(tier string, allowed ...string) Requirement {
	return Requirement{Kind: KindSubscription, Tier: tier, AllowedTiers: allowed}
}

// Price builds a per-call price requirement.
func Price(priceID string) Requirement {
	return Requirement{Kind: KindPrice, PriceID: priceID}
}

// Decision is the billing authority's verdict for one check.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Credits   *int   `json:"credits,omitempty"`
	Tier      string `json:"tier,omitempty"`
	Reason    string `json:"reason,omitempty"`
	ActionURL string `json:"actionUrl,omitempty"`
}
