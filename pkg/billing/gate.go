package billing

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tollgate/tollgate-go/pkg/mcperr"
	"github.com/tollgate/tollgate-go/pkg/toolwrap"
)

// UserIDExtractor resolves the billing user from a tool input. Returning an
// empty string means no user could be identified.
type UserIDExtractor func(input map[string]interface{}) string

// DefaultUserID reads the conventional user id keys from the input.
func DefaultUserID(input map[string]interface{}) string {
	for _, key := range []string{"userId", "user_id"} {
		if v, ok := input[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Gate wraps tool handlers with a paywall decision and post-success usage
// deduction.
type Gate struct {
	client *Client
	logger zerolog.Logger
}

// NewGate creates a gate over the given billing client.
func NewGate(client *Client, logger *zerolog.Logger) *Gate {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Gate{
		client: client,
		logger: l.With().Str("component", "billing").Logger(),
	}
}

// Protect wraps handler so that each call is checked against the requirement
// before execution, using the conventional user id input keys.
func (g *Gate) Protect(tool string, req Requirement, handler toolwrap.Handler) toolwrap.Handler {
	return g.ProtectWithExtractor(tool, req, DefaultUserID, handler)
}

// ProtectWithExtractor is Protect with a caller-supplied user id strategy.
//
// Call order per invocation: resolve user id (payment-required when absent,
// no network call) → billing check → requirement-specific denial or handler
// execution → for credit requirements, usage deduction after success.
// Deduction failure is logged and never unwinds the delivered result.
func (g *Gate) ProtectWithExtractor(tool string, req Requirement, extract UserIDExtractor, handler toolwrap.Handler) toolwrap.Handler {
	return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		if g == nil || g.client == nil {
			return nil, mcperr.NewConfigurationError("billing gate used before initialization")
		}
		if extract == nil {
			extract = DefaultUserID
		}

		userID := extract(input)
		if userID == "" {
			return nil, mcperr.NewPaymentRequired("no user identity supplied for paid tool", "", req.PriceID)
		}

		decision, err := g.client.Check(ctx, userID, req, tool)
		if err != nil {
			// Fail closed: the synthesized decision already denies with a
			// reason and action URL.
			g.logger.Warn().Err(err).Str("tool", tool).Str("user_id", userID).Msg("Billing check failed, denying")
		}
		if !decision.Allowed {
			return nil, denialError(req, decision)
		}

		result, err := handler(ctx, input)
		if err != nil {
			return nil, err
		}

		if req.Kind == KindCredits {
			if derr := g.client.Deduct(ctx, userID, req.Credits, tool); derr != nil {
				g.logger.Warn().Err(derr).
					Str("tool", tool).
					Str("user_id", userID).
					Int("credits", req.Credits).
					Msg("Credit deduction failed, result already delivered")
			}
		}

		return result, nil
	}
}

// denialError maps a disallowing decision to the requirement-specific
// taxonomy error. The decision's reason rides along in the error data so a
// fail-closed denial (no balance reported, "billing service unreachable")
// stays distinguishable from a genuine one.
func denialError(req Requirement, decision Decision) *mcperr.Error {
	switch req.Kind {
	case KindCredits:
		return mcperr.NewInsufficientCredits(req.Credits, decision.Credits, decision.ActionURL).
			WithReason(decision.Reason)
	case KindSubscription:
		return mcperr.NewSubscriptionRequired(req.Tier, decision.Tier, decision.ActionURL).
			WithReason(decision.Reason)
	default:
		return mcperr.NewPaymentRequired(decision.Reason, decision.ActionURL, req.PriceID)
	}
}
