package http

import (
	"context"

	"github.com/darkhorseone/x402-gate"
)

// Gate runs the payment decision for one protected handler. Its collaborators
// are resolved once; a Gate holds no per-request state and is safe for concurrent use.
type Gate struct {
	pricing x402.PricingConfig
	deps    *Resolved
}

// NewGate resolves deps for pricing. When the default requirement builder is
// used the pricing and the seller's network are checked here as well.
func NewGate(pricing x402.PricingConfig, deps *Deps) (*Gate, error) {
	resolved, err := Resolve(deps)
	if err != nil {
		return nil, err
	}
	if b, ok := resolved.RequirementBuilder.(*x402.DefaultRequirementBuilder); ok {
		if err := b.Check(pricing); err != nil {
			return nil, err
		}
	}
	return &Gate{pricing: pricing, deps: resolved}, nil
}

// Authorize builds the requirement, normalizes the request, extracts the
// credential, and verifies it. A nil Response means the handler may run;
// otherwise the Response is the denial to send.
//
// The requirement is returned whenever one was built, so handler failures
// can be mapped with Fail.
func (g *Gate) Authorize(ctx context.Context, normalize func() (*Request, error)) (*x402.PaymentRequirement, *Response) {
	requirement, err := g.deps.RequirementBuilder.Build(ctx, g.pricing)
	if err != nil {
		return nil, ToResponse(err, nil)
	}
	if requirement == nil {
		return nil, InternalError(messageRequirementUnavailable)
	}

	req, err := normalize()
	if err != nil {
		return requirement, ToResponse(err, requirement)
	}

	credential, err := g.deps.CredentialExtractor.Extract(ctx, req)
	if err != nil {
		return requirement, ToResponse(err, requirement)
	}
	if credential == nil {
		return requirement, PaymentRequired(requirement)
	}

	result, err := g.deps.Verifier.Verify(ctx, credential, requirement)
	if err != nil {
		return requirement, ToResponse(err, requirement)
	}
	if !result.OK() {
		return requirement, PaymentRequired(requirement)
	}

	return requirement, nil
}

// Fail maps an error returned by the protected handler.
func (g *Gate) Fail(err error, requirement *x402.PaymentRequirement) *Response {
	return ToResponse(err, requirement)
}
