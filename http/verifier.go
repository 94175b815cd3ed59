package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/darkhorseone/x402-gate"
	"github.com/darkhorseone/x402-gate/facilitator"
)

// ErrNoVerifyResponse is returned when a facilitator answers Verify with
// neither a response nor an error.
var ErrNoVerifyResponse = errors.New("x402: facilitator returned no verify response")

// FacilitatorVerifier is the default x402.Verifier. It checks the payment's
// scheme, network, and the requirement's expiry locally, then defers to the facilitator.
type FacilitatorVerifier struct {
	facilitator facilitator.Interface
	now         func() time.Time
}

// NewFacilitatorVerifier wraps f. A nil now uses time.Now.
func NewFacilitatorVerifier(f facilitator.Interface, now func() time.Time) *FacilitatorVerifier {
	if now == nil {
		now = time.Now
	}
	return &FacilitatorVerifier{facilitator: f, now: now}
}

// Verify implements x402.Verifier. Only facilitator errors are returned as errors;
// every rejected payment is reported through the result status.
func (v *FacilitatorVerifier) Verify(ctx context.Context, credential x402.Credential, requirement *x402.PaymentRequirement) (*x402.VerificationResult, error) {
	var payment x402.PaymentPayload
	switch c := credential.(type) {
	case x402.PaymentPayload:
		payment = c
	case *x402.PaymentPayload:
		if c == nil {
			return &x402.VerificationResult{Status: x402.StatusInvalid}, nil
		}
		payment = *c
	default:
		return &x402.VerificationResult{Status: x402.StatusInvalid}, nil
	}

	if requirement.Expired(v.now()) {
		return &x402.VerificationResult{Status: x402.StatusExpired}, nil
	}
	if payment.Scheme != requirement.Scheme || !sameNetwork(payment.Network, requirement.Network) {
		return &x402.VerificationResult{Status: x402.StatusInvalid}, nil
	}

	resp, err := v.facilitator.Verify(ctx, payment, *requirement)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrNoVerifyResponse
	}

	switch {
	case resp.IsValid:
		return &x402.VerificationResult{Status: x402.StatusSuccess}, nil
	case strings.Contains(strings.ToLower(resp.InvalidReason), "expired"):
		return &x402.VerificationResult{Status: x402.StatusExpired}, nil
	default:
		return &x402.VerificationResult{Status: x402.StatusInvalid}, nil
	}
}

// sameNetwork treats aliases such as "base" and "base-mainnet" as equal.
func sameNetwork(a, b string) bool {
	if a == b {
		return true
	}
	ca, okA := x402.LookupChain(a)
	cb, okB := x402.LookupChain(b)
	return okA && okB && ca.NetworkID == cb.NetworkID
}
