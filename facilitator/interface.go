// Package facilitator defines the contract between the gate and the service that
// verifies payments on its behalf.
package facilitator

import (
	"context"

	"github.com/darkhorseone/x402-gate"
)

// Interface is the facilitator contract used by the default verifier.
// Settlement is the facilitator's concern and is not part of the gate.
type Interface interface {
	// Verify checks a payment authorization against a requirement without executing it.
	Verify(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*VerifyResponse, error)

	// Supported queries the facilitator for supported payment kinds.
	Supported(ctx context.Context) (*SupportedResponse, error)
}

// VerifyRequest is the body POSTed to the facilitator's /verify endpoint.
type VerifyRequest struct {
	X402Version         int                     `json:"x402Version"`
	PaymentPayload      x402.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements x402.PaymentRequirement `json:"paymentRequirements"`
}

// VerifyResponse contains the payment verification result from the facilitator.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SupportedKind describes a supported payment type with its configuration.
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse lists all payment types supported by the facilitator.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}

// Supports reports whether the facilitator accepts scheme on network.
func (r *SupportedResponse) Supports(scheme, network string) bool {
	if r == nil {
		return false
	}
	for _, k := range r.Kinds {
		if k.Scheme == scheme && k.Network == network {
			return true
		}
	}
	return false
}
