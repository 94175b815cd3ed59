package x402

import (
	"context"
	"time"
)

// DefaultScheme is the payment scheme used when a requirement does not name one.
const DefaultScheme = "exact"

// PricingConfig is the static price attached to a protected handler.
type PricingConfig struct {
	// Price is the human-readable amount (e.g., "0.02").
	Price string `json:"price" validate:"required"`

	// Asset is an optional asset symbol or address. Defaults to the backend's DefaultAsset.
	Asset string `json:"asset,omitempty"`

	// Network is an optional network identifier. Defaults to the backend's DefaultNetwork.
	Network string `json:"network,omitempty"`

	// Description is an optional human-readable description of the resource.
	Description string `json:"description,omitempty"`
}

// PaymentRequirement describes the payment that satisfies access to a resource.
// A requirement is built once per request and never mutated afterwards.
type PaymentRequirement struct {
	// Scheme is the payment scheme identifier (e.g., "exact").
	Scheme string `json:"scheme"`

	// Amount is the normalized decimal amount (e.g., "0.02").
	Amount string `json:"amount"`

	// Asset is the asset symbol or token address.
	Asset string `json:"asset"`

	// Network is the blockchain network identifier (e.g., "base", "solana").
	Network string `json:"network"`

	// Seller is the recipient address for the payment.
	Seller string `json:"seller"`

	// Facilitator is the endpoint of the service that verifies payments.
	Facilitator string `json:"facilitator"`

	// ExpiresAt is the instant after which the requirement can no longer be satisfied.
	ExpiresAt time.Time `json:"expiresAt"`

	// Nonce is a unique 32-byte hex string that ties a payment to this requirement.
	Nonce string `json:"nonce"`

	// Description is an optional human-readable payment description.
	Description string `json:"description,omitempty"`
}

// Expired reports whether the requirement is no longer valid at t.
func (r *PaymentRequirement) Expired(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// Credential is an opaque proof of payment extracted from a request.
// A nil Credential means the request made no payment attempt.
type Credential interface{}

// PaymentPayload is the default credential: a signed payment sent by the client
// in the X-PAYMENT header.
type PaymentPayload struct {
	// X402Version is the protocol version (currently 1).
	X402Version int `json:"x402Version"`

	// Scheme is the payment scheme identifier (e.g., "exact").
	Scheme string `json:"scheme"`

	// Network is the blockchain network identifier.
	Network string `json:"network"`

	// Payload contains the blockchain-specific signed payment data.
	Payload interface{} `json:"payload"`
}

// VerificationStatus tags the outcome of checking a credential.
type VerificationStatus string

const (
	StatusSuccess VerificationStatus = "success"
	StatusInvalid VerificationStatus = "invalid"
	StatusExpired VerificationStatus = "expired"
)

// VerificationResult is the outcome of Verifier.Verify. Anything other than
// StatusSuccess denies access.
type VerificationResult struct {
	Status VerificationStatus `json:"status"`
}

// OK reports whether the result grants access.
func (r *VerificationResult) OK() bool {
	return r != nil && r.Status == StatusSuccess
}

// RequirementBuilder builds the requirement for a single request.
// Implementations must be safe for concurrent use.
type RequirementBuilder interface {
	Build(ctx context.Context, pricing PricingConfig) (*PaymentRequirement, error)
}

// Verifier checks a credential against a requirement.
// Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(ctx context.Context, credential Credential, requirement *PaymentRequirement) (*VerificationResult, error)
}
