package x402

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultRequirementBuilder builds requirements from a BackendConfig.
// It holds no per-call state and is safe for concurrent use.
type DefaultRequirementBuilder struct {
	backend BackendConfig
	now     func() time.Time
}

// BuilderOption configures a DefaultRequirementBuilder.
type BuilderOption func(*DefaultRequirementBuilder)

// WithClock overrides the time source used for expiry timestamps.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *DefaultRequirementBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewRequirementBuilder validates backend and returns a builder for it.
func NewRequirementBuilder(backend BackendConfig, opts ...BuilderOption) (*DefaultRequirementBuilder, error) {
	if err := backend.Validate(); err != nil {
		return nil, err
	}
	b := &DefaultRequirementBuilder{
		backend: backend.WithDefaults(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Check reports whether pricing can produce a requirement with this builder's
// backend: a valid price and a seller address matching the resolved network.
// Every error is a *ConfigError.
func (b *DefaultRequirementBuilder) Check(pricing PricingConfig) error {
	if err := pricing.Validate(); err != nil {
		return err
	}
	network := pricing.Network
	if network == "" {
		network = b.backend.DefaultNetwork
	}
	if err := ValidateAddress(network, b.backend.SellerAddress); err != nil {
		return &ConfigError{Field: "SellerAddress", Err: fmt.Errorf("network %s: %w", network, err)}
	}
	return nil
}

// Build returns a fresh requirement for pricing with its own nonce and expiry.
func (b *DefaultRequirementBuilder) Build(ctx context.Context, pricing PricingConfig) (*PaymentRequirement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	amount, err := ParsePrice(pricing.Price)
	if err != nil {
		return nil, err
	}

	network := pricing.Network
	if network == "" {
		network = b.backend.DefaultNetwork
	}
	asset := pricing.Asset
	if asset == "" {
		asset = b.backend.DefaultAsset
	}

	if err := ValidateAddress(network, b.backend.SellerAddress); err != nil {
		return nil, fmt.Errorf("seller for network %s: %w", network, err)
	}

	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}

	return &PaymentRequirement{
		Scheme:      DefaultScheme,
		Amount:      amount.String(),
		Asset:       asset,
		Network:     network,
		Seller:      b.backend.SellerAddress,
		Facilitator: b.backend.FacilitatorURL,
		ExpiresAt:   b.now().Add(b.backend.RequirementTTL).UTC(),
		Nonce:       nonce,
		Description: pricing.Description,
	}, nil
}

// generateNonce returns a cryptographically secure 32-byte random nonce as 0x-prefixed hex.
func generateNonce() (string, error) {
	var nonce common.Hash
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hexutil.Encode(nonce[:]), nil
}
