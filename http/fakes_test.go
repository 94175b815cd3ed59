package http

import (
	"context"
	"time"

	"github.com/darkhorseone/x402-gate"
)

const testSeller = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"

type builderFunc func(ctx context.Context, pricing x402.PricingConfig) (*x402.PaymentRequirement, error)

func (f builderFunc) Build(ctx context.Context, pricing x402.PricingConfig) (*x402.PaymentRequirement, error) {
	return f(ctx, pricing)
}

type extractorFunc func(ctx context.Context, req *Request) (x402.Credential, error)

func (f extractorFunc) Extract(ctx context.Context, req *Request) (x402.Credential, error) {
	return f(ctx, req)
}

type verifierFunc func(ctx context.Context, c x402.Credential, r *x402.PaymentRequirement) (*x402.VerificationResult, error)

func (f verifierFunc) Verify(ctx context.Context, c x402.Credential, r *x402.PaymentRequirement) (*x402.VerificationResult, error) {
	return f(ctx, c, r)
}

func testRequirement() *x402.PaymentRequirement {
	return &x402.PaymentRequirement{
		Scheme:      "exact",
		Amount:      "0.02",
		Asset:       "USDC",
		Network:     "base-mainnet",
		Seller:      testSeller,
		Facilitator: "https://facilitator.example",
		ExpiresAt:   time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second),
		Nonce:       "0x0000000000000000000000000000000000000000000000000000000000000001",
	}
}

func staticBuilder(req *x402.PaymentRequirement) builderFunc {
	return func(context.Context, x402.PricingConfig) (*x402.PaymentRequirement, error) {
		return req, nil
	}
}

func staticExtractor(c x402.Credential, err error) extractorFunc {
	return func(context.Context, *Request) (x402.Credential, error) {
		return c, err
	}
}

func staticVerifier(status x402.VerificationStatus, err error) verifierFunc {
	return func(context.Context, x402.Credential, *x402.PaymentRequirement) (*x402.VerificationResult, error) {
		if err != nil {
			return nil, err
		}
		return &x402.VerificationResult{Status: status}, nil
	}
}

func testBackend(url string) *x402.BackendConfig {
	return &x402.BackendConfig{
		FacilitatorURL: url,
		SellerAddress:  testSeller,
	}
}

var testPricing = x402.PricingConfig{Price: "0.02", Asset: "USDC", Network: "base-mainnet"}
