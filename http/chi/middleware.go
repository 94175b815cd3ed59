// Package chi provides Chi-compatible middleware for x402 payment gating.
// This package is a thin adapter that uses the stdlib http.Handler interface
// and delegates the payment decision to the http package.
package chi

import (
	"net/http"

	"github.com/darkhorseone/x402-gate"
	httpx402 "github.com/darkhorseone/x402-gate/http"
)

// NewChiX402Middleware creates payment-gating middleware for Chi.
//
// The middleware:
//   - Bypasses OPTIONS requests for CORS preflight support
//   - Returns 402 Payment Required if the payment is missing or rejected
//   - Returns 503 if the facilitator is unavailable
//   - Calls the next handler with the original request on success
//
// Example usage:
//
//	mw, err := NewChiX402Middleware(x402.PricingConfig{Price: "0.01"}, &httpx402.Deps{
//	    Backend: &x402.BackendConfig{
//	        FacilitatorURL: "https://facilitator.example.com",
//	        SellerAddress:  "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r := chi.NewRouter()
//	r.With(mw).Get("/protected", protectedHandler)
func NewChiX402Middleware(pricing x402.PricingConfig, deps *httpx402.Deps) (func(http.Handler) http.Handler, error) {
	gated, err := httpx402.NewX402Middleware(pricing, deps)
	if err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		protected := gated(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}, nil
}
