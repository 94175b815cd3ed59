// Package pocketbase provides PocketBase-compatible middleware for x402 payment gating.
// This package is a thin adapter that delegates the payment decision to the
// http package and exposes the paid requirement through the request event store.
package pocketbase

import (
	"log/slog"

	"github.com/pocketbase/pocketbase/core"

	"github.com/darkhorseone/x402-gate"
	httpx402 "github.com/darkhorseone/x402-gate/http"
)

// PaymentKey is the request event store key holding the *x402.PaymentRequirement
// a request paid for.
const PaymentKey = "x402_payment"

// NewPocketBaseX402Middleware creates payment-gating middleware for PocketBase.
//
// The middleware:
//   - Returns 402 Payment Required if the payment is missing or rejected
//   - Returns 503 if the facilitator is unavailable
//   - Stores the paid requirement via e.Set("x402_payment", requirement)
//   - Maps errors returned by later handlers, unless they already wrote a response
//
// Example usage:
//
//	mw, err := NewPocketBaseX402Middleware(x402.PricingConfig{Price: "0.01"}, deps)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
//	    se.Router.GET("/api/premium", handler).BindFunc(mw)
//	    return se.Next()
//	})
func NewPocketBaseX402Middleware(pricing x402.PricingConfig, deps *httpx402.Deps) (func(*core.RequestEvent) error, error) {
	gate, err := httpx402.NewGate(pricing, deps)
	if err != nil {
		return nil, err
	}

	return func(e *core.RequestEvent) error {
		var normalizer httpx402.Normalizer
		requirement, denial := gate.Authorize(e.Request.Context(), func() (*httpx402.Request, error) {
			return normalizer.Adapt(e.Request)
		})
		if denial != nil {
			return render(e, denial)
		}

		e.Set(PaymentKey, requirement)

		err := e.Next()
		if err == nil {
			return nil
		}
		if e.Written() {
			slog.Default().Error("handler failed after response was committed",
				"path", e.Request.URL.Path, "error", err)
			return nil
		}
		return render(e, gate.Fail(err, requirement))
	}, nil
}

func render(e *core.RequestEvent, resp *httpx402.Response) error {
	for k, vs := range resp.Header {
		for _, v := range vs {
			e.Response.Header().Add(k, v)
		}
	}
	return e.JSON(resp.Status, resp.Body)
}
