// Package gin provides Gin-compatible middleware for x402 payment gating.
// This package is a thin adapter that materializes gin.Context requests and
// delegates the payment decision to the http package.
package gin

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/darkhorseone/x402-gate"
	httpx402 "github.com/darkhorseone/x402-gate/http"
	"github.com/darkhorseone/x402-gate/http/internal/helpers"
)

// PaymentKey is the gin.Context key holding the *x402.PaymentRequirement a
// request paid for.
const PaymentKey = "x402_payment"

// NewGinX402Middleware creates payment-gating middleware for Gin.
//
// The middleware:
//   - Returns 402 Payment Required if the payment is missing or rejected
//   - Returns 503 if the facilitator is unavailable
//   - Stores the paid requirement in the Gin context via c.Set("x402_payment", requirement)
//   - Calls c.Abort() on denial to stop the handler chain
//   - Maps errors added with c.Error by later handlers, unless they already wrote a response
//
// Example usage:
//
//	mw, err := NewGinX402Middleware(x402.PricingConfig{Price: "0.01"}, &httpx402.Deps{
//	    Backend: &x402.BackendConfig{
//	        FacilitatorURL: "https://facilitator.example.com",
//	        SellerAddress:  "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r := gin.Default()
//	r.GET("/protected", mw, func(c *gin.Context) {
//	    c.JSON(200, gin.H{"ok": true})
//	})
func NewGinX402Middleware(pricing x402.PricingConfig, deps *httpx402.Deps) (gin.HandlerFunc, error) {
	gate, err := httpx402.NewGate(pricing, deps)
	if err != nil {
		return nil, err
	}
	return func(c *gin.Context) {
		handle(c, gate, c.Next)
	}, nil
}

// Wrap gates a single Gin handler. The returned handler runs next only after
// the payment is verified.
func Wrap(pricing x402.PricingConfig, next gin.HandlerFunc, deps *httpx402.Deps) (gin.HandlerFunc, error) {
	gate, err := httpx402.NewGate(pricing, deps)
	if err != nil {
		return nil, err
	}
	return func(c *gin.Context) {
		handle(c, gate, func() { next(c) })
	}, nil
}

func handle(c *gin.Context, gate *httpx402.Gate, next func()) {
	var normalizer httpx402.Normalizer
	requirement, denial := gate.Authorize(c.Request.Context(), func() (*httpx402.Request, error) {
		return normalizer.AdaptSync(materialize(c))
	})
	if denial != nil {
		abort(c, denial)
		return
	}

	c.Set(PaymentKey, requirement)

	seen := len(c.Errors)
	next()
	if len(c.Errors) == seen {
		return
	}

	err := c.Errors.Last().Err
	if c.Writer.Written() {
		slog.Default().Error("handler failed after response was committed",
			"path", c.Request.URL.Path, "status", c.Writer.Status(), "error", err)
		return
	}
	abort(c, gate.Fail(err, requirement))
}

func abort(c *gin.Context, resp *httpx402.Response) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			c.Writer.Header().Add(k, v)
		}
	}
	c.AbortWithStatusJSON(resp.Status, resp.Body)
}

// materialize reads the request into plain structures. A decodable body is
// restored on c.Request and cached under gin.BodyBytesKey so handlers can
// still bind it.
func materialize(c *gin.Context) *httpx402.MaterializedRequest {
	m := &httpx402.MaterializedRequest{
		Method: c.Request.Method,
		Header: c.Request.Header,
		Raw:    c,
	}
	if c.Request.URL != nil {
		m.URL = c.Request.URL.String()
		m.Query = c.Request.URL.Query()
	}

	contentType := c.ContentType()
	if helpers.Decodable(contentType) {
		if data, ok := helpers.ReadReplayableBody(c.Request, httpx402.MaxBodyBytes); ok {
			c.Set(gin.BodyBytesKey, data)
			m.Body = helpers.DecodeBody(contentType, data)
		}
	}
	return m
}
