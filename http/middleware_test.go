package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/darkhorseone/x402-gate"
	"github.com/darkhorseone/x402-gate/encoding"
	"github.com/darkhorseone/x402-gate/facilitator"
)

func okHandler(calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func wrapWith(t *testing.T, next http.Handler, deps *Deps) http.Handler {
	t.Helper()
	h, err := Wrap(testPricing, next, deps)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	return h
}

func decodeDenial(t *testing.T, rec *httptest.ResponseRecorder) DenialBody {
	t.Helper()
	var body DenialBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode denial: %v", err)
	}
	return body
}

func TestWrap_NoCredentialReturns402(t *testing.T) {
	var calls atomic.Int32
	h := wrapWith(t, okHandler(&calls), &Deps{
		Backend:  testBackend("https://facilitator.example"),
		Verifier: staticVerifier(x402.StatusSuccess, nil),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages", nil))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected status 402, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	body := decodeDenial(t, rec)
	if body.Error != "payment_required" {
		t.Errorf("Expected error payment_required, got %s", body.Error)
	}
	if body.Message != "Payment required to access this resource." {
		t.Errorf("Expected message, got %q", body.Message)
	}
	if body.Payment == nil {
		t.Fatal("Expected payment requirement in body")
	}
	if body.Payment.Amount != "0.02" || body.Payment.Asset != "USDC" || body.Payment.Network != "base-mainnet" {
		t.Errorf("Expected 0.02 USDC on base-mainnet, got %+v", body.Payment)
	}
	if body.Payment.Seller != testSeller {
		t.Errorf("Expected seller %s, got %s", testSeller, body.Payment.Seller)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected handler not to be called, got %d calls", calls.Load())
	}
}

func TestWrap_InvalidResultReturnsSameRequirement(t *testing.T) {
	req := testRequirement()
	var calls atomic.Int32
	h := wrapWith(t, okHandler(&calls), &Deps{
		RequirementBuilder:  staticBuilder(req),
		CredentialExtractor: staticExtractor("proof", nil),
		Verifier:            staticVerifier(x402.StatusInvalid, nil),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages", nil))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected status 402, got %d", rec.Code)
	}
	body := decodeDenial(t, rec)
	if body.Payment == nil || body.Payment.Nonce != req.Nonce || body.Payment.Amount != req.Amount {
		t.Errorf("Expected in-flight requirement, got %+v", body.Payment)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected handler not to be called, got %d calls", calls.Load())
	}
}

func TestWrap_NetworkErrorReturns503(t *testing.T) {
	var calls atomic.Int32
	h := wrapWith(t, okHandler(&calls), &Deps{
		RequirementBuilder:  staticBuilder(testRequirement()),
		CredentialExtractor: staticExtractor("proof", nil),
		Verifier:            staticVerifier("", x402.NewNetworkError("offline")),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if len(body) != 2 || body["error"] != "payment_service_unavailable" || body["message"] != "offline" {
		t.Errorf("Expected {error:payment_service_unavailable, message:offline}, got %v", body)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected handler not to be called, got %d calls", calls.Load())
	}
}

func TestWrap_SuccessPassesThroughUntouched(t *testing.T) {
	var calls atomic.Int32
	h := wrapWith(t, okHandler(&calls), &Deps{
		RequirementBuilder:  staticBuilder(testRequirement()),
		CredentialExtractor: staticExtractor("proof", nil),
		Verifier:            staticVerifier(x402.StatusSuccess, nil),
	})

	gated := httptest.NewRecorder()
	h.ServeHTTP(gated, httptest.NewRequest(http.MethodGet, "/pages", nil))

	direct := httptest.NewRecorder()
	okHandler(new(atomic.Int32)).ServeHTTP(direct, httptest.NewRequest(http.MethodGet, "/pages", nil))

	if gated.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", gated.Code)
	}
	if gated.Body.String() != `{"ok":true}` {
		t.Errorf("Expected body {\"ok\":true}, got %s", gated.Body.String())
	}
	if len(gated.Header()) != len(direct.Header()) {
		t.Errorf("Expected headers %v, got %v", direct.Header(), gated.Header())
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 handler call, got %d", calls.Load())
	}
}

func TestWrap_Idempotent(t *testing.T) {
	var builds atomic.Int32
	var calls atomic.Int32
	h := wrapWith(t, okHandler(&calls), &Deps{
		RequirementBuilder: builderFunc(func(context.Context, x402.PricingConfig) (*x402.PaymentRequirement, error) {
			builds.Add(1)
			return testRequirement(), nil
		}),
		CredentialExtractor: staticExtractor("proof", nil),
		Verifier:            staticVerifier(x402.StatusSuccess, nil),
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
	}

	if calls.Load() != 2 {
		t.Errorf("Expected handler to be called twice, got %d", calls.Load())
	}
	if builds.Load() != 2 {
		t.Errorf("Expected a fresh requirement per request, got %d builds", builds.Load())
	}
}

func TestWrap_StageFailures(t *testing.T) {
	req := testRequirement()

	tests := []struct {
		name       string
		deps       *Deps
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name: "builder fails",
			deps: &Deps{
				RequirementBuilder:  builderFunc(func(context.Context, x402.PricingConfig) (*x402.PaymentRequirement, error) { return nil, errors.New("no price") }),
				CredentialExtractor: staticExtractor("proof", nil),
				Verifier:            staticVerifier(x402.StatusSuccess, nil),
			},
			wantStatus: 500, wantCode: CodeInternalError, wantMsg: "no price",
		},
		{
			name: "builder signals payment required without requirement",
			deps: &Deps{
				RequirementBuilder:  builderFunc(func(context.Context, x402.PricingConfig) (*x402.PaymentRequirement, error) { return nil, x402.ErrPaymentRequired }),
				CredentialExtractor: staticExtractor("proof", nil),
				Verifier:            staticVerifier(x402.StatusSuccess, nil),
			},
			wantStatus: 500, wantCode: CodeInternalError, wantMsg: "Payment required but requirement is unavailable",
		},
		{
			name: "extractor fails with invalid payment",
			deps: &Deps{
				RequirementBuilder:  staticBuilder(req),
				CredentialExtractor: staticExtractor(nil, x402.ErrPaymentInvalid),
				Verifier:            staticVerifier(x402.StatusSuccess, nil),
			},
			wantStatus: 402, wantCode: CodePaymentRequired, wantMsg: MessagePaymentRequired,
		},
		{
			name: "extractor fails unexpectedly",
			deps: &Deps{
				RequirementBuilder:  staticBuilder(req),
				CredentialExtractor: staticExtractor(nil, errors.New("decoder crashed")),
				Verifier:            staticVerifier(x402.StatusSuccess, nil),
			},
			wantStatus: 500, wantCode: CodeInternalError, wantMsg: "decoder crashed",
		},
		{
			name: "verifier reports expired",
			deps: &Deps{
				RequirementBuilder:  staticBuilder(req),
				CredentialExtractor: staticExtractor("proof", nil),
				Verifier:            staticVerifier(x402.StatusExpired, nil),
			},
			wantStatus: 402, wantCode: CodePaymentRequired, wantMsg: MessagePaymentRequired,
		},
		{
			name: "verifier fails unexpectedly",
			deps: &Deps{
				RequirementBuilder:  staticBuilder(req),
				CredentialExtractor: staticExtractor("proof", nil),
				Verifier:            staticVerifier("", errors.New("bad state")),
			},
			wantStatus: 500, wantCode: CodeInternalError, wantMsg: "bad state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			h := wrapWith(t, okHandler(&calls), tt.deps)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			body := decodeDenial(t, rec)
			if body.Error != tt.wantCode || body.Message != tt.wantMsg {
				t.Errorf("Expected %s/%q, got %s/%q", tt.wantCode, tt.wantMsg, body.Error, body.Message)
			}
			if calls.Load() != 0 {
				t.Errorf("Expected handler not to be called, got %d calls", calls.Load())
			}
		})
	}
}

func TestWrapFunc_HandlerErrors(t *testing.T) {
	req := testRequirement()
	deps := func() *Deps {
		return &Deps{
			RequirementBuilder:  staticBuilder(req),
			CredentialExtractor: staticExtractor("proof", nil),
			Verifier:            staticVerifier(x402.StatusSuccess, nil),
		}
	}

	tests := []struct {
		name       string
		handler    HandlerFunc
		wantStatus int
		wantBody   string
	}{
		{
			name: "plain error before writing",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				return errors.New("render failed")
			},
			wantStatus: 500,
			wantBody:   `{"error":"internal_error","message":"render failed"}`,
		},
		{
			name: "network error before writing",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				return x402.NewNetworkError("upstream gone")
			},
			wantStatus: 503,
			wantBody:   `{"error":"payment_service_unavailable","message":"upstream gone"}`,
		},
		{
			name: "error after committing keeps partial response",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte("partial"))
				return errors.New("stream broke")
			},
			wantStatus: 202,
			wantBody:   "partial",
		},
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				_, _ = w.Write([]byte(`{"ok":true}`))
				return nil
			},
			wantStatus: 200,
			wantBody:   `{"ok":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := WrapFunc(testPricing, tt.handler, deps())
			if err != nil {
				t.Fatalf("WrapFunc failed: %v", err)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("Expected body %s, got %s", tt.wantBody, got)
			}
		})
	}
}

func TestWrapFunc_PaymentErrorFromHandler(t *testing.T) {
	req := testRequirement()
	h, err := WrapFunc(testPricing, func(w http.ResponseWriter, r *http.Request) error {
		return x402.ErrPaymentExpired
	}, &Deps{
		RequirementBuilder:  staticBuilder(req),
		CredentialExtractor: staticExtractor("proof", nil),
		Verifier:            staticVerifier(x402.StatusSuccess, nil),
	})
	if err != nil {
		t.Fatalf("WrapFunc failed: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages", nil))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected status 402, got %d", rec.Code)
	}
	if body := decodeDenial(t, rec); body.Payment == nil || body.Payment.Nonce != req.Nonce {
		t.Errorf("Expected in-flight requirement, got %+v", body.Payment)
	}
}

func TestWrap_HandlerSeesOriginalRequest(t *testing.T) {
	payload := `{"payment":"` + validPaymentB64 + `","item":"book"}`
	var seenBody string
	var seenReq *http.Request

	h := wrapWith(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenReq = r
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
	}), &Deps{
		RequirementBuilder: staticBuilder(testRequirement()),
		Verifier: verifierFunc(func(_ context.Context, c x402.Credential, _ *x402.PaymentRequirement) (*x402.VerificationResult, error) {
			if _, ok := c.(x402.PaymentPayload); !ok {
				t.Errorf("Expected payment decoded from body, got %T", c)
			}
			return &x402.VerificationResult{Status: x402.StatusSuccess}, nil
		}),
	})

	r := httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if seenReq != r {
		t.Error("Expected handler to receive the original request")
	}
	if seenBody != payload {
		t.Errorf("Expected handler to read full body, got %q", seenBody)
	}
}

func TestWrap_ConfigErrors(t *testing.T) {
	var calls atomic.Int32

	_, err := Wrap(testPricing, okHandler(&calls), nil)
	if !errors.Is(err, x402.ErrMissingBackendConfig) {
		t.Errorf("Expected ErrMissingBackendConfig, got %v", err)
	}

	_, err = Wrap(x402.PricingConfig{Price: "-1"}, okHandler(&calls), &Deps{Backend: testBackend("https://facilitator.example")})
	var cfgErr *x402.ConfigError
	if !errors.As(err, &cfgErr) || !errors.Is(err, x402.ErrInvalidPricing) {
		t.Errorf("Expected pricing ConfigError, got %v", err)
	}

	_, err = Wrap(x402.PricingConfig{Price: "0.02", Network: "solana"}, okHandler(&calls), &Deps{Backend: testBackend("https://facilitator.example")})
	if !errors.As(err, &cfgErr) || !errors.Is(err, x402.ErrInvalidAddress) {
		t.Errorf("Expected seller/network ConfigError, got %v", err)
	}

	_, err = Wrap(x402.PricingConfig{Price: "-1"}, okHandler(&calls), &Deps{
		RequirementBuilder: staticBuilder(testRequirement()),
		Backend:            testBackend("https://facilitator.example"),
	})
	if err != nil {
		t.Errorf("Expected custom builder to own pricing, got %v", err)
	}
}

func TestWrap_FacilitatorWithoutResponse(t *testing.T) {
	var calls atomic.Int32
	h, err := Wrap(testPricing, okHandler(&calls), &Deps{
		Backend:     testBackend("https://facilitator.example"),
		Facilitator: &stubFacilitator{},
	})
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/pages", nil)
	r.Header.Set(PaymentHeader, validPaymentB64)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected handler not to be called, got %d calls", calls.Load())
	}
}

func TestNewX402Middleware(t *testing.T) {
	mw, err := NewX402Middleware(testPricing, &Deps{
		RequirementBuilder:  staticBuilder(testRequirement()),
		CredentialExtractor: staticExtractor(nil, nil),
		Verifier:            staticVerifier(x402.StatusSuccess, nil),
	})
	if err != nil {
		t.Fatalf("NewX402Middleware failed: %v", err)
	}

	var calls atomic.Int32
	rec := httptest.NewRecorder()
	mw(okHandler(&calls)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages", nil))

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected status 402, got %d", rec.Code)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected handler not to be called, got %d calls", calls.Load())
	}
}

func TestWrap_EndToEndWithFacilitator(t *testing.T) {
	var verifies atomic.Int32
	mockFacilitator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifies.Add(1)
		var body facilitator.VerifyRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		valid := body.PaymentPayload.Payload != nil
		_ = json.NewEncoder(w).Encode(facilitator.VerifyResponse{IsValid: valid, InvalidReason: "missing_signature"})
	}))
	defer mockFacilitator.Close()

	var calls atomic.Int32
	h := wrapWith(t, okHandler(&calls), &Deps{Backend: testBackend(mockFacilitator.URL)})

	send := func(payment *x402.PaymentPayload) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/pages", nil)
		if payment != nil {
			encoded, err := encoding.EncodePayment(*payment)
			if err != nil {
				t.Fatalf("EncodePayment failed: %v", err)
			}
			r.Header.Set(PaymentHeader, encoded)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	if rec := send(nil); rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected 402 without payment, got %d", rec.Code)
	}

	unsigned := x402.PaymentPayload{X402Version: 1, Scheme: "exact", Network: "base"}
	if rec := send(&unsigned); rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected 402 for rejected payment, got %d", rec.Code)
	}

	signed := testPayment
	if rec := send(&signed); rec.Code != http.StatusOK || rec.Body.String() != `{"ok":true}` {
		t.Errorf("Expected handler response, got %d %s", rec.Code, rec.Body.String())
	}

	if verifies.Load() != 2 {
		t.Errorf("Expected 2 facilitator calls, got %d", verifies.Load())
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 handler call, got %d", calls.Load())
	}
}

func TestCommitWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &commitWriter{w: rec}

	cw.WriteHeader(http.StatusContinue)
	if cw.committed {
		t.Error("Expected informational status not to commit")
	}

	cw.Flush()
	if !cw.committed || cw.status != http.StatusOK {
		t.Errorf("Expected flush to commit 200, got %v %d", cw.committed, cw.status)
	}
	if !rec.Flushed {
		t.Error("Expected flush to reach underlying writer")
	}

	if _, _, err := cw.Hijack(); !errors.Is(err, http.ErrNotSupported) {
		t.Errorf("Expected ErrNotSupported, got %v", err)
	}
	if cw.Unwrap() != rec {
		t.Error("Expected Unwrap to return the underlying writer")
	}
}
