package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/darkhorseone/x402-gate"
	"github.com/darkhorseone/x402-gate/facilitator"
	"github.com/darkhorseone/x402-gate/retry"
)

const tracerName = "github.com/darkhorseone/x402-gate/http"

// maxErrorBody bounds how much of a failed facilitator response is kept for error messages.
const maxErrorBody = 512

// FacilitatorClient is a client for communicating with x402 facilitator services.
// It is safe for concurrent use.
type FacilitatorClient struct {
	BaseURL string
	Client  Doer

	// Timeout bounds each attempt. Zero leaves the caller's context in charge.
	Timeout time.Duration

	// Authorizer, when set, supplies the Authorization header for every call.
	Authorizer facilitator.Authorizer

	// Retry controls how transient failures are retried.
	Retry retry.Config

	tracer trace.Tracer
}

var _ facilitator.Interface = (*FacilitatorClient)(nil)

// NewFacilitatorClient returns a client for cfg.FacilitatorURL. A nil client
// is replaced with an *http.Client using cfg.VerifyTimeout.
func NewFacilitatorClient(cfg x402.BackendConfig, client Doer) *FacilitatorClient {
	cfg = cfg.WithDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.VerifyTimeout}
	}

	c := &FacilitatorClient{
		BaseURL: cfg.FacilitatorURL,
		Client:  client,
		Timeout: cfg.VerifyTimeout,
		Retry:   retry.ForRetries(cfg.MaxRetries),
		tracer:  otel.Tracer(tracerName),
	}
	if cfg.Authorization != "" {
		c.Authorizer = facilitator.StaticAuthorizer(cfg.Authorization)
	}
	return c
}

// Verify asks the facilitator whether payment satisfies requirement.
//
// Connectivity failures and 5xx or 429 responses are returned as
// *x402.NetworkError and retried per c.Retry.
func (c *FacilitatorClient) Verify(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*facilitator.VerifyResponse, error) {
	ctx, span := c.startSpan(ctx, "facilitator.verify",
		attribute.String("x402.scheme", payment.Scheme),
		attribute.String("x402.network", requirement.Network),
	)
	defer span.End()

	data, err := json.Marshal(facilitator.VerifyRequest{
		X402Version:         1,
		PaymentPayload:      payment,
		PaymentRequirements: requirement,
	})
	if err != nil {
		return nil, endSpan(span, fmt.Errorf("failed to marshal request: %w", err))
	}

	resp, err := retry.WithRetry(ctx, c.retryConfig(), retry.IsTransient, func() (*facilitator.VerifyResponse, error) {
		var out facilitator.VerifyResponse
		if err := c.do(ctx, http.MethodPost, "/verify", data, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, endSpan(span, err)
	}

	span.SetAttributes(attribute.Bool("x402.valid", resp.IsValid))
	return resp, nil
}

// Supported queries the facilitator for supported payment types.
func (c *FacilitatorClient) Supported(ctx context.Context) (*facilitator.SupportedResponse, error) {
	ctx, span := c.startSpan(ctx, "facilitator.supported")
	defer span.End()

	resp, err := retry.WithRetry(ctx, c.retryConfig(), retry.IsTransient, func() (*facilitator.SupportedResponse, error) {
		var out facilitator.SupportedResponse
		if err := c.do(ctx, http.MethodGet, "/supported", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, endSpan(span, err)
	}
	return resp, nil
}

func (c *FacilitatorClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	endpoint := c.BaseURL + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.Authorizer != nil {
		auth, err := c.Authorizer.Authorization(method, endpoint)
		if err != nil {
			return fmt.Errorf("failed to authorize facilitator request: %w", err)
		}
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return &x402.NetworkError{
			Message: fmt.Sprintf("facilitator request failed: %v", err),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			slog.Default().Warn("facilitator unavailable", "path", path, "status", resp.StatusCode)
			return x402.NewNetworkError(fmt.Sprintf("facilitator returned status %d", resp.StatusCode))
		}
		return fmt.Errorf("facilitator rejected %s request: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *FacilitatorClient) retryConfig() retry.Config {
	if c.Retry.MaxAttempts < 1 {
		return retry.ForRetries(0)
	}
	return c.Retry
}

func (c *FacilitatorClient) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := c.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String("x402.facilitator", c.BaseURL))...),
	)
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
