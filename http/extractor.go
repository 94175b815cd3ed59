package http

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/darkhorseone/x402-gate"
	"github.com/darkhorseone/x402-gate/encoding"
)

// Where the default extractor looks for a payment, in order.
const (
	PaymentHeader     = "X-PAYMENT"
	PaymentQueryParam = "payment"
	PaymentBodyField  = "payment"
)

// CredentialExtractor pulls payment proof out of a normalized request.
// A nil credential with a nil error means no payment was attempted.
// Implementations must be safe for concurrent use.
type CredentialExtractor interface {
	Extract(ctx context.Context, req *Request) (x402.Credential, error)
}

// HeaderExtractor reads an x402.PaymentPayload from the X-PAYMENT header, the
// "payment" query parameter, or the "payment" field of a decoded body.
type HeaderExtractor struct{}

// NewHeaderExtractor returns the default credential extractor.
func NewHeaderExtractor() *HeaderExtractor {
	return &HeaderExtractor{}
}

// Extract returns the first payment found. Malformed payment material is an
// error wrapping x402.ErrPaymentInvalid.
func (e *HeaderExtractor) Extract(ctx context.Context, req *Request) (x402.Credential, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if req.Header != nil {
		if v := req.Header.Get(PaymentHeader); v != "" {
			return decode(encoding.DecodePayment(v))
		}
	}

	if v := req.Query[PaymentQueryParam]; v != "" {
		return decode(encoding.DecodePayment(v))
	}

	switch body := req.Body.(type) {
	case map[string]any:
		switch v := body[PaymentBodyField].(type) {
		case nil:
		case string:
			if v != "" {
				return decode(encoding.DecodePayment(v))
			}
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", x402.ErrPaymentInvalid, err)
			}
			return decode(encoding.ParsePayment(data))
		}
	case map[string]string:
		if v := body[PaymentBodyField]; v != "" {
			return decode(encoding.DecodePayment(v))
		}
	}

	return nil, nil
}

func decode(payment x402.PaymentPayload, err error) (x402.Credential, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %w", x402.ErrPaymentInvalid, err)
	}
	return payment, nil
}
