// Package encoding decodes and encodes the X-PAYMENT credential carried by paying clients.
// The wire form is base64 (standard or URL-safe alphabet) wrapped around a JSON payment payload.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/darkhorseone/x402-gate"
)

// SupportedVersion is the only x402 protocol version accepted by DecodePayment.
const SupportedVersion = 1

// EncodePayment converts a PaymentPayload to a base64-encoded JSON string
// suitable for the X-PAYMENT header.
func EncodePayment(payment x402.PaymentPayload) (string, error) {
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(paymentJSON), nil
}

// DecodePayment converts a base64-encoded JSON string to a PaymentPayload.
//
// Decoding failures wrap x402.ErrMalformedHeader; a payload for any protocol
// version other than SupportedVersion wraps x402.ErrUnsupportedVersion.
func DecodePayment(encoded string) (x402.PaymentPayload, error) {
	var payment x402.PaymentPayload

	decoded, err := decodeBase64(strings.TrimSpace(encoded))
	if err != nil {
		return payment, fmt.Errorf("%w: failed to decode base64: %v", x402.ErrMalformedHeader, err)
	}

	return ParsePayment(decoded)
}

// ParsePayment parses a JSON payment payload that was not base64 wrapped,
// as sent in a request body.
func ParsePayment(data []byte) (x402.PaymentPayload, error) {
	var payment x402.PaymentPayload

	if err := json.Unmarshal(data, &payment); err != nil {
		return payment, fmt.Errorf("%w: failed to unmarshal payment: %v", x402.ErrMalformedHeader, err)
	}

	if payment.X402Version != SupportedVersion {
		return payment, fmt.Errorf("%w: %d", x402.ErrUnsupportedVersion, payment.X402Version)
	}
	if payment.Scheme == "" || payment.Network == "" {
		return payment, fmt.Errorf("%w: scheme and network are required", x402.ErrMalformedHeader)
	}

	return payment, nil
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return nil, err
}
