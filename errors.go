package x402

import (
	"errors"
	"fmt"
)

// Standard x402 error definitions

var (
	// ErrPaymentRequired indicates that payment is required to access the resource.
	ErrPaymentRequired = errors.New("x402: payment required")

	// ErrPaymentInvalid indicates that the provided payment was rejected.
	ErrPaymentInvalid = errors.New("x402: invalid payment")

	// ErrPaymentExpired indicates that the payment or its requirement has expired.
	ErrPaymentExpired = errors.New("x402: payment expired")

	// ErrFacilitatorUnavailable indicates the facilitator service could not be reached
	// or answered with a server-side failure.
	ErrFacilitatorUnavailable = errors.New("x402: facilitator service unavailable")

	// ErrMissingBackendConfig indicates that a default collaborator was requested
	// without a backend configuration to build it from.
	ErrMissingBackendConfig = errors.New("x402: backend configuration required")

	// ErrInvalidPricing indicates a pricing configuration that cannot produce a requirement.
	ErrInvalidPricing = errors.New("x402: invalid pricing configuration")

	// ErrInvalidNetwork indicates an unknown or unsupported network identifier.
	ErrInvalidNetwork = errors.New("x402: invalid or unsupported network")

	// ErrInvalidAddress indicates an address that does not match its network's format.
	ErrInvalidAddress = errors.New("x402: invalid address")

	// ErrMalformedHeader indicates that the X-PAYMENT header could not be decoded.
	ErrMalformedHeader = errors.New("x402: malformed payment header")

	// ErrUnsupportedVersion indicates an unsupported x402 protocol version.
	ErrUnsupportedVersion = errors.New("x402: unsupported protocol version")
)

// PaymentRequiredError signals a required payment and may carry the requirement
// the caller should satisfy.
type PaymentRequiredError struct {
	Requirement *PaymentRequirement
	Reason      string
}

func (e *PaymentRequiredError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v: %s", ErrPaymentRequired, e.Reason)
	}
	return ErrPaymentRequired.Error()
}

// Is makes errors.Is(err, ErrPaymentRequired) match.
func (e *PaymentRequiredError) Is(target error) bool {
	return target == ErrPaymentRequired
}

// NetworkError reports a failure reaching the payment backend.
// Its message is surfaced to clients in 503 responses.
type NetworkError struct {
	Message string
	Err     error
}

// NewNetworkError returns a NetworkError with the given message.
func NewNetworkError(message string) *NetworkError {
	return &NetworkError{Message: message}
}

func (e *NetworkError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ErrFacilitatorUnavailable.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFacilitatorUnavailable) match.
func (e *NetworkError) Is(target error) bool {
	return target == ErrFacilitatorUnavailable
}

// ConfigError reports a setup-time problem. It is returned when a handler is
// wrapped, never while serving a request.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("x402: configuration %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("x402: configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsPaymentError reports whether err belongs to the payment taxonomy, i.e. it
// maps to something other than a generic internal error.
func IsPaymentError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrPaymentRequired) ||
		errors.Is(err, ErrPaymentInvalid) ||
		errors.Is(err, ErrPaymentExpired) ||
		errors.Is(err, ErrFacilitatorUnavailable)
}
