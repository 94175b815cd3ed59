package http

import (
	"errors"

	"github.com/darkhorseone/x402-gate"
)

// Fallback messages for payment errors that cannot be answered with a 402.
const (
	messageRequirementUnavailable = "Payment required but requirement is unavailable"
	messageInvalidOrExpired       = "Payment invalid or expired"
)

// ToResponse maps a pipeline or handler error to a denial. requirement is the
// in-flight requirement, or nil when none was built.
func ToResponse(err error, requirement *x402.PaymentRequirement) *Response {
	if errors.Is(err, x402.ErrPaymentRequired) {
		var pre *x402.PaymentRequiredError
		if errors.As(err, &pre) && pre.Requirement != nil {
			return PaymentRequired(pre.Requirement)
		}
		if requirement != nil {
			return PaymentRequired(requirement)
		}
		return InternalError(messageRequirementUnavailable)
	}

	if errors.Is(err, x402.ErrPaymentInvalid) || errors.Is(err, x402.ErrPaymentExpired) {
		if requirement != nil {
			return PaymentRequired(requirement)
		}
		return InternalError(messageInvalidOrExpired)
	}

	if errors.Is(err, x402.ErrFacilitatorUnavailable) {
		return ServiceUnavailable(err.Error())
	}

	if err == nil {
		return InternalError("")
	}
	return InternalError(err.Error())
}
