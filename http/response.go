package http

import (
	"encoding/json"
	"net/http"

	"github.com/darkhorseone/x402-gate"
)

// Denial error codes.
const (
	CodePaymentRequired           = "payment_required"
	CodePaymentServiceUnavailable = "payment_service_unavailable"
	CodeInternalError             = "internal_error"
)

// Default denial messages.
const (
	MessagePaymentRequired    = "Payment required to access this resource."
	MessageServiceUnavailable = "Payment verification service unavailable"
	MessageInternalError      = "Internal server error"
)

// DenialBody is the JSON body of every denial response.
type DenialBody struct {
	Error   string                   `json:"error"`
	Payment *x402.PaymentRequirement `json:"payment,omitempty"`
	Message string                   `json:"message,omitempty"`
}

// Response is a denial outcome before it is written to a framework response.
type Response struct {
	Status int
	Header http.Header
	Body   DenialBody
}

// PaymentRequired returns a 402 carrying requirement under "payment".
func PaymentRequired(requirement *x402.PaymentRequirement) *Response {
	return &Response{
		Status: http.StatusPaymentRequired,
		Header: http.Header{},
		Body: DenialBody{
			Error:   CodePaymentRequired,
			Payment: requirement,
			Message: MessagePaymentRequired,
		},
	}
}

// ServiceUnavailable returns a 503. An empty message uses MessageServiceUnavailable.
func ServiceUnavailable(message string) *Response {
	if message == "" {
		message = MessageServiceUnavailable
	}
	return &Response{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{},
		Body:   DenialBody{Error: CodePaymentServiceUnavailable, Message: message},
	}
}

// InternalError returns a 500. An empty message uses MessageInternalError.
func InternalError(message string) *Response {
	if message == "" {
		message = MessageInternalError
	}
	return &Response{
		Status: http.StatusInternalServerError,
		Header: http.Header{},
		Body:   DenialBody{Error: CodeInternalError, Message: message},
	}
}

// Render writes the response as JSON. Headers must not have been written yet.
func (r *Response) Render(w http.ResponseWriter) error {
	for k, vs := range r.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.Status)
	return json.NewEncoder(w).Encode(r.Body)
}
