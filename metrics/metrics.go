// Package metrics records the outcome of gated requests.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Outcome labels.
const (
	OutcomeGranted            = "granted"
	OutcomePaymentRequired    = "payment_required"
	OutcomeServiceUnavailable = "service_unavailable"
	OutcomeError              = "error"
)

// Recorder receives gate outcome counts and latencies.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// OutcomeFromStatus maps a response status to an outcome label.
func OutcomeFromStatus(status int) string {
	switch {
	case status == http.StatusPaymentRequired:
		return OutcomePaymentRequired
	case status == http.StatusServiceUnavailable:
		return OutcomeServiceUnavailable
	case status >= http.StatusInternalServerError:
		return OutcomeError
	default:
		return OutcomeGranted
	}
}

// Middleware observes every response written by next under route.
// It sits outside the payment gate and only sees the final status.
func Middleware(rec Recorder, route string) func(http.Handler) http.Handler {
	if rec == nil {
		rec = NoopRecorder{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			labels := map[string]string{"route": route}
			rec.IncCounter(OutcomeFromStatus(status), labels)
			rec.ObserveLatency("request", time.Since(start), labels)
		})
	}
}
