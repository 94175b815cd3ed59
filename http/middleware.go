// Package http provides HTTP middleware that gates handlers behind x402 payments.
package http

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"

	"github.com/darkhorseone/x402-gate"
)

// HandlerFunc is a handler that can fail. A returned error is mapped to a
// denial response unless the handler already started writing its response.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// Wrap gates next behind payment for pricing. On success next is served the
// original request and writer, so its response passes through unchanged.
func Wrap(pricing x402.PricingConfig, next http.Handler, deps *Deps) (http.Handler, error) {
	gate, err := NewGate(pricing, deps)
	if err != nil {
		return nil, err
	}
	return serve(gate, func(w http.ResponseWriter, r *http.Request) error {
		next.ServeHTTP(w, r)
		return nil
	}, false), nil
}

// WrapFunc is like Wrap for a handler that returns an error.
func WrapFunc(pricing x402.PricingConfig, next HandlerFunc, deps *Deps) (http.Handler, error) {
	gate, err := NewGate(pricing, deps)
	if err != nil {
		return nil, err
	}
	return serve(gate, next, true), nil
}

// NewX402Middleware returns middleware that gates every handler it wraps with
// the same pricing and collaborators.
func NewX402Middleware(pricing x402.PricingConfig, deps *Deps) (func(http.Handler) http.Handler, error) {
	gate, err := NewGate(pricing, deps)
	if err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		return serve(gate, func(w http.ResponseWriter, r *http.Request) error {
			next.ServeHTTP(w, r)
			return nil
		}, false)
	}, nil
}

func serve(gate *Gate, next HandlerFunc, track bool) http.Handler {
	var normalizer Normalizer
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requirement, denial := gate.Authorize(r.Context(), func() (*Request, error) {
			return normalizer.Adapt(r)
		})
		if denial != nil {
			// Ignore encoding errors - the status is already on the wire.
			_ = denial.Render(w)
			return
		}

		if !track {
			_ = next(w, r)
			return
		}

		cw := &commitWriter{w: w}
		if err := next(cw, r); err != nil {
			if cw.committed {
				slog.Default().Error("handler failed after response was committed",
					"path", r.URL.Path, "status", cw.status, "error", err)
				return
			}
			_ = gate.Fail(err, requirement).Render(w)
		}
	})
}

// commitWriter forwards every call to the underlying writer unchanged and
// records whether the response has been committed.
type commitWriter struct {
	w         http.ResponseWriter
	committed bool
	status    int
}

func (c *commitWriter) Header() http.Header {
	return c.w.Header()
}

func (c *commitWriter) Write(b []byte) (int, error) {
	if !c.committed {
		c.commit(http.StatusOK)
	}
	return c.w.Write(b)
}

func (c *commitWriter) WriteHeader(statusCode int) {
	// 1xx responses are informational and do not commit the final status.
	if !c.committed && statusCode >= 200 {
		c.commit(statusCode)
	}
	c.w.WriteHeader(statusCode)
}

func (c *commitWriter) commit(statusCode int) {
	c.committed = true
	c.status = statusCode
}

// Flush implements http.Flusher to support streaming responses.
func (c *commitWriter) Flush() {
	if !c.committed {
		c.commit(http.StatusOK)
	}
	if flusher, ok := c.w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker to support connection hijacking.
func (c *commitWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := c.w.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, rw, err := hijacker.Hijack()
	if err == nil {
		c.committed = true
	}
	return conn, rw, err
}

// Push implements http.Pusher to support HTTP/2 server push.
func (c *commitWriter) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := c.w.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return http.ErrNotSupported
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (c *commitWriter) Unwrap() http.ResponseWriter {
	return c.w
}
