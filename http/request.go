package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/darkhorseone/x402-gate/http/internal/helpers"
)

// MaxBodyBytes is the largest request body the normalizer decodes.
// Larger bodies are passed to the handler untouched and never parsed.
const MaxBodyBytes int64 = 1 << 20

// ErrNilRequest is returned when a nil request is normalized.
var ErrNilRequest = errors.New("x402: nil request")

// localOrigin is the base for relative URLs in materialized requests.
var localOrigin = &url.URL{Scheme: "http", Host: "localhost"}

// HeaderLookup is the header capability credential extractors rely on.
// http.Header satisfies it.
type HeaderLookup interface {
	Get(key string) string
}

// Request is the framework-agnostic view of an inbound request that the
// credential extractor works on. It is built once per request and not mutated.
type Request struct {
	Method string
	URL    string
	Header HeaderLookup

	// Query holds single-valued query parameters; the first value wins.
	Query map[string]string

	// Body is the decoded JSON value or form map, or nil when the body was
	// absent, of another content type, too large, or malformed.
	Body any

	// Raw is the original framework request. Extractors may inspect it;
	// the pipeline never does.
	Raw any
}

// MaterializedRequest is a request whose headers, query, and body have already
// been read into plain structures by the host framework.
type MaterializedRequest struct {
	Method string
	URL    string
	Header map[string][]string
	Query  map[string][]string
	Body   any
	Raw    any
}

// Normalizer converts framework requests into Request values.
// The zero value is ready to use.
type Normalizer struct {
	// MaxBodyBytes overrides the package default when positive.
	MaxBodyBytes int64
}

func (n *Normalizer) maxBody() int64 {
	if n != nil && n.MaxBodyBytes > 0 {
		return n.MaxBodyBytes
	}
	return MaxBodyBytes
}

// Adapt normalizes a streaming request. When the body is JSON or form encoded
// it is read into memory and r.Body is replaced with a reader over the same
// bytes, so the handler still sees the complete original body.
func (n *Normalizer) Adapt(r *http.Request) (*Request, error) {
	if r == nil {
		return nil, ErrNilRequest
	}

	req := &Request{
		Method: r.Method,
		Header: r.Header,
		Query:  map[string]string{},
		Raw:    r,
	}
	if r.Header == nil {
		req.Header = http.Header{}
	}
	if r.URL != nil {
		req.URL = r.URL.String()
		req.Query = parseQuery(r.URL.RawQuery)
	}

	contentType := r.Header.Get("Content-Type")
	if helpers.Decodable(contentType) {
		if data, ok := helpers.ReadReplayableBody(r, n.maxBody()); ok {
			req.Body = helpers.DecodeBody(contentType, data)
		}
	}

	return req, nil
}

// AdaptSync normalizes a materialized request. Multi-valued headers are
// comma-joined and headers without values dropped; relative URLs are resolved against
// http://localhost. When Query is nil it is parsed from the URL.
func (n *Normalizer) AdaptSync(m *MaterializedRequest) (*Request, error) {
	if m == nil {
		return nil, ErrNilRequest
	}

	req := &Request{
		Method: m.Method,
		Header: helpers.FlattenHeader(m.Header),
		Query:  map[string]string{},
		Body:   m.Body,
		Raw:    m.Raw,
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	if m.URL != "" {
		if u, err := url.Parse(m.URL); err == nil {
			if !u.IsAbs() {
				u = localOrigin.ResolveReference(u)
			}
			req.URL = u.String()
			if m.Query == nil {
				req.Query = parseQuery(u.RawQuery)
			}
		} else {
			req.URL = m.URL
		}
	}
	if m.Query != nil {
		req.Query = helpers.FirstValues(m.Query)
	}

	return req, nil
}

// parseQuery keeps every well-formed pair. A malformed pair such as "%zz" or
// one joined by ";" is skipped without discarding its siblings.
func parseQuery(raw string) map[string]string {
	q, _ := url.ParseQuery(raw)
	return helpers.FirstValues(q)
}
