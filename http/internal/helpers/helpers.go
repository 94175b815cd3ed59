// Package helpers provides shared request helpers for the x402 gate and its framework adapters.
// They are used by the stdlib, Gin, PocketBase, and Chi entry points to normalize requests the same way.
package helpers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Content types whose bodies are decoded during normalization.
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// ReadReplayableBody reads at most limit bytes of r.Body and puts back a body that
// yields exactly the original stream, so the downstream handler reads it unchanged.
//
// complete is false when the body was longer than limit or the read failed; the
// returned bytes must not be decoded in that case.
func ReadReplayableBody(r *http.Request, limit int64) (data []byte, complete bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}

	orig := r.Body
	data, err := io.ReadAll(io.LimitReader(orig, limit+1))
	if err != nil || int64(len(data)) > limit {
		r.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(data), orig), closer: orig}
		return nil, false
	}

	_ = orig.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return data, true
}

type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b *replayBody) Close() error { return b.closer.Close() }

// MediaType returns the lower-cased media type of a Content-Type header value,
// or "" if it cannot be parsed.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// Decodable reports whether bodies of the given Content-Type are decoded.
func Decodable(contentType string) bool {
	switch MediaType(contentType) {
	case ContentTypeJSON, ContentTypeForm:
		return true
	}
	return false
}

// DecodeBody decodes a JSON or form body. It returns nil for other content
// types, empty input, or malformed data; it never fails.
func DecodeBody(contentType string, data []byte) any {
	if len(data) == 0 {
		return nil
	}
	switch MediaType(contentType) {
	case ContentTypeJSON:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil
		}
		return v
	case ContentTypeForm:
		values, err := url.ParseQuery(string(data))
		if err != nil && len(values) == 0 {
			return nil
		}
		return FirstValues(values)
	}
	return nil
}

// FirstValues collapses a multi-valued map to its first value per key.
// Keys with no values map to "".
func FirstValues(m map[string][]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, vs := range m {
		if len(vs) > 0 {
			out[k] = vs[0]
		} else {
			out[k] = ""
		}
	}
	return out
}

// FlattenHeader joins multi-valued headers with "," and drops headers with no
// values at all. Empty string values are kept. Keys are canonicalized so
// lookups are case-insensitive.
func FlattenHeader(h map[string][]string) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		if len(vs) == 0 {
			continue
		}
		out.Set(k, strings.Join(vs, ","))
	}
	return out
}
