package facilitator

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"time"

	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// DefaultTokenTTL is how long a generated facilitator bearer token is valid.
const DefaultTokenTTL = 2 * time.Minute

// Authorizer produces the Authorization header value for a facilitator call.
// Implementations must be safe for concurrent use.
type Authorizer interface {
	Authorization(method, endpoint string) (string, error)
}

// StaticAuthorizer sends the same Authorization header on every call.
type StaticAuthorizer string

// Authorization returns the static header value.
func (s StaticAuthorizer) Authorization(string, string) (string, error) {
	return string(s), nil
}

// JWTAuthorizer signs a short-lived bearer token for every facilitator call.
// The token binds the HTTP method and endpoint in its "uri" claim.
//
// JWTAuthorizer is immutable after construction and safe for concurrent use.
type JWTAuthorizer struct {
	keyID  string
	issuer string
	ttl    time.Duration
	alg    jose.SignatureAlgorithm
	key    interface{}
	now    func() time.Time
}

// RequestClaims are the claims carried by a facilitator bearer token.
type RequestClaims struct {
	*jwt.Claims
	// URI is "{METHOD} {host}{path}" of the facilitator endpoint being called.
	URI string `json:"uri"`
}

// JWTOption configures a JWTAuthorizer.
type JWTOption func(*JWTAuthorizer)

// WithIssuer sets the iss claim. Defaults to "x402-gate".
func WithIssuer(issuer string) JWTOption {
	return func(a *JWTAuthorizer) { a.issuer = issuer }
}

// WithTokenTTL sets the lifetime of generated tokens.
func WithTokenTTL(ttl time.Duration) JWTOption {
	return func(a *JWTAuthorizer) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// NewJWTAuthorizer parses a PEM-encoded ECDSA (SEC 1 or PKCS #8) or Ed25519
// (PKCS #8) private key and returns an authorizer that signs with it.
func NewJWTAuthorizer(keyID, keyPEM string, opts ...JWTOption) (*JWTAuthorizer, error) {
	if keyID == "" {
		return nil, errors.New("keyID must not be empty")
	}

	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, errors.New("failed to decode PEM block: invalid PEM format")
	}

	var key interface{}
	var err error
	key, err = x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
	}

	a := &JWTAuthorizer{
		keyID:  keyID,
		issuer: "x402-gate",
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}

	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		a.alg, a.key = jose.ES256, k
	case ed25519.PrivateKey:
		a.alg, a.key = jose.EdDSA, k
	case crypto.Signer:
		return nil, fmt.Errorf("unsupported private key type %T: must be ECDSA or Ed25519", k)
	default:
		return nil, errors.New("unsupported private key type: must be ECDSA or Ed25519")
	}

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authorization returns "Bearer <jwt>" for a call to endpoint.
func (a *JWTAuthorizer) Authorization(method, endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid facilitator endpoint: %w", err)
	}

	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: a.alg, Key: a.key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", a.keyID),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create JWT signer: %w", err)
	}

	now := a.now()
	claims := &RequestClaims{
		Claims: &jwt.Claims{
			Subject:   a.keyID,
			Issuer:    a.issuer,
			NotBefore: jwt.NewNumericDate(now),
			Expiry:    jwt.NewNumericDate(now.Add(a.ttl)),
		},
		URI: fmt.Sprintf("%s %s%s", method, u.Host, u.Path),
	}

	token, err := jwt.Signed(sig).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize JWT: %w", err)
	}
	return "Bearer " + token, nil
}
