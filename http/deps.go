package http

import (
	"net/http"
	"time"

	"github.com/darkhorseone/x402-gate"
	"github.com/darkhorseone/x402-gate/facilitator"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Deps holds optional collaborator overrides for a gated handler. Any nil
// collaborator is replaced by a default built from Backend.
type Deps struct {
	RequirementBuilder  x402.RequirementBuilder
	CredentialExtractor CredentialExtractor
	Verifier            x402.Verifier

	// Backend configures the default builder and verifier.
	Backend *x402.BackendConfig

	// Facilitator replaces the default HTTP facilitator client under the default verifier.
	Facilitator facilitator.Interface

	// HTTPClient is used by the default facilitator client. When nil a client
	// with Backend.VerifyTimeout is created; the process-wide default client is never used.
	HTTPClient Doer

	// Authorizer signs facilitator calls, taking precedence over Backend.Authorization.
	Authorizer facilitator.Authorizer

	// Clock overrides time.Now for requirement expiry and verification.
	Clock func() time.Time
}

// Resolved holds the collaborators a Gate runs with.
type Resolved struct {
	RequirementBuilder  x402.RequirementBuilder
	CredentialExtractor CredentialExtractor
	Verifier            x402.Verifier
}

// Resolve fills in default collaborators. It runs once, when a handler is
// wrapped; every error it returns is a *x402.ConfigError.
func Resolve(deps *Deps) (*Resolved, error) {
	if deps == nil {
		deps = &Deps{}
	}

	var backend x402.BackendConfig
	if deps.RequirementBuilder == nil || deps.Verifier == nil {
		if deps.Backend == nil {
			return nil, &x402.ConfigError{Field: "Backend", Err: x402.ErrMissingBackendConfig}
		}
		if err := deps.Backend.Validate(); err != nil {
			return nil, err
		}
		backend = deps.Backend.WithDefaults()
	}

	resolved := &Resolved{
		RequirementBuilder:  deps.RequirementBuilder,
		CredentialExtractor: deps.CredentialExtractor,
		Verifier:            deps.Verifier,
	}

	if resolved.CredentialExtractor == nil {
		resolved.CredentialExtractor = NewHeaderExtractor()
	}

	if resolved.RequirementBuilder == nil {
		b, err := x402.NewRequirementBuilder(backend, x402.WithClock(deps.Clock))
		if err != nil {
			return nil, err
		}
		resolved.RequirementBuilder = b
	}

	if resolved.Verifier == nil {
		fc := deps.Facilitator
		if fc == nil {
			client := NewFacilitatorClient(backend, deps.HTTPClient)
			if deps.Authorizer != nil {
				client.Authorizer = deps.Authorizer
			}
			fc = client
		}
		resolved.Verifier = NewFacilitatorVerifier(fc, deps.Clock)
	}

	return resolved, nil
}
