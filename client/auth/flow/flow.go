// Package flow implements the OAuth 2.1 authorization-code grant with PKCE.
// Flows differ only in how the authorization code reaches the client: via a
// loopback browser redirect or out of band.
package flow

import (
	"context"

	"golang.org/x/oauth2"
)

// AuthFlow obtains a token for the given client configuration. Implementations
// must honor ctx cancellation while waiting for the authorization code.
type AuthFlow interface {
	Token(ctx context.Context, config *oauth2.Config, options ...Option) (*oauth2.Token, error)
}

// Options carries per-acquisition flow parameters.
type Options struct {
	scopes        []string
	state         string
	codeVerifier  string
	redirectURL   string
	authURLParams map[string]string
	postParams    map[string]string
}

type Option func(*Options)

// WithScopes appends scopes requested on top of the client config scopes.
func WithScopes(scopes ...string) Option {
	return func(o *Options) {
		o.scopes = append(o.scopes, scopes...)
	}
}

// WithState sets an explicit state value; a random one is generated otherwise.
func WithState(state string) Option {
	return func(o *Options) {
		o.state = state
	}
}

// WithRedirectURL overrides the redirect URL.
func WithRedirectURL(redirectURL string) Option {
	return func(o *Options) {
		o.redirectURL = redirectURL
	}
}

// WithAuthURLParam adds an extra authorization URL parameter.
func WithAuthURLParam(name, value string) Option {
	return func(o *Options) {
		if o.authURLParams == nil {
			o.authURLParams = map[string]string{}
		}
		o.authURLParams[name] = value
	}
}

// WithPostParam adds a form parameter for flows that POST to the
// authorization endpoint.
func WithPostParam(name, value string) Option {
	return func(o *Options) {
		if o.postParams == nil {
			o.postParams = map[string]string{}
		}
		o.postParams[name] = value
	}
}

func NewOptions(options []Option) *Options {
	ret := &Options{}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Scopes returns the additional scopes requested by the caller.
func (o *Options) Scopes() []string {
	return o.scopes
}

// State returns the CSRF state, generating a random one on first use.
func (o *Options) State() string {
	if o.state == "" {
		o.state = randomToken()
	}
	return o.state
}

// CodeVerifier returns the PKCE verifier, generating one on first use. The
// verifier is a secret and must never be logged.
func (o *Options) CodeVerifier() string {
	if o.codeVerifier == "" {
		o.codeVerifier = oauth2.GenerateVerifier()
	}
	return o.codeVerifier
}
