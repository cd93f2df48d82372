package transport

import (
	"net/http"

	"github.com/toolproto/mcpc/client/auth/flow"
	"github.com/toolproto/mcpc/client/auth/store"
)

type Option func(*RoundTripper)

// WithStore sets the token and metadata store.
func WithStore(store store.Store) Option {
	return func(t *RoundTripper) {
		t.store = store
	}
}

// WithAuthFlow sets the interactive authorization flow.
func WithAuthFlow(authFlow flow.AuthFlow) Option {
	return func(t *RoundTripper) {
		t.authFlow = authFlow
	}
}

// WithAuthFlowOptions sets flow options applied on every acquisition.
func WithAuthFlowOptions(options ...flow.Option) Option {
	return func(t *RoundTripper) {
		t.authFlowOptions = options
	}
}

// WithRoundTripper sets the inner transport the dance decorates.
func WithRoundTripper(inner http.RoundTripper) Option {
	return func(t *RoundTripper) {
		t.transport = inner
	}
}

// WithMaxInsufficientScopeRetries bounds 403 scope escalation. Zero keeps the
// built-in ceiling; escalation is never unbounded.
func WithMaxInsufficientScopeRetries(max int) Option {
	return func(t *RoundTripper) {
		if max > 0 {
			t.maxScopeRetries = max
		}
	}
}

// WithScopper sets the per-request scope source.
func WithScopper(scopper Scopper) Option {
	return func(t *RoundTripper) {
		t.scopper = scopper
	}
}

// WithUseIdToken presents the OpenID identity token instead of the access
// token after verifying it against the issuer's key set.
func WithUseIdToken(use bool) Option {
	return func(t *RoundTripper) {
		t.useIdToken = use
	}
}

// WithCookieJar wraps the inner transport so session cookies persist across
// requests even when the RoundTripper is used without an http.Client.
func WithCookieJar(jar http.CookieJar) Option {
	return func(t *RoundTripper) {
		t.transport = WrapWithCookieJar(t.transport, jar)
	}
}
