package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/toolproto/mcpc/client/auth/flow"
	"github.com/toolproto/mcpc/client/auth/meta"
	"github.com/toolproto/mcpc/client/auth/store"
)

// defaultMaxInsufficientScopeRetries bounds scope escalation when no explicit
// limit was configured, so a server that keeps demanding new scopes cannot
// trap the client in an infinite re-auth loop.
const defaultMaxInsufficientScopeRetries = 8

// AuthError reports a failed authorization dance. The original HTTP status
// and challenge are kept so callers can distinguish discovery, flow and
// escalation failures. Token material is never included.
type AuthError struct {
	StatusCode int
	Challenge  string
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authorization failed (status %d): %v", e.StatusCode, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// hostGrant remembers which issuer and scopes satisfied a host so later
// requests attach a bearer token proactively instead of replaying the 401
// dance on every call.
type hostGrant struct {
	key store.TokenKey
}

// RoundTripper decorates an inner http.RoundTripper with the OAuth 2.1
// protected-resource dance: 401 triggers metadata discovery and a token
// acquisition, 403 insufficient_scope triggers bounded scope escalation.
type RoundTripper struct {
	store           store.Store
	scopper         Scopper
	authFlow        flow.AuthFlow
	authFlowOptions []flow.Option
	transport       http.RoundTripper
	useIdToken      bool
	maxScopeRetries int

	mux    sync.Mutex
	grants map[string]*hostGrant
}

func New(options ...Option) (*RoundTripper, error) {
	ret := &RoundTripper{
		transport:       http.DefaultTransport,
		store:           store.NewMemoryStore(),
		authFlow:        flow.NewBrowserFlow(),
		scopper:         &nopScopper{},
		maxScopeRetries: defaultMaxInsufficientScopeRetries,
		grants:          map[string]*hostGrant{},
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret, nil
}

func (r *RoundTripper) Store() store.Store {
	return r.store
}

func (r *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// Attach a proactively known bearer when this host has been satisfied before.
	first := clone(req)
	if token, ok := r.grantedToken(ctx, req); ok {
		first.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}
	resp, err := r.transport.RoundTrip(first)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp, err = r.reauthorize(ctx, req, resp)
		if err != nil {
			return nil, err
		}
	}
	if resp.StatusCode == http.StatusForbidden {
		return r.escalate(ctx, req, resp)
	}
	return resp, nil
}

// reauthorize handles one 401: discover, acquire, replay once. A second 401
// is returned to the caller as is.
func (r *RoundTripper) reauthorize(ctx context.Context, req *http.Request, resp *http.Response) (*http.Response, error) {
	header := resp.Header.Get("WWW-Authenticate")
	parsed := parseChallenge(header)
	if parsed == nil {
		return resp, nil
	}
	resp.Body.Close()

	token, key, err := r.token(ctx, req, parsed, nil)
	if err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Challenge: header, Err: err}
	}
	r.rememberGrant(req, key)

	retry := clone(req)
	retry.Header.Set("Authorization", "Bearer "+token.AccessToken)
	return r.transport.RoundTrip(retry)
}

// escalate handles 403 insufficient_scope challenges, widening the scope set
// on each round up to the configured bound. On exhaustion the final response
// is returned with its WWW-Authenticate header stripped so callers do not
// re-enter the dance.
func (r *RoundTripper) escalate(ctx context.Context, req *http.Request, resp *http.Response) (*http.Response, error) {
	var scopes []string
	for attempt := 0; attempt < r.maxScopeRetries; attempt++ {
		header := resp.Header.Get("WWW-Authenticate")
		parsed := parseChallenge(header)
		if parsed == nil || !parsed.IsInsufficientScope() {
			return resp, nil
		}
		resp.Body.Close()

		scopes = mergeScopes(scopes, parsed.Scopes())
		token, key, err := r.token(ctx, req, parsed, scopes)
		if err != nil {
			return nil, &AuthError{StatusCode: resp.StatusCode, Challenge: header, Err: err}
		}
		r.rememberGrant(req, key)

		retry := clone(req)
		retry.Header.Set("Authorization", "Bearer "+token.AccessToken)
		if resp, err = r.transport.RoundTrip(retry); err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusForbidden {
			return resp, nil
		}
	}
	resp.Header.Del("WWW-Authenticate")
	return resp, nil
}

// token runs discovery and acquisition under the single-flight mutex. The
// cached token is rechecked after the lock so concurrent challengers share
// one interactive flow instead of racing several.
func (r *RoundTripper) token(ctx context.Context, req *http.Request, parsed *challenge, extraScopes []string) (*oauth2.Token, store.TokenKey, error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	resourceMetadata, err := r.resourceMetadata(ctx, parsed)
	if err != nil {
		return nil, store.TokenKey{}, err
	}
	scopes := mergeScopes(parsed.Scopes(), extraScopes)
	if requested := r.scopper.Scope(req); requested != "" {
		scopes = mergeScopes(scopes, strings.Fields(requested))
	}
	scopes = mergeScopes(scopes, getScopes(ctx))
	return r.acquire(ctx, resourceMetadata, scopes)
}

// ProtectedResourceToken acquires a token for an already known protected
// resource, bypassing HTTP challenge parsing. Used for protocol-level
// authorization challenges.
func (r *RoundTripper) ProtectedResourceToken(ctx context.Context, resourceMetadata *meta.ProtectedResourceMetadata, scopes []string) (*oauth2.Token, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	token, _, err := r.acquire(ctx, resourceMetadata, scopes)
	return token, err
}

// acquire must be called with the single-flight mutex held.
func (r *RoundTripper) acquire(ctx context.Context, resourceMetadata *meta.ProtectedResourceMetadata, scopes []string) (*oauth2.Token, store.TokenKey, error) {
	authServers := resourceMetadata.AuthorizationServers
	issuer := authServers[rand.Intn(len(authServers))]
	serverMetadata, err := r.authorizationServerMetadata(ctx, issuer)
	if err != nil {
		return nil, store.TokenKey{}, err
	}
	scope := strings.Join(scopes, " ")
	tokenKey := store.TokenKey{Issuer: serverMetadata.Issuer, Scopes: scope}

	clientConfig, ok := r.store.LookupClientConfig(serverMetadata.Issuer)
	if !ok {
		return nil, tokenKey, fmt.Errorf("client config not found for issuer %s", serverMetadata.Issuer)
	}
	// Recheck after acquiring the lock: another request may have finished
	// the same acquisition while this one was waiting.
	if cached, _ := r.store.LookupToken(tokenKey); cached != nil {
		if cached.Valid() {
			return cached, tokenKey, nil
		}
		if cached.RefreshToken != "" {
			if refreshed := r.refreshToken(ctx, clientConfig, cached); refreshed != nil {
				if err := r.store.AddToken(tokenKey, refreshed); err != nil {
					return nil, tokenKey, fmt.Errorf("failed to store refreshed token: %w", err)
				}
				return refreshed, tokenKey, nil
			}
		}
	}

	flowOptions := append(getAuthFlowOptions(ctx), r.authFlowOptions...)
	if len(scopes) > 0 {
		flowOptions = append(flowOptions, flow.WithScopes(scopes...))
	}
	token, err := r.authFlow.Token(ctx, clientConfig, flowOptions...)
	if err != nil {
		return nil, tokenKey, err
	}
	token = store.WithDerivedExpiry(token)
	if r.useIdToken {
		if token, err = r.IdToken(ctx, token, resourceMetadata); err != nil {
			return nil, tokenKey, err
		}
	}
	if err := r.store.AddToken(tokenKey, token); err != nil {
		return nil, tokenKey, fmt.Errorf("failed to store token: %w", err)
	}
	return token, tokenKey, nil
}

func (r *RoundTripper) refreshToken(ctx context.Context, clientConfig *oauth2.Config, cached *oauth2.Token) *oauth2.Token {
	refreshed, err := clientConfig.TokenSource(ctx, cached).Token()
	if err != nil {
		return nil
	}
	// preserve refresh token if provider omitted it
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cached.RefreshToken
	}
	return store.WithDerivedExpiry(refreshed)
}

func (r *RoundTripper) resourceMetadata(ctx context.Context, parsed *challenge) (*meta.ProtectedResourceMetadata, error) {
	URL := parsed.ResourceMetadataURL()
	if URL == "" {
		return nil, fmt.Errorf("WWW-Authenticate missing resource_metadata param")
	}
	return meta.FetchProtectedResourceMetadata(ctx, URL, &http.Client{Transport: r.transport})
}

func (r *RoundTripper) authorizationServerMetadata(ctx context.Context, issuer string) (*meta.AuthorizationServerMetadata, error) {
	if cached, _ := r.store.LookupAuthorizationServerMetadata(issuer); cached != nil {
		return cached, nil
	}
	serverMetadata, err := meta.FetchAuthorizationServerMetadata(ctx, issuer, &http.Client{Transport: r.transport})
	if err != nil {
		return nil, err
	}
	if err := r.store.AddAuthorizationServerMetadata(serverMetadata); err != nil {
		return nil, err
	}
	return serverMetadata, nil
}

func (r *RoundTripper) grantedToken(ctx context.Context, req *http.Request) (*oauth2.Token, bool) {
	r.mux.Lock()
	grant, ok := r.grants[req.URL.Host]
	r.mux.Unlock()
	if !ok {
		return nil, false
	}
	cached, _ := r.store.LookupToken(grant.key)
	if cached == nil {
		return nil, false
	}
	if cached.Valid() {
		return cached, true
	}
	if cached.RefreshToken == "" {
		return nil, false
	}
	clientConfig, ok := r.store.LookupClientConfig(grant.key.Issuer)
	if !ok {
		return nil, false
	}
	refreshed := r.refreshToken(ctx, clientConfig, cached)
	if refreshed == nil {
		return nil, false
	}
	if err := r.store.AddToken(grant.key, refreshed); err != nil {
		return nil, false
	}
	return refreshed, true
}

func (r *RoundTripper) rememberGrant(req *http.Request, key store.TokenKey) {
	r.mux.Lock()
	r.grants[req.URL.Host] = &hostGrant{key: key}
	r.mux.Unlock()
}
