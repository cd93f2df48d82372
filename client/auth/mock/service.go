package mock

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
)

// AuthorizationService is a test server that simulates an OAuth2 authorization
// server together with a protected resource, good enough to exercise the full
// discovery and token dance in unit tests.
type AuthorizationService struct {
	PrivateKey       *rsa.PrivateKey
	Issuer           string
	ClientID         string
	ClientSecret     string
	AuthorizedScopes []string

	TokenHandler            func(w http.ResponseWriter, r *http.Request)
	AuthorizeHandler        func(w http.ResponseWriter, r *http.Request)
	MetadataHandler         func(w http.ResponseWriter, r *http.Request)
	ResourceHandler         func(w http.ResponseWriter, r *http.Request)
	ResourceMetadataHandler func(w http.ResponseWriter, r *http.Request)
	JwksHandler             func(w http.ResponseWriter, r *http.Request)
}

type Option func(*AuthorizationService)

// WithClientCredentials overrides the accepted client id and secret.
func WithClientCredentials(id, secret string) Option {
	return func(s *AuthorizationService) {
		s.ClientID = id
		s.ClientSecret = secret
	}
}

// WithAuthorizedScopes sets the scopes the server advertises.
func WithAuthorizedScopes(scopes ...string) Option {
	return func(s *AuthorizationService) {
		s.AuthorizedScopes = scopes
	}
}

// NewAuthorizationService creates a mock OAuth2 authorization server with a
// fresh RSA signing key.
func NewAuthorizationService(opts ...Option) (*AuthorizationService, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %v", err)
	}
	service := &AuthorizationService{
		PrivateKey:       privateKey,
		ClientID:         "test_client_id",
		ClientSecret:     "test_client_secret",
		AuthorizedScopes: []string{"openid", "profile", "email"},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Register mounts every mock endpoint onto mux. Override fields are consulted
// at request time, so tests may swap a handler after the server is running.
func (m *AuthorizationService) Register(mux *http.ServeMux) {
	mux.HandleFunc("/token", m.route(&m.TokenHandler, m.defaultTokenHandler))
	mux.HandleFunc("/authorize", m.route(&m.AuthorizeHandler, m.defaultAuthorizeHandler))
	mux.HandleFunc("/.well-known/oauth-authorization-server", m.route(&m.MetadataHandler, m.defaultMetadataHandler))
	mux.HandleFunc("/resource", m.route(&m.ResourceHandler, m.defaultResourceHandler))
	mux.HandleFunc("/resource-metadata", m.route(&m.ResourceMetadataHandler, m.defaultResourceMetadataHandler))
	mux.HandleFunc("/jwks", m.route(&m.JwksHandler, m.defaultJwksHandler))
}

func (m *AuthorizationService) route(override *func(http.ResponseWriter, *http.Request), fallback http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if handler := *override; handler != nil {
			handler(w, r)
			return
		}
		fallback(w, r)
	}
}

// Handler returns an http.Handler for all mock endpoints.
func (m *AuthorizationService) Handler() http.Handler {
	mux := http.NewServeMux()
	m.Register(mux)
	return mux
}
