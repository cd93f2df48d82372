package mock

import (
	"encoding/json"
	"net/http"

	"github.com/toolproto/mcpc/client/auth/meta"
)

// defaultMetadataHandler serves the OAuth2 server metadata at
// /.well-known/oauth-authorization-server
func (m *AuthorizationService) defaultMetadataHandler(w http.ResponseWriter, _ *http.Request) {
	metadata := meta.AuthorizationServerMetadata{
		Issuer:                            m.Issuer,
		AuthorizationEndpoint:             m.Issuer + "/authorize",
		TokenEndpoint:                     m.Issuer + "/token",
		JSONWebKeySetURI:                  m.Issuer + "/jwks",
		ScopesSupported:                   m.AuthorizedScopes,
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
		CodeChallengeMethodsSupported:     []string{"S256"},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(metadata)
}

// defaultResourceMetadataHandler handles /resource-metadata requests
func (m *AuthorizationService) defaultResourceMetadataHandler(w http.ResponseWriter, _ *http.Request) {
	resourceMetadata := meta.ProtectedResourceMetadata{
		Resource:             m.Issuer + "/resource",
		AuthorizationServers: []string{m.Issuer},
		ScopesSupported:      append(m.AuthorizedScopes, "resource"),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resourceMetadata)
}
