// Package meta models the OAuth 2.1 discovery documents: Protected Resource
// Metadata (RFC 9728) and Authorization Server Metadata (RFC 8414), plus the
// JSON Web Key Set used to verify issuer-signed tokens.
package meta

import (
	"context"
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
)

// ProtectedResourceMetadata is the RFC 9728 document advertised by a resource
// server through the WWW-Authenticate resource_metadata parameter.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ResourceName           string   `json:"resource_name,omitempty"`
	ResourceDocumentation  string   `json:"resource_documentation,omitempty"`
}

// AuthorizationServerMetadata is the RFC 8414 document published at the
// issuer's /.well-known/oauth-authorization-server location.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	JSONWebKeySetURI                  string   `json:"jwks_uri,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
}

// JSONWebKey is a single key in a JWKS document.
type JSONWebKey struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// JSONWebKeySet is the JWKS document at jwks_uri.
type JSONWebKeySet struct {
	Keys []JSONWebKey `json:"keys"`
}

const wellKnownAuthorizationServer = "/.well-known/oauth-authorization-server"

// FetchProtectedResourceMetadata downloads and decodes the RFC 9728 document.
func FetchProtectedResourceMetadata(ctx context.Context, URL string, client *http.Client) (*ProtectedResourceMetadata, error) {
	metadata := &ProtectedResourceMetadata{}
	if err := fetchJSON(ctx, URL, client, metadata); err != nil {
		return nil, fmt.Errorf("failed to fetch protected resource metadata: %w", err)
	}
	if len(metadata.AuthorizationServers) == 0 {
		return nil, fmt.Errorf("protected resource metadata %v lists no authorization servers", URL)
	}
	return metadata, nil
}

// FetchAuthorizationServerMetadata downloads and decodes the RFC 8414 document
// for the given issuer.
func FetchAuthorizationServerMetadata(ctx context.Context, issuer string, client *http.Client) (*AuthorizationServerMetadata, error) {
	URL := strings.TrimSuffix(issuer, "/") + wellKnownAuthorizationServer
	metadata := &AuthorizationServerMetadata{}
	if err := fetchJSON(ctx, URL, client, metadata); err != nil {
		return nil, fmt.Errorf("failed to fetch authorization server metadata: %w", err)
	}
	if metadata.Issuer == "" {
		metadata.Issuer = issuer
	}
	if metadata.AuthorizationEndpoint == "" || metadata.TokenEndpoint == "" {
		return nil, fmt.Errorf("authorization server metadata %v misses endpoints", URL)
	}
	return metadata, nil
}

// FetchJSONWebKeySet downloads the JWKS document and returns the usable
// public keys indexed by key id.
func FetchJSONWebKeySet(ctx context.Context, URL string, client *http.Client) (map[string]crypto.PublicKey, error) {
	keySet := &JSONWebKeySet{}
	if err := fetchJSON(ctx, URL, client, keySet); err != nil {
		return nil, fmt.Errorf("failed to fetch JSON web key set: %w", err)
	}
	keys := map[string]crypto.PublicKey{}
	for _, key := range keySet.Keys {
		if key.Kty != "RSA" {
			continue
		}
		publicKey, err := key.rsaPublicKey()
		if err != nil {
			return nil, err
		}
		keys[key.Kid] = publicKey
	}
	return keys, nil
}

func (k *JSONWebKey) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key %v modulus: %w", k.Kid, err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key %v exponent: %w", k.Kid, err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

func fetchJSON(ctx context.Context, URL string, client *http.Client, target any) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d fetching %v", resp.StatusCode, URL)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
