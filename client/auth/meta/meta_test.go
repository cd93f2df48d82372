package meta

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchProtectedResourceMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ProtectedResourceMetadata{
			Resource:             "https://rs.example.com",
			AuthorizationServers: []string{"https://auth.example.com"},
		})
	}))
	defer server.Close()

	metadata, err := FetchProtectedResourceMetadata(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://auth.example.com"}, metadata.AuthorizationServers)
}

func TestFetchProtectedResourceMetadataRequiresServers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ProtectedResourceMetadata{Resource: "https://rs.example.com"})
	}))
	defer server.Close()

	_, err := FetchProtectedResourceMetadata(context.Background(), server.URL, nil)
	assert.Error(t, err, "a document without authorization servers is unusable")
}

func TestFetchAuthorizationServerMetadata(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/oauth-authorization-server", r.URL.Path)
		_ = json.NewEncoder(w).Encode(AuthorizationServerMetadata{
			AuthorizationEndpoint: server.URL + "/authorize",
			TokenEndpoint:         server.URL + "/token",
		})
	}))
	defer server.Close()

	metadata, err := FetchAuthorizationServerMetadata(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL, metadata.Issuer, "missing issuer is backfilled from the lookup")
	assert.Equal(t, server.URL+"/token", metadata.TokenEndpoint)
}

func TestFetchAuthorizationServerMetadataRequiresEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(AuthorizationServerMetadata{Issuer: "https://auth.example.com"})
	}))
	defer server.Close()

	_, err := FetchAuthorizationServerMetadata(context.Background(), server.URL, nil)
	assert.Error(t, err)
}

func TestFetchJSONWebKeySet(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	public := key.Public().(*rsa.PublicKey)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(JSONWebKeySet{Keys: []JSONWebKey{
			{
				Kty: "RSA",
				Kid: "key-1",
				N:   base64.RawURLEncoding.EncodeToString(public.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(new(big.Int).SetInt64(int64(public.E)).Bytes()),
			},
			{Kty: "EC", Kid: "ignored"},
		}})
	}))
	defer server.Close()

	keys, err := FetchJSONWebKeySet(context.Background(), server.URL, nil)
	require.NoError(t, err)
	require.Len(t, keys, 1, "non-RSA keys are skipped")

	fetched, ok := keys["key-1"].(*rsa.PublicKey)
	require.True(t, ok)
	assert.Equal(t, 0, fetched.N.Cmp(public.N))
	assert.Equal(t, public.E, fetched.E)
}

func TestFetchRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := FetchProtectedResourceMetadata(context.Background(), server.URL, nil)
	assert.Error(t, err)
}
