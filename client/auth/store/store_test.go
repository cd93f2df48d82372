package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/toolproto/mcpc/client/auth/meta"
)

func TestMemoryStoreClientConfigByIssuer(t *testing.T) {
	config := &oauth2.Config{
		ClientID: "cli",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://auth.example.com/authorize",
			TokenURL: "https://auth.example.com/token",
		},
	}
	s := NewMemoryStore(WithClientConfig(config))

	found, ok := s.LookupClientConfig("https://auth.example.com")
	require.True(t, ok, "config must be registered under the issuer derived from its auth endpoint")
	assert.Equal(t, "cli", found.ClientID)

	_, ok = s.LookupClientConfig("https://other.example.com")
	assert.False(t, ok)
}

func TestMemoryStoreTokenRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	key := TokenKey{Issuer: "https://auth.example.com", Scopes: "openid profile"}

	_, ok := s.LookupToken(key)
	assert.False(t, ok)

	token := &oauth2.Token{AccessToken: "abc", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, s.AddToken(key, token))

	found, ok := s.LookupToken(key)
	require.True(t, ok)
	assert.Equal(t, "abc", found.AccessToken)

	// a different scope set is a different key
	_, ok = s.LookupToken(TokenKey{Issuer: key.Issuer, Scopes: "openid"})
	assert.False(t, ok)
}

func TestMemoryStoreMetadata(t *testing.T) {
	s := NewMemoryStore()
	metadata := &meta.AuthorizationServerMetadata{
		Issuer:                "https://auth.example.com",
		AuthorizationEndpoint: "https://auth.example.com/authorize",
		TokenEndpoint:         "https://auth.example.com/token",
	}
	require.NoError(t, s.AddAuthorizationServerMetadata(metadata))
	found, ok := s.LookupAuthorizationServerMetadata("https://auth.example.com")
	require.True(t, ok)
	assert.Equal(t, metadata.TokenEndpoint, found.TokenEndpoint)
}

func TestFileStorePersistsTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	key := TokenKey{Issuer: "https://auth.example.com", Scopes: "openid"}
	token := &oauth2.Token{
		AccessToken:  "persisted",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour).Round(time.Second),
	}

	first := NewFileStore(path)
	require.NoError(t, first.AddToken(key, token))

	second := NewFileStore(path)
	found, ok := second.LookupToken(key)
	require.True(t, ok, "tokens must survive a restart")
	assert.Equal(t, "persisted", found.AccessToken)
	assert.Equal(t, "refresh", found.RefreshToken)
	assert.WithinDuration(t, token.Expiry, found.Expiry, time.Second)
}

func TestWithDerivedExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	signed := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	accessToken, err := signed.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	derived := WithDerivedExpiry(&oauth2.Token{AccessToken: accessToken})
	assert.WithinDuration(t, exp, derived.Expiry, time.Second)

	// an explicit expiry is left alone
	explicit := time.Now().Add(time.Hour)
	kept := WithDerivedExpiry(&oauth2.Token{AccessToken: accessToken, Expiry: explicit})
	assert.Equal(t, explicit, kept.Expiry)

	// opaque tokens stay without expiry
	opaque := WithDerivedExpiry(&oauth2.Token{AccessToken: "not-a-jwt"})
	assert.True(t, opaque.Expiry.IsZero())
}
