package store

import (
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// WithDerivedExpiry fills in a missing token expiry from the access token's
// JWT exp claim. Providers that omit expires_in still issue self-describing
// JWTs; a token without either stays zero and is treated as non-expiring.
func WithDerivedExpiry(token *oauth2.Token) *oauth2.Token {
	if token == nil || !token.Expiry.IsZero() {
		return token
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	// Unverified parse: the expiry hint does not need signature trust.
	if _, _, err := parser.ParseUnverified(token.AccessToken, claims); err != nil {
		return token
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return token
	}
	token.Expiry = expiry.Time
	return token
}
