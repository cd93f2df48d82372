package mock

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// createJWT mints an RS256 token of the given type, carrying the signing key
// id in its header so clients can verify it against the published JWKS.
func (m *AuthorizationService) createJWT(audience, tokenType string, ttl time.Duration) (string, error) {
	issuedAt := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": m.Issuer,
		"sub": "test_subject",
		"aud": audience,
		"iat": issuedAt.Unix(),
		"exp": issuedAt.Add(ttl).Unix(),
		"typ": tokenType,
	})
	token.Header["kid"] = signingKeyID
	return token.SignedString(m.PrivateKey)
}
