package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// defaultResourceHandler simulates a protected resource: requests without a
// bearer token receive a challenge pointing at the resource metadata, and any
// JWT-shaped token is accepted.
func (m *AuthorizationService) defaultResourceHandler(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if header == "" {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(
			`Bearer realm="%s", scope="resource", resource_metadata="%s/resource-metadata"`,
			m.Issuer, m.Issuer))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	token, isBearer := strings.CutPrefix(header, "Bearer ")
	if !isBearer || token == "" || strings.ContainsRune(token, ' ') {
		http.Error(w, "invalid authorization header", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(token, "eyJ") {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "protected resource content"})
}
