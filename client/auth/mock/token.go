package mock

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 24 * time.Hour
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	IdToken      string `json:"id_token"`
	Scope        string `json:"scope,omitempty"`
}

// defaultTokenHandler exchanges authorization codes and refresh tokens for a
// fresh JWT set. The code itself is never validated, any value works.
func (m *AuthorizationService) defaultTokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	switch r.FormValue("grant_type") {
	case "authorization_code", "refresh_token":
	default:
		http.Error(w, "unsupported grant type", http.StatusBadRequest)
		return
	}
	if !m.authenticateClient(r) {
		http.Error(w, "invalid client credentials", http.StatusUnauthorized)
		return
	}
	response := tokenResponse{
		TokenType: "Bearer",
		ExpiresIn: int(accessTokenTTL.Seconds()),
		Scope:     r.FormValue("scope"),
	}
	var err error
	if response.AccessToken, err = m.createJWT(m.ClientID, "access_token", accessTokenTTL); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if response.RefreshToken, err = m.createJWT(m.ClientID, "refresh_token", refreshTokenTTL); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if response.IdToken, err = m.createJWT(m.ClientID, "id_token", accessTokenTTL); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// authenticateClient accepts credentials via basic auth or form fields.
func (m *AuthorizationService) authenticateClient(r *http.Request) bool {
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.FormValue("client_id"), r.FormValue("client_secret")
	}
	return id == m.ClientID && secret == m.ClientSecret
}
