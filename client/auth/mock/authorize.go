package mock

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// defaultAuthorizeHandler approves every authorization request immediately,
// redirecting back to the caller with a fresh single-use code.
func (m *AuthorizationService) defaultAuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("client_id") != m.ClientID {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}
	callback, err := url.Parse(query.Get("redirect_uri"))
	if err != nil || callback.String() == "" {
		http.Error(w, "missing or invalid redirect uri", http.StatusBadRequest)
		return
	}
	params := callback.Query()
	params.Set("code", uuid.NewString())
	params.Set("state", query.Get("state"))
	callback.RawQuery = params.Encode()
	http.Redirect(w, r, callback.String(), http.StatusFound)
}
