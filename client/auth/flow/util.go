package flow

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

func buildAuthCodeURL(redirectURL string, config *oauth2.Config, opts *Options) string {
	oauth2Options := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(opts.CodeVerifier()),
		oauth2.SetAuthURLParam("redirect_uri", redirectURL),
	}
	if scopes := append(config.Scopes, opts.scopes...); len(scopes) > 0 {
		oauth2Options = append(oauth2Options, oauth2.SetAuthURLParam("scope", strings.Join(scopes, " ")))
	}
	for name, value := range opts.authURLParams {
		oauth2Options = append(oauth2Options, oauth2.SetAuthURLParam(name, value))
	}
	return config.AuthCodeURL(opts.State(), oauth2Options...)
}

// randomToken generates a cryptographically secure random token.
func randomToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// postFormData sends an x-www-form-urlencoded POST without following redirects
// so the caller can inspect the Location header.
func postFormData(URL string, data map[string]string) (*http.Response, error) {
	form := url.Values{}
	for k, v := range data {
		form.Set(k, v)
	}
	req, err := http.NewRequest(http.MethodPost, URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return client.Do(req)
}
