package flow

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// OutOfBandFlow drives the authorization-code grant without a browser: it
// POSTs credentials supplied via WithPostParam to the authorization endpoint
// and extracts the code from the redirect Location. Useful for headless tests
// and service accounts against permissive authorization servers.
type OutOfBandFlow struct{}

func (s *OutOfBandFlow) Token(ctx context.Context, config *oauth2.Config, options ...Option) (*oauth2.Token, error) {
	opts := NewOptions(options)
	redirectURL := opts.redirectURL
	if redirectURL == "" {
		redirectURL = "https://localhost/callback.html"
	}
	URL := buildAuthCodeURL(redirectURL, config, opts)
	resp, err := postFormData(URL, opts.postParams)
	if err != nil {
		return nil, fmt.Errorf("failed to post authorization form: %w", err)
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("authorization response missing location header")
	}
	parsedURL, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("failed to parse location: %w", err)
	}
	if errorMessage := parsedURL.Query().Get("error"); errorMessage != "" {
		return nil, fmt.Errorf("authorization failed: %s", errorMessage)
	}
	code := parsedURL.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("missing code in location %v", location)
	}
	scopes := append(config.Scopes, opts.scopes...)
	tkn, err := config.Exchange(ctx, code,
		oauth2.VerifierOption(opts.CodeVerifier()),
		oauth2.SetAuthURLParam("scope", strings.Join(scopes, " ")),
		oauth2.SetAuthURLParam("redirect_uri", redirectURL),
	)
	if tkn == nil && err == nil {
		err = fmt.Errorf("token exchange returned no token")
	}
	return tkn, err
}

func NewOutOfBandFlow() *OutOfBandFlow {
	return &OutOfBandFlow{}
}
