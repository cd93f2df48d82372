package flow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/toolproto/mcpc/client/auth/flow/browser"
	"github.com/toolproto/mcpc/client/auth/flow/endpoint"
)

// BrowserFlow drives the authorization-code grant through the system browser
// with a loopback redirect.
type BrowserFlow struct{}

func (s *BrowserFlow) Token(ctx context.Context, config *oauth2.Config, options ...Option) (*oauth2.Token, error) {
	opts := NewOptions(options)
	server, err := endpoint.New()
	if err != nil {
		return nil, err
	}
	go server.Start()

	redirectURL := opts.redirectURL
	if redirectURL == "" {
		redirectURL = fmt.Sprintf("http://localhost:%v/callback", server.Port)
	}
	URL := buildAuthCodeURL(redirectURL, config, opts)
	cmd := browser.Open(URL)
	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}()
	if err = server.Wait(ctx); err != nil {
		return nil, err
	}
	code := server.AuthCode()
	if code == "" {
		return nil, fmt.Errorf("callback carried no authorization code")
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

func NewBrowserFlow() *BrowserFlow {
	return &BrowserFlow{}
}
