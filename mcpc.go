package mcpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/toolproto/mcpc/client"
	"github.com/toolproto/mcpc/client/auth"
	"github.com/toolproto/mcpc/client/auth/flow"
	authtransport "github.com/toolproto/mcpc/client/auth/transport"
	"github.com/toolproto/mcpc/client/auth/store"
	"github.com/toolproto/mcpc/jsonrpc/transport"
	"github.com/toolproto/mcpc/jsonrpc/transport/client/sse"
	"github.com/toolproto/mcpc/jsonrpc/transport/client/stdio"
	"github.com/toolproto/mcpc/jsonrpc/transport/client/streamhttp"
)

// ClientOptions configures a session client. The struct can be populated from
// CLI flags, YAML or JSON configuration alike.
type ClientOptions struct {
	Name            string          `yaml:"name" json:"name,omitempty" short:"n" long:"name" description:"client name"`
	Version         string          `yaml:"version,omitempty" json:"version,omitempty" short:"v" long:"version" description:"client version"`
	ProtocolVersion string          `yaml:"protocol,omitempty" json:"protocol,omitempty" short:"p" long:"protocol" description:"protocol version"`
	Transport       ClientTransport `yaml:"transport,omitempty" json:"transport,omitempty"`
	Auth            *ClientAuth     `yaml:"auth,omitempty" json:"auth,omitempty"`

	// PingInterval is the background liveness probe cadence, e.g. "30s".
	// Zero uses the default; a negative value disables probing.
	PingInterval time.Duration `yaml:"pingInterval,omitempty" json:"pingInterval,omitempty" long:"ping-interval" description:"liveness probe interval"`

	// PingIntervalSeconds is the deprecated spelling of PingInterval kept for
	// existing configurations. PingInterval wins when both are set.
	PingIntervalSeconds int `yaml:"pingIntervalSeconds,omitempty" json:"pingIntervalSeconds,omitempty"`

	PingFailureThreshold int  `yaml:"pingFailureThreshold,omitempty" json:"pingFailureThreshold,omitempty" long:"ping-failure-threshold" description:"consecutive probe failures before reconnect"`
	DisableReconnect     bool `yaml:"disableReconnect,omitempty" json:"disableReconnect,omitempty" long:"disable-reconnect" description:"disable automatic reconnection"`

	// RequestTimeout bounds calls issued without a context deadline.
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty" json:"requestTimeout,omitempty" long:"request-timeout" description:"default per-request timeout"`

	// CookieJar, if set, is attached to the underlying HTTP client so servers
	// using cookies can persist session state across reconnects and calls.
	CookieJar http.CookieJar `yaml:"-" json:"-"`

	// CookieJarPath persists cookies at this path when no CookieJar is
	// injected directly.
	CookieJarPath string `yaml:"cookieJarPath,omitempty" json:"cookieJarPath,omitempty" long:"cookie-jar" description:"cookie jar file path"`

	// cachedAuthRT keeps the authorization transport, and with it the token
	// store, alive across reconnects so tokens are not lost.
	cachedAuthRT     *authtransport.RoundTripper
	cachedHTTPClient *http.Client
}

// ClientAuth defines authorization options.
type ClientAuth struct {
	// ClientConfigs seeds the token store with known oauth2 client configs.
	ClientConfigs []store.MemoryStoreOption `yaml:"-" json:"-"`
	// UseIdToken presents the verified identity token instead of the access token.
	UseIdToken bool `yaml:"useIdToken,omitempty" json:"useIdToken,omitempty"`
	// MaxInsufficientScopeRetries bounds 403 scope escalation. Zero keeps the
	// built-in ceiling.
	MaxInsufficientScopeRetries int `yaml:"maxInsufficientScopeRetries,omitempty" json:"maxInsufficientScopeRetries,omitempty"`
	// TokenStorePath, if set, persists tokens at this path across restarts.
	TokenStorePath string `yaml:"tokenStorePath,omitempty" json:"tokenStorePath,omitempty" long:"token-store" description:"token store file path"`
	// Store injects a custom token store, overriding TokenStorePath.
	Store store.Store `yaml:"-" json:"-"`
	// Flow overrides the interactive authorization flow.
	Flow flow.AuthFlow `yaml:"-" json:"-"`
}

// ClientTransport selects and configures the physical channel.
type ClientTransport struct {
	Type                 string `yaml:"type" json:"type" short:"t" long:"transport" description:"transport type" choice:"stdio" choice:"sse" choice:"streamable"`
	ClientTransportStdio `yaml:",inline"`
	ClientTransportHTTP  `yaml:",inline"`
}

// ClientTransportStdio configures the child-process pipe transport.
type ClientTransportStdio struct {
	Command   string   `yaml:"command,omitempty" json:"command,omitempty" short:"C" long:"command" description:"server command"`
	Arguments []string `yaml:"arguments,omitempty" json:"arguments,omitempty" short:"A" long:"argument" description:"server command arguments"`
	Env       []string `yaml:"env,omitempty" json:"env,omitempty" long:"env" description:"extra server environment entries"`
}

// ClientTransportHTTP configures the HTTP based transports.
type ClientTransportHTTP struct {
	URL string `yaml:"url,omitempty" json:"url,omitempty" short:"u" long:"url" description:"server URL"`
}

func (c *ClientOptions) Init() {
	if c.Name == "" {
		c.Name = "mcpc"
		c.Version = "0.1"
	}
}

// pingInterval resolves the canonical setting over the deprecated one.
func (c *ClientOptions) pingInterval() time.Duration {
	if c.PingInterval != 0 {
		return c.PingInterval
	}
	if c.PingIntervalSeconds > 0 {
		return time.Duration(c.PingIntervalSeconds) * time.Second
	}
	return 0
}

// NewClient creates a session client with transport and authorization
// configured via ClientOptions. The returned client is not yet connected.
func NewClient(options *ClientOptions) (*client.Client, error) {
	options.Init()
	dial := func(ctx context.Context) (transport.Transport, error) {
		return options.getTransport(ctx)
	}
	// materialize the auth transport up front so its token store is shared
	// by every dial
	if _, err := options.getHTTPClient(); err != nil {
		return nil, err
	}
	opts, err := options.Options()
	if err != nil {
		return nil, err
	}
	return client.New(options.Name, options.Version, dial, opts...), nil
}

// getTransport constructs a transport based on ClientOptions.Transport.
func (c *ClientOptions) getTransport(_ context.Context) (transport.Transport, error) {
	httpClient, err := c.getHTTPClient()
	if err != nil {
		return nil, err
	}
	switch c.Transport.Type {
	case "stdio":
		stdioOptions := c.Transport.ClientTransportStdio
		if stdioOptions.Command == "" {
			return nil, fmt.Errorf("command is required for stdio transport")
		}
		return stdio.New(stdioOptions.Command,
			stdio.WithArguments(stdioOptions.Arguments...),
			stdio.WithEnv(stdioOptions.Env...)), nil
	case "sse":
		if c.Transport.URL == "" {
			return nil, fmt.Errorf("URL is required for sse transport")
		}
		var opts []sse.Option
		if httpClient != nil {
			opts = append(opts, sse.WithHTTPClient(httpClient))
		}
		return sse.New(c.Transport.URL, opts...), nil
	case "streamable":
		if c.Transport.URL == "" {
			return nil, fmt.Errorf("URL is required for streamable transport")
		}
		var opts []streamhttp.Option
		if httpClient != nil {
			opts = append(opts, streamhttp.WithHTTPClient(httpClient))
		}
		return streamhttp.New(c.Transport.URL, opts...), nil
	default:
		return nil, fmt.Errorf("no transport configured")
	}
}

// getHTTPClient builds the HTTP client once and reuses it across reconnects
// so the authorization state survives connection loss.
func (c *ClientOptions) getHTTPClient() (*http.Client, error) {
	if c.cachedHTTPClient != nil {
		return c.cachedHTTPClient, nil
	}
	if c.CookieJar == nil && c.CookieJarPath != "" {
		jar, err := authtransport.NewFileJar(c.CookieJarPath)
		if err != nil {
			return nil, err
		}
		c.CookieJar = jar
	}
	if c.Auth == nil {
		if c.CookieJar != nil {
			c.cachedHTTPClient = &http.Client{Jar: c.CookieJar}
			return c.cachedHTTPClient, nil
		}
		return nil, nil
	}
	authStore := c.Auth.Store
	if authStore == nil {
		if c.Auth.TokenStorePath != "" {
			authStore = store.NewFileStore(c.Auth.TokenStorePath, c.Auth.ClientConfigs...)
		} else {
			authStore = store.NewMemoryStore(c.Auth.ClientConfigs...)
		}
	}
	transportOpts := []authtransport.Option{
		authtransport.WithStore(authStore),
		authtransport.WithUseIdToken(c.Auth.UseIdToken),
		authtransport.WithMaxInsufficientScopeRetries(c.Auth.MaxInsufficientScopeRetries),
	}
	if c.Auth.Flow != nil {
		transportOpts = append(transportOpts, authtransport.WithAuthFlow(c.Auth.Flow))
	}
	if c.CookieJar != nil {
		transportOpts = append(transportOpts, authtransport.WithCookieJar(c.CookieJar))
	}
	rt, err := authtransport.New(transportOpts...)
	if err != nil {
		return nil, err
	}
	c.cachedAuthRT = rt
	c.cachedHTTPClient = &http.Client{Transport: rt, Jar: c.CookieJar}
	return c.cachedHTTPClient, nil
}

// AuthStore exposes the underlying token store used by the auth transport so
// callers can persist and reuse tokens across client instances.
func (c *ClientOptions) AuthStore() store.Store {
	if c.cachedAuthRT == nil {
		return nil
	}
	return c.cachedAuthRT.Store()
}

// Options builds client options from the configuration.
func (c *ClientOptions) Options() ([]client.Option, error) {
	var result []client.Option
	if c.ProtocolVersion != "" {
		result = append(result, client.WithProtocolVersion(c.ProtocolVersion))
	}
	if interval := c.pingInterval(); interval != 0 {
		result = append(result, client.WithPingInterval(interval))
	}
	if c.PingFailureThreshold > 0 {
		result = append(result, client.WithPingFailureThreshold(c.PingFailureThreshold))
	}
	if c.DisableReconnect {
		result = append(result, client.WithAutoReconnect(false))
	}
	if c.RequestTimeout > 0 {
		result = append(result, client.WithRequestTimeout(c.RequestTimeout))
	}
	if c.cachedAuthRT != nil {
		result = append(result, client.WithAuthInterceptor(auth.NewAuthorizer(c.cachedAuthRT)))
	}
	return result, nil
}
