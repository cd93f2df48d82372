package client

import (
	"log/slog"
	"time"

	"github.com/toolproto/mcpc/client/auth"
	"github.com/toolproto/mcpc/schema"
)

// Option represents a client option.
type Option func(c *Client)

// WithCapabilities sets the capabilities advertised at handshake.
func WithCapabilities(capabilities schema.ClientCapabilities) Option {
	return func(c *Client) {
		c.capabilities = capabilities
	}
}

// WithProtocolVersion sets the protocol version proposed at handshake.
func WithProtocolVersion(version string) Option {
	return func(c *Client) {
		c.protocolVersion = version
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestTimeout bounds every request that arrives without a deadline.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = timeout
	}
}

// WithAuthInterceptor attaches an Authorizer that transparently replays
// requests rejected with a protocol-level authorization challenge.
func WithAuthInterceptor(authorizer *auth.Authorizer) Option {
	return func(c *Client) {
		c.authInterceptor = authorizer
	}
}

// WithRoots sets the initial roots advertised to the server.
func WithRoots(roots ...schema.Root) Option {
	return func(c *Client) {
		c.roots = roots
	}
}

// WithAutoReconnect toggles automatic reconnection after connection loss.
func WithAutoReconnect(enabled bool) Option {
	return func(c *Client) {
		c.autoReconnect = enabled
	}
}

// WithPingInterval sets how often the health monitor probes the server.
// Zero disables probing.
func WithPingInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.health.interval = interval
	}
}

// WithPingTimeout bounds each individual probe.
func WithPingTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.health.timeout = timeout
	}
}

// WithPingFailureThreshold sets how many consecutive probe failures mark the
// session unhealthy.
func WithPingFailureThreshold(threshold int) Option {
	return func(c *Client) {
		if threshold > 0 {
			c.health.threshold = threshold
		}
	}
}
