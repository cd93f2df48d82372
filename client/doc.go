// Package client implements a resilient session on top of the pluggable
// JSON-RPC transports.
//
// It adds on top of the raw envelope:
//   - Automatic `initialize` handshake and capability negotiation.
//   - Request correlation with per-call timeouts and cancellation.
//   - Cached tool, resource and prompt listings invalidated by the server's
//     list_changed notifications.
//   - Ordered notification dispatch with isolated handlers.
//   - Liveness probing and automatic reconnection with exponential backoff.
//   - Optional authorization interceptor that acquires OAuth2/OIDC tokens on
//     the fly and transparently retries challenged requests.
//
// The package is transport-agnostic; callers supply a DialFunc producing any
// implementation of the jsonrpc/transport.Transport interface.
//
// Example:
//
//	cli := client.New("demo", "1.0", func(ctx context.Context) (transport.Transport, error) {
//		return streamhttp.New("https://mcp.example.com/mcp"), nil
//	})
//	if err := cli.Connect(ctx); err != nil { ... }
//	tools, _ := cli.Tools(ctx)
package client
