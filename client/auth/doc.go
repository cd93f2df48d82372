// Package auth contains the client-side authorization helpers.
//
// The transport sub-package supplies an http.RoundTripper that handles 401
// discovery, token acquisition and 403 scope escalation for HTTP based
// transports. The Authorizer in this package covers the protocol-level
// variant where the challenge arrives as a JSON-RPC error instead.
package auth
