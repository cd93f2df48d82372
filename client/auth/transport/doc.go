// Package transport implements an http.RoundTripper that performs the OAuth 2.1
// [Protected Resource Metadata](https://www.rfc-editor.org/rfc/rfc9728) discovery,
// token acquisition and automatic request retry required when a server
// challenges the client with `401 Unauthorized`, plus bounded scope escalation
// for `403 insufficient_scope` challenges.
//
// The RoundTripper plugs into any http.Client and therefore into every HTTP
// based transport in this module.
package transport
