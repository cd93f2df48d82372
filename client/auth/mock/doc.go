// Package mock provides in-memory and stub implementations that facilitate unit
// testing of the client-side authorization flow.
//
// The mocks allow tests to simulate OAuth2/OIDC interactions without performing
// actual network round-trips.
package mock
