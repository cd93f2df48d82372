// Package store defines token, client-configuration and metadata stores used
// by the authorization round tripper.
//
// It ships with an in-memory implementation that is sufficient for most CLI or
// unit-test scenarios and a file-backed one that persists tokens across
// process restarts.
package store
