package schema

import (
	"github.com/toolproto/mcpc/client/auth/meta"
)

const (
	// Unauthorized is the JSON-RPC error code a server uses to challenge a
	// request at the protocol level rather than the HTTP level.
	Unauthorized = -32001
)

// Authorization describes what a challenged request needs: where to discover
// the authorization server and which scopes the operation requires.
type Authorization struct {
	ProtectedResourceMetadata *meta.ProtectedResourceMetadata `json:"protectedResourceMetadata"`
	RequiredScopes            []string                        `json:"requiredScopes"`
	UseIdToken                bool                            `json:"useIdToken,omitempty"`
}
