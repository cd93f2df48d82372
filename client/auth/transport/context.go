package transport

import (
	"context"

	"github.com/toolproto/mcpc/client/auth/flow"
)

type contextKey string

const (
	// ContextFlowOptionKey carries per-request flow options.
	ContextFlowOptionKey contextKey = "authFlowOptions"
)

func getAuthFlowOptions(ctx context.Context) []flow.Option {
	var options []flow.Option
	if value := ctx.Value(ContextFlowOptionKey); value != nil {
		options, _ = value.([]flow.Option)
	}
	return options
}

func getScopes(ctx context.Context) []string {
	options := getAuthFlowOptions(ctx)
	if len(options) == 0 {
		return nil
	}
	return flow.NewOptions(options).Scopes()
}
