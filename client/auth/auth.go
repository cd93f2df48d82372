package auth

import (
	"context"
	"encoding/json"

	"golang.org/x/oauth2"

	"github.com/toolproto/mcpc/client/auth/transport"
	"github.com/toolproto/mcpc/jsonrpc"
	"github.com/toolproto/mcpc/schema"
)

// Authorizer handles protocol-level authorization challenges: when a server
// rejects a JSON-RPC request with the Unauthorized error code it carries the
// protected-resource metadata in the error data, and the request is replayed
// with a token injected into its params meta.
type Authorizer struct {
	Transport *transport.RoundTripper
}

// Intercept inspects a response and, on an authorization challenge, returns
// the request to replay with credentials attached. A nil request means no
// replay is needed.
func (a *Authorizer) Intercept(ctx context.Context, request *jsonrpc.Message, response *jsonrpc.Message) (*jsonrpc.Message, error) {
	if response.Error == nil || response.Error.Code != schema.Unauthorized {
		return nil, nil
	}
	data, _ := json.Marshal(response.Error.Data)
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var authorization schema.Authorization
	if err := json.Unmarshal(data, &authorization); err != nil {
		return nil, err
	}
	if authorization.ProtectedResourceMetadata == nil {
		return nil, nil
	}
	token, err := a.Transport.ProtectedResourceToken(ctx, authorization.ProtectedResourceMetadata, authorization.RequiredScopes)
	if err != nil {
		return nil, err
	}
	if authorization.UseIdToken {
		token, err = a.Transport.IdToken(ctx, token, authorization.ProtectedResourceMetadata)
		if err != nil {
			return nil, err
		}
	}
	return injectToken(request, token)
}

// injectToken places the bearer token under params._meta.authorization.token.
func injectToken(request *jsonrpc.Message, token *oauth2.Token) (*jsonrpc.Message, error) {
	params := map[string]interface{}{}
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return nil, err
		}
	}
	paramMeta, ok := params["_meta"].(map[string]interface{})
	if !ok {
		paramMeta = map[string]interface{}{}
		params["_meta"] = paramMeta
	}
	authorizationMeta, ok := paramMeta["authorization"].(map[string]interface{})
	if !ok {
		authorizationMeta = map[string]interface{}{}
		paramMeta["authorization"] = authorizationMeta
	}
	authorizationMeta["token"] = token.AccessToken

	next := *request
	var err error
	if next.Params, err = json.Marshal(params); err != nil {
		return nil, err
	}
	return &next, nil
}

func NewAuthorizer(transport *transport.RoundTripper) *Authorizer {
	return &Authorizer{Transport: transport}
}
