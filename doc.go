// Package mcpc provides a resilient client for JSON-RPC tool-invocation
// servers spoken to over pipes or HTTP.
//
// It glues the protocol types in schema and jsonrpc with concrete transports,
// an OAuth 2.1 authorization layer and convenience configuration structures.
// The primary entry point is NewClient, which accepts an options structure
// that can be populated from CLI flags or configuration files:
//
//	cli, _ := mcpc.NewClient(&mcpc.ClientOptions{
//		Transport: mcpc.ClientTransport{
//			Type:                "streamable",
//			ClientTransportHTTP: mcpc.ClientTransportHTTP{URL: "https://mcp.example.com/mcp"},
//		},
//	})
//	if err := cli.Connect(ctx); err != nil { ... }
//	tools, _ := cli.Tools(ctx)
package mcpc
