package schema

import "encoding/json"

// Implementation identifies one side of a session.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewImplementation creates an Implementation with the given name and version.
func NewImplementation(name, version string) *Implementation {
	return &Implementation{Name: name, Version: version}
}

// ClientCapabilities declares what the client side supports.
type ClientCapabilities struct {
	Experimental map[string]map[string]any `json:"experimental,omitempty"`
	Roots        *ClientCapabilitiesRoots  `json:"roots,omitempty"`
	Sampling     map[string]any            `json:"sampling,omitempty"`
}

// ClientCapabilitiesRoots signals roots support and change notifications.
type ClientCapabilitiesRoots struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities is the server half of the capability negotiation.
type ServerCapabilities struct {
	Experimental map[string]map[string]any       `json:"experimental,omitempty"`
	Logging      map[string]any                  `json:"logging,omitempty"`
	Prompts      *ServerCapabilitiesPrompts      `json:"prompts,omitempty"`
	Resources    *ServerCapabilitiesResources    `json:"resources,omitempty"`
	Tools        *ServerCapabilitiesTools        `json:"tools,omitempty"`
	Completions  *ServerCapabilitiesCompletions  `json:"completions,omitempty"`
}

type ServerCapabilitiesPrompts struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ServerCapabilitiesResources struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

type ServerCapabilitiesTools struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ServerCapabilitiesCompletions struct{}

// InitializeRequestParams is sent by the client as the first request of a session.
type InitializeRequestParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult carries the server's negotiated version and capability set.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// Tool describes one invocable server tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Resource describes one server resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate describes a parameterized resource.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContents is one representation of a read resource.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// Prompt describes one server prompt template.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content is a single content block in tool results and prompt messages.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Root is a client-declared filesystem or workspace root.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

type ListToolsRequestParams struct {
	Cursor *string `json:"cursor,omitempty"`
}

type ListToolsResult struct {
	Tools      []Tool  `json:"tools"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

type ListResourcesRequestParams struct {
	Cursor *string `json:"cursor,omitempty"`
}

type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor *string    `json:"nextCursor,omitempty"`
}

type ListResourceTemplatesRequestParams struct {
	Cursor *string `json:"cursor,omitempty"`
}

type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	NextCursor        *string            `json:"nextCursor,omitempty"`
}

type ListPromptsRequestParams struct {
	Cursor *string `json:"cursor,omitempty"`
}

type ListPromptsResult struct {
	Prompts    []Prompt `json:"prompts"`
	NextCursor *string  `json:"nextCursor,omitempty"`
}

type ReadResourceRequestParams struct {
	URI string `json:"uri"`
}

type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

type GetPromptRequestParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

type CallToolRequestParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

type CompleteRequestParams struct {
	Ref      CompleteRef      `json:"ref"`
	Argument CompleteArgument `json:"argument"`
}

type CompleteRef struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

type CompleteArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type CompleteResult struct {
	Completion Completion `json:"completion"`
}

type Completion struct {
	Values  []string `json:"values"`
	Total   int      `json:"total,omitempty"`
	HasMore bool     `json:"hasMore,omitempty"`
}

type SubscribeRequestParams struct {
	URI string `json:"uri"`
}

type SubscribeResult struct{}

type UnsubscribeRequestParams struct {
	URI string `json:"uri"`
}

type UnsubscribeResult struct{}

type SetLevelRequestParams struct {
	Level string `json:"level"`
}

type SetLevelResult struct{}

type PingRequestParams struct{}

type PingResult struct{}

type ListRootsRequestParams struct{}

type ListRootsResult struct {
	Roots []Root `json:"roots"`
}

// CancelledParams accompanies notifications/cancelled.
type CancelledParams struct {
	RequestID any    `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// ProgressParams accompanies notifications/progress.
type ProgressParams struct {
	ProgressToken any     `json:"progressToken"`
	Progress      float64 `json:"progress"`
	Total         float64 `json:"total,omitempty"`
}
