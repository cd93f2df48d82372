package schema

const (
	MethodInitialize             = "initialize"
	MethodPing                   = "ping"
	MethodResourcesList          = "resources/list"
	MethodResourcesTemplatesList = "resources/templates/list"
	MethodResourcesRead          = "resources/read"
	MethodResourcesSubscribe     = "resources/subscribe"
	MethodResourcesUnsubscribe   = "resources/unsubscribe"
	MethodPromptsList            = "prompts/list"
	MethodPromptsGet             = "prompts/get"
	MethodToolsList              = "tools/list"
	MethodToolsCall              = "tools/call"
	MethodComplete               = "completion/complete"
	MethodLoggingSetLevel        = "logging/setLevel"
	MethodRootsList              = "roots/list"

	MethodNotificationInitialized          = "notifications/initialized"
	MethodNotificationCancelled            = "notifications/cancelled"
	MethodNotificationProgress             = "notifications/progress"
	MethodNotificationMessage              = "notifications/message"
	MethodNotificationToolsListChanged     = "notifications/tools/list_changed"
	MethodNotificationResourcesListChanged = "notifications/resources/list_changed"
	MethodNotificationResourcesUpdated     = "notifications/resources/updated"
	MethodNotificationPromptsListChanged   = "notifications/prompts/list_changed"
	MethodNotificationRootsListChanged     = "notifications/roots/list_changed"
)

// LatestProtocolVersion is the newest protocol revision this client speaks.
const LatestProtocolVersion = "2025-03-26"
