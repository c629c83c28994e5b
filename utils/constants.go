package utils

// ContextKey is the type for request-scoped context values
type ContextKey string

// Context keys populated by the handler layer for flows and audit paths
const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	TimeoutKey    ContextKey = "timeout"
	CancelFuncKey ContextKey = "cancel_func"
)

// Pagination limits for listing endpoints
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
