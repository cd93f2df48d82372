package jsonrpc

import "fmt"

// JSON-RPC 2.0 error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Error is a well-formed JSON-RPC error object, surfaced to callers verbatim.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError creates an error with an arbitrary code.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// NewParseError creates a parse error.
func NewParseError(message string, data any) *Error {
	return NewError(ParseError, message, data)
}

// NewInvalidRequest creates an invalid request error.
func NewInvalidRequest(message string, data any) *Error {
	return NewError(InvalidRequest, message, data)
}

// NewMethodNotFound creates a method not found error.
func NewMethodNotFound(message string, data any) *Error {
	return NewError(MethodNotFound, message, data)
}

// NewInvalidParams creates an invalid params error.
func NewInvalidParams(message string, data any) *Error {
	return NewError(InvalidParams, message, data)
}

// NewInternalError creates an internal error.
func NewInternalError(message string, data any) *Error {
	return NewError(InternalError, message, data)
}
