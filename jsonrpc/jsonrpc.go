// Package jsonrpc implements the JSON-RPC 2.0 envelope used on every transport.
package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the only protocol version this package accepts.
const Version = "2.0"

// RequestID is a correlation identifier; the wire form may be a number or a string.
type RequestID struct {
	str   string
	num   uint64
	isNum bool
	valid bool
}

// NewNumberID creates a numeric request id.
func NewNumberID(value uint64) RequestID {
	return RequestID{num: value, isNum: true, valid: true}
}

// NewStringID creates a string request id.
func NewStringID(value string) RequestID {
	return RequestID{str: value, valid: true}
}

// IsValid reports whether the id carries a value.
func (r RequestID) IsValid() bool { return r.valid }

// String returns the canonical key form used for correlation lookups.
func (r RequestID) String() string {
	if r.isNum {
		return strconv.FormatUint(r.num, 10)
	}
	return r.str
}

func (r RequestID) MarshalJSON() ([]byte, error) {
	if !r.valid {
		return []byte("null"), nil
	}
	if r.isNum {
		return json.Marshal(r.num)
	}
	return json.Marshal(r.str)
}

func (r *RequestID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = RequestID{}
		return nil
	}
	var num uint64
	if err := json.Unmarshal(data, &num); err == nil {
		*r = NewNumberID(num)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid request id %s: %w", data, err)
	}
	*r = NewStringID(str)
	return nil
}

// Message is the envelope union: request (method+id), notification (method, no id)
// or response (id + result|error).
type Message struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsRequest reports whether the message expects a reply.
func (m *Message) IsRequest() bool { return m.Method != "" && m.Id != nil }

// IsNotification reports whether the message is one-way.
func (m *Message) IsNotification() bool { return m.Method != "" && m.Id == nil }

// IsResponse reports whether the message answers an earlier request.
func (m *Message) IsResponse() bool { return m.Method == "" && m.Id != nil }

// NewRequest builds a request message, marshaling params.
func NewRequest(id RequestID, method string, params any) (*Message, error) {
	data, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %v params: %w", method, err)
	}
	return &Message{Jsonrpc: Version, Id: &id, Method: method, Params: data}, nil
}

// NewNotification builds a one-way message, marshaling params.
func NewNotification(method string, params any) (*Message, error) {
	data, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %v params: %w", method, err)
	}
	return &Message{Jsonrpc: Version, Method: method, Params: data}, nil
}

// NewResponse builds a successful reply, marshaling the result.
func NewResponse(id RequestID, result any) (*Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Message{Jsonrpc: Version, Id: &id, Result: data}, nil
}

// NewErrorResponse builds a reply carrying a protocol error.
func NewErrorResponse(id RequestID, rpcErr *Error) *Message {
	return &Message{Jsonrpc: Version, Id: &id, Error: rpcErr}
}

// Parse decodes one wire message, rejecting foreign protocol versions.
func Parse(data []byte) (*Message, error) {
	message := &Message{}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if message.Jsonrpc != Version {
		return nil, fmt.Errorf("unsupported jsonrpc version: %q", message.Jsonrpc)
	}
	return message, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}
