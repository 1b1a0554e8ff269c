// Package jsonrpc defines the wire types for JSON-RPC 2.0 requests,
// responses, and errors as carried by the framed stdio transport.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version string every envelope carries.
const Version = "2.0"

// ID is a request identifier: a string, a number, or null. The zero value
// represents an absent id (a notification), which is distinct from an
// explicit JSON null id (a valid, if unusual, request id).
type ID struct {
	value   any // string, float64, or nil
	present bool
}

// NewID wraps a string or numeric id.
func NewID(v any) ID { return ID{value: v, present: true} }

// NullID represents an explicit JSON null id on a request.
func NullID() ID { return ID{value: nil, present: true} }

// IsNotification reports whether no id was present on the wire at all.
func (i ID) IsNotification() bool { return !i.present }

// Value returns the underlying id value (string, float64, or nil).
func (i ID) Value() any { return i.value }

// Equal reports whether two ids refer to the same request, per the
// state machine's echo requirement (including null == null).
func (i ID) Equal(other ID) bool {
	if i.present != other.present {
		return false
	}
	return i.value == other.value
}

func (i ID) MarshalJSON() ([]byte, error) {
	if !i.present {
		return []byte("null"), nil
	}
	return json.Marshal(i.value)
}

func (i *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = ID{value: nil, present: true}
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v.(type) {
	case string, float64:
		*i = ID{value: v, present: true}
		return nil
	default:
		return fmt.Errorf("jsonrpc: id must be a string, number, or null, got %T", v)
	}
}

func (i ID) String() string {
	if !i.present {
		return "<notification>"
	}
	if i.value == nil {
		return "null"
	}
	return fmt.Sprintf("%v", i.value)
}

// Request is an inbound JSON-RPC call or notification. ID.IsNotification()
// distinguishes the two: a notification has no id field on the wire at all,
// which json.Unmarshal leaves as the ID zero value only if hasID tracks it —
// see UnmarshalJSON below for how that's detected.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	hasID   bool
}

// HasID reports whether the raw frame included an "id" member, i.e. whether
// this is a call (expects a reply) rather than a notification.
func (r Request) HasID() bool { return r.hasID }

func (r *Request) UnmarshalJSON(data []byte) error {
	type alias Request
	var probe struct {
		alias
		RawID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*r = Request(probe.alias)
	if probe.RawID != nil {
		r.hasID = true
		if err := json.Unmarshal(probe.RawID, &r.ID); err != nil {
			return err
		}
	}
	return nil
}

// Response is an outbound JSON-RPC reply. Exactly one of Result or Error is
// set, matching the invariant enforced by NewResult/NewError.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewResult builds a success response, marshaling result to json.RawMessage.
// A marshal failure here is a programmer error (result is always a
// server-controlled struct), so it is folded into an InternalError response
// rather than propagated — the caller has no useful recovery path.
func NewResult(id ID, result any) Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return NewError(id, -32603, "internal error", map[string]any{"marshal": err.Error()})
	}
	return Response{JSONRPC: Version, ID: id, Result: raw}
}

// NewError builds an error response.
func NewError(id ID, code int, message string, data any) Response {
	return Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message, Data: data}}
}
