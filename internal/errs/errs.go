// Package errs implements the closed error taxonomy shared by every core
// component and its deterministic mapping to JSON-RPC 2.0 error codes.
//
// A handler or component never constructs a raw JSON-RPC error payload
// itself; it returns (or wraps) one of the sentinel Kind values via New or
// Wrap, and the protocol layer maps it once, at the edge, via Code.
package errs

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Kind is a value from the closed taxonomy in the design's error handling
// section. New kinds need a corresponding entry in the JSON-RPC mapping
// table below — the switch in Code lists every kind explicitly; an unlisted
// kind falls through to InternalError's code.
type Kind string

const (
	KindInvalidArguments         Kind = "InvalidArguments"
	KindPathTraversal            Kind = "PathTraversal"
	KindOutsideRoot              Kind = "OutsideRoot"
	KindBlockedPattern           Kind = "BlockedPattern"
	KindNotFound                 Kind = "NotFound"
	KindPermissionDenied         Kind = "PermissionDenied"
	KindTimeout                  Kind = "Timeout"
	KindConcurrencyLimitExceeded Kind = "ConcurrencyLimitExceeded"
	KindToolNotFound             Kind = "ToolNotFound"
	KindToolDisabled             Kind = "ToolDisabled"
	KindUnsupportedProtocolVersion Kind = "UnsupportedProtocolVersion"
	KindNotInitialized           Kind = "NotInitialized"
	KindInvalidFrame             Kind = "InvalidFrame"
	KindServerShuttingDown       Kind = "ServerShuttingDown"
	KindSessionClosed            Kind = "SessionClosed"
	KindInternalError            Kind = "InternalError"
)

// JSON-RPC 2.0 standard error codes, plus the four codes this taxonomy maps
// its domain kinds onto (no custom codes below -32000 are used — the spec's
// mapping table only ever picks one of these four).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error is the concrete, typed error every component returns for a domain
// failure. It carries enough structured context to populate the JSON-RPC
// error response's data object without the mapper re-deriving anything.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Stack   string
	cause   error
}

// New creates an Error of the given kind with a message and optional
// key-value context pairs (must come in pairs; an odd trailing key is
// dropped rather than panicking, since this always originates from
// programmer-controlled call sites, never from untrusted input).
func New(kind Kind, message string, kv ...any) *Error {
	e := &Error{Kind: kind, Message: message, Stack: string(debug.Stack())}
	e.Context = pairsToMap(kv)
	return e
}

// Wrap creates an Error of the given kind that preserves cause for
// errors.Is/errors.As chains and for internal logging, without leaking the
// underlying OS/library error text into the client-facing Message.
func Wrap(kind Kind, cause error, message string, kv ...any) *Error {
	e := New(kind, message, kv...)
	e.cause = cause
	return e
}

func pairsToMap(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		m[key] = kv[i+1]
	}
	return m
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is supports errors.Is(err, errs.New(kind, "")) style kind comparisons by
// treating two *Error values as equal when their Kind matches, independent
// of message or context.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindInternalError for any
// error that isn't (or doesn't wrap) an *Error — this is the boundary where
// an unexpected library/OS failure becomes a taxonomy member.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalError
}

// Code returns the JSON-RPC 2.0 error code for a Kind, per the
// deterministic mapping table. Every member of the closed taxonomy is
// listed explicitly; any other Kind value maps to CodeInternalError.
func Code(kind Kind) int {
	switch kind {
	case KindInvalidArguments:
		return CodeInvalidParams
	case KindPathTraversal, KindOutsideRoot, KindBlockedPattern, KindNotFound,
		KindToolNotFound, KindToolDisabled, KindUnsupportedProtocolVersion,
		KindNotInitialized, KindSessionClosed:
		return CodeInvalidRequest
	case KindTimeout, KindConcurrencyLimitExceeded, KindPermissionDenied,
		KindInternalError, KindServerShuttingDown:
		return CodeInternalError
	case KindInvalidFrame:
		return CodeParseError
	default:
		return CodeInternalError
	}
}
