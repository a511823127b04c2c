// Package mcp defines the core types of the MCP fabric: the JSON-RPC 2.0
// wire shapes spoken on POST /mcp, the error-code space, and the descriptor
// registry that is the single source of truth for which MCPs exist, how they
// are launched, and where they listen.
//
// An MCP (Modular Capability Provider) is a micro-service that publishes a
// set of tool functions over two HTTP endpoints:
//
//   - GET /functions — the array of function schemas ([types.ToolDefinition])
//   - POST /mcp      — JSON-RPC 2.0 method dispatch
//
// The server skeleton lives in the server subpackage, the calling side in
// client, and process supervision in launcher.
package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version spoken on POST /mcp.
const Version = "2.0"

// JSON-RPC 2.0 error codes. The -32000..-32099 range is reserved for
// application errors raised by function handlers.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603

	// CodeAppError is the generic application failure code.
	CodeAppError = -32000

	// CodeSandboxViolation is raised by MCPs that enforce a path or
	// capability sandbox (e.g. the files MCP).
	CodeSandboxViolation = -32001
)

// IsApplicationCode reports whether code lies in the JSON-RPC
// server-defined application range -32099..-32000.
func IsApplicationCode(code int) bool {
	return code >= -32099 && code <= -32000
}

// Request is a JSON-RPC 2.0 request as received on POST /mcp.
//
// ID is kept raw so that responses echo exactly what the caller sent
// (numbers and strings are both legal).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// nullID is the literal JSON null, used both for detecting absent IDs and as
// the echoed ID when a request was too malformed to extract one.
var nullID = json.RawMessage("null")

// Valid reports whether the request satisfies the JSON-RPC 2.0 shape
// requirements: correct version, a non-null id, and a non-empty method.
func (r *Request) Valid() bool {
	if r.JSONRPC != Version || r.Method == "" {
		return false
	}
	return len(r.ID) > 0 && !bytes.Equal(r.ID, nullID)
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Err is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Err     *Error          `json:"error,omitempty"`
}

// NewResponse builds a success response echoing id. The result must be
// JSON-marshalable; a marshal failure is reported as an internal error
// response instead.
func NewResponse(id json.RawMessage, result any) Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, CodeInternal, fmt.Sprintf("encode result: %v", err))
	}
	return Response{JSONRPC: Version, ID: normalizeID(id), Result: raw}
}

// NewErrorResponse builds an error response echoing id.
func NewErrorResponse(id json.RawMessage, code int, message string) Response {
	return Response{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Err:     &Error{Code: code, Message: message},
	}
}

// normalizeID substitutes the JSON null for missing IDs so that error
// responses for unparseable requests still carry an id member.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}

// Error is the JSON-RPC error object. It doubles as a Go error so that
// function handlers can return typed application errors which the dispatch
// layer converts to the wire verbatim.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message)
}

// AppError builds an application-range error for handler returns. Codes
// outside -32099..-32000 are clamped to [CodeAppError].
func AppError(code int, format string, args ...any) *Error {
	if !IsApplicationCode(code) {
		code = CodeAppError
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidParams builds a -32602 error naming the offending parameter.
func InvalidParams(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}
