// Package types defines the shared types used across all mcp-agent packages.
//
// These types form the lingua franca between the LLM providers, the agent
// runtime, and the MCP fabric. They are intentionally minimal — each package
// defines its own domain types, but cross-cutting data structures live here
// to avoid circular imports.
package types

// Message is a single entry in a chat conversation.
//
// The agent runtime builds conversations out of these and providers convert
// them into their wire-specific shapes. Role is one of "system", "user",
// "assistant" or "tool".
type Message struct {
	// Role identifies the author of the message.
	Role string `json:"role"`

	// Content is the textual body. May be empty for assistant messages that
	// carry only tool calls.
	Content string `json:"content"`

	// Name optionally identifies the speaker (user display name) or, for
	// role "tool", the name of the tool that produced the result.
	Name string `json:"name,omitempty"`

	// ToolCalls holds the tool invocations requested by an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a role "tool" message back to the assistant tool call
	// it answers. Every tool message must reference a preceding assistant
	// message's ToolCalls[].ID.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a single tool invocation requested by the LLM.
type ToolCall struct {
	// ID is the provider-assigned identifier echoed back in the matching
	// tool-result message.
	ID string `json:"id"`

	// Name is the tool to invoke.
	Name string `json:"name"`

	// Arguments is the raw JSON-encoded argument object as produced by the
	// model. It is not guaranteed to be valid JSON; dispatchers must handle
	// parse failures.
	Arguments string `json:"arguments"`
}

// ToolDefinition is the LLM-facing schema of one callable function.
//
// The same shape serves as the MCP fabric's function schema: an MCP's
// GET /functions endpoint returns an array of these, and the agent passes
// them through to the model unchanged.
type ToolDefinition struct {
	// Name is the globally unique function name.
	Name string `json:"name"`

	// Description tells the model what the function does and when to use it.
	Description string `json:"description"`

	// Parameters is a JSON-Schema-like object describing the argument shape.
	Parameters map[string]any `json:"parameters"`
}

// ModelCapabilities describes what a concrete LLM can do. Providers report
// this so callers can decide whether tool calling is available and how much
// context fits.
type ModelCapabilities struct {
	// SupportsToolCalling reports whether the model accepts a tools list.
	SupportsToolCalling bool

	// ContextWindow is the maximum prompt size in tokens.
	ContextWindow int

	// MaxOutputTokens is the maximum completion size in tokens.
	MaxOutputTokens int
}
