// Package llm defines the provider abstraction for chat-completion backends.
//
// The agent runtime depends on exactly one external capability: a
// chat-completions call with tool support. [Provider] captures that shape;
// concrete implementations live in the openai and anyllm subpackages, and a
// recording test double lives in mock.
package llm

import (
	"context"

	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// CompletionRequest is a single chat-completion invocation.
type CompletionRequest struct {
	// SystemPrompt, when non-empty, is sent as the leading system message.
	// It is kept out of Messages so callers can reuse one history with
	// different personas.
	SystemPrompt string

	// Messages is the conversation so far, oldest first.
	Messages []types.Message

	// Tools is the set of functions the model may call. Empty means plain
	// text completion. Tool choice is always "auto" — the model decides.
	Tools []types.ToolDefinition

	// Temperature overrides the model default when non-zero.
	Temperature float64

	// MaxTokens caps the completion length when positive.
	MaxTokens int
}

// CompletionResponse is the model's reply to one [CompletionRequest].
//
// Exactly one of Content / ToolCalls is usually populated, but some models
// return both; callers must check ToolCalls first.
type CompletionResponse struct {
	// Content is the assistant's textual reply, possibly empty.
	Content string

	// ToolCalls is the list of requested tool invocations, in call order.
	ToolCalls []types.ToolCall

	// Usage reports token accounting when the backend provides it.
	Usage Usage
}

// Usage is the token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is a chat-completion backend with tool-calling support.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Complete performs one blocking chat completion. The returned response
	// is never nil when the error is nil.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities reports what the configured model supports.
	Capabilities() types.ModelCapabilities
}
