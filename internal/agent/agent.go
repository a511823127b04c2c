// Package agent implements the tool-calling runtime shared by the
// orchestrator and its delegated specialists.
//
// The two primary abstractions are:
//
//   - [Agent] — one runtime instance: an LLM backend, a system prompt, a set
//     of local tools, and a view onto the shared remote-function [Catalog]
//     restricted by an allow-list. Orchestrator and sub-agents differ only in
//     those inputs; the loop is identical.
//   - [Catalog] — the registry of remote MCP functions discovered at startup,
//     mapping each function name to the handle that serves it.
//
// This package lives under internal/ because it encapsulates
// application-private orchestration logic and is not intended to be imported
// by external code.
package agent

import (
	"context"
	"encoding/json"

	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// FallbackText is returned when a run exhausts its turn budget without
// producing a final answer.
const FallbackText = "I could not complete the task within the allowed number of steps. Please try rephrasing it or breaking it into smaller parts."

// LocalTool is a tool executed in-process by the agent that owns it.
type LocalTool struct {
	// Def is the schema advertised to the LLM.
	Def types.ToolDefinition

	// Handler executes the tool. args is the validated JSON arguments
	// object. The returned string becomes the tool result; if it is a JSON
	// object with a top-level "gui_tool" key the run terminates with it as
	// the final structured answer.
	Handler func(ctx context.Context, args json.RawMessage) (string, error)
}

// RemoteCaller is the slice of the MCP client the runtime dispatches through.
// *client.Handle satisfies it.
type RemoteCaller interface {
	// Name returns the MCP's registry key.
	Name() string

	// Call invokes a function on the MCP and returns the raw JSON result.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Notifier receives progress callbacks during a run. Callbacks are invoked
// synchronously on the run goroutine, so implementations must be fast.
// A nil Notifier disables notifications.
type Notifier interface {
	// ActionStarted fires immediately before a tool executes. detail is a
	// log-sanitized rendering of the tool arguments.
	ActionStarted(tool string, detail string)
}

// ResultKind discriminates how a run terminated.
type ResultKind int

const (
	// ResultText is a plain textual answer from the LLM.
	ResultText ResultKind = iota

	// ResultGUICommand is a structured answer: a local tool returned a JSON
	// object with a top-level "gui_tool" key and the run short-circuited.
	ResultGUICommand

	// ResultFallback means the turn budget ran out; Text holds
	// [FallbackText].
	ResultFallback
)

func (k ResultKind) String() string {
	switch k {
	case ResultText:
		return "text"
	case ResultGUICommand:
		return "gui_command"
	case ResultFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Result is the outcome of one [Agent.Run] call.
type Result struct {
	// Kind says how the run terminated.
	Kind ResultKind

	// Text is the textual answer (or fallback text). For ResultGUICommand
	// it holds the raw tool result string, useful for logging.
	Text string

	// GUI is the gui_tool envelope when Kind is ResultGUICommand, nil
	// otherwise.
	GUI json.RawMessage

	// Turns is how many LLM calls the run consumed.
	Turns int
}
