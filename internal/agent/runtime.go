package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// defaultMaxTurns bounds the tool-calling loop of a single run.
const defaultMaxTurns = 10

// Config holds all dependencies needed to create an [Agent].
//
// Required fields are Provider, SystemPrompt, and Catalog. AllowMCPs nil
// means every catalog MCP is visible; an empty non-nil slice hides them all.
type Config struct {
	// Provider is the LLM backend. Must not be nil.
	Provider llm.Provider

	// SystemPrompt is prepended to every completion. Must not be empty.
	SystemPrompt string

	// Catalog is the shared remote-function registry. Must not be nil
	// (use an empty catalog for an agent with local tools only).
	Catalog *Catalog

	// AllowMCPs restricts which catalog MCPs this agent sees.
	AllowMCPs []string

	// LocalTools are executed in-process. Local names shadow remote ones.
	LocalTools []LocalTool

	// MaxTurns caps LLM calls per run. Defaults to 10.
	MaxTurns int

	// Notifier receives progress callbacks. Optional.
	Notifier Notifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Agent runs the tool-calling loop. Concurrent [Agent.Run] calls on the same
// instance are serialised to keep the notifier and log streams coherent;
// create one Agent per concurrent conversation.
type Agent struct {
	provider   llm.Provider
	prompt     string
	catalog    *Catalog
	allow      []string
	locals     map[string]LocalTool
	localOrder []string
	maxTurns   int
	notify     Notifier
	log        *slog.Logger

	mu sync.Mutex
}

// New creates an [Agent] from the given configuration.
//
// Errors are prefixed with "agent: ".
func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, errors.New("agent: Provider must not be nil")
	}
	if cfg.SystemPrompt == "" {
		return nil, errors.New("agent: SystemPrompt must not be empty")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("agent: Catalog must not be nil")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	a := &Agent{
		provider: cfg.Provider,
		prompt:   cfg.SystemPrompt,
		catalog:  cfg.Catalog,
		allow:    cfg.AllowMCPs,
		locals:   make(map[string]LocalTool, len(cfg.LocalTools)),
		maxTurns: cfg.MaxTurns,
		notify:   cfg.Notifier,
		log:      cfg.Logger,
	}
	for _, lt := range cfg.LocalTools {
		if lt.Def.Name == "" {
			return nil, errors.New("agent: local tool with empty name")
		}
		if lt.Handler == nil {
			return nil, fmt.Errorf("agent: local tool %q has nil handler", lt.Def.Name)
		}
		if _, dup := a.locals[lt.Def.Name]; dup {
			return nil, fmt.Errorf("agent: duplicate local tool %q", lt.Def.Name)
		}
		if _, shadowed := cfg.Catalog.Resolve(lt.Def.Name, cfg.AllowMCPs); shadowed {
			cfg.Logger.Warn("local tool shadows remote function", "tool", lt.Def.Name)
		}
		a.locals[lt.Def.Name] = lt
		a.localOrder = append(a.localOrder, lt.Def.Name)
	}
	return a, nil
}

// Run executes the tool-calling loop over the given conversation history and
// returns the final [Result].
//
// The loop, per turn:
//  1. Call the LLM with the system prompt, conversation, and visible tools.
//  2. No tool calls and non-empty content → final textual answer.
//  3. Otherwise append the assistant message and execute each tool call in
//     order, appending each result as a role=tool message with the matching
//     tool_call_id. A local-tool result that is a JSON object with a
//     top-level "gui_tool" key ends the run immediately with that object.
//  4. After MaxTurns turns without a final answer, return [FallbackText].
//
// Run respects context cancellation between LLM and tool calls.
func (a *Agent) Run(ctx context.Context, history []types.Message) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("agent: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("agent: %w", err)
	}

	msgs := make([]types.Message, len(history), len(history)+8)
	copy(msgs, history)
	tools := a.visibleTools()

	for turn := 1; turn <= a.maxTurns; turn++ {
		resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: a.prompt,
			Messages:     msgs,
			Tools:        tools,
		})
		if err != nil {
			return Result{}, fmt.Errorf("agent: llm call (turn %d): %w", turn, err)
		}

		if len(resp.ToolCalls) == 0 {
			if strings.TrimSpace(resp.Content) != "" {
				return Result{Kind: ResultText, Text: resp.Content, Turns: turn}, nil
			}
			// Neither text nor tool calls: burn the turn and retry.
			a.log.Warn("llm returned empty response", "turn", turn)
			continue
		}

		msgs = append(msgs, types.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			result, isLocal := a.execute(ctx, tc)
			if isLocal {
				if gui := guiCommand(result); gui != nil {
					a.log.Info("gui command short-circuit", "tool", tc.Name, "turn", turn)
					return Result{Kind: ResultGUICommand, Text: result, GUI: gui, Turns: turn}, nil
				}
			}
			msgs = append(msgs, types.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	a.log.Warn("turn budget exhausted", "max_turns", a.maxTurns)
	return Result{Kind: ResultFallback, Text: FallbackText, Turns: a.maxTurns}, nil
}

// visibleTools builds the tool list offered to the LLM: local tools first,
// then the catalog functions this agent's allow-list admits.
func (a *Agent) visibleTools() []types.ToolDefinition {
	out := make([]types.ToolDefinition, 0, len(a.localOrder))
	for _, name := range a.localOrder {
		out = append(out, a.locals[name].Def)
	}
	return append(out, a.catalog.Definitions(a.allow)...)
}

// execute dispatches one tool call and returns the tool result string plus
// whether a local tool handled it. Failures never abort the run; they are
// folded into the result so the LLM can react.
func (a *Agent) execute(ctx context.Context, tc types.ToolCall) (string, bool) {
	args := strings.TrimSpace(tc.Arguments)
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		a.log.Warn("malformed tool arguments", "tool", tc.Name)
		return errorResult(fmt.Sprintf("invalid JSON in tool arguments for %s", tc.Name)), false
	}
	rawArgs := json.RawMessage(args)

	detail := SanitizeJSON(rawArgs)
	if a.notify != nil {
		a.notify.ActionStarted(tc.Name, detail)
	}

	if lt, ok := a.locals[tc.Name]; ok {
		a.log.Info("local tool call", "tool", tc.Name, "args", detail)
		out, err := lt.Handler(ctx, rawArgs)
		if err != nil {
			a.log.Error("local tool failed", "tool", tc.Name, "err", err)
			return errorResult(err.Error()), true
		}
		a.log.Info("local tool result", "tool", tc.Name, "result", SanitizeText(out))
		return out, true
	}

	caller, ok := a.catalog.Resolve(tc.Name, a.allow)
	if !ok {
		a.log.Warn("tool not in catalog", "tool", tc.Name)
		return errorResult("tool not available to this agent"), false
	}

	a.log.Info("remote tool call", "mcp", caller.Name(), "tool", tc.Name, "args", detail)
	raw, err := caller.Call(ctx, tc.Name, rawArgs)
	if err != nil {
		a.log.Error("remote tool failed", "mcp", caller.Name(), "tool", tc.Name, "err", err)
		return errorResult(err.Error()), false
	}
	result := string(raw)
	a.log.Info("remote tool result", "mcp", caller.Name(), "tool", tc.Name, "result", SanitizeText(result))
	return result, false
}

// errorResult encodes an error note as a JSON tool result.
func errorResult(msg string) string {
	b, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(b)
}

// guiCommand returns the raw envelope if result is a JSON object with a
// top-level "gui_tool" key, nil otherwise.
func guiCommand(result string) json.RawMessage {
	trimmed := strings.TrimSpace(result)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil
	}
	if _, ok := obj["gui_tool"]; !ok {
		return nil
	}
	return json.RawMessage(trimmed)
}
