package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Beykus-Y/mcp-agent/internal/agent"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm/mock"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

func newAgent(t *testing.T, cfg agent.Config) *agent.Agent {
	t.Helper()
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = "You are a test agent."
	}
	if cfg.Catalog == nil {
		cfg.Catalog = agent.NewCatalog(discardLogger())
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	a, err := agent.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func userMsg(text string) []types.Message {
	return []types.Message{{Role: "user", Content: text}}
}

func toolCallResp(calls ...types.ToolCall) *llm.CompletionResponse {
	return &llm.CompletionResponse{ToolCalls: calls}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	catalog := agent.NewCatalog(discardLogger())
	provider := &mock.Provider{}

	cases := []struct {
		name string
		cfg  agent.Config
	}{
		{"nil provider", agent.Config{SystemPrompt: "p", Catalog: catalog}},
		{"empty prompt", agent.Config{Provider: provider, Catalog: catalog}},
		{"nil catalog", agent.Config{Provider: provider, SystemPrompt: "p"}},
		{"local tool without handler", agent.Config{
			Provider: provider, SystemPrompt: "p", Catalog: catalog,
			LocalTools: []agent.LocalTool{{Def: types.ToolDefinition{Name: "x"}}},
		}},
		{"duplicate local tools", agent.Config{
			Provider: provider, SystemPrompt: "p", Catalog: catalog,
			LocalTools: []agent.LocalTool{
				{Def: types.ToolDefinition{Name: "x"}, Handler: func(context.Context, json.RawMessage) (string, error) { return "", nil }},
				{Def: types.ToolDefinition{Name: "x"}, Handler: func(context.Context, json.RawMessage) (string, error) { return "", nil }},
			},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := agent.New(tc.cfg); err == nil {
				t.Error("New succeeded, want error")
			}
		})
	}
}

func TestRun_FinalTextWithoutTools(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{Script: []*llm.CompletionResponse{{Content: "The answer is 42."}}}
	a := newAgent(t, agent.Config{Provider: provider})

	res, err := a.Run(context.Background(), userMsg("What is the answer?"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := res.Kind, agent.ResultText; got != want {
		t.Errorf("Kind = %v, want %v", got, want)
	}
	if got, want := res.Text, "The answer is 42."; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
	if got, want := res.Turns, 1; got != want {
		t.Errorf("Turns = %d, want %d", got, want)
	}
}

func TestRun_RemoteToolRoundTrip(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{name: "rpg", result: json.RawMessage(`{"x":4,"y":7}`)}
	catalog := agent.NewCatalog(discardLogger())
	catalog.AddMCP(caller, []types.ToolDefinition{def("get_player_status")})

	provider := &mock.Provider{Script: []*llm.CompletionResponse{
		toolCallResp(types.ToolCall{ID: "call_1", Name: "get_player_status", Arguments: `{"detail":true}`}),
		{Content: "You are fine."},
	}}
	a := newAgent(t, agent.Config{Provider: provider, Catalog: catalog})

	res, err := a.Run(context.Background(), userMsg("how am I doing?"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := res.Text, "You are fine."; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
	if got, want := res.Turns, 2; got != want {
		t.Errorf("Turns = %d, want %d", got, want)
	}

	calls := caller.recorded()
	if len(calls) != 1 {
		t.Fatalf("remote calls = %d, want 1", len(calls))
	}
	if got, want := calls[0].Method, "get_player_status"; got != want {
		t.Errorf("Method = %q, want %q", got, want)
	}
	if got, want := calls[0].Params, `{"detail":true}`; got != want {
		t.Errorf("Params = %s, want %s", got, want)
	}

	// Second turn must carry assistant tool_calls and the matching tool result.
	second := provider.CompleteCalls[1].Req.Messages
	var assistant, tool *types.Message
	for i := range second {
		switch second[i].Role {
		case "assistant":
			assistant = &second[i]
		case "tool":
			tool = &second[i]
		}
	}
	if assistant == nil || len(assistant.ToolCalls) != 1 {
		t.Fatal("assistant message with tool_calls missing from history")
	}
	if tool == nil {
		t.Fatal("tool result message missing from history")
	}
	if got, want := tool.ToolCallID, "call_1"; got != want {
		t.Errorf("ToolCallID = %q, want %q", got, want)
	}
	if got, want := tool.Content, `{"x":4,"y":7}`; got != want {
		t.Errorf("tool content = %s, want %s", got, want)
	}
}

func TestRun_EveryToolCallGetsAResult(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{name: "rpg", result: json.RawMessage(`"ok"`)}
	catalog := agent.NewCatalog(discardLogger())
	catalog.AddMCP(caller, []types.ToolDefinition{def("move_player")})

	provider := &mock.Provider{Script: []*llm.CompletionResponse{
		toolCallResp(
			types.ToolCall{ID: "call_1", Name: "move_player", Arguments: `{"dx":1}`},
			types.ToolCall{ID: "call_2", Name: "move_player", Arguments: `{"dy":1}`},
		),
		{Content: "moved twice"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, Catalog: catalog})

	if _, err := a.Run(context.Background(), userMsg("go northeast")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	second := provider.CompleteCalls[1].Req.Messages
	var ids []string
	for _, m := range second {
		if m.Role == "tool" {
			ids = append(ids, m.ToolCallID)
		}
	}
	if len(ids) != 2 || ids[0] != "call_1" || ids[1] != "call_2" {
		t.Errorf("tool result ids = %v, want [call_1 call_2]", ids)
	}
}

func TestRun_UnknownToolSynthesizesError(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{Script: []*llm.CompletionResponse{
		toolCallResp(types.ToolCall{ID: "call_1", Name: "summon_dragon", Arguments: `{}`}),
		{Content: "sorry"},
	}}
	a := newAgent(t, agent.Config{Provider: provider})

	if _, err := a.Run(context.Background(), userMsg("do it")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	second := provider.CompleteCalls[1].Req.Messages
	last := second[len(second)-1]
	if got, want := last.Role, "tool"; got != want {
		t.Fatalf("last role = %q, want %q", got, want)
	}
	if got, want := last.Content, `{"error":"tool not available to this agent"}`; got != want {
		t.Errorf("tool content = %s, want %s", got, want)
	}
}

func TestRun_MalformedArgumentsContinue(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{name: "rpg", result: json.RawMessage(`"ok"`)}
	catalog := agent.NewCatalog(discardLogger())
	catalog.AddMCP(caller, []types.ToolDefinition{def("move_player")})

	provider := &mock.Provider{Script: []*llm.CompletionResponse{
		toolCallResp(
			types.ToolCall{ID: "call_1", Name: "move_player", Arguments: `{broken`},
			types.ToolCall{ID: "call_2", Name: "move_player", Arguments: `{"dx":1}`},
		),
		{Content: "recovered"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, Catalog: catalog})

	res, err := a.Run(context.Background(), userMsg("move"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := res.Text, "recovered"; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}

	// The malformed call produced an error result; the valid one dispatched.
	second := provider.CompleteCalls[1].Req.Messages
	var toolContents []string
	for _, m := range second {
		if m.Role == "tool" {
			toolContents = append(toolContents, m.Content)
		}
	}
	if len(toolContents) != 2 {
		t.Fatalf("tool results = %d, want 2", len(toolContents))
	}
	if !strings.Contains(toolContents[0], "invalid JSON") {
		t.Errorf("first tool result %q does not describe the parse failure", toolContents[0])
	}
	if calls := caller.recorded(); len(calls) != 1 {
		t.Errorf("remote calls = %d, want 1", len(calls))
	}
}

func TestRun_RemoteErrorBecomesToolResult(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{name: "files", err: errors.New("mcp files: read_file: code -32001: denied")}
	catalog := agent.NewCatalog(discardLogger())
	catalog.AddMCP(caller, []types.ToolDefinition{def("read_file")})

	provider := &mock.Provider{Script: []*llm.CompletionResponse{
		toolCallResp(types.ToolCall{ID: "call_1", Name: "read_file", Arguments: `{"path":"../x"}`}),
		{Content: "the file is protected"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, Catalog: catalog})

	res, err := a.Run(context.Background(), userMsg("read it"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := res.Text, "the file is protected"; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}

	second := provider.CompleteCalls[1].Req.Messages
	last := second[len(second)-1]
	if !strings.Contains(last.Content, "-32001") {
		t.Errorf("tool result %q does not carry the structured error", last.Content)
	}
}

func TestRun_BudgetExhaustionReturnsFallback(t *testing.T) {
	t.Parallel()

	// An empty script makes the mock return empty responses forever.
	provider := &mock.Provider{}
	a := newAgent(t, agent.Config{Provider: provider, MaxTurns: 3})

	res, err := a.Run(context.Background(), userMsg("loop forever"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := res.Kind, agent.ResultFallback; got != want {
		t.Errorf("Kind = %v, want %v", got, want)
	}
	if got, want := res.Text, agent.FallbackText; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
	if got, want := len(provider.CompleteCalls), 3; got != want {
		t.Errorf("llm calls = %d, want %d", got, want)
	}
}

func TestRun_LocalGUIResultShortCircuits(t *testing.T) {
	t.Parallel()

	envelope := `{"gui_tool":"display_text","params":{"text":"hello"}}`
	local := agent.LocalTool{
		Def: types.ToolDefinition{Name: "show_text", Description: "Displays text."},
		Handler: func(context.Context, json.RawMessage) (string, error) {
			return envelope, nil
		},
	}
	provider := &mock.Provider{Script: []*llm.CompletionResponse{
		toolCallResp(types.ToolCall{ID: "call_1", Name: "show_text", Arguments: `{}`}),
		{Content: "never reached"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, LocalTools: []agent.LocalTool{local}})

	res, err := a.Run(context.Background(), userMsg("show me"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := res.Kind, agent.ResultGUICommand; got != want {
		t.Fatalf("Kind = %v, want %v", got, want)
	}
	if got, want := string(res.GUI), envelope; got != want {
		t.Errorf("GUI = %s, want %s", got, want)
	}
	if got, want := len(provider.CompleteCalls), 1; got != want {
		t.Errorf("llm calls = %d, want %d (no call after short-circuit)", got, want)
	}
}

func TestRun_RemoteGUIResultDoesNotShortCircuit(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{name: "rpg", result: json.RawMessage(`{"gui_tool":"display_text","params":{"text":"x"}}`)}
	catalog := agent.NewCatalog(discardLogger())
	catalog.AddMCP(caller, []types.ToolDefinition{def("render")})

	provider := &mock.Provider{Script: []*llm.CompletionResponse{
		toolCallResp(types.ToolCall{ID: "call_1", Name: "render", Arguments: `{}`}),
		{Content: "done"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, Catalog: catalog})

	res, err := a.Run(context.Background(), userMsg("render"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := res.Kind, agent.ResultText; got != want {
		t.Errorf("Kind = %v, want %v (gui short-circuit is local-only)", got, want)
	}
	if got, want := len(provider.CompleteCalls), 2; got != want {
		t.Errorf("llm calls = %d, want %d", got, want)
	}
}

func TestRun_AllowListShapesVisibleTools(t *testing.T) {
	t.Parallel()

	catalog := agent.NewCatalog(discardLogger())
	catalog.AddMCP(&fakeCaller{name: "files"}, []types.ToolDefinition{def("read_file")})
	catalog.AddMCP(&fakeCaller{name: "rpg"}, []types.ToolDefinition{def("get_player_location")})

	provider := &mock.Provider{Script: []*llm.CompletionResponse{{Content: "hi"}}}
	a := newAgent(t, agent.Config{Provider: provider, Catalog: catalog, AllowMCPs: []string{"rpg"}})

	if _, err := a.Run(context.Background(), userMsg("hello")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tools := provider.CompleteCalls[0].Req.Tools
	if len(tools) != 1 {
		t.Fatalf("visible tools = %d, want 1", len(tools))
	}
	if got, want := tools[0].Name, "get_player_location"; got != want {
		t.Errorf("tools[0].Name = %q, want %q", got, want)
	}
}

func TestRun_LLMErrorPropagates(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{Err: errors.New("backend down")}
	a := newAgent(t, agent.Config{Provider: provider})

	_, err := a.Run(context.Background(), userMsg("hi"))
	if err == nil || !strings.Contains(err.Error(), "backend down") {
		t.Errorf("Run = %v, want wrapped backend error", err)
	}
}

func TestRun_NotifierReceivesActions(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{name: "rpg", result: json.RawMessage(`"ok"`)}
	catalog := agent.NewCatalog(discardLogger())
	catalog.AddMCP(caller, []types.ToolDefinition{def("move_player")})

	var started []string
	notifier := notifierFunc(func(tool, detail string) {
		started = append(started, tool+" "+detail)
	})

	provider := &mock.Provider{Script: []*llm.CompletionResponse{
		toolCallResp(types.ToolCall{ID: "call_1", Name: "move_player", Arguments: `{"dx":1,"dy":0}`}),
		{Content: "done"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, Catalog: catalog, Notifier: notifier})

	if _, err := a.Run(context.Background(), userMsg("move east")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(started) != 1 || !strings.HasPrefix(started[0], "move_player ") {
		t.Errorf("notifier events = %v, want one move_player event", started)
	}
}

// notifierFunc adapts a function to the Notifier interface.
type notifierFunc func(tool, detail string)

func (f notifierFunc) ActionStarted(tool, detail string) { f(tool, detail) }
