package agent_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Beykus-Y/mcp-agent/internal/agent"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm/mock"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// twoMCPCatalog builds a catalog with a files MCP and an rpg MCP.
func twoMCPCatalog(rpgResult string) (*agent.Catalog, *fakeCaller, *fakeCaller) {
	files := &fakeCaller{name: "files", result: json.RawMessage(`"file contents"`)}
	rpg := &fakeCaller{name: "rpg", result: json.RawMessage(rpgResult)}

	c := agent.NewCatalog(discardLogger())
	c.AddMCP(files, []types.ToolDefinition{def("read_file"), def("write_file")})
	c.AddMCP(rpg, []types.ToolDefinition{def("get_player_location"), def("move_player")})
	return c, files, rpg
}

func TestDelegateTool_SpecialistSeesOnlyRPGFunctions(t *testing.T) {
	t.Parallel()

	catalog, _, rpg := twoMCPCatalog(`"You are at (4,7) in grassland"`)

	specialistLLM := &mock.Provider{Script: []*llm.CompletionResponse{
		{ToolCalls: []types.ToolCall{{ID: "c1", Name: "get_player_location", Arguments: `{}`}}},
		{Content: "You are at (4,7) in grassland"},
	}}

	tool, err := agent.NewDelegateTool(agent.DelegateConfig{
		Provider: specialistLLM,
		Catalog:  catalog,
		MCPKey:   "rpg",
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewDelegateTool: %v", err)
	}

	out, err := tool.Handler(context.Background(), json.RawMessage(`{"task_description":"check location"}`))
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}

	want := `{"gui_tool":"display_text","params":{"text":"You are at (4,7) in grassland"}}`
	if out != want {
		t.Errorf("result = %s, want %s", out, want)
	}

	// The specialist's tool list must contain only RPG functions.
	tools := specialistLLM.CompleteCalls[0].Req.Tools
	for _, td := range tools {
		if td.Name == "read_file" || td.Name == "write_file" || td.Name == agent.DelegateToolName {
			t.Errorf("specialist saw tool %q outside the rpg allow-list", td.Name)
		}
	}
	if len(tools) != 2 {
		t.Errorf("specialist tools = %d, want 2", len(tools))
	}

	// And the remote call must have reached the rpg handle.
	if calls := rpg.recorded(); len(calls) != 1 || calls[0].Method != "get_player_location" {
		t.Errorf("rpg calls = %+v, want one get_player_location", calls)
	}
}

func TestDelegateTool_ValidatesTask(t *testing.T) {
	t.Parallel()

	catalog, _, _ := twoMCPCatalog(`"x"`)
	tool, err := agent.NewDelegateTool(agent.DelegateConfig{
		Provider: &mock.Provider{},
		Catalog:  catalog,
		MCPKey:   "rpg",
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewDelegateTool: %v", err)
	}

	if _, err := tool.Handler(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("Handler accepted empty task_description")
	}
}

func TestOrchestrator_DelegationEndsWithGUICommand(t *testing.T) {
	t.Parallel()

	catalog, _, _ := twoMCPCatalog(`"You are at (4,7) in grassland"`)

	// The specialist answers directly without tools.
	specialistLLM := &mock.Provider{Script: []*llm.CompletionResponse{
		{Content: "You are at (4,7) in grassland"},
	}}
	delegate, err := agent.NewDelegateTool(agent.DelegateConfig{
		Provider: specialistLLM,
		Catalog:  catalog,
		MCPKey:   "rpg",
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewDelegateTool: %v", err)
	}

	// The orchestrator sees the fabric minus the rpg MCP, forcing delegation.
	orchestratorLLM := &mock.Provider{Script: []*llm.CompletionResponse{
		{ToolCalls: []types.ToolCall{{
			ID:        "c1",
			Name:      agent.DelegateToolName,
			Arguments: `{"task_description":"check location"}`,
		}}},
	}}
	orchestrator := newAgent(t, agent.Config{
		Provider:     orchestratorLLM,
		SystemPrompt: agent.DefaultOrchestratorPrompt,
		Catalog:      catalog,
		AllowMCPs:    []string{"files"},
		LocalTools:   []agent.LocalTool{delegate},
	})

	res, err := orchestrator.Run(context.Background(), userMsg("go check where my character is"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got, want := res.Kind, agent.ResultGUICommand; got != want {
		t.Fatalf("Kind = %v, want %v", got, want)
	}
	want := `{"gui_tool":"display_text","params":{"text":"You are at (4,7) in grassland"}}`
	if got := string(res.GUI); got != want {
		t.Errorf("GUI = %s, want %s", got, want)
	}
	// The short-circuit must prevent any further orchestrator LLM call.
	if got, want := len(orchestratorLLM.CompleteCalls), 1; got != want {
		t.Errorf("orchestrator llm calls = %d, want %d", got, want)
	}
	// The orchestrator itself must not see rpg functions, only files + delegate.
	tools := orchestratorLLM.CompleteCalls[0].Req.Tools
	for _, td := range tools {
		if td.Name == "get_player_location" || td.Name == "move_player" {
			t.Errorf("orchestrator saw rpg tool %q despite allow-list", td.Name)
		}
	}
}
