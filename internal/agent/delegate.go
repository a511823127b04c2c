package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// DelegateToolName is the orchestrator's local tool for handing game-world
// tasks to the specialist agent.
const DelegateToolName = "execute_rpg_task"

// DelegateConfig holds the dependencies of the delegation tool.
type DelegateConfig struct {
	// Provider is the LLM backend the specialist runs on. Must not be nil.
	Provider llm.Provider

	// Catalog is the shared remote-function registry. Must not be nil.
	Catalog *Catalog

	// MCPKey is the registry key of the game MCP; the specialist's
	// allow-list contains only this key. Must not be empty.
	MCPKey string

	// SystemPrompt overrides [DefaultSpecialistPrompt] when non-empty.
	SystemPrompt string

	// MaxTurns caps the specialist's loop. Defaults to 10.
	MaxTurns int

	// Notifier receives the specialist's progress callbacks. Optional.
	Notifier Notifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewDelegateTool builds the execute_rpg_task local tool.
//
// Each invocation constructs a fresh specialist [Agent] whose allow-list
// contains only the game MCP and whose local-tool set is empty, so the
// specialist cannot delegate further. The specialist runs synchronously on
// the task description; its textual result is wrapped in a
// gui_tool:"display_text" envelope, which the calling agent recognizes as
// its own final answer.
func NewDelegateTool(cfg DelegateConfig) (LocalTool, error) {
	if cfg.Provider == nil {
		return LocalTool{}, errors.New("agent: delegate Provider must not be nil")
	}
	if cfg.Catalog == nil {
		return LocalTool{}, errors.New("agent: delegate Catalog must not be nil")
	}
	if cfg.MCPKey == "" {
		return LocalTool{}, errors.New("agent: delegate MCPKey must not be empty")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSpecialistPrompt
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	def := types.ToolDefinition{
		Name: DelegateToolName,
		Description: "Delegate a game-world task to the RPG specialist agent. " +
			"Use this for anything involving the player's character, position, " +
			"items, quests, the world map, or dice rolls.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_description": map[string]any{
					"type":        "string",
					"description": "What the specialist should do, in plain language.",
				},
			},
			"required": []any{"task_description"},
		},
	}

	handler := func(ctx context.Context, args json.RawMessage) (string, error) {
		var p struct {
			TaskDescription string `json:"task_description"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return "", fmt.Errorf("agent: delegate args: %w", err)
		}
		if p.TaskDescription == "" {
			return "", errors.New("agent: task_description must not be empty")
		}

		specialist, err := New(Config{
			Provider:     cfg.Provider,
			SystemPrompt: cfg.SystemPrompt,
			Catalog:      cfg.Catalog,
			AllowMCPs:    []string{cfg.MCPKey},
			MaxTurns:     cfg.MaxTurns,
			Notifier:     cfg.Notifier,
			Logger:       cfg.Logger.With("agent", "specialist"),
		})
		if err != nil {
			return "", err
		}

		cfg.Logger.Info("delegating task", "task", p.TaskDescription)
		res, err := specialist.Run(ctx, []types.Message{
			{Role: "user", Content: p.TaskDescription},
		})
		if err != nil {
			return "", fmt.Errorf("agent: specialist run: %w", err)
		}

		envelope, err := json.Marshal(map[string]any{
			"gui_tool": "display_text",
			"params":   map[string]string{"text": res.Text},
		})
		if err != nil {
			return "", fmt.Errorf("agent: encode display envelope: %w", err)
		}
		return string(envelope), nil
	}

	return LocalTool{Def: def, Handler: handler}, nil
}
