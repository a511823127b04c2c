package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// ShowImageToolName is the orchestrator's local tool for rendering an image
// in the chat window.
const ShowImageToolName = "show_image_in_chat"

// NewShowImageTool builds the show_image_in_chat local tool.
//
// The handler performs no I/O: it wraps the URL and caption in a
// gui_tool:"display_image" envelope. The envelope ends the run and the chat
// surface renders it client-side, so the image bytes never pass through the
// agent or its logs.
func NewShowImageTool() LocalTool {
	def := types.ToolDefinition{
		Name: ShowImageToolName,
		Description: "Show an image to the user directly in the chat window. " +
			"Use it when the user asks to see something, or when a picture " +
			"would help. Always pass a direct image URL.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"image_url": map[string]any{
					"type":        "string",
					"description": "Direct URL of the image (for example ending in .jpg, .png or .webp).",
				},
				"caption": map[string]any{
					"type":        "string",
					"description": "Short description of what the image shows.",
				},
			},
			"required": []any{"image_url", "caption"},
		},
	}

	handler := func(_ context.Context, args json.RawMessage) (string, error) {
		var p struct {
			ImageURL string `json:"image_url"`
			Caption  string `json:"caption"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return "", fmt.Errorf("agent: show image args: %w", err)
		}
		if p.ImageURL == "" {
			return "", errors.New("agent: image_url must not be empty")
		}

		envelope, err := json.Marshal(map[string]any{
			"gui_tool": "display_image",
			"params":   map[string]string{"url": p.ImageURL, "caption": p.Caption},
		})
		if err != nil {
			return "", fmt.Errorf("agent: encode image envelope: %w", err)
		}
		return string(envelope), nil
	}

	return LocalTool{Def: def, Handler: handler}
}
