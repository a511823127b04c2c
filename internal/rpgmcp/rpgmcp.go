// Package rpgmcp implements the RPG MCP: the bridge between the agent fabric
// and the game server. It logs into the game as a configured character, keeps
// a replica of the broadcast world state, and publishes game actions and
// queries as MCP functions.
package rpgmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Beykus-Y/mcp-agent/internal/game/catalog"
	gameclient "github.com/Beykus-Y/mcp-agent/internal/game/client"
	"github.com/Beykus-Y/mcp-agent/internal/game/rules"
	"github.com/Beykus-Y/mcp-agent/internal/mcp"
	"github.com/Beykus-Y/mcp-agent/internal/mcp/server"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// moveTimeout bounds the wait for the server's reply to a move command.
const moveTimeout = 10 * time.Second

// Service is one RPG MCP instance bound to a live game session.
type Service struct {
	client  *gameclient.Client
	journal *Journal
	traits  catalog.TraitIndex
	rng     *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithTraits sets the trait catalog used for stat resolution. Unknown trait
// ids on the character are ignored either way.
func WithTraits(traits catalog.TraitIndex) Option {
	return func(s *Service) { s.traits = traits }
}

// WithRand sets the dice RNG. Defaults to a time-seeded generator.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

// New builds a Service over an already logged-in game client and an open
// journal.
func New(client *gameclient.Client, journal *Journal, opts ...Option) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("rpgmcp: game client must not be nil")
	}
	if journal == nil {
		return nil, fmt.Errorf("rpgmcp: journal must not be nil")
	}

	s := &Service{
		client:  client,
		journal: journal,
		rng: rand.New(rand.NewPCG(
			uint64(time.Now().UnixNano()), uint64(time.Now().UnixNano())>>7|1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var noParams = map[string]any{
	"type":       "object",
	"properties": map[string]any{},
}

// Functions returns the service's function table for the MCP skeleton.
func (s *Service) Functions() []server.Function {
	return []server.Function{
		{
			Schema: types.ToolDefinition{
				Name:        "get_player_status",
				Description: "Get the player's name, hit points, final stats, position, biome and active flags.",
				Parameters:  noParams,
			},
			Handler: s.playerStatus,
		},
		{
			Schema: types.ToolDefinition{
				Name:        "get_player_location",
				Description: "Describe where the player currently is on the map.",
				Parameters:  noParams,
			},
			Handler: s.playerLocation,
		},
		{
			Schema: types.ToolDefinition{
				Name:        "move_player",
				Description: "Move the player one step. dx and dy are each -1, 0 or 1.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"dx": map[string]any{"type": "integer", "minimum": -1, "maximum": 1},
						"dy": map[string]any{"type": "integer", "minimum": -1, "maximum": 1},
					},
					"required": []any{"dx", "dy"},
				},
			},
			Handler: s.movePlayer,
		},
		{
			Schema: types.ToolDefinition{
				Name:        "get_world_info",
				Description: "Get the world's name, year, technology and magic level, and faction summaries.",
				Parameters:  noParams,
			},
			Handler: s.worldInfo,
		},
		{
			Schema: types.ToolDefinition{
				Name:        "get_quest_journal",
				Description: "List the player's quests with per-objective completion marks.",
				Parameters:  noParams,
			},
			Handler: s.questJournal,
		},
		{
			Schema: types.ToolDefinition{
				Name:        "roll_dice",
				Description: "Roll dice. The expression is standard dice notation like '2d6+3'.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"expression": map[string]any{
							"type":        "string",
							"description": "Dice expression in NdM(+/-K) form.",
						},
					},
					"required": []any{"expression"},
				},
			},
			Handler: s.rollDice,
		},
		{
			Schema: types.ToolDefinition{
				Name:        "log_event",
				Description: "Record a campaign event in the persistent journal.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"kind":    map[string]any{"type": "string", "description": "Short event category, e.g. 'combat' or 'discovery'."},
						"details": map[string]any{"type": "string", "description": "What happened."},
					},
					"required": []any{"kind", "details"},
				},
			},
			Handler: s.logEvent,
		},
		{
			Schema: types.ToolDefinition{
				Name:        "get_recent_events",
				Description: "Read the most recent campaign journal entries, newest first.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": 100},
					},
				},
			},
			Handler: s.recentEvents,
		},
	}
}

func (s *Service) playerStatus(_ context.Context, _ json.RawMessage) (any, error) {
	self := s.client.Self()
	w := s.client.World()
	if self == nil || w == nil {
		return nil, mcp.AppError(mcp.CodeAppError, "no game state yet; the session may still be logging in")
	}

	return map[string]any{
		"name":         self.Name,
		"hp":           self.CurrentHP,
		"max_hp":       self.MaxHP,
		"stats":        rules.FinalStats(self, s.traits),
		"armor_class":  rules.ArmorClass(self),
		"position":     self.Position,
		"biome":        w.BiomeAt(self.Position[0], self.Position[1]),
		"active_flags": self.ActiveFlags,
	}, nil
}

func (s *Service) playerLocation(_ context.Context, _ json.RawMessage) (any, error) {
	self := s.client.Self()
	w := s.client.World()
	if self == nil || w == nil {
		return nil, mcp.AppError(mcp.CodeAppError, "no game state yet; the session may still be logging in")
	}

	x, y := self.Position[0], self.Position[1]
	text := fmt.Sprintf("You are at (%d,%d) in %s", x, y, w.BiomeAt(x, y))
	if poi, ok := w.POIAt(x, y); ok {
		text += fmt.Sprintf(", at %s", poi.Name)
	}
	return text, nil
}

func (s *Service) movePlayer(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		DX int `json:"dx"`
		DY int `json:"dy"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.InvalidParams("decode params: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, moveTimeout)
	defer cancel()
	if err := s.client.Move(ctx, p.DX, p.DY); err != nil {
		return nil, mcp.AppError(mcp.CodeAppError, "move failed: %v", err)
	}

	self := s.client.Self()
	w := s.client.World()
	return map[string]any{
		"position": self.Position,
		"biome":    w.BiomeAt(self.Position[0], self.Position[1]),
	}, nil
}

func (s *Service) worldInfo(_ context.Context, _ json.RawMessage) (any, error) {
	w := s.client.World()
	if w == nil {
		return nil, mcp.AppError(mcp.CodeAppError, "no game state yet; the session may still be logging in")
	}

	factions := make([]map[string]any, 0, len(w.Factions))
	for _, f := range w.Factions {
		factions = append(factions, map[string]any{
			"id":   f.ID,
			"name": f.Name,
			"type": f.Type,
		})
	}
	return map[string]any{
		"world_name":  w.WorldName,
		"year":        w.Year,
		"tech_level":  w.TechLevel,
		"magic_level": w.MagicLevel,
		"weather":     w.Weather,
		"factions":    factions,
	}, nil
}

func (s *Service) questJournal(_ context.Context, _ json.RawMessage) (any, error) {
	self := s.client.Self()
	if self == nil {
		return nil, mcp.AppError(mcp.CodeAppError, "no game state yet; the session may still be logging in")
	}
	if len(self.Quests) == 0 {
		return "The quest journal is empty.", nil
	}

	var b strings.Builder
	for _, q := range self.Quests {
		fmt.Fprintf(&b, "%s [%s]: %s\n", q.Name, q.Status, q.Description)
		for _, obj := range q.Objectives {
			mark := "[ ]"
			if obj.Completed {
				mark = "[x]"
			}
			fmt.Fprintf(&b, "  %s %s\n", mark, obj.Text)
		}
	}
	return b.String(), nil
}

func (s *Service) rollDice(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.InvalidParams("decode params: %v", err)
	}

	dice, err := rules.ParseDice(p.Expression)
	if err != nil {
		return nil, mcp.InvalidParams("%v", err)
	}
	total, rolls := dice.Roll(s.rng)
	return map[string]any{
		"expression": dice.String(),
		"rolls":      rolls,
		"total":      total,
	}, nil
}

func (s *Service) logEvent(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Kind    string `json:"kind"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.InvalidParams("decode params: %v", err)
	}

	id, err := s.journal.Log(ctx, p.Kind, p.Details)
	if err != nil {
		return nil, mcp.AppError(mcp.CodeAppError, "log_event: %v", err)
	}
	return map[string]any{"id": id}, nil
}

func (s *Service) recentEvents(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.InvalidParams("decode params: %v", err)
	}

	events, err := s.journal.Recent(ctx, p.Limit)
	if err != nil {
		return nil, mcp.AppError(mcp.CodeAppError, "get_recent_events: %v", err)
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}
