// Package nomenclator names the things the world generator creates and
// writes flavor text for points of interest. Names and descriptions come
// from an LLM when one is configured; every call degrades to a deterministic
// seeded fallback, so world generation never depends on a network.
package nomenclator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/Beykus-Y/mcp-agent/internal/game/world"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// Generator produces names and descriptions.
type Generator struct {
	provider llm.Provider
	rng      *rand.Rand
	logger   *slog.Logger
}

// Option configures a [Generator].
type Option func(*Generator)

// WithProvider enables LLM-backed descriptions. Without it every call uses
// the fallback lists.
func WithProvider(p llm.Provider) Option {
	return func(g *Generator) { g.provider = p }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// New returns a generator whose fallback output is fully determined by seed.
func New(seed int64, opts ...Option) *Generator {
	g := &Generator{
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var worldPrefixes = []string{
	"Eld", "Vael", "Thar", "Myr", "Aur", "Kor", "Syl", "Dra", "Noth", "Iri",
}

var worldSuffixes = []string{
	"oria", "heim", "gard", "mora", "athis", "enia", "wyn", "dor", "mere", "and",
}

var poiNameParts = map[string][2][]string{
	world.POICapital: {
		{"High", "Gold", "Storm", "King's", "Sun"},
		{"keep", "spire", "hold", "crown", "reach"},
	},
	world.POITown: {
		{"Oak", "Mill", "Ash", "River", "Stone"},
		{"ford", "brook", "stead", "market", "haven"},
	},
	world.POIRuin: {
		{"Fallen", "Broken", "Old", "Sunken", "Silent"},
		{" Vault", " Court", " Gate", " Sanctum", " Walls"},
	},
	world.POIDungeon: {
		{"Black", "Deep", "Grim", "Howling", "Shattered"},
		{" Warrens", " Depths", " Barrow", " Pit", " Maw"},
	},
	world.POINaturalWonder: {
		{"Glimmer", "Thunder", "Ever", "Star", "Mist"},
		{"falls", " Crags", "wood", " Mirror", " Hollow"},
	},
}

var factionFirst = []string{
	"Kingdom", "Duchy", "League", "Covenant", "Circle", "Order", "Horde", "Republic",
}

var factionSecond = []string{
	"of the Silver Coast", "of Emberfall", "of the Nine Roads", "of the Deep Wood",
	"of the Broken Crown", "of the Last Dawn", "of the Iron Shore", "of the Pale Sun",
}

var poiFallbackLines = map[string]string{
	world.POICapital:       "The seat of power in this land. Banners line its walls and the roads here are never empty.",
	world.POITown:          "A modest settlement of traders and farmers. Travelers find a warm meal and colder rumors.",
	world.POIRuin:          "Crumbling stonework older than any living memory. Whatever happened here, the land has not forgotten.",
	world.POIDungeon:       "A dark descent into the earth. Those who return speak of it only reluctantly.",
	world.POINaturalWonder: "A place the maps mark but words fail. Pilgrims and scholars alike come to see it once.",
}

// WorldName produces a fallback world name.
func (g *Generator) WorldName() string {
	return worldPrefixes[g.rng.IntN(len(worldPrefixes))] +
		worldSuffixes[g.rng.IntN(len(worldSuffixes))]
}

// POIName produces a fallback name for a point of interest of the given type.
func (g *Generator) POIName(poiType string) string {
	parts, ok := poiNameParts[poiType]
	if !ok {
		return fmt.Sprintf("Landmark %d", g.rng.IntN(100)+1)
	}
	return parts[0][g.rng.IntN(len(parts[0]))] + parts[1][g.rng.IntN(len(parts[1]))]
}

// FactionName produces a fallback faction name.
func (g *Generator) FactionName() string {
	return factionFirst[g.rng.IntN(len(factionFirst))] + " " +
		factionSecond[g.rng.IntN(len(factionSecond))]
}

// POIDescription writes 2-4 sentences of flavor text for the POI. With a
// provider configured it makes one completion call; on any failure it falls
// back to a canned line so the caller always gets a usable description.
func (g *Generator) POIDescription(ctx context.Context, w *world.State, poi *world.POI) string {
	if g.provider != nil {
		desc, err := g.describeWithLLM(ctx, w, poi)
		if err == nil && desc != "" {
			return desc
		}
		g.logger.Warn("poi description generation failed, using fallback",
			"poi", poi.Name, "error", err)
	}
	return g.fallbackDescription(poi)
}

func (g *Generator) describeWithLLM(ctx context.Context, w *world.State, poi *world.POI) (string, error) {
	prompt := fmt.Sprintf(
		"Write a short (2-4 sentence) atmospheric description of a location in a fantasy world.\n\n"+
			"World: %s (year %d, %s technology, %s magic)\n"+
			"Location: %s, a %s\n\n"+
			"Return only the description text, no preamble and no formatting.",
		w.WorldName, w.Year, w.TechLevel, w.MagicLevel,
		poi.Name, strings.ReplaceAll(poi.Type, "_", " "))

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.9,
	})
	if err != nil {
		return "", fmt.Errorf("nomenclator: describe %s: %w", poi.Name, err)
	}
	return strings.TrimSpace(resp.Content), nil
}

func (g *Generator) fallbackDescription(poi *world.POI) string {
	line, ok := poiFallbackLines[poi.Type]
	if !ok {
		return fmt.Sprintf("The place known as %s keeps its secrets.", poi.Name)
	}
	return fmt.Sprintf("%s. %s", poi.Name, line)
}
