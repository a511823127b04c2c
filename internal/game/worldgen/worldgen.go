// Package worldgen builds new worlds: terrain from fractal value noise,
// then factions, settlements, and a seeded history. Generation is a pure
// function of its config, so the same seed always yields the same world.
package worldgen

import (
	"fmt"
	"math/rand/v2"

	"github.com/Beykus-Y/mcp-agent/internal/game/nomenclator"
	"github.com/Beykus-Y/mcp-agent/internal/game/world"
)

// Config are the generation parameters.
type Config struct {
	// Name is the world's display name; empty means a generated one.
	Name string

	Seed   int64
	Width  int
	Height int

	Year       int
	TechLevel  string
	MagicLevel string

	// POICount is the total number of points of interest, capital included.
	POICount int

	FactionCount int
}

func (c *Config) applyDefaults() {
	if c.Width <= 0 {
		c.Width = 128
	}
	if c.Height <= 0 {
		c.Height = 128
	}
	if c.Year <= 0 {
		c.Year = 1000
	}
	if c.TechLevel == "" {
		c.TechLevel = "medieval"
	}
	if c.MagicLevel == "" {
		c.MagicLevel = "low"
	}
	if c.POICount <= 0 {
		c.POICount = 8
	}
	if c.FactionCount <= 0 {
		c.FactionCount = 3
	}
}

// capitalBiomes are preferred for the first settlement.
var capitalBiomes = map[string]bool{"grassland": true, "forest": true, "beach": true}

var npcNames = []string{
	"Mera", "Tobin", "Ysolde", "Garrick", "Pell", "Anra", "Dunstan", "Liss",
	"Orvan", "Catrin", "Halvar", "Ines", "Brann", "Sabel", "Rook", "Thessa",
}

var npcProfessions = []string{
	"blacksmith", "innkeeper", "herbalist", "merchant", "guard captain",
	"scribe", "fisher", "carpenter", "priest", "stablehand",
}

var poiTypes = []string{
	world.POITown, world.POIRuin, world.POIDungeon, world.POINaturalWonder,
}

// Generate builds a complete world from cfg, deterministic per seed.
func Generate(cfg Config) *world.State {
	cfg.applyDefaults()
	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)*0x9e3779b97f4a7c15+1))
	names := nomenclator.New(cfg.Seed)

	name := cfg.Name
	if name == "" {
		name = names.WorldName()
	}

	s := &world.State{
		WorldName:  name,
		Seed:       cfg.Seed,
		MapSize:    [2]int{cfg.Width, cfg.Height},
		Year:       cfg.Year,
		TechLevel:  cfg.TechLevel,
		MagicLevel: cfg.MagicLevel,
		BiomeMap:   generateBiomes(cfg.Width, cfg.Height, cfg.Seed),
		HistoryLog: []string{},
	}
	ensurePassable(s)

	generateFactions(s, cfg, rng, names)
	generatePOIs(s, cfg, rng, names)

	return s
}

// generateBiomes classifies every cell from two noise fields: a 3-octave
// elevation map and a 2-octave moisture map on a coarser scale.
func generateBiomes(width, height int, seed int64) [][]string {
	elevation := newNoise(uint64(seed))
	moisture := newNoise(uint64(seed) + 1)

	const (
		elevScale  = 0.02
		moistScale = 0.03
	)

	biomes := make([][]string, height)
	for y := range height {
		row := make([]string, width)
		for x := range width {
			fx, fy := float64(x), float64(y)
			e := elevation.at(fx*elevScale, fy*elevScale) +
				elevation.at(fx*elevScale*2, fy*elevScale*2)*0.5 +
				elevation.at(fx*elevScale*4, fy*elevScale*4)*0.25
			m := moisture.at(fx*moistScale, fy*moistScale) +
				moisture.at(fx*moistScale*2, fy*moistScale*2)*0.5

			row[x] = classify((e+1)/2, m)
		}
		biomes[y] = row
	}
	return biomes
}

// classify maps normalized elevation (0..1) and raw moisture (-1..1) to a
// biome name.
func classify(e, m float64) string {
	switch {
	case e < 0.20:
		return "deep_ocean"
	case e < 0.35:
		return "ocean"
	case e < 0.40:
		return "beach"
	case e > 0.80:
		if m < -0.2 {
			return "scorched"
		}
		return "snowy_peak"
	case e > 0.65:
		if m < -0.3 {
			return "temperate_desert"
		}
		return "mountains"
	case e > 0.45:
		switch {
		case m < -0.4:
			return "desert"
		case m < 0.4:
			return "forest"
		default:
			return "jungle"
		}
	default:
		if m < -0.5 {
			return "desert"
		}
		return "grassland"
	}
}

// ensurePassable carves a small grassland island in the map center when the
// noise produced an all-water world, so spawn placement can never fail.
func ensurePassable(s *world.State) {
	for y := range s.Height() {
		for x := range s.Width() {
			if world.Biomes.Passable(s.BiomeMap[y][x]) {
				return
			}
		}
	}

	cx, cy := s.Width()/2, s.Height()/2
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if s.InBounds(cx+dx, cy+dy) {
				s.BiomeMap[cy+dy][cx+dx] = "grassland"
			}
		}
	}
}

func generateFactions(s *world.State, cfg Config, rng *rand.Rand, names *nomenclator.Generator) {
	factionTypes := []string{"kingdom", "merchant_league", "nomad_horde", "ancient_order"}

	s.Factions = make([]world.Faction, cfg.FactionCount)
	for i := range cfg.FactionCount {
		f := world.Faction{
			ID:        fmt.Sprintf("faction_%d", i),
			Name:      names.FactionName(),
			Type:      factionTypes[i%len(factionTypes)],
			Relations: map[string]int{},
		}
		f.Description = fmt.Sprintf("A %s power of %s.",
			f.Type, s.WorldName)
		s.Factions[i] = f

		founded := cfg.Year - 400 - rng.IntN(201)
		s.HistoryLog = append(s.HistoryLog,
			fmt.Sprintf("Year %d: the civilization of %s arose.", founded, f.Name))
	}

	// Everyone starts neutral with everyone else.
	for i := range s.Factions {
		for j := range s.Factions {
			if i != j {
				s.Factions[i].Relations[s.Factions[j].ID] = 0
			}
		}
	}
}

func generatePOIs(s *world.State, cfg Config, rng *rand.Rand, names *nomenclator.Generator) {
	used := map[[2]int]bool{}

	place := func(preferred map[string]bool) ([2]int, bool) {
		for range 400 {
			x, y := rng.IntN(s.Width()), rng.IntN(s.Height())
			pos := [2]int{x, y}
			if used[pos] || !s.Passable(x, y) {
				continue
			}
			if preferred != nil && !preferred[s.BiomeAt(x, y)] {
				continue
			}
			used[pos] = true
			return pos, true
		}
		return [2]int{}, false
	}

	s.PointsOfInterest = make([]world.POI, 0, cfg.POICount)
	for i := range cfg.POICount {
		var (
			poiType   string
			preferred map[string]bool
		)
		if i == 0 {
			poiType = world.POICapital
			preferred = capitalBiomes
		} else {
			poiType = poiTypes[rng.IntN(len(poiTypes))]
		}

		pos, ok := place(preferred)
		if !ok {
			// Relax the biome preference before giving up on this POI.
			if pos, ok = place(nil); !ok {
				continue
			}
		}

		poi := world.POI{
			ID:       fmt.Sprintf("poi_%d", i),
			Name:     names.POIName(poiType),
			Type:     poiType,
			Position: pos,
			NPCs:     []world.NPC{},
		}
		if len(s.Factions) > 0 && (poiType == world.POICapital || poiType == world.POITown) {
			poi.ControllingFactionID = s.Factions[rng.IntN(len(s.Factions))].ID
			poi.NPCs = generateNPCs(rng, 2+rng.IntN(3))
		}
		if poiType == world.POICapital {
			poi.ControllingFactionID = s.Factions[0].ID
			founded := cfg.Year - 300 - rng.IntN(101)
			s.HistoryLog = append(s.HistoryLog,
				fmt.Sprintf("Year %d: %s founded their capital %s at (%d, %d).",
					founded, s.Factions[0].Name, poi.Name, pos[0], pos[1]))
		}
		s.PointsOfInterest = append(s.PointsOfInterest, poi)
	}

	if len(s.Factions) >= 2 {
		warYear := cfg.Year - 100 - rng.IntN(101)
		s.HistoryLog = append(s.HistoryLog,
			fmt.Sprintf("Year %d: a great war broke out between %s and %s.",
				warYear, s.Factions[0].Name, s.Factions[1].Name))
	}
}

func generateNPCs(rng *rand.Rand, count int) []world.NPC {
	npcs := make([]world.NPC, count)
	for i := range count {
		npcs[i] = world.NPC{
			Name:       npcNames[rng.IntN(len(npcNames))],
			Profession: npcProfessions[rng.IntN(len(npcProfessions))],
		}
	}
	return npcs
}
