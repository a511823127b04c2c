// Package world defines the persistent world model the game server owns: the
// biome grid, factions, points of interest, and the static biome table that
// is authoritative for movement validation.
//
// All JSON field names here are the wire and disk contract shared with
// clients and save files; changing them breaks both.
package world

// POI type values.
const (
	POICapital       = "capital"
	POITown          = "town"
	POIRuin          = "ruin"
	POIDungeon       = "dungeon"
	POINaturalWonder = "natural_wonder"
)

// NPC is a named inhabitant of a point of interest.
type NPC struct {
	Name       string `json:"name"`
	Profession string `json:"profession"`
}

// POI is a point of interest on the map. Description starts empty and is
// generated lazily the first time any player enters, then persisted.
type POI struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Type                 string `json:"type"`
	Position             [2]int `json:"position"`
	Description          string `json:"description"`
	ControllingFactionID string `json:"controlling_faction_id"`
	NPCs                 []NPC  `json:"npcs"`
}

// Faction is a political power in the world. Relations maps other faction
// IDs to a signed standing value; 0 is neutral.
type Faction struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Relations   map[string]int `json:"relations"`
}

// State is everything the game server knows about one world. It is uniquely
// owned by the server process and serialised to disk on shutdown and after
// first-time POI description generation.
type State struct {
	WorldName  string `json:"world_name"`
	Seed       int64  `json:"seed"`
	MapSize    [2]int `json:"map_size"` // (width, height)
	Year       int    `json:"year"`
	TechLevel  string `json:"tech_level"`
	MagicLevel string `json:"magic_level"`

	// Weather is the current world-wide weather, advanced by the simulation
	// tick. Empty means clear.
	Weather string `json:"weather,omitempty"`

	// BiomeMap is indexed [y][x]; each cell names an entry in [Biomes].
	BiomeMap [][]string `json:"biome_map"`

	PointsOfInterest []POI     `json:"points_of_interest"`
	Factions         []Faction `json:"factions"`
	HistoryLog       []string  `json:"history_log"`
}

// Width returns the map width in cells.
func (s *State) Width() int { return s.MapSize[0] }

// Height returns the map height in cells.
func (s *State) Height() int { return s.MapSize[1] }

// InBounds reports whether (x, y) lies on the map.
func (s *State) InBounds(x, y int) bool {
	return x >= 0 && x < s.MapSize[0] && y >= 0 && y < s.MapSize[1]
}

// BiomeAt returns the biome name at (x, y). Out-of-bounds cells return the
// empty string, which the biome table treats as impassable.
func (s *State) BiomeAt(x, y int) string {
	if !s.InBounds(x, y) {
		return ""
	}
	return s.BiomeMap[y][x]
}

// Passable reports whether (x, y) is on the map and on a passable biome.
func (s *State) Passable(x, y int) bool {
	return s.InBounds(x, y) && Biomes.Passable(s.BiomeMap[y][x])
}

// POIByID returns the point of interest with the given id.
func (s *State) POIByID(id string) (*POI, bool) {
	for i := range s.PointsOfInterest {
		if s.PointsOfInterest[i].ID == id {
			return &s.PointsOfInterest[i], true
		}
	}
	return nil, false
}

// POIAt returns the point of interest at (x, y), if any.
func (s *State) POIAt(x, y int) (*POI, bool) {
	for i := range s.PointsOfInterest {
		p := &s.PointsOfInterest[i]
		if p.Position[0] == x && p.Position[1] == y {
			return p, true
		}
	}
	return nil, false
}

// Capital returns the first capital POI, if any.
func (s *State) Capital() (*POI, bool) {
	for i := range s.PointsOfInterest {
		if s.PointsOfInterest[i].Type == POICapital {
			return &s.PointsOfInterest[i], true
		}
	}
	return nil, false
}
