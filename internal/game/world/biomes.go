package world

// Biome describes one terrain kind. Color is the hex tint clients use when
// rendering the map; Passable decides whether movement onto the cell is
// allowed.
type Biome struct {
	Color    string `json:"color"`
	Passable bool   `json:"passable"`
}

// BiomeTable maps biome names to their definitions.
type BiomeTable map[string]Biome

// Biomes is the authoritative terrain table. Only water is impassable;
// unknown biome names are treated as impassable too.
var Biomes = BiomeTable{
	"deep_ocean":       {Color: "#00005c", Passable: false},
	"ocean":            {Color: "#003088", Passable: false},
	"beach":            {Color: "#d2b48c", Passable: true},
	"grassland":        {Color: "#567d46", Passable: true},
	"forest":           {Color: "#224d18", Passable: true},
	"jungle":           {Color: "#003820", Passable: true},
	"mountains":        {Color: "#6b6b6b", Passable: true},
	"snowy_peak":       {Color: "#f0f0f0", Passable: true},
	"desert":           {Color: "#c2b280", Passable: true},
	"temperate_desert": {Color: "#94846c", Passable: true},
	"scorched":         {Color: "#555555", Passable: true},
}

// Passable reports whether the named biome exists and allows movement.
func (t BiomeTable) Passable(name string) bool {
	b, ok := t[name]
	return ok && b.Passable
}
