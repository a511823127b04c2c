// Package sim advances the world between player actions: weather shifts and
// inhabitants travelling between settlements. Each tick runs under the game
// server's world lock and returns the history lines it produced.
package sim

import (
	"fmt"
	"math/rand/v2"

	"github.com/Beykus-Y/mcp-agent/internal/game/world"
)

// weatherTransitions is the Markov table for the world-wide weather. The next
// state is a uniform pick from the current state's row, so repeated entries
// weight the odds. The empty state is the pre-simulation default.
var weatherTransitions = map[string][]string{
	"":         {"clear", "clear", "overcast"},
	"clear":    {"clear", "clear", "clear", "overcast", "fog"},
	"overcast": {"clear", "overcast", "rain", "rain"},
	"rain":     {"overcast", "rain", "rain", "storm", "clear"},
	"storm":    {"rain", "overcast"},
	"fog":      {"clear", "clear", "overcast", "fog"},
}

var weatherLines = map[string]string{
	"clear":    "the skies clear over %s",
	"overcast": "grey clouds gather over %s",
	"rain":     "rain sweeps across %s",
	"storm":    "a storm breaks over %s",
	"fog":      "a thick fog settles on %s",
}

// Tick advances the simulation one step. The caller holds the world lock.
func Tick(s *world.State, rng *rand.Rand) []string {
	var lines []string
	if line := advanceWeather(s, rng); line != "" {
		lines = append(lines, line)
	}
	if line := driftNPC(s, rng); line != "" {
		lines = append(lines, line)
	}
	return lines
}

func advanceWeather(s *world.State, rng *rand.Rand) string {
	row, ok := weatherTransitions[s.Weather]
	if !ok {
		row = weatherTransitions[""]
	}
	next := row[rng.IntN(len(row))]
	if next == s.Weather {
		return ""
	}
	s.Weather = next
	return fmt.Sprintf("Year %d: %s.", s.Year, fmt.Sprintf(weatherLines[next], s.WorldName))
}

// driftNPC moves one random inhabitant to another settlement. Only capitals
// and towns house travellers; a world with fewer than two such places stays
// still.
func driftNPC(s *world.State, rng *rand.Rand) string {
	var settlements []*world.POI
	for i := range s.PointsOfInterest {
		p := &s.PointsOfInterest[i]
		if p.Type == world.POICapital || p.Type == world.POITown {
			settlements = append(settlements, p)
		}
	}
	if len(settlements) < 2 {
		return ""
	}

	var origins []*world.POI
	for _, p := range settlements {
		if len(p.NPCs) > 0 {
			origins = append(origins, p)
		}
	}
	if len(origins) == 0 {
		return ""
	}

	from := origins[rng.IntN(len(origins))]
	to := settlements[rng.IntN(len(settlements))]
	for to == from {
		to = settlements[rng.IntN(len(settlements))]
	}

	i := rng.IntN(len(from.NPCs))
	npc := from.NPCs[i]
	from.NPCs = append(from.NPCs[:i], from.NPCs[i+1:]...)
	to.NPCs = append(to.NPCs, npc)

	return fmt.Sprintf("Year %d: %s the %s travels from %s to %s.",
		s.Year, npc.Name, npc.Profession, from.Name, to.Name)
}
