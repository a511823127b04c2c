// Package character defines player characters, their items, quests, and the
// fog-of-war coordinate set. The JSON shapes here are the save-file and wire
// contract shared with clients.
package character

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Equipment slot names.
const (
	SlotHead       = "head"
	SlotChest      = "chest"
	SlotLegs       = "legs"
	SlotFeet       = "feet"
	SlotHands      = "hands"
	SlotCloak      = "cloak"
	SlotAmulet     = "amulet"
	SlotRing       = "ring"
	SlotWeapon     = "weapon"
	SlotShield     = "shield"
	SlotConsumable = "consumable"
	SlotMisc       = "misc"
)

// Effect types.
const (
	EffectStatModifier = "stat_modifier"
	EffectHeal         = "heal"
	EffectFlagModifier = "flag_modifier"
	EffectArmorClass   = "armor_class"
)

// Quest status values.
const (
	QuestActive    = "active"
	QuestCompleted = "completed"
	QuestFailed    = "failed"
)

const (
	defaultStat  = 10
	defaultMaxHP = 100
)

// Stats are the four base attributes. Absent fields default to 10 on load.
type Stats struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Intelligence int `json:"intelligence"`
	Charisma     int `json:"charisma"`
}

// DefaultStats returns a fresh all-10 stat block.
func DefaultStats() Stats {
	return Stats{
		Strength:     defaultStat,
		Dexterity:    defaultStat,
		Intelligence: defaultStat,
		Charisma:     defaultStat,
	}
}

// UnmarshalJSON fills missing attributes with the default of 10 so old or
// hand-edited saves stay playable.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var raw struct {
		Strength     *int `json:"strength"`
		Dexterity    *int `json:"dexterity"`
		Intelligence *int `json:"intelligence"`
		Charisma     *int `json:"charisma"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("character: decode stats: %w", err)
	}
	pick := func(p *int) int {
		if p == nil {
			return defaultStat
		}
		return *p
	}
	s.Strength = pick(raw.Strength)
	s.Dexterity = pick(raw.Dexterity)
	s.Intelligence = pick(raw.Intelligence)
	s.Charisma = pick(raw.Charisma)
	return nil
}

// Effect is one rule attached to a trait or item. Value is left raw because
// heal effects carry either an integer or a dice expression string.
type Effect struct {
	Type   string          `json:"type"`
	Stat   string          `json:"stat,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Flag   string          `json:"flag,omitempty"`
	Action string          `json:"action,omitempty"`
	OnUse  bool            `json:"on_use,omitempty"`
}

// IntValue returns the effect value as an integer, if it is one.
func (e Effect) IntValue() (int, bool) {
	var n int
	if err := json.Unmarshal(e.Value, &n); err != nil {
		return 0, false
	}
	return n, true
}

// StringValue returns the effect value as a string, if it is one.
func (e Effect) StringValue() (string, bool) {
	var s string
	if err := json.Unmarshal(e.Value, &s); err != nil {
		return "", false
	}
	return s, true
}

// Item is a piece of equipment or a consumable.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Slot        string   `json:"slot"`
	Effects     []Effect `json:"effects"`
}

// Objective is one step of a quest.
type Objective struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Type      string `json:"type,omitempty"`
	// TargetPosition is set for travel objectives.
	TargetPosition *[2]int `json:"target_position,omitempty"`
}

// Quest tracks one storyline the character is pursuing.
type Quest struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	Objectives  []Objective `json:"objectives"`
}

// Character is the full persistent state of one player character.
type Character struct {
	Name            string          `json:"name"`
	Backstory       string          `json:"backstory"`
	Traits          []string        `json:"traits"`
	Stats           Stats           `json:"stats"`
	Equipment       map[string]Item `json:"equipment"`
	Inventory       []Item          `json:"inventory"`
	Position        [2]int          `json:"position"`
	Quests          []Quest         `json:"quests"`
	MaxHP           int             `json:"max_hp"`
	CurrentHP       int             `json:"current_hp"`
	ActiveFlags     []string        `json:"active_flags"`
	DiscoveredCells CoordSet        `json:"discovered_cells"`
	VisitedPOIs     []string        `json:"visited_pois"`
}

// New returns a character with default stats and full health.
func New(name, backstory string) *Character {
	return &Character{
		Name:            name,
		Backstory:       backstory,
		Traits:          []string{},
		Stats:           DefaultStats(),
		Equipment:       map[string]Item{},
		Inventory:       []Item{},
		Quests:          []Quest{},
		MaxHP:           defaultMaxHP,
		CurrentHP:       defaultMaxHP,
		ActiveFlags:     []string{},
		DiscoveredCells: CoordSet{},
		VisitedPOIs:     []string{},
	}
}

// UnmarshalJSON decodes a character, defaulting hit points for saves that
// predate the health fields.
func (c *Character) UnmarshalJSON(data []byte) error {
	type plain Character
	raw := struct {
		*plain
		MaxHP     *int `json:"max_hp"`
		CurrentHP *int `json:"current_hp"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("character: decode: %w", err)
	}
	c.MaxHP = defaultMaxHP
	if raw.MaxHP != nil {
		c.MaxHP = *raw.MaxHP
	}
	c.CurrentHP = c.MaxHP
	if raw.CurrentHP != nil {
		c.CurrentHP = *raw.CurrentHP
	}
	if c.Equipment == nil {
		c.Equipment = map[string]Item{}
	}
	if c.DiscoveredCells == nil {
		c.DiscoveredCells = CoordSet{}
	}
	return nil
}

// InventoryIndex returns the position of the first inventory item with the
// given id, or -1.
func (c *Character) InventoryIndex(itemID string) int {
	for i, it := range c.Inventory {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// RemoveInventoryAt removes and returns the inventory item at index i.
func (c *Character) RemoveInventoryAt(i int) Item {
	it := c.Inventory[i]
	c.Inventory = append(c.Inventory[:i], c.Inventory[i+1:]...)
	return it
}

// HasVisited reports whether the character has already entered the POI.
func (c *Character) HasVisited(poiID string) bool {
	for _, id := range c.VisitedPOIs {
		if id == poiID {
			return true
		}
	}
	return false
}

// CoordSet is a set of map cells. It serializes as a sorted array of [x, y]
// pairs so saves diff cleanly and load back into a set.
type CoordSet map[[2]int]struct{}

// Add inserts (x, y) into the set.
func (s CoordSet) Add(x, y int) {
	s[[2]int{x, y}] = struct{}{}
}

// Contains reports whether (x, y) is in the set.
func (s CoordSet) Contains(x, y int) bool {
	_, ok := s[[2]int{x, y}]
	return ok
}

// MarshalJSON encodes the set as a sorted list of [x, y] pairs.
func (s CoordSet) MarshalJSON() ([]byte, error) {
	cells := make([][2]int, 0, len(s))
	for c := range s {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i][0] != cells[j][0] {
			return cells[i][0] < cells[j][0]
		}
		return cells[i][1] < cells[j][1]
	})
	return json.Marshal(cells)
}

// UnmarshalJSON decodes a list of [x, y] pairs, dropping duplicates.
func (s *CoordSet) UnmarshalJSON(data []byte) error {
	var cells [][2]int
	if err := json.Unmarshal(data, &cells); err != nil {
		return fmt.Errorf("character: decode discovered cells: %w", err)
	}
	out := make(CoordSet, len(cells))
	for _, c := range cells {
		out[c] = struct{}{}
	}
	*s = out
	return nil
}
