// Package catalog loads the static game-data definitions the rules engine
// consults: character traits and their passive effects.
package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// TraitEffect is one passive modifier a trait grants.
type TraitEffect struct {
	Type  string `yaml:"type" json:"type"`
	Stat  string `yaml:"stat,omitempty" json:"stat,omitempty"`
	Value int    `yaml:"value" json:"value"`
}

// Trait is a character background quality selected at creation.
type Trait struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Effects     []TraitEffect `yaml:"effects" json:"effects"`
}

// TraitIndex maps trait IDs to their definitions.
type TraitIndex map[string]Trait

// traitFile is the top-level structure of a traits YAML file.
//
// Example:
//
//	traits:
//	  - id: strong_back
//	    name: "Strong Back"
//	    effects:
//	      - type: stat_modifier
//	        stat: strength
//	        value: 2
type traitFile struct {
	Traits []Trait `yaml:"traits"`
}

// LoadTraits reads and parses a traits YAML file from disk.
func LoadTraits(path string) (TraitIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open traits file %q: %w", path, err)
	}
	defer f.Close()

	idx, err := LoadTraitsFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse traits file %q: %w", path, err)
	}
	return idx, nil
}

// LoadTraitsFromReader parses traits YAML from an [io.Reader]. Duplicate
// trait IDs are rejected.
func LoadTraitsFromReader(r io.Reader) (TraitIndex, error) {
	var tf traitFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("catalog: decode traits yaml: %w", err)
	}

	idx := make(TraitIndex, len(tf.Traits))
	for _, tr := range tf.Traits {
		if tr.ID == "" {
			return nil, fmt.Errorf("catalog: trait %q has no id", tr.Name)
		}
		if _, dup := idx[tr.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate trait id %q", tr.ID)
		}
		idx[tr.ID] = tr
	}
	return idx, nil
}

// DefaultTraits returns the built-in trait set, used when no traits file is
// configured.
func DefaultTraits() TraitIndex {
	traits := []Trait{
		{
			ID: "strong_back", Name: "Strong Back",
			Description: "Years of hauling cargo left their mark.",
			Effects:     []TraitEffect{{Type: "stat_modifier", Stat: "strength", Value: 2}},
		},
		{
			ID: "quick_feet", Name: "Quick Feet",
			Description: "Fast enough to outrun most trouble.",
			Effects:     []TraitEffect{{Type: "stat_modifier", Stat: "dexterity", Value: 2}},
		},
		{
			ID: "bookworm", Name: "Bookworm",
			Description: "Raised among scrolls rather than swords.",
			Effects: []TraitEffect{
				{Type: "stat_modifier", Stat: "intelligence", Value: 2},
				{Type: "stat_modifier", Stat: "strength", Value: -1},
			},
		},
		{
			ID: "silver_tongue", Name: "Silver Tongue",
			Description: "Talks their way out of anything.",
			Effects:     []TraitEffect{{Type: "stat_modifier", Stat: "charisma", Value: 2}},
		},
		{
			ID: "frail", Name: "Frail",
			Description: "A sickly childhood never fully shaken off.",
			Effects:     []TraitEffect{{Type: "stat_modifier", Stat: "strength", Value: -2}},
		},
	}

	idx := make(TraitIndex, len(traits))
	for _, tr := range traits {
		idx[tr.ID] = tr
	}
	return idx
}
