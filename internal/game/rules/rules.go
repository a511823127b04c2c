// Package rules implements the pure game mechanics: dice expressions, stat
// resolution, armor class, and consumable item effects. Nothing here touches
// the network or the world lock; handlers call in with the state they hold.
package rules

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/Beykus-Y/mcp-agent/internal/game/catalog"
	"github.com/Beykus-Y/mcp-agent/internal/game/character"
)

// Dice is a parsed dice expression such as 2d6+3.
type Dice struct {
	Count    int
	Sides    int
	Modifier int
}

// String formats the dice back into standard notation.
func (d Dice) String() string {
	s := fmt.Sprintf("%dd%d", d.Count, d.Sides)
	switch {
	case d.Modifier > 0:
		s += fmt.Sprintf("+%d", d.Modifier)
	case d.Modifier < 0:
		s += strconv.Itoa(d.Modifier)
	}
	return s
}

// ParseDice parses an expression of the form NdS, NdS+M, or NdS-M. N defaults
// to 1 when omitted; S must be ≥ 1; M may be negative.
func ParseDice(expr string) (Dice, error) {
	cleaned := strings.ToLower(strings.TrimSpace(expr))

	dIdx := strings.Index(cleaned, "d")
	if dIdx == -1 {
		return Dice{}, fmt.Errorf("rules: invalid dice expression %q: missing 'd' separator", expr)
	}

	d := Dice{Count: 1}
	if countStr := cleaned[:dIdx]; countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return Dice{}, fmt.Errorf("rules: invalid dice count %q in expression %q", countStr, expr)
		}
		d.Count = n
	}
	if d.Count < 1 {
		return Dice{}, fmt.Errorf("rules: dice count must be ≥ 1, got %d in expression %q", d.Count, expr)
	}

	rest := cleaned[dIdx+1:]
	sidesStr := rest
	if cut := strings.IndexAny(rest, "+-"); cut != -1 {
		sidesStr = rest[:cut]
		mod, err := strconv.Atoi(rest[cut:])
		if err != nil {
			return Dice{}, fmt.Errorf("rules: invalid modifier %q in expression %q", rest[cut:], expr)
		}
		d.Modifier = mod
	}

	sides, err := strconv.Atoi(sidesStr)
	if err != nil {
		return Dice{}, fmt.Errorf("rules: invalid sides %q in expression %q", sidesStr, expr)
	}
	if sides < 1 {
		return Dice{}, fmt.Errorf("rules: sides must be ≥ 1, got %d in expression %q", sides, expr)
	}
	d.Sides = sides

	return d, nil
}

// Roll evaluates the dice with the given source. It returns each individual
// die result and the total including the modifier.
func (d Dice) Roll(rng *rand.Rand) (total int, rolls []int) {
	rolls = make([]int, d.Count)
	total = d.Modifier
	for i := range d.Count {
		r := rng.IntN(d.Sides) + 1
		rolls[i] = r
		total += r
	}
	return total, rolls
}

// FinalStats resolves a character's effective attributes: base stats plus
// stat_modifier effects from traits and equipped items.
func FinalStats(c *character.Character, traits catalog.TraitIndex) character.Stats {
	final := c.Stats

	for _, traitID := range c.Traits {
		tr, ok := traits[traitID]
		if !ok {
			continue
		}
		for _, eff := range tr.Effects {
			if eff.Type == character.EffectStatModifier {
				addStat(&final, eff.Stat, eff.Value)
			}
		}
	}

	for _, item := range c.Equipment {
		for _, eff := range item.Effects {
			if eff.Type != character.EffectStatModifier {
				continue
			}
			if v, ok := eff.IntValue(); ok {
				addStat(&final, eff.Stat, v)
			}
		}
	}

	return final
}

// ArmorClass is 10 plus the armor_class effect values of equipped items.
func ArmorClass(c *character.Character) int {
	ac := 10
	for _, item := range c.Equipment {
		for _, eff := range item.Effects {
			if eff.Type != character.EffectArmorClass {
				continue
			}
			if v, ok := eff.IntValue(); ok {
				ac += v
			}
		}
	}
	return ac
}

// ApplyOnUse applies every on_use effect of a consumable to the character and
// returns how many effects took hold. Callers consume the item only when the
// count is positive.
//
// Heal effects accept either an integer or a dice expression and never push
// CurrentHP past MaxHP. Flag effects add or remove entries of ActiveFlags;
// adding an already-active flag or removing an absent one does not count as
// applied.
func ApplyOnUse(c *character.Character, item character.Item, rng *rand.Rand) int {
	applied := 0
	for _, eff := range item.Effects {
		if !eff.OnUse {
			continue
		}
		switch eff.Type {
		case character.EffectHeal:
			amount, ok := healAmount(eff, rng)
			if !ok {
				continue
			}
			c.CurrentHP = min(c.MaxHP, c.CurrentHP+amount)
			applied++

		case character.EffectFlagModifier:
			if applyFlag(c, eff) {
				applied++
			}
		}
	}
	return applied
}

func healAmount(eff character.Effect, rng *rand.Rand) (int, bool) {
	if n, ok := eff.IntValue(); ok {
		return n, true
	}
	expr, ok := eff.StringValue()
	if !ok {
		return 0, false
	}
	d, err := ParseDice(expr)
	if err != nil {
		return 0, false
	}
	total, _ := d.Roll(rng)
	return total, true
}

func applyFlag(c *character.Character, eff character.Effect) bool {
	switch eff.Action {
	case "add":
		for _, f := range c.ActiveFlags {
			if f == eff.Flag {
				return false
			}
		}
		c.ActiveFlags = append(c.ActiveFlags, eff.Flag)
		return true

	case "remove":
		for i, f := range c.ActiveFlags {
			if f == eff.Flag {
				c.ActiveFlags = append(c.ActiveFlags[:i], c.ActiveFlags[i+1:]...)
				return true
			}
		}
		return false
	}
	return false
}

func addStat(s *character.Stats, stat string, value int) {
	switch stat {
	case "strength":
		s.Strength += value
	case "dexterity":
		s.Dexterity += value
	case "intelligence":
		s.Intelligence += value
	case "charisma":
		s.Charisma += value
	}
}
