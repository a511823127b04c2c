package catalog_test

import (
	"strings"
	"testing"

	"github.com/Beykus-Y/mcp-agent/internal/game/catalog"
)

const sampleYAML = `
traits:
  - id: strong_back
    name: "Strong Back"
    description: "Carries anything."
    effects:
      - type: stat_modifier
        stat: strength
        value: 2
  - id: frail
    name: "Frail"
    effects:
      - type: stat_modifier
        stat: strength
        value: -2
`

func TestLoadTraitsFromReader(t *testing.T) {
	t.Parallel()

	idx, err := catalog.LoadTraitsFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadTraitsFromReader: %v", err)
	}
	if len(idx) != 2 {
		t.Fatalf("got %d traits, want 2", len(idx))
	}

	tr, ok := idx["strong_back"]
	if !ok {
		t.Fatal("missing trait strong_back")
	}
	if len(tr.Effects) != 1 || tr.Effects[0].Stat != "strength" || tr.Effects[0].Value != 2 {
		t.Errorf("unexpected effects: %+v", tr.Effects)
	}
}

func TestLoadTraitsFromReader_DuplicateID(t *testing.T) {
	t.Parallel()

	dup := `
traits:
  - id: frail
    name: "Frail"
  - id: frail
    name: "Frail Again"
`
	if _, err := catalog.LoadTraitsFromReader(strings.NewReader(dup)); err == nil {
		t.Fatal("expected error for duplicate trait id")
	}
}

func TestLoadTraitsFromReader_UnknownKey(t *testing.T) {
	t.Parallel()

	bad := `
traits:
  - id: frail
    nmae: "typo"
`
	if _, err := catalog.LoadTraitsFromReader(strings.NewReader(bad)); err == nil {
		t.Fatal("expected error for unknown yaml key")
	}
}

func TestDefaultTraits(t *testing.T) {
	t.Parallel()

	idx := catalog.DefaultTraits()
	if len(idx) == 0 {
		t.Fatal("default trait set is empty")
	}
	for id, tr := range idx {
		if tr.ID != id {
			t.Errorf("trait %q indexed under %q", tr.ID, id)
		}
		if tr.Name == "" {
			t.Errorf("trait %q has no name", id)
		}
	}
}
