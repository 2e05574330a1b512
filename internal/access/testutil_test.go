package access

import (
	"testing"

	"github.com/peterkuimelis/deckrec/internal/card"
	"github.com/peterkuimelis/deckrec/internal/catalog"
	"github.com/peterkuimelis/deckrec/internal/diag"
)

func intp(v int) *int { return &v }

func boolp(v bool) *bool { return &v }

func levelRange(min, max int) *card.LevelRange {
	return &card.LevelRange{Min: min, Max: max}
}

// cardMod mutates a card fixture.
type cardMod func(*card.Card)

// playerCard builds a card with sensible player-card defaults.
func playerCard(code, faction string, xp int, mods ...cardMod) *card.Card {
	c := &card.Card{
		Code:        code,
		RealName:    "Card " + code,
		FactionCode: faction,
		TypeCode:    card.TypeAsset,
		XP:          intp(xp),
		DeckLimit:   2,
	}
	for _, mod := range mods {
		mod(c)
	}
	return c
}

func withTraits(traits string) cardMod {
	return func(c *card.Card) { c.RealTraits = traits }
}

func withType(typeCode string) cardMod {
	return func(c *card.Card) { c.TypeCode = typeCode }
}

func withSubtype(subtypeCode string) cardMod {
	return func(c *card.Card) { c.SubtypeCode = subtypeCode }
}

func withText(text string) cardMod {
	return func(c *card.Card) { c.RealText = text }
}

func withTags(tags ...string) cardMod {
	return func(c *card.Card) { c.Tags = tags }
}

// investigator builds an investigator card with the given main-deck options
// and an empty-but-present requirement manifest.
func investigator(code string, options []card.DeckOption, mods ...cardMod) *card.Card {
	c := &card.Card{
		Code:             code,
		RealName:         "Investigator " + code,
		FactionCode:      card.FactionNeutral,
		TypeCode:         card.TypeInvestigator,
		DeckOptions:      options,
		DeckRequirements: &card.DeckRequirements{Card: map[string]any{}},
	}
	for _, mod := range mods {
		mod(c)
	}
	return c
}

func withRequiredCard(code string) cardMod {
	return func(c *card.Card) { c.DeckRequirements.Card[code] = map[string]any{} }
}

func withSideDeck(options []card.DeckOption, requiredCodes ...string) cardMod {
	return func(c *card.Card) {
		c.SideDeckOptions = options
		reqs := &card.DeckRequirements{Card: map[string]any{}}
		for _, code := range requiredCodes {
			reqs.Card[code] = map[string]any{}
		}
		c.SideDeckRequirements = reqs
	}
}

// newEngine builds an engine over the given cards with a memory diagnostics
// sink.
func newEngine(t *testing.T, cards ...*card.Card) (*Engine, *diag.Memory) {
	t.Helper()
	sink := diag.NewMemory()
	cat := catalog.Build(cards, 0, nil)
	return New(cat, sink), sink
}

// admits evaluates the investigator's main-deck filter against a card and
// fails the test on a nil filter.
func admits(t *testing.T, e *Engine, inv *card.Card, c *card.Card, cfg Config) bool {
	t.Helper()
	filter := e.FilterInvestigatorAccess(inv, cfg)
	if filter == nil {
		t.Fatalf("expected a filter for %s, got none", inv.Code)
	}
	return filter(c)
}
