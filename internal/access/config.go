package access

import "github.com/peterkuimelis/deckrec/internal/card"

// TargetDeck selects which of an investigator's decks a query targets.
type TargetDeck string

const (
	TargetSlots      TargetDeck = "slots"
	TargetExtraSlots TargetDeck = "extraSlots"
	TargetBoth       TargetDeck = "both"
)

// SelectionKind discriminates the runtime selection variants.
type SelectionKind int

const (
	SelectionFaction SelectionKind = iota
	SelectionDeckSize
	SelectionOption
)

// Selection is one resolved runtime choice: a faction code, a deck-size
// integer, or a sub-option identifier. The caller resolves selections before
// invoking the engine; the engine never probes value types.
type Selection struct {
	Kind     SelectionKind
	Faction  string
	DeckSize int
	OptionID string
}

// FactionChoice builds a faction selection.
func FactionChoice(faction string) Selection {
	return Selection{Kind: SelectionFaction, Faction: faction}
}

// DeckSizeChoice builds a deck-size selection.
func DeckSizeChoice(size int) Selection {
	return Selection{Kind: SelectionDeckSize, DeckSize: size}
}

// OptionChoice builds a sub-option selection.
func OptionChoice(id string) Selection {
	return Selection{Kind: SelectionOption, OptionID: id}
}

// Selections maps an option identifier to its resolved runtime choice.
type Selections map[string]Selection

// Config tunes one access query.
type Config struct {
	// Selections carries the caller-resolved runtime choices.
	Selections Selections

	// IgnoreUnselectedCustomizableOptions, when set, stops the engine from
	// considering customization-derived traits and tags before they are
	// unlocked.
	IgnoreUnselectedCustomizableOptions bool

	// TargetDeck selects main deck, extra deck, or both. Empty means main.
	TargetDeck TargetDeck

	// AdditionalDeckOptions are ad hoc caller-imposed options folded in
	// after the investigator's own. Their exclusions are absolute: they do
	// not receive the "unless" exemption the investigator's own exclusions
	// get.
	AdditionalDeckOptions []card.DeckOption
}

// target returns the effective targeting mode.
func (c Config) target() TargetDeck {
	if c.TargetDeck == "" {
		return TargetSlots
	}
	return c.TargetDeck
}
