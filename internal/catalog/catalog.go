// Package catalog builds the immutable lookup tables the access engine and
// the service surfaces read. A Catalog is constructed once from the card
// list at startup and never mutated afterwards, so concurrent readers need
// no coordination.
package catalog

import (
	"regexp"

	"github.com/peterkuimelis/deckrec/internal/card"
)

// CodeSet is a set of card codes.
type CodeSet map[string]struct{}

// Table indexes card codes under a string key (a trait name, a usage label,
// a faction code...).
type Table map[string]CodeSet

func (t Table) add(key, code string) {
	set, ok := t[key]
	if !ok {
		set = make(CodeSet)
		t[key] = set
	}
	set[code] = struct{}{}
}

// Has reports whether the given code is indexed under key.
func (t Table) Has(key, code string) bool {
	_, ok := t[key][code]
	return ok
}

// Relations are the card-to-card links derived from requirement manifests,
// restriction records, and rules text.
type Relations struct {
	// Required, Advanced, Replacement and ParallelCards map an investigator
	// code to the signature cards of that kind.
	Required      Table
	Advanced      Table
	Replacement   Table
	ParallelCards Table

	// RestrictedTo maps a card code to the investigators it is restricted to.
	RestrictedTo Table

	// Parallel maps a root investigator to its parallel printings; Base is
	// the reverse direction.
	Parallel Table
	Base     Table

	// Duplicates maps a card to its reprint duplicates.
	Duplicates Table

	// Bound maps a card to the cards bonded to it; Bonded is the reverse.
	Bound  Table
	Bonded Table

	// Level links different-level printings of the same card name.
	Level Table
}

// Properties are code sets derived from rules-text pattern matching. Text
// sniffing is brittle; it stays isolated here so structured tags can replace
// it without touching the engine.
type Properties struct {
	Fast      CodeSet
	Seal      CodeSet
	SucceedBy CodeSet
}

// Catalog is the immutable card index.
type Catalog struct {
	// Cards maps card codes to cards, taboo overlays already applied.
	Cards map[string]*card.Card

	Traits      Table
	Uses        Table
	Actions     Table
	SkillBoosts Table

	FactionCode   Table
	TypeCode      Table
	SubtypeCode   Table
	EncounterCode Table
	Level         map[int]CodeSet

	Properties Properties
	Relations  Relations

	overrides *Overrides
}

// Card returns the card with the given code, or nil.
func (c *Catalog) Card(code string) *card.Card {
	return c.Cards[code]
}

// CardHasTrait reports whether the card with the given code carries the
// trait (front, back, or via a linked back side).
func (c *Catalog) CardHasTrait(trait, code string) bool {
	return c.Traits.Has(trait, code)
}

// CardUses reports whether the card's rules text grants uses of the given
// label ("charges", "supplies", ...).
func (c *Catalog) CardUses(label, code string) bool {
	return c.Uses.Has(label, code)
}

// CardSeals reports whether the card's rules text has a seal effect.
func (c *Catalog) CardSeals(code string) bool {
	_, ok := c.Properties.Seal[code]
	return ok
}

// IsRequired reports whether the card is a signature card of the given
// investigator: required directly, or via its advanced, replacement, or
// parallel variants.
func (c *Catalog) IsRequired(investigatorCode, cardCode string) bool {
	return c.Relations.Advanced.Has(investigatorCode, cardCode) ||
		c.Relations.Required.Has(investigatorCode, cardCode) ||
		c.Relations.ParallelCards.Has(investigatorCode, cardCode) ||
		c.Relations.Replacement.Has(investigatorCode, cardCode)
}

// Overrides returns the special-case table the catalog was built with.
func (c *Catalog) Overrides() *Overrides {
	return c.overrides
}

// Text patterns that act as rule sources.
var (
	reUses       = regexp.MustCompile(`Uses\s\((\d+)\s(\w+)\)`)
	reBonded     = regexp.MustCompile(`^Bonded\s\((.*?)\)(\.|\s)`)
	reSkillBoost = regexp.MustCompile(`\+\d+\s\[(.+?)\]`)
	reSucceedBy  = regexp.MustCompile(`succe(ssful|ed(?:s?|ed?))( at a skill test)? by( \d+)?`)
)

// textSucceedsBy reports whether the text cares about succeeding by an
// amount. "Succeed by 0" does not count.
func textSucceedsBy(text string) bool {
	for _, m := range reSucceedBy.FindAllStringSubmatch(text, -1) {
		if m[3] != " 0" {
			return true
		}
	}
	return false
}

// actionText maps action keys to the rules-text phrase that grants them.
var actionText = map[string]string{
	"fight":       "Fight.",
	"engage":      "Engage.",
	"investigate": "Investigate.",
	"draw":        "Draw.",
	"move":        "Move.",
	"evade":       "Evade.",
	"parley":      "Parley.",
}
