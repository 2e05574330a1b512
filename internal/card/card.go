// Package card defines the card and investigator data model shared by the
// catalog, the access engine, and the ingestion pipeline. Field names and JSON
// tags mirror the upstream card feed, so records decode without translation.
package card

import "strings"

// Faction codes.
const (
	FactionGuardian = "guardian"
	FactionSeeker   = "seeker"
	FactionRogue    = "rogue"
	FactionMystic   = "mystic"
	FactionSurvivor = "survivor"
	FactionNeutral  = "neutral"
	FactionMythos   = "mythos"

	// FactionMulticlass is not a printed faction: inside a deck option's
	// faction list it requires the card to carry a second class.
	FactionMulticlass = "multiclass"
)

// Type and subtype codes the engine cares about.
const (
	TypeInvestigator = "investigator"
	TypeLocation     = "location"
	TypeStory        = "story"
	TypeAsset        = "asset"

	SubtypeBasicWeakness = "basicweakness"
)

// LevelRange is an inclusive XP range on a deck option.
type LevelRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// OptionSelect is one mutually-exclusive branch inside a deck option,
// activated by a runtime selection.
type OptionSelect struct {
	ID    string      `json:"id" yaml:"id"`
	Name  string      `json:"name,omitempty" yaml:"name,omitempty"`
	Level *LevelRange `json:"level,omitempty" yaml:"level,omitempty"`
	Trait []string    `json:"trait,omitempty" yaml:"trait,omitempty"`
}

// DeckOption is one declarative deck-building rule clause. A clause is a
// conjunction of its populated fields; Not marks it as an exclusion.
type DeckOption struct {
	ID            string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name          string         `json:"name,omitempty" yaml:"name,omitempty"`
	Not           bool           `json:"not,omitempty" yaml:"not,omitempty"`
	Limit         int            `json:"limit,omitempty" yaml:"limit,omitempty"`
	Faction       []string       `json:"faction,omitempty" yaml:"faction,omitempty"`
	FactionSelect []string       `json:"faction_select,omitempty" yaml:"faction_select,omitempty"`
	Level         *LevelRange    `json:"level,omitempty" yaml:"level,omitempty"`
	BaseLevel     *LevelRange    `json:"base_level,omitempty" yaml:"base_level,omitempty"`
	Permanent     *bool          `json:"permanent,omitempty" yaml:"permanent,omitempty"`
	Trait         []string       `json:"trait,omitempty" yaml:"trait,omitempty"`
	Uses          []string       `json:"uses,omitempty" yaml:"uses,omitempty"`
	Type          []string       `json:"type,omitempty" yaml:"type,omitempty"`
	Slot          []string       `json:"slot,omitempty" yaml:"slot,omitempty"`
	Tag           []string       `json:"tag,omitempty" yaml:"tag,omitempty"`
	Text          []string       `json:"text,omitempty" yaml:"text,omitempty"`
	OptionSelect  []OptionSelect `json:"option_select,omitempty" yaml:"option_select,omitempty"`
	DeckSizeSelect []string      `json:"deck_size_select,omitempty" yaml:"deck_size_select,omitempty"`
}

// EffectiveLevel returns the option's level range, preferring the
// base-level variant when both are present.
func (o *DeckOption) EffectiveLevel() *LevelRange {
	if o.BaseLevel != nil {
		return o.BaseLevel
	}
	return o.Level
}

// HasTag reports whether the option carries the given tag marker.
func (o *DeckOption) HasTag(tag string) bool {
	for _, t := range o.Tag {
		if t == tag {
			return true
		}
	}
	return false
}

// DeckRequirements is an investigator's required-card manifest.
type DeckRequirements struct {
	Size int            `json:"size,omitempty"`
	Card map[string]any `json:"card,omitempty"`
}

// Restrictions limits which investigators may include a card.
type Restrictions struct {
	// Investigator maps investigator codes to the restricted card's code.
	Investigator map[string]string `json:"investigator,omitempty"`
	// Trait names an investigator trait requirement (stored lower-case).
	Trait []string `json:"trait,omitempty"`
}

// CustomizationOption is a card-intrinsic upgrade whose traits/tags apply
// once unlocked.
type CustomizationOption struct {
	XP     int      `json:"xp,omitempty"`
	Choice string   `json:"choice,omitempty"`
	Traits string   `json:"real_traits,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Text   string   `json:"text_change,omitempty"`
}

// HasTag reports whether unlocking this option would add the given tag.
func (o CustomizationOption) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Card is one printed card. Investigators are cards whose deck options and
// requirement manifests are populated.
type Card struct {
	Code          string `json:"code"`
	RealName      string `json:"real_name"`
	RealSubname   string `json:"real_subname,omitempty"`
	FactionCode   string `json:"faction_code"`
	Faction2Code  string `json:"faction2_code,omitempty"`
	Faction3Code  string `json:"faction3_code,omitempty"`
	TypeCode      string `json:"type_code"`
	SubtypeCode   string `json:"subtype_code,omitempty"`
	EncounterCode string `json:"encounter_code,omitempty"`
	PackCode      string `json:"pack_code,omitempty"`

	XP              *int `json:"xp,omitempty"`
	CustomizationXP *int `json:"customization_xp,omitempty"`
	DeckLimit       int  `json:"deck_limit,omitempty"`
	Quantity        int  `json:"quantity,omitempty"`

	RealTraits     string   `json:"real_traits,omitempty"`
	RealBackTraits string   `json:"real_back_traits,omitempty"`
	RealText       string   `json:"real_text,omitempty"`
	RealBackText   string   `json:"real_back_text,omitempty"`
	RealSlot       string   `json:"real_slot,omitempty"`
	Tags           []string `json:"tags,omitempty"`

	Permanent   bool `json:"permanent,omitempty"`
	Exceptional bool `json:"exceptional,omitempty"`
	Hidden      bool `json:"hidden,omitempty"`
	Linked      bool `json:"linked,omitempty"`
	DoubleSided bool `json:"double_sided,omitempty"`
	Parallel    bool `json:"parallel,omitempty"`

	AltArtInvestigator bool   `json:"alt_art_investigator,omitempty"`
	BackLinkID         string `json:"back_link_id,omitempty"`
	DuplicateOfCode    string `json:"duplicate_of_code,omitempty"`
	AlternateOfCode    string `json:"alternate_of_code,omitempty"`

	Restrictions         *Restrictions         `json:"restrictions,omitempty"`
	CustomizationOptions []CustomizationOption `json:"customization_options,omitempty"`

	DeckOptions          []DeckOption      `json:"deck_options,omitempty"`
	DeckRequirements     *DeckRequirements `json:"deck_requirements,omitempty"`
	SideDeckOptions      []DeckOption      `json:"side_deck_options,omitempty"`
	SideDeckRequirements *DeckRequirements `json:"side_deck_requirements,omitempty"`

	TabooSetID          int    `json:"taboo_set_id,omitempty"`
	TabooXP             *int   `json:"taboo_xp,omitempty"`
	RealTabooTextChange string `json:"real_taboo_text_change,omitempty"`
}

func (c *Card) String() string {
	return c.RealName
}

// Level returns the card's effective level: floor(customization XP / 2) for
// upgradeable cards, the printed XP otherwise. The second return is false
// when the card has no level at all.
func (c *Card) Level() (int, bool) {
	if c.CustomizationXP != nil {
		return *c.CustomizationXP / 2, true
	}
	if c.XP != nil {
		return *c.XP, true
	}
	return 0, false
}

// HasTag reports whether the card itself carries the given tag.
func (c *Card) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Customizable reports whether the card has customization options.
func (c *Card) Customizable() bool {
	return len(c.CustomizationOptions) > 0
}

// RootCode returns the canonical investigator code for rule lookups,
// normalizing parallel and alternate printings.
func (c *Card) RootCode() string {
	if c.AlternateOfCode != "" {
		return c.AlternateOfCode
	}
	return c.Code
}

// SplitTraits splits a dot-delimited trait string ("Spell. Relic.") into
// trimmed trait names.
func SplitTraits(s string) []string {
	if s == "" {
		return nil
	}
	var traits []string
	for _, part := range strings.Split(s, ".") {
		if t := strings.TrimSpace(part); t != "" {
			traits = append(traits, t)
		}
	}
	return traits
}

// Capitalize upper-cases the first byte. Deck options store traits
// lower-case while printed trait text is capitalized.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
