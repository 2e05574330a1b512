package catalog

import (
	"strings"

	"github.com/peterkuimelis/deckrec/internal/card"
)

// Build constructs a Catalog from the full card list. Taboo overlays for the
// given set are merged before indexing; ov may be nil to use the embedded
// override table.
func Build(cards []*card.Card, tabooSetID int, ov *Overrides) *Catalog {
	if ov == nil {
		ov = DefaultOverrides()
	}

	cards = card.ApplyTaboos(cards, tabooSetID)

	c := &Catalog{
		Cards:         make(map[string]*card.Card, len(cards)),
		Traits:        make(Table),
		Uses:          make(Table),
		Actions:       make(Table),
		SkillBoosts:   make(Table),
		FactionCode:   make(Table),
		TypeCode:      make(Table),
		SubtypeCode:   make(Table),
		EncounterCode: make(Table),
		Level:         make(map[int]CodeSet),
		Properties: Properties{
			Fast:      make(CodeSet),
			Seal:      make(CodeSet),
			SucceedBy: make(CodeSet),
		},
		Relations: Relations{
			Required:      make(Table),
			Advanced:      make(Table),
			Replacement:   make(Table),
			ParallelCards: make(Table),
			RestrictedTo:  make(Table),
			Parallel:      make(Table),
			Base:          make(Table),
			Duplicates:    make(Table),
			Bound:         make(Table),
			Bonded:        make(Table),
			Level:         make(Table),
		},
		overrides: ov,
	}

	for _, cd := range cards {
		c.Cards[cd.Code] = cd
		c.indexCard(cd)
	}
	c.buildRelations(cards)
	return c
}

func (c *Catalog) indexCard(cd *card.Card) {
	c.FactionCode.add(cd.FactionCode, cd.Code)
	c.TypeCode.add(cd.TypeCode, cd.Code)
	if cd.SubtypeCode != "" {
		c.SubtypeCode.add(cd.SubtypeCode, cd.Code)
	}
	if cd.EncounterCode != "" {
		c.EncounterCode.add(cd.EncounterCode, cd.Code)
	}

	for _, trait := range card.SplitTraits(cd.RealTraits) {
		c.Traits.add(trait, cd.Code)
	}

	for action, phrase := range actionText {
		if strings.Contains(cd.RealText, phrase) {
			c.Actions.add(action, cd.Code)
		}
	}

	if strings.Contains(cd.RealText, "Fast.") || strings.Contains(cd.RealText, "gains fast.") {
		c.Properties.Fast[cd.Code] = struct{}{}
	}

	// Player-card indexes only.
	if cd.FactionCode == card.FactionMythos {
		return
	}

	if cd.XP != nil && *cd.XP > 0 {
		level, ok := c.Level[*cd.XP]
		if !ok {
			level = make(CodeSet)
			c.Level[*cd.XP] = level
		}
		level[cd.Code] = struct{}{}
	}

	if cd.Faction2Code != "" {
		c.FactionCode.add(cd.Faction2Code, cd.Code)
	}
	if cd.Faction3Code != "" {
		c.FactionCode.add(cd.Faction3Code, cd.Code)
	}

	if strings.Contains(cd.RealText, " seal ") || strings.Contains(cd.RealText, "Seal (") {
		c.Properties.Seal[cd.Code] = struct{}{}
	}

	if textSucceedsBy(cd.RealText) {
		c.Properties.SucceedBy[cd.Code] = struct{}{}
	}

	if cd.TypeCode == card.TypeAsset {
		c.indexSkillBoosts(cd)
		c.indexUses(cd)
	}
}

func (c *Catalog) indexSkillBoosts(cd *card.Card) {
	for _, o := range cd.CustomizationOptions {
		if o.Choice == "choose_skill" {
			c.SkillBoosts.add("willpower", cd.Code)
			c.SkillBoosts.add("intellect", cd.Code)
			c.SkillBoosts.add("combat", cd.Code)
			c.SkillBoosts.add("agility", cd.Code)
			break
		}
	}
	for _, m := range reSkillBoost.FindAllStringSubmatch(cd.RealText, -1) {
		c.SkillBoosts.add(m[1], cd.Code)
	}
}

func (c *Catalog) indexUses(cd *card.Card) {
	m := reUses.FindStringSubmatch(cd.RealText)
	if m == nil {
		return
	}
	label := m[2]
	if label == "charge" {
		label = "charges"
	}
	c.Uses.add(label, cd.Code)
}

func (c *Catalog) buildRelations(cards []*card.Card) {
	// First pass: group upgrade printings by name, collect bond targets and
	// back sides.
	type upgrade struct {
		code    string
		subname string
		xp      int
	}
	upgrades := make(map[string][]upgrade)
	bonded := make(map[string][]string)
	backs := make(map[string]string)

	for _, cd := range cards {
		if cd.XP != nil && *cd.XP > 0 {
			upgrades[cd.RealName] = append(upgrades[cd.RealName], upgrade{
				code:    cd.Code,
				subname: cd.RealSubname,
				xp:      *cd.XP,
			})
		}
		if m := reBonded.FindStringSubmatch(cd.RealText); m != nil {
			bonded[m[1]] = append(bonded[m[1]], cd.Code)
		}
		if cd.BackLinkID != "" {
			backs[cd.BackLinkID] = cd.Code
		}
	}

	// Second pass: construct the tables.
	for _, cd := range cards {
		if cd.DeckRequirements != nil {
			for code := range cd.DeckRequirements.Card {
				c.Relations.Required.add(cd.Code, code)
			}
		}

		if cd.Restrictions != nil && len(cd.Restrictions.Investigator) > 0 && !cd.Hidden {
			// Multiple entries cover alternate-art printings.
			for key := range cd.Restrictions.Investigator {
				if inv := c.Cards[key]; inv != nil && inv.DuplicateOfCode != "" {
					c.Relations.RestrictedTo.add(cd.Code, inv.DuplicateOfCode)
					continue
				}
				c.Relations.RestrictedTo.add(cd.Code, key)

				switch {
				case strings.Contains(cd.RealText, "Advanced."):
					c.Relations.Advanced.add(key, cd.Code)
				case strings.Contains(cd.RealText, "Replacement.") && !c.overrides.preferRequired[cd.Code]:
					c.Relations.Replacement.add(key, cd.Code)
				case cd.Parallel:
					c.Relations.ParallelCards.add(key, cd.Code)
				default:
					c.Relations.Required.add(key, cd.Code)
				}
			}
		}

		if cd.TypeCode == card.TypeInvestigator && cd.Parallel &&
			cd.AltArtInvestigator && cd.AlternateOfCode != "" {
			c.Relations.Parallel.add(cd.AlternateOfCode, cd.Code)
			c.Relations.Base.add(cd.Code, cd.AlternateOfCode)
		}

		if cd.DuplicateOfCode != "" {
			c.Relations.Duplicates.add(cd.DuplicateOfCode, cd.Code)
		}

		if cd.XP != nil {
			for _, up := range upgrades[cd.RealName] {
				if cd.Code == up.code {
					continue
				}
				if cd.RealSubname == "" || *cd.XP != up.xp || up.subname != cd.RealSubname {
					c.Relations.Level.add(up.code, cd.Code)
					c.Relations.Level.add(cd.Code, up.code)
				}
			}
		}

		// Back traits, and front traits propagated to the back side.
		for _, trait := range card.SplitTraits(cd.RealBackTraits) {
			c.Traits.add(trait, cd.Code)
		}
		if back, ok := backs[cd.Code]; ok {
			for _, trait := range card.SplitTraits(cd.RealTraits) {
				c.Traits.add(trait, back)
			}
		}

		if !cd.Linked {
			for _, bondedCode := range bonded[cd.RealName] {
				if bondedCode != cd.Code && !strings.HasPrefix(cd.RealText, "Bonded") {
					c.Relations.Bound.add(cd.Code, bondedCode)
					c.Relations.Bonded.add(bondedCode, cd.Code)
				}
			}
		}
	}

	// Parallel printings inherit their root's signature relations and
	// restricted cards. Every parallel of a root inherits, not just the
	// first; the card pool has at most one per root today.
	for root, parallels := range c.Relations.Parallel {
		for parallel := range parallels {
			c.Relations.Advanced[parallel] = c.Relations.Advanced[root]
			c.Relations.Replacement[parallel] = c.Relations.Replacement[root]
			c.Relations.Bonded[parallel] = c.Relations.Bonded[root]
			c.Relations.ParallelCards[parallel] = c.Relations.ParallelCards[root]

			for cardCode, investigators := range c.Relations.RestrictedTo {
				if _, ok := investigators[root]; ok {
					c.Relations.RestrictedTo.add(cardCode, parallel)
				}
			}
		}
	}
}
