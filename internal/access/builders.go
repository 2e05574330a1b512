package access

import (
	"strings"

	"github.com/peterkuimelis/deckrec/internal/card"
	"github.com/peterkuimelis/deckrec/internal/catalog"
)

// Atomic constraint builders. Each returns a Filter enforcing one primitive
// rule; the option compiler conjoins them.

// filterType matches cards whose type code is in the allowed set.
func filterType(typeCodes []string) Filter {
	return func(c *card.Card) bool {
		for _, t := range typeCodes {
			if c.TypeCode == t {
				return true
			}
		}
		return false
	}
}

// filterMulticlass matches cards that carry a second class.
func filterMulticlass(c *card.Card) bool {
	return c.Faction2Code != ""
}

// filterFaction matches the card's primary or either multiclass faction.
func filterFaction(faction string) Filter {
	return func(c *card.Card) bool {
		return c.FactionCode == faction ||
			(c.Faction2Code != "" && c.Faction2Code == faction) ||
			(c.Faction3Code != "" && c.Faction3Code == faction)
	}
}

// filterFactions matches any of the allowed factions. The pseudo-faction
// "multiclass" requires a second class and is conjoined with the rest
// instead of joining the alternatives.
func filterFactions(factions []string) Filter {
	var ands, ors []Filter
	for _, faction := range factions {
		if faction == card.FactionMulticlass {
			ands = append(ands, filterMulticlass)
		} else {
			ors = append(ors, filterFaction(faction))
		}
	}
	return And(append([]Filter{Or(ors)}, ands...))
}

// filterCardLevel matches cards whose effective level falls in the inclusive
// range. Customizable cards can reach any level through upgrades, so they
// pass unconditionally unless enforceCustomizable is set.
func filterCardLevel(rng card.LevelRange, enforceCustomizable bool) Filter {
	return func(c *card.Card) bool {
		if !enforceCustomizable && c.Customizable() {
			return true
		}
		level, ok := c.Level()
		return ok && level >= rng.Min && level <= rng.Max
	}
}

// filterPermanent matches permanent cards.
func filterPermanent(c *card.Card) bool {
	return c.Permanent
}

// filterTag matches cards carrying the tag, or, when
// checkCustomizableOptions is set, cards where any customization option
// would add it.
func filterTag(tag string, checkCustomizableOptions bool) Filter {
	return func(c *card.Card) bool {
		if c.HasTag(tag) {
			return true
		}
		if !checkCustomizableOptions || !c.Customizable() {
			return false
		}
		for _, o := range c.CustomizationOptions {
			if o.HasTag(tag) {
				return true
			}
		}
		return false
	}
}

func filterHealsHorror(checkCustomizableOptions bool) Filter {
	return filterTag("hh", checkCustomizableOptions)
}

func filterHealsDamage(checkCustomizableOptions bool) Filter {
	return filterTag("hd", checkCustomizableOptions)
}

// filterSlots matches cards whose slot string mentions the named slot.
func filterSlots(slot string) Filter {
	return func(c *card.Card) bool {
		return strings.Contains(c.RealSlot, slot)
	}
}

// filterTraits matches cards carrying any of the traits (capitalized
// lookup); with checkCustomizableOptions, customization-added traits count
// too.
func filterTraits(traits []string, cat *catalog.Catalog, checkCustomizableOptions bool) Filter {
	var filters []Filter
	for _, trait := range traits {
		trait := trait
		filters = append(filters, func(c *card.Card) bool {
			if cat.CardHasTrait(trait, c.Code) {
				return true
			}
			if !c.Customizable() || !checkCustomizableOptions {
				return false
			}
			for _, o := range c.CustomizationOptions {
				if strings.Contains(o.Traits, trait) {
					return true
				}
			}
			return false
		})
	}
	return Or(filters)
}

// filterUses matches cards granting uses of the given label.
func filterUses(label string, cat *catalog.Catalog) Filter {
	return func(c *card.Card) bool {
		return cat.CardUses(label, c.Code)
	}
}

// filterSeal matches cards with a seal effect.
func filterSeal(cat *catalog.Catalog) Filter {
	return func(c *card.Card) bool {
		return cat.CardSeals(c.Code)
	}
}

// filterRequired matches the investigator's signature cards.
func filterRequired(investigatorCode string, cat *catalog.Catalog) Filter {
	return func(c *card.Card) bool {
		return cat.IsRequired(investigatorCode, c.Code)
	}
}

// filterRestrictions rejects cards whose investigator-trait restriction
// excludes this investigator. Restriction traits are stored lower-case.
// An empty (non-nil) trait list restricts to nobody.
func filterRestrictions(c *card.Card, investigator *card.Card) bool {
	if c.Restrictions == nil || c.Restrictions.Trait == nil {
		return true
	}
	for _, trait := range card.SplitTraits(investigator.RealTraits) {
		lower := strings.ToLower(trait)
		for _, target := range c.Restrictions.Trait {
			if lower == target {
				return true
			}
		}
	}
	return false
}
