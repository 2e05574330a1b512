package access

import "github.com/peterkuimelis/deckrec/internal/card"

// neverPlayerTypes are card types that can never enter a player deck.
var neverPlayerTypes = []string{card.TypeInvestigator, card.TypeLocation, card.TypeStory}

// makePlayerCardsFilter builds the aggregate predicate for one of the
// investigator's decks, or nil when the investigator has no option list or
// no requirement manifest of that kind.
func (e *Engine) makePlayerCardsFilter(
	investigator *card.Card,
	options []card.DeckOption,
	requirements *card.DeckRequirements,
	cfg Config,
) Filter {
	if options == nil || requirements == nil || requirements.Card == nil {
		return nil
	}

	// Normalize parallel printings to the root investigator for lookups.
	code := investigator.RootCode()

	// Some investigators' printed options under-describe actual access; the
	// override table splices the missing options in after the first one.
	if synthetic := e.cat.Overrides().SyntheticOptionsFor(code); len(synthetic) > 0 {
		head := min(1, len(options))
		spliced := make([]card.DeckOption, 0, len(options)+len(synthetic))
		spliced = append(spliced, options[:head]...)
		spliced = append(spliced, synthetic...)
		spliced = append(spliced, options[head:]...)
		options = spliced
	}

	ands := []Filter{
		func(c *card.Card) bool { return filterRestrictions(c, investigator) },
		Not(filterType(neverPlayerTypes)),
	}

	var ors []Filter
	if cfg.target() == TargetExtraSlots {
		ors = append(ors, func(c *card.Card) bool {
			_, ok := requirements.Card[c.Code]
			return ok
		})
	} else {
		ors = append(ors,
			filterRequired(code, e.cat),
			func(c *card.Card) bool { return c.SubtypeCode == card.SubtypeBasicWeakness },
			// Signature weaknesses live in encounter sets but carry a deck
			// limit; back sides, double-sided cards and mythos cards do not
			// qualify.
			func(c *card.Card) bool {
				return c.EncounterCode != "" &&
					c.DeckLimit > 0 &&
					c.BackLinkID == "" &&
					!c.DoubleSided &&
					c.FactionCode != card.FactionMythos
			},
		)
	}

	// Ordered option pass. Inclusions accumulate; an exclusion rejects only
	// cards that no earlier inclusion in the same list already admitted.
	var filters []Filter
	for i := range options {
		option := &options[i]
		filter := e.makeOptionFilter(option, cfg)
		if filter == nil {
			continue
		}

		if option.Not {
			if len(filters) > 0 {
				exceptions := make([]Filter, len(filters))
				copy(exceptions, filters)
				ands = append(ands, NotUnless(filter, exceptions))
			} else {
				ands = append(ands, Not(filter))
			}
		} else {
			filters = append(filters, filter)
		}
	}
	ors = append(ors, filters...)

	// Ad hoc caller options are folded in after the investigator's own.
	// Their exclusions are absolute: no "unless" exemption.
	if cfg.target() != TargetExtraSlots {
		for i := range cfg.AdditionalDeckOptions {
			option := &cfg.AdditionalDeckOptions[i]
			filter := e.makeOptionFilter(option, cfg)
			if filter == nil {
				continue
			}
			if option.Not {
				ands = append(ands, Not(filter))
			} else {
				ors = append(ors, filter)
			}
		}
	}

	return And(append([]Filter{Or(ors)}, ands...))
}
