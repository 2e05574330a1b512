package access

import (
	"fmt"
	"strings"

	"github.com/peterkuimelis/deckrec/internal/card"
	"github.com/peterkuimelis/deckrec/internal/diag"
)

// factionSelectedKey is the default selection key for faction_select options
// that carry no identifier of their own.
const factionSelectedKey = "faction_selected"

// optionSelectedKey is the selection key for sub-option choices.
const optionSelectedKey = "option_selected"

// makeOptionFilter compiles one deck option into a predicate, or nil when
// the option is inert or carries too few recognized constraints to trust.
//
// Every recognized field bumps a counter; `not` and `limit` count without
// contributing a predicate, and a permanence requirement contributes a
// predicate without counting. An option that ends up with a count of one or
// less is discarded with a diagnostic and must contribute to neither side of
// the caller's AND/OR groups.
func (e *Engine) makeOptionFilter(option *card.DeckOption, cfg Config) Filter {
	// Unknown or duplicate rule selectors make the whole option inert.
	if len(option.DeckSizeSelect) > 0 {
		return nil
	}
	for _, tag := range option.Tag {
		if e.cat.Overrides().IsInertTag(tag) {
			return nil
		}
	}

	var optionFilter []Filter
	filterCount := 0

	if option.Not {
		filterCount++
	}
	if option.Limit > 0 {
		filterCount++
	}

	if len(option.Faction) > 0 {
		filterCount++
		optionFilter = append(optionFilter, filterFactions(option.Faction))
	}

	if len(option.FactionSelect) > 0 {
		filterCount++
		optionFilter = append(optionFilter, e.compileFactionSelect(option, cfg))
	}

	if level := option.EffectiveLevel(); level != nil {
		filterCount++
		optionFilter = append(optionFilter, filterCardLevel(*level, true))
	}

	if option.Permanent != nil {
		if *option.Permanent {
			optionFilter = append(optionFilter, filterPermanent)
		} else {
			// Explicit false means "non-permanents only"; absence means
			// either is allowed.
			optionFilter = append(optionFilter, Not(filterPermanent))
		}
	}

	if len(option.Trait) > 0 {
		filterCount++
		optionFilter = append(optionFilter, filterTraits(
			// Option traits are stored lower-case; printed traits are not.
			capitalizeAll(option.Trait),
			e.cat,
			!cfg.IgnoreUnselectedCustomizableOptions,
		))
	}

	if len(option.Uses) > 0 {
		filterCount++
		var usesFilters []Filter
		for _, label := range option.Uses {
			usesFilters = append(usesFilters, filterUses(label, e.cat))
		}
		optionFilter = append(optionFilter, Or(usesFilters))
	}

	if len(option.Type) > 0 {
		filterCount++
		optionFilter = append(optionFilter, filterType(option.Type))
	}

	if len(option.OptionSelect) > 0 {
		selectFilters := e.compileOptionSelect(option, cfg)
		filterCount += len(selectFilters) + 1
		optionFilter = append(optionFilter, Or(selectFilters))
	}

	// Text-pattern detections, layered in independent of the structured
	// fields. Brittle by nature; each counts as a recognized field.
	for _, text := range option.Text {
		if strings.Contains(text, "Parley") {
			filterCount++
			optionFilter = append(optionFilter, filterTag("pa", true))
			break
		}
	}

	if option.HasTag("hh") {
		filterCount++
		optionFilter = append(optionFilter,
			filterHealsHorror(!cfg.IgnoreUnselectedCustomizableOptions))
	}

	if option.HasTag("hd") {
		filterCount++
		optionFilter = append(optionFilter,
			filterHealsDamage(!cfg.IgnoreUnselectedCustomizableOptions))
	}

	if option.HasTag("se") {
		filterCount++
		optionFilter = append(optionFilter, filterSeal(e.cat))
	}

	if len(option.Slot) > 0 {
		filterCount++
		for _, slot := range option.Slot {
			optionFilter = append(optionFilter, filterSlots(slot))
		}
	}

	if filterCount <= 1 {
		e.log.Log(diag.Event{
			Kind:   diag.KindOptionDropped,
			Code:   option.ID,
			Detail: fmt.Sprintf("unknown deck requirement: %+v", option),
		})
		return nil
	}
	return And(optionFilter)
}

// compileFactionSelect resolves the allowed faction set from the runtime
// selection keyed by the option's identifier, falling back to the option's
// static candidates.
func (e *Engine) compileFactionSelect(option *card.DeckOption, cfg Config) Filter {
	targetKey := option.ID
	if targetKey == "" {
		targetKey = factionSelectedKey
	}

	if sel, ok := cfg.Selections[targetKey]; ok && sel.Kind == SelectionFaction {
		return filterFactions([]string{sel.Faction})
	}

	e.log.Log(diag.Event{
		Kind:   diag.KindSelectionFallback,
		Code:   option.ID,
		Detail: "no faction selection for key " + targetKey + ", using static candidates",
	})
	return filterFactions(option.FactionSelect)
}

// compileOptionSelect compiles the mutually exclusive sub-option branches.
// When a runtime selection names a branch, only that branch compiles; a
// selection matching nothing leaves the OR group empty, which is vacuously
// true (fail open, preserved deliberately).
func (e *Engine) compileOptionSelect(option *card.DeckOption, cfg Config) []Filter {
	var selected string
	if sel, ok := cfg.Selections[optionSelectedKey]; ok && sel.Kind == SelectionOption {
		selected = sel.OptionID
	}

	var selectFilters []Filter
	for _, sub := range option.OptionSelect {
		if selected != "" && sub.ID != selected {
			continue
		}

		var subFilters []Filter
		if sub.Level != nil {
			subFilters = append(subFilters, filterCardLevel(*sub.Level, true))
		}
		if len(sub.Trait) > 0 {
			subFilters = append(subFilters,
				filterTraits(capitalizeAll(sub.Trait), e.cat, false))
		}
		selectFilters = append(selectFilters, And(subFilters))
	}
	return selectFilters
}

func capitalizeAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = card.Capitalize(v)
	}
	return out
}
