package access

import (
	"github.com/peterkuimelis/deckrec/internal/card"
	"github.com/peterkuimelis/deckrec/internal/catalog"
	"github.com/peterkuimelis/deckrec/internal/diag"
)

// Engine compiles and evaluates deck-building access rules against an
// immutable catalog. Queries share no mutable state.
type Engine struct {
	cat *catalog.Catalog
	log diag.Logger
}

// New creates an engine over the given catalog. A nil logger discards
// diagnostics.
func New(cat *catalog.Catalog, logger diag.Logger) *Engine {
	if logger == nil {
		logger = diag.Nop{}
	}
	return &Engine{cat: cat, log: logger}
}

// Catalog returns the engine's card catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.cat
}

// CanInclude reports whether deck-building rules permit including the card
// in the investigator's deck. Unknown codes and investigators without rules
// for the targeted deck admit nothing.
func (e *Engine) CanInclude(investigatorCode, cardCode string, cfg Config) bool {
	investigator := e.cat.Card(investigatorCode)
	candidate := e.cat.Card(cardCode)
	if investigator == nil || candidate == nil {
		return false
	}
	filter := e.FilterInvestigatorAccess(investigator, cfg)
	if filter == nil {
		return false
	}
	return filter(candidate)
}

// FilterInvestigatorAccess returns the aggregate access predicate for the
// configured targeting mode, or nil when the investigator has no rules of
// the requested kind. Callers must treat nil as "grants access to nothing".
func (e *Engine) FilterInvestigatorAccess(investigator *card.Card, cfg Config) Filter {
	mode := cfg.target()

	var deckFilter Filter
	if mode != TargetExtraSlots {
		deckFilter = e.makePlayerCardsFilter(investigator,
			investigator.DeckOptions, investigator.DeckRequirements, cfg)
	}

	var extraDeckFilter Filter
	if mode != TargetSlots {
		extraDeckFilter = e.makePlayerCardsFilter(investigator,
			investigator.SideDeckOptions, investigator.SideDeckRequirements, cfg)
	}

	if mode != TargetExtraSlots && deckFilter == nil {
		e.log.Log(diag.Event{
			Kind:   diag.KindNoopQuery,
			Code:   investigator.Code,
			Detail: "filter is a noop: " + investigator.Code + " is not an investigator",
		})
	}

	switch mode {
	case TargetSlots:
		return deckFilter
	case TargetExtraSlots:
		return extraDeckFilter
	}

	var filters []Filter
	if deckFilter != nil {
		filters = append(filters, deckFilter)
	}
	if extraDeckFilter != nil {
		filters = append(filters, extraDeckFilter)
	}
	return Or(filters)
}
