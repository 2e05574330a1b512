// Package access decides whether deck-building rules permit including a card
// in an investigator's deck. An investigator's ordered option list compiles
// into a single pure predicate over cards; evaluation touches no shared
// state, so compiled filters are safe to use from concurrent callers.
package access

import "github.com/peterkuimelis/deckrec/internal/card"

// Filter is a compiled predicate over a candidate card.
type Filter func(*card.Card) bool

// And is true iff every member filter is true. An empty list is vacuously
// true.
func And(filters []Filter) Filter {
	return func(c *card.Card) bool {
		for _, f := range filters {
			if !f(c) {
				return false
			}
		}
		return true
	}
}

// Or is true iff at least one member filter is true. An empty list is
// vacuously true, not false: an empty constraint set never blocks.
func Or(filters []Filter) Filter {
	return func(c *card.Card) bool {
		if len(filters) == 0 {
			return true
		}
		for _, f := range filters {
			if f(c) {
				return true
			}
		}
		return false
	}
}

// Not negates a filter.
func Not(f Filter) Filter {
	return func(c *card.Card) bool {
		return !f(c)
	}
}

// NotUnless is true iff the card satisfies at least one exception, or fails
// f. With no exceptions it degenerates to a plain negation. This implements
// exclusion options layered after prior inclusion rules: a card already
// admitted by an earlier rule is exempt from a later blanket exclusion.
func NotUnless(f Filter, exceptions []Filter) Filter {
	return func(c *card.Card) bool {
		if len(exceptions) > 0 && Or(exceptions)(c) {
			return true
		}
		return !f(c)
	}
}
