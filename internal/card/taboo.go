package card

// A taboo list ships as extra card records carrying a taboo_set_id and only
// the fields the list changes. Merging one onto its base card is a plain
// field-wise overlay.

// MergeTaboo returns a copy of base with the taboo record's populated fields
// applied on top.
func MergeTaboo(base, taboo *Card) *Card {
	merged := *base
	if taboo.RealText != "" {
		merged.RealText = taboo.RealText
	}
	if taboo.RealBackText != "" {
		merged.RealBackText = taboo.RealBackText
	}
	if taboo.RealTabooTextChange != "" {
		merged.RealTabooTextChange = taboo.RealTabooTextChange
	}
	if taboo.TabooXP != nil {
		merged.TabooXP = taboo.TabooXP
	}
	if taboo.Exceptional {
		merged.Exceptional = true
	}
	if taboo.DeckRequirements != nil {
		merged.DeckRequirements = taboo.DeckRequirements
	}
	if taboo.DeckOptions != nil {
		merged.DeckOptions = taboo.DeckOptions
	}
	if taboo.CustomizationOptions != nil {
		merged.CustomizationOptions = taboo.CustomizationOptions
	}
	merged.TabooSetID = taboo.TabooSetID
	return &merged
}

// ApplyTaboos overlays the records of the given taboo set onto their base
// cards and drops the overlay records from the result. A zero set id returns
// the base cards untouched.
func ApplyTaboos(cards []*Card, tabooSetID int) []*Card {
	overlays := make(map[string]*Card)
	var base []*Card
	for _, c := range cards {
		if c.TabooSetID != 0 {
			if c.TabooSetID == tabooSetID {
				overlays[c.Code] = c
			}
			continue
		}
		base = append(base, c)
	}

	if tabooSetID == 0 || len(overlays) == 0 {
		return base
	}

	merged := make([]*Card, len(base))
	for i, c := range base {
		if overlay, ok := overlays[c.Code]; ok {
			merged[i] = MergeTaboo(c, overlay)
		} else {
			merged[i] = c
		}
	}
	return merged
}
