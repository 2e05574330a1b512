package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/peterkuimelis/deckrec/internal/card"
	"gopkg.in/yaml.v3"
)

//go:embed overrides.yaml
var overridesYAML []byte

// Overrides is the table of per-card deckbuilding special cases. The printed
// data under-describes a handful of cards; keeping the exceptions in one
// declarative table keeps new cases additive and auditable.
type Overrides struct {
	// SyntheticOptions maps an investigator code to extra deck options
	// spliced in after the investigator's first declared option.
	SyntheticOptions map[string][]card.DeckOption `yaml:"synthetic_options"`

	// PreferRequired lists signature cards whose "Replacement." text should
	// still count as required.
	PreferRequired []string `yaml:"prefer_required"`

	// InertTags lists option tag markers with no compiled meaning.
	InertTags []string `yaml:"inert_tags"`

	preferRequired map[string]bool
	inertTags      map[string]bool
}

// ParseOverrides decodes an override table from YAML.
func ParseOverrides(data []byte) (*Overrides, error) {
	var ov Overrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("parse overrides YAML: %w", err)
	}
	ov.preferRequired = make(map[string]bool, len(ov.PreferRequired))
	for _, code := range ov.PreferRequired {
		ov.preferRequired[code] = true
	}
	ov.inertTags = make(map[string]bool, len(ov.InertTags))
	for _, tag := range ov.InertTags {
		ov.inertTags[tag] = true
	}
	return &ov, nil
}

var (
	defaultOverrides     *Overrides
	defaultOverridesOnce sync.Once
)

// DefaultOverrides returns the embedded override table.
func DefaultOverrides() *Overrides {
	defaultOverridesOnce.Do(func() {
		ov, err := ParseOverrides(overridesYAML)
		if err != nil {
			panic(err)
		}
		defaultOverrides = ov
	})
	return defaultOverrides
}

// IsInertTag reports whether the tag marks an option as inert.
func (o *Overrides) IsInertTag(tag string) bool {
	return o.inertTags[tag]
}

// SyntheticOptionsFor returns the extra deck options for an investigator
// code, or nil.
func (o *Overrides) SyntheticOptionsFor(code string) []card.DeckOption {
	return o.SyntheticOptions[code]
}
