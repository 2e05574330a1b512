// Package rec computes card recommendations for an investigator from the
// ingested decklist corpus. Two algorithms are supported: the share of the
// investigator's own decks using a card, and the percentile rank of that
// share against every other investigator with access to the card.
package rec

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/peterkuimelis/deckrec/internal/access"
	"github.com/peterkuimelis/deckrec/internal/store"
	"go.uber.org/zap"
)

// Algorithm selects how a recommendation score is computed.
type Algorithm string

const (
	AlgorithmAbsolutePercentage Algorithm = "absolute percentage"
	AlgorithmPercentileRank     Algorithm = "percentile rank"
)

// Inclusion percentages below this are never recommended. Filters out
// anomalies where a rarely-used card ranks high purely because other
// investigators use it even less.
const minInclusionPercentage = 5.0

const monthLayout = "2006-01"

// Request is one recommendation query.
type Request struct {
	CanonicalInvestigatorCode string    `json:"canonical_investigator_code"`
	RequiredCards             []string  `json:"required_cards"`
	CardsToRecommend          []string  `json:"cards_to_recommend"`
	DateRange                 [2]string `json:"date_range"`
	AnalyzeSideDecks          bool      `json:"analyze_side_decks"`
	AnalysisAlgorithm         Algorithm `json:"analysis_algorithm"`
}

// Validate checks the request's shape. Field errors are phrased for API
// clients.
func (r *Request) Validate() error {
	if r.CanonicalInvestigatorCode == "" {
		return fmt.Errorf("invalid canonical_investigator_code")
	}
	if r.CardsToRecommend == nil {
		return fmt.Errorf("invalid cards_to_recommend")
	}
	if r.RequiredCards == nil {
		return fmt.Errorf("invalid required_cards")
	}
	if _, _, err := r.dateRange(); err != nil {
		return fmt.Errorf("invalid date_range")
	}
	switch r.AnalysisAlgorithm {
	case AlgorithmAbsolutePercentage, AlgorithmPercentileRank:
	default:
		return fmt.Errorf("unknown analysis_algorithm %q", r.AnalysisAlgorithm)
	}
	return nil
}

// dateRange resolves the request's inclusive month pair to the half-open
// time range [first day of the start month, first day after the end month).
func (r *Request) dateRange() (time.Time, time.Time, error) {
	from, err := time.Parse(monthLayout, r.DateRange[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(monthLayout, r.DateRange[1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, end.AddDate(0, 1, 0), nil
}

// Recommendation is one scored card.
type Recommendation struct {
	CardCode string `json:"card_code"`
	// Recommendation is the display score; Ordering breaks ties with the
	// unrounded value.
	Recommendation float64 `json:"recommendation"`
	Ordering       float64 `json:"ordering"`
	Explanation    string  `json:"explanation"`
}

// Response is a recommendation result set.
type Response struct {
	DecksAnalyzed   int              `json:"decks_analyzed"`
	Recommendations []Recommendation `json:"recommendations"`
}

// PercentileRank returns the percentage of values not exceeding the given
// value, on a 0-100 scale.
func PercentileRank(values []float64, value float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	firstGreater := sort.SearchFloat64s(sorted, value)
	for firstGreater < len(sorted) && sorted[firstGreater] == value {
		firstGreater++
	}
	if firstGreater == len(sorted) {
		return 100
	}
	greater := len(sorted) - firstGreater
	return 100 - float64(greater)/float64(len(sorted))*100
}

// Recommender answers recommendation queries against the store. A non-nil
// engine prunes the candidate list to cards the investigator can actually
// include.
type Recommender struct {
	Store  *store.Store
	Engine *access.Engine
	Log    *zap.Logger
}

// Recommend computes the recommendation set for one request.
func (r *Recommender) Recommend(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	from, to, err := req.dateRange()
	if err != nil {
		return nil, fmt.Errorf("invalid date_range")
	}

	candidates := r.pruneCandidates(req)
	if len(candidates) == 0 {
		return &Response{Recommendations: []Recommendation{}}, nil
	}

	name, err := r.Store.InvestigatorName(ctx, req.CanonicalInvestigatorCode)
	if err != nil {
		return nil, err
	}
	if name == "" {
		// No decks recorded for this investigator.
		return &Response{Recommendations: []Recommendation{}}, nil
	}

	own, err := r.Store.InclusionCountsForInvestigator(ctx,
		req.CanonicalInvestigatorCode, from, to,
		req.RequiredCards, candidates, req.AnalyzeSideDecks)
	if err != nil {
		return nil, err
	}

	switch req.AnalysisAlgorithm {
	case AlgorithmPercentileRank:
		return r.recommendByPercentileRank(ctx, req, name, from, to, candidates, own)
	default:
		return recommendByAbsolutePercentage(name, own), nil
	}
}

// pruneCandidates drops required cards from the candidate list, and, when an
// access engine is wired, cards the investigator cannot include anyway.
func (r *Recommender) pruneCandidates(req *Request) []string {
	required := make(map[string]bool, len(req.RequiredCards))
	for _, code := range req.RequiredCards {
		required[code] = true
	}

	front, _, _ := strings.Cut(req.CanonicalInvestigatorCode, "-")
	checkAccess := r.Engine != nil && r.Engine.Catalog().Card(front) != nil

	var candidates []string
	for _, code := range req.CardsToRecommend {
		if required[code] {
			continue
		}
		if checkAccess && !r.Engine.CanInclude(front, code, access.Config{}) {
			continue
		}
		candidates = append(candidates, code)
	}
	return candidates
}

func recommendByAbsolutePercentage(name string, own []store.InclusionCount) *Response {
	resp := &Response{Recommendations: []Recommendation{}}
	if len(own) > 0 {
		resp.DecksAnalyzed = own[0].DecksAnalyzed
	}
	for _, inc := range own {
		if inc.DecksAnalyzed == 0 {
			continue
		}
		pct := float64(inc.DecksWithCard) / float64(inc.DecksAnalyzed) * 100
		resp.Recommendations = append(resp.Recommendations, Recommendation{
			CardCode:       inc.CardCode,
			Recommendation: pct,
			Ordering:       pct,
			Explanation: fmt.Sprintf("%.2f%% of %s decks (%d/%d) use this card",
				pct, name, inc.DecksWithCard, inc.DecksAnalyzed),
		})
	}
	return resp
}

func (r *Recommender) recommendByPercentileRank(
	ctx context.Context,
	req *Request,
	name string,
	from, to time.Time,
	candidates []string,
	own []store.InclusionCount,
) (*Response, error) {
	others, err := r.Store.InclusionCountsAllInvestigators(ctx,
		req.CanonicalInvestigatorCode, from, to, candidates)
	if err != nil {
		return nil, err
	}

	ownByCard := make(map[string]store.InclusionCount, len(own))
	for _, inc := range own {
		ownByCard[inc.CardCode] = inc
	}
	othersByCard := make(map[string][]store.InclusionCount)
	for _, inc := range others {
		othersByCard[inc.CardCode] = append(othersByCard[inc.CardCode], inc)
	}

	resp := &Response{Recommendations: []Recommendation{}}
	for _, code := range candidates {
		mine, ok := ownByCard[code]
		if !ok || mine.DecksAnalyzed == 0 {
			continue
		}
		peers := othersByCard[code]
		// A card only this investigator uses has no peer pool to rank
		// against.
		if len(peers) == 0 {
			continue
		}

		minePct := float64(mine.DecksWithCard) / float64(mine.DecksAnalyzed) * 100
		if minePct < minInclusionPercentage {
			continue
		}

		pool := make([]float64, 0, len(peers)+1)
		for _, inc := range peers {
			if inc.DecksAnalyzed == 0 {
				continue
			}
			pool = append(pool, float64(inc.DecksWithCard)/float64(inc.DecksAnalyzed)*100)
		}
		pool = append(pool, minePct)

		rank := PercentileRank(pool, minePct)
		resp.Recommendations = append(resp.Recommendations, Recommendation{
			CardCode:       code,
			Recommendation: math.Floor(rank),
			Ordering:       rank,
			Explanation: fmt.Sprintf(
				"The percentile rank of %s's use of this card compared to other investigators is %d",
				name, int(math.Floor(rank))),
		})
	}

	total, err := r.Store.DecksAnalyzedInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	resp.DecksAnalyzed = total
	return resp, nil
}
