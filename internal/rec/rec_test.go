package rec

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterkuimelis/deckrec/internal/store"
	"go.uber.org/zap"
)

func TestPercentileRank(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		value  float64
		want   float64
	}{
		{"highest", []float64{10, 20, 30}, 30, 100},
		{"lowest", []float64{10, 20, 30}, 10, 100.0 / 3.0},
		{"middle", []float64{10, 20, 30}, 20, 200.0 / 3.0},
		{"above all", []float64{10, 20}, 50, 100},
		{"ties count as not greater", []float64{10, 10, 20}, 10, 100.0 / 3.0},
	}
	for _, tc := range cases {
		got := PercentileRank(tc.values, tc.value)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: PercentileRank = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRequestValidate(t *testing.T) {
	valid := Request{
		CanonicalInvestigatorCode: "01001-01001",
		RequiredCards:             []string{},
		CardsToRecommend:          []string{"c1"},
		DateRange:                 [2]string{"2023-01", "2024-12"},
		AnalysisAlgorithm:         AlgorithmAbsolutePercentage,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	badCases := map[string]func(r *Request){
		"missing investigator": func(r *Request) { r.CanonicalInvestigatorCode = "" },
		"nil candidates":       func(r *Request) { r.CardsToRecommend = nil },
		"nil required":         func(r *Request) { r.RequiredCards = nil },
		"bad date range":       func(r *Request) { r.DateRange[0] = "not-a-month" },
		"unknown algorithm":    func(r *Request) { r.AnalysisAlgorithm = "magic" },
	}
	for name, mutate := range badCases {
		r := valid
		mutate(&r)
		if err := r.Validate(); err == nil {
			t.Errorf("%s: expected a validation error", name)
		}
	}
}

func newStore(t *testing.T, decks []store.Decklist) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "rec.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	if err := s.InsertDecklists(ctx, decks); err != nil {
		t.Fatalf("insert decks: %v", err)
	}
	if err := s.RebuildCountIndexes(ctx); err != nil {
		t.Fatalf("rebuild indexes: %v", err)
	}
	return s
}

func deck(id, canonical, name string, created time.Time, slots map[string]int) store.Decklist {
	return store.Decklist{
		ID:                        id,
		Name:                      "Deck " + id,
		DateCreation:              created,
		DateUpdate:                created,
		InvestigatorName:          name,
		CanonicalInvestigatorCode: canonical,
		Slots:                     slots,
	}
}

func march(dayOfMonth int) time.Time {
	return time.Date(2024, time.March, dayOfMonth, 12, 0, 0, 0, time.UTC)
}

func TestRecommendAbsolutePercentage(t *testing.T) {
	s := newStore(t, []store.Decklist{
		deck("d1", "01001-01001", "Roland Banks", march(1), map[string]int{"c1": 2, "c2": 1}),
		deck("d2", "01001-01001", "Roland Banks", march(2), map[string]int{"c1": 2}),
		deck("d3", "01001-01001", "Roland Banks", march(3), map[string]int{"c2": 1}),
		deck("d4", "01001-01001", "Roland Banks", march(4), map[string]int{"c1": 1}),
	})
	r := &Recommender{Store: s, Log: zap.NewNop()}

	resp, err := r.Recommend(context.Background(), &Request{
		CanonicalInvestigatorCode: "01001-01001",
		RequiredCards:             []string{},
		CardsToRecommend:          []string{"c1", "c2"},
		DateRange:                 [2]string{"2024-01", "2024-12"},
		AnalysisAlgorithm:         AlgorithmAbsolutePercentage,
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if resp.DecksAnalyzed != 4 {
		t.Errorf("DecksAnalyzed = %d, want 4", resp.DecksAnalyzed)
	}
	byCard := map[string]Recommendation{}
	for _, rec := range resp.Recommendations {
		byCard[rec.CardCode] = rec
	}
	if got := byCard["c1"].Recommendation; math.Abs(got-75) > 1e-9 {
		t.Errorf("c1 = %v, want 75%% (3 of 4 decks)", got)
	}
	if got := byCard["c2"].Recommendation; math.Abs(got-50) > 1e-9 {
		t.Errorf("c2 = %v, want 50%% (2 of 4 decks)", got)
	}
	if byCard["c1"].Explanation == "" {
		t.Error("explanations should name the investigator and the counts")
	}
}

func TestRecommendUnknownInvestigatorIsEmpty(t *testing.T) {
	s := newStore(t, nil)
	r := &Recommender{Store: s, Log: zap.NewNop()}

	resp, err := r.Recommend(context.Background(), &Request{
		CanonicalInvestigatorCode: "09999-09999",
		RequiredCards:             []string{},
		CardsToRecommend:          []string{"c1"},
		DateRange:                 [2]string{"2024-01", "2024-12"},
		AnalysisAlgorithm:         AlgorithmAbsolutePercentage,
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if resp.DecksAnalyzed != 0 || len(resp.Recommendations) != 0 {
		t.Errorf("resp = %+v, want an empty result", resp)
	}
}

func TestRecommendPercentileRank(t *testing.T) {
	// Roland uses c1 in every deck; peers use it less. Rank should be high
	// and the result floor-rounded.
	s := newStore(t, []store.Decklist{
		deck("d1", "01001-01001", "Roland Banks", march(1), map[string]int{"c1": 2}),
		deck("d2", "01001-01001", "Roland Banks", march(2), map[string]int{"c1": 2}),
		deck("d3", "02002-02002", "Daisy Walker", march(3), map[string]int{"c1": 1}),
		deck("d4", "02002-02002", "Daisy Walker", march(4), map[string]int{"c9": 1}),
		deck("d5", "03003-03003", "Skids O'Toole", march(5), map[string]int{"c1": 1}),
		deck("d6", "03003-03003", "Skids O'Toole", march(6), map[string]int{"c9": 1}),
	})
	r := &Recommender{Store: s, Log: zap.NewNop()}

	resp, err := r.Recommend(context.Background(), &Request{
		CanonicalInvestigatorCode: "01001-01001",
		RequiredCards:             []string{},
		CardsToRecommend:          []string{"c1"},
		DateRange:                 [2]string{"2024-01", "2024-12"},
		AnalysisAlgorithm:         AlgorithmPercentileRank,
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if resp.DecksAnalyzed != 6 {
		t.Errorf("DecksAnalyzed = %d, want the whole corpus", resp.DecksAnalyzed)
	}
	if len(resp.Recommendations) != 1 {
		t.Fatalf("recommendations = %+v, want one entry", resp.Recommendations)
	}
	got := resp.Recommendations[0]
	// Pool is {50, 50, 100}: Roland's 100% ranks at the top.
	if got.Recommendation != 100 {
		t.Errorf("Recommendation = %v, want 100", got.Recommendation)
	}
	if got.Recommendation != math.Floor(got.Ordering) {
		t.Errorf("display score %v should be the floored ordering %v",
			got.Recommendation, got.Ordering)
	}
}

func TestRecommendPercentileRankSkipsRareCards(t *testing.T) {
	// Roland uses c1 in 1 of 25 decks (4%), below the floor.
	decks := make([]store.Decklist, 0, 27)
	decks = append(decks,
		deck("d0", "01001-01001", "Roland Banks", march(1), map[string]int{"c1": 1}))
	for i := 1; i < 25; i++ {
		decks = append(decks,
			deck(string(rune('a'+i))+"r", "01001-01001", "Roland Banks", march(1+i%27),
				map[string]int{"c9": 1}))
	}
	decks = append(decks,
		deck("p1", "02002-02002", "Daisy Walker", march(2), map[string]int{"c1": 1}),
		deck("p2", "02002-02002", "Daisy Walker", march(3), map[string]int{"c9": 1}))
	s := newStore(t, decks)
	r := &Recommender{Store: s, Log: zap.NewNop()}

	resp, err := r.Recommend(context.Background(), &Request{
		CanonicalInvestigatorCode: "01001-01001",
		RequiredCards:             []string{},
		CardsToRecommend:          []string{"c1"},
		DateRange:                 [2]string{"2024-01", "2024-12"},
		AnalysisAlgorithm:         AlgorithmPercentileRank,
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(resp.Recommendations) != 0 {
		t.Errorf("recommendations = %+v, want rare cards filtered out", resp.Recommendations)
	}
}

func TestRecommendPercentileRankSkipsCardsWithoutPeers(t *testing.T) {
	s := newStore(t, []store.Decklist{
		deck("d1", "01001-01001", "Roland Banks", march(1), map[string]int{"c1": 2}),
		deck("d2", "02002-02002", "Daisy Walker", march(2), map[string]int{"c9": 1}),
	})
	r := &Recommender{Store: s, Log: zap.NewNop()}

	resp, err := r.Recommend(context.Background(), &Request{
		CanonicalInvestigatorCode: "01001-01001",
		RequiredCards:             []string{},
		CardsToRecommend:          []string{"c1"},
		DateRange:                 [2]string{"2024-01", "2024-12"},
		AnalysisAlgorithm:         AlgorithmPercentileRank,
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(resp.Recommendations) != 0 {
		t.Errorf("recommendations = %+v, want no rank without a peer pool", resp.Recommendations)
	}
}

func TestRequiredCardsDroppedFromCandidates(t *testing.T) {
	s := newStore(t, []store.Decklist{
		deck("d1", "01001-01001", "Roland Banks", march(1), map[string]int{"req": 1, "c1": 2}),
	})
	r := &Recommender{Store: s, Log: zap.NewNop()}

	resp, err := r.Recommend(context.Background(), &Request{
		CanonicalInvestigatorCode: "01001-01001",
		RequiredCards:             []string{"req"},
		CardsToRecommend:          []string{"req", "c1"},
		DateRange:                 [2]string{"2024-01", "2024-12"},
		AnalysisAlgorithm:         AlgorithmAbsolutePercentage,
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for _, rec := range resp.Recommendations {
		if rec.CardCode == "req" {
			t.Error("required cards must not be recommended back")
		}
	}
	if len(resp.Recommendations) != 1 {
		t.Errorf("recommendations = %+v, want just the non-required card", resp.Recommendations)
	}
}
