// Package mcp exposes deck-building access checks and card recommendations
// as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/peterkuimelis/deckrec/internal/access"
	"github.com/peterkuimelis/deckrec/internal/card"
	"github.com/peterkuimelis/deckrec/internal/rec"
)

// engine and recommender are the process-wide backends, set by main.
var (
	engine      *access.Engine
	recommender *rec.Recommender
)

// SetEngine sets the access engine the tools query.
func SetEngine(e *access.Engine) {
	engine = e
}

// SetRecommender sets the recommender backing recommend_cards. A nil
// recommender disables that tool's handler with an error result.
func SetRecommender(r *rec.Recommender) {
	recommender = r
}

// RegisterTools adds all deckrec tools to the MCP server.
func RegisterTools(s *server.MCPServer) {
	s.AddTool(checkCardAccessTool(), handleCheckCardAccess)
	s.AddTool(listAccessibleCardsTool(), handleListAccessibleCards)
	s.AddTool(recommendCardsTool(), handleRecommendCards)
}

// --- Tool definitions ---

func checkCardAccessTool() mcp.Tool {
	return mcp.NewTool("check_card_access",
		mcp.WithDescription("Check whether an investigator's deck-building rules allow including a card. "+
			"Returns the verdict with the codes echoed back."),
		mcp.WithString("investigator_code", mcp.Required(), mcp.Description("Card code of the investigator (e.g. '01001')")),
		mcp.WithString("card_code", mcp.Required(), mcp.Description("Card code to check")),
		mcp.WithString("target_deck", mcp.Description("Which deck to check: 'slots' (default), 'extraSlots', or 'both'")),
	)
}

func listAccessibleCardsTool() mcp.Tool {
	return mcp.NewTool("list_accessible_cards",
		mcp.WithDescription("List every player card an investigator can include, optionally narrowed by faction, trait, type, and maximum level."),
		mcp.WithString("investigator_code", mcp.Required(), mcp.Description("Card code of the investigator")),
		mcp.WithString("faction", mcp.Description("Only include cards of this faction code")),
		mcp.WithString("trait", mcp.Description("Only include cards with this trait (e.g. 'Spell')")),
		mcp.WithString("card_type", mcp.Description("Only include cards of this type code (e.g. 'asset')")),
		mcp.WithNumber("max_level", mcp.Description("Only include cards of this level or lower")),
		mcp.WithString("target_deck", mcp.Description("Which deck to check: 'slots' (default), 'extraSlots', or 'both'")),
	)
}

func recommendCardsTool() mcp.Tool {
	return mcp.NewTool("recommend_cards",
		mcp.WithDescription("Recommend cards for an investigator from the published decklist corpus. "+
			"Scores are the share of the investigator's decks using each card."),
		mcp.WithString("investigator_code", mcp.Required(), mcp.Description("Card code of the investigator")),
		mcp.WithString("card_codes", mcp.Description("Space-separated card codes to score. Defaults to every accessible card.")),
		mcp.WithString("from_month", mcp.Description("Start month (YYYY-MM). Defaults to 2016-10.")),
		mcp.WithString("to_month", mcp.Description("End month (YYYY-MM), inclusive. Defaults to the current month.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of recommendations to return. Defaults to 25.")),
	)
}

// --- Tool handlers ---

func respondJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return `{"error": "encoding failure"}`
	}
	return string(data)
}

func handleCheckCardAccess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	investigatorCode := request.GetString("investigator_code", "")
	cardCode := request.GetString("card_code", "")
	if investigatorCode == "" || cardCode == "" {
		return mcp.NewToolResultError("investigator_code and card_code are required."), nil
	}
	if engine.Catalog().Card(investigatorCode) == nil {
		return mcp.NewToolResultErrorf("Unknown investigator code '%s'.", investigatorCode), nil
	}
	if engine.Catalog().Card(cardCode) == nil {
		return mcp.NewToolResultErrorf("Unknown card code '%s'.", cardCode), nil
	}

	cfg := access.Config{TargetDeck: access.TargetDeck(request.GetString("target_deck", ""))}
	allowed := engine.CanInclude(investigatorCode, cardCode, cfg)

	return mcp.NewToolResultText(respondJSON(map[string]any{
		"investigator_code": investigatorCode,
		"card_code":         cardCode,
		"allowed":           allowed,
	})), nil
}

// cardSummary is the per-card line in list_accessible_cards output.
type cardSummary struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Faction string `json:"faction"`
	XP      int    `json:"xp"`
}

func accessibleCards(investigator *card.Card, cfg access.Config) []cardSummary {
	filter := engine.FilterInvestigatorAccess(investigator, cfg)
	if filter == nil {
		return nil
	}

	var cards []cardSummary
	for _, c := range engine.Catalog().Cards {
		if !filter(c) {
			continue
		}
		level, _ := c.Level()
		cards = append(cards, cardSummary{
			Code:    c.Code,
			Name:    c.RealName,
			Faction: c.FactionCode,
			XP:      level,
		})
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Code < cards[j].Code })
	return cards
}

func handleListAccessibleCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	investigatorCode := request.GetString("investigator_code", "")
	investigator := engine.Catalog().Card(investigatorCode)
	if investigator == nil {
		return mcp.NewToolResultErrorf("Unknown investigator code '%s'.", investigatorCode), nil
	}

	cfg := access.Config{TargetDeck: access.TargetDeck(request.GetString("target_deck", ""))}
	cards := accessibleCards(investigator, cfg)
	if cards == nil {
		return mcp.NewToolResultErrorf("'%s' has no deck-building rules.", investigatorCode), nil
	}

	faction := request.GetString("faction", "")
	trait := card.Capitalize(request.GetString("trait", ""))
	cardType := request.GetString("card_type", "")
	maxLevel := request.GetInt("max_level", -1)
	filtered := cards[:0]
	for _, c := range cards {
		if faction != "" && c.Faction != faction {
			continue
		}
		if trait != "" && !engine.Catalog().CardHasTrait(trait, c.Code) {
			continue
		}
		if cardType != "" && engine.Catalog().Card(c.Code).TypeCode != cardType {
			continue
		}
		if maxLevel >= 0 && c.XP > maxLevel {
			continue
		}
		filtered = append(filtered, c)
	}

	return mcp.NewToolResultText(respondJSON(map[string]any{
		"investigator_code": investigatorCode,
		"count":             len(filtered),
		"cards":             filtered,
	})), nil
}

func handleRecommendCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if recommender == nil {
		return mcp.NewToolResultError("No decklist database is configured. Start the server with a database path."), nil
	}

	investigatorCode := request.GetString("investigator_code", "")
	investigator := engine.Catalog().Card(investigatorCode)
	if investigator == nil {
		return mcp.NewToolResultErrorf("Unknown investigator code '%s'.", investigatorCode), nil
	}

	var candidates []string
	if codes := strings.TrimSpace(request.GetString("card_codes", "")); codes != "" {
		candidates = strings.Fields(codes)
	} else {
		for _, c := range accessibleCards(investigator, access.Config{}) {
			candidates = append(candidates, c.Code)
		}
	}
	if len(candidates) == 0 {
		return mcp.NewToolResultError("No candidate cards to score."), nil
	}

	fromMonth := request.GetString("from_month", "2016-10")
	toMonth := request.GetString("to_month", time.Now().UTC().Format("2006-01"))

	req := &rec.Request{
		CanonicalInvestigatorCode: investigatorCode + "-" + investigatorCode,
		RequiredCards:             []string{},
		CardsToRecommend:          candidates,
		DateRange:                 [2]string{fromMonth, toMonth},
		AnalysisAlgorithm:         rec.AlgorithmAbsolutePercentage,
	}
	if err := req.Validate(); err != nil {
		return mcp.NewToolResultErrorf("Invalid request: %v", err), nil
	}

	resp, err := recommender.Recommend(ctx, req)
	if err != nil {
		return mcp.NewToolResultErrorf("Recommendation failed: %v", err), nil
	}

	recs := resp.Recommendations
	sort.Slice(recs, func(i, j int) bool { return recs[i].Ordering > recs[j].Ordering })
	limit := request.GetInt("limit", 25)
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	return mcp.NewToolResultText(respondJSON(map[string]any{
		"investigator_code": investigatorCode,
		"decks_analyzed":    resp.DecksAnalyzed,
		"recommendations":   recs,
	})), nil
}
