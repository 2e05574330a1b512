package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/peterkuimelis/deckrec/internal/access"
	"github.com/peterkuimelis/deckrec/internal/catalog"
	"github.com/peterkuimelis/deckrec/internal/ingest"
	deckrecmcp "github.com/peterkuimelis/deckrec/internal/mcp"
	"github.com/peterkuimelis/deckrec/internal/rec"
	"github.com/peterkuimelis/deckrec/internal/store"
	"go.uber.org/zap"
)

func main() {
	dbPath := flag.String("db", "", "path to the SQLite decklist database (optional; enables recommend_cards)")
	cardsURL := flag.String("cards-url", ingest.DefaultCardsURL, "card feed URL")
	tabooSetID := flag.Int("taboo", 0, "taboo set id to apply to the catalog (0 for none)")
	flag.Parse()

	client := ingest.NewClient()
	client.CardsURL = *cardsURL
	cards, err := client.FetchCards(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load card catalog: %v\n", err)
		os.Exit(1)
	}

	cat := catalog.Build(cards, *tabooSetID, nil)
	engine := access.New(cat, nil)
	deckrecmcp.SetEngine(engine)

	if *dbPath != "" {
		st, err := store.Open(*dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()
		deckrecmcp.SetRecommender(&rec.Recommender{
			Store:  st,
			Engine: engine,
			Log:    zap.NewNop(),
		})
	}

	s := server.NewMCPServer("deckrec", "1.0.0")
	deckrecmcp.RegisterTools(s)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
