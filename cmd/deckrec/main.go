package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/peterkuimelis/deckrec/internal/access"
	"github.com/peterkuimelis/deckrec/internal/catalog"
	"github.com/peterkuimelis/deckrec/internal/diag"
	"github.com/peterkuimelis/deckrec/internal/ingest"
	"github.com/peterkuimelis/deckrec/internal/rec"
	"github.com/peterkuimelis/deckrec/internal/store"
	"github.com/peterkuimelis/deckrec/internal/web"
	"go.uber.org/zap"
)

// config carries the environment-driven settings. Flags override these.
type config struct {
	DBPath       string `env:"DECKREC_DB" envDefault:"deckrec.db"`
	Addr         string `env:"DECKREC_ADDR" envDefault:":9190"`
	CardsURL     string `env:"DECKREC_CARDS_URL" envDefault:"https://api.arkham.build/v1/cache/cards"`
	DecklistsURL string `env:"DECKREC_DECKLISTS_URL" envDefault:"https://arkhamdb.com/api/public/decklists/by_date/"`
	TabooSetID   int    `env:"DECKREC_TABOO_SET" envDefault:"0"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sync":
		runSync(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  deckrec sync  [--db PATH] [--force]")
	fmt.Println("  deckrec serve [--db PATH] [--addr ADDR] [--taboo ID]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  sync    Ingest the card feed and new published decklists")
	fmt.Println("  serve   Run the access-check and recommendation HTTP API")
	fmt.Println()
	fmt.Println("Environment: DECKREC_DB, DECKREC_ADDR, DECKREC_CARDS_URL,")
	fmt.Println("  DECKREC_DECKLISTS_URL, DECKREC_TABOO_SET")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		fatal(fmt.Errorf("initialize logger: %w", err))
	}
	return logger
}

// signalContext cancels on SIGINT/SIGTERM so a long sync can stop cleanly.
func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}

func newClient(cfg config) *ingest.Client {
	client := ingest.NewClient()
	client.CardsURL = cfg.CardsURL
	client.DecklistsURL = cfg.DecklistsURL
	return client
}

func runSync(args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}

	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "path to the SQLite database")
	force := fs.Bool("force", false, "rebuild the count indexes even when nothing new arrived")
	fs.Parse(args)

	logger := newLogger()
	defer logger.Sync()

	st, err := store.Open(*dbPath)
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	syncer := &ingest.Syncer{
		Store:  st,
		Client: newClient(cfg),
		Log:    logger,
	}
	if err := syncer.Sync(signalContext(), *force); err != nil {
		fatal(err)
	}
}

func runServe(args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "path to the SQLite database")
	addr := fs.String("addr", cfg.Addr, "address to listen on")
	tabooSetID := fs.Int("taboo", cfg.TabooSetID, "taboo set id to apply to the catalog (0 for none)")
	fs.Parse(args)

	logger := newLogger()
	defer logger.Sync()

	st, err := store.Open(*dbPath)
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	ctx := signalContext()
	cards, err := newClient(cfg).FetchCards(ctx)
	if err != nil {
		fatal(fmt.Errorf("load card catalog: %w", err))
	}
	logger.Info("card catalog loaded", zap.Int("cards", len(cards)))

	cat := catalog.Build(cards, *tabooSetID, nil)
	engine := access.New(cat, diag.NewZap(logger))
	recommender := &rec.Recommender{Store: st, Engine: engine, Log: logger}

	srv := web.NewServer(engine, st, recommender, logger)
	if err := srv.ListenAndServe(*addr); err != nil {
		fatal(err)
	}
}
