// Package ingest pulls the card feed and published decklists from their
// public APIs and loads them into the store. Decklists are published per
// day; the sync walks backwards from two days ago until it reaches a day
// that was already ingested.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/peterkuimelis/deckrec/internal/card"
	"github.com/peterkuimelis/deckrec/internal/store"
	"go.uber.org/zap"
)

// Default feed locations.
const (
	DefaultCardsURL     = "https://api.arkham.build/v1/cache/cards"
	DefaultDecklistsURL = "https://arkhamdb.com/api/public/decklists/by_date/"
)

// epoch is the day the first decklists were published; the backwards walk
// stops here.
var epoch = time.Date(2016, time.October, 2, 0, 0, 0, 0, time.UTC)

// Client fetches the card catalog and daily decklists.
type Client struct {
	HTTP         *http.Client
	CardsURL     string
	DecklistsURL string
}

// NewClient returns a client with the default feed URLs and a 30 second
// request timeout.
func NewClient() *Client {
	return &Client{
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		CardsURL:     DefaultCardsURL,
		DecklistsURL: DefaultDecklistsURL,
	}
}

// SlotMap is a card code -> copy count map. The decklist feed encodes an
// empty side deck as a JSON array, which decodes to an empty map.
type SlotMap map[string]int

func (m *SlotMap) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		*m = SlotMap{}
		return nil
	}
	var plain map[string]int
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	*m = SlotMap(plain)
	return nil
}

// Deck is one published decklist as the feed serves it.
type Deck struct {
	ID               json.Number `json:"id"`
	Name             string      `json:"name"`
	DateCreation     string      `json:"date_creation"`
	DateUpdate       string      `json:"date_update"`
	InvestigatorCode string      `json:"investigator_code"`
	InvestigatorName string      `json:"investigator_name"`
	Slots            SlotMap     `json:"slots"`
	SideSlots        SlotMap     `json:"sideSlots"`
	Meta             string      `json:"meta"`
	TabooID          int         `json:"taboo_id"`
	Source           string      `json:"source"`
}

// deckMeta is the subset of the deck's meta JSON the canonicalizer reads.
type deckMeta struct {
	AlternateFront string `json:"alternate_front"`
	AlternateBack  string `json:"alternate_back"`
}

func decodeMeta(meta string) deckMeta {
	var m deckMeta
	// Meta is user-supplied; a decode failure just means no alternates.
	_ = json.Unmarshal([]byte(meta), &m)
	return m
}

// ServerError is the feed's in-band error envelope for days with no data.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("decklist feed error %d: %s", e.Code, e.Message)
}

// FetchCards downloads the full card feed.
func (c *Client) FetchCards(ctx context.Context) ([]*card.Card, error) {
	body, err := c.get(ctx, c.CardsURL)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			AllCard []*card.Card `json:"all_card"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode card feed: %w", err)
	}
	return payload.Data.AllCard, nil
}

// FetchDecklists downloads the decklists published on the given day. Days
// the feed has no data for surface as a *ServerError.
func (c *Client) FetchDecklists(ctx context.Context, day time.Time) ([]Deck, error) {
	url := c.DecklistsURL + day.UTC().Format("2006-01-02")
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return nil, &ServerError{Code: envelope.Error.Code, Message: envelope.Error.Message}
	}

	var decks []Deck
	if err := json.Unmarshal(body, &decks); err != nil {
		return nil, fmt.Errorf("decode decklists for %s: %w", day.Format("2006-01-02"), err)
	}
	return decks, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}

// remap replaces reprint codes with their base printing codes in place.
func remap(slots SlotMap, dupes map[string]string) {
	for code, count := range slots {
		if base, ok := dupes[code]; ok {
			delete(slots, code)
			slots[base] = count
		}
	}
}

// parseDeckDate accepts the feed's timestamp variants.
func parseDeckDate(value string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Canonicalize normalizes a feed deck for storage: reprint codes collapse to
// their base printings, and the canonical investigator code is the parallel
// front and back pair joined as "front-back".
func Canonicalize(d Deck, dupes map[string]string) store.Decklist {
	if base, ok := dupes[d.InvestigatorCode]; ok {
		d.InvestigatorCode = base
	}
	remap(d.Slots, dupes)
	remap(d.SideSlots, dupes)

	meta := decodeMeta(d.Meta)
	front := d.InvestigatorCode
	if meta.AlternateFront != "" {
		front = meta.AlternateFront
	}
	back := d.InvestigatorCode
	if meta.AlternateBack != "" {
		back = meta.AlternateBack
	}
	if base, ok := dupes[front]; ok {
		front = base
	}
	if base, ok := dupes[back]; ok {
		back = base
	}

	return store.Decklist{
		ID:                        d.ID.String(),
		Name:                      d.Name,
		DateCreation:              parseDeckDate(d.DateCreation),
		DateUpdate:                parseDeckDate(d.DateUpdate),
		InvestigatorCode:          d.InvestigatorCode,
		InvestigatorName:          d.InvestigatorName,
		TabooID:                   d.TabooID,
		Source:                    d.Source,
		CanonicalInvestigatorCode: front + "-" + back,
		Slots:                     map[string]int(d.Slots),
		SideSlots:                 map[string]int(d.SideSlots),
	}
}

// Syncer runs the full ingest: cards, then the backwards decklist walk,
// then the count index rebuild when anything changed.
type Syncer struct {
	Store  *store.Store
	Client *Client
	Log    *zap.Logger
}

// Sync ingests new data. With force set the count indexes are rebuilt even
// when nothing new arrived.
func (s *Syncer) Sync(ctx context.Context, force bool) error {
	cards, err := s.Client.FetchCards(ctx)
	if err != nil {
		return fmt.Errorf("sync cards: %w", err)
	}
	rows := make([]store.CardRow, 0, len(cards))
	seen := make(map[string]bool, len(cards))
	for _, c := range cards {
		if seen[c.Code] {
			continue
		}
		seen[c.Code] = true
		rows = append(rows, store.CardRow{
			Code:            c.Code,
			RealName:        c.RealName,
			DuplicateOfCode: c.DuplicateOfCode,
		})
	}
	cardsChanged, err := s.Store.ReplaceCards(ctx, rows)
	if err != nil {
		return fmt.Errorf("store cards: %w", err)
	}
	s.Log.Info("cards synced", zap.Int("cards", len(rows)), zap.Bool("changed", cardsChanged))

	dupes, err := s.Store.DuplicateMap(ctx)
	if err != nil {
		return fmt.Errorf("load duplicate map: %w", err)
	}

	newDecks, err := s.syncDecklists(ctx, dupes)
	if err != nil {
		return err
	}

	if !newDecks && !cardsChanged && !force {
		s.Log.Info("sync complete, no reindex needed")
		return nil
	}
	s.Log.Info("rebuilding count indexes")
	if err := s.Store.RebuildCountIndexes(ctx); err != nil {
		return fmt.Errorf("rebuild count indexes: %w", err)
	}
	if err := s.Store.ClearResponseCache(ctx); err != nil {
		return fmt.Errorf("clear response cache: %w", err)
	}
	s.Log.Info("sync complete")
	return nil
}

// syncDecklists walks backwards one day at a time, stopping at the first
// already-ingested day. Today and yesterday are skipped: the feed for those
// days may still be filling in.
func (s *Syncer) syncDecklists(ctx context.Context, dupes map[string]string) (bool, error) {
	day := time.Now().UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour)

	ingested := false
	for ; !day.Before(epoch); day = day.AddDate(0, 0, -1) {
		if err := ctx.Err(); err != nil {
			return ingested, err
		}
		done, err := s.Store.HasIngested(ctx, day)
		if err != nil {
			return ingested, err
		}
		if done {
			break
		}

		decks, err := s.Client.FetchDecklists(ctx, day)
		if err != nil {
			var serverErr *ServerError
			if errors.As(err, &serverErr) {
				s.Log.Warn("decklist feed error, skipping day",
					zap.String("day", day.Format("2006-01-02")),
					zap.Error(serverErr))
				continue
			}
			return ingested, err
		}

		stored := make([]store.Decklist, len(decks))
		for i, d := range decks {
			stored[i] = Canonicalize(d, dupes)
		}
		if err := s.Store.InsertDecklists(ctx, stored); err != nil {
			return ingested, err
		}
		if err := s.Store.MarkIngested(ctx, day); err != nil {
			return ingested, err
		}
		ingested = true
		s.Log.Debug("day ingested",
			zap.String("day", day.Format("2006-01-02")),
			zap.Int("decks", len(decks)))
	}
	return ingested, nil
}
