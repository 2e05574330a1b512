// Package store persists ingested decklists and the derived monthly count
// indexes in SQLite. One writer (the sync job) and many readers (the
// recommendation and web layers) share a single handle; WAL mode keeps the
// readers unblocked during ingestion.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Timestamp layouts. Text storage keeps date-range comparisons lexical.
const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
	monthLayout    = "2006-01-02"
)

// CardRow is the slim card record the deck canonicalizer needs.
type CardRow struct {
	Code            string
	RealName        string
	DuplicateOfCode string
}

// Decklist is one published deck, canonicalized for storage.
type Decklist struct {
	ID                        string
	Name                      string
	DateCreation              time.Time
	DateUpdate                time.Time
	InvestigatorCode          string
	InvestigatorName          string
	TabooID                   int
	Source                    string
	CanonicalInvestigatorCode string
	Slots                     map[string]int
	SideSlots                 map[string]int
}

// InclusionCount is one card's usage among one investigator's analyzed decks.
type InclusionCount struct {
	CardCode                  string
	CanonicalInvestigatorCode string
	DecksAnalyzed             int
	DecksWithCard             int
}

// Store is the SQLite-backed decklist database.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and ensures the schema. The schema is
// idempotent, so opening an existing database is safe.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ReplaceCards swaps the card table for the given rows and reports whether
// the row count changed, which signals that the count indexes need a rebuild.
func (s *Store) ReplaceCards(ctx context.Context, cards []CardRow) (changed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var before int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&before); err != nil {
		return false, fmt.Errorf("count cards: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cards`); err != nil {
		return false, fmt.Errorf("clear cards: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cards (code, real_name, duplicate_of_code) VALUES (?, ?, ?)`)
	if err != nil {
		return false, fmt.Errorf("prepare card insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range cards {
		if _, err := stmt.ExecContext(ctx, c.Code, c.RealName, c.DuplicateOfCode); err != nil {
			return false, fmt.Errorf("insert card %s: %w", c.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit cards: %w", err)
	}
	return before != len(cards), nil
}

// DuplicateMap returns reprint code -> base printing code.
func (s *Store) DuplicateMap(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, duplicate_of_code FROM cards WHERE duplicate_of_code != ''`)
	if err != nil {
		return nil, fmt.Errorf("query duplicates: %w", err)
	}
	defer rows.Close()

	dupes := make(map[string]string)
	for rows.Next() {
		var code, base string
		if err := rows.Scan(&code, &base); err != nil {
			return nil, fmt.Errorf("scan duplicate: %w", err)
		}
		dupes[code] = base
	}
	return dupes, rows.Err()
}

// InsertDecklists stores the decklists with their slot rows in one
// transaction. Existing ids are replaced, so re-ingesting a day is safe.
func (s *Store) InsertDecklists(ctx context.Context, decks []Decklist) error {
	if len(decks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	deckStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO decklists (
			id, name, date_creation, date_update,
			investigator_code, investigator_name,
			taboo_id, source, canonical_investigator_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare decklist insert: %w", err)
	}
	defer deckStmt.Close()

	slotStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO decklist_slots (decklist_id, card_code, count) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare slot insert: %w", err)
	}
	defer slotStmt.Close()

	sideStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO decklist_side_slots (decklist_id, card_code, count) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare side slot insert: %w", err)
	}
	defer sideStmt.Close()

	for _, d := range decks {
		_, err := deckStmt.ExecContext(ctx,
			d.ID, d.Name,
			d.DateCreation.UTC().Format(dateTimeLayout),
			d.DateUpdate.UTC().Format(dateTimeLayout),
			d.InvestigatorCode, d.InvestigatorName,
			d.TabooID, d.Source, d.CanonicalInvestigatorCode)
		if err != nil {
			return fmt.Errorf("insert decklist %s: %w", d.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM decklist_slots WHERE decklist_id = ?`, d.ID); err != nil {
			return fmt.Errorf("clear slots %s: %w", d.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM decklist_side_slots WHERE decklist_id = ?`, d.ID); err != nil {
			return fmt.Errorf("clear side slots %s: %w", d.ID, err)
		}
		for code, count := range d.Slots {
			if _, err := slotStmt.ExecContext(ctx, d.ID, code, count); err != nil {
				return fmt.Errorf("insert slot %s/%s: %w", d.ID, code, err)
			}
		}
		for code, count := range d.SideSlots {
			if _, err := sideStmt.ExecContext(ctx, d.ID, code, count); err != nil {
				return fmt.Errorf("insert side slot %s/%s: %w", d.ID, code, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decklists: %w", err)
	}
	return nil
}

// MarkIngested records that the given day's decklists are stored.
func (s *Store) MarkIngested(ctx context.Context, day time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO decklist_ingest_dates (ingest_date) VALUES (?)`,
		day.UTC().Format(dateLayout))
	if err != nil {
		return fmt.Errorf("mark ingested: %w", err)
	}
	return nil
}

// HasIngested reports whether the given day was already ingested.
func (s *Store) HasIngested(ctx context.Context, day time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM decklist_ingest_dates WHERE ingest_date = ?`,
		day.UTC().Format(dateLayout)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check ingested: %w", err)
	}
	return true, nil
}

// DeckCount returns the total number of stored decklists.
func (s *Store) DeckCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decklists`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count decklists: %w", err)
	}
	return n, nil
}

// InvestigatorName resolves the display name recorded for a canonical
// investigator code, or "" when no deck mentions it.
func (s *Store) InvestigatorName(ctx context.Context, canonicalCode string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT investigator_name FROM decklists
		 WHERE canonical_investigator_code = ? LIMIT 1`,
		canonicalCode).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query investigator name: %w", err)
	}
	return name, nil
}

// RebuildCountIndexes recomputes the monthly per-investigator deck and card
// inclusion counts from the raw decklists.
func (s *Store) RebuildCountIndexes(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM investigator_deck_counts`,
		`DELETE FROM card_inclusion_counts`,
		`INSERT INTO investigator_deck_counts
			(canonical_investigator_code, creation_month, deck_count)
		 SELECT d.canonical_investigator_code,
		        strftime('%Y-%m-01', d.date_creation),
		        COUNT(DISTINCT d.id)
		 FROM decklists d
		 GROUP BY d.canonical_investigator_code, strftime('%Y-%m-01', d.date_creation)`,
		`INSERT INTO card_inclusion_counts
			(canonical_investigator_code, card_code, creation_month, deck_count_with_card)
		 SELECT d.canonical_investigator_code,
		        s.card_code,
		        strftime('%Y-%m-01', d.date_creation),
		        COUNT(DISTINCT d.id)
		 FROM decklists d
		 JOIN (
			SELECT decklist_id, card_code FROM decklist_slots
			UNION
			SELECT decklist_id, card_code FROM decklist_side_slots
		 ) s ON s.decklist_id = d.id
		 GROUP BY d.canonical_investigator_code, s.card_code,
		          strftime('%Y-%m-01', d.date_creation)`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("rebuild count indexes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit count indexes: %w", err)
	}
	return nil
}

// placeholders returns "?, ?, ..." for n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// InclusionCountsForInvestigator computes, for each candidate card, how many
// of the investigator's decks in [from, to) include it, scanning the raw
// slot rows. When requiredCards is non-empty only decks containing every
// required card are analyzed.
func (s *Store) InclusionCountsForInvestigator(
	ctx context.Context,
	canonicalCode string,
	from, to time.Time,
	requiredCards []string,
	candidates []string,
	includeSideDecks bool,
) ([]InclusionCount, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := []any{
		from.UTC().Format(dateTimeLayout),
		to.UTC().Format(dateTimeLayout),
		canonicalCode,
	}

	sb.WriteString(`
	WITH filtered_decks AS (
		SELECT id FROM decklists
		WHERE date_creation >= ? AND date_creation < ?
		  AND canonical_investigator_code = ?`)
	if len(requiredCards) > 0 {
		sb.WriteString(`
		  AND id IN (
			SELECT decklist_id FROM (
				SELECT decklist_id, card_code FROM decklist_slots
				WHERE card_code IN (` + placeholders(len(requiredCards)) + `)`)
		for _, c := range requiredCards {
			args = append(args, c)
		}
		if includeSideDecks {
			sb.WriteString(`
				UNION ALL
				SELECT decklist_id, card_code FROM decklist_side_slots
				WHERE card_code IN (` + placeholders(len(requiredCards)) + `)`)
			for _, c := range requiredCards {
				args = append(args, c)
			}
		}
		sb.WriteString(`
			)
			GROUP BY decklist_id
			HAVING COUNT(DISTINCT card_code) = ?
		  )`)
		args = append(args, len(requiredCards))
	}
	sb.WriteString(`
	),
	slots AS (
		SELECT decklist_id, card_code FROM decklist_slots
		WHERE decklist_id IN (SELECT id FROM filtered_decks)`)
	if includeSideDecks {
		sb.WriteString(`
		UNION ALL
		SELECT decklist_id, card_code FROM decklist_side_slots
		WHERE decklist_id IN (SELECT id FROM filtered_decks)`)
	}
	sb.WriteString(`
	)
	SELECT s.card_code,
	       (SELECT COUNT(*) FROM filtered_decks),
	       COUNT(DISTINCT s.decklist_id)
	FROM slots s
	WHERE s.card_code IN (` + placeholders(len(candidates)) + `)
	GROUP BY s.card_code
	ORDER BY s.card_code`)
	for _, c := range candidates {
		args = append(args, c)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query inclusion counts: %w", err)
	}
	defer rows.Close()

	var counts []InclusionCount
	for rows.Next() {
		ic := InclusionCount{CanonicalInvestigatorCode: canonicalCode}
		if err := rows.Scan(&ic.CardCode, &ic.DecksAnalyzed, &ic.DecksWithCard); err != nil {
			return nil, fmt.Errorf("scan inclusion count: %w", err)
		}
		counts = append(counts, ic)
	}
	return counts, rows.Err()
}

// InclusionCountsAllInvestigators reads the monthly count indexes for every
// investigator except the excluded one, restricted to the candidate cards
// and to months overlapping [from, to). Results are ordered by card code
// then investigator code.
func (s *Store) InclusionCountsAllInvestigators(
	ctx context.Context,
	excludeCode string,
	from, to time.Time,
	candidates []string,
) ([]InclusionCount, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	fromMonth := monthFloor(from).Format(monthLayout)
	toMonth := monthFloor(to).Format(monthLayout)

	query := `
	WITH decks_analyzed AS (
		SELECT canonical_investigator_code, SUM(deck_count) AS decks_analyzed
		FROM investigator_deck_counts
		WHERE creation_month >= ? AND creation_month <= ?
		GROUP BY canonical_investigator_code
	)
	SELECT c.card_code,
	       c.canonical_investigator_code,
	       da.decks_analyzed,
	       SUM(c.deck_count_with_card)
	FROM card_inclusion_counts c
	JOIN decks_analyzed da
	  ON da.canonical_investigator_code = c.canonical_investigator_code
	WHERE c.creation_month >= ? AND c.creation_month <= ?
	  AND c.canonical_investigator_code != ?
	  AND c.card_code IN (` + placeholders(len(candidates)) + `)
	GROUP BY c.card_code, c.canonical_investigator_code
	ORDER BY c.card_code, c.canonical_investigator_code`

	args := []any{fromMonth, toMonth, fromMonth, toMonth, excludeCode}
	for _, c := range candidates {
		args = append(args, c)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query all-investigator counts: %w", err)
	}
	defer rows.Close()

	var counts []InclusionCount
	for rows.Next() {
		var ic InclusionCount
		if err := rows.Scan(&ic.CardCode, &ic.CanonicalInvestigatorCode,
			&ic.DecksAnalyzed, &ic.DecksWithCard); err != nil {
			return nil, fmt.Errorf("scan all-investigator count: %w", err)
		}
		counts = append(counts, ic)
	}
	return counts, rows.Err()
}

// DecksAnalyzedInRange sums the monthly deck counts across all
// investigators for months overlapping [from, to).
func (s *Store) DecksAnalyzedInRange(ctx context.Context, from, to time.Time) (int, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(deck_count) FROM investigator_deck_counts
		WHERE creation_month >= ? AND creation_month <= ?`,
		monthFloor(from).Format(monthLayout),
		monthFloor(to).Format(monthLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sum deck counts: %w", err)
	}
	return int(n.Int64), nil
}

// CachedResponse returns the cached recommendation response for the request
// hash, or ok=false.
func (s *Store) CachedResponse(ctx context.Context, requestHash string) ([]byte, bool, error) {
	var response []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT response FROM recommendation_cache WHERE request_hash = ?`,
		requestHash).Scan(&response)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query recommendation cache: %w", err)
	}
	return response, true, nil
}

// SaveResponse caches a recommendation response under its request hash.
func (s *Store) SaveResponse(ctx context.Context, requestHash string, response []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO recommendation_cache (request_hash, response) VALUES (?, ?)`,
		requestHash, response)
	if err != nil {
		return fmt.Errorf("save recommendation cache: %w", err)
	}
	return nil
}

// ClearResponseCache drops all cached recommendation responses. Called
// after an ingest run changes the underlying data.
func (s *Store) ClearResponseCache(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recommendation_cache`); err != nil {
		return fmt.Errorf("clear recommendation cache: %w", err)
	}
	return nil
}

// monthFloor truncates a time to the first day of its month.
func monthFloor(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
