package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSlotMapToleratesArrayEncoding(t *testing.T) {
	var m SlotMap
	if err := json.Unmarshal([]byte(`[]`), &m); err != nil {
		t.Fatalf("unmarshal array: %v", err)
	}
	if m == nil || len(m) != 0 {
		t.Errorf("m = %v, want an empty map", m)
	}

	if err := json.Unmarshal([]byte(`{"01001": 2}`), &m); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if m["01001"] != 2 {
		t.Errorf("m = %v, want the object decoded", m)
	}
}

func TestParseDeckDate(t *testing.T) {
	cases := []string{
		"2024-03-01T12:34:56+00:00",
		"2024-03-01 12:34:56",
		"2024-03-01",
	}
	for _, in := range cases {
		got := parseDeckDate(in)
		if got.IsZero() {
			t.Errorf("parseDeckDate(%q) is zero", in)
		}
		if got.Year() != 2024 || got.Month() != time.March {
			t.Errorf("parseDeckDate(%q) = %v", in, got)
		}
	}
	if !parseDeckDate("garbage").IsZero() {
		t.Error("unparseable dates yield the zero time")
	}
}

func TestCanonicalize(t *testing.T) {
	dupes := map[string]string{
		"01501": "01001",
		"01596": "01096",
	}
	d := Deck{
		ID:               json.Number("12345"),
		Name:             "Test Deck",
		DateCreation:     "2024-03-01 10:00:00",
		InvestigatorCode: "01501",
		InvestigatorName: "Roland Banks",
		Slots:            SlotMap{"01596": 2, "02010": 1},
		SideSlots:        SlotMap{},
		Meta:             `{"alternate_front":"","alternate_back":"90024"}`,
		TabooID:          7,
	}

	got := Canonicalize(d, dupes)
	if got.ID != "12345" {
		t.Errorf("ID = %q", got.ID)
	}
	if got.InvestigatorCode != "01001" {
		t.Errorf("InvestigatorCode = %q, want the reprint collapsed", got.InvestigatorCode)
	}
	if got.Slots["01096"] != 2 || got.Slots["01596"] != 0 {
		t.Errorf("Slots = %v, want slot reprints collapsed", got.Slots)
	}
	if got.Slots["02010"] != 1 {
		t.Errorf("Slots = %v, want unrelated codes untouched", got.Slots)
	}
	if got.CanonicalInvestigatorCode != "01001-90024" {
		t.Errorf("CanonicalInvestigatorCode = %q, want front-back with the parallel back",
			got.CanonicalInvestigatorCode)
	}
	if got.DateCreation.IsZero() || got.TabooID != 7 {
		t.Errorf("DateCreation/TabooID not carried over: %+v", got)
	}
}

func TestCanonicalizeWithoutMeta(t *testing.T) {
	d := Deck{
		ID:               json.Number("1"),
		InvestigatorCode: "01001",
		Slots:            SlotMap{},
		Meta:             "not json",
	}
	got := Canonicalize(d, nil)
	if got.CanonicalInvestigatorCode != "01001-01001" {
		t.Errorf("CanonicalInvestigatorCode = %q, want the investigator doubled",
			got.CanonicalInvestigatorCode)
	}
}

func TestFetchDecklists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/by_date/2024-03-01" {
			json.NewEncoder(w).Encode([]Deck{{
				ID:               json.Number("7"),
				InvestigatorCode: "01001",
				Slots:            SlotMap{"01020": 2},
				SideSlots:        SlotMap{},
			}})
			return
		}
		w.Write([]byte(`{"error":{"code":404,"message":"no decklists"}}`))
	}))
	defer srv.Close()

	c := NewClient()
	c.DecklistsURL = srv.URL + "/by_date/"

	decks, err := c.FetchDecklists(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(decks) != 1 || decks[0].Slots["01020"] != 2 {
		t.Errorf("decks = %+v", decks)
	}

	_, err = c.FetchDecklists(context.Background(),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	var serverErr *ServerError
	if !errors.As(err, &serverErr) || serverErr.Code != 404 {
		t.Errorf("err = %v, want a ServerError with the feed's code", err)
	}
}

func TestFetchCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"all_card":[
			{"code":"01001","real_name":"Roland Banks","faction_code":"guardian","type_code":"investigator"},
			{"code":"01020","real_name":"Machete","faction_code":"guardian","type_code":"asset"}
		]}}`))
	}))
	defer srv.Close()

	c := NewClient()
	c.CardsURL = srv.URL

	cards, err := c.FetchCards(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(cards) != 2 || cards[0].Code != "01001" || cards[1].RealName != "Machete" {
		t.Errorf("cards = %+v", cards)
	}
}

func TestFetchRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient()
	c.CardsURL = srv.URL
	if _, err := c.FetchCards(context.Background()); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}
