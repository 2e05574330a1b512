// Package web exposes the access engine and the recommender over HTTP.
package web

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/coder/websocket"
	"github.com/peterkuimelis/deckrec/internal/access"
	"github.com/peterkuimelis/deckrec/internal/card"
	"github.com/peterkuimelis/deckrec/internal/rec"
	"github.com/peterkuimelis/deckrec/internal/store"
	"go.uber.org/zap"
)

// InvestigatorInfo is the JSON representation of an investigator for the
// /api/investigators endpoint.
type InvestigatorInfo struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Subname  string `json:"subname,omitempty"`
	Faction  string `json:"faction"`
	Parallel bool   `json:"parallel,omitempty"`
}

// SelectionInput is the wire form of one runtime deck-building choice.
type SelectionInput struct {
	Type     string `json:"type"`
	Faction  string `json:"faction,omitempty"`
	DeckSize int    `json:"deck_size,omitempty"`
	OptionID string `json:"option_id,omitempty"`
}

// AccessCheckRequest asks whether one card is includable.
type AccessCheckRequest struct {
	InvestigatorCode      string                    `json:"investigator_code"`
	CardCode              string                    `json:"card_code"`
	TargetDeck            string                    `json:"target_deck,omitempty"`
	Selections            map[string]SelectionInput `json:"selections,omitempty"`
	AdditionalDeckOptions []card.DeckOption         `json:"additional_deck_options,omitempty"`
}

// AccessCheckResponse is the /api/access/check result.
type AccessCheckResponse struct {
	InvestigatorCode string `json:"investigator_code"`
	CardCode         string `json:"card_code"`
	Allowed          bool   `json:"allowed"`
}

// Server is the deckrec HTTP server.
type Server struct {
	engine      *access.Engine
	store       *store.Store
	recommender *rec.Recommender
	log         *zap.Logger
	mux         *http.ServeMux
}

// NewServer wires the API routes.
func NewServer(engine *access.Engine, st *store.Store, recommender *rec.Recommender, logger *zap.Logger) *Server {
	s := &Server{
		engine:      engine,
		store:       st,
		recommender: recommender,
		log:         logger,
		mux:         http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/investigators", s.handleInvestigators)
	s.mux.HandleFunc("POST /api/access/check", s.handleAccessCheck)
	s.mux.HandleFunc("POST /api/recommendations", s.handleRecommendations)
	s.mux.HandleFunc("GET /api/access/ws", s.handleAccessSocket)
}

// ServeHTTP applies the CORS headers the deck-builder frontend needs and
// dispatches to the API mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleInvestigators(w http.ResponseWriter, r *http.Request) {
	var investigators []InvestigatorInfo
	cat := s.engine.Catalog()
	for code := range cat.TypeCode[card.TypeInvestigator] {
		c := cat.Card(code)
		if c == nil || c.EncounterCode != "" || c.Hidden {
			continue
		}
		investigators = append(investigators, InvestigatorInfo{
			Code:     c.Code,
			Name:     c.RealName,
			Subname:  c.RealSubname,
			Faction:  c.FactionCode,
			Parallel: c.Parallel,
		})
	}
	sort.Slice(investigators, func(i, j int) bool {
		return investigators[i].Code < investigators[j].Code
	})
	s.writeJSON(w, http.StatusOK, investigators)
}

// buildConfig translates wire selections and options into an engine config.
func buildConfig(req *AccessCheckRequest) access.Config {
	cfg := access.Config{
		TargetDeck:            access.TargetDeck(req.TargetDeck),
		AdditionalDeckOptions: req.AdditionalDeckOptions,
	}
	if len(req.Selections) > 0 {
		cfg.Selections = make(access.Selections, len(req.Selections))
		for key, sel := range req.Selections {
			switch sel.Type {
			case "faction":
				cfg.Selections[key] = access.FactionChoice(sel.Faction)
			case "deckSize":
				cfg.Selections[key] = access.DeckSizeChoice(sel.DeckSize)
			case "option":
				cfg.Selections[key] = access.OptionChoice(sel.OptionID)
			}
		}
	}
	return cfg
}

func (s *Server) handleAccessCheck(w http.ResponseWriter, r *http.Request) {
	var req AccessCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InvestigatorCode == "" || req.CardCode == "" {
		s.writeError(w, http.StatusBadRequest, "investigator_code and card_code are required")
		return
	}

	allowed := s.engine.CanInclude(req.InvestigatorCode, req.CardCode, buildConfig(&req))
	s.writeJSON(w, http.StatusOK, AccessCheckResponse{
		InvestigatorCode: req.InvestigatorCode,
		CardCode:         req.CardCode,
		Allowed:          allowed,
	})
}

// recommendationEnvelope matches the response shape deck-builder clients
// already consume.
type recommendationEnvelope struct {
	Data struct {
		Recommendations struct {
			DecksAnalyzed   int           `json:"decks_analyzed"`
			Recommendations *rec.Response `json:"recommendations"`
		} `json:"recommendations"`
	} `json:"data"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req rec.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	response, err := s.cachedRecommend(ctx, &req)
	if err != nil {
		s.log.Error("recommendations", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	total, err := s.store.DeckCount(ctx)
	if err != nil {
		s.log.Error("deck count", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var envelope recommendationEnvelope
	envelope.Data.Recommendations.DecksAnalyzed = total
	envelope.Data.Recommendations.Recommendations = response
	s.writeJSON(w, http.StatusOK, envelope)
}

// cachedRecommend serves a recommendation from the response cache when the
// identical request was answered before.
func (s *Server) cachedRecommend(ctx context.Context, req *rec.Request) (*rec.Response, error) {
	hash, err := requestHash(req)
	if err != nil {
		return nil, err
	}

	if cached, ok, err := s.store.CachedResponse(ctx, hash); err != nil {
		return nil, err
	} else if ok {
		var response rec.Response
		if err := json.Unmarshal(cached, &response); err == nil {
			return &response, nil
		}
		// A corrupt cache entry falls through to recomputation.
		s.log.Warn("discarding unreadable cached response", zap.String("hash", hash))
	}

	response, err := s.recommender.Recommend(ctx, req)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(response)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveResponse(ctx, hash, encoded); err != nil {
		return nil, err
	}
	return response, nil
}

func requestHash(req *rec.Request) (string, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// accessSocketRequest is one batched deck-check query over the websocket.
type accessSocketRequest struct {
	InvestigatorCode      string                    `json:"investigator_code"`
	CardCodes             []string                  `json:"card_codes"`
	TargetDeck            string                    `json:"target_deck,omitempty"`
	Selections            map[string]SelectionInput `json:"selections,omitempty"`
	AdditionalDeckOptions []card.DeckOption         `json:"additional_deck_options,omitempty"`
}

// accessSocketResponse maps each queried card code to its verdict.
type accessSocketResponse struct {
	InvestigatorCode string          `json:"investigator_code"`
	Results          map[string]bool `json:"results"`
	Error            string          `json:"error,omitempty"`
}

// handleAccessSocket runs an interactive deck-check session: the client
// streams queries while editing a deck and gets a verdict per card without
// re-establishing a connection each time.
func (s *Server) handleAccessSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Deck builders run on their own origins
	})
	if err != nil {
		s.log.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var req accessSocketRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeSocket(ctx, conn, accessSocketResponse{Error: "invalid message"})
			continue
		}
		if req.InvestigatorCode == "" {
			s.writeSocket(ctx, conn, accessSocketResponse{Error: "investigator_code is required"})
			continue
		}

		cfg := buildConfig(&AccessCheckRequest{
			TargetDeck:            req.TargetDeck,
			Selections:            req.Selections,
			AdditionalDeckOptions: req.AdditionalDeckOptions,
		})
		results := make(map[string]bool, len(req.CardCodes))
		for _, code := range req.CardCodes {
			results[code] = s.engine.CanInclude(req.InvestigatorCode, code, cfg)
		}
		s.writeSocket(ctx, conn, accessSocketResponse{
			InvestigatorCode: req.InvestigatorCode,
			Results:          results,
		})
	}
}

func (s *Server) writeSocket(ctx context.Context, conn *websocket.Conn, resp accessSocketResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Warn("websocket encode", zap.Error(err))
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.log.Warn("websocket write", zap.Error(err))
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s)
}
