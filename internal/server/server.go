// Package server exposes games over JSON routes and pushes state over websockets.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pefman/arcana-duel/internal/catalog"
	"github.com/pefman/arcana-duel/internal/config"
	"github.com/pefman/arcana-duel/internal/director"
	"github.com/pefman/arcana-duel/internal/engine"
	"github.com/pefman/arcana-duel/internal/game"
	"github.com/pefman/arcana-duel/internal/httpx"
	"github.com/pefman/arcana-duel/internal/models"
	"github.com/pefman/arcana-duel/internal/stats"
	"github.com/pefman/arcana-duel/internal/store"
)

// DirectorView is the read side of a running director.
type DirectorView interface {
	Stats() director.Stats
}

// ImageGenerator renders image prompts from directives.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, style string) (string, error)
}

type Options struct {
	Catalog  *catalog.Catalog
	Rules    config.Rules
	Saves    store.SaveStore
	Stats    *stats.Daily
	Director DirectorView
	Images   ImageGenerator
	Logger   *zap.Logger
	// NewSeed overrides seed generation, mostly for tests.
	NewSeed func() (int64, error)
}

type Server struct {
	opts   Options
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]*Room

	dirMu sync.RWMutex
	last  *director.Directive
}

func New(opts Options) *Server {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if len(opts.Rules.Tiers) == 0 {
		opts.Rules = config.DefaultRules()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewSeed == nil {
		opts.NewSeed = engine.NewSeed
	}
	return &Server{opts: opts, logger: opts.Logger, rooms: map[string]*Room{}}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/decks", s.handleDecks).Methods(http.MethodGet)
	api.HandleFunc("/games", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/advance", s.handleAdvance).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/place", s.handlePlace).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/threat", s.handleThreat).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/resolve", s.handleResolve).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/save", s.handleSave).Methods(http.MethodPost)
	api.HandleFunc("/saves", s.handleListSaves).Methods(http.MethodGet)
	api.HandleFunc("/saves/{id}/load", s.handleLoad).Methods(http.MethodPost)
	api.HandleFunc("/stats/today", s.handleStatsToday).Methods(http.MethodGet)
	api.HandleFunc("/director", s.handleDirector).Methods(http.MethodGet)
	r.HandleFunc("/ws/games/{id}", s.handleWS)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "no such route")
	})
	return httpx.CORS(r, http.MethodGet, http.MethodPost)
}

// Close stops every room's timers and disconnects websocket clients.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rooms {
		r.close()
		delete(s.rooms, id)
	}
}

func zapRequest(r *http.Request, err error) []zap.Field {
	return []zap.Field{zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err)}
}

func (s *Server) room(id string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoGame, id)
	}
	return r, nil
}

func (s *Server) newEngine(seed int64) *game.Engine {
	e := game.NewEngine(s.opts.Rules, engine.NewRoller(seed))
	if s.opts.Stats != nil {
		e.Recorder = s.opts.Stats
	}
	return e
}

// install registers a room, replacing (and closing) any room with the same id.
func (s *Server) install(g *models.GameState, e *game.Engine) *Room {
	r := newRoom(g, e, s.logger)
	s.mu.Lock()
	old := s.rooms[g.ID]
	s.rooms[g.ID] = r
	s.mu.Unlock()
	if old != nil {
		old.close()
	}
	return r
}

func writeState(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	n := len(s.rooms)
	s.mu.RUnlock()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "games": n})
}

func (s *Server) handleDecks(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.opts.Catalog.DeckNames())
}

type createRequest struct {
	Player       string `json:"player"`
	Opponent     string `json:"opponent"`
	PlayerName   string `json:"player_name,omitempty"`
	OpponentName string `json:"opponent_name,omitempty"`
	Seed         *int64 `json:"seed,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Player == "" || req.Opponent == "" {
		s.fail(w, r, fmt.Errorf("%w: player and opponent decks are required", errBadRequest))
		return
	}
	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	} else {
		var err error
		if seed, err = s.opts.NewSeed(); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	e := s.newEngine(seed)
	g, err := e.NewGame(s.opts.Catalog, game.Setup{
		Seed:         seed,
		PlayerName:   req.PlayerName,
		PlayerDeck:   req.Player,
		OpponentName: req.OpponentName,
		OpponentDeck: req.Opponent,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	room := s.install(g, e)
	s.logger.Info("game created", zap.String("game", g.ID), zap.Int64("seed", seed),
		zap.String("player", req.Player), zap.String("opponent", req.Opponent))
	writeState(w, http.StatusCreated, room.view())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	room, err := s.room(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeState(w, http.StatusOK, room.view())
}

// mutate runs fn against the room named in the path and writes the new state.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(e *game.Engine, g *models.GameState) error) {
	room, err := s.room(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := room.do(fn)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeState(w, http.StatusOK, b)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(e *game.Engine, g *models.GameState) error {
		from := g.Phase
		if err := e.Advance(g); err != nil {
			return err
		}
		s.logger.Debug("phase advanced", zap.String("game", g.ID), zap.String("from", string(from)), zap.String("to", string(g.Phase)))
		return nil
	})
}

type placeRequest struct {
	CardID   string `json:"card_id"`
	Position int    `json:"position"`
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.mutate(w, r, func(e *game.Engine, g *models.GameState) error {
		return e.Place(g, models.SidePlayer, req.CardID, req.Position)
	})
}

type threatRequest struct {
	CardID string `json:"card_id,omitempty"`
}

func (s *Server) handleThreat(w http.ResponseWriter, r *http.Request) {
	var req threatRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.mutate(w, r, func(e *game.Engine, g *models.GameState) error {
		_, err := e.RespondThreat(g, models.SidePlayer, req.CardID)
		return err
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	room, err := s.room(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := room.startResolve()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeState(w, http.StatusAccepted, b)
}

type saveRequest struct {
	Name string `json:"name,omitempty"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.opts.Saves == nil {
		s.fail(w, r, errNoStore)
		return
	}
	var req saveRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	room, err := s.room(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Name == "" {
		req.Name = room.ID
	}
	saved, err := s.opts.Saves.Put(r.Context(), store.Save{
		Kind: store.KindGame,
		ID:   room.ID,
		Name: req.Name,
		Data: room.view(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("game saved", zap.String("game", room.ID), zap.String("name", saved.Name))
	saved.Data = nil
	httpx.WriteJSON(w, http.StatusOK, saved)
}

type saveSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) handleListSaves(w http.ResponseWriter, r *http.Request) {
	if s.opts.Saves == nil {
		s.fail(w, r, errNoStore)
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = store.KindGame
	}
	all, err := s.opts.Saves.List(r.Context(), kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]saveSummary, 0, len(all))
	for _, sv := range all {
		out = append(out, saveSummary{ID: sv.ID, Name: sv.Name, UpdatedAt: sv.UpdatedAt})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.opts.Saves == nil {
		s.fail(w, r, errNoStore)
		return
	}
	sv, err := s.opts.Saves.Get(r.Context(), store.KindGame, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var g models.GameState
	if err := json.Unmarshal(sv.Data, &g); err != nil {
		s.fail(w, r, fmt.Errorf("decode save %s: %w", sv.ID, err))
		return
	}
	if err := g.Validate(); err != nil {
		s.fail(w, r, fmt.Errorf("%w: save %s: %w", errBadRequest, sv.ID, err))
		return
	}
	// a fresh stream derived from the save keeps reloads reproducible
	e := s.newEngine(g.Seed ^ int64(g.Round))
	room := s.install(&g, e)
	s.logger.Info("game loaded", zap.String("game", g.ID), zap.Int("round", g.Round))
	writeState(w, http.StatusOK, room.view())
}

func (s *Server) handleStatsToday(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Stats == nil {
		httpx.WriteJSON(w, http.StatusOK, stats.Day{Wins: map[string]int{}, Losses: map[string]int{}})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s.opts.Stats.Today())
}

type directorResponse struct {
	Enabled bool                `json:"enabled"`
	Last    *director.Directive `json:"last,omitempty"`
	Stats   *director.Stats     `json:"stats,omitempty"`
}

func (s *Server) handleDirector(w http.ResponseWriter, _ *http.Request) {
	out := directorResponse{Enabled: s.opts.Director != nil}
	s.dirMu.RLock()
	if s.last != nil {
		d := *s.last
		out.Last = &d
	}
	s.dirMu.RUnlock()
	if s.opts.Director != nil {
		st := s.opts.Director.Stats()
		out.Stats = &st
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// ApplyDirective is the director sink: it renders requested images, keeps the
// directive for /api/director and pushes it to every connected client.
func (s *Server) ApplyDirective(ctx context.Context, d director.Directive) {
	if d.ImageGen != nil && s.opts.Images != nil {
		url, err := s.opts.Images.GenerateImage(ctx, d.ImageGen.Prompt, d.ImageGen.Style)
		if err != nil {
			s.logger.Warn("image generation failed", zap.Error(err))
		} else {
			d.ImageGen.URL = url
		}
	}
	s.dirMu.Lock()
	s.last = &d
	s.dirMu.Unlock()

	for _, r := range s.snapshotRooms() {
		r.send(wsMsg{Type: "directive", Data: d})
	}
}

func (s *Server) snapshotRooms() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// Snapshot summarizes the most recently updated game for the director.
func (s *Server) Snapshot(context.Context) (map[string]any, error) {
	rooms := s.snapshotRooms()
	snap := map[string]any{"games": len(rooms)}
	var latest time.Time
	for _, r := range rooms {
		r.mu.Lock()
		if g := r.state; snap["game"] == nil || g.UpdatedAt.After(latest) {
			latest = g.UpdatedAt
			snap["game"] = summarize(g)
		}
		r.mu.Unlock()
	}
	return snap, nil
}

func summarize(g *models.GameState) map[string]any {
	actor := func(a *models.Actor) map[string]any {
		return map[string]any{
			"name":   a.Name,
			"hp":     a.HP,
			"max_hp": a.MaxHP,
			"morale": a.Morale,
			"energy": a.Energy,
		}
	}
	out := map[string]any{
		"id":       g.ID,
		"round":    g.Round,
		"phase":    g.Phase,
		"player":   actor(g.Player),
		"opponent": actor(g.Opponent),
		"pot_gold": g.Pot.Gold,
	}
	if g.Winner != "" {
		out["winner"] = g.Winner
	}
	if n := len(g.Log); n > 0 {
		last := g.Log[n-1]
		out["last_combat"] = map[string]any{"attacker": last.Attacker, "tier": last.Tier, "damage": last.Damage}
	}
	if k := len(g.Narration); k > 0 {
		lines := g.Narration[max(k-3, 0):]
		out["narration"] = append([]string(nil), lines...)
	}
	return out
}

// Games lists active game ids, sorted.
func (s *Server) Games() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
