// Package objectapi is the local data API: the card catalog, a generic JSON
// object store and chat sessions answered by a pluggable responder.
package objectapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pefman/arcana-duel/internal/api"
	"github.com/pefman/arcana-duel/internal/catalog"
	"github.com/pefman/arcana-duel/internal/httpx"
	"github.com/pefman/arcana-duel/internal/models"
	"github.com/pefman/arcana-duel/internal/store"
)

const maxBody = 1 << 20

// Objects is the storage the API serves. sqlite.Store satisfies it.
type Objects interface {
	Put(ctx context.Context, s store.Save) (store.Save, error)
	Get(ctx context.Context, kind, id string) (store.Save, error)
	Search(ctx context.Context, kind, query string) ([]store.Save, error)
	Delete(ctx context.Context, kind, id string) error
}

type Options struct {
	Objects Objects
	Catalog *catalog.Catalog
	// Respond answers chat messages. Defaults to OfflineDirector.
	Respond Responder
	Logger  *zap.Logger
}

type Server struct {
	objects Objects
	catalog *catalog.Catalog
	respond Responder
	chat    *ChatLog
	logger  *zap.Logger
}

func New(opts Options) *Server {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Respond == nil {
		opts.Respond = OfflineDirector
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		objects: opts.Objects,
		catalog: opts.Catalog,
		respond: opts.Respond,
		chat:    newChatLog(opts.Objects),
		logger:  opts.Logger,
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	a.HandleFunc("/cards", s.handleCards).Methods(http.MethodGet)
	a.HandleFunc("/cards/{key}", s.handleCard).Methods(http.MethodGet)
	a.HandleFunc("/decks", s.handleDecks).Methods(http.MethodGet)
	a.HandleFunc("/decks/{name}", s.handleDeck).Methods(http.MethodGet)

	a.HandleFunc("/objects/{kind}", s.handleSearch).Methods(http.MethodGet)
	a.HandleFunc("/objects/{kind}/{id}", s.handleGetObject).Methods(http.MethodGet)
	a.HandleFunc("/objects/{kind}/{id}", s.handlePutObject).Methods(http.MethodPut)
	a.HandleFunc("/objects/{kind}/{id}", s.handleDeleteObject).Methods(http.MethodDelete)

	a.HandleFunc("/chat/{session}/messages", s.handleHistory).Methods(http.MethodGet)
	a.HandleFunc("/chat/{session}/messages", s.handleChat).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "no such route")
	})
	return httpx.CORS(r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code >= 500 {
		s.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	httpx.WriteError(w, code, err.Error())
}

func (s *Server) storeFail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.fail(w, r, http.StatusNotFound, err)
		return
	}
	s.fail(w, r, http.StatusInternalServerError, err)
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	typ := models.CardType(strings.ToLower(r.URL.Query().Get("type")))
	out := []models.Card{}
	for _, c := range s.catalog.Cards() {
		if typ == "" || c.Type == typ {
			out = append(out, c)
		}
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	c, err := s.catalog.Card(mux.Vars(r)["key"])
	if err != nil {
		s.fail(w, r, http.StatusNotFound, err)
		return
	}
	c.ID = ""
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) handleDecks(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.catalog.DeckNames())
}

type deckResponse struct {
	Name      string        `json:"name"`
	Character models.Card   `json:"character"`
	Cards     []models.Card `json:"cards"`
}

func (s *Server) handleDeck(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ch, cards, err := s.catalog.Deck(name)
	if err != nil {
		s.fail(w, r, http.StatusNotFound, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, deckResponse{Name: name, Character: ch, Cards: cards})
}

func (s *Server) requireObjects(w http.ResponseWriter) bool {
	if s.objects == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "object store is not configured")
		return false
	}
	return true
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.requireObjects(w) {
		return
	}
	saves, err := s.objects.Search(r.Context(), mux.Vars(r)["kind"], r.URL.Query().Get("q"))
	if err != nil {
		s.storeFail(w, r, err)
		return
	}
	out := make([]api.Object, 0, len(saves))
	for _, sv := range saves {
		out = append(out, api.Object(sv))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	if !s.requireObjects(w) {
		return
	}
	v := mux.Vars(r)
	sv, err := s.objects.Get(r.Context(), v["kind"], v["id"])
	if err != nil {
		s.storeFail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, api.Object(sv))
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	if !s.requireObjects(w) {
		return
	}
	var o api.Object
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&o); err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("decode object: %w", err))
		return
	}
	v := mux.Vars(r)
	if (o.Kind != "" && o.Kind != v["kind"]) || (o.ID != "" && o.ID != v["id"]) {
		s.fail(w, r, http.StatusBadRequest, errors.New("body kind/id do not match the path"))
		return
	}
	o.Kind, o.ID = v["kind"], v["id"]
	if err := store.Save(o).Validate(); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	saved, err := s.objects.Put(r.Context(), store.Save(o))
	if err != nil {
		s.storeFail(w, r, err)
		return
	}
	s.logger.Debug("object stored", zap.String("kind", saved.Kind), zap.String("id", saved.ID))
	httpx.WriteJSON(w, http.StatusOK, api.Object(saved))
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	if !s.requireObjects(w) {
		return
	}
	v := mux.Vars(r)
	if err := s.objects.Delete(r.Context(), v["kind"], v["id"]); err != nil {
		s.storeFail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chat.history(r.Context(), mux.Vars(r)["session"])
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var msg api.ChatMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&msg); err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("decode message: %w", err))
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		s.fail(w, r, http.StatusBadRequest, errors.New("message content is required"))
		return
	}
	session := mux.Vars(r)["session"]
	reply, err := s.chat.exchange(r.Context(), session, msg.Content, s.respond)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	s.logger.Debug("chat reply", zap.String("session", session), zap.Int("bytes", len(reply.Content)))
	httpx.WriteJSON(w, http.StatusOK, reply)
}
