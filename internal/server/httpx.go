package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pefman/arcana-duel/internal/catalog"
	"github.com/pefman/arcana-duel/internal/game"
	"github.com/pefman/arcana-duel/internal/httpx"
	"github.com/pefman/arcana-duel/internal/store"
)

var (
	errNoGame        = errors.New("game not found")
	errBadRequest    = errors.New("bad request")
	errAlreadyActive = errors.New("auto-resolve already running")
	errNoStore       = errors.New("saving is not configured")
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoGame), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, catalog.ErrUnknownDeck), errors.Is(err, catalog.ErrUnknownCard):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotThreatTarget):
		return http.StatusForbidden
	case errors.Is(err, game.ErrGameOver),
		errors.Is(err, game.ErrWrongPhase),
		errors.Is(err, game.ErrThreatUnanswered),
		errors.Is(err, game.ErrResolutionPending),
		errors.Is(err, game.ErrNoThreat),
		errors.Is(err, errAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, game.ErrNotEnoughAP),
		errors.Is(err, game.ErrCardNotInHand),
		errors.Is(err, game.ErrNotPlaceable),
		errors.Is(err, game.ErrInvalidPosition),
		errors.Is(err, game.ErrStackFull),
		errors.Is(err, game.ErrNotDefensive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errNoStore):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.logger.Error("request failed", zapRequest(r, err)...)
	} else {
		s.logger.Debug("request rejected", zapRequest(r, err)...)
	}
	httpx.WriteError(w, code, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
