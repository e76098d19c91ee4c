// Package store persists saved games and decks.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("save not found")

const (
	KindGame = "game"
	KindDeck = "deck"
)

// Save is an opaque JSON blob keyed by kind and id.
type Save struct {
	Kind      string          `json:"kind"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Validate checks the key fields and that Data is valid JSON.
func (s Save) Validate() error {
	if strings.TrimSpace(s.Kind) == "" {
		return fmt.Errorf("save kind is required")
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("save id is required")
	}
	if len(s.Data) == 0 || !json.Valid(s.Data) {
		return fmt.Errorf("save %s/%s: data must be valid JSON", s.Kind, s.ID)
	}
	return nil
}

// SaveStore is implemented by the sqlite store and by RemoteStore.
type SaveStore interface {
	Put(ctx context.Context, s Save) (Save, error)
	Get(ctx context.Context, kind, id string) (Save, error)
	List(ctx context.Context, kind string) ([]Save, error)
	Delete(ctx context.Context, kind, id string) error
}
