// Package catalog loads card definitions and starter decks from YAML.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pefman/arcana-duel/internal/models"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	ErrUnknownCard = errors.New("unknown card")
	ErrUnknownDeck = errors.New("unknown deck")
)

// DeckSpec names a character and the card keys shuffled into its draw pile.
type DeckSpec struct {
	Character string   `yaml:"character" json:"character"`
	Cards     []string `yaml:"cards" json:"cards"`
}

type file struct {
	Version    int                 `yaml:"version"`
	Cards      []models.Card       `yaml:"cards"`
	Decks      map[string]DeckSpec `yaml:"decks"`
	Encounters []string            `yaml:"encounters"`
}

// Catalog is an immutable set of card templates. Instances handed out by
// Card, Deck and EncounterDeck are deep copies with fresh IDs.
type Catalog struct {
	cards      map[string]models.Card
	decks      map[string]DeckSpec
	encounters []string
}

// Load parses and validates a catalog.
func Load(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c := &Catalog{
		cards:      make(map[string]models.Card, len(f.Cards)),
		decks:      f.Decks,
		encounters: f.Encounters,
	}
	for _, card := range f.Cards {
		if card.Key == "" {
			return nil, fmt.Errorf("card %q: missing key", card.Name)
		}
		if _, dup := c.cards[card.Key]; dup {
			return nil, fmt.Errorf("card %q: duplicate key", card.Key)
		}
		if err := card.Validate(); err != nil {
			return nil, err
		}
		c.cards[card.Key] = card
	}
	for name, d := range c.decks {
		ch, ok := c.cards[d.Character]
		if !ok || ch.Type != models.CardCharacter {
			return nil, fmt.Errorf("deck %q: character %q: %w", name, d.Character, ErrUnknownCard)
		}
		for _, key := range d.Cards {
			card, ok := c.cards[key]
			if !ok {
				return nil, fmt.Errorf("deck %q: %q: %w", name, key, ErrUnknownCard)
			}
			if !card.Placeable() {
				return nil, fmt.Errorf("deck %q: %q is a %s card and cannot be drawn", name, key, card.Type)
			}
		}
	}
	for _, key := range c.encounters {
		card, ok := c.cards[key]
		if !ok {
			return nil, fmt.Errorf("encounters: %q: %w", key, ErrUnknownCard)
		}
		if card.Type != models.CardEncounter && card.Type != models.CardScenario {
			return nil, fmt.Errorf("encounters: %q is a %s card", key, card.Type)
		}
	}
	return c, nil
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

func instance(t models.Card) models.Card {
	c := t.Clone()
	c.ID = uuid.NewString()
	if c.Encounter != nil {
		for i := range c.Encounter.Loot {
			c.Encounter.Loot[i].ID = uuid.NewString()
		}
	}
	if c.Scenario != nil && c.Scenario.Threat != nil {
		th := instance(*c.Scenario.Threat)
		c.Scenario.Threat = &th
	}
	return c
}

// Card returns a fresh instance of the card with key.
func (c *Catalog) Card(key string) (models.Card, error) {
	t, ok := c.cards[key]
	if !ok {
		return models.Card{}, fmt.Errorf("%q: %w", key, ErrUnknownCard)
	}
	return instance(t), nil
}

// Cards lists every template sorted by type then key.
func (c *Catalog) Cards() []models.Card {
	out := make([]models.Card, 0, len(c.cards))
	for _, card := range c.cards {
		out = append(out, card)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// DeckNames lists the configured deck names in order.
func (c *Catalog) DeckNames() []string {
	names := make([]string, 0, len(c.decks))
	for n := range c.decks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DeckSpec returns the raw deck definition.
func (c *Catalog) DeckSpec(name string) (DeckSpec, error) {
	d, ok := c.decks[name]
	if !ok {
		return DeckSpec{}, fmt.Errorf("%q: %w", name, ErrUnknownDeck)
	}
	return d, nil
}

// Deck returns the character card and unshuffled card instances for a deck.
func (c *Catalog) Deck(name string) (models.Card, []models.Card, error) {
	d, err := c.DeckSpec(name)
	if err != nil {
		return models.Card{}, nil, err
	}
	ch, err := c.Card(d.Character)
	if err != nil {
		return models.Card{}, nil, err
	}
	cards := make([]models.Card, 0, len(d.Cards))
	for _, key := range d.Cards {
		card, err := c.Card(key)
		if err != nil {
			return models.Card{}, nil, err
		}
		cards = append(cards, card)
	}
	return ch, cards, nil
}

// EncounterDeck returns unshuffled instances of the shared encounter deck.
func (c *Catalog) EncounterDeck() []models.Card {
	out := make([]models.Card, 0, len(c.encounters))
	for _, key := range c.encounters {
		out = append(out, instance(c.cards[key]))
	}
	return out
}
