package models

import (
	"errors"
	"fmt"

	"github.com/pefman/arcana-duel/internal/engine"
)

// CardType tags which payload a Card carries.
type CardType string

const (
	CardCharacter CardType = "character"
	CardAction    CardType = "action"
	CardItem      CardType = "item"
	CardApparel   CardType = "apparel"
	CardSkill     CardType = "skill"
	CardMagic     CardType = "magic"
	CardTalk      CardType = "talk"
	CardEncounter CardType = "encounter"
	CardScenario  CardType = "scenario"
	CardLoot      CardType = "loot"
)

// Rarity is cosmetic; it only drives catalog sorting and loot tables.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Stat names a character attribute.
type Stat string

const (
	STR Stat = "STR"
	DEX Stat = "DEX"
	END Stat = "END"
	MAG Stat = "MAG"
	CHA Stat = "CHA"
)

var ErrInvalidCard = errors.New("invalid card")

// CharacterStats is the payload of a character card. The pool values seed the actor.
type CharacterStats struct {
	STR    int `json:"str" yaml:"str"`
	DEX    int `json:"dex" yaml:"dex"`
	END    int `json:"end" yaml:"end"`
	MAG    int `json:"mag" yaml:"mag"`
	CHA    int `json:"cha" yaml:"cha"`
	HP     int `json:"hp" yaml:"hp"`
	Energy int `json:"energy" yaml:"energy"`
	Morale int `json:"morale" yaml:"morale"`
	AP     int `json:"ap" yaml:"ap"`
}

// Value returns the named stat.
func (c CharacterStats) Value(s Stat) int {
	switch s {
	case STR:
		return c.STR
	case DEX:
		return c.DEX
	case END:
		return c.END
	case MAG:
		return c.MAG
	case CHA:
		return c.CHA
	}
	return 10
}

// Attack is shared by action, magic and talk cards.
type Attack struct {
	Power      int    `json:"power" yaml:"power"`
	EnergyCost int    `json:"energy_cost,omitempty" yaml:"energy_cost,omitempty"`
	Effect     string `json:"effect,omitempty" yaml:"effect,omitempty"` // applied to the defender on a hit
}

type Item struct {
	Effect string `json:"effect" yaml:"effect"`
}

type Apparel struct {
	AttackBonus  int    `json:"attack_bonus,omitempty" yaml:"attack_bonus,omitempty"`
	DefenseBonus int    `json:"defense_bonus,omitempty" yaml:"defense_bonus,omitempty"`
	Effect       string `json:"effect,omitempty" yaml:"effect,omitempty"`
}

type Skill struct {
	RollBonus int `json:"roll_bonus" yaml:"roll_bonus"`
	Duration  int `json:"duration" yaml:"duration"`
}

type Encounter struct {
	Power       int    `json:"power" yaml:"power"`
	AttackBonus int    `json:"attack_bonus" yaml:"attack_bonus"`
	Threat      bool   `json:"threat" yaml:"threat"`
	Loot        []Card `json:"loot,omitempty" yaml:"loot,omitempty"`
}

type Scenario struct {
	Effect string `json:"effect,omitempty" yaml:"effect,omitempty"`
	Threat *Card  `json:"threat,omitempty" yaml:"threat,omitempty"`
}

// Loot is gold (plus an optional effect) that ends up in the pot. GoldRoll is
// a dice expression such as "1d6+2" rolled on top of Gold when the loot is won.
type Loot struct {
	Gold     int    `json:"gold" yaml:"gold"`
	GoldRoll string `json:"gold_roll,omitempty" yaml:"gold_roll,omitempty"`
	Effect   string `json:"effect,omitempty" yaml:"effect,omitempty"`
}

// Card is a tagged union: Type selects which one of the payload pointers is set.
type Card struct {
	ID     string   `json:"id" yaml:"-"`
	Key    string   `json:"key" yaml:"key"`
	Type   CardType `json:"type" yaml:"type"`
	Name   string   `json:"name" yaml:"name"`
	Rarity Rarity   `json:"rarity,omitempty" yaml:"rarity,omitempty"`
	Text   string   `json:"text,omitempty" yaml:"text,omitempty"`
	APCost int      `json:"ap_cost,omitempty" yaml:"ap_cost,omitempty"`

	Character *CharacterStats `json:"character,omitempty" yaml:"character,omitempty"`
	Attack    *Attack         `json:"attack,omitempty" yaml:"attack,omitempty"`
	Item      *Item           `json:"item,omitempty" yaml:"item,omitempty"`
	Apparel   *Apparel        `json:"apparel,omitempty" yaml:"apparel,omitempty"`
	Skill     *Skill          `json:"skill,omitempty" yaml:"skill,omitempty"`
	Encounter *Encounter      `json:"encounter,omitempty" yaml:"encounter,omitempty"`
	Scenario  *Scenario       `json:"scenario,omitempty" yaml:"scenario,omitempty"`
	Loot      *Loot           `json:"loot,omitempty" yaml:"loot,omitempty"`
}

// Cost is the AP needed to place the card. Unset costs default to 1.
func (c Card) Cost() int {
	if c.APCost <= 0 {
		return 1
	}
	return c.APCost
}

// Placeable reports whether an actor may put the card on the action bar.
func (c Card) Placeable() bool {
	switch c.Type {
	case CardAction, CardMagic, CardTalk, CardItem, CardApparel, CardSkill:
		return true
	}
	return false
}

// IsAttack reports whether the card resolves as an attack roll.
func (c Card) IsAttack() bool {
	return c.Type == CardAction || c.Type == CardMagic || c.Type == CardTalk
}

// Defensive reports whether the card can answer a threat.
func (c Card) Defensive() bool {
	return c.Type == CardApparel || c.Type == CardSkill || c.Type == CardItem
}

// AttackStat is the attribute an attack card rolls with.
func (c Card) AttackStat() Stat {
	switch c.Type {
	case CardMagic:
		return MAG
	case CardTalk:
		return CHA
	}
	return STR
}

func (c Card) payloads() int {
	n := 0
	for _, set := range []bool{
		c.Character != nil, c.Attack != nil, c.Item != nil, c.Apparel != nil,
		c.Skill != nil, c.Encounter != nil, c.Scenario != nil, c.Loot != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Validate checks that the payload matches the type tag and that effect strings parse.
func (c Card) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: %q has no name", ErrInvalidCard, c.Key)
	}
	if c.payloads() != 1 {
		return fmt.Errorf("%w: %q must carry exactly one payload", ErrInvalidCard, c.Key)
	}
	var ok bool
	var effect string
	switch c.Type {
	case CardCharacter:
		ok = c.Character != nil
		if ok && (c.Character.HP <= 0 || c.Character.AP < 0) {
			return fmt.Errorf("%w: %q needs positive hp and non-negative ap", ErrInvalidCard, c.Key)
		}
	case CardAction, CardMagic, CardTalk:
		ok = c.Attack != nil
		if ok {
			effect = c.Attack.Effect
		}
	case CardItem:
		ok = c.Item != nil
		if ok {
			if c.Item.Effect == "" {
				return fmt.Errorf("%w: item %q has no effect", ErrInvalidCard, c.Key)
			}
			effect = c.Item.Effect
		}
	case CardApparel:
		ok = c.Apparel != nil
		if ok {
			effect = c.Apparel.Effect
		}
	case CardSkill:
		ok = c.Skill != nil
	case CardEncounter:
		ok = c.Encounter != nil
		if ok {
			for _, l := range c.Encounter.Loot {
				if l.Type != CardLoot {
					return fmt.Errorf("%w: encounter %q loot %q is not a loot card", ErrInvalidCard, c.Key, l.Key)
				}
				if err := l.Validate(); err != nil {
					return err
				}
			}
		}
	case CardScenario:
		ok = c.Scenario != nil
		if ok {
			effect = c.Scenario.Effect
			if t := c.Scenario.Threat; t != nil {
				if t.Type != CardEncounter {
					return fmt.Errorf("%w: scenario %q threat must be an encounter", ErrInvalidCard, c.Key)
				}
				if err := t.Validate(); err != nil {
					return err
				}
			}
		}
	case CardLoot:
		ok = c.Loot != nil
		if ok {
			if c.Loot.GoldRoll != "" && !engine.ValidExpr(c.Loot.GoldRoll) {
				return fmt.Errorf("%w: loot %q has bad gold roll %q", ErrInvalidCard, c.Key, c.Loot.GoldRoll)
			}
			effect = c.Loot.Effect
		}
	default:
		return fmt.Errorf("%w: %q has unknown type %q", ErrInvalidCard, c.Key, c.Type)
	}
	if !ok {
		return fmt.Errorf("%w: %q payload does not match type %q", ErrInvalidCard, c.Key, c.Type)
	}
	if effect != "" {
		if _, err := ParseEffect(effect); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidCard, c.Key, err)
		}
	}
	return nil
}

// Clone deep-copies the card so instances never share payload pointers.
func (c Card) Clone() Card {
	out := c
	if c.Character != nil {
		v := *c.Character
		out.Character = &v
	}
	if c.Attack != nil {
		v := *c.Attack
		out.Attack = &v
	}
	if c.Item != nil {
		v := *c.Item
		out.Item = &v
	}
	if c.Apparel != nil {
		v := *c.Apparel
		out.Apparel = &v
	}
	if c.Skill != nil {
		v := *c.Skill
		out.Skill = &v
	}
	if c.Encounter != nil {
		v := *c.Encounter
		v.Loot = cloneCards(c.Encounter.Loot)
		out.Encounter = &v
	}
	if c.Scenario != nil {
		v := *c.Scenario
		if c.Scenario.Threat != nil {
			t := c.Scenario.Threat.Clone()
			v.Threat = &t
		}
		out.Scenario = &v
	}
	if c.Loot != nil {
		v := *c.Loot
		out.Loot = &v
	}
	return out
}

func cloneCards(cs []Card) []Card {
	if cs == nil {
		return nil
	}
	out := make([]Card, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}
