package models

import (
	"fmt"
	"strconv"
	"strings"
)

// EffectKind names what an effect string does.
type EffectKind string

const (
	EffectHeal    EffectKind = "heal"
	EffectEnergy  EffectKind = "energy"
	EffectMorale  EffectKind = "morale"
	EffectDamage  EffectKind = "damage"
	EffectPoison  EffectKind = "poison"
	EffectRegen   EffectKind = "regen"
	EffectShield  EffectKind = "shield"
	EffectBonus   EffectKind = "bonus"
	EffectCleanse EffectKind = "cleanse"
)

// Effect is the parsed form of "kind:amount[:duration]".
// Duration is only meaningful for statuses (poison, regen, shield, bonus).
type Effect struct {
	Kind     EffectKind `json:"kind"`
	Amount   int        `json:"amount"`
	Duration int        `json:"duration,omitempty"`
}

// Lasting reports whether the effect becomes a status instead of applying once.
func (e Effect) Lasting() bool {
	switch e.Kind {
	case EffectPoison, EffectRegen, EffectShield, EffectBonus:
		return true
	}
	return false
}

func (e Effect) String() string {
	if e.Kind == EffectCleanse {
		return string(e.Kind)
	}
	if e.Lasting() {
		return fmt.Sprintf("%s:%d:%d", e.Kind, e.Amount, e.Duration)
	}
	return fmt.Sprintf("%s:%d", e.Kind, e.Amount)
}

// ParseEffect parses an effect string such as "heal:5", "poison:2:3" or "cleanse".
// Lasting effects without an explicit duration last one round.
func ParseEffect(s string) (Effect, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), ":")
	kind := EffectKind(strings.TrimSpace(parts[0]))
	switch kind {
	case EffectCleanse:
		if len(parts) != 1 {
			return Effect{}, fmt.Errorf("effect %q: cleanse takes no amount", s)
		}
		return Effect{Kind: kind}, nil
	case EffectHeal, EffectEnergy, EffectMorale, EffectDamage, EffectPoison, EffectRegen, EffectShield, EffectBonus:
	default:
		return Effect{}, fmt.Errorf("effect %q: unknown kind %q", s, kind)
	}
	if len(parts) < 2 || len(parts) > 3 {
		return Effect{}, fmt.Errorf("effect %q: want kind:amount[:duration]", s)
	}
	amount, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Effect{}, fmt.Errorf("effect %q: amount: %w", s, err)
	}
	e := Effect{Kind: kind, Amount: amount}
	if !e.Lasting() {
		if len(parts) == 3 {
			return Effect{}, fmt.Errorf("effect %q: %s takes no duration", s, kind)
		}
		return e, nil
	}
	e.Duration = 1
	if len(parts) == 3 {
		d, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return Effect{}, fmt.Errorf("effect %q: duration: %w", s, err)
		}
		if d <= 0 {
			return Effect{}, fmt.Errorf("effect %q: duration must be positive", s)
		}
		e.Duration = d
	}
	return e, nil
}

// StatusEffect is a lasting effect attached to an actor.
type StatusEffect struct {
	Kind      EffectKind `json:"kind"`
	Amount    int        `json:"amount"`
	Remaining int        `json:"remaining"`
	Source    string     `json:"source,omitempty"`
}
