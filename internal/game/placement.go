package game

import (
	"fmt"
	"sort"

	"github.com/pefman/arcana-duel/internal/models"
)

// Place moves cardID from owner's hand onto position pos of the action bar.
func (e *Engine) Place(g *models.GameState, owner models.Side, cardID string, pos int) error {
	if g.Phase == models.PhaseGameOver {
		return ErrGameOver
	}
	if g.Phase != models.PhaseDrawPlacement {
		return fmt.Errorf("%w: place during %s", ErrWrongPhase, g.Phase)
	}
	if pos < 0 || pos >= len(g.Bar) || g.Bar[pos].Owner != owner {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, pos)
	}
	a := g.Actor(owner)
	i := a.HandIndex(cardID)
	if i < 0 {
		return ErrCardNotInHand
	}
	card := a.Hand[i]
	if !card.Placeable() {
		return fmt.Errorf("%w: %s", ErrNotPlaceable, card.Type)
	}
	stack := g.Bar[pos].Stack
	if len(stack) >= e.Rules.MaxStack {
		return ErrStackFull
	}
	if card.IsAttack() {
		for _, c := range stack {
			if c.IsAttack() {
				return fmt.Errorf("%w: position already holds an attack", ErrStackFull)
			}
		}
	}
	if !a.SpendAP(card.Cost()) {
		return ErrNotEnoughAP
	}
	a.TakeFromHand(cardID)
	g.Bar[pos].Stack = append(stack, card)
	g.UpdatedAt = e.now()
	return nil
}

// AutoPlace fills side's positions: the strongest affordable attack first,
// then buffs and items onto the positions already carrying an attack.
func (e *Engine) AutoPlace(g *models.GameState, side models.Side) {
	a := g.Actor(side)
	var owned []int
	for i, p := range g.Bar {
		if p.Owner == side && !p.Resolved {
			owned = append(owned, i)
		}
	}
	for _, pos := range owned {
		best := ""
		bestPower := -1
		for _, c := range a.Hand {
			if !c.IsAttack() || c.Cost() > a.AP {
				continue
			}
			if c.Attack.EnergyCost > a.Energy {
				continue
			}
			if c.Attack.Power > bestPower {
				best, bestPower = c.ID, c.Attack.Power
			}
		}
		if best == "" {
			break
		}
		_ = e.Place(g, side, best, pos)
	}

	support := make([]models.Card, 0, len(a.Hand))
	for _, c := range a.Hand {
		if c.Placeable() && !c.IsAttack() && e.useful(a, c) {
			support = append(support, c)
		}
	}
	sort.SliceStable(support, func(i, j int) bool { return support[i].Cost() < support[j].Cost() })
	for _, c := range support {
		for _, pos := range owned {
			if e.Place(g, side, c.ID, pos) == nil {
				break
			}
		}
	}
}

// useful keeps the AI from drinking potions at full health.
func (e *Engine) useful(a *models.Actor, c models.Card) bool {
	if c.Item == nil {
		return true
	}
	eff, err := models.ParseEffect(c.Item.Effect)
	if err != nil {
		return false
	}
	switch eff.Kind {
	case models.EffectHeal, models.EffectRegen:
		return a.HP < a.MaxHP
	case models.EffectEnergy:
		return a.Energy < a.MaxEnergy
	case models.EffectMorale:
		return a.Morale < a.MaxMorale
	case models.EffectCleanse:
		for _, s := range a.StatusEffects {
			if s.Kind == models.EffectPoison {
				return true
			}
		}
		return false
	}
	return true
}
