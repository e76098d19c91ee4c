package game

import (
	"fmt"

	"github.com/pefman/arcana-duel/internal/models"
)

func (e *Engine) enterThreat(g *models.GameState) {
	t := g.PendingThreat
	if t == nil || t.Answered {
		return
	}
	g.Animation = models.Animation{Position: -1, Card: t.Card.Name}
	g.Narrate("%s threatens %s.", t.Card.Name, g.Actor(t.Target).Name)
	if t.Target == models.SideOpponent {
		_ = e.AutoRespond(g)
	}
}

// RespondThreat answers the pending threat for side. cardID optionally names a
// defensive card from hand that is applied, free of AP, before the threat strikes.
func (e *Engine) RespondThreat(g *models.GameState, side models.Side, cardID string) (models.CombatRecord, error) {
	if g.Phase == models.PhaseGameOver {
		return models.CombatRecord{}, ErrGameOver
	}
	if g.Phase != models.PhaseThreatResponse && g.Phase != models.PhaseEndThreat {
		return models.CombatRecord{}, fmt.Errorf("%w: respond during %s", ErrWrongPhase, g.Phase)
	}
	t := g.PendingThreat
	if t == nil || t.Answered {
		return models.CombatRecord{}, ErrNoThreat
	}
	if t.Target != side {
		return models.CombatRecord{}, ErrNotThreatTarget
	}
	a := g.Actor(side)
	if cardID != "" {
		i := a.HandIndex(cardID)
		if i < 0 {
			return models.CombatRecord{}, ErrCardNotInHand
		}
		if !a.Hand[i].Defensive() {
			return models.CombatRecord{}, fmt.Errorf("%w: %s", ErrNotDefensive, a.Hand[i].Type)
		}
		c, _ := a.TakeFromHand(cardID)
		e.applySupport(g, a, c)
		if c.Type != models.CardApparel {
			a.DiscardPile = append(a.DiscardPile, c)
		}
	}

	enc := t.Card.Encounter
	rec := ResolveAttack(e.Rules, e.Roller, AttackInput{
		Round:        g.Round,
		Attacker:     t.Card.Name,
		Defender:     a.Name,
		Card:         t.Card.Name,
		Stat:         models.STR,
		AttackBonus:  enc.AttackBonus,
		DefenseMod:   a.Mod(models.END),
		DefenseBonus: a.DefenseBonus(),
		Power:        enc.Power,
		Shield:       a.Shield(),
		Pool:         "hp",
	})
	e.land(g, nil, a, &rec)
	t.Answered = true

	if rec.Diff < 0 {
		g.Narrate("%s drives off %s. Its loot goes to the pot.", a.Name, t.Card.Name)
		e.lootToPot(g, enc.Loot)
	}
	g.Encounters.Discard = append(g.Encounters.Discard, t.Card)
	e.settle(g)
	g.UpdatedAt = e.now()
	return rec, nil
}

// AutoRespond answers the pending threat with the target's best defensive card, if any.
func (e *Engine) AutoRespond(g *models.GameState) error {
	t := g.PendingThreat
	if t == nil || t.Answered {
		return ErrNoThreat
	}
	a := g.Actor(t.Target)
	best, score := "", 0
	for _, c := range a.Hand {
		if !c.Defensive() {
			continue
		}
		s := 0
		switch {
		case c.Apparel != nil:
			s = c.Apparel.DefenseBonus + 1
		case c.Skill != nil:
			s = c.Skill.RollBonus
		case c.Item != nil && e.useful(a, c):
			s = 1
		}
		if s > score {
			best, score = c.ID, s
		}
	}
	_, err := e.RespondThreat(g, t.Target, best)
	return err
}
