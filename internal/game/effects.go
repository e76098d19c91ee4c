package game

import "github.com/pefman/arcana-duel/internal/models"

// applyEffect applies an instant effect or attaches a lasting one as a status.
func (e *Engine) applyEffect(g *models.GameState, a *models.Actor, eff models.Effect, source string) {
	if eff.Lasting() {
		a.AddStatus(eff, source)
		g.Narrate("%s gains %s from %s.", a.Name, eff, source)
		return
	}
	switch eff.Kind {
	case models.EffectHeal:
		g.Narrate("%s heals %d HP from %s.", a.Name, a.Heal(eff.Amount), source)
	case models.EffectEnergy:
		g.Narrate("%s recovers %d energy from %s.", a.Name, a.RestoreEnergy(eff.Amount), source)
	case models.EffectMorale:
		g.Narrate("%s's morale shifts %+d from %s.", a.Name, a.AdjustMorale(eff.Amount), source)
	case models.EffectDamage:
		g.Narrate("%s takes %d damage from %s.", a.Name, a.Damage(eff.Amount), source)
	case models.EffectCleanse:
		g.Narrate("%s is cleansed of %d afflictions by %s.", a.Name, a.Cleanse(), source)
	}
}

// applyEffectString parses and applies s. Catalog cards are validated on
// load, so a parse failure here only drops the effect.
func (e *Engine) applyEffectString(g *models.GameState, a *models.Actor, s, source string) {
	if s == "" {
		return
	}
	eff, err := models.ParseEffect(s)
	if err != nil {
		return
	}
	e.applyEffect(g, a, eff, source)
}

// tickStatuses applies poison and regen, then ages every status by one round.
func tickStatuses(g *models.GameState, a *models.Actor) {
	kept := a.StatusEffects[:0]
	for _, s := range a.StatusEffects {
		switch s.Kind {
		case models.EffectPoison:
			if n := a.Damage(s.Amount); n > 0 {
				g.Narrate("%s suffers %d poison damage.", a.Name, n)
			}
		case models.EffectRegen:
			if n := a.Heal(s.Amount); n > 0 {
				g.Narrate("%s regenerates %d HP.", a.Name, n)
			}
		}
		s.Remaining--
		if s.Remaining > 0 {
			kept = append(kept, s)
		}
	}
	a.StatusEffects = kept
}
