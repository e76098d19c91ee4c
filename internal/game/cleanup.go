package game

import "github.com/pefman/arcana-duel/internal/models"

func (e *Engine) enterCleanup(g *models.GameState) {
	for _, p := range g.Bar {
		a := g.Actor(p.Owner)
		for _, c := range p.Stack {
			if c.Type != models.CardApparel {
				a.DiscardPile = append(a.DiscardPile, c)
			}
		}
	}
	g.Bar = nil
	g.Animation = models.Animation{Position: -1}

	for _, a := range []*models.Actor{g.Player, g.Opponent} {
		tickStatuses(g, a)
		a.RestoreEnergy(e.Rules.EnergyRegen)
		a.ResetAP()
	}
	if e.settle(g) {
		return
	}
	if g.Round%e.Rules.ScenarioEvery == 0 {
		e.drawScenario(g)
	}
}

func (e *Engine) drawScenario(g *models.GameState) {
	card, ok := g.Encounters.DrawFirst(func(c models.Card) bool { return c.Scenario != nil })
	if !ok {
		return
	}
	g.Encounters.Discard = append(g.Encounters.Discard, card)
	g.Narrate("Scenario: %s.", card.Name)
	if sc := card.Scenario; sc.Effect != "" {
		for _, a := range []*models.Actor{g.Player, g.Opponent} {
			e.applyEffectString(g, a, sc.Effect, card.Name)
		}
		if e.settle(g) {
			return
		}
	}
	if t := card.Scenario.Threat; t != nil && t.Encounter != nil {
		g.PendingThreat = &models.Threat{Card: t.Clone(), Target: g.Initiative.Other(), Origin: "scenario"}
	}
}
