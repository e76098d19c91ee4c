package game

import (
	"fmt"

	"github.com/pefman/arcana-duel/internal/models"
)

// StepResult describes one resolved position.
type StepResult struct {
	Position  int                   `json:"position"`
	Records   []models.CombatRecord `json:"records"`
	Narration []string              `json:"narration"`
	Done      bool                  `json:"done"`
	Critical  bool                  `json:"critical"`
}

// ResolveNext resolves the first unresolved position on the action bar.
// Done is set once the bar is exhausted or the game has ended.
func (e *Engine) ResolveNext(g *models.GameState) (StepResult, error) {
	if g.Phase == models.PhaseGameOver {
		return StepResult{Position: -1, Done: true}, ErrGameOver
	}
	if g.Phase != models.PhaseResolution {
		return StepResult{Position: -1}, fmt.Errorf("%w: resolve during %s", ErrWrongPhase, g.Phase)
	}
	idx := g.Bar.NextUnresolved()
	if idx < 0 {
		return StepResult{Position: -1, Done: true}, nil
	}
	seq := g.NarrSeq
	pos := &g.Bar[idx]
	owner := g.Actor(pos.Owner)
	target := g.Actor(pos.Owner.Other())
	res := StepResult{Position: idx}

	if len(pos.Stack) == 0 {
		g.Narrate("%s hesitates.", owner.Name)
	}
	for _, c := range pos.Stack {
		if !c.IsAttack() {
			e.applySupport(g, owner, c)
		}
	}
	for _, c := range pos.Stack {
		if c.IsAttack() {
			if rec, ok := e.attack(g, owner, target, c); ok {
				res.Records = append(res.Records, rec)
				res.Critical = res.Critical || rec.Tier == models.TierCritical || rec.Tier == models.TierCriticalMiss
			}
		}
	}
	pos.Resolved = true
	g.UpdatedAt = e.now()

	over := e.settle(g)
	res.Done = over || g.Bar.Done()
	if !over {
		g.Animation.Position = g.Bar.NextUnresolved()
		g.Animation.Busy = !res.Done
	}
	res.Narration = g.NarrationSince(seq)
	return res, nil
}

// ResolveAll resolves the remaining positions without presentation delays.
func (e *Engine) ResolveAll(g *models.GameState) ([]StepResult, error) {
	var out []StepResult
	for {
		res, err := e.ResolveNext(g)
		if err != nil {
			return out, err
		}
		if res.Position >= 0 {
			out = append(out, res)
		}
		if res.Done {
			return out, nil
		}
	}
}

func (e *Engine) applySupport(g *models.GameState, a *models.Actor, c models.Card) {
	switch c.Type {
	case models.CardItem:
		e.applyEffectString(g, a, c.Item.Effect, c.Name)
	case models.CardApparel:
		a.Equip(c)
		g.Narrate("%s equips %s.", a.Name, c.Name)
		e.applyEffectString(g, a, c.Apparel.Effect, c.Name)
	case models.CardSkill:
		d := max(c.Skill.Duration, 1)
		a.AddStatus(models.Effect{Kind: models.EffectBonus, Amount: c.Skill.RollBonus, Duration: d}, c.Name)
		g.Narrate("%s uses %s (%+d to rolls for %d rounds).", a.Name, c.Name, c.Skill.RollBonus, d)
	}
}

// attack resolves one attack card. ok is false when the card fizzled.
func (e *Engine) attack(g *models.GameState, atk, def *models.Actor, c models.Card) (models.CombatRecord, bool) {
	if c.Attack.EnergyCost > 0 && !atk.SpendEnergy(c.Attack.EnergyCost) {
		g.Narrate("%s's %s fizzles (needs %d energy, has %d).", atk.Name, c.Name, c.Attack.EnergyCost, atk.Energy)
		return models.CombatRecord{}, false
	}
	stat := c.AttackStat()
	pool := "hp"
	if c.Type == models.CardTalk {
		pool = "morale"
	}
	rec := ResolveAttack(e.Rules, e.Roller, AttackInput{
		Round:        g.Round,
		Attacker:     atk.Name,
		Defender:     def.Name,
		Card:         c.Name,
		Stat:         stat,
		AttackMod:    atk.Mod(stat),
		AttackBonus:  atk.AttackBonus(),
		DefenseMod:   def.Mod(models.END),
		DefenseBonus: def.DefenseBonus(),
		Power:        c.Attack.Power,
		Shield:       def.Shield(),
		Pool:         pool,
	})
	e.land(g, atk, def, &rec)
	if Landed(rec) {
		e.applyEffectString(g, def, c.Attack.Effect, c.Name)
	}
	return rec, true
}

// land applies a scored record to the defender and logs it.
func (e *Engine) land(g *models.GameState, atk, def *models.Actor, rec *models.CombatRecord) {
	if rec.Pool == "morale" {
		rec.Damage = -def.AdjustMorale(-rec.Damage)
	} else {
		rec.Damage = def.Damage(rec.Damage)
	}
	g.Animation.Flash = rec.Tier
	g.Animation.Card = rec.Card
	if rec.Damage > 0 {
		g.Animation.Shake = def.Side
	} else {
		g.Animation.Shake = ""
	}
	switch {
	case rec.Tier == models.TierCriticalMiss && atk != nil:
		lost := -atk.AdjustMorale(-e.Rules.CriticalMissMorale)
		rec.Logs = append(rec.Logs, fmt.Sprintf("%s fumbles and loses %d morale", atk.Name, lost))
		g.Narrate("Critical miss! %s's %s goes wide.", rec.Attacker, rec.Card)
	case rec.Damage > 0:
		g.Narrate("%s's %s: %s, %d %s damage to %s.", rec.Attacker, rec.Card, rec.Tier, rec.Damage, rec.Pool, rec.Defender)
	default:
		g.Narrate("%s's %s: %s, no damage.", rec.Attacker, rec.Card, rec.Tier)
	}
	g.Log = append(g.Log, *rec)
	if n := len(g.Log); n > maxCombatLog {
		g.Log = append([]models.CombatRecord(nil), g.Log[n-maxCombatLog:]...)
	}
	if e.Recorder != nil {
		e.Recorder.RecordCombat(*rec)
	}
}
