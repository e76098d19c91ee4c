package game

import (
	"fmt"
	"math"

	"github.com/pefman/arcana-duel/internal/config"
	"github.com/pefman/arcana-duel/internal/engine"
	"github.com/pefman/arcana-duel/internal/models"
)

// AttackInput captures everything an attack resolution needs besides the dice.
type AttackInput struct {
	Round        int
	Attacker     string
	Defender     string
	Card         string
	Stat         models.Stat
	AttackMod    int
	AttackBonus  int
	DefenseMod   int
	DefenseBonus int
	Power        int
	Shield       int
	Pool         string // "hp" or "morale"
}

func roundHalfUp(x float64) int { return int(math.Floor(x + 0.5)) }

// ResolveAttack rolls one d20 for the attacker, then one for the defender, and scores the result.
func ResolveAttack(rules config.Rules, r engine.Roller, in AttackInput) models.CombatRecord {
	atk := engine.D20(r)
	def := engine.D20(r)
	return Score(rules, atk, def, in)
}

// Score is the deterministic half of an attack: given both natural rolls it
// derives totals, the tier band and the damage.
func Score(rules config.Rules, attackRoll, defenseRoll int, in AttackInput) models.CombatRecord {
	rec := models.CombatRecord{
		Round:        in.Round,
		Attacker:     in.Attacker,
		Defender:     in.Defender,
		Card:         in.Card,
		Stat:         in.Stat,
		AttackRoll:   attackRoll,
		AttackMod:    in.AttackMod,
		AttackBonus:  in.AttackBonus,
		DefenseRoll:  defenseRoll,
		DefenseMod:   in.DefenseMod,
		DefenseBonus: in.DefenseBonus,
		Power:        in.Power,
		Shield:       in.Shield,
		Pool:         in.Pool,
	}
	if rec.Pool == "" {
		rec.Pool = "hp"
	}
	logs := make([]string, 0, 6)

	rec.AttackTotal = attackRoll + in.AttackMod + in.AttackBonus
	logs = append(logs, fmt.Sprintf("%s attacks with %s: d20 %d %+d %s %+d bonus = %d",
		in.Attacker, in.Card, attackRoll, in.AttackMod, in.Stat, in.AttackBonus, rec.AttackTotal))

	rec.DefenseTotal = defenseRoll + in.DefenseMod + in.DefenseBonus
	logs = append(logs, fmt.Sprintf("%s defends: d20 %d %+d END %+d bonus = %d",
		in.Defender, defenseRoll, in.DefenseMod, in.DefenseBonus, rec.DefenseTotal))

	rec.Diff = rec.AttackTotal - rec.DefenseTotal
	band := rules.Band(rec.Diff)
	rec.Tier = band.Tier
	rec.Multiplier = band.Multiplier
	logs = append(logs, fmt.Sprintf("Difference %+d -> %s (x%.2f)", rec.Diff, rec.Tier, rec.Multiplier))

	raw := roundHalfUp(float64(in.Power) * band.Multiplier)
	dmg := raw
	if raw > 0 && in.Shield > 0 {
		dmg = max(raw-in.Shield, 0)
		logs = append(logs, fmt.Sprintf("Shield absorbs %d of %d", raw-dmg, raw))
	}
	rec.Damage = dmg
	logs = append(logs, fmt.Sprintf("Power %d -> %d %s damage", in.Power, dmg, rec.Pool))

	rec.Logs = logs
	return rec
}

// Landed reports whether the attacker got the better of the exchange.
func Landed(rec models.CombatRecord) bool { return rec.Diff >= 0 && rec.Multiplier > 0 }
