package models

import (
	"errors"
	"fmt"
	"time"
)

// Phase is the round phase the driver is in.
type Phase string

const (
	PhaseInitiative     Phase = "INITIATIVE"
	PhaseThreatResponse Phase = "THREAT_RESPONSE"
	PhaseDrawPlacement  Phase = "DRAW_PLACEMENT"
	PhaseResolution     Phase = "RESOLUTION"
	PhaseCleanup        Phase = "CLEANUP"
	PhaseEndThreat      Phase = "END_THREAT"
	PhaseGameOver       Phase = "GAME_OVER"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool { return p == PhaseGameOver }

// Tier is the outcome band of an attack roll against a defense roll.
type Tier string

const (
	TierCritical     Tier = "critical"
	TierStrong       Tier = "strong"
	TierGlancing     Tier = "glancing"
	TierClash        Tier = "clash"
	TierDeflect      Tier = "deflect"
	TierParry        Tier = "parry"
	TierCriticalMiss Tier = "critical-miss"
)

// Position is one slot on the action bar.
type Position struct {
	Index    int    `json:"index"`
	Owner    Side   `json:"owner"`
	Stack    []Card `json:"stack"`
	Resolved bool   `json:"resolved"`
}

// ActionBar is resolved left to right.
type ActionBar []Position

// NextUnresolved returns the index of the first unresolved position, or -1.
func (b ActionBar) NextUnresolved() int {
	for i, p := range b {
		if !p.Resolved {
			return i
		}
	}
	return -1
}

// Done reports whether every position has been resolved.
func (b ActionBar) Done() bool { return b.NextUnresolved() < 0 }

// Count returns how many positions side owns.
func (b ActionBar) Count(side Side) int {
	n := 0
	for _, p := range b {
		if p.Owner == side {
			n++
		}
	}
	return n
}

// EncounterDeck is the shared deck of encounters and scenarios.
type EncounterDeck struct {
	Cards   []Card `json:"cards"`
	Discard []Card `json:"discard"`
}

// DrawFirst removes and returns the first card matching keep.
func (d *EncounterDeck) DrawFirst(keep func(Card) bool) (Card, bool) {
	for i, c := range d.Cards {
		if keep(c) {
			d.Cards = append(d.Cards[:i:i], d.Cards[i+1:]...)
			return c, true
		}
	}
	return Card{}, false
}

// Pot is the shared pool of loot claimed by the winner.
type Pot struct {
	Gold      int    `json:"gold"`
	Cards     []Card `json:"cards"`
	ClaimedBy Side   `json:"claimed_by,omitempty"`
}

// Add puts loot into the pot.
func (p *Pot) Add(cards ...Card) {
	for _, c := range cards {
		if c.Loot != nil {
			p.Gold += c.Loot.Gold
		}
		p.Cards = append(p.Cards, c)
	}
}

// Threat is an encounter that must be answered outside normal turn order.
type Threat struct {
	Card     Card   `json:"card"`
	Target   Side   `json:"target"`
	Origin   string `json:"origin"` // "initiative" or "scenario"
	Answered bool   `json:"answered"`
}

// Animation carries transient presentation flags for clients.
type Animation struct {
	Busy     bool   `json:"busy"`
	Shake    Side   `json:"shake,omitempty"`
	Flash    Tier   `json:"flash,omitempty"`
	Position int    `json:"position"`
	Card     string `json:"card,omitempty"`
}

// CombatRecord is the full breakdown of one attack resolution.
type CombatRecord struct {
	Round        int      `json:"round"`
	Attacker     string   `json:"attacker"`
	Defender     string   `json:"defender"`
	Card         string   `json:"card"`
	Stat         Stat     `json:"stat"`
	AttackRoll   int      `json:"attack_roll"`
	AttackMod    int      `json:"attack_mod"`
	AttackBonus  int      `json:"attack_bonus"`
	AttackTotal  int      `json:"attack_total"`
	DefenseRoll  int      `json:"defense_roll"`
	DefenseMod   int      `json:"defense_mod"`
	DefenseBonus int      `json:"defense_bonus"`
	DefenseTotal int      `json:"defense_total"`
	Diff         int      `json:"diff"`
	Tier         Tier     `json:"tier"`
	Multiplier   float64  `json:"multiplier"`
	Power        int      `json:"power"`
	Shield       int      `json:"shield"`
	Damage       int      `json:"damage"`
	Pool         string   `json:"pool"` // "hp" or "morale"
	Logs         []string `json:"logs"`
}

// InitiativeRolls records the last initiative roll of each side.
type InitiativeRolls struct {
	Player   int `json:"player"`
	Opponent int `json:"opponent"`
}

const maxNarration = 40

// GameState is the whole mutable game. Only the owning room mutates it.
type GameState struct {
	ID         string          `json:"id"`
	Seed       int64           `json:"seed"`
	Round      int             `json:"round"`
	Phase      Phase           `json:"phase"`
	Player     *Actor          `json:"player"`
	Opponent   *Actor          `json:"opponent"`
	Initiative Side            `json:"initiative"`
	Rolls      InitiativeRolls `json:"rolls"`
	Bar        ActionBar       `json:"bar"`
	Encounters EncounterDeck   `json:"encounters"`
	Pot        Pot             `json:"pot"`

	PendingThreat *Threat `json:"pending_threat,omitempty"`
	Winner        Side    `json:"winner,omitempty"`

	Narration []string       `json:"narration"`
	NarrSeq   int            `json:"narration_seq"`
	Animation Animation      `json:"animation"`
	Log       []CombatRecord `json:"log"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NarrationSince returns the lines narrated after seq, as far as they are still kept.
func (g *GameState) NarrationSince(seq int) []string {
	n := min(g.NarrSeq-seq, len(g.Narration))
	if n <= 0 {
		return nil
	}
	return append([]string(nil), g.Narration[len(g.Narration)-n:]...)
}

// Actor returns the actor on side.
func (g *GameState) Actor(s Side) *Actor {
	if s == SideOpponent {
		return g.Opponent
	}
	return g.Player
}

// Narrate appends a narration line, keeping only the most recent lines.
func (g *GameState) Narrate(format string, args ...any) {
	g.Narration = append(g.Narration, fmt.Sprintf(format, args...))
	g.NarrSeq++
	if n := len(g.Narration); n > maxNarration {
		g.Narration = append([]string(nil), g.Narration[n-maxNarration:]...)
	}
}

var ErrInvalidState = errors.New("invalid game state")

// Validate checks that the state names both actors and that every card it
// holds is well formed, so a decoded save can be resolved without surprises.
func (g *GameState) Validate() error {
	if g.ID == "" || g.Player == nil || g.Opponent == nil {
		return fmt.Errorf("%w: missing id or actors", ErrInvalidState)
	}
	check := func(where string, cards []Card) error {
		for i, c := range cards {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("%w: %s[%d]: %w", ErrInvalidState, where, i, err)
			}
		}
		return nil
	}
	for _, a := range []*Actor{g.Player, g.Opponent} {
		if a.Character.Type != "" {
			if err := check(string(a.Side)+".character", []Card{a.Character}); err != nil {
				return err
			}
		}
		piles := map[string][]Card{"hand": a.Hand, "draw_pile": a.DrawPile, "discard_pile": a.DiscardPile, "card_stack": a.CardStack}
		for name, cards := range piles {
			if err := check(string(a.Side)+"."+name, cards); err != nil {
				return err
			}
		}
	}
	for i, p := range g.Bar {
		if err := check(fmt.Sprintf("bar[%d]", i), p.Stack); err != nil {
			return err
		}
	}
	if err := check("encounters", g.Encounters.Cards); err != nil {
		return err
	}
	if err := check("encounters.discard", g.Encounters.Discard); err != nil {
		return err
	}
	if err := check("pot", g.Pot.Cards); err != nil {
		return err
	}
	if t := g.PendingThreat; t != nil {
		if t.Card.Type != CardEncounter {
			return fmt.Errorf("%w: pending threat %q is not an encounter", ErrInvalidState, t.Card.Key)
		}
		return check("pending_threat", []Card{t.Card})
	}
	return nil
}
