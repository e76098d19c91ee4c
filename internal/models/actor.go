package models

// Side identifies one of the two actors in a game.
type Side string

const (
	SidePlayer   Side = "player"
	SideOpponent Side = "opponent"
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SidePlayer {
		return SideOpponent
	}
	return SidePlayer
}

// Actor is one combatant. Pools are clamped into [0,max] by the mutators below.
type Actor struct {
	Side      Side           `json:"side"`
	Name      string         `json:"name"`
	Character Card           `json:"character"`
	Stats     CharacterStats `json:"stats"`

	HP        int `json:"hp"`
	MaxHP     int `json:"max_hp"`
	Energy    int `json:"energy"`
	MaxEnergy int `json:"max_energy"`
	Morale    int `json:"morale"`
	MaxMorale int `json:"max_morale"`
	AP        int `json:"ap"`
	MaxAP     int `json:"max_ap"`

	Hand          []Card         `json:"hand"`
	DrawPile      []Card         `json:"draw_pile"`
	DiscardPile   []Card         `json:"discard_pile"`
	CardStack     []Card         `json:"card_stack"`
	StatusEffects []StatusEffect `json:"status_effects"`
}

// NewActor seeds an actor from a character card.
func NewActor(side Side, name string, character Card) *Actor {
	st := CharacterStats{STR: 10, DEX: 10, END: 10, MAG: 10, CHA: 10, HP: 1}
	if character.Character != nil {
		st = *character.Character
	}
	if name == "" {
		name = character.Name
	}
	return &Actor{
		Side:      side,
		Name:      name,
		Character: character,
		Stats:     st,
		HP:        st.HP,
		MaxHP:     st.HP,
		Energy:    st.Energy,
		MaxEnergy: st.Energy,
		Morale:    st.Morale,
		MaxMorale: st.Morale,
		AP:        st.AP,
		MaxAP:     st.AP,
	}
}

func clamp(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Modifier is floor((stat-10)/2).
func Modifier(stat int) int {
	d := stat - 10
	if d < 0 {
		return -((-d + 1) / 2)
	}
	return d / 2
}

// Mod returns the roll modifier for the named stat.
func (a *Actor) Mod(s Stat) int { return Modifier(a.Stats.Value(s)) }

// Damage removes up to n HP and returns how much was actually lost.
func (a *Actor) Damage(n int) int {
	if n <= 0 {
		return 0
	}
	before := a.HP
	a.HP = clamp(0, a.MaxHP, a.HP-n)
	return before - a.HP
}

// Heal restores up to n HP and returns how much was actually gained.
func (a *Actor) Heal(n int) int {
	if n <= 0 {
		return 0
	}
	before := a.HP
	a.HP = clamp(0, a.MaxHP, a.HP+n)
	return a.HP - before
}

// AdjustMorale shifts morale by delta and returns the applied change.
func (a *Actor) AdjustMorale(delta int) int {
	before := a.Morale
	a.Morale = clamp(0, a.MaxMorale, a.Morale+delta)
	return a.Morale - before
}

// RestoreEnergy adds up to n energy and returns the applied change.
func (a *Actor) RestoreEnergy(n int) int {
	if n <= 0 {
		return 0
	}
	before := a.Energy
	a.Energy = clamp(0, a.MaxEnergy, a.Energy+n)
	return a.Energy - before
}

// SpendEnergy deducts n energy if available.
func (a *Actor) SpendEnergy(n int) bool {
	if n < 0 || a.Energy < n {
		return false
	}
	a.Energy -= n
	return true
}

// SpendAP deducts n AP if available. AP never goes negative.
func (a *Actor) SpendAP(n int) bool {
	if n < 0 || a.AP < n {
		return false
	}
	a.AP -= n
	return true
}

// ResetAP refills AP to its maximum.
func (a *Actor) ResetAP() { a.AP = a.MaxAP }

// Defeated reports whether the actor is out of HP or morale.
func (a *Actor) Defeated() bool { return a.HP <= 0 || a.Morale <= 0 }

// HandIndex returns the index of card id in hand, or -1.
func (a *Actor) HandIndex(id string) int {
	for i, c := range a.Hand {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// TakeFromHand removes card id from hand.
func (a *Actor) TakeFromHand(id string) (Card, bool) {
	i := a.HandIndex(id)
	if i < 0 {
		return Card{}, false
	}
	c := a.Hand[i]
	a.Hand = append(a.Hand[:i:i], a.Hand[i+1:]...)
	return c, true
}

// Equip moves apparel into the card stack.
func (a *Actor) Equip(c Card) { a.CardStack = append(a.CardStack, c) }

// AddStatus attaches a lasting effect.
func (a *Actor) AddStatus(e Effect, source string) {
	a.StatusEffects = append(a.StatusEffects, StatusEffect{
		Kind:      e.Kind,
		Amount:    e.Amount,
		Remaining: e.Duration,
		Source:    source,
	})
}

// Cleanse drops harmful statuses.
func (a *Actor) Cleanse() int {
	kept := a.StatusEffects[:0]
	removed := 0
	for _, s := range a.StatusEffects {
		if s.Kind == EffectPoison {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	a.StatusEffects = kept
	return removed
}

func (a *Actor) statusTotal(kind EffectKind) int {
	n := 0
	for _, s := range a.StatusEffects {
		if s.Kind == kind && s.Remaining > 0 {
			n += s.Amount
		}
	}
	return n
}

// AttackBonus sums equipped apparel and active roll bonuses.
func (a *Actor) AttackBonus() int {
	n := a.statusTotal(EffectBonus)
	for _, c := range a.CardStack {
		if c.Apparel != nil {
			n += c.Apparel.AttackBonus
		}
	}
	return n
}

// DefenseBonus sums equipped apparel and active roll bonuses.
func (a *Actor) DefenseBonus() int {
	n := a.statusTotal(EffectBonus)
	for _, c := range a.CardStack {
		if c.Apparel != nil {
			n += c.Apparel.DefenseBonus
		}
	}
	return n
}

// Shield is the flat damage reduction from active shield statuses.
func (a *Actor) Shield() int { return a.statusTotal(EffectShield) }
