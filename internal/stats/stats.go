// Package stats keeps in-memory daily records keyed by UTC date.
package stats

import (
	"maps"
	"sync"
	"time"

	"github.com/pefman/arcana-duel/internal/models"
)

const dateLayout = "2006-01-02"

// Hit is a single attack considered for the daily top damage.
type Hit struct {
	Attacker    string      `json:"attacker"`
	Defender    string      `json:"defender"`
	Card        string      `json:"card"`
	Tier        models.Tier `json:"tier"`
	Damage      int         `json:"damage"`
	AttackTotal int         `json:"attack_total"`
	At          time.Time   `json:"at"`
}

// Defense is a defense roll considered for the daily worst defense.
type Defense struct {
	Defender     string    `json:"defender"`
	Attacker     string    `json:"attacker"`
	Card         string    `json:"card"`
	Roll         int       `json:"roll"`
	DefenseTotal int       `json:"defense_total"`
	At           time.Time `json:"at"`
}

// Day is the record set of one UTC date.
type Day struct {
	Date         string         `json:"date"`
	TopDamage    *Hit           `json:"top_damage,omitempty"`
	WorstDefense *Defense       `json:"worst_defense,omitempty"`
	Wins         map[string]int `json:"wins"`
	Losses       map[string]int `json:"losses"`
}

// Daily is safe for concurrent use; every game room reports into one instance.
type Daily struct {
	mu   sync.Mutex
	days map[string]*Day
	now  func() time.Time
}

func NewDaily() *Daily {
	return &Daily{days: make(map[string]*Day), now: time.Now}
}

// today returns the record for the current UTC date. Callers hold mu.
func (d *Daily) today() *Day {
	key := d.now().UTC().Format(dateLayout)
	day := d.days[key]
	if day == nil {
		day = &Day{Date: key, Wins: map[string]int{}, Losses: map[string]int{}}
		d.days[key] = day
	}
	return day
}

// MaybeTopDamage replaces today's top hit if h did more damage, or the same
// damage with a higher attack total. It reports whether h became the record.
func (d *Daily) MaybeTopDamage(h Hit) bool {
	if h.Damage <= 0 {
		return false
	}
	if h.At.IsZero() {
		h.At = d.now().UTC()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	day := d.today()
	cur := day.TopDamage
	if cur == nil || h.Damage > cur.Damage || (h.Damage == cur.Damage && h.AttackTotal > cur.AttackTotal) {
		day.TopDamage = &h
		return true
	}
	return false
}

// MaybeWorstDefense replaces today's worst defense if def totals lower, or
// ties with a lower natural roll.
func (d *Daily) MaybeWorstDefense(def Defense) bool {
	if def.At.IsZero() {
		def.At = d.now().UTC()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	day := d.today()
	cur := day.WorstDefense
	if cur == nil || def.DefenseTotal < cur.DefenseTotal || (def.DefenseTotal == cur.DefenseTotal && def.Roll < cur.Roll) {
		day.WorstDefense = &def
		return true
	}
	return false
}

func (d *Daily) RecordResult(winner, loser string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	day := d.today()
	if winner != "" {
		day.Wins[winner]++
	}
	if loser != "" {
		day.Losses[loser]++
	}
}

// RecordCombat feeds a resolved attack into today's records.
func (d *Daily) RecordCombat(rec models.CombatRecord) {
	d.MaybeTopDamage(Hit{
		Attacker:    rec.Attacker,
		Defender:    rec.Defender,
		Card:        rec.Card,
		Tier:        rec.Tier,
		Damage:      rec.Damage,
		AttackTotal: rec.AttackTotal,
	})
	d.MaybeWorstDefense(Defense{
		Defender:     rec.Defender,
		Attacker:     rec.Attacker,
		Card:         rec.Card,
		Roll:         rec.DefenseRoll,
		DefenseTotal: rec.DefenseTotal,
	})
}

func (d *Daily) RecordGame(winner, loser string) { d.RecordResult(winner, loser) }

// Today returns a copy of today's records.
func (d *Daily) Today() Day {
	d.mu.Lock()
	defer d.mu.Unlock()
	day := d.today()
	out := *day
	out.Wins = maps.Clone(day.Wins)
	out.Losses = maps.Clone(day.Losses)
	if day.TopDamage != nil {
		h := *day.TopDamage
		out.TopDamage = &h
	}
	if day.WorstDefense != nil {
		w := *day.WorstDefense
		out.WorstDefense = &w
	}
	return out
}

// Reset clears every day.
func (d *Daily) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.days)
}
