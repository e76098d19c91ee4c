// Package game drives a duel through its round phases and resolves combat.
package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pefman/arcana-duel/internal/catalog"
	"github.com/pefman/arcana-duel/internal/config"
	"github.com/pefman/arcana-duel/internal/engine"
	"github.com/pefman/arcana-duel/internal/models"
)

const maxCombatLog = 50

// Recorder receives combat results and finished games, e.g. for daily records.
type Recorder interface {
	RecordCombat(rec models.CombatRecord)
	RecordGame(winner, loser string)
}

// Engine mutates GameStates. It is not safe for concurrent use; callers own
// one engine per game and serialize access to it.
type Engine struct {
	Rules    config.Rules
	Roller   engine.Roller
	Recorder Recorder
	Now      func() time.Time
}

// NewEngine builds an engine rolling with roller.
func NewEngine(rules config.Rules, roller engine.Roller) *Engine {
	return &Engine{Rules: rules, Roller: roller, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Setup selects the decks and names for a new game.
type Setup struct {
	ID           string `json:"id,omitempty"`
	Seed         int64  `json:"seed,omitempty"`
	PlayerName   string `json:"player_name,omitempty"`
	PlayerDeck   string `json:"player_deck"`
	OpponentName string `json:"opponent_name,omitempty"`
	OpponentDeck string `json:"opponent_deck"`
}

// NewGame deals a fresh game and rolls initiative for round 1.
func (e *Engine) NewGame(cat *catalog.Catalog, s Setup) (*models.GameState, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	g := &models.GameState{
		ID:        s.ID,
		Seed:      s.Seed,
		Round:     1,
		Phase:     models.PhaseInitiative,
		CreatedAt: e.now(),
	}
	var err error
	if g.Player, err = e.newActor(cat, models.SidePlayer, s.PlayerName, s.PlayerDeck); err != nil {
		return nil, err
	}
	if g.Opponent, err = e.newActor(cat, models.SideOpponent, s.OpponentName, s.OpponentDeck); err != nil {
		return nil, err
	}
	g.Encounters.Cards = cat.EncounterDeck()
	e.shuffle(g.Encounters.Cards)

	g.Narrate("%s faces %s.", g.Player.Name, g.Opponent.Name)
	e.enterInitiative(g)
	g.UpdatedAt = e.now()
	return g, nil
}

func (e *Engine) newActor(cat *catalog.Catalog, side models.Side, name, deck string) (*models.Actor, error) {
	ch, cards, err := cat.Deck(deck)
	if err != nil {
		return nil, fmt.Errorf("%s deck: %w", side, err)
	}
	a := models.NewActor(side, name, ch)
	e.shuffle(cards)
	a.DrawPile = cards
	return a, nil
}

func (e *Engine) shuffle(cards []models.Card) {
	engine.Shuffle(e.Roller, len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

// Conditions are the facts the transition table branches on.
type Conditions struct {
	PendingThreat bool
	Defeated      bool
}

// Transition is the phase table. It is pure so it can be checked exhaustively.
func Transition(from models.Phase, c Conditions) (models.Phase, error) {
	if from == models.PhaseGameOver {
		return from, ErrGameOver
	}
	switch from {
	case models.PhaseInitiative, models.PhaseThreatResponse, models.PhaseDrawPlacement,
		models.PhaseResolution, models.PhaseCleanup, models.PhaseEndThreat:
	default:
		return from, fmt.Errorf("%w: %q", ErrUnknownPhase, from)
	}
	if c.Defeated {
		return models.PhaseGameOver, nil
	}
	switch from {
	case models.PhaseInitiative:
		if c.PendingThreat {
			return models.PhaseThreatResponse, nil
		}
		return models.PhaseDrawPlacement, nil
	case models.PhaseThreatResponse:
		return models.PhaseDrawPlacement, nil
	case models.PhaseDrawPlacement:
		return models.PhaseResolution, nil
	case models.PhaseResolution:
		return models.PhaseCleanup, nil
	case models.PhaseCleanup:
		if c.PendingThreat {
			return models.PhaseEndThreat, nil
		}
		return models.PhaseInitiative, nil
	default: // END_THREAT
		return models.PhaseInitiative, nil
	}
}

func defeated(g *models.GameState) bool {
	return g.Player.Defeated() || g.Opponent.Defeated()
}

// Advance leaves the current phase and enters the next one, doing the entry
// work of the new phase (initiative roll, dealing, cleanup, threat handling).
func (e *Engine) Advance(g *models.GameState) error {
	if err := e.checkExit(g); err != nil {
		return err
	}
	next, err := Transition(g.Phase, Conditions{
		PendingThreat: g.PendingThreat != nil && !g.PendingThreat.Answered,
		Defeated:      defeated(g),
	})
	if err != nil {
		return err
	}
	if g.Phase == models.PhaseThreatResponse || g.Phase == models.PhaseEndThreat {
		g.PendingThreat = nil
	}
	e.enter(g, next)
	g.UpdatedAt = e.now()
	return nil
}

func (e *Engine) checkExit(g *models.GameState) error {
	switch g.Phase {
	case models.PhaseThreatResponse, models.PhaseEndThreat:
		if g.PendingThreat != nil && !g.PendingThreat.Answered && !defeated(g) {
			return ErrThreatUnanswered
		}
	case models.PhaseResolution:
		if !g.Bar.Done() && !defeated(g) {
			return ErrResolutionPending
		}
	}
	return nil
}

func (e *Engine) enter(g *models.GameState, p models.Phase) {
	g.Phase = p
	switch p {
	case models.PhaseInitiative:
		g.Round++
		e.enterInitiative(g)
	case models.PhaseThreatResponse, models.PhaseEndThreat:
		e.enterThreat(g)
	case models.PhaseDrawPlacement:
		e.enterDrawPlacement(g)
	case models.PhaseResolution:
		g.Animation = models.Animation{Busy: true, Position: g.Bar.NextUnresolved()}
		g.Narrate("Round %d: resolving %d positions.", g.Round, len(g.Bar))
	case models.PhaseCleanup:
		e.enterCleanup(g)
	case models.PhaseGameOver:
		e.finish(g)
	}
}

// settle moves the game to GAME_OVER as soon as either actor is defeated.
func (e *Engine) settle(g *models.GameState) bool {
	if g.Phase == models.PhaseGameOver {
		return true
	}
	if !defeated(g) {
		return false
	}
	e.enter(g, models.PhaseGameOver)
	return true
}

func (e *Engine) finish(g *models.GameState) {
	g.Phase = models.PhaseGameOver
	g.Animation = models.Animation{Position: -1}
	p, o := g.Player, g.Opponent
	switch {
	case p.Defeated() && !o.Defeated():
		g.Winner = models.SideOpponent
	case o.Defeated() && !p.Defeated():
		g.Winner = models.SidePlayer
	case p.HP > o.HP:
		g.Winner = models.SidePlayer
	case o.HP > p.HP:
		g.Winner = models.SideOpponent
	}
	if g.Winner == "" {
		g.Narrate("Both fall. The duel ends in a draw.")
		return
	}
	w, l := g.Actor(g.Winner), g.Actor(g.Winner.Other())
	g.Pot.ClaimedBy = g.Winner
	g.Narrate("%s wins and claims the pot (%d gold, %d cards).", w.Name, g.Pot.Gold, len(g.Pot.Cards))
	if e.Recorder != nil {
		e.Recorder.RecordGame(w.Name, l.Name)
	}
}

func (e *Engine) enterInitiative(g *models.GameState) {
	p, o := g.Player, g.Opponent
	pr, or := engine.D20(e.Roller), engine.D20(e.Roller)
	g.Rolls = models.InitiativeRolls{Player: pr, Opponent: or}
	pt, ot := pr+p.Mod(models.DEX), or+o.Mod(models.DEX)
	switch {
	case pt > ot, pt == ot && p.Stats.DEX >= o.Stats.DEX:
		g.Initiative = models.SidePlayer
	default:
		g.Initiative = models.SideOpponent
	}
	g.Narrate("Round %d initiative: %s %d, %s %d. %s acts first.",
		g.Round, p.Name, pt, o.Name, ot, g.Actor(g.Initiative).Name)

	for _, side := range []models.Side{models.SidePlayer, models.SideOpponent} {
		roll := pr
		if side == models.SideOpponent {
			roll = or
		}
		switch roll {
		case 1:
			if g.PendingThreat == nil {
				e.drawThreat(g, side)
			}
		case 20:
			e.drawFortune(g, side)
		}
	}
}

func (e *Engine) drawThreat(g *models.GameState, target models.Side) {
	card, ok := g.Encounters.DrawFirst(func(c models.Card) bool {
		return c.Encounter != nil && c.Encounter.Threat
	})
	if !ok {
		g.Narrate("%s stumbles, but nothing lurks nearby.", g.Actor(target).Name)
		return
	}
	g.PendingThreat = &models.Threat{Card: card, Target: target, Origin: "initiative"}
	g.Narrate("%s rolls a natural 1. %s emerges!", g.Actor(target).Name, card.Name)
}

func (e *Engine) drawFortune(g *models.GameState, side models.Side) {
	card, ok := g.Encounters.DrawFirst(func(c models.Card) bool {
		return c.Encounter != nil && !c.Encounter.Threat
	})
	if !ok {
		return
	}
	a := g.Actor(side)
	g.Narrate("%s rolls a natural 20 and meets %s.", a.Name, card.Name)
	for _, l := range card.Encounter.Loot {
		if l.Loot != nil && l.Loot.Effect != "" {
			if eff, err := models.ParseEffect(l.Loot.Effect); err == nil {
				e.applyEffect(g, a, eff, l.Name)
			}
		}
	}
	e.lootToPot(g, card.Encounter.Loot)
	g.Encounters.Discard = append(g.Encounters.Discard, card)
}

// lootToPot settles any gold dice on the loot and adds it to the pot.
func (e *Engine) lootToPot(g *models.GameState, loot []models.Card) {
	for _, c := range loot {
		c = c.Clone()
		if l := c.Loot; l != nil && l.GoldRoll != "" {
			extra := engine.Roll(e.Roller, l.GoldRoll)
			g.Narrate("%s holds %d more gold (%s).", c.Name, extra, l.GoldRoll)
			l.Gold += extra
			l.GoldRoll = ""
		}
		g.Pot.Add(c)
	}
}

func (e *Engine) enterDrawPlacement(g *models.GameState) {
	for _, a := range []*models.Actor{g.Player, g.Opponent} {
		a.ResetAP()
		e.drawTo(a, e.Rules.HandSize)
	}
	g.Bar = BuildBar(g.Initiative, g.Player.AP, g.Opponent.AP)
	g.Animation = models.Animation{Position: -1}
	g.Narrate("Round %d: %d positions on the action bar.", g.Round, len(g.Bar))
	e.AutoPlace(g, models.SideOpponent)
}

// BuildBar interleaves positions starting with the initiative holder. Once
// one side runs out of AP the other side fills the remaining positions.
// The bar always has firstAP+secondAP positions.
func BuildBar(first models.Side, playerAP, opponentAP int) models.ActionBar {
	left := map[models.Side]int{models.SidePlayer: max(playerAP, 0), models.SideOpponent: max(opponentAP, 0)}
	n := left[models.SidePlayer] + left[models.SideOpponent]
	bar := make(models.ActionBar, 0, n)
	turn := first
	for len(bar) < n {
		if left[turn] == 0 {
			turn = turn.Other()
		}
		bar = append(bar, models.Position{Index: len(bar), Owner: turn})
		left[turn]--
		turn = turn.Other()
	}
	return bar
}

// drawTo fills the hand up to size, reshuffling the discard pile when the draw pile runs out.
func (e *Engine) drawTo(a *models.Actor, size int) {
	for len(a.Hand) < size {
		if len(a.DrawPile) == 0 {
			if len(a.DiscardPile) == 0 {
				return
			}
			a.DrawPile, a.DiscardPile = a.DiscardPile, nil
			e.shuffle(a.DrawPile)
		}
		a.Hand = append(a.Hand, a.DrawPile[0])
		a.DrawPile = a.DrawPile[1:]
	}
}
