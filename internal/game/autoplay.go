package game

import (
	"errors"

	"github.com/pefman/arcana-duel/internal/models"
)

// ErrRoundLimit is returned by Play when the game outlasts the round cap.
var ErrRoundLimit = errors.New("round limit reached")

// Step drives g forward by one decision with both sides under AI control.
func (e *Engine) Step(g *models.GameState) error {
	switch g.Phase {
	case models.PhaseGameOver:
		return ErrGameOver
	case models.PhaseThreatResponse, models.PhaseEndThreat:
		if t := g.PendingThreat; t != nil && !t.Answered {
			return e.AutoRespond(g)
		}
	case models.PhaseDrawPlacement:
		if g.Player.AP > 0 && !placedAny(g.Bar, models.SidePlayer) {
			e.AutoPlace(g, models.SidePlayer)
		}
	case models.PhaseResolution:
		if !g.Bar.Done() {
			_, err := e.ResolveNext(g)
			return err
		}
	}
	return e.Advance(g)
}

// Play runs a fully automated game until it ends or maxRounds have been played.
func (e *Engine) Play(g *models.GameState, maxRounds int) error {
	for g.Phase != models.PhaseGameOver {
		if maxRounds > 0 && g.Round > maxRounds {
			return ErrRoundLimit
		}
		if err := e.Step(g); err != nil {
			return err
		}
	}
	return nil
}

func placedAny(bar models.ActionBar, side models.Side) bool {
	for _, p := range bar {
		if p.Owner == side && len(p.Stack) > 0 {
			return true
		}
	}
	return false
}
