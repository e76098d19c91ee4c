package game

import "errors"

var (
	ErrGameOver          = errors.New("game is over")
	ErrWrongPhase        = errors.New("action not allowed in this phase")
	ErrUnknownPhase      = errors.New("unknown phase")
	ErrNotEnoughAP       = errors.New("not enough AP")
	ErrCardNotInHand     = errors.New("card not in hand")
	ErrNotPlaceable      = errors.New("card cannot be placed on the action bar")
	ErrInvalidPosition   = errors.New("invalid action bar position")
	ErrStackFull         = errors.New("position stack is full")
	ErrResolutionPending = errors.New("action bar has unresolved positions")
	ErrThreatUnanswered  = errors.New("pending threat has not been answered")
	ErrNoThreat          = errors.New("no pending threat")
	ErrNotThreatTarget   = errors.New("threat targets the other side")
	ErrNotDefensive      = errors.New("card cannot answer a threat")
)
