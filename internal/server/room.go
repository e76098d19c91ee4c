package server

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pefman/arcana-duel/internal/game"
	"github.com/pefman/arcana-duel/internal/models"
)

type wsMsg struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Room owns one game. Every mutation of state happens under mu and is
// followed by a broadcast.
type Room struct {
	ID string

	mu        sync.Mutex
	engine    *game.Engine
	state     *models.GameState
	clients   map[*client]struct{}
	timer     *time.Timer
	resolving bool
	closed    bool

	logger *zap.Logger
}

func newRoom(g *models.GameState, e *game.Engine, logger *zap.Logger) *Room {
	return &Room{
		ID:      g.ID,
		engine:  e,
		state:   g,
		clients: map[*client]struct{}{},
		logger:  logger.With(zap.String("game", g.ID)),
	}
}

// do runs fn under the room lock and broadcasts the resulting state.
func (r *Room) do(fn func(e *game.Engine, g *models.GameState) error) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := fn(r.engine, r.state); err != nil {
		return nil, err
	}
	return r.broadcastStateLocked(), nil
}

// view returns the encoded state without mutating it.
func (r *Room) view() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, _ := json.Marshal(r.state)
	return b
}

func (r *Room) broadcastStateLocked() []byte {
	b, err := json.Marshal(r.state)
	if err != nil {
		r.logger.Error("encode state", zap.Error(err))
		return nil
	}
	r.sendLocked(wsMsg{Type: "state", Data: json.RawMessage(b)})
	return b
}

func (r *Room) sendLocked(m wsMsg) {
	b, err := json.Marshal(m)
	if err != nil {
		r.logger.Error("encode ws message", zap.String("type", m.Type), zap.Error(err))
		return
	}
	for c := range r.clients {
		if !c.offer(b) {
			r.logger.Warn("ws: client too slow, dropping")
			delete(r.clients, c)
			c.close()
		}
	}
}

func (r *Room) send(m wsMsg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendLocked(m)
}

func (r *Room) subscribe(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		c.close()
		return
	}
	r.clients[c] = struct{}{}
	b, _ := json.Marshal(wsMsg{Type: "state", Data: r.state})
	c.offer(b)
}

func (r *Room) unsubscribe(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; ok {
		delete(r.clients, c)
		c.close()
	}
}

// startResolve schedules the action bar to resolve one position at a time,
// waiting the configured step delay (or the critical delay) between steps.
func (r *Room) startResolve() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != models.PhaseResolution {
		if r.state.Phase == models.PhaseGameOver {
			return nil, game.ErrGameOver
		}
		return nil, game.ErrWrongPhase
	}
	if r.resolving {
		return nil, errAlreadyActive
	}
	r.resolving = true
	r.timer = time.AfterFunc(0, r.resolveStep)
	return r.broadcastStateLocked(), nil
}

func (r *Room) resolveStep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.resolving {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("auto-resolve panicked", zap.Any("panic", p), zap.Stack("stack"))
			r.resolving = false
			r.timer = nil
		}
	}()
	res, err := r.engine.ResolveNext(r.state)
	if err != nil {
		r.logger.Debug("auto-resolve stopped", zap.Error(err))
		r.resolving = false
		r.broadcastStateLocked()
		return
	}
	r.sendLocked(wsMsg{Type: "step", Data: res})
	r.broadcastStateLocked()
	if res.Done {
		r.resolving = false
		r.logger.Debug("auto-resolve finished", zap.String("phase", string(r.state.Phase)))
		return
	}
	delay := r.engine.Rules.Resolution.Step
	if res.Critical {
		delay = r.engine.Rules.Resolution.Critical
	}
	r.timer = time.AfterFunc(delay, r.resolveStep)
}

// isResolving reports whether an auto-resolve is scheduled.
func (r *Room) isResolving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolving
}

// close stops pending timers and disconnects every client.
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.resolving = false
	if r.timer != nil {
		r.timer.Stop()
	}
	for c := range r.clients {
		delete(r.clients, c)
		c.close()
	}
}
