package director

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ChatClient sends one message into a chat session and returns the reply text.
type ChatClient interface {
	Send(ctx context.Context, session, message string) (string, error)
}

// SnapshotSource returns the state to report on this tick.
type SnapshotSource func(ctx context.Context) (map[string]any, error)

// Sink receives every accepted directive.
type Sink func(ctx context.Context, d Directive)

type Config struct {
	Session  string
	Interval time.Duration
	// LogEvery throttles warnings during an error streak: the first error and
	// every LogEvery-th consecutive one are logged at warn, the rest at debug.
	LogEvery int
}

// Stats counts ticks since the director started.
type Stats struct {
	Ticks             int64     `json:"ticks"`
	Successes         int64     `json:"successes"`
	Errors            int64     `json:"errors"`
	ConsecutiveErrors int64     `json:"consecutive_errors"`
	LastError         string    `json:"last_error,omitempty"`
	LastTick          time.Time `json:"last_tick"`
}

type Director struct {
	cfg    Config
	chat   ChatClient
	source SnapshotSource
	sink   Sink
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	stats Stats
	last  *Directive
}

func New(cfg Config, chat ChatClient, source SnapshotSource, sink Sink, logger *zap.Logger) *Director {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Director{
		cfg:    cfg,
		chat:   chat,
		source: source,
		sink:   sink,
		logger: logger.With(zap.String("component", "director"), zap.String("session", cfg.Session)),
		now:    time.Now,
	}
}

// Run ticks until ctx is done. Ticks never overlap: a slow reply delays the
// next tick instead of stacking requests.
func (d *Director) Run(ctx context.Context) error {
	d.logger.Info("director started", zap.Duration("interval", d.cfg.Interval))
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("director stopped")
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one poll-send-parse cycle.
func (d *Director) Tick(ctx context.Context) {
	d.mu.Lock()
	d.stats.Ticks++
	d.stats.LastTick = d.now()
	d.mu.Unlock()

	dir, err := d.poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.fail(err)
		return
	}
	for _, w := range dir.Warnings {
		d.logger.Warn("directive field dropped", zap.String("reason", w))
	}

	d.mu.Lock()
	streak := d.stats.ConsecutiveErrors
	d.stats.Successes++
	d.stats.ConsecutiveErrors = 0
	d.last = &dir
	d.mu.Unlock()

	if streak > 0 {
		d.logger.Info("director recovered", zap.Int64("after_errors", streak))
	}
	if d.sink != nil {
		d.sink(ctx, dir)
	}
}

func (d *Director) poll(ctx context.Context) (Directive, error) {
	tctx, cancel := context.WithTimeout(ctx, d.cfg.Interval)
	defer cancel()

	snap, err := d.source(tctx)
	if err != nil {
		return Directive{}, fmt.Errorf("snapshot: %w", err)
	}
	msg, err := json.Marshal(snap)
	if err != nil {
		return Directive{}, fmt.Errorf("encode snapshot: %w", err)
	}
	reply, err := d.chat.Send(tctx, d.cfg.Session, string(msg))
	if err != nil {
		return Directive{}, fmt.Errorf("chat: %w", err)
	}
	dir, err := Parse(reply)
	if err != nil {
		return Directive{}, err
	}
	dir.ReceivedAt = d.now()
	return dir, nil
}

func (d *Director) fail(err error) {
	d.mu.Lock()
	d.stats.Errors++
	d.stats.ConsecutiveErrors++
	d.stats.LastError = err.Error()
	n := d.stats.ConsecutiveErrors
	d.mu.Unlock()

	fields := []zap.Field{zap.Error(err), zap.Int64("consecutive", n)}
	if n == 1 || n%int64(d.cfg.LogEvery) == 0 {
		d.logger.Warn("director tick failed", fields...)
		return
	}
	d.logger.Debug("director tick failed", fields...)
}

func (d *Director) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Last returns the most recent accepted directive.
func (d *Director) Last() (Directive, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return Directive{}, false
	}
	return *d.last, true
}
