package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pefman/arcana-duel/internal/api"
	"github.com/pefman/arcana-duel/internal/director"
)

var dirFlags struct {
	session  string
	snapshot string
	interval time.Duration
	once     bool
}

var directorCmd = &cobra.Command{
	Use:   "director",
	Short: "Run the session director against a fixed snapshot and print its directives",
	Long: `Polls the backend chat session with a snapshot and prints every directive
as a JSON line. Useful for tuning the director prompt without a running game.`,
	RunE: runDirector,
}

func init() {
	f := directorCmd.Flags()
	f.StringVar(&dirFlags.session, "session", "", "Chat session id (defaults to DIRECTOR_SESSION)")
	f.StringVar(&dirFlags.snapshot, "snapshot", `{"games":0}`, "Snapshot JSON object sent on every tick")
	f.DurationVar(&dirFlags.interval, "interval", 0, "Tick interval (defaults to DIRECTOR_INTERVAL)")
	f.BoolVar(&dirFlags.once, "once", false, "Run a single tick and exit")
}

func runDirector(cmd *cobra.Command, _ []string) error {
	session := dirFlags.session
	if session == "" {
		session = cfg.Director.Session
	}
	if session == "" {
		return errors.New("a session is required (--session or DIRECTOR_SESSION)")
	}
	var snap map[string]any
	if err := json.Unmarshal([]byte(dirFlags.snapshot), &snap); err != nil {
		return fmt.Errorf("--snapshot: %w", err)
	}
	interval := cfg.Director.Interval
	if dirFlags.interval > 0 {
		interval = dirFlags.interval
	}

	out := cmd.OutOrStdout()
	d := director.New(director.Config{Session: session, Interval: interval, LogEvery: cfg.Director.LogEvery},
		api.NewClient(cfg.DataAPIBase),
		func(context.Context) (map[string]any, error) { return snap, nil },
		func(_ context.Context, dir director.Directive) {
			b, err := json.Marshal(dir)
			if err != nil {
				logger.Warn("encode directive", zap.Error(err))
				return
			}
			fmt.Fprintln(out, string(b))
		},
		logger.Named("director"))

	if dirFlags.once {
		d.Tick(cmd.Context())
		if st := d.Stats(); st.Errors > 0 {
			return errors.New(st.LastError)
		}
		return nil
	}
	return d.Run(cmd.Context())
}
