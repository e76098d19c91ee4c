package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pefman/arcana-duel/internal/api"
	"github.com/pefman/arcana-duel/internal/config"
	"github.com/pefman/arcana-duel/internal/director"
	"github.com/pefman/arcana-duel/internal/server"
	"github.com/pefman/arcana-duel/internal/stats"
	"github.com/pefman/arcana-duel/internal/store"
	"github.com/pefman/arcana-duel/internal/store/sqlite"
)

const shutdownTimeout = 5 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server (and the director when DIRECTOR_ENABLED is set)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides GAME_PORT)")
}

// openSaves returns the configured save backend and a func releasing it.
func openSaves(cfg config.Game, client *api.Client) (store.SaveStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.SaveBackend {
	case "", "none":
		return nil, noop, nil
	case "remote":
		return store.NewRemoteStore(client), noop, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.SaveDBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, noop, fmt.Errorf("create save dir: %w", err)
			}
		}
		db, err := sqlite.Open(cfg.SaveDBPath)
		if err != nil {
			return nil, noop, err
		}
		return db, db.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown SAVE_BACKEND %q (want sqlite, remote or none)", cfg.SaveBackend)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if servePort > 0 {
		cfg.Port = servePort
	}
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return err
	}
	client := api.NewClient(cfg.DataAPIBase)
	saves, closeSaves, err := openSaves(cfg, client)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSaves(); err != nil {
			logger.Warn("close save store", zap.Error(err))
		}
	}()

	opts := server.Options{
		Rules:  rules,
		Saves:  saves,
		Stats:  stats.NewDaily(),
		Images: client,
		Logger: logger.Named("server"),
	}
	var (
		srv *server.Server
		dir *director.Director
	)
	if cfg.Director.Enabled {
		if cfg.Director.Session == "" {
			return errors.New("DIRECTOR_SESSION is required when the director is enabled")
		}
		dir = director.New(director.Config{
			Session:  cfg.Director.Session,
			Interval: cfg.Director.Interval,
			LogEvery: cfg.Director.LogEvery,
		}, client,
			func(ctx context.Context) (map[string]any, error) { return srv.Snapshot(ctx) },
			func(ctx context.Context, d director.Directive) { srv.ApplyDirective(ctx, d) },
			logger.Named("director"))
		opts.Director = dir
	}
	srv = server.New(opts)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		logger.Info("arcana duel listening",
			zap.String("addr", httpSrv.Addr),
			zap.String("data_api", cfg.DataAPIBase),
			zap.String("saves", cfg.SaveBackend),
			zap.Bool("director", dir != nil),
			zap.String("version", buildVersion))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if dir != nil {
		g.Go(func() error { return dir.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Close()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}
