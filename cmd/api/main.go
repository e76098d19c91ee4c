package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pefman/arcana-duel/internal/catalog"
	"github.com/pefman/arcana-duel/internal/config"
	"github.com/pefman/arcana-duel/internal/logging"
	"github.com/pefman/arcana-duel/internal/objectapi"
	"github.com/pefman/arcana-duel/internal/store/sqlite"
)

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return catalog.Load(f)
}

func main() {
	var cfg config.DataAPI
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("%v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		config.Exitf("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		logger.Fatal("load catalog", zap.Error(err))
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("create data dir", zap.Error(err))
		}
	}
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("open object store", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer db.Close()

	api := objectapi.New(objectapi.Options{Objects: db, Catalog: cat, Logger: logger.Named("objectapi")})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	logger.Info("data API listening", zap.String("addr", srv.Addr), zap.String("db", cfg.DBPath),
		zap.Int("decks", len(cat.DeckNames())))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", zap.Error(err))
	}
}
