package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"log/slog"

	"github.com/liveboard/board-sync/board"
	"github.com/liveboard/board-sync/config"
	"github.com/liveboard/board-sync/push"
	"github.com/liveboard/board-sync/store"
	"github.com/liveboard/board-sync/store/postgres"
	"github.com/liveboard/board-sync/store/sqlite"
)

func main() {
	config, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	storage, err := openStorage(config)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	logger := slog.Default()
	hub := push.NewHub(logger)
	service := board.NewService(storage, hub, logger)
	if err := service.EnsureDefaultLists(context.Background()); err != nil {
		log.Fatalf("Failed to seed board: %v", err)
	}

	server := &http.Server{
		Addr:    config.ListenAddress,
		Handler: CreateServer(config, service, hub),
	}

	go func() {
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-exit
		logger.Info("signal caught, shutting down", "sig", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	log.Printf("Server listening at %s", config.ListenAddress)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to serve: %v", err)
	}
}

func openStorage(config *config.Config) (store.BoardStorage, error) {
	if config.PgDatabaseUrl != "" {
		return postgres.NewPGStorage(config.PgDatabaseUrl)
	}
	if err := os.MkdirAll(config.SQLiteDirPath, 0o755); err != nil {
		return nil, err
	}
	return sqlite.NewSQLiteStorage(filepath.Join(config.SQLiteDirPath, "board.sqlite"))
}
