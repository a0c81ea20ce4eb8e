package main

import (
	"log"
	"os"

	"github.com/tdewey/xhrsim/internal/api"
	"github.com/tdewey/xhrsim/internal/config"
	"github.com/tdewey/xhrsim/internal/engine"
	"github.com/tdewey/xhrsim/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("xhrsimd: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"profile", string(cfg.Profile),
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	eng := engine.NewEngine(db, logger)
	srv := api.NewServer(cfg.ListenAddr, db, eng, cfg.Profile, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	// Let in-flight runs finish before the store closes.
	eng.Wait()
}
