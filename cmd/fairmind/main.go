package main

import (
	"log"
	"os"

	"github.com/adhit-r/fairmind-sub003/internal/api"
	"github.com/adhit-r/fairmind-sub003/internal/config"
	"github.com/adhit-r/fairmind-sub003/internal/engine"
	"github.com/adhit-r/fairmind-sub003/internal/remote"
	"github.com/adhit-r/fairmind-sub003/internal/store"
	"github.com/adhit-r/fairmind-sub003/internal/synth"
)

func main() {
	cfg, cfgErr := config.LoadWithError()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	if cfgErr != nil {
		logger.Warn("fairmind: ignoring invalid configuration", "error", cfgErr)
	}

	logger.Info("fairmind: starting",
		"listen_addr", cfg.ListenAddr,
		"api_base", cfg.APIBase,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	client := remote.NewClient(cfg.APIBase, remote.WithTimeout(cfg.HTTPTimeout))
	orch := engine.NewOrchestrator(client, synth.NewDefaultRegistry(), logger,
		engine.WithDefaultRowCount(cfg.DefaultRows),
	)
	history := store.NewCachedHistory(client, db, logger)

	srv := api.NewServer(cfg.ListenAddr, orch, db, history, logger,
		api.WithDefaultOrgID(cfg.OrgID),
	)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
