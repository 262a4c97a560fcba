package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pevans/deskstats/config"
	"github.com/pevans/deskstats/report"
	"github.com/pevans/deskstats/scheduler"
	"github.com/pevans/deskstats/server"
)

func handleServe(cfg *config.Config, logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.Addr, "Listen address")
	fs.Parse(args)

	if err := cfg.RequireAPIKey(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store, err := openStore(cfg.ReportsDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open report archive: %v\n", err)
		os.Exit(1)
	}

	var presenter scheduler.Presenter = report.Presenters{}
	if store != nil {
		defer store.Close()
		presenter = store
	}

	sched := newScheduler(cfg, logger, presenter)
	apiServer := server.NewAPIServer(sched, store)
	router := apiServer.SetupRouter()

	logger.Info("starting API server", "addr", *addr, "base", "/api/v1")
	if err := router.Run(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
		os.Exit(1)
	}
}
