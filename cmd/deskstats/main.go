package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pevans/deskstats/config"
	"github.com/pevans/deskstats/report"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]

	switch subcommand {
	case "help", "--help", "-h":
		printUsage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	switch subcommand {
	case "run":
		handleRun(cfg, logger, os.Args[2:])
	case "serve":
		handleServe(cfg, logger, os.Args[2:])
	case "reports":
		if len(os.Args) < 3 {
			printReportsUsage()
			os.Exit(1)
		}
		handleReportsCommand(os.Args[2], cfg.ReportsDSN, os.Args[3:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

// newLogger builds a text logger on stderr at the given level.
func newLogger(level string) *slog.Logger {
	lvl := new(slog.LevelVar)

	switch strings.ToLower(level) {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

// openStore opens the report archive, or returns nil when dsn is empty.
func openStore(dsn string) (*report.Store, error) {
	if dsn == "" {
		return nil, nil
	}
	return report.NewStore(dsn)
}

func printUsage() {
	fmt.Println("deskstats - News desk statistics over the article search API")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  deskstats <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Fetch every page of the search and print the report")
	fmt.Println("  serve      Start the HTTP API")
	fmt.Println("  reports    List and show archived reports")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  " + config.EnvAPIKey + "      API key for the search API (required for run and serve)")
	fmt.Println("  " + config.EnvBeginDate + "   First day of the search, YYYYMMDD (default: 20190101)")
	fmt.Println("  " + config.EnvEndDate + "     Last day of the search, YYYYMMDD (default: 20190107)")
	fmt.Println("  " + config.EnvMaxPages + "    Stop after this many pages (default: 0, no cap)")
	fmt.Println("  " + config.EnvReportsDSN + "  Path to the report archive (default: reports.db)")
	fmt.Println("  " + config.EnvLogLevel + "    debug, info, warn or error (default: info)")
	fmt.Println("  " + config.EnvAddr + "         Listen address for serve (default: :1337)")
	fmt.Println()
	fmt.Println("Settings may also be kept in ~/.deskstats/config.yaml or a .env file.")
}
