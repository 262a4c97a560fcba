package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pevans/deskstats/report"
)

func handleReportsCommand(action, reportsPath string, args []string) {
	switch action {
	case "help", "--help", "-h":
		printReportsUsage()
		return
	}

	store, err := report.NewStore(reportsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open report archive: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch action {
	case "list":
		handleReportsList(store, args)
	case "show":
		handleReportsShow(store, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown reports command: %s\n\n", action)
		printReportsUsage()
		os.Exit(1)
	}
}

func printReportsUsage() {
	fmt.Println("deskstats reports - Archived reports")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  deskstats reports <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list                 List archived reports, newest first")
	fmt.Println("  show <run-id>        Show an archived report")
	fmt.Println("  help                 Show this help message")
	fmt.Println()
	fmt.Println("Flags for show:")
	fmt.Println("  --format string      Output format: text, json, chart (default: text)")
	fmt.Println("  --mode string        Present under another mode (1, 2 or 3)")
}

func handleReportsList(store *report.Store, args []string) {
	fs := flag.NewFlagSet("reports list", flag.ExitOnError)
	fs.Parse(args)

	summaries, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list reports: %v\n", err)
		os.Exit(1)
	}

	if err := report.RenderSummaries(os.Stdout, summaries); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleReportsShow(store *report.Store, args []string) {
	fs := flag.NewFlagSet("reports show", flag.ExitOnError)
	format := fs.String("format", report.FormatText, "Output format (text, json, chart)")
	modeFlag := fs.String("mode", "", "Present under another mode (1, 2 or 3)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: run ID is required\n\n")
		printReportsUsage()
		os.Exit(1)
	}

	runID, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid run ID: %v\n", err)
		os.Exit(1)
	}

	r, err := store.Get(runID)
	if errors.Is(err, report.ErrReportNotFound) {
		fmt.Fprintf(os.Stderr, "Error: report %s not found\n", runID)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to get report: %v\n", err)
		os.Exit(1)
	}

	if *modeFlag != "" {
		mode, err := report.ParseMode(*modeFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		r = r.WithMode(mode)
	}

	if err := report.Render(os.Stdout, r, *format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
