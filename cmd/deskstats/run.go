package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pevans/deskstats/aggregate"
	"github.com/pevans/deskstats/config"
	"github.com/pevans/deskstats/pager"
	"github.com/pevans/deskstats/report"
	"github.com/pevans/deskstats/scheduler"
	"github.com/pevans/deskstats/search"
)

// newScheduler wires the search client, pager and scheduler for one run.
func newScheduler(cfg *config.Config, logger *slog.Logger, presenter scheduler.Presenter) *scheduler.Scheduler {
	client := search.NewClient(cfg.Search, logger)
	p := pager.New(client, aggregate.New(), pager.Options{
		PageSize: cfg.Search.PageSize,
		MaxPages: cfg.Search.MaxPages,
		Logger:   logger,
	})
	return scheduler.New(p, presenter, scheduler.Options{
		Interval:          cfg.Search.Interval,
		SecondsPerArticle: cfg.Search.SecondsPerArticle(),
		Logger:            logger,
	})
}

func handleRun(cfg *config.Config, logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	modeFlag := fs.String("mode", "", "Report mode: 1 (media), 2 (author), 3 (both); prompts when omitted")
	format := fs.String("format", report.FormatText, "Output format (text, json, chart)")
	noArchive := fs.Bool("no-archive", false, "Do not save the report to the archive")
	fs.Parse(args)

	if err := cfg.RequireAPIKey(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var mode report.Mode
	var err error
	if *modeFlag != "" {
		mode, err = report.ParseMode(*modeFlag)
	} else {
		mode, err = promptMode(os.Stdin, os.Stdout)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	presenters := report.Presenters{&report.WriterPresenter{W: os.Stdout, Format: *format}}
	if !*noArchive {
		store, err := openStore(cfg.ReportsDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open report archive: %v\n", err)
			os.Exit(1)
		}
		if store != nil {
			defer store.Close()
			presenters = append(presenters, store)
		}
	}

	sched := newScheduler(cfg, logger, presenters)
	err = sched.Begin(context.Background(), mode, func(e scheduler.Estimate) {
		fmt.Print(e.String())
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// promptMode asks for a mode until a valid one is entered. Invalid input is
// reported and asked again; end of input is an error.
func promptMode(in io.Reader, out io.Writer) (report.Mode, error) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, report.PromptText)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return 0, fmt.Errorf("failed to read mode: %w", err)
			}
			return 0, errors.New("no mode selected")
		}

		mode, err := report.ParseMode(scanner.Text())
		if err == nil {
			return mode, nil
		}
		fmt.Fprintf(out, "%v\n\n", err)
	}
}
