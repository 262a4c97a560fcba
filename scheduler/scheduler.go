// Package scheduler drives a run end to end: the first page to learn the
// total, one page per interval tick after that, and a single hand-off of the
// finished report.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/deskstats/pager"
	"github.com/pevans/deskstats/report"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrRunInProgress is returned by Begin while a run is underway. The request
// is dropped, not queued.
var ErrRunInProgress = errors.New("a run is already in progress")

// Presenter receives the finished report.
type Presenter interface {
	Present(ctx context.Context, r *report.Report) error
}

// Ticker delivers ticks at a fixed interval until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

// NewRealTicker is the TickerFunc backed by time.Ticker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

// Estimate is the expected duration of a run, reported once the first page
// has told us how many hits there are.
type Estimate struct {
	TotalHits int
	Seconds   float64
	// RequestsPerMinute is the provider's cap the interval follows.
	RequestsPerMinute int
}

func (e Estimate) String() string {
	return fmt.Sprintf("The search API caps us at %d requests per minute.\n"+
		"We are looking at roughly %.1f seconds. Have a cup of coffee?\n",
		e.RequestsPerMinute, e.Seconds)
}

// Options configure a Scheduler.
type Options struct {
	// Interval between page fetches.
	Interval time.Duration
	// SecondsPerArticle feeds the wait estimate.
	SecondsPerArticle float64
	NewTicker         TickerFunc
	Logger            *slog.Logger
	Now               func() time.Time
}

// Scheduler runs a single Pager to completion. Only one run may be in
// progress at a time; Begin is safe to call from concurrent goroutines.
type Scheduler struct {
	pager     *pager.Pager
	presenter Presenter
	opts      Options

	mu     sync.Mutex
	status pager.Status
	latest *report.Report
}

// New creates a Scheduler for the given pager.
func New(p *pager.Pager, presenter Presenter, opts Options) *Scheduler {
	if opts.NewTicker == nil {
		opts.NewTicker = NewRealTicker
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = 6 * time.Second
	}

	return &Scheduler{
		pager:     p,
		presenter: presenter,
		opts:      opts,
		status:    pager.NotStarted,
	}
}

// Status returns the run status.
func (s *Scheduler) Status() pager.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Latest returns the finished report, if the run is done.
func (s *Scheduler) Latest() (*report.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest != nil
}

// Begin starts the run if none has started, blocking until it completes.
// onEstimate, if non-nil, is called once the first page is in. While a run
// is in progress Begin returns ErrRunInProgress at once. After the run is
// done Begin presents the finished report again under the given mode
// instead of fetching anything.
//
// A started run is not cancellable: it detaches from ctx cancellation and
// runs until every page has been requested.
func (s *Scheduler) Begin(ctx context.Context, mode report.Mode, onEstimate func(Estimate)) error {
	s.mu.Lock()
	switch s.status {
	case pager.InProgress:
		s.mu.Unlock()
		s.opts.Logger.Info("run already in progress, ignoring request")
		return ErrRunInProgress
	case pager.Done:
		latest := s.latest.WithMode(mode)
		s.latest = latest
		s.mu.Unlock()
		return s.present(ctx, latest)
	}
	s.status = pager.InProgress
	s.mu.Unlock()

	return s.run(context.WithoutCancel(ctx), mode, onEstimate)
}

func (s *Scheduler) run(ctx context.Context, mode report.Mode, onEstimate func(Estimate)) error {
	logger := s.opts.Logger
	startedAt := s.opts.Now()

	ctx, span := otel.Tracer("deskstats/scheduler").Start(ctx, "scheduler.run")
	defer span.End()

	if err := s.pager.Start(); err != nil {
		s.mu.Lock()
		s.status = pager.NotStarted
		s.mu.Unlock()
		logger.Error("failed to start run", "error", err)
		return fmt.Errorf("failed to start pager: %w", err)
	}

	hits, ok := s.pager.FetchFirstPage(ctx)
	if !ok {
		logger.Warn("first page missing, total hit count unknown")
	}

	estimate := s.estimate(hits)
	logger.Info("run started", "total_hits", hits, "pages", s.pager.PagesNeeded(), "estimated_seconds", estimate.Seconds)
	if onEstimate != nil {
		onEstimate(estimate)
	}

	ticker := s.opts.NewTicker(s.opts.Interval)
	for range ticker.C() {
		if s.pager.Tick(ctx) == pager.TickDone {
			break
		}
	}
	ticker.Stop()

	state := s.pager.State()
	r := &report.Report{
		RunID:        uuid.New(),
		Mode:         mode,
		TotalHits:    state.TotalHits,
		MissingPages: state.MissingPages,
		Result:       s.pager.Aggregate().Result(),
		StartedAt:    startedAt,
		FinishedAt:   s.opts.Now(),
	}

	s.mu.Lock()
	s.status = pager.Done
	s.latest = r
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("run_id", r.RunID.String()),
		attribute.Int("total_hits", r.TotalHits),
		attribute.Int("missing_pages", len(r.MissingPages)),
	)
	logger.Info("run finished",
		"run_id", r.RunID,
		"articles", r.Result.ArticleCount(),
		"missing_pages", len(r.MissingPages),
		"duration", r.FinishedAt.Sub(r.StartedAt),
	)

	return s.present(ctx, r)
}

func (s *Scheduler) present(ctx context.Context, r *report.Report) error {
	if s.presenter == nil {
		return nil
	}
	// Callers such as the HTTP wrapper may have stopped listening by now
	if err := s.presenter.Present(ctx, r); err != nil {
		s.opts.Logger.Error("failed to present report", "run_id", r.RunID, "error", err)
		return fmt.Errorf("failed to present report: %w", err)
	}
	return nil
}

// estimate returns the expected wait, rounded to one decimal.
func (s *Scheduler) estimate(hits int) Estimate {
	seconds := float64(hits) * s.opts.SecondsPerArticle
	rpm := 0
	if s.opts.Interval > 0 {
		rpm = int(time.Minute / s.opts.Interval)
	}
	return Estimate{
		TotalHits:         hits,
		Seconds:           math.Round(seconds*10) / 10,
		RequestsPerMinute: rpm,
	}
}
