// Package pager walks the pages of a search result one page at a time,
// folding each page into an aggregate and recording the pages it could not
// get.
package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/pevans/deskstats/aggregate"
	"github.com/pevans/deskstats/article"
	"github.com/pevans/deskstats/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Status is the lifecycle of a run.
type Status int

const (
	NotStarted Status = iota
	InProgress
	Done
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrAlreadyStarted is returned by Start when the pager has left NotStarted.
var ErrAlreadyStarted = errors.New("pager already started")

// TickResult tells the driver what a tick did.
type TickResult int

const (
	// TickFetched means the next page was requested (it may still have
	// ended up missing).
	TickFetched TickResult = iota
	// TickDone means every page has been requested; the pager is Done.
	TickDone
	// TickSkipped means a previous fetch had not resolved yet.
	TickSkipped
)

// Fetcher retrieves one page of search results.
type Fetcher interface {
	FetchPage(ctx context.Context, page int) (*search.Page, error)
}

// RunState is the pagination state of a run.
type RunState struct {
	TotalHits    int
	HitsKnown    bool
	CurrentPage  int
	MissingPages []int
	Status       Status
}

// Options configure a Pager.
type Options struct {
	PageSize int
	// MaxPages caps the pages fetched; 0 means no cap.
	MaxPages int
	Logger   *slog.Logger
}

// Pager owns the RunState of one run and drives page fetches into an
// Aggregator.
type Pager struct {
	fetcher  Fetcher
	agg      *aggregate.Aggregator
	pageSize int
	maxPages int
	logger   *slog.Logger

	state    RunState
	inFlight atomic.Bool
}

// New creates a Pager in the NotStarted state.
func New(fetcher Fetcher, agg *aggregate.Aggregator, opts Options) *Pager {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Pager{
		fetcher:  fetcher,
		agg:      agg,
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
		logger:   opts.Logger,
		state: RunState{
			MissingPages: []int{},
			Status:       NotStarted,
		},
	}
}

// Start moves the pager from NotStarted to InProgress.
func (p *Pager) Start() error {
	if p.state.Status != NotStarted {
		return ErrAlreadyStarted
	}
	p.state.Status = InProgress
	return nil
}

// State returns a copy of the current RunState.
func (p *Pager) State() RunState {
	state := p.state
	state.MissingPages = slices.Clone(p.state.MissingPages)
	return state
}

// Aggregate returns the aggregate the pager folds into.
func (p *Pager) Aggregate() *aggregate.Aggregator {
	return p.agg
}

// PageSize returns the number of records per page.
func (p *Pager) PageSize() int {
	return p.pageSize
}

// PagesNeeded returns how many pages the run fetches given the total hits
// reported by the first page.
func (p *Pager) PagesNeeded() int {
	if !p.state.HitsKnown || p.state.TotalHits <= 0 {
		return 1
	}
	pages := (p.state.TotalHits + p.pageSize - 1) / p.pageSize
	if p.maxPages > 0 && pages > p.maxPages {
		pages = p.maxPages
	}
	return pages
}

// FetchFirstPage fetches page 0 and records the total hit count it reports.
// ok is false when page 0 went missing, in which case the total stays
// unknown and the first tick finishes the run.
func (p *Pager) FetchFirstPage(ctx context.Context) (hits int, ok bool) {
	hits, ok = p.FetchPage(ctx, 0)
	if ok {
		p.state.TotalHits = hits
		p.state.HitsKnown = true
	}
	return hits, ok
}

// Tick advances to the next page. When every page has been requested it
// moves the pager to Done; otherwise it fetches the next page. A tick that
// arrives while a fetch is in flight, or before Start, is skipped without
// advancing.
func (p *Pager) Tick(ctx context.Context) TickResult {
	switch p.state.Status {
	case Done:
		return TickDone
	case NotStarted:
		return TickSkipped
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug("skipping tick, previous fetch unresolved", "page", p.state.CurrentPage)
		return TickSkipped
	}
	defer p.inFlight.Store(false)

	p.state.CurrentPage++
	if p.finished() {
		p.state.Status = Done
		return TickDone
	}

	p.fetch(ctx, p.state.CurrentPage)
	return TickFetched
}

// FetchPage fetches page n and folds its records. Any failure records n as
// missing and returns ok=false; the aggregate is left untouched for that
// page.
func (p *Pager) FetchPage(ctx context.Context, n int) (hits int, ok bool) {
	return p.fetch(ctx, n)
}

func (p *Pager) fetch(ctx context.Context, n int) (int, bool) {
	ctx, span := otel.Tracer("deskstats/pager").Start(ctx, "pager.fetch_page")
	defer span.End()
	span.SetAttributes(attribute.Int("page", n))

	page, err := p.fetcher.FetchPage(ctx, n)
	if err == nil {
		var articles []article.Article
		if articles, err = article.NormalizeAll(page.Records); err == nil {
			p.agg.FoldAll(articles)
			span.SetAttributes(attribute.Int("records", len(articles)))
			p.logger.Info("got page", "page", n, "records", len(articles))
			return page.Hits, true
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.markMissing(n, err)
	return 0, false
}

func (p *Pager) finished() bool {
	if p.maxPages > 0 && p.state.CurrentPage >= p.maxPages {
		return true
	}
	return p.state.CurrentPage*p.pageSize >= p.state.TotalHits
}

func (p *Pager) markMissing(n int, err error) {
	p.logger.Warn("page will be missing", "page", n, "error", err)
	if !slices.Contains(p.state.MissingPages, n) {
		p.state.MissingPages = append(p.state.MissingPages, n)
	}
}
