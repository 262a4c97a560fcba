package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pevans/deskstats/aggregate"
	"github.com/pevans/deskstats/article"
	"github.com/pevans/deskstats/pager"
	"github.com/pevans/deskstats/report"
	"github.com/pevans/deskstats/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTicker hands control of every tick to the test
type fakeTicker struct {
	ch       chan time.Time
	interval time.Duration
	stopped  chan struct{}
	once     sync.Once
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() { f.once.Do(func() { close(f.stopped) }) }

// tickerSource records the tickers a scheduler creates
type tickerSource struct {
	created chan *fakeTicker
}

func newTickerSource() *tickerSource {
	return &tickerSource{created: make(chan *fakeTicker, 1)}
}

func (s *tickerSource) New(d time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time), interval: d, stopped: make(chan struct{})}
	s.created <- t
	return t
}

// tickUntilStopped sends ticks until the scheduler stops the ticker and
// returns how many were consumed
func tickUntilStopped(t *testing.T, ticker *fakeTicker) int {
	t.Helper()
	sent := 0
	for {
		select {
		case ticker.ch <- time.Now():
			sent++
		case <-ticker.stopped:
			return sent
		case <-time.After(5 * time.Second):
			t.Fatal("ticker was never stopped")
		}
	}
}

type fakeFetcher struct {
	mu       sync.Mutex
	hits     int
	failures map[int]error
	calls    []int
	block    chan struct{}
}

func strPtr(s string) *string { return &s }

func (f *fakeFetcher) FetchPage(_ context.Context, page int) (*search.Page, error) {
	if f.block != nil && page == 0 {
		<-f.block
	}
	f.mu.Lock()
	f.calls = append(f.calls, page)
	f.mu.Unlock()

	if err, ok := f.failures[page]; ok {
		return nil, err
	}
	words := 100 * (page + 1)
	return &search.Page{Number: page, Hits: f.hits, Records: []article.RawRecord{{
		PubDate:    strPtr("2019-01-01T00:00:00+0000"),
		Byline:     &article.RawByline{Person: []article.RawPerson{{FirstName: strPtr("Jane"), LastName: strPtr("Doe")}}},
		WordCount:  &words,
		Headline:   &article.RawHeadline{Main: strPtr("Headline")},
		Abstract:   strPtr("Abstract"),
		Multimedia: []map[string]any{},
		WebURL:     strPtr(fmt.Sprintf("https://example.com/%d", page)),
		NewsDesk:   strPtr("Desk"),
	}}}, nil
}

func (f *fakeFetcher) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

type recordingPresenter struct {
	mu      sync.Mutex
	reports []*report.Report
}

func (p *recordingPresenter) Present(_ context.Context, r *report.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, r)
	return nil
}

func (p *recordingPresenter) Reports() []*report.Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*report.Report(nil), p.reports...)
}

// Test helper: create a scheduler over a fake fetcher and ticker
func setupTestScheduler(fetcher *fakeFetcher) (*Scheduler, *tickerSource, *recordingPresenter) {
	tickers := newTickerSource()
	presenter := &recordingPresenter{}
	p := pager.New(fetcher, aggregate.New(), pager.Options{PageSize: 10})
	s := New(p, presenter, Options{
		Interval:          6 * time.Second,
		SecondsPerArticle: 0.6,
		NewTicker:         tickers.New,
	})
	return s, tickers, presenter
}

// TestBegin_FullRun verifies the run fetches every page, stops the ticker
// and presents once
func TestBegin_FullRun(t *testing.T) {
	fetcher := &fakeFetcher{hits: 23}
	s, tickers, presenter := setupTestScheduler(fetcher)

	var estimate Estimate
	errc := make(chan error, 1)
	go func() {
		errc <- s.Begin(context.Background(), report.Both, func(e Estimate) { estimate = e })
	}()

	ticker := <-tickers.created
	assert.Equal(t, 6*time.Second, ticker.interval)
	assert.Equal(t, 3, tickUntilStopped(t, ticker))
	require.NoError(t, <-errc)

	assert.Equal(t, []int{0, 1, 2}, fetcher.Calls())
	assert.Equal(t, 23, estimate.TotalHits)
	assert.InDelta(t, 13.8, estimate.Seconds, 1e-9)
	assert.Equal(t, pager.Done, s.Status())

	reports := presenter.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, report.Both, reports[0].Mode)
	assert.Equal(t, 23, reports[0].TotalHits)
	assert.Empty(t, reports[0].MissingPages)
	assert.Equal(t, 3, reports[0].Result.ArticleCount())

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, reports[0].RunID, latest.RunID)
}

// TestBegin_MissingPage verifies a failed page is reported without aborting
func TestBegin_MissingPage(t *testing.T) {
	fetcher := &fakeFetcher{hits: 23, failures: map[int]error{1: errors.New("timeout")}}
	s, tickers, presenter := setupTestScheduler(fetcher)

	errc := make(chan error, 1)
	go func() { errc <- s.Begin(context.Background(), report.MediaFocus, nil) }()

	tickUntilStopped(t, <-tickers.created)
	require.NoError(t, <-errc)

	reports := presenter.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, []int{1}, reports[0].MissingPages)
	assert.Equal(t, 2, reports[0].Result.ArticleCount())
}

// TestBegin_InProgressIgnored verifies a second request during a run is
// dropped
func TestBegin_InProgressIgnored(t *testing.T) {
	fetcher := &fakeFetcher{hits: 5, block: make(chan struct{})}
	s, tickers, presenter := setupTestScheduler(fetcher)

	errc := make(chan error, 1)
	go func() { errc <- s.Begin(context.Background(), report.Both, nil) }()

	require.Eventually(t, func() bool { return s.Status() == pager.InProgress }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Begin(context.Background(), report.AuthorFocus, nil), ErrRunInProgress)

	close(fetcher.block)
	tickUntilStopped(t, <-tickers.created)
	require.NoError(t, <-errc)

	assert.Equal(t, []int{0}, fetcher.Calls(), "the ignored request fetched nothing")
	assert.Len(t, presenter.Reports(), 1)
}

// TestBegin_DoneRepresents verifies Begin after Done presents again without
// fetching
func TestBegin_DoneRepresents(t *testing.T) {
	fetcher := &fakeFetcher{hits: 5}
	s, tickers, presenter := setupTestScheduler(fetcher)

	errc := make(chan error, 1)
	go func() { errc <- s.Begin(context.Background(), report.MediaFocus, nil) }()
	tickUntilStopped(t, <-tickers.created)
	require.NoError(t, <-errc)

	estimated := false
	require.NoError(t, s.Begin(context.Background(), report.AuthorFocus, func(Estimate) { estimated = true }))

	assert.False(t, estimated)
	assert.Equal(t, []int{0}, fetcher.Calls())
	reports := presenter.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, reports[0].RunID, reports[1].RunID)
	assert.Equal(t, report.MediaFocus, reports[0].Mode)
	assert.Equal(t, report.AuthorFocus, reports[1].Mode)
}

// TestBegin_FirstPageMissing verifies the run ends on the first tick
func TestBegin_FirstPageMissing(t *testing.T) {
	fetcher := &fakeFetcher{hits: 40, failures: map[int]error{0: errors.New("down")}}
	s, tickers, presenter := setupTestScheduler(fetcher)

	var estimate Estimate
	errc := make(chan error, 1)
	go func() { errc <- s.Begin(context.Background(), report.Both, func(e Estimate) { estimate = e }) }()

	assert.Equal(t, 1, tickUntilStopped(t, <-tickers.created))
	require.NoError(t, <-errc)

	assert.Equal(t, 0.0, estimate.Seconds)
	reports := presenter.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, []int{0}, reports[0].MissingPages)
	assert.Equal(t, 0, reports[0].Result.ArticleCount())
}

// TestBegin_IgnoresCancellation verifies a started run completes even if
// the caller's context is cancelled
func TestBegin_IgnoresCancellation(t *testing.T) {
	fetcher := &fakeFetcher{hits: 15}
	s, tickers, presenter := setupTestScheduler(fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Begin(ctx, report.Both, nil) }()

	ticker := <-tickers.created
	cancel()
	tickUntilStopped(t, ticker)
	require.NoError(t, <-errc)

	assert.Equal(t, []int{0, 1}, fetcher.Calls())
	assert.Len(t, presenter.Reports(), 1)
}

// lockedBuffer collects log output written from the run goroutine
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingPresenter struct{}

func (failingPresenter) Present(context.Context, *report.Report) error {
	return errors.New("disk full")
}

// TestBegin_PresentFailureLogged verifies a presenter error is logged as
// well as returned
func TestBegin_PresentFailureLogged(t *testing.T) {
	var logs lockedBuffer
	tickers := newTickerSource()
	p := pager.New(&fakeFetcher{hits: 5}, aggregate.New(), pager.Options{PageSize: 10})
	s := New(p, failingPresenter{}, Options{
		Interval:  6 * time.Second,
		NewTicker: tickers.New,
		Logger:    slog.New(slog.NewTextHandler(&logs, nil)),
	})

	errc := make(chan error, 1)
	go func() { errc <- s.Begin(context.Background(), report.Both, nil) }()
	tickUntilStopped(t, <-tickers.created)

	err := <-errc
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, pager.Done, s.Status())
	assert.Contains(t, logs.String(), "failed to present report")
	assert.Contains(t, logs.String(), "disk full")
}

// TestBegin_StartFailureResetsStatus verifies a run that cannot start does
// not leave the scheduler stuck in progress
func TestBegin_StartFailureResetsStatus(t *testing.T) {
	fetcher := &fakeFetcher{hits: 5}
	s, _, presenter := setupTestScheduler(fetcher)
	require.NoError(t, s.pager.Start())

	err := s.Begin(context.Background(), report.Both, nil)
	assert.ErrorIs(t, err, pager.ErrAlreadyStarted)
	assert.Equal(t, pager.NotStarted, s.Status())

	err = s.Begin(context.Background(), report.Both, nil)
	assert.ErrorIs(t, err, pager.ErrAlreadyStarted, "a later attempt is not refused as in progress")
	assert.Empty(t, fetcher.Calls())
	assert.Empty(t, presenter.Reports())
}

// TestEstimate_String verifies the two-line wait message
func TestEstimate_String(t *testing.T) {
	s := New(nil, nil, Options{Interval: 6 * time.Second, SecondsPerArticle: 0.6})
	e := s.estimate(1234)

	assert.Equal(t, 10, e.RequestsPerMinute)
	assert.InDelta(t, 740.4, e.Seconds, 1e-9)
	assert.Equal(t,
		"The search API caps us at 10 requests per minute.\n"+
			"We are looking at roughly 740.4 seconds. Have a cup of coffee?\n",
		e.String())
}

// TestRealTicker verifies the time-backed ticker fires
func TestRealTicker(t *testing.T) {
	ticker := NewRealTicker(time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker never fired")
	}
}
