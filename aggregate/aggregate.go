// Package aggregate folds normalized articles into running statistics: the
// average word count per news desk, the articles carrying the most media, and
// the most prolific author.
package aggregate

import "github.com/pevans/deskstats/article"

// CategoryStats holds the running statistics of one news desk.
type CategoryStats struct {
	AvgWordCount float64           `json:"avg_word_count"`
	Articles     []article.Article `json:"articles"`
}

// Result is the aggregate built up over a run.
type Result struct {
	Categories map[string]*CategoryStats `json:"categories"`
	// CategoryOrder lists news desk keys in the order they were first seen.
	CategoryOrder   []string `json:"category_order"`
	AuthorWroteMost string   `json:"author_wrote_most"`
	AuthorCount     int      `json:"author_count"`
	MostMediaURLs   []string `json:"most_media_urls"`
	MostMediaCount  int      `json:"most_media_count"`
}

// ArticleCount returns the number of articles folded across all desks.
func (r *Result) ArticleCount() int {
	total := 0
	for _, stats := range r.Categories {
		total += len(stats.Articles)
	}
	return total
}

// Aggregator owns a Result and the author tally behind it. It is not safe for
// concurrent use; a run folds from a single goroutine.
type Aggregator struct {
	result *Result
	tally  map[string]int
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		result: &Result{
			Categories:    make(map[string]*CategoryStats),
			CategoryOrder: []string{},
			MostMediaURLs: []string{},
		},
		tally: make(map[string]int),
	}
}

// Fold adds one article to the running statistics.
func (a *Aggregator) Fold(art article.Article) {
	stats, ok := a.result.Categories[art.NewsDesk]
	if !ok {
		stats = &CategoryStats{Articles: []article.Article{}}
		a.result.Categories[art.NewsDesk] = stats
		a.result.CategoryOrder = append(a.result.CategoryOrder, art.NewsDesk)
	}
	stats.Articles = append(stats.Articles, art)
	stats.AvgWordCount = runningAverage(stats.AvgWordCount, len(stats.Articles), art.WordCount)

	a.trackMedia(art)

	for _, author := range art.Authors {
		a.trackAuthor(author)
	}
}

// FoldAll folds articles in order.
func (a *Aggregator) FoldAll(articles []article.Article) {
	for _, art := range articles {
		a.Fold(art)
	}
}

// Result returns the aggregate. Callers must treat it as read-only.
func (a *Aggregator) Result() *Result {
	return a.result
}

// AuthorTally returns how many folded articles credit the given author.
func (a *Aggregator) AuthorTally(name string) int {
	return a.tally[name]
}

// runningAverage returns the mean after the n-th value is added, without
// keeping a running sum.
func runningAverage(avg float64, n int, value int) float64 {
	num := float64(n)
	return (avg * ((num - 1) / num)) + (float64(value) / num)
}

func (a *Aggregator) trackMedia(art article.Article) {
	switch {
	case art.MediaCount > a.result.MostMediaCount:
		a.result.MostMediaCount = art.MediaCount
		a.result.MostMediaURLs = []string{art.URL}
	case art.MediaCount == a.result.MostMediaCount:
		a.result.MostMediaURLs = append(a.result.MostMediaURLs, art.URL)
	}
}

// trackAuthor bumps the tally for name. The leader only changes when another
// author strictly exceeds the leader's count, so ties keep the earlier leader.
func (a *Aggregator) trackAuthor(name string) {
	a.tally[name]++
	if a.tally[name] > a.result.AuthorCount {
		a.result.AuthorWroteMost = name
		a.result.AuthorCount = a.tally[name]
	}
}
