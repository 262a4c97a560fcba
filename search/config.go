package search

import (
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the article search endpoint.
const DefaultBaseURL = "https://api.nytimes.com/svc/search/v2/articlesearch.json"

// Config describes the fixed query a run pages through and how the client
// talks to the endpoint.
type Config struct {
	BaseURL   string
	APIKey    string
	BeginDate string // YYYYMMDD
	EndDate   string // YYYYMMDD

	// PageSize is fixed by the API.
	PageSize int
	// Interval between requests. The API allows 10 requests per minute.
	Interval time.Duration
	// MaxPages caps how many pages a run fetches; 0 means no cap.
	MaxPages int

	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	UserAgent  string
}

// DefaultConfig returns the configuration of the first week of 2019 query.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		BeginDate:  "20190101",
		EndDate:    "20190107",
		PageSize:   10,
		Interval:   6 * time.Second,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		Timeout:    10 * time.Second,
		UserAgent:  "deskstats/1.0 (news search aggregator)",
	}
}

// PageURL returns the request URL for the given zero-based page.
func (c *Config) PageURL(page int) string {
	query := url.Values{}
	if c.APIKey != "" {
		query.Set("api-key", c.APIKey)
	}
	if c.BeginDate != "" {
		query.Set("begin_date", c.BeginDate)
	}
	if c.EndDate != "" {
		query.Set("end_date", c.EndDate)
	}
	query.Set("page", strconv.Itoa(page))

	return c.BaseURL + "?" + query.Encode()
}

// SecondsPerArticle is the wait each article adds to a run: one interval per
// page of PageSize articles.
func (c *Config) SecondsPerArticle() float64 {
	if c.PageSize <= 0 {
		return 0
	}
	return c.Interval.Seconds() / float64(c.PageSize)
}
