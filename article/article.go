// Package article turns raw search API records into normalized articles.
package article

import (
	"fmt"
	"strings"
)

// Article is one normalized search result.
type Article struct {
	Date       string   `json:"date"`
	Authors    []string `json:"authors"`
	WordCount  int      `json:"word_count"`
	Headline   string   `json:"headline"`
	Abstract   string   `json:"abstract"`
	MediaCount int      `json:"media_count"`
	URL        string   `json:"url"`
	NewsDesk   string   `json:"news_desk"`
}

// RawRecord mirrors one entry of response.docs as returned by the search API.
// Pointer fields distinguish an absent or null value from a zero value.
type RawRecord struct {
	PubDate    *string          `json:"pub_date"`
	Byline     *RawByline       `json:"byline"`
	WordCount  *int             `json:"word_count"`
	Headline   *RawHeadline     `json:"headline"`
	Abstract   *string          `json:"abstract"`
	Multimedia []map[string]any `json:"multimedia"`
	WebURL     *string          `json:"web_url"`
	NewsDesk   *string          `json:"news_desk"`
}

// RawByline holds the structured people credited on a record.
type RawByline struct {
	Person []RawPerson `json:"person"`
}

// RawPerson is one credited person. Any name part may be null.
type RawPerson struct {
	FirstName  *string `json:"firstname"`
	MiddleName *string `json:"middlename"`
	LastName   *string `json:"lastname"`
}

// RawHeadline holds the headline variants; only Main is used.
type RawHeadline struct {
	Main *string `json:"main"`
}

// MalformedRecordError reports a raw record that lacks a required field or
// carries a value that cannot be normalized.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: %s %s", e.Field, e.Reason)
}

func missing(field string) error {
	return &MalformedRecordError{Field: field, Reason: "is missing"}
}

// Normalize converts a raw record into an Article. It has no side effects,
// so normalizing the same record twice yields equal Articles.
func Normalize(raw RawRecord) (Article, error) {
	if raw.PubDate == nil {
		return Article{}, missing("pub_date")
	}
	date, err := FormatDate(*raw.PubDate)
	if err != nil {
		return Article{}, err
	}

	if raw.Byline == nil || raw.Byline.Person == nil {
		return Article{}, missing("byline.person")
	}
	if raw.WordCount == nil {
		return Article{}, missing("word_count")
	}
	if *raw.WordCount < 0 {
		return Article{}, &MalformedRecordError{Field: "word_count", Reason: "is negative"}
	}
	if raw.Headline == nil || raw.Headline.Main == nil {
		return Article{}, missing("headline.main")
	}
	if raw.Abstract == nil {
		return Article{}, missing("abstract")
	}
	if raw.Multimedia == nil {
		return Article{}, missing("multimedia")
	}
	if raw.WebURL == nil {
		return Article{}, missing("web_url")
	}
	if raw.NewsDesk == nil {
		return Article{}, missing("news_desk")
	}

	authors := make([]string, 0, len(raw.Byline.Person))
	for _, person := range raw.Byline.Person {
		authors = append(authors, FullName(person))
	}

	return Article{
		Date:       date,
		Authors:    authors,
		WordCount:  *raw.WordCount,
		Headline:   *raw.Headline.Main,
		Abstract:   *raw.Abstract,
		MediaCount: len(raw.Multimedia),
		URL:        *raw.WebURL,
		NewsDesk:   *raw.NewsDesk,
	}, nil
}

// NormalizeAll normalizes every record of a page. It stops at the first
// malformed record so that a page is either used whole or not at all.
func NormalizeAll(raws []RawRecord) ([]Article, error) {
	articles := make([]Article, 0, len(raws))
	for i, raw := range raws {
		a, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// FormatDate truncates an ISO-8601 timestamp to its date portion.
func FormatDate(timestamp string) (string, error) {
	date, _, found := strings.Cut(timestamp, "T")
	if !found {
		return "", &MalformedRecordError{Field: "pub_date", Reason: "has no time separator"}
	}
	return date, nil
}

// FullName joins the present name parts with single spaces. Null and empty
// parts are skipped.
func FullName(p RawPerson) string {
	parts := make([]string, 0, 3)
	for _, part := range []*string{p.FirstName, p.MiddleName, p.LastName} {
		if part == nil || *part == "" {
			continue
		}
		parts = append(parts, *part)
	}
	return strings.Join(parts, " ")
}
