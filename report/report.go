// Package report holds the finished result of a run and the ways it is
// presented: plain text, JSON, an HTML chart page, and an SQLite archive of
// past runs.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/deskstats/aggregate"
)

// ErrInvalidModeSelection is returned for a mode other than 1, 2 or 3.
var ErrInvalidModeSelection = errors.New("mode must be 1, 2, or 3")

// Mode selects which leaders a report shows.
type Mode int

const (
	MediaFocus  Mode = 1
	AuthorFocus Mode = 2
	Both        Mode = 3
)

// ParseMode parses the user's selection.
func ParseMode(s string) (Mode, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return MediaFocus, nil
	case "2":
		return AuthorFocus, nil
	case "3":
		return Both, nil
	default:
		return 0, ErrInvalidModeSelection
	}
}

// ShowsMedia reports whether the media leader is part of the report.
func (m Mode) ShowsMedia() bool {
	return m == MediaFocus || m == Both
}

// ShowsAuthor reports whether the author leader is part of the report.
func (m Mode) ShowsAuthor() bool {
	return m == AuthorFocus || m == Both
}

func (m Mode) String() string {
	switch m {
	case MediaFocus:
		return "media"
	case AuthorFocus:
		return "author"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// PromptText is the question shown before a run.
const PromptText = `Which feature to run?
1) Get the article with the most multimedia objects attached, along with the count of multimedia objects
2) Get the author who wrote the most articles
3) Both
`

// Report is a finished run handed to presentation.
type Report struct {
	RunID        uuid.UUID         `json:"run_id"`
	Mode         Mode              `json:"mode"`
	TotalHits    int               `json:"total_hits"`
	MissingPages []int             `json:"missing_pages"`
	Result       *aggregate.Result `json:"result"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
}

// WithMode returns a shallow copy of the report presented under another
// mode.
func (r *Report) WithMode(mode Mode) *Report {
	cp := *r
	cp.Mode = mode
	return &cp
}
