package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// RenderSummaries writes archived report summaries as an aligned table.
func RenderSummaries(w io.Writer, summaries []Summary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No reports archived.")
		return err
	}

	rows := [][]string{{"RUN ID", "MODE", "HITS", "ARTICLES", "MISSING", "FINISHED"}}
	for _, s := range summaries {
		rows = append(rows, []string{
			s.RunID.String(),
			s.Mode.String(),
			strconv.Itoa(s.TotalHits),
			strconv.Itoa(s.ArticleCount),
			strconv.Itoa(s.MissingCount),
			s.FinishedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if width := runewidth.StringWidth(cell); width > widths[i] {
				widths[i] = width
			}
		}
	}

	var b strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			// No trailing padding on the last column
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)))
			}
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
