package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Formats accepted by Render. FormatChart is declared with RenderChart.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Render writes the report in the given format.
func Render(w io.Writer, r *Report, format string) error {
	switch format {
	case "", FormatText:
		return RenderText(w, r)
	case FormatJSON:
		return RenderJSON(w, r)
	case FormatChart:
		return RenderChart(w, r)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// RenderText writes the human-readable report. Leader sections follow the
// report's mode; every news desk is listed with its average word count and
// articles.
func RenderText(w io.Writer, r *Report) error {
	renderer := lipgloss.NewRenderer(w)
	heading := renderer.NewStyle().Bold(true)
	warn := renderer.NewStyle().Foreground(lipgloss.Color("3"))

	var b strings.Builder

	if len(r.MissingPages) > 0 {
		pages := make([]string, 0, len(r.MissingPages))
		for _, p := range r.MissingPages {
			pages = append(pages, strconv.Itoa(p))
		}
		b.WriteString(warn.Render("The following pages are missing: "+strings.Join(pages, ",")) + "\n")
	}

	result := r.Result
	if r.Mode.ShowsMedia() {
		b.WriteString("The news URL with the most multimedia objects:\n")
		for _, url := range result.MostMediaURLs {
			fmt.Fprintf(&b, "--%s\n", url)
		}
		fmt.Fprintf(&b, "Number of multimedia objects: %d\n", result.MostMediaCount)
	}
	if r.Mode.ShowsAuthor() {
		fmt.Fprintf(&b, "The author who wrote the most articles in this search: %s\n", result.AuthorWroteMost)
	}

	for _, desk := range result.CategoryOrder {
		stats := result.Categories[desk]
		b.WriteString(heading.Render("===================="+desk+"====================") + "\n")
		fmt.Fprintf(&b, "Average word count in this news desk: %.2f\n", stats.AvgWordCount)
		for _, a := range stats.Articles {
			b.WriteString("-----------------------\n")
			fmt.Fprintf(&b, "--------Date:%s\n", a.Date)
			fmt.Fprintf(&b, "------Author:%s\n", strings.Join(a.Authors, ","))
			fmt.Fprintf(&b, "--Word Count:%d\n", a.WordCount)
			fmt.Fprintf(&b, "----Headline:%s\n", a.Headline)
			fmt.Fprintf(&b, "----Abstract:%s\n", a.Abstract)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriterPresenter renders each report to a writer.
type WriterPresenter struct {
	W      io.Writer
	Format string
}

// Present implements scheduler.Presenter.
func (p *WriterPresenter) Present(_ context.Context, r *Report) error {
	return Render(p.W, r, p.Format)
}
