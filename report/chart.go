package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// FormatChart renders the report as a standalone HTML page of charts.
const FormatChart = "chart"

// RenderChart writes an HTML page with the average word count of every news
// desk as a bar chart and the share of articles per desk as a pie chart.
func RenderChart(w io.Writer, r *Report) error {
	result := r.Result

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Average Word Count by News Desk",
			Subtitle: fmt.Sprintf("%d hits, %d missing pages", r.TotalHits, len(r.MissingPages)),
		}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	desks := make([]string, 0, len(result.CategoryOrder))
	var averages []opts.BarData
	var shares []opts.PieData
	for _, desk := range result.CategoryOrder {
		stats := result.Categories[desk]
		desks = append(desks, desk)
		averages = append(averages, opts.BarData{Value: math.Round(stats.AvgWordCount*100) / 100})
		shares = append(shares, opts.PieData{Name: desk, Value: len(stats.Articles)})
	}
	bar.SetXAxis(desks).AddSeries("Words", averages)

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Articles by News Desk"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)
	pie.AddSeries("Articles", shares)

	page := components.NewPage()
	page.PageTitle = "deskstats " + r.RunID.String()
	page.AddCharts(bar, pie)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
