// Package chart turns timelines into named series and hands them to a plotting sink.
package chart

import (
	"context"
	"fmt"
	"html"
	"log"

	"github.com/naka-gawa/github-timeline/internal/domain"
)

// TargetID is the page element the chart is drawn into.
const TargetID = "graph"

// dayLayout formats a day as "2024-01-02 00:00:00".
const dayLayout = "2006-01-02 15:04:05"

// Title is the chart heading. Text may contain HTML.
type Title struct {
	Text string `json:"text"`
}

// Layout mirrors the subset of Plotly layout attributes the chart uses.
type Layout struct {
	Title           Title `json:"title"`
	ShowSendToCloud bool  `json:"showSendToCloud"`
	Autosize        bool  `json:"autosize"`
}

// Config mirrors the Plotly per-plot configuration.
type Config struct {
	DisplayModeBar bool `json:"displayModeBar"`
}

// Plotter is the drawing sink, modelled on Plotly's newPlot entry point.
type Plotter interface {
	NewPlot(targetID string, series []domain.Series, layout Layout, config Config) error
}

// BuildSeries derives one scatter series per metric. Every series shares the same x values.
func BuildSeries(timeline []domain.Entry, metrics []domain.Metric) []domain.Series {
	x := make([]string, len(timeline))
	for i, e := range timeline {
		x[i] = e.Day.UTC().Format(dayLayout)
	}

	series := make([]domain.Series, 0, len(metrics))
	for _, m := range metrics {
		y := make([]int, len(timeline))
		for i, e := range timeline {
			y[i] = m.Value(e)
		}
		series = append(series, domain.Series{
			Type: "scatter",
			Name: m.Label(),
			X:    x,
			Y:    y,
		})
	}
	return series
}

// NewLayout builds the layout whose title links to the repository on GitHub.
func NewLayout(repo domain.RepoID) Layout {
	name := html.EscapeString(repo.String())
	return Layout{
		Title: Title{
			Text: fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(repo.URL()), name),
		},
		ShowSendToCloud: false,
		Autosize:        true,
	}
}

// PlotlyRenderer renders timelines through a Plotter.
type PlotlyRenderer struct {
	plotter Plotter
	metrics []domain.Metric
	logger  *log.Logger
}

// NewRenderer creates a renderer drawing the given metrics, or the defaults when empty.
func NewRenderer(plotter Plotter, metrics []domain.Metric, logger *log.Logger) *PlotlyRenderer {
	if len(metrics) == 0 {
		metrics = domain.DefaultMetrics
	}
	return &PlotlyRenderer{
		plotter: plotter,
		metrics: metrics,
		logger:  logger,
	}
}

func (r *PlotlyRenderer) Render(ctx context.Context, timeline []domain.Entry, repo domain.RepoID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	series := BuildSeries(timeline, r.metrics)
	r.logger.Printf("Rendering %d series of %d points for %s", len(series), len(timeline), repo)
	if err := r.plotter.NewPlot(TargetID, series, NewLayout(repo), Config{DisplayModeBar: false}); err != nil {
		return fmt.Errorf("failed to plot %s: %w", repo, err)
	}
	return nil
}
