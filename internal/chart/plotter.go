package chart

import (
	"fmt"
	"html/template"
	"io"

	"github.com/naka-gawa/github-timeline/internal/domain"
)

// PlotlyScriptURL is the Plotly bundle the page loads.
const PlotlyScriptURL = "https://cdn.plot.ly/plotly-2.35.2.min.js"

var pageTmpl = template.Must(template.New("page").Parse(tmplPage))

// Summarizer computes the statistics table shown under the chart.
type Summarizer func(series []domain.Series) []domain.SeriesStats

// HTMLPlotter writes a self-contained page that draws the chart with Plotly.
type HTMLPlotter struct {
	w            io.Writer
	title        string
	canonicalURL fmt.Stringer
	summarize    Summarizer
	written      bool
}

// Option configures an HTMLPlotter.
type Option func(*HTMLPlotter)

// WithPageTitle sets the document title.
func WithPageTitle(title string) Option {
	return func(p *HTMLPlotter) {
		p.title = title
	}
}

// WithCanonicalURL makes the page replace its address with u once loaded.
// u is read when the page is written.
func WithCanonicalURL(u fmt.Stringer) Option {
	return func(p *HTMLPlotter) {
		p.canonicalURL = u
	}
}

// WithSummary adds a statistics table computed by fn.
func WithSummary(fn Summarizer) Option {
	return func(p *HTMLPlotter) {
		p.summarize = fn
	}
}

// NewHTMLPlotter creates a plotter writing to w.
func NewHTMLPlotter(w io.Writer, options ...Option) *HTMLPlotter {
	p := &HTMLPlotter{w: w, title: "GitHub timeline"}
	for _, opt := range options {
		opt(p)
	}
	return p
}

type pageData struct {
	Title        string
	ScriptURL    string
	CanonicalURL string
	TargetID     string
	Plot         bool
	Series       []domain.Series
	Layout       Layout
	Config       Config
	Stats        []domain.SeriesStats
}

func (p *HTMLPlotter) data() pageData {
	d := pageData{
		Title:     p.title,
		ScriptURL: PlotlyScriptURL,
		TargetID:  TargetID,
	}
	if p.canonicalURL != nil {
		d.CanonicalURL = p.canonicalURL.String()
	}
	return d
}

// NewPlot writes the page. A plotter draws at most once.
func (p *HTMLPlotter) NewPlot(targetID string, series []domain.Series, layout Layout, config Config) error {
	if p.written {
		return fmt.Errorf("page already written")
	}
	d := p.data()
	d.TargetID = targetID
	d.Plot = true
	d.Series = series
	d.Layout = layout
	d.Config = config
	if p.summarize != nil {
		d.Stats = p.summarize(series)
	}
	return p.execute(d)
}

// WriteEmpty writes the page without a chart, unless one was already drawn.
func (p *HTMLPlotter) WriteEmpty() error {
	if p.written {
		return nil
	}
	return p.execute(p.data())
}

// Written reports whether the page has been written.
func (p *HTMLPlotter) Written() bool {
	return p.written
}

func (p *HTMLPlotter) execute(d pageData) error {
	p.written = true
	if err := pageTmpl.Execute(p.w, d); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

const tmplPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,sans-serif;margin:0;padding:16px;color:#24292f}
#{{.TargetID}}{width:100%;height:70vh}
table{border-collapse:collapse;font-size:13px;margin-top:16px}
th,td{padding:4px 10px;border-bottom:1px solid #d0d7de;text-align:right}
th:first-child,td:first-child{text-align:left}
</style>
{{- if .Plot}}
<script src="{{.ScriptURL}}"></script>
{{- end}}
</head>
<body>
<div id="{{.TargetID}}"></div>
{{- if .Stats}}
<table>
<tr><th>Series</th><th>Points</th><th>Min</th><th>Max</th><th>Mean</th><th>Median</th><th>Std dev</th><th>Latest</th></tr>
{{- range .Stats}}
<tr><td>{{.Name}}</td><td>{{.Points}}</td><td>{{printf "%.0f" .Min}}</td><td>{{printf "%.0f" .Max}}</td><td>{{printf "%.1f" .Mean}}</td><td>{{printf "%.1f" .Median}}</td><td>{{printf "%.1f" .StdDev}}</td><td>{{printf "%.0f" .Latest}}</td></tr>
{{- end}}
</table>
{{- end}}
<script>
{{- if .CanonicalURL}}
window.history.replaceState({}, "", {{.CanonicalURL}});
{{- end}}
{{- if .Plot}}
Plotly.newPlot({{.TargetID}}, {{.Series}}, {{.Layout}}, {{.Config}});
{{- end}}
</script>
</body>
</html>
`
