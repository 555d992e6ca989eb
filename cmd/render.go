package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-timeline/internal/chart"
	"github.com/naka-gawa/github-timeline/internal/gateway"
	"github.com/naka-gawa/github-timeline/internal/usecase"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Renders a repository's timeline as an HTML page",
	Long: `Loads data/<owner>/<name>.json from the site root, drops the last (still
in-progress) day, and writes a Plotly chart of the selected series to an HTML file.
The page's canonical address is printed on success.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger()

		s, err := loadSettings()
		if err != nil {
			fail("%v", err)
		}
		out, _ := cmd.Flags().GetString("out")
		pageURL, _ := cmd.Flags().GetString("page-url")
		if pageURL == "" {
			pageURL = filepath.Base(out)
		}
		u, err := url.Parse(pageURL)
		if err != nil {
			fail("Invalid --page-url: %v", err)
		}

		source, err := gateway.NewSource(s.data, logger)
		if err != nil {
			fail("%v", err)
		}

		nav := usecase.NewURLNavigation(u)
		var buf bytes.Buffer
		plotter := chart.NewHTMLPlotter(&buf,
			chart.WithPageTitle(s.repo.String()),
			chart.WithCanonicalURL(nav),
			chart.WithSummary(usecase.Summarize),
		)
		loader := usecase.NewLoader(source, chart.NewRenderer(plotter, s.metrics, logger), nav, logger)

		if err := loader.Run(ctx, s.repo); err != nil {
			fail("Failed to render %s: %v", s.repo, err)
		}
		if !plotter.Written() {
			fail("No chart rendered for %s (run with --verbose for details)", s.repo)
		}
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			fail("Failed to write %s: %v", out, err)
		}
		fmt.Println(nav.String())
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringP("out", "o", "timeline.html", "Output HTML file")
	renderCmd.Flags().String("page-url", "", "Address the page is published at (default: the output file name)")
}
