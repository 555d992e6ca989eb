package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-timeline/internal/chart"
	"github.com/naka-gawa/github-timeline/internal/domain"
	"github.com/naka-gawa/github-timeline/internal/gateway"
	"github.com/naka-gawa/github-timeline/internal/usecase"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarizes a repository's timeline and outputs as JSON",
	Long:  `Loads a repository's timeline the same way the chart does and prints min, max, mean, median, standard deviation and latest value of each selected series in JSON format.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger()

		s, err := loadSettings()
		if err != nil {
			fail("%v", err)
		}
		source, err := gateway.NewSource(s.data, logger)
		if err != nil {
			fail("%v", err)
		}

		var results []domain.SeriesStats
		summarize := usecase.RendererFunc(func(_ context.Context, timeline []domain.Entry, _ domain.RepoID) error {
			results = usecase.Summarize(chart.BuildSeries(timeline, s.metrics))
			return nil
		})
		loader := usecase.NewLoader(source, summarize, usecase.NewURLNavigation(&url.URL{}), logger)
		if err := loader.Run(ctx, s.repo); err != nil {
			fail("Failed to summarize %s: %v", s.repo, err)
		}
		if results == nil {
			fail("No timeline loaded for %s (run with --verbose for details)", s.repo)
		}

		// Marshal the results into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			fail("Failed to marshal results to JSON: %v", err)
		}
		fmt.Println(string(jsonData))
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
