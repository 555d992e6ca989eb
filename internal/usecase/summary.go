package usecase

import (
	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/github-timeline/internal/domain"
)

// Summarize computes descriptive statistics for each series.
// An empty series yields zero values.
func Summarize(series []domain.Series) []domain.SeriesStats {
	result := make([]domain.SeriesStats, 0, len(series))
	for _, s := range series {
		summary := domain.SeriesStats{Name: s.Name, Points: len(s.Y)}
		if len(s.Y) == 0 {
			result = append(result, summary)
			continue
		}
		data := stats.LoadRawData(s.Y)
		// Errors only occur on empty input, which is handled above.
		summary.Min, _ = data.Min()
		summary.Max, _ = data.Max()
		summary.Mean, _ = data.Mean()
		summary.Median, _ = data.Median()
		summary.StdDev, _ = data.StandardDeviation()
		summary.Latest = float64(s.Y[len(s.Y)-1])
		result = append(result, summary)
	}
	return result
}
