package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-timeline/internal/domain"
	"github.com/naka-gawa/github-timeline/internal/gateway"
)

// maxConcurrentRepos bounds how many repositories are generated at once.
const maxConcurrentRepos = 4

// Aggregator is the use case for generating timeline documents from GitHub.
// It orchestrates the fetching of issue history and folds it into daily counts.
type Aggregator struct {
	fetcher gateway.IssueFetcher
	logger  *log.Logger
	now     func() time.Time
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.IssueFetcher, logger *log.Logger) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Aggregate fetches the repository metadata and issue history concurrently
// and builds the repository's report.
func (a *Aggregator) Aggregate(ctx context.Context, repo domain.RepoID) (*domain.Report, error) {
	a.logger.Printf("Usecase: Starting aggregation for %s...", repo)

	var info *gateway.RepositoryInfo
	var issues []gateway.IssueRecord

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var err error
		info, err = a.fetcher.FetchRepository(egCtx, repo)
		return err
	})

	eg.Go(func() error {
		var err error
		issues, err = a.fetcher.FetchIssues(egCtx, repo)
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if info.NameWithOwner != "" && info.NameWithOwner != repo.String() {
		a.logger.Printf("Usecase: %s resolves to %s", repo, info.NameWithOwner)
	}

	timeline := BuildTimeline(issues, info.CreatedAt, a.now())
	a.logger.Printf("Usecase: Built %d days from %d issues for %s.", len(timeline), len(issues), repo)
	return &domain.Report{Timeline: timeline}, nil
}

// Generate aggregates every repository and writes each report to
// outDir/<owner>/<name>.json. It returns the written paths in sorted order.
func (a *Aggregator) Generate(ctx context.Context, repos []domain.RepoID, outDir string) ([]string, error) {
	paths := make([]string, len(repos))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentRepos)

	for i, repo := range repos {
		eg.Go(func() error {
			report, err := a.Aggregate(egCtx, repo)
			if err != nil {
				return fmt.Errorf("failed to aggregate %s: %w", repo, err)
			}
			path, err := writeReport(outDir, repo, report)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(paths)
	a.logger.Println("Usecase: Generation complete.")
	return paths, nil
}

func writeReport(outDir string, repo domain.RepoID, report *domain.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report for %s: %w", repo, err)
	}
	dir := filepath.Join(outDir, repo.Owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, repo.Name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// BuildTimeline folds issue history into one entry per UTC day, from the day
// the oldest issue was opened through the day containing now. An issue counts
// as open on every day from its creation through its closing day inclusive;
// closed counts are cumulative. origin is the first day only when there are no
// issues; a zero origin with no issues yields an empty timeline.
func BuildTimeline(issues []gateway.IssueRecord, origin, now time.Time) []domain.Entry {
	today := truncateDay(now)
	var first time.Time
	switch {
	case len(issues) > 0:
		first = truncateDay(issues[0].CreatedAt)
		for _, issue := range issues[1:] {
			if d := truncateDay(issue.CreatedAt); d.Before(first) {
				first = d
			}
		}
	case !origin.IsZero():
		first = truncateDay(origin)
	default:
		return []domain.Entry{}
	}
	if first.After(today) {
		first = today
	}

	numDays := int(today.Sub(first).Hours()/24) + 1
	index := func(t time.Time) int {
		i := int(truncateDay(t).Sub(first).Hours() / 24)
		return min(max(i, 0), numDays-1)
	}

	// Difference arrays: open counts change at creation and the day after closing.
	openIssues := make([]int, numDays+1)
	openPRs := make([]int, numDays+1)
	closedIssues := make([]int, numDays)
	closedPRs := make([]int, numDays)

	for _, issue := range issues {
		start := index(issue.CreatedAt)
		end := numDays - 1
		if issue.ClosedAt != nil {
			end = index(*issue.ClosedAt)
			if end < start {
				end = start
			}
		}
		if issue.IsPullRequest {
			openPRs[start]++
			openPRs[end+1]--
			if issue.ClosedAt != nil {
				closedPRs[end]++
			}
		} else {
			openIssues[start]++
			openIssues[end+1]--
			if issue.ClosedAt != nil {
				closedIssues[end]++
			}
		}
	}

	timeline := make([]domain.Entry, numDays)
	var oi, op, ci, cp int
	for i := range timeline {
		oi += openIssues[i]
		op += openPRs[i]
		ci += closedIssues[i]
		cp += closedPRs[i]
		timeline[i] = domain.Entry{
			Day:          first.AddDate(0, 0, i),
			OpenIssues:   oi,
			ClosedIssues: ci,
			OpenPRs:      op,
			ClosedPRs:    cp,
		}
	}
	return timeline
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
