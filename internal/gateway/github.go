// Package gateway provides access to timeline documents and to the GitHub API,
// abstracting away the underlying transports and clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_secondary_ratelimit"
	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/naka-gawa/github-timeline/internal/domain"
)

// IssueRecord holds the timestamps needed to place a single issue or PR on a timeline.
type IssueRecord struct {
	Number        int
	IsPullRequest bool
	CreatedAt     time.Time
	// ClosedAt is nil while the issue is still open.
	ClosedAt *time.Time
}

// RepositoryInfo is the canonical identity of a repository as reported by GitHub.
type RepositoryInfo struct {
	NameWithOwner string
	CreatedAt     time.Time
}

// IssueFetcher defines the behavior of a gateway for fetching repository history from GitHub.
type IssueFetcher interface {
	FetchIssues(ctx context.Context, repo domain.RepoID) ([]IssueRecord, error)
	FetchRepository(ctx context.Context, repo domain.RepoID) (*RepositoryInfo, error)
}

// maxRateLimitWaits bounds how often a single page is retried after a rate limit.
const maxRateLimitWaits = 3

// GitHubGateway is the concrete implementation of the IssueFetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
	// resetMargin is added to every rate limit wait so the limiter has cleared its state.
	resetMargin time.Duration
}

// repositoryQuery resolves the canonical name of a repository.
type repositoryQuery struct {
	Repository struct {
		NameWithOwner string
		CreatedAt     githubv4.DateTime
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger) (IssueFetcher, error) {
	if token == "" {
		return nil, fmt.Errorf("a GitHub token is required")
	}
	rateLimiter := github_ratelimit.New(nil,
		github_primary_ratelimit.WithLimitDetectedCallback(func(cb *github_primary_ratelimit.CallbackContext) {
			logger.Printf("Primary rate limit detected: category %v, reset time: %v", cb.Category, cb.ResetTime)
		}),
		github_secondary_ratelimit.WithLimitDetectedCallback(func(cb *github_secondary_ratelimit.CallbackContext) {
			logger.Printf("Secondary rate limit detected: reset time: %v, total sleep time: %v", cb.ResetTime, cb.TotalSleepTime)
		}),
	)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
		resetMargin:   time.Second,
	}, nil
}

// FetchIssues pages through every issue and pull request of the repository, open or closed.
func (g *GitHubGateway) FetchIssues(ctx context.Context, repo domain.RepoID) ([]IssueRecord, error) {
	g.logger.Printf("Fetching issues for %s using REST API...", repo)
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var records []IssueRecord
	waits := 0
	for {
		issues, resp, err := g.restClient.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			if reset, ok := rateLimitReset(err); ok && waits < maxRateLimitWaits {
				waits++
				if err := g.waitForReset(ctx, reset); err != nil {
					return nil, fmt.Errorf("interrupted while waiting for rate limit reset: %w", err)
				}
				continue
			}
			return nil, fmt.Errorf("failed to list issues with REST API: %w", err)
		}
		waits = 0
		for _, issue := range issues {
			record := IssueRecord{
				Number:        issue.GetNumber(),
				IsPullRequest: issue.IsPullRequest(),
				CreatedAt:     issue.GetCreatedAt().Time,
			}
			if issue.ClosedAt != nil {
				closedAt := issue.ClosedAt.Time
				record.ClosedAt = &closedAt
			}
			records = append(records, record)
		}
		page := max(opts.Page, 1)
		g.logger.Printf("  Fetched page %d / %d", page, max(resp.LastPage, page))
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	g.logger.Printf("Completed fetching %d issues for %s.", len(records), repo)
	return records, nil
}

// rateLimitReset reports when a request rejected for the primary rate limit may be retried.
func rateLimitReset(err error) (time.Time, bool) {
	var reached *github_primary_ratelimit.RateLimitReachedError
	if errors.As(err, &reached) && reached.ResetTime != nil {
		return *reached.ResetTime, true
	}
	var limited *github.RateLimitError
	if errors.As(err, &limited) {
		return limited.Rate.Reset.Time, true
	}
	return time.Time{}, false
}

func (g *GitHubGateway) waitForReset(ctx context.Context, reset time.Time) error {
	wait := max(time.Until(reset), 0) + g.resetMargin
	g.logger.Printf("Waiting %.fs until rate limit reset...", wait.Seconds())
	select {
	case <-time.After(wait):
		g.logger.Println("Rate limit reset completed, continuing...")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchRepository resolves the repository's canonical name and creation time.
func (g *GitHubGateway) FetchRepository(ctx context.Context, repo domain.RepoID) (*RepositoryInfo, error) {
	g.logger.Printf("Fetching repository metadata for %s using GraphQL API...", repo)
	variables := map[string]interface{}{
		"owner": githubv4.String(repo.Owner),
		"name":  githubv4.String(repo.Name),
	}
	var q repositoryQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL query for repository: %w", err)
	}
	return &RepositoryInfo{
		NameWithOwner: q.Repository.NameWithOwner,
		CreatedAt:     q.Repository.CreatedAt.Time,
	}, nil
}
