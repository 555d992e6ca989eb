package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-timeline/internal/domain"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	graphqlClient := githubv4.NewEnterpriseClient(server.URL, server.Client())
	logger := log.New(io.Discard, "", 0)

	gateway := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
	}

	return gateway, server
}

func TestNewGitHubGateway_RequiresToken(t *testing.T) {
	_, err := NewGitHubGateway("", log.New(io.Discard, "", 0))
	assert.Error(t, err)

	fetcher, err := NewGitHubGateway("token", log.New(io.Discard, "", 0))
	require.NoError(t, err)
	assert.NotNil(t, fetcher)
}

func TestGitHubGateway_FetchIssues(t *testing.T) {
	repo := domain.RepoID{Owner: "org", Name: "repo"}

	testCases := []struct {
		name           string
		handlerFunc    func(serverURL string) http.HandlerFunc
		expected       []IssueRecord
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "happy path - follows pagination",
			handlerFunc: func(serverURL string) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "/repos/org/repo/issues", r.URL.Path)
					assert.Equal(t, "all", r.URL.Query().Get("state"))
					if r.URL.Query().Get("page") == "2" {
						fmt.Fprint(w, `[{"number": 1, "created_at": "2024-01-01T10:00:00Z", "closed_at": "2024-01-03T08:00:00Z"}]`)
						return
					}
					w.Header().Set("Link", fmt.Sprintf(`<%s/repos/org/repo/issues?page=2>; rel="next", <%s/repos/org/repo/issues?page=2>; rel="last"`, serverURL, serverURL))
					fmt.Fprint(w, `[{"number": 2, "created_at": "2024-01-02T12:00:00Z", "pull_request": {"url": "x"}}]`)
				}
			},
			expected: []IssueRecord{
				{Number: 2, IsPullRequest: true, CreatedAt: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)},
				{Number: 1, CreatedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), ClosedAt: timePtr(time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC))},
			},
		},
		{
			name: "error case - GitHub API returns an error",
			handlerFunc: func(string) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
					fmt.Fprint(w, `{"message": "Internal Server Error"}`)
				}
			},
			expectError:    true,
			expectedErrMsg: "failed to list issues with REST API",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var serverURL string
			gateway, server := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tc.handlerFunc(serverURL)(w, r)
			}))
			defer server.Close()
			serverURL = server.URL

			records, err := gateway.FetchIssues(context.Background(), repo)
			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			require.Len(t, records, len(tc.expected))
			for i := range tc.expected {
				assert.Equal(t, tc.expected[i].Number, records[i].Number)
				assert.Equal(t, tc.expected[i].IsPullRequest, records[i].IsPullRequest)
				assert.True(t, tc.expected[i].CreatedAt.Equal(records[i].CreatedAt))
				if tc.expected[i].ClosedAt == nil {
					assert.Nil(t, records[i].ClosedAt)
				} else {
					require.NotNil(t, records[i].ClosedAt)
					assert.True(t, tc.expected[i].ClosedAt.Equal(*records[i].ClosedAt))
				}
			}
		})
	}
}

func TestGitHubGateway_FetchRepository(t *testing.T) {
	testCases := []struct {
		name           string
		responseBody   string
		expected       *RepositoryInfo
		expectError    bool
		expectedErrMsg string
	}{
		{
			name:         "happy path",
			responseBody: `{"data":{"repository":{"nameWithOwner":"NixOS/nixpkgs","createdAt":"2012-06-04T02:49:46Z"}}}`,
			expected: &RepositoryInfo{
				NameWithOwner: "NixOS/nixpkgs",
				CreatedAt:     time.Date(2012, 6, 4, 2, 49, 46, 0, time.UTC),
			},
		},
		{
			name:           "error case",
			responseBody:   `{"errors":[{"message":"Could not resolve to a Repository"}]}`,
			expectError:    true,
			expectedErrMsg: "failed to execute GraphQL query",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), "nixpkgs")

				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			info, err := gateway.FetchRepository(context.Background(), domain.RepoID{Owner: "nixos", Name: "nixpkgs"})
			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected.NameWithOwner, info.NameWithOwner)
			assert.True(t, tc.expected.CreatedAt.Equal(info.CreatedAt))
		})
	}
}

// newLimitedGateway builds a gateway with the production transport chain,
// rate limiter included, talking to server.
func newLimitedGateway(t *testing.T, server *httptest.Server, logger *log.Logger) *GitHubGateway {
	t.Helper()
	fetcher, err := NewGitHubGateway("token", logger)
	require.NoError(t, err)
	gateway, ok := fetcher.(*GitHubGateway)
	require.True(t, ok)
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	gateway.restClient.BaseURL = baseURL
	gateway.resetMargin = 100 * time.Millisecond
	return gateway
}

func writeRateLimited(w http.ResponseWriter, reset time.Time) {
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	w.Header().Set("X-RateLimit-Resource", "core")
	w.WriteHeader(http.StatusForbidden)
	fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
}

func TestGitHubGateway_FetchIssues_WaitsForRateLimitReset(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeRateLimited(w, time.Now().Add(time.Second))
			return
		}
		assert.Equal(t, "/repos/org/repo/issues", r.URL.Path)
		fmt.Fprint(w, `[{"number": 7, "created_at": "2024-01-01T10:00:00Z"}]`)
	}))
	defer server.Close()

	var buf bytes.Buffer
	gateway := newLimitedGateway(t, server, log.New(&buf, "", 0))

	records, err := gateway.FetchIssues(context.Background(), domain.RepoID{Owner: "org", Name: "repo"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, records, 1)
	assert.Equal(t, 7, records[0].Number)
	assert.Contains(t, buf.String(), "Primary rate limit detected")
	assert.Contains(t, buf.String(), "Rate limit reset completed, continuing...")
}

func TestGitHubGateway_FetchIssues_RateLimitWaitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeRateLimited(w, time.Now().Add(time.Hour))
	}))
	defer server.Close()

	gateway := newLimitedGateway(t, server, log.New(io.Discard, "", 0))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	records, err := gateway.FetchIssues(ctx, domain.RepoID{Owner: "org", Name: "repo"})
	assert.Nil(t, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted while waiting for rate limit reset")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGitHubGateway_FetchIssues_LogsPageProgress(t *testing.T) {
	var serverURL string
	var buf bytes.Buffer
	gateway, server := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"number": 1, "created_at": "2024-01-01T10:00:00Z"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/org/repo/issues?page=2>; rel="next", <%s/repos/org/repo/issues?page=2>; rel="last"`, serverURL, serverURL))
		fmt.Fprint(w, `[{"number": 2, "created_at": "2024-01-02T12:00:00Z"}]`)
	}))
	defer server.Close()
	serverURL = server.URL
	gateway.logger = log.New(&buf, "", 0)

	_, err := gateway.FetchIssues(context.Background(), domain.RepoID{Owner: "org", Name: "repo"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Fetched page 1 / 2")
	assert.Contains(t, buf.String(), "Fetched page 2 / 2")
}

func timePtr(t time.Time) *time.Time {
	return &t
}
