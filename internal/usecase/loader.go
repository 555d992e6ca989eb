// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/naka-gawa/github-timeline/internal/domain"
	"github.com/naka-gawa/github-timeline/internal/gateway"
)

// RepoParam is the query parameter that carries the displayed repository.
const RepoParam = "repo"

// Renderer draws a trimmed timeline for a repository.
type Renderer interface {
	Render(ctx context.Context, timeline []domain.Entry, repo domain.RepoID) error
}

// RendererFunc adapts an ordinary function to the Renderer interface.
type RendererFunc func(ctx context.Context, timeline []domain.Entry, repo domain.RepoID) error

func (f RendererFunc) Render(ctx context.Context, timeline []domain.Entry, repo domain.RepoID) error {
	return f(ctx, timeline, repo)
}

// UnexpectedStatusError reports a data document request that did not answer 200.
type UnexpectedStatusError struct {
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// Loader fetches a repository's timeline document and hands it to a Renderer.
type Loader struct {
	source   gateway.Source
	renderer Renderer
	nav      Navigation
	logger   *log.Logger
}

// NewLoader creates a new Loader instance.
func NewLoader(source gateway.Source, renderer Renderer, nav Navigation, logger *log.Logger) *Loader {
	return &Loader{
		source:   source,
		renderer: renderer,
		nav:      nav,
		logger:   logger,
	}
}

// document mirrors Report with a pointer so a missing timeline field is detectable.
type document struct {
	Timeline *[]domain.Entry `json:"timeline"`
}

// Load records repo in the navigation query, fetches its timeline document and
// returns the timeline without its final, still in-progress day.
func (l *Loader) Load(ctx context.Context, repo domain.RepoID) ([]domain.Entry, error) {
	q := l.nav.Query()
	q.Set(RepoParam, repo.String())
	l.nav.ReplaceQuery(q)

	resp, err := l.source.Get(ctx, repo.DataPath())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch timeline for %s: %w", repo, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UnexpectedStatusError{StatusCode: resp.StatusCode}
	}

	var doc document
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse timeline for %s: %w", repo, err)
	}
	if doc.Timeline == nil {
		return nil, fmt.Errorf("failed to parse timeline for %s: document has no timeline", repo)
	}
	return trimTimeline(*doc.Timeline), nil
}

func trimTimeline(timeline []domain.Entry) []domain.Entry {
	if len(timeline) == 0 {
		return []domain.Entry{}
	}
	return timeline[:len(timeline)-1]
}

// Run loads the timeline and renders it. Load failures are logged and swallowed,
// leaving nothing rendered; only a failing Renderer produces an error.
func (l *Loader) Run(ctx context.Context, repo domain.RepoID) error {
	timeline, err := l.Load(ctx, repo)
	if err != nil {
		var statusErr *UnexpectedStatusError
		if errors.As(err, &statusErr) {
			l.logger.Printf("Looks like there was a problem. Status Code: %d", statusErr.StatusCode)
		} else {
			l.logger.Printf("Fetch Error: %v", err)
		}
		return nil
	}
	l.logger.Printf("Loaded %d timeline entries for %s", len(timeline), repo)
	return l.renderer.Render(ctx, timeline, repo)
}
