package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Response is the raw result of fetching a document from a Source.
type Response struct {
	StatusCode int
	Body       []byte
}

// Source retrieves documents by a slash-separated path relative to a site root.
type Source interface {
	Get(ctx context.Context, path string) (*Response, error)
}

// NewSource returns an HTTPSource for http(s) locations and a DirSource otherwise.
func NewSource(location string, logger *log.Logger) (Source, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location, http.DefaultClient, logger)
	}
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open data root %q: %w", location, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data root %q is not a directory", location)
	}
	return NewDirSource(os.DirFS(location), logger), nil
}

// HTTPSource fetches documents with plain GET requests.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
	logger *log.Logger
}

// NewHTTPSource creates an HTTPSource rooted at baseURL.
func NewHTTPSource(baseURL string, client *http.Client, logger *log.Logger) (*HTTPSource, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{base: base, client: client, logger: logger}, nil
}

func (s *HTTPSource) Get(ctx context.Context, path string) (*Response, error) {
	target := s.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	s.logger.Printf("GET %s", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// DirSource serves documents from a file system, reporting HTTP-style status codes.
type DirSource struct {
	fsys   fs.FS
	logger *log.Logger
}

// NewDirSource creates a DirSource over fsys.
func NewDirSource(fsys fs.FS, logger *log.Logger) *DirSource {
	return &DirSource{fsys: fsys, logger: logger}
}

func (s *DirSource) Get(ctx context.Context, path string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(path, "/")
	if !fs.ValidPath(name) {
		return &Response{StatusCode: http.StatusBadRequest}, nil
	}
	s.logger.Printf("read %s", name)

	body, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return &Response{StatusCode: http.StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return &Response{StatusCode: http.StatusOK, Body: body}, nil
}

// FS exposes the underlying file system so it can be served directly.
func (s *DirSource) FS() fs.FS {
	return s.fsys
}
