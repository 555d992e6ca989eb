// Package server serves the timeline page and its data documents over HTTP.
package server

import (
	"bytes"
	"io"
	"io/fs"
	"log"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/naka-gawa/github-timeline/internal/chart"
	"github.com/naka-gawa/github-timeline/internal/domain"
	"github.com/naka-gawa/github-timeline/internal/gateway"
	"github.com/naka-gawa/github-timeline/internal/usecase"
)

type Server struct {
	mux *chi.Mux
}

type config struct {
	metrics []domain.Metric
	dataFS  fs.FS
	logger  *log.Logger
}

type Option func(*config)

// WithMetrics selects the series drawn on the page.
func WithMetrics(metrics []domain.Metric) Option {
	return func(cfg *config) {
		cfg.metrics = metrics
	}
}

// WithDataFS exposes the raw documents under /data/ from fsys, which must contain a data directory.
func WithDataFS(fsys fs.FS) Option {
	return func(cfg *config) {
		cfg.dataFS = fsys
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

func safeWrite(w http.ResponseWriter, logger *log.Logger, code int, body []byte) {
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logger.Printf("fail to write response: %v", err)
	}
}

// New builds the router. defaultRepo is shown when the request names no valid repository.
func New(source gateway.Source, defaultRepo domain.RepoID, options ...Option) *Server {
	cfg := &config{
		metrics: domain.DefaultMetrics,
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(accessLog(cfg.logger))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		safeWrite(w, cfg.logger, http.StatusOK, []byte("ok"))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		repo := defaultRepo
		if v := r.URL.Query().Get(usecase.RepoParam); v != "" {
			if id, err := domain.ParseRepoID(v); err == nil {
				repo = id
			} else {
				cfg.logger.Printf("ignoring repo parameter: %v", err)
			}
		}

		nav := usecase.NewURLNavigation(r.URL)
		var buf bytes.Buffer
		plotter := chart.NewHTMLPlotter(&buf,
			chart.WithPageTitle(repo.String()),
			chart.WithCanonicalURL(nav),
			chart.WithSummary(usecase.Summarize),
		)
		renderer := chart.NewRenderer(plotter, cfg.metrics, cfg.logger)
		loader := usecase.NewLoader(source, renderer, nav, cfg.logger)

		if err := loader.Run(r.Context(), repo); err != nil {
			cfg.logger.Printf("fail to render %s: %v", repo, err)
			safeWrite(w, cfg.logger, http.StatusInternalServerError, []byte("failed to render page"))
			return
		}
		if err := plotter.WriteEmpty(); err != nil {
			cfg.logger.Printf("fail to render empty page: %v", err)
			safeWrite(w, cfg.logger, http.StatusInternalServerError, []byte("failed to render page"))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		safeWrite(w, cfg.logger, http.StatusOK, buf.Bytes())
	})
	if cfg.dataFS != nil {
		r.Handle("/data/*", http.FileServer(http.FS(jsonFS{fsys: cfg.dataFS})))
	}

	return &Server{
		mux: r,
	}
}

func (x *Server) Mux() *chi.Mux {
	return x.mux
}

// jsonFS exposes only the JSON documents of fsys. Directories read as missing,
// so nothing is ever listed.
type jsonFS struct {
	fsys fs.FS
}

func (j jsonFS) Open(name string) (fs.File, error) {
	if path.Ext(name) != ".json" {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	f, err := j.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return f, nil
}

func accessLog(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lw := &statusCodeLogger{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			requestedAt := time.Now()
			next.ServeHTTP(lw, r)
			logger.Printf("http access: %s %s status=%d elapsed=%s", r.Method, r.URL.Path, lw.statusCode, time.Since(requestedAt))
		})
	}
}

type statusCodeLogger struct {
	http.ResponseWriter
	statusCode int
}

func (x *statusCodeLogger) WriteHeader(code int) {
	x.statusCode = code
	x.ResponseWriter.WriteHeader(code)
}
