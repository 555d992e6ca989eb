package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-timeline/internal/gateway"
	"github.com/naka-gawa/github-timeline/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the timeline page over HTTP",
	Long: `Serves the chart page at / (select a repository with ?repo=owner/name) and,
when the site root is a directory, the raw documents under /data/.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger()

		s, err := loadSettings()
		if err != nil {
			fail("%v", err)
		}
		addr := viper.GetString("addr")

		source, err := gateway.NewSource(s.data, logger)
		if err != nil {
			fail("%v", err)
		}
		options := []server.Option{
			server.WithMetrics(s.metrics),
			server.WithLogger(logger),
		}
		if dir, ok := source.(*gateway.DirSource); ok {
			options = append(options, server.WithDataFS(dir.FS()))
		}
		srv := server.New(source, s.repo, options...)

		serverErr := make(chan error, 1)
		httpServer := &http.Server{
			Addr:    addr,
			Handler: srv.Mux(),

			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		}

		go func() {
			logger.Printf("starting http server on %s", addr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("failed to listen and serve: %w", err)
			}
		}()
		fmt.Fprintf(os.Stderr, "Serving %s on http://%s/\n", s.repo, addr)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-serverErr:
			fail("%v", err)

		case sig := <-quit:
			logger.Printf("shutting down server: %v", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				fail("Failed to shutdown server: %v", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Binding address")
	_ = viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
}
