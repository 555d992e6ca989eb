package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-timeline/internal/domain"
	"github.com/naka-gawa/github-timeline/internal/gateway"
	"github.com/naka-gawa/github-timeline/internal/usecase"
)

var generateCmd = &cobra.Command{
	Use:   "generate owner/name [owner/name...]",
	Short: "Generates timeline documents from the GitHub API",
	Long: `Fetches every issue and pull request of each repository and writes one entry
per day, from the oldest issue through today, to <out>/<owner>/<name>.json.
Requires the GITHUB_TOKEN environment variable.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger := newLogger()

		repos := make([]domain.RepoID, 0, len(args))
		for _, arg := range args {
			repo, err := domain.ParseRepoID(arg)
			if err != nil {
				fail("%v", err)
			}
			repos = append(repos, repo)
		}
		out, _ := cmd.Flags().GetString("out")

		token := viper.GetString("github_token")
		if token == "" {
			fail("GITHUB_TOKEN environment variable is not set.")
		}

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(token, logger)
		if err != nil {
			fail("Failed to create GitHub gateway: %v", err)
		}
		aggregator := usecase.NewAggregator(githubGateway, logger)

		paths, err := aggregator.Generate(ctx, repos, out)
		if err != nil {
			fail("Failed to generate timelines: %v", err)
		}
		for _, p := range paths {
			fmt.Println(p)
		}
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringP("out", "o", "data", "Directory the documents are written to")
}
