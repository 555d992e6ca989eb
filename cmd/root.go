// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-timeline/internal/domain"
)

// defaultRepo is the repository shown when none is configured.
const defaultRepo = "nixos/nixpkgs"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "github-timeline",
	Short: "A CLI tool to chart a GitHub repository's open issues and pull requests over time.",
	Long: `github-timeline charts the daily number of open (and closed) issues and
pull requests of a GitHub repository. It generates the timeline documents from
the GitHub API, renders them as an interactive Plotly page, and can serve that
page over HTTP.

Settings can also be given as TIMELINE_* environment variables or in a
.github-timeline.yaml file.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .github-timeline.yaml)")
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringP("repo", "r", defaultRepo, "Target GitHub repository (owner/name)")
	rootCmd.PersistentFlags().String("data", ".", "Location of the site root holding data/<owner>/<name>.json (directory or http(s) URL)")
	rootCmd.PersistentFlags().StringSlice("metrics", nil, "Series to draw: open_issues, open_prs, closed_issues, closed_prs (default open_issues,open_prs)")

	for _, name := range []string{"verbose", "repo", "data", "metrics"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	_ = viper.BindEnv("github_token", "GITHUB_TOKEN")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".github-timeline")
	}

	viper.SetEnvPrefix("TIMELINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fail("Failed to read config file: %v", err)
	}
}

// newLogger discards all logs unless verbose output is enabled.
func newLogger() *log.Logger {
	logger := log.New(io.Discard, "", log.LstdFlags)
	if viper.GetBool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

// settings are the resolved chart options shared by the commands.
type settings struct {
	repo    domain.RepoID
	metrics []domain.Metric
	data    string
}

func loadSettings() (*settings, error) {
	repo, err := domain.ParseRepoID(viper.GetString("repo"))
	if err != nil {
		return nil, err
	}
	// Environment values arrive as a single comma-separated string.
	var names []string
	for _, v := range viper.GetStringSlice("metrics") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	metrics, err := domain.ParseMetrics(names)
	if err != nil {
		return nil, err
	}
	return &settings{
		repo:    repo,
		metrics: metrics,
		data:    viper.GetString("data"),
	}, nil
}

// fail prints the message to standard error and exits with status 1.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
