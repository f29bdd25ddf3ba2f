// Package cli holds the siteanalyzer commands.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seo-optimizer/siteanalyzer/config"
	"github.com/seo-optimizer/siteanalyzer/logging"
)

var version = "dev"

var (
	logLevel  string
	logFormat string

	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "siteanalyzer",
	Short: "Crawl a website and report on its SEO health",
	Long: `siteanalyzer discovers a site's pages from its sitemap or by crawling,
analyzes each page, scores technical, content, link and performance health
and, when an AI service is configured, writes per-page suggestions.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text or json)")
}

// setup loads the configuration and builds the logger for every command.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if logFormat != "" {
		loaded.LogFormat = logFormat
	}

	logger, err := logging.NewWithOutput(cmd.ErrOrStderr(), loaded.LogLevel, loaded.LogFormat)
	if err != nil {
		return err
	}
	cfg, log = loaded, logger
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
