package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/seo-optimizer/siteanalyzer/orchestrator"
	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/report"
)

var (
	analyzeMaxPages       int
	analyzeNoSitemap      bool
	analyzeAI             bool
	analyzeUser           string
	analyzeSkipAltText    bool
	analyzeFollowExternal bool
	analyzeDelay          time.Duration
	analyzeInfo           string
	analyzeForceRefresh   bool
	analyzeQuiet          bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <domain>",
	Short: "Analyze a site and print the result as JSON",
	Long: `Runs one analysis from the terminal. Progress lines go to stderr and the
result is printed to stdout as JSON. Press Ctrl+C to cancel the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVarP(&analyzeMaxPages, "max-pages", "n", 0, "maximum number of pages (default from MAX_PAGES_DEFAULT)")
	analyzeCmd.Flags().BoolVar(&analyzeNoSitemap, "no-sitemap", false, "skip the sitemap and crawl the site")
	analyzeCmd.Flags().BoolVar(&analyzeAI, "ai", false, "generate AI business context, suggestions and alt text")
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "user id whose quota and credits apply")
	analyzeCmd.Flags().BoolVar(&analyzeSkipAltText, "skip-alt-text", false, "do not generate alt text for images")
	analyzeCmd.Flags().BoolVar(&analyzeFollowExternal, "follow-external", false, "follow links to other hosts while crawling")
	analyzeCmd.Flags().DurationVar(&analyzeDelay, "delay", 0, "delay between page batches (default from CRAWL_DELAY)")
	analyzeCmd.Flags().StringVar(&analyzeInfo, "info", "", "additional information about the business")
	analyzeCmd.Flags().BoolVar(&analyzeForceRefresh, "force-refresh", false, "ignore cached suggestions")
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false, "do not print progress")
	rootCmd.AddCommand(analyzeCmd)
}

func analyzeOptions() orchestrator.Options {
	return orchestrator.Options{
		UseSitemap:     !analyzeNoSitemap,
		UseAI:          analyzeAI,
		SkipAltText:    analyzeSkipAltText,
		MaxPages:       analyzeMaxPages,
		CrawlDelay:     analyzeDelay,
		FollowExternal: analyzeFollowExternal,
		AdditionalInfo: analyzeInfo,
		ForceRefresh:   analyzeForceRefresh,
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	domain := args[0]

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	if !analyzeQuiet {
		sub := a.tracker.Subscribe(domain, progress.DefaultBuffer)
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			printProgress(cmd.ErrOrStderr(), sub.C)
		}()
		defer func() {
			sub.Unsubscribe()
			<-printed
		}()
	}

	result, err := a.orch.Run(ctx, domain, analyzeOptions(), analyzeUser)
	if err != nil {
		return fmt.Errorf("analysis of %s failed: %w", domain, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// printProgress writes one line per update until updates is closed.
func printProgress(w io.Writer, updates <-chan report.ProgressUpdate) {
	for u := range updates {
		fmt.Fprintln(w, formatUpdate(u))
	}
}

func formatUpdate(u report.ProgressUpdate) string {
	switch {
	case u.Status == report.StatusError:
		return fmt.Sprintf("[%3d%%] error: %s", u.Percentage, u.Error)
	case u.Status == report.StatusCancelled:
		return fmt.Sprintf("[%3d%%] cancelled", u.Percentage)
	case u.Status == report.StatusCompleted:
		return fmt.Sprintf("[%3d%%] done: %d pages analyzed", u.Percentage, u.PagesAnalyzed)
	case u.CurrentPageURL != "":
		return fmt.Sprintf("[%3d%%] %s %s (%d/%d)", u.Percentage, u.Stage, u.CurrentPageURL, u.PagesAnalyzed, u.PagesFound)
	case u.Message != "":
		return fmt.Sprintf("[%3d%%] %s: %s", u.Percentage, u.Stage, u.Message)
	default:
		return fmt.Sprintf("[%3d%%] %s: %d pages found", u.Percentage, u.Stage, u.PagesFound)
	}
}
