package cli

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/seo-optimizer/siteanalyzer/api"
	"github.com/seo-optimizer/siteanalyzer/logging"
	"github.com/seo-optimizer/siteanalyzer/middleware"
)

// statsRetainMonths is how much run history the statistics file keeps.
const statsRetainMonths = 12

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if servePort != "" {
		cfg.Port = servePort
	}
	gin.SetMode(cfg.GinMode)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Warn("Shutdown was not clean")
		}
	}()
	a.runStats.Cleanup(statsRetainMonths)

	visitors := logging.NewStatistics(cfg.DataDir, cfg.DevMode(), log)
	defer func() {
		if err := visitors.Save(); err != nil {
			log.WithError(err).Warn("Could not save statistics")
		}
	}()

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	stop := make(chan struct{})
	defer close(stop)
	limiter.StartCleanup(time.Minute, stop)

	server := api.NewServer(api.Config{
		Runner:      a.orch,
		Tracker:     a.tracker,
		Analyses:    a.store,
		Visitors:    visitors,
		RunStats:    a.runStats,
		Limiter:     limiter,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log,
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Infof("Server starting on http://localhost:%s", cfg.Port)
	if err := server.ListenAndServe(ctx, ":"+cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
