package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-optimizer/siteanalyzer/config"
	"github.com/seo-optimizer/siteanalyzer/report"
)

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "siteanalyzer version test-version-1.0.0")
}

func TestAnalyzeCmd_Flags(t *testing.T) {
	require.NoError(t, analyzeCmd.ParseFlags([]string{
		"--max-pages", "7", "--no-sitemap", "--ai", "--delay", "500ms", "--info", "Bakery in Lyon",
	}))
	defer func() {
		analyzeMaxPages, analyzeNoSitemap, analyzeAI, analyzeDelay, analyzeInfo = 0, false, false, 0, ""
	}()

	opts := analyzeOptions()
	assert.Equal(t, 7, opts.MaxPages)
	assert.False(t, opts.UseSitemap)
	assert.True(t, opts.UseAI)
	assert.Equal(t, 500*time.Millisecond, opts.CrawlDelay)
	assert.Equal(t, "Bakery in Lyon", opts.AdditionalInfo)
}

func TestAnalyzeCmd_RequiresDomain(t *testing.T) {
	assert.Error(t, analyzeCmd.Args(analyzeCmd, nil))
	assert.NoError(t, analyzeCmd.Args(analyzeCmd, []string{"example.com"}))
}

func TestFormatUpdate(t *testing.T) {
	assert.Equal(t, "[ 23%] analysis https://a.test/x (1/3)", formatUpdate(report.ProgressUpdate{
		Status: report.StatusInProgress, Stage: "analysis", CurrentPageURL: "https://a.test/x",
		PagesAnalyzed: 1, PagesFound: 3, Percentage: 23,
	}))
	assert.Equal(t, "[ 15%] discovery: 3 pages found", formatUpdate(report.ProgressUpdate{
		Status: report.StatusInProgress, Stage: "discovery", PagesFound: 3, Percentage: 15,
	}))
	assert.Equal(t, "[100%] done: 3 pages analyzed", formatUpdate(report.ProgressUpdate{
		Status: report.StatusCompleted, PagesAnalyzed: 3, Percentage: 100,
	}))
	assert.Equal(t, "[ 40%] error: boom", formatUpdate(report.ProgressUpdate{
		Status: report.StatusError, Error: "boom", Percentage: 40,
	}))
}

func TestNewApp(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.DatabasePath = filepath.Join(cfg.DataDir, "test.db")
	cfg.DesignServiceURL = "http://127.0.0.1:1/score"

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	a, err := newApp(cfg, log)
	require.NoError(t, err)
	assert.NotNil(t, a.orch)
	assert.False(t, a.tracker.Active("example.com"))
	require.NoError(t, a.Close())
}
