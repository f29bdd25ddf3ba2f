// Package config assembles the service configuration from .env files, the
// environment and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/seo-optimizer/siteanalyzer/extract"
)

// Config is the complete runtime configuration.
type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	DataDir      string
	DatabasePath string

	AIBaseURL string
	AIAPIKey  string
	AIModel   string
	AITimeout time.Duration

	FetchTimeout    time.Duration
	UserAgent       string
	CrawlDelay      time.Duration
	MaxPagesDefault int

	TrialPageLimit       int
	TrialSuggestionLimit int
	SuggestionCacheTTL   time.Duration

	RateLimit float64
	RateBurst int

	CORSOrigins      []string
	DesignServiceURL string

	Heuristics extract.Heuristics
}

// File is the layout of the YAML file named by CONFIG_FILE.
type File struct {
	Crawl struct {
		UserAgent       string `yaml:"user_agent"`
		Delay           string `yaml:"delay"`
		FetchTimeout    string `yaml:"fetch_timeout"`
		MaxPagesDefault int    `yaml:"max_pages_default"`
	} `yaml:"crawl"`
	Heuristics extract.Heuristics `yaml:"heuristics"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:                 "8082",
		GinMode:              "release",
		LogLevel:             "info",
		LogFormat:            "text",
		DataDir:              "data",
		AITimeout:            30 * time.Second,
		FetchTimeout:         15 * time.Second,
		CrawlDelay:           time.Second,
		MaxPagesDefault:      10,
		TrialPageLimit:       3,
		TrialSuggestionLimit: 3,
		SuggestionCacheTTL:   time.Hour,
		RateLimit:            2,
		RateBurst:            5,
		Heuristics:           extract.DefaultHeuristics(),
	}
}

// loadEnv tries .env.development first (for local development), then .env.
// Missing files are not an error.
func loadEnv() {
	if err := godotenv.Load(".env.development"); err != nil {
		_ = godotenv.Load()
	}
}

// Load builds the configuration: defaults, then the YAML file, then
// environment variables, each overriding the previous layer.
func Load() (*Config, error) {
	loadEnv()
	return FromEnv(os.LookupEnv)
}

// FromEnv is Load without reading .env files. lookup is usually
// os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	env := envReader{lookup: lookup}

	if path := env.str("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = env.str("PORT", cfg.Port)
	cfg.GinMode = env.str("GIN_MODE", cfg.GinMode)
	cfg.LogLevel = env.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = env.str("LOG_FORMAT", cfg.LogFormat)
	cfg.DataDir = env.str("DATA_DIR", cfg.DataDir)
	cfg.DatabasePath = env.str("DATABASE_PATH", filepath.Join(cfg.DataDir, "siteanalyzer.db"))

	cfg.AIBaseURL = env.str("AI_BASE_URL", cfg.AIBaseURL)
	cfg.AIAPIKey = env.str("AI_API_KEY", cfg.AIAPIKey)
	cfg.AIModel = env.str("AI_MODEL", cfg.AIModel)
	cfg.AITimeout = env.duration("AI_TIMEOUT", cfg.AITimeout)

	cfg.FetchTimeout = env.duration("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.UserAgent = env.str("USER_AGENT", cfg.UserAgent)
	cfg.CrawlDelay = env.duration("CRAWL_DELAY", cfg.CrawlDelay)
	cfg.MaxPagesDefault = env.integer("MAX_PAGES_DEFAULT", cfg.MaxPagesDefault)

	cfg.TrialPageLimit = env.integer("TRIAL_PAGE_LIMIT", cfg.TrialPageLimit)
	cfg.TrialSuggestionLimit = env.integer("TRIAL_SUGGESTION_LIMIT", cfg.TrialSuggestionLimit)
	cfg.SuggestionCacheTTL = env.duration("SUGGESTION_CACHE_TTL", cfg.SuggestionCacheTTL)

	cfg.RateLimit = env.float("RATE_LIMIT", cfg.RateLimit)
	cfg.RateBurst = env.integer("RATE_BURST", cfg.RateBurst)

	if origins := env.str("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.DesignServiceURL = env.str("DESIGN_SERVICE_URL", cfg.DesignServiceURL)

	if env.err != nil {
		return nil, env.err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if f.Crawl.UserAgent != "" {
		c.UserAgent = f.Crawl.UserAgent
	}
	if f.Crawl.MaxPagesDefault > 0 {
		c.MaxPagesDefault = f.Crawl.MaxPagesDefault
	}
	for _, d := range []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"crawl.delay", f.Crawl.Delay, &c.CrawlDelay},
		{"crawl.fetch_timeout", f.Crawl.FetchTimeout, &c.FetchTimeout},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("config file %s: invalid %s %q: %w", path, d.key, d.value, err)
		}
		*d.dst = parsed
	}
	c.Heuristics = f.Heuristics.Normalize()
	return nil
}

// Validate checks values that cannot be used as given.
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return fmt.Errorf("PORT must not be empty")
	case c.MaxPagesDefault < 1:
		return fmt.Errorf("MAX_PAGES_DEFAULT must be at least 1, got %d", c.MaxPagesDefault)
	case c.TrialPageLimit < 0:
		return fmt.Errorf("TRIAL_PAGE_LIMIT must not be negative, got %d", c.TrialPageLimit)
	case c.TrialSuggestionLimit < 0:
		return fmt.Errorf("TRIAL_SUGGESTION_LIMIT must not be negative, got %d", c.TrialSuggestionLimit)
	case c.RateLimit <= 0:
		return fmt.Errorf("RATE_LIMIT must be positive, got %g", c.RateLimit)
	case c.RateBurst < 1:
		return fmt.Errorf("RATE_BURST must be at least 1, got %d", c.RateBurst)
	}
	return nil
}

// DevMode reports whether gin runs in debug mode.
func (c *Config) DevMode() bool {
	return c.GinMode == "debug"
}

// envReader remembers the first malformed variable.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s %q: must be an integer", key, raw))
		return def
	}
	return v
}

func (e *envReader) float(key string, def float64) float64 {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s %q: must be a number", key, raw))
		return def
	}
	return v
}

// duration accepts Go durations ("1500ms") or plain seconds ("30").
func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s %q: must be a duration", key, raw))
		return def
	}
	return v
}

func (e *envReader) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
