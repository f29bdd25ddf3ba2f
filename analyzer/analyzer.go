// Package analyzer fetches pages and turns them into PageAnalysisResults.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"github.com/seo-optimizer/siteanalyzer/extract"
	"github.com/seo-optimizer/siteanalyzer/report"
)

// ErrNoIndex is returned for pages that forbid indexing. Callers drop them
// silently.
var ErrNoIndex = errors.New("page is marked noindex")

const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "SEOAnalyzer/1.0 (+https://github.com/seo-optimizer/siteanalyzer)"
	maxBodyBytes     = 10 << 20
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Config configures an Analyzer.
type Config struct {
	Timeout    time.Duration
	UserAgent  string
	Heuristics extract.Heuristics
	AltText    AltTextGenerator
	Logger     logrus.FieldLogger
	// Client replaces the default pooled client, mostly for tests.
	Client *http.Client
}

// Analyzer performs SEO analysis of single pages. It is safe for
// concurrent use.
type Analyzer struct {
	client     *http.Client
	userAgent  string
	heuristics extract.Heuristics
	altText    AltTextGenerator
	log        logrus.FieldLogger
}

// New creates a new Analyzer.
func New(cfg Config) *Analyzer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	client := cfg.Client
	if client == nil {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		client = &http.Client{Timeout: cfg.Timeout, Transport: transport}
	}
	return &Analyzer{
		client:     client,
		userAgent:  cfg.UserAgent,
		heuristics: cfg.Heuristics.Normalize(),
		altText:    cfg.AltText,
		log:        cfg.Logger,
	}
}

// Heuristics returns the extraction table in use.
func (a *Analyzer) Heuristics() extract.Heuristics {
	return a.heuristics
}

type fetched struct {
	doc        *goquery.Document
	statusCode int
	size       int
	loadTime   time.Duration
}

func (a *Analyzer) fetch(ctx context.Context, pageURL string) (*fetched, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if extract.IsNoIndex(resp.Header.Get("X-Robots-Tag")) {
		return nil, ErrNoIndex
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if _, err := io.Copy(buf, io.LimitReader(resp.Body, maxBodyBytes)); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	size := buf.Len()
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.Atoi(cl); err == nil && n > size {
			size = n
		}
	}
	loadTime := time.Since(start)

	body, err := charset.NewReader(bytes.NewReader(buf.Bytes()), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decoding charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	return &fetched{doc: doc, statusCode: resp.StatusCode, size: size, loadTime: loadTime}, nil
}

// AnalyzePage fetches pageURL and analyzes it. It returns ErrNoIndex when
// the page forbids indexing.
func (a *Analyzer) AnalyzePage(ctx context.Context, pageURL string, opts Options) (*report.PageAnalysisResult, error) {
	f, err := a.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	page, err := a.AnalyzeDocument(f.doc, pageURL)
	if err != nil {
		return nil, err
	}
	page.StatusCode = f.statusCode
	page.PageSize = f.size
	page.LoadTimeMs = f.loadTime.Milliseconds()
	// Size and timing are only known after the fetch.
	page.Issues = append(page.Issues, sizeIssues(page)...)

	if opts.altTextEnabled() && a.altText != nil {
		a.suggestAltText(ctx, page)
	}
	return page, nil
}

// AnalyzeDocument runs extraction, metrics and issue detection over an
// already parsed document.
func (a *Analyzer) AnalyzeDocument(doc *goquery.Document, pageURL string) (*report.PageAnalysisResult, error) {
	ex := extract.Extract(doc, pageURL, a.heuristics)
	if extract.IsNoIndex(ex.Meta.Robots) {
		return nil, ErrNoIndex
	}

	page := &report.PageAnalysisResult{
		URL:             pageURL,
		Title:           ex.Meta.Title,
		MetaDescription: ex.Meta.Description,
		Canonical:       ex.Meta.Canonical,
		Robots:          ex.Meta.Robots,
		Viewport:        ex.Meta.Viewport,
		Language:        ex.Meta.Language,
		SchemaTypes:     ex.Meta.SchemaTypes,
		Headings:        ex.Headings,
		Images:          ex.Images,
		InternalLinks:   ex.Internal,
		ExternalLinks:   ex.External,
		CTAs:            ex.CTAs,
		Cards:           ex.Cards,
		Paragraphs:      ex.Text.Paragraphs,
		Sentences:       ex.Text.Sentences,
		FullText:        ex.Text.FullText,
	}
	page.WordCount = WordCount(page.FullText)
	page.ReadabilityScore = Readability(page.FullText, page.Sentences)
	page.KeywordDensity = KeywordDensity(page.FullText)
	page.SemanticPhrases = SemanticPhrases(page.Sentences)
	page.ContentDepth = ContentDepth(page.WordCount, page.Headings)
	page.Issues = DetectIssues(page, ex.Meta.UnknownSchemas, ex.Meta.InvalidJSONLD)

	return page, nil
}

func sizeIssues(p *report.PageAnalysisResult) []report.SeoIssue {
	var out []report.SeoIssue
	for _, is := range DetectIssues(p, nil, 0) {
		if is.Title == IssueLargePage || is.Title == IssueSlowResponse {
			out = append(out, is)
		}
	}
	return out
}

// FallbackPage builds a partial result from metadata harvested during
// crawling, used when the full fetch of a page failed.
func FallbackPage(pageURL string, meta report.CrawlMeta) *report.PageAnalysisResult {
	page := &report.PageAnalysisResult{
		URL:             pageURL,
		Title:           strings.TrimSpace(meta.Title),
		MetaDescription: strings.TrimSpace(meta.Description),
		StatusCode:      meta.StatusCode,
		Partial:         true,
	}
	if h1 := strings.TrimSpace(meta.H1); h1 != "" {
		page.Headings = []extract.Heading{{Level: 1, Text: h1}}
	}
	page.Issues = DetectIssues(page, nil, 0)
	return page
}
