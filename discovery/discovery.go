// Package discovery resolves the ordered list of pages to analyze for a
// domain, from its sitemap or by crawling.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/report"
)

// ErrNoPages is returned when the domain cannot be turned into a root URL.
var ErrNoPages = errors.New("no pages to analyze")

// Discovery sources.
const (
	SourceSitemap        = "sitemap"
	SourceSitemapPattern = "sitemap-pattern"
	SourceCrawl          = "crawl"
	SourceHomepage       = "homepage"
)

// SitemapPatterns are tried in order when the primary sitemap is missing
// or empty.
var SitemapPatterns = []string{
	"sitemap_index.xml",
	"sitemap-index.xml",
	"wp-sitemap.xml",
	"sitemap1.xml",
	"page-sitemap.xml",
	"post-sitemap.xml",
	"sitemap/sitemap.xml",
}

var rootPaths = map[string]bool{
	"":            true,
	"/index.html": true,
	"/index.htm":  true,
	"/index.php":  true,
	"/home":       true,
}

// Options control one discovery.
type Options struct {
	UseSitemap     bool
	MaxPages       int
	Delay          time.Duration
	FollowExternal bool
	OnProgress     func(found int)
}

// Result is the outcome of a discovery.
type Result struct {
	URLs   []string
	Source string
	// SEOData holds the metadata harvested while crawling, keyed by URL.
	SEOData map[string]report.CrawlMeta
}

// Discoverer combines a sitemap parser with a crawler.
type Discoverer struct {
	sitemaps SitemapParser
	crawler  Crawler
	log      logrus.FieldLogger
}

// New creates a Discoverer.
func New(sitemaps SitemapParser, crawler Crawler, log logrus.FieldLogger) *Discoverer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Discoverer{sitemaps: sitemaps, crawler: crawler, log: log}
}

// RootURL turns a bare domain or URL into the site's root URL. Bare
// domains get https.
func RootURL(domain string) (*url.URL, error) {
	d := strings.TrimSpace(domain)
	if d == "" {
		return nil, ErrNoPages
	}
	if !strings.Contains(d, "://") {
		d = "https://" + d
	}
	u, err := url.Parse(d)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid domain %q", ErrNoPages, domain)
	}
	return &url.URL{Scheme: strings.ToLower(u.Scheme), Host: strings.ToLower(u.Host), Path: "/"}, nil
}

// Discover returns the ordered, de-duplicated page list for domain with the
// root URL first. Sitemap failures fall back to the sitemap patterns and
// then to crawling. The list is never empty unless ctx is cancelled.
func (d *Discoverer) Discover(ctx context.Context, domain string, opts Options) (*Result, error) {
	root, err := RootURL(domain)
	if err != nil {
		return nil, err
	}
	log := d.log.WithField("domain", root.Host)
	result := &Result{}

	var urls []string
	if opts.UseSitemap && d.sitemaps != nil {
		urls, result.Source, err = d.fromSitemaps(ctx, root, opts.MaxPages, log)
		if err != nil {
			return nil, err
		}
	}

	if len(urls) == 0 && d.crawler != nil {
		if err := progress.Check(ctx); err != nil {
			return nil, err
		}
		crawled, meta, err := d.crawler.Crawl(ctx, root.String(), CrawlOptions{
			MaxPages:       opts.MaxPages,
			Delay:          opts.Delay,
			FollowExternal: opts.FollowExternal,
			OnProgress:     opts.OnProgress,
		})
		switch {
		case err != nil && errors.Is(err, progress.ErrCancelled):
			return nil, err
		case err != nil:
			if cerr := progress.Check(ctx); cerr != nil {
				return nil, cerr
			}
			log.WithError(err).Warn("Crawl failed, analyzing homepage only")
		default:
			urls = crawled
			result.Source = SourceCrawl
			result.SEOData = meta
		}
	}

	result.URLs = Normalize(root, urls, opts.MaxPages, !opts.FollowExternal)
	if len(urls) == 0 {
		result.Source = SourceHomepage
	}
	log.WithFields(logrus.Fields{"source": result.Source, "pages": len(result.URLs)}).Info("Discovery finished")
	return result, nil
}

func (d *Discoverer) fromSitemaps(ctx context.Context, root *url.URL, maxPages int, log logrus.FieldLogger) ([]string, string, error) {
	primary := root.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()
	urls, err := d.sitemaps.ParseSitemap(ctx, primary, maxPages)
	if err != nil && errors.Is(err, progress.ErrCancelled) {
		return nil, "", err
	}
	if err == nil && len(urls) > 0 {
		return urls, SourceSitemap, nil
	}
	if err != nil {
		log.WithError(err).Debug("Primary sitemap failed, trying common patterns")
	}

	for _, pattern := range SitemapPatterns {
		if err := progress.Check(ctx); err != nil {
			return nil, "", err
		}
		candidate := root.ResolveReference(&url.URL{Path: "/" + pattern}).String()
		urls, err := d.sitemaps.ParseSitemap(ctx, candidate, maxPages)
		if err != nil {
			if errors.Is(err, progress.ErrCancelled) {
				return nil, "", err
			}
			continue
		}
		if len(urls) > 0 {
			log.WithField("sitemap", candidate).Debug("Found sitemap by pattern")
			return urls, SourceSitemapPattern, nil
		}
	}
	return nil, "", nil
}

// Normalize de-duplicates urls, removes every variant of the root page and
// puts the canonical root URL first, then truncates to maxPages. With
// sameSite set, URLs on other hosts are dropped.
func Normalize(root *url.URL, urls []string, maxPages int, sameSite bool) []string {
	rootURL := root.String()
	out := []string{rootURL}
	seen := map[string]bool{dedupKey(root): true}

	for _, raw := range urls {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		u.Fragment = ""
		if sameSite && !sameHost(root.Host, u.Host) {
			continue
		}
		if sameHost(root.Host, u.Host) && isRootPath(u) {
			continue
		}
		key := dedupKey(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u.String())
	}

	if maxPages > 0 && len(out) > maxPages {
		out = out[:maxPages]
	}
	return out
}

func isRootPath(u *url.URL) bool {
	if u.RawQuery != "" {
		return false
	}
	p := strings.TrimSuffix(strings.ToLower(u.Path), "/")
	return rootPaths[p]
}

func sameHost(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "www.") == strings.TrimPrefix(strings.ToLower(b), "www.")
}

func dedupKey(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	p := strings.TrimSuffix(u.Path, "/")
	key := host + p
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}
