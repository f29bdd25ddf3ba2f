package discovery

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/report"
)

// DefaultCrawlDepth bounds link following from the root page.
const DefaultCrawlDepth = 3

// CrawlOptions control a crawl.
type CrawlOptions struct {
	MaxPages       int
	Delay          time.Duration
	FollowExternal bool
	// OnProgress receives the number of pages found so far.
	OnProgress func(found int)
}

// Crawler discovers pages by following links from rootURL. Besides the
// URLs it returns the basic SEO data seen on each page.
type Crawler interface {
	Crawl(ctx context.Context, rootURL string, opts CrawlOptions) ([]string, map[string]report.CrawlMeta, error)
}

var skipExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".svg": true, ".zip": true, ".gz": true, ".mp4": true, ".mp3": true, ".css": true,
	".js": true, ".xml": true, ".ico": true, ".doc": true, ".docx": true, ".xls": true,
}

// CollyCrawler is the default Crawler. It honours robots.txt.
type CollyCrawler struct {
	client    *http.Client
	userAgent string
	maxDepth  int
	timeout   time.Duration
	log       logrus.FieldLogger
}

// NewCollyCrawler creates a crawler. client is only used to fetch robots.txt.
func NewCollyCrawler(client *http.Client, userAgent string, timeout time.Duration, log logrus.FieldLogger) *CollyCrawler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CollyCrawler{client: client, userAgent: userAgent, maxDepth: DefaultCrawlDepth, timeout: timeout, log: log}
}

// Crawl visits pages breadth first up to opts.MaxPages. Cancellation of
// ctx aborts pending requests and returns an error wrapping
// progress.ErrCancelled.
func (c *CollyCrawler) Crawl(ctx context.Context, rootURL string, opts CrawlOptions) ([]string, map[string]report.CrawlMeta, error) {
	root, err := url.Parse(rootURL)
	if err != nil {
		return nil, nil, err
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}

	robots := c.fetchRobots(ctx, root)
	delay := opts.Delay
	if robots != nil {
		if group := robots.FindGroup(c.userAgent); group != nil && group.CrawlDelay > delay {
			delay = group.CrawlDelay
		}
	}

	collectorOpts := []colly.CollectorOption{
		colly.MaxDepth(c.maxDepth),
		colly.Async(true),
	}
	if c.userAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(c.userAgent))
	}
	if !opts.FollowExternal {
		host := root.Hostname()
		bare := strings.TrimPrefix(host, "www.")
		collectorOpts = append(collectorOpts, colly.AllowedDomains(bare, "www."+bare))
	}
	collector := colly.NewCollector(collectorOpts...)
	collector.SetRequestTimeout(c.timeout)
	if err := collector.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 2, Delay: delay}); err != nil {
		return nil, nil, err
	}

	var (
		mu    sync.Mutex
		found []string
		seen  = make(map[string]bool)
		meta  = make(map[string]report.CrawlMeta)
	)
	full := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(found) >= maxPages
	}

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil || full() {
			r.Abort()
			return
		}
		if robots != nil && !robots.TestAgent(r.URL.Path, c.userAgent) {
			c.log.WithField("url", r.URL.String()).Debug("Blocked by robots.txt")
			r.Abort()
		}
	})

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL := canonicalURL(e.Request.URL)
		mu.Lock()
		if len(found) >= maxPages || seen[pageURL] {
			mu.Unlock()
			return
		}
		seen[pageURL] = true
		found = append(found, pageURL)
		meta[pageURL] = report.CrawlMeta{
			Title:       strings.TrimSpace(e.ChildText("title")),
			Description: strings.TrimSpace(e.ChildAttr("meta[name='description']", "content")),
			H1:          strings.TrimSpace(e.DOM.Find("h1").First().Text()),
			StatusCode:  e.Response.StatusCode,
		}
		n := len(found)
		mu.Unlock()
		if opts.OnProgress != nil {
			opts.OnProgress(n)
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || ctx.Err() != nil || full() {
			return
		}
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if skipExtensions[strings.ToLower(path.Ext(u.Path))] {
			return
		}
		u.Fragment = ""
		_ = e.Request.Visit(u.String())
	})

	collector.OnError(func(r *colly.Response, err error) {
		c.log.WithFields(logrus.Fields{"url": r.Request.URL.String(), "status": r.StatusCode}).
			WithError(err).Debug("Crawl request failed")
	})

	if err := collector.Visit(root.String()); err != nil {
		return nil, nil, err
	}
	collector.Wait()

	if err := progress.Check(ctx); err != nil {
		return nil, nil, err
	}
	return found, meta, nil
}

func (c *CollyCrawler) fetchRobots(ctx context.Context, root *url.URL) *robotstxt.RobotsData {
	robotsURL := root.Scheme + "://" + root.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		c.log.WithField("url", robotsURL).WithError(err).Debug("Ignoring unparsable robots.txt")
		return nil
	}
	return data
}

func canonicalURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	return c.String()
}
