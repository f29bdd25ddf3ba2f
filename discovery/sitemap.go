package discovery

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seo-optimizer/siteanalyzer/progress"
)

const (
	maxSitemapFetches = 50
	maxSitemapBytes   = 20 << 20
	defaultURLCap     = 5000
)

// SitemapParser returns the page URLs listed by a sitemap. It fails when
// the sitemap cannot be fetched or parsed.
type SitemapParser interface {
	ParseSitemap(ctx context.Context, sitemapURL string, maxPages int) ([]string, error)
}

type sitemapIndex struct {
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Location string `xml:"loc"`
}

type urlSet struct {
	URLs []urlEntry `xml:"url"`
}

type urlEntry struct {
	Location string `xml:"loc"`
	LastMod  string `xml:"lastmod"`
}

// HTTPSitemapParser fetches sitemaps over HTTP, following sitemap indexes
// and decompressing gzip payloads.
type HTTPSitemapParser struct {
	client    *http.Client
	userAgent string
	log       logrus.FieldLogger
}

// NewHTTPSitemapParser creates a parser. A nil client gets a 15s timeout.
func NewHTTPSitemapParser(client *http.Client, userAgent string, log logrus.FieldLogger) *HTTPSitemapParser {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPSitemapParser{client: client, userAgent: userAgent, log: log}
}

// ParseSitemap walks sitemapURL breadth first. Only a failure of the top
// level sitemap is returned; broken child sitemaps are logged and skipped.
// maxPages <= 0 means no cap beyond the internal safety limit.
func (p *HTTPSitemapParser) ParseSitemap(ctx context.Context, sitemapURL string, maxPages int) ([]string, error) {
	if sitemapURL == "" {
		return nil, errors.New("sitemap url is required")
	}
	limit := defaultURLCap
	if maxPages > 0 {
		// Leave room for root variants removed during normalisation.
		limit = maxPages + 1
	}

	queue := []string{sitemapURL}
	visited := make(map[string]bool)
	var pages []string

	for len(queue) > 0 && len(pages) < limit {
		if err := progress.Check(ctx); err != nil {
			return nil, err
		}
		if len(visited) >= maxSitemapFetches {
			p.log.WithField("sitemap", sitemapURL).Warn("Sitemap fetch limit reached")
			break
		}
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		top := current == sitemapURL

		data, err := p.fetch(ctx, current)
		if err != nil {
			if top {
				return nil, err
			}
			p.log.WithField("url", current).WithError(err).Warn("Failed to fetch sub-sitemap, continuing")
			continue
		}

		children, locs, err := parseSitemapXML(data)
		if err != nil {
			if top {
				return nil, fmt.Errorf("parse sitemap %s: %w", current, err)
			}
			p.log.WithField("url", current).WithError(err).Warn("Failed to parse sub-sitemap, continuing")
			continue
		}
		queue = append(queue, children...)
		for _, loc := range locs {
			if len(pages) >= limit {
				break
			}
			pages = append(pages, loc)
		}
	}
	return pages, nil
}

func (p *HTTPSitemapParser) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept", "application/xml,text/xml,*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch sitemap %s: status %d", sitemapURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("read sitemap %s: %w", sitemapURL, err)
	}
	if len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gunzip sitemap %s: %w", sitemapURL, err)
		}
		defer zr.Close()
		data, err = io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
		if err != nil {
			return nil, fmt.Errorf("gunzip sitemap %s: %w", sitemapURL, err)
		}
	}
	return data, nil
}

// parseSitemapXML returns child sitemap locations for an index, or page
// locations for a urlset.
func parseSitemapXML(data []byte) ([]string, []string, error) {
	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 {
		var links []string
		for _, sm := range index.Sitemaps {
			if loc := strings.TrimSpace(sm.Location); loc != "" {
				links = append(links, loc)
			}
		}
		return links, nil, nil
	}

	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, nil, err
	}
	var pages []string
	for _, entry := range set.URLs {
		if loc := strings.TrimSpace(entry.Location); loc != "" {
			pages = append(pages, loc)
		}
	}
	return nil, pages, nil
}
