package discovery

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/report"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func urlSetXML(base string, paths ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, p := range paths {
		fmt.Fprintf(&b, "<url><loc>%s%s</loc></url>", base, p)
	}
	b.WriteString(`</urlset>`)
	return b.String()
}

func indexXML(base string, paths ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, p := range paths {
		fmt.Fprintf(&b, "<sitemap><loc>%s%s</loc></sitemap>", base, p)
	}
	b.WriteString(`</sitemapindex>`)
	return b.String()
}

func page(title string, links ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><head><title>%s</title><meta name="description" content="About %s"></head><body><h1>%s</h1>`, title, title, title)
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, l, l)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// newServer serves routes; bodies may contain {{base}} which is replaced
// with the server URL.
func newServer(t *testing.T, routes map[string]string) *httptest.Server {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		body = strings.ReplaceAll(body, "{{base}}", srv.URL)
		switch {
		case strings.HasSuffix(r.URL.Path, ".gz"):
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			zw.Write([]byte(body))
			zw.Close()
			w.Write(buf.Bytes())
		case strings.HasSuffix(r.URL.Path, ".xml"):
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, body)
		case r.URL.Path == "/robots.txt":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, body)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newDiscoverer() *Discoverer {
	log := quietLogger()
	return New(
		NewHTTPSitemapParser(nil, "test-agent", log),
		NewCollyCrawler(nil, "test-agent", 0, log),
		log,
	)
}

func TestDiscoverSitemapTruncatesWithHomepageFirst(t *testing.T) {
	paths := []string{"/a", "/b", "/c", "/", "/d", "/e", "/f", "/g", "/h", "/i"}
	srv := newServer(t, map[string]string{
		"/sitemap.xml": urlSetXML("{{base}}", paths...),
	})

	res, err := newDiscoverer().Discover(context.Background(), srv.URL, Options{UseSitemap: true, MaxPages: 3})
	require.NoError(t, err)
	assert.Equal(t, SourceSitemap, res.Source)
	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/a", srv.URL + "/b"}, res.URLs)
}

func TestDiscoverFollowsSitemapIndexAndGzip(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/sitemap.xml":       indexXML("{{base}}", "/pages.xml", "/posts.xml.gz", "/broken.xml"),
		"/pages.xml":         urlSetXML("{{base}}", "/about", "/contact"),
		"/posts.xml.gz":      urlSetXML("{{base}}", "/blog/one", "/about"),
		"/broken.xml":        "<urlset><url><loc>",
		"/sitemap_index.xml": urlSetXML("{{base}}", "/never"),
	})

	res, err := newDiscoverer().Discover(context.Background(), srv.URL, Options{UseSitemap: true, MaxPages: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/", srv.URL + "/about", srv.URL + "/contact", srv.URL + "/blog/one",
	}, res.URLs)
}

func TestDiscoverFallsBackToSitemapPatterns(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/wp-sitemap.xml":   urlSetXML("{{base}}", "/services", "/team"),
		"/post-sitemap.xml": urlSetXML("{{base}}", "/not-reached"),
	})

	res, err := newDiscoverer().Discover(context.Background(), srv.URL, Options{UseSitemap: true, MaxPages: 10})
	require.NoError(t, err)
	assert.Equal(t, SourceSitemapPattern, res.Source)
	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/services", srv.URL + "/team"}, res.URLs)
}

func TestDiscoverCrawlsWhenNoSitemap(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/robots.txt":     "User-agent: *\nDisallow: /private\n",
		"/":               page("Home", "/about", "/about#team", "/private/secret", "/files/report.pdf", "https://elsewhere.example/"),
		"/about":          page("About", "/", "/contact"),
		"/contact":        page("Contact", "/about"),
		"/private/secret": page("Secret"),
	})

	var progressCalls atomic.Int32
	res, err := newDiscoverer().Discover(context.Background(), srv.URL, Options{
		UseSitemap: true,
		MaxPages:   10,
		OnProgress: func(int) { progressCalls.Add(1) },
	})
	require.NoError(t, err)
	assert.Equal(t, SourceCrawl, res.Source)
	require.NotEmpty(t, res.URLs)
	assert.Equal(t, srv.URL+"/", res.URLs[0])
	assert.ElementsMatch(t, []string{srv.URL + "/", srv.URL + "/about", srv.URL + "/contact"}, res.URLs)
	assert.EqualValues(t, 3, progressCalls.Load())

	meta, ok := res.SEOData[srv.URL+"/about"]
	require.True(t, ok)
	assert.Equal(t, "About", meta.Title)
	assert.Equal(t, "About About", meta.Description)
	assert.Equal(t, "About", meta.H1)
}

func TestDiscoverCancelled(t *testing.T) {
	srv := newServer(t, map[string]string{"/": page("Home")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDiscoverer().Discover(ctx, srv.URL, Options{UseSitemap: true, MaxPages: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, progress.ErrCancelled))
}

type failingCrawler struct{ err error }

func (f failingCrawler) Crawl(context.Context, string, CrawlOptions) ([]string, map[string]report.CrawlMeta, error) {
	return nil, nil, f.err
}

func TestDiscoverCrawlFailureKeepsHomepage(t *testing.T) {
	d := New(nil, failingCrawler{err: errors.New("connection refused")}, quietLogger())
	res, err := d.Discover(context.Background(), "Example.com", Options{MaxPages: 5})
	require.NoError(t, err)
	assert.Equal(t, SourceHomepage, res.Source)
	assert.Equal(t, []string{"https://example.com/"}, res.URLs)
}

func TestDiscoverCrawlCancellationPropagates(t *testing.T) {
	d := New(nil, failingCrawler{err: fmt.Errorf("crawl: %w", progress.ErrCancelled)}, quietLogger())
	_, err := d.Discover(context.Background(), "example.com", Options{MaxPages: 5})
	assert.ErrorIs(t, err, progress.ErrCancelled)
}

func TestDiscoverInvalidDomain(t *testing.T) {
	_, err := newDiscoverer().Discover(context.Background(), "  ", Options{})
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestNormalize(t *testing.T) {
	root, err := url.Parse("https://example.com/")
	require.NoError(t, err)

	got := Normalize(root, []string{
		"https://example.com/blog",
		"https://example.com/INDEX.HTML",
		"https://www.example.com/",
		"https://example.com/blog/",
		"https://example.com/Home/",
		"https://example.com/?page=2",
		"https://other.org/",
		"https://example.com/pricing#plans",
		"mailto:hi@example.com",
		"https://example.com/index.php",
	}, 0, true)

	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/blog",
		"https://example.com/?page=2",
		"https://example.com/pricing",
	}, got)
}

func TestNormalizeAlwaysHasHomepageAndNoDuplicates(t *testing.T) {
	root, _ := url.Parse("https://example.com/")
	inputs := [][]string{
		nil,
		{"https://example.com/", "https://example.com/"},
		{"https://example.com/a", "https://example.com/a/", "https://example.com/a"},
	}
	for _, in := range inputs {
		got := Normalize(root, in, 2, true)
		require.NotEmpty(t, got)
		assert.Equal(t, "https://example.com/", got[0])
		seen := map[string]bool{}
		for _, u := range got {
			assert.False(t, seen[u], "duplicate %s", u)
			seen[u] = true
		}
		assert.LessOrEqual(t, len(got), 2)
	}
}

func TestRootURL(t *testing.T) {
	u, err := RootURL("Example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", u.String())

	u, err = RootURL("http://localhost:8080/some/page")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/", u.String())
}
