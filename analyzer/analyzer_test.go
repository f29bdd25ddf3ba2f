package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-optimizer/siteanalyzer/extract"
	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/quota"
	"github.com/seo-optimizer/siteanalyzer/report"
)

const goodPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Handmade Oak Furniture Workshop in Portland</title>
  <meta name="description" content="Custom oak tables, chairs and shelving built by hand in our Portland workshop. Visit the showroom or order online with free local delivery today.">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="canonical" href="/">
  <script type="application/ld+json">{"@context":"https://schema.org","@type":"LocalBusiness","name":"Oak Works"}</script>
</head>
<body>
  <main>
    <h1>Handmade oak furniture</h1>
    <p>Every oak table we build starts with a single board chosen by hand in the workshop.</p>
    <h2>Oak tables</h2>
    <p>Our oak tables are finished with natural oil. Oak tables last for generations.</p>
    <img src="/img/table.jpg" alt="Oak dining table">
    <img src="/img/chair.jpg">
    <a href="/tables">Browse oak tables</a>
    <a href="https://example.org/wood">Wood guide</a>
  </main>
</body>
</html>`

const noH1Page = `<html><head><title>Short</title></head><body><main><p>A page without any top level heading at all here.</p></main></body></html>`

const noIndexPage = `<html><head><meta name="robots" content="noindex, follow"><title>Hidden</title></head><body><h1>Hidden</h1></body></html>`

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestAnalyzer(alt AltTextGenerator) *Analyzer {
	return New(Config{Logger: quietLogger(), AltText: alt})
}

type site struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newSite(t *testing.T, pages map[string]string) *site {
	s := &site{hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		switch r.URL.Path {
		case "/header-noindex":
			w.Header().Set("X-Robots-Tag", "noindex")
			fmt.Fprint(w, goodPage)
			return
		case "/latin1":
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			w.Write([]byte("<html><head><title>Caf\xe9 Mocha</title></head><body><h1>Caf\xe9</h1></body></html>"))
			return
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *site) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.hits {
		n += c
	}
	return n
}

func TestAnalyzePage(t *testing.T) {
	srv := newSite(t, map[string]string{"/": goodPage})
	a := newTestAnalyzer(nil)

	page, err := a.AnalyzePage(context.Background(), srv.URL+"/", Options{})
	require.NoError(t, err)

	assert.Equal(t, "Handmade Oak Furniture Workshop in Portland", page.Title)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Greater(t, page.PageSize, 0)
	assert.Equal(t, 1, page.H1Count())
	assert.Equal(t, []string{"LocalBusiness"}, page.SchemaTypes)
	require.Len(t, page.InternalLinks, 1)
	assert.Equal(t, srv.URL+"/tables", page.InternalLinks[0].URL)
	require.Len(t, page.ExternalLinks, 1)
	assert.Len(t, page.Images, 2)
	assert.Greater(t, page.WordCount, 20)
	assert.NotEmpty(t, page.KeywordDensity)
	assert.Equal(t, "oak", page.KeywordDensity[0].Keyword)

	assert.False(t, page.HasIssue(IssueMissingH1))
	assert.False(t, page.HasIssue(IssueMissingTitle))
	assert.True(t, page.HasIssue(IssueMissingAlt))
	assert.True(t, page.HasIssue(IssueLowWordCount))
	for _, is := range page.Issues {
		assert.True(t, is.Severity.Valid(), "severity %q", is.Severity)
	}
}

func TestMissingH1IsCritical(t *testing.T) {
	srv := newSite(t, map[string]string{"/": noH1Page})
	page, err := newTestAnalyzer(nil).AnalyzePage(context.Background(), srv.URL+"/", Options{})
	require.NoError(t, err)

	require.True(t, page.HasIssue(IssueMissingH1))
	for _, is := range page.Issues {
		if is.Title == IssueMissingH1 {
			assert.Equal(t, report.SeverityCritical, is.Severity)
		}
	}
	assert.True(t, page.HasIssue(IssueShortTitle))
	assert.True(t, page.HasIssue(IssueMissingDescription))
	assert.True(t, page.HasIssue(IssueMissingStructuredData))
}

func TestNoIndexPages(t *testing.T) {
	srv := newSite(t, map[string]string{"/meta": noIndexPage})
	a := newTestAnalyzer(nil)

	_, err := a.AnalyzePage(context.Background(), srv.URL+"/meta", Options{})
	assert.ErrorIs(t, err, ErrNoIndex)

	_, err = a.AnalyzePage(context.Background(), srv.URL+"/header-noindex", Options{})
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestCharsetDecoding(t *testing.T) {
	srv := newSite(t, nil)
	page, err := newTestAnalyzer(nil).AnalyzePage(context.Background(), srv.URL+"/latin1", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Café Mocha", page.Title)
}

func TestAnalyzePagesKeepsOrderAndDropsFailures(t *testing.T) {
	srv := newSite(t, map[string]string{
		"/":      goodPage,
		"/a":     noH1Page,
		"/b":     goodPage,
		"/hide":  noIndexPage,
		"/c":     noH1Page,
		"/d":     goodPage,
		"/extra": goodPage,
	})
	urls := []string{
		srv.URL + "/", srv.URL + "/a", srv.URL + "/missing",
		srv.URL + "/b", srv.URL + "/hide", srv.URL + "/c", srv.URL + "/d",
	}

	var calls []int
	pages, err := newTestAnalyzer(nil).AnalyzePages(context.Background(), urls, Options{}, nil,
		func(_ *report.PageAnalysisResult, done, total int) {
			calls = append(calls, done)
			assert.Equal(t, len(urls), total)
		})
	require.NoError(t, err)

	got := make([]string, 0, len(pages))
	for _, p := range pages {
		got = append(got, strings.TrimPrefix(p.URL, srv.URL))
	}
	assert.Equal(t, []string{"/", "/a", "/b", "/c", "/d"}, got)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
}

func TestAnalyzePagesUsesCrawlFallback(t *testing.T) {
	srv := newSite(t, map[string]string{"/": goodPage})
	urls := []string{srv.URL + "/", srv.URL + "/gone"}
	opts := Options{Fallback: map[string]report.CrawlMeta{
		srv.URL + "/gone": {Title: "Gone but crawled", H1: "Crawled heading", StatusCode: 200},
	}}

	pages, err := newTestAnalyzer(nil).AnalyzePages(context.Background(), urls, opts, nil, nil)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.True(t, pages[1].Partial)
	assert.Equal(t, "Gone but crawled", pages[1].Title)
	assert.False(t, pages[1].HasIssue(IssueMissingH1))
}

func TestAnalyzePagesStopsWhenQuotaExhausted(t *testing.T) {
	pages := map[string]string{}
	var urls []string
	srv := newSite(t, pages)
	for i := 0; i < 7; i++ {
		path := fmt.Sprintf("/p%d", i)
		pages[path] = goodPage
		urls = append(urls, srv.URL+path)
	}

	got, err := newTestAnalyzer(nil).AnalyzePages(context.Background(), urls, Options{}, quota.NewPageCounter(4), nil)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, 4, srv.total(), "no fetch once the budget is used up")
}

func TestNoIndexDoesNotConsumeQuota(t *testing.T) {
	srv := newSite(t, map[string]string{"/": goodPage, "/hide": noIndexPage})
	urls := []string{srv.URL + "/hide", srv.URL + "/hide?v=2", srv.URL + "/hide?v=3", srv.URL + "/"}

	counter := quota.NewPageCounter(1)
	got, err := newTestAnalyzer(nil).AnalyzePages(context.Background(), urls, Options{}, counter, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, srv.URL+"/", got[0].URL)
	assert.Zero(t, counter.Remaining())
}

func TestAnalyzePagesCancellationStopsFurtherBatches(t *testing.T) {
	pages := map[string]string{}
	var urls []string
	srv := newSite(t, pages)
	for i := 0; i < 9; i++ {
		path := fmt.Sprintf("/p%d", i)
		pages[path] = goodPage
		urls = append(urls, srv.URL+path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got, err := newTestAnalyzer(nil).AnalyzePages(ctx, urls, Options{}, nil,
		func(*report.PageAnalysisResult, int, int) { cancel() })
	require.Error(t, err)
	assert.True(t, errors.Is(err, progress.ErrCancelled))
	assert.Nil(t, got)
	assert.Equal(t, BatchSize, srv.total())
}

type fakeAltText struct {
	calls atomic.Int32
	err   error
}

func (f *fakeAltText) GenerateAltText(_ context.Context, _, _ string, images []extract.Image) (map[string]string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string, len(images))
	for _, img := range images {
		out[img.Src] = "A handmade oak chair"
	}
	return out, nil
}

func TestAltTextSuggestions(t *testing.T) {
	srv := newSite(t, map[string]string{"/": goodPage})

	gen := &fakeAltText{}
	page, err := newTestAnalyzer(gen).AnalyzePage(context.Background(), srv.URL+"/", Options{UseAI: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen.calls.Load())
	assert.Empty(t, page.Images[0].SuggestedAlt)
	assert.Equal(t, "A handmade oak chair", page.Images[1].SuggestedAlt)
}

func TestAltTextFailureKeepsImages(t *testing.T) {
	srv := newSite(t, map[string]string{"/": goodPage})

	gen := &fakeAltText{err: errors.New("model offline")}
	page, err := newTestAnalyzer(gen).AnalyzePage(context.Background(), srv.URL+"/", Options{UseAI: true})
	require.NoError(t, err)
	for _, img := range page.Images {
		assert.Empty(t, img.SuggestedAlt)
	}
}

func TestAltTextSkippedForCompetitors(t *testing.T) {
	srv := newSite(t, map[string]string{"/": goodPage})

	gen := &fakeAltText{}
	_, err := newTestAnalyzer(gen).AnalyzePage(context.Background(), srv.URL+"/", Options{UseAI: true, IsCompetitor: true})
	require.NoError(t, err)
	_, err = newTestAnalyzer(gen).AnalyzePage(context.Background(), srv.URL+"/", Options{UseAI: true, SkipAltText: true})
	require.NoError(t, err)
	assert.Zero(t, gen.calls.Load())
}

func TestNeedsAltText(t *testing.T) {
	tests := []struct {
		name string
		img  extract.Image
		want bool
	}{
		{"missing alt", extract.Image{Src: "https://example.com/a.jpg"}, true},
		{"generic alt", extract.Image{Src: "https://example.com/a.jpg", Alt: "image"}, true},
		{"filename alt", extract.Image{Src: "https://example.com/a.jpg", Alt: "IMG_2041.jpg"}, true},
		{"good alt", extract.Image{Src: "https://example.com/a.jpg", Alt: "Team photo"}, false},
		{"data uri", extract.Image{Src: "data:image/png;base64,AAAA"}, false},
		{"svg", extract.Image{Src: "https://example.com/icon.svg"}, false},
		{"placeholder", extract.Image{Src: "https://example.com/placeholder.png"}, false},
		{"relative", extract.Image{Src: "/a.jpg"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsAltText(tt.img))
		})
	}
}
