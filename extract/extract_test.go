package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

const samplePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>  Acme Plumbing | Emergency Repairs  </title>
  <meta name="description" content="Fast local plumbing repairs.">
  <meta name="robots" content="index, follow">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="canonical" href="https://acme.test/">
  <meta property="og:title" content="Acme">
  <script type="application/ld+json">{"@context":"https://schema.org","@graph":[{"@type":"LocalBusiness"},{"@type":"MadeUpThing"}]}</script>
</head>
<body>
  <div id="cookie-consent"><p>We use cookies to improve your experience on this site.</p><button>Accept all</button></div>
  <header><nav><a href="/">Home</a><a href="/services">Services</a></nav></header>
  <main>
    <h1>Emergency Plumbing</h1>
    <h2>Our Services</h2>
    <p>We fix leaks, clogs and burst pipes across the whole city, day and night.</p>
    <p>Our licensed plumbers arrive within the hour. Call us for a free estimate!</p>
    <div class="section-title">Why choose us</div>
    <a class="btn btn-primary" href="/contact">Book a visit</a>
    <a href="#top">Back to top</a>
    <a href="https://acme.test/">Self</a>
    <a href="mailto:hi@acme.test">Mail</a>
    <a href="https://partner.example/page">Partner</a>
    <img src="/img/van.jpg" alt="Acme van" width="640" height="480">
    <img src="/img/team.jpg">
    <div class="cards">
      <div class="card"><h3>Leak repair</h3><p>Same day leak detection.</p></div>
      <div class="card"><h3>Drain cleaning</h3><p>Hydro jetting for stubborn clogs.</p></div>
    </div>
    <form class="wpcf7-form" action="/send"><input type="text" name="name"><textarea name="msg"></textarea><button type="submit">Send message</button></form>
  </main>
</body>
</html>`

func TestExtractMeta(t *testing.T) {
	meta := ExtractMeta(mustDoc(t, samplePage))

	assert.Equal(t, "Acme Plumbing | Emergency Repairs", meta.Title)
	assert.Equal(t, "Fast local plumbing repairs.", meta.Description)
	assert.Equal(t, "https://acme.test/", meta.Canonical)
	assert.Equal(t, "en", meta.Language)
	assert.Equal(t, "Acme", meta.OpenGraph["title"])
	assert.Equal(t, []string{"LocalBusiness"}, meta.SchemaTypes)
	assert.Equal(t, []string{"MadeUpThing"}, meta.UnknownSchemas)
	assert.True(t, meta.HasStructuredData())
	assert.False(t, IsNoIndex(meta.Robots))
}

func TestIsNoIndex(t *testing.T) {
	assert.True(t, IsNoIndex("noindex, follow"))
	assert.True(t, IsNoIndex("NOINDEX"))
	assert.True(t, IsNoIndex("none"))
	assert.False(t, IsNoIndex("index, follow"))
	assert.False(t, IsNoIndex(""))
}

func TestExtractHeadings(t *testing.T) {
	headings := ExtractHeadings(mustDoc(t, samplePage), DefaultHeuristics())

	require.GreaterOrEqual(t, len(headings), 3)
	assert.Equal(t, Heading{Level: 1, Text: "Emergency Plumbing"}, headings[0])
	assert.Equal(t, Heading{Level: 2, Text: "Our Services"}, headings[1])
	assert.Equal(t, 1, CountLevel(headings, 1))

	var heuristic []string
	for _, h := range headings {
		if h.Heuristic {
			heuristic = append(heuristic, h.Text)
		}
	}
	assert.Contains(t, heuristic, "Why choose us")
}

func TestExtractLinks(t *testing.T) {
	internal, external := ExtractLinks(mustDoc(t, samplePage), "https://acme.test/")

	var internalURLs []string
	for _, l := range internal {
		internalURLs = append(internalURLs, l.URL)
	}
	assert.ElementsMatch(t, []string{"https://acme.test/services", "https://acme.test/contact"}, internalURLs)
	require.Len(t, external, 1)
	assert.Equal(t, "https://partner.example/page", external[0].URL)
	assert.Equal(t, "Partner", external[0].Text)
}

func TestExtractLinksExcludesSamePathAndQuery(t *testing.T) {
	doc := mustDoc(t, `<a href="?page=2">next</a><a href="/blog?page=1">same</a><a href="/blog/post">post</a>`)
	internal, _ := ExtractLinks(doc, "https://acme.test/blog?page=1")

	require.Len(t, internal, 2)
	assert.Equal(t, "https://acme.test/blog?page=2", internal[0].URL)
	assert.Equal(t, "https://acme.test/blog/post", internal[1].URL)
}

func TestExtractImages(t *testing.T) {
	images := ExtractImages(mustDoc(t, samplePage), "https://acme.test/")

	require.Len(t, images, 2)
	assert.Equal(t, "https://acme.test/img/van.jpg", images[0].Src)
	assert.True(t, images[0].HasAlt)
	assert.Equal(t, 640, images[0].Width)
	assert.False(t, images[1].HasAlt)
}

func TestExtractCTAsSkipsCookieBanner(t *testing.T) {
	ctas := ExtractCTAs(mustDoc(t, samplePage), "https://acme.test/", DefaultHeuristics())

	var texts []string
	var form *CTA
	for i, c := range ctas {
		texts = append(texts, c.Text)
		if c.Type == CTAForm {
			form = &ctas[i]
		}
	}
	assert.NotContains(t, texts, "Accept all")
	assert.Contains(t, texts, "Book a visit")
	require.NotNil(t, form)
	assert.Equal(t, "contact-form-7", form.Plugin)
	assert.Equal(t, "contact", form.FormType)
	assert.Equal(t, "Send message", form.Text)
	assert.Equal(t, 2, form.Fields)
}

func TestExtractCards(t *testing.T) {
	cards := ExtractCards(mustDoc(t, samplePage), DefaultHeuristics())

	require.Len(t, cards, 2)
	assert.Equal(t, "Leak repair", cards[0].Title)
	assert.Equal(t, "Hydro jetting for stubborn clogs.", cards[1].Text)
}

func TestExtractTextSkipsBannerFreeDuplicates(t *testing.T) {
	text := ExtractText(mustDoc(t, samplePage), DefaultHeuristics())

	assert.Equal(t, "main-paragraphs", text.Strategy)
	assert.Contains(t, text.Paragraphs, "We fix leaks, clogs and burst pipes across the whole city, day and night.")
	seen := make(map[string]bool)
	for _, p := range text.Paragraphs {
		assert.False(t, seen[p], "duplicate paragraph %q", p)
		seen[p] = true
	}
	assert.NotEmpty(t, text.Sentences)
}

func TestExtractTextSkipsEnclosingBlocks(t *testing.T) {
	doc := mustDoc(t, `<html><body><main><blockquote>
		<p>First quoted paragraph that is long enough.</p>
		<p>Second quoted paragraph that is long enough.</p>
		<cite>Someone Famous</cite>
	</blockquote></main></body></html>`)

	text := ExtractText(doc, DefaultHeuristics())
	assert.Equal(t, []string{
		"First quoted paragraph that is long enough.",
		"Second quoted paragraph that is long enough.",
	}, text.Paragraphs)
	assert.Equal(t, 1, strings.Count(text.FullText, "First quoted"))
}

func TestExtractTextFallsBackToBody(t *testing.T) {
	doc := mustDoc(t, `<html><body><nav>Menu items here</nav><div>Plain text content without any paragraph tags at all</div><script>var x = 1;</script></body></html>`)
	text := ExtractText(doc, DefaultHeuristics())

	assert.Equal(t, "body-fallback", text.Strategy)
	assert.Equal(t, []string{"Plain text content without any paragraph tags at all"}, text.Paragraphs)
	assert.NotContains(t, text.FullText, "var x")
	assert.NotContains(t, text.FullText, "Menu items")
}

func TestExtractTextCapsTotalLength(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for i := 0; i < 400; i++ {
		b.WriteString("<p>Paragraph number ")
		b.WriteString(strings.Repeat("x", i%7+1))
		b.WriteString(" carries enough words to be kept by the extractor ")
		b.WriteString(strings.Repeat("y", i))
		b.WriteString("</p>")
	}
	b.WriteString("</main></body></html>")

	h := DefaultHeuristics()
	text := ExtractText(mustDoc(t, b.String()), h)

	total := 0
	for _, p := range text.Paragraphs {
		total += len(p)
	}
	assert.LessOrEqual(t, total, h.MaxTextChars)
	assert.True(t, text.Truncated)
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("This is one sentence. Is this another one? Yes it is! ok.")
	assert.Equal(t, []string{"This is one sentence.", "Is this another one?", "Yes it is!"}, got)
}

func TestHeuristicsNormalizeKeepsOverrides(t *testing.T) {
	h := Heuristics{CardSelectors: []string{".box"}}.Normalize()

	assert.Equal(t, []string{".box"}, h.CardSelectors)
	assert.Equal(t, DefaultHeuristics().MaxTextChars, h.MaxTextChars)
	assert.NotEmpty(t, h.CookieBannerPatterns)
}

func TestIsGenericAnchor(t *testing.T) {
	assert.True(t, IsGenericAnchor("Click here"))
	assert.True(t, IsGenericAnchor("  Read more »"))
	assert.True(t, IsGenericAnchor(""))
	assert.False(t, IsGenericAnchor("Oak dining tables"))
}
