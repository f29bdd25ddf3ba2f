package analyzer

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/seo-optimizer/siteanalyzer/extract"
	"github.com/seo-optimizer/siteanalyzer/report"
)

const maxAltTextImages = 10

var genericAlt = map[string]bool{
	"image": true, "img": true, "photo": true, "picture": true, "logo": true,
	"icon": true, "banner": true, "placeholder": true,
}

// NeedsAltText reports whether img should be sent for an alt text
// suggestion: its alt is missing or meaningless and its src is an absolute
// http(s) URL that is not a data URI or an SVG placeholder.
func NeedsAltText(img extract.Image) bool {
	alt := strings.ToLower(strings.TrimSpace(img.Alt))
	if alt != "" && !genericAlt[alt] && !looksLikeFilename(alt) {
		return false
	}

	src := strings.TrimSpace(img.Src)
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		return false
	}
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	lowerPath := strings.ToLower(u.Path)
	if strings.HasSuffix(lowerPath, ".svg") || strings.Contains(lowerPath, "placeholder") {
		return false
	}
	return true
}

func looksLikeFilename(alt string) bool {
	switch path.Ext(alt) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif":
		return true
	}
	return false
}

// suggestAltText asks the generator for missing alt texts. Failures are
// logged and leave the images untouched.
func (a *Analyzer) suggestAltText(ctx context.Context, page *report.PageAnalysisResult) {
	var candidates []extract.Image
	for _, img := range page.Images {
		if NeedsAltText(img) {
			candidates = append(candidates, img)
		}
		if len(candidates) == maxAltTextImages {
			break
		}
	}
	if len(candidates) == 0 {
		return
	}

	pageContext := page.Title
	if h := page.FirstHeading(); h != "" {
		pageContext += " - " + h
	}

	suggestions, err := a.altText.GenerateAltText(ctx, page.URL, pageContext, candidates)
	if err != nil {
		a.log.WithField("url", page.URL).WithError(err).Warn("Alt text generation failed")
		return
	}
	for i := range page.Images {
		if alt, ok := suggestions[page.Images[i].Src]; ok && strings.TrimSpace(alt) != "" {
			page.Images[i].SuggestedAlt = strings.TrimSpace(alt)
		}
	}
}
