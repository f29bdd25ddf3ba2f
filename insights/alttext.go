package insights

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"

	"github.com/seo-optimizer/siteanalyzer/ai"
	"github.com/seo-optimizer/siteanalyzer/extract"
)

const maxAltTextLength = 125

const altTextSystemPrompt = `You write concise, descriptive image alt texts for accessibility and SEO. ` +
	`Answer with a JSON object {"altTexts": [{"src": "...", "alt": "..."}]}. ` +
	`Each alt text is at most 125 characters and never starts with "image of".`

// AltText suggests alt texts for images through the AI service.
type AltText struct {
	completer ai.Completer
	retry     ai.RetryPolicy
	log       logrus.FieldLogger
	sanitizer *bluemonday.Policy
}

func NewAltText(completer ai.Completer, retry ai.RetryPolicy, log logrus.FieldLogger) *AltText {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AltText{completer: completer, retry: retry, log: log, sanitizer: bluemonday.StrictPolicy()}
}

// GenerateAltText returns suggested alt texts keyed by image src.
func (a *AltText) GenerateAltText(ctx context.Context, pageURL, pageContext string, images []extract.Image) (map[string]string, error) {
	if a.completer == nil {
		return nil, ai.ErrNotConfigured
	}
	if len(images) == 0 {
		return map[string]string{}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Page: %s\nContext: %s\n\nImages:\n", pageURL, pageContext)
	for _, img := range images {
		fmt.Fprintf(&b, "- src: %s", img.Src)
		if img.Alt != "" {
			fmt.Fprintf(&b, " (current alt: %q)", img.Alt)
		}
		b.WriteByte('\n')
	}
	prompt := b.String()

	raw, err := ai.WithRetry(ctx, a.retry, a.log, func(ctx context.Context) (string, error) {
		return a.completer.Complete(ctx, altTextSystemPrompt, prompt)
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		AltTexts []struct {
			Src string `json:"src"`
			Alt string `json:"alt"`
		} `json:"altTexts"`
	}
	if err := ai.DecodeJSON(raw, &payload); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(images))
	for _, img := range images {
		wanted[img.Src] = true
	}
	out := make(map[string]string, len(payload.AltTexts))
	for _, item := range payload.AltTexts {
		if !wanted[item.Src] {
			continue
		}
		alt := strings.TrimSpace(html.UnescapeString(a.sanitizer.Sanitize(item.Alt)))
		if r := []rune(alt); len(r) > maxAltTextLength {
			alt = strings.TrimSpace(string(r[:maxAltTextLength]))
		}
		if alt != "" {
			out[item.Src] = alt
		}
	}
	return out, nil
}
