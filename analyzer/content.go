package analyzer

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/seo-optimizer/siteanalyzer/extract"
	"github.com/seo-optimizer/siteanalyzer/report"
)

const (
	minKeywordOccurrences = 3
	minPhraseOccurrences  = 2
	maxKeywords           = 10
	maxPhrases            = 10
	depthWordTarget       = 2000
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true, "you": true,
	"all": true, "any": true, "can": true, "had": true, "her": true, "was": true, "one": true,
	"our": true, "out": true, "has": true, "have": true, "him": true, "his": true, "how": true,
	"its": true, "may": true, "new": true, "now": true, "old": true, "see": true, "two": true,
	"who": true, "did": true, "get": true, "let": true, "put": true, "say": true, "she": true,
	"too": true, "use": true, "with": true, "this": true, "that": true, "from": true, "they": true,
	"will": true, "would": true, "there": true, "their": true, "what": true, "about": true,
	"which": true, "when": true, "were": true, "your": true, "been": true, "more": true,
	"also": true, "into": true, "than": true, "them": true, "then": true, "these": true,
	"some": true, "such": true, "only": true, "other": true, "over": true, "very": true,
	"just": true, "where": true, "while": true, "each": true, "most": true, "here": true,
	"those": true, "should": true, "could": true, "being": true, "does": true, "because": true,
}

// words lower-cases text and splits it into word tokens.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func isKeyword(w string) bool {
	return len([]rune(w)) >= 3 && !stopWords[w] && !isNumber(w)
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// WordCount counts whitespace separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Readability returns the Flesch reading ease of text clamped to 0..100.
func Readability(text string, sentences []string) float64 {
	ws := words(text)
	if len(ws) == 0 {
		return 0
	}
	sentenceCount := len(sentences)
	if sentenceCount == 0 {
		sentenceCount = 1
	}
	syllables := 0
	for _, w := range ws {
		syllables += countSyllables(w)
	}
	score := 206.835 -
		1.015*(float64(len(ws))/float64(sentenceCount)) -
		84.6*(float64(syllables)/float64(len(ws)))
	return round1(math.Max(0, math.Min(100, score)))
}

func countSyllables(word string) int {
	word = strings.Trim(word, "'")
	if word == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

// KeywordDensity returns the non stop-words used at least three times,
// most frequent first.
func KeywordDensity(text string) []report.KeywordDensity {
	ws := words(text)
	if len(ws) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, w := range ws {
		if isKeyword(w) {
			counts[w]++
		}
	}

	var out []report.KeywordDensity
	for w, n := range counts {
		if n < minKeywordOccurrences {
			continue
		}
		out = append(out, report.KeywordDensity{
			Keyword: w,
			Count:   n,
			Density: round2(float64(n) / float64(len(ws)) * 100),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > maxKeywords {
		out = out[:maxKeywords]
	}
	return out
}

// SemanticPhrases returns recurring two and three word phrases that do not
// start or end with a stop word.
func SemanticPhrases(sentences []string) []string {
	counts := make(map[string]int)
	for _, sentence := range sentences {
		ws := words(sentence)
		for n := 2; n <= 3; n++ {
			for i := 0; i+n <= len(ws); i++ {
				gram := ws[i : i+n]
				if !isKeyword(gram[0]) || !isKeyword(gram[n-1]) {
					continue
				}
				counts[strings.Join(gram, " ")]++
			}
		}
	}

	type phrase struct {
		text  string
		count int
	}
	var phrases []phrase
	for p, n := range counts {
		if n >= minPhraseOccurrences {
			phrases = append(phrases, phrase{p, n})
		}
	}
	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].count != phrases[j].count {
			return phrases[i].count > phrases[j].count
		}
		return phrases[i].text < phrases[j].text
	})

	out := make([]string, 0, min(len(phrases), maxPhrases))
	for _, p := range phrases {
		if len(out) == maxPhrases {
			break
		}
		out = append(out, p.text)
	}
	return out
}

// ContentDepth blends word volume (60 points, full at 2000 words) with the
// heading structure (40 points).
func ContentDepth(wordCount int, headings []extract.Heading) float64 {
	volume := math.Min(float64(wordCount)/depthWordTarget, 1) * 60

	h2 := extract.CountLevel(headings, 2)
	h3 := extract.CountLevel(headings, 3)
	structure := 0.0
	if h2 > 0 {
		structure += 20
	}
	if h3 > 0 {
		structure += 10
	}
	if h2 >= 3 {
		structure += 10
	}
	return round1(volume + structure)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
