package format

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Matcher classifies one line. The bool result reports a match.
type Matcher func(Line) (Block, bool)

// DefaultKeywords 是默认的分类标题词表（区分大小写）。
var DefaultKeywords = []string{"Batteries", "UPS", "Systems", "Power"}

var genericHeadingWords = []string{"category", "overview"}

var (
	parenURLPattern  = regexp.MustCompile(`\((https?://[^)]+)\)`)
	pricePattern     = regexp.MustCompile(`₹[\d,]+`)
	bareURLPattern   = regexp.MustCompile(`https?://\S+`)
	viewLinkPattern  = regexp.MustCompile(`View Product.*?\)`)
	priceSegPattern  = regexp.MustCompile(`\|.*?Price:.*₹[\d,]+`)
	trailLinkPattern = regexp.MustCompile(`- View Product.*$`)
)

// CategoryMatcher matches heading lines: a colon plus either a lexicon word
// or the generic words "category"/"overview" in any case.
func CategoryMatcher(keywords []string) Matcher {
	return func(line Line) (Block, bool) {
		text := line.Text
		if !strings.Contains(text, ":") {
			return Block{}, false
		}
		lower := strings.ToLower(text)
		hit := lo.ContainsBy(keywords, func(k string) bool {
			return k != "" && strings.Contains(text, k)
		}) || lo.ContainsBy(genericHeadingWords, func(k string) bool {
			return strings.Contains(lower, k)
		})
		if !hit {
			return Block{}, false
		}
		heading := strings.TrimSpace(text[:strings.Index(text, ":")])
		if heading == "" {
			heading = strings.TrimSpace(strings.Replace(text, ":", "", 1))
		}
		return Block{Kind: KindHeading, Text: heading}, true
	}
}

// ProductMatcher matches bullet, "Price:" or rupee-bearing lines.
func ProductMatcher(line Line) (Block, bool) {
	text := line.Text
	if !strings.HasPrefix(text, "•") && !strings.Contains(text, "Price:") && !strings.Contains(text, "₹") {
		return Block{}, false
	}
	return Block{Kind: KindProduct, Product: parseProduct(text)}, true
}

func parseProduct(text string) *Product {
	body := strings.TrimSpace(strings.TrimPrefix(text, "•"))

	first, _, _ := strings.Cut(body, " - ")
	name, _, _ := strings.Cut(first, ":")
	name = strings.TrimSpace(name)

	rest := body
	if idx := strings.Index(body, name); idx >= 0 {
		rest = body[idx+len(name):]
	}

	p := &Product{Name: name}
	if m := parenURLPattern.FindStringSubmatch(rest); m != nil {
		p.URL = m[1]
	}
	p.Price = pricePattern.FindString(rest)

	desc := viewLinkPattern.ReplaceAllString(rest, "")
	desc = priceSegPattern.ReplaceAllString(desc, "")
	desc = trailLinkPattern.ReplaceAllString(desc, "")
	if p.URL != "" {
		desc = strings.ReplaceAll(desc, "("+p.URL+")", "")
	}
	desc = pricePattern.ReplaceAllString(desc, "")
	desc = strings.TrimLeft(strings.TrimSpace(desc), ":-| ")
	p.Description = collapseSpaces(desc)
	return p
}

// ParagraphMatcher always matches; bare URLs become link spans.
func ParagraphMatcher(line Line) (Block, bool) {
	text := line.Text
	locs := bareURLPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return Block{Kind: KindParagraph, Text: text}, true
	}

	spans := make([]Span, 0, len(locs)*2+1)
	cursor := 0
	for _, loc := range locs {
		if piece := text[cursor:loc[0]]; piece != "" {
			spans = append(spans, Span{Text: piece})
		}
		link := text[loc[0]:loc[1]]
		spans = append(spans, Span{Text: link, URL: link})
		cursor = loc[1]
	}
	if tail := text[cursor:]; tail != "" {
		spans = append(spans, Span{Text: tail})
	}
	return Block{Kind: KindParagraph, Text: text, Spans: spans}, true
}
