// Package format turns raw bot replies into ordered display blocks.
package format

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var (
	boldPattern       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern     = regexp.MustCompile(`\*(.*?)\*`)
	blankRunPattern   = regexp.MustCompile(`\n\s*\n\s*\n`)
	horizontalPattern = regexp.MustCompile(`[ \t\f\r\v]+`)
)

// Formatter applies an ordered matcher list to each line; first match wins.
type Formatter struct {
	keywords []string
	matchers []Matcher
}

// Option 配置 Formatter。
type Option func(*Formatter)

// WithKeywords replaces the heading lexicon. An empty list keeps the default.
func WithKeywords(keywords []string) Option {
	return func(f *Formatter) {
		cleaned := lo.Compact(lo.Map(keywords, func(k string, _ int) string {
			return strings.TrimSpace(k)
		}))
		if len(cleaned) > 0 {
			f.keywords = cleaned
		}
	}
}

// New 创建格式化器，默认使用内置分类词表。
func New(opts ...Option) *Formatter {
	f := &Formatter{keywords: DefaultKeywords}
	for _, opt := range opts {
		opt(f)
	}
	f.matchers = []Matcher{
		CategoryMatcher(f.keywords),
		ProductMatcher,
		ParagraphMatcher,
	}
	return f
}

// Keywords returns the heading lexicon in use.
func (f *Formatter) Keywords() []string {
	return append([]string(nil), f.keywords...)
}

// Format normalizes raw and classifies every non-empty line in order.
func (f *Formatter) Format(raw string) []Block {
	lines := Lines(Normalize(raw))
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		for _, match := range f.matchers {
			if block, ok := match(line); ok {
				blocks = append(blocks, block)
				break
			}
		}
	}
	return blocks
}

// Normalize strips emphasis markers and collapses whitespace while keeping
// line breaks.
func Normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = boldPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(collapseSpaces(text))
}

// Lines splits normalized text into trimmed, non-empty lines.
func Lines(text string) []Line {
	var out []Line
	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		out = append(out, Line{Index: len(out), Text: trimmed})
	}
	return out
}

func collapseSpaces(text string) string {
	return horizontalPattern.ReplaceAllString(text, " ")
}
