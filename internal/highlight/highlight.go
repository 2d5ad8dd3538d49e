// Package highlight locates the markup a studio UI renders inside prompt
// text: {placeholder} tokens awaiting a value and section headers.
package highlight

import (
	"regexp"
	"sort"
	"strings"
)

// Kind classifies a highlighted span.
type Kind string

const (
	KindPlaceholder Kind = "placeholder"
	KindHeader      Kind = "header"
)

// Span is one highlighted byte range within the source text.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Kind  Kind   `json:"kind"`
	Text  string `json:"text"`
}

var (
	placeholderRe = regexp.MustCompile(`\{[a-zA-Z][a-zA-Z0-9 _-]*\}`)
	headerRe      = regexp.MustCompile(`(?m)^#{1,3} .+$`)
)

// Spans returns every placeholder and header span in text, ordered by start offset.
func Spans(text string) []Span {
	var spans []Span
	for _, loc := range placeholderRe.FindAllStringIndex(text, -1) {
		spans = append(spans, Span{Start: loc[0], End: loc[1], Kind: KindPlaceholder, Text: text[loc[0]:loc[1]]})
	}
	for _, loc := range headerRe.FindAllStringIndex(text, -1) {
		spans = append(spans, Span{Start: loc[0], End: loc[1], Kind: KindHeader, Text: text[loc[0]:loc[1]]})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans
}

// Placeholders returns the distinct placeholder names in text, in order of
// first appearance, without the surrounding braces.
func Placeholders(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRe.FindAllString(text, -1) {
		name := strings.Trim(m, "{}")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
