package search

import (
	"html"
	"sort"
	"strings"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

type span struct{ start, end int } // original rune offsets, end exclusive

// Highlight wraps every occurrence of the query's terms in text with <mark>
// tags. Matching runs on normalized text; each normalized rune remembers the
// original rune it came from, so diacritics and tatweel that normalization
// dropped stay inside the marked span. All text outside the tags is
// HTML-escaped.
func Highlight(text, query string) string {
	orig := []rune(text)
	terms := highlightTerms(query)
	if len(terms) == 0 || len(orig) == 0 {
		return html.EscapeString(text)
	}

	normalized, owner := normalizeWithOffsets(orig)

	var spans []span
	for _, term := range terms {
		for from := 0; from+len(term) <= len(normalized); {
			i := indexRunes(normalized[from:], term)
			if i < 0 {
				break
			}
			i += from
			end := max(extendOverDropped(orig, owner, i+len(term)), owner[i+len(term)-1]+1)
			spans = append(spans, span{start: owner[i], end: end})
			from = i + len(term)
		}
	}
	if len(spans) == 0 {
		return html.EscapeString(text)
	}
	spans = mergeSpans(spans)

	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(html.EscapeString(string(orig[last:s.start])))
		b.WriteString(markOpen)
		b.WriteString(html.EscapeString(string(orig[s.start:s.end])))
		b.WriteString(markClose)
		last = s.end
	}
	b.WriteString(html.EscapeString(string(orig[last:])))
	return b.String()
}

func highlightTerms(query string) [][]rune {
	seen := make(map[string]bool)
	var out [][]rune
	for _, t := range strings.FieldsFunc(Normalize(query, LanguageEnglish), isSeparator) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, []rune(t))
	}
	return out
}

// normalizeWithOffsets normalizes orig one rune at a time and returns the
// normalized runes with, for each, the index of the original rune it came
// from. Runes removed by normalization contribute nothing.
func normalizeWithOffsets(orig []rune) ([]rune, []int) {
	normalized := make([]rune, 0, len(orig))
	owner := make([]int, 0, len(orig))
	for i, r := range orig {
		for _, nr := range Normalize(string(r), LanguageEnglish) {
			normalized = append(normalized, nr)
			owner = append(owner, i)
		}
	}
	return normalized, owner
}

// extendOverDropped returns the original offset where a match ending at
// normalized index end stops, swallowing any trailing marks that were
// dropped by normalization.
func extendOverDropped(orig []rune, owner []int, end int) int {
	if end < len(owner) {
		return owner[end]
	}
	return len(orig)
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func mergeSpans(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
