package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlight(t *testing.T) {
	tests := []struct {
		name, text, query, want string
	}{
		{"latin", "The book shelf", "book", "The <mark>book</mark> shelf"},
		{"case and accents", "Café noir", "cafe", "<mark>Café</mark> noir"},
		{"diacritics kept in span", "كِتَاب", "كتاب", "<mark>كِتَاب</mark>"},
		{"trailing marks", "كَتَبَ الولدُ", "كتب", "<mark>كَتَبَ</mark> الولدُ"},
		{"multiple terms", "to write a book", "write book", "to <mark>write</mark> a <mark>book</mark>"},
		{"no match", "pen", "book", "pen"},
		{"empty query", "a < b", "", "a &lt; b"},
		{"escapes", "<b>cat</b>", "cat", "&lt;b&gt;<mark>cat</mark>&lt;/b&gt;"},
		{"overlapping terms merge", "bookshelf", "book ksh", "<mark>booksh</mark>elf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Highlight(tt.text, tt.query))
		})
	}
}
