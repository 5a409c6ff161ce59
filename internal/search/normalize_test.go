package search

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeArabic(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"tashkeel", "كَتَبَ", "كتب"},
		{"tatweel", "كـتـاب", "كتاب"},
		{"hamza above", "أكل", "اكل"},
		{"hamza below", "إسلام", "اسلام"},
		{"madda", "آمن", "امن"},
		{"alif wasla", "ٱسم", "اسم"},
		{"alif maqsura", "على", "علا"},
		{"weak letters", "يوم", "اام"},
		{"latin untouched", "Café", "Café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeArabic(tt.in))
		})
	}
}

func TestNormalizeArabicIdempotent(t *testing.T) {
	f := func(s string) bool {
		once := NormalizeArabic(s)
		return NormalizeArabic(once) == once
	}
	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 2000}))

	for _, s := range []string{"كِتَابٌ", "أُؤْمِنُ", "مَكْتَبَةٌ", "ـــ", ""} {
		once := NormalizeArabic(s)
		assert.Equal(t, once, NormalizeArabic(once), s)
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LanguageArabic, DetectLanguage("كتاب"))
	assert.Equal(t, LanguageArabic, DetectLanguage("كتاب a"))
	assert.Equal(t, LanguageEnglish, DetectLanguage("book"))
	assert.Equal(t, LanguageUnknown, DetectLanguage("ab كت"))
	assert.Equal(t, LanguageUnknown, DetectLanguage("123 !"))
	assert.Equal(t, LanguageUnknown, DetectLanguage(""))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "cafe", "world"}, Tokenize("Hello, Café-world!", LanguageEnglish))
	assert.Equal(t, []string{"كتب", "الالد"}, Tokenize("كَتَبَ الوَلَدُ.", LanguageArabic))
	assert.Empty(t, Tokenize(" ?! ", LanguageUnknown))
}

func TestTolerance(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 0, 2: 0, 3: 1, 4: 1, 5: 2, 12: 2} {
		assert.Equal(t, want, DefaultTolerance.For(n), "len %d", n)
	}
	assert.Equal(t, 1, DesktopTolerance.For(3))
	assert.Equal(t, 2, DesktopTolerance.For(4))
}
