package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Language is the script family detected in a string.
type Language int

const (
	LanguageUnknown Language = iota
	LanguageArabic
	LanguageEnglish
)

func (l Language) String() string {
	switch l {
	case LanguageArabic:
		return "arabic"
	case LanguageEnglish:
		return "english"
	default:
		return "unknown"
	}
}

const (
	alif       = '\u0627'
	alifWasla  = '\u0671'
	hamza      = '\u0621'
	waw        = '\u0648'
	ya         = '\u064A'
	alifMaqsur = '\u0649'
	farsiYa    = '\u06CC'
	tatweel    = '\u0640'
)

// isArabicMark reports tashkeel, Quranic annotation marks and tatweel.
// Hamza and madda combining marks are included, so NFD-decomposed hamza
// carriers (أ إ آ ؤ ئ) lose their hamza here.
func isArabicMark(r rune) bool {
	switch {
	case r >= '\u0610' && r <= '\u061A':
		return true
	case r >= '\u064B' && r <= '\u065F':
		return true
	case r == '\u0670', r == tatweel:
		return true
	case r >= '\u06D6' && r <= '\u06DC':
		return true
	case r >= '\u06DF' && r <= '\u06E4':
		return true
	case r == '\u06E7', r == '\u06E8':
		return true
	case r >= '\u06EA' && r <= '\u06ED':
		return true
	}
	return false
}

// foldArabicLetter maps remaining hamza forms and the weak letters to bare alif.
func foldArabicLetter(r rune) rune {
	switch r {
	case alifWasla, hamza, waw, ya, alifMaqsur, farsiYa:
		return alif
	}
	return r
}

func newArabicFolder() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(isArabicMark)),
		runes.Map(foldArabicLetter),
		norm.NFC,
	)
}

// NormalizeArabic strips tashkeel and tatweel, folds hamza variants to bare
// alif and folds the weak letters (alif, waw, ya) to alif. Non-Arabic text
// passes through in NFC form. The function is idempotent.
//
// The same function is used for indexing, querying and highlighting.
func NormalizeArabic(s string) string {
	out, _, err := transform.String(newArabicFolder(), s)
	if err != nil {
		return s
	}
	return out
}

func newLatinFolder() transform.Transformer {
	return transform.Chain(
		cases.Fold(),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
}

// foldLatin case-folds and strips combining marks (café -> cafe).
func foldLatin(s string) string {
	out, _, err := transform.String(newLatinFolder(), s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// DetectLanguage counts Arabic and Latin letters; the majority wins and a tie
// (including no letters at all) is LanguageUnknown.
func DetectLanguage(s string) Language {
	var arabic, latin int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		switch {
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	switch {
	case arabic > latin:
		return LanguageArabic
	case latin > arabic:
		return LanguageEnglish
	default:
		return LanguageUnknown
	}
}

// Normalize prepares text for tokenization in the given language.
// Unknown is treated as English.
func Normalize(s string, lang Language) string {
	s = NormalizeArabic(s)
	if lang == LanguageArabic {
		return strings.ToLower(s)
	}
	return foldLatin(s)
}

// Tokenize normalizes s and splits it into terms.
func Tokenize(s string, lang Language) []string {
	return strings.FieldsFunc(Normalize(s, lang), isSeparator)
}

// TokenizeAuto detects the language of s and tokenizes accordingly.
func TokenizeAuto(s string) []string {
	return Tokenize(s, DetectLanguage(s))
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
