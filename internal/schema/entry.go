// Package schema defines the dictionary, flashcard, deck and settings records
// together with the validation shared by live writes, export and import.
package schema

import (
	"strings"
	"unicode/utf8"
)

// WordType is the grammatical category of a dictionary entry.
type WordType string

const (
	WordTypeIsm        WordType = "ism"
	WordTypeFiil       WordType = "fi'l"
	WordTypeHarf       WordType = "harf"
	WordTypeExpression WordType = "expression"
)

func (t WordType) String() string { return string(t) }

func (t WordType) IsValid() bool {
	switch t {
	case WordTypeIsm, WordTypeFiil, WordTypeHarf, WordTypeExpression:
		return true
	}
	return false
}

// Gender of a noun.
type Gender string

const (
	GenderMasculine Gender = "masculine"
	GenderFeminine  Gender = "feminine"
)

func (g Gender) IsValid() bool {
	return g == GenderMasculine || g == GenderFeminine
}

// Inflection is the case-ending behaviour of a noun.
type Inflection string

const (
	InflectionIndeclinable Inflection = "indeclinable"
	InflectionDiptote      Inflection = "diptote"
	InflectionTriptote     Inflection = "triptote"
)

func (i Inflection) IsValid() bool {
	switch i {
	case InflectionIndeclinable, InflectionDiptote, InflectionTriptote:
		return true
	}
	return false
}

// Entry is one dictionary word with its structured metadata.
//
// Root, Tags, Antonyms, Examples and Morphology are stored as serialized JSON
// text in the dictionary_entries table and as native JSON in snapshots.
type Entry struct {
	ID          string      `json:"id"`
	Word        string      `json:"word"`
	Translation string      `json:"translation"`
	Definition  string      `json:"definition,omitempty"`
	Type        WordType    `json:"type"`
	Root        []string    `json:"root,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Antonyms    []Antonym   `json:"antonyms,omitempty"`
	Examples    []Example   `json:"examples,omitempty"`
	Morphology  *Morphology `json:"morphology,omitempty"`

	CreatedAt   string `json:"created_at"`
	CreatedAtMs int64  `json:"created_at_timestamp_ms"`
	UpdatedAt   string `json:"updated_at"`
	UpdatedAtMs int64  `json:"updated_at_timestamp_ms"`
}

// Antonym is a word with the opposite meaning.
type Antonym struct {
	Word string `json:"word"`
}

// Example is a usage sentence.
type Example struct {
	Sentence    string `json:"sentence"`
	Context     string `json:"context,omitempty"`
	Translation string `json:"translation,omitempty"`
}

// Morphology holds the noun or verb specific forms of an entry.
type Morphology struct {
	Ism  *IsmMorphology  `json:"ism,omitempty"`
	Verb *VerbMorphology `json:"verb,omitempty"`
}

// IsmMorphology describes a noun.
type IsmMorphology struct {
	Singular   string     `json:"singular,omitempty"`
	Dual       string     `json:"dual,omitempty"`
	Plurals    []Plural   `json:"plurals,omitempty"`
	Gender     Gender     `json:"gender,omitempty"`
	Inflection Inflection `json:"inflection,omitempty"`
}

// Plural is one plural form of a noun.
type Plural struct {
	Word    string `json:"word"`
	Details string `json:"details,omitempty"`
}

// VerbMorphology describes a verb.
type VerbMorphology struct {
	Huroof            []Harf   `json:"huroof,omitempty"`
	PastTense         string   `json:"past_tense,omitempty"`
	PresentTense      string   `json:"present_tense,omitempty"`
	ActiveParticiple  string   `json:"active_participle,omitempty"`
	PassiveParticiple string   `json:"passive_participle,omitempty"`
	Imperative        string   `json:"imperative,omitempty"`
	Masadir           []Masdar `json:"masadir,omitempty"`
	Form              string   `json:"form,omitempty"`
	FormArabic        string   `json:"form_arabic,omitempty"`
}

// Harf is a preposition a verb takes, with the meaning it produces.
type Harf struct {
	Harf    string `json:"harf"`
	Meaning string `json:"meaning,omitempty"`
}

// Masdar is a verbal noun.
type Masdar struct {
	Word    string `json:"word"`
	Details string `json:"details,omitempty"`
}

const (
	maxWordLength        = 500
	maxTranslationLength = 1000
	maxRootLetters       = 7
)

// Validate checks the entry for a live write or an import.
// It returns a *ValidationError listing every problem found.
func (e *Entry) Validate() error {
	return e.validate("")
}

// ValidateAt is Validate with every field path prefixed, e.g. "entries[4]".
func (e *Entry) ValidateAt(prefix string) error {
	return e.validate(prefix)
}

func (e *Entry) validate(prefix string) error {
	fe := &fieldErrors{prefix: prefix}

	if e.ID == "" {
		fe.add("id", "is required")
	}
	if strings.TrimSpace(e.Word) == "" {
		fe.add("word", "is required")
	} else if utf8.RuneCountInString(e.Word) > maxWordLength {
		fe.add("word", "must be %d characters or less", maxWordLength)
	}
	if utf8.RuneCountInString(e.Translation) > maxTranslationLength {
		fe.add("translation", "must be %d characters or less", maxTranslationLength)
	}
	if !e.Type.IsValid() {
		fe.add("type", "must be one of ism, fi'l, harf, expression (got %q)", e.Type)
	}
	if e.CreatedAt == "" {
		fe.add("created_at", "is required")
	}
	if e.UpdatedAt == "" {
		fe.add("updated_at", "is required")
	}
	if e.CreatedAtMs <= 0 {
		fe.add("created_at_timestamp_ms", "must be positive")
	}
	if e.UpdatedAtMs <= 0 {
		fe.add("updated_at_timestamp_ms", "must be positive")
	}
	if e.CreatedAt != "" && e.CreatedAtMs > 0 {
		checkStamp(fe, "created_at", e.CreatedAt, e.CreatedAtMs)
	}
	if e.UpdatedAt != "" && e.UpdatedAtMs > 0 {
		checkStamp(fe, "updated_at", e.UpdatedAt, e.UpdatedAtMs)
	}

	validateRoot(fe, e.Root)
	validateTags(fe, e.Tags)
	validateAntonyms(fe, e.Antonyms)
	validateExamples(fe, e.Examples)
	validateMorphology(fe, e.Morphology)

	return fe.err()
}

func validateRoot(fe *fieldErrors, root []string) {
	if len(root) > maxRootLetters {
		fe.add("root", "must have at most %d letters (got %d)", maxRootLetters, len(root))
	}
	for i, l := range root {
		if strings.TrimSpace(l) == "" {
			fe.add(indexed("root", i), "must not be empty")
		}
	}
}

func validateTags(fe *fieldErrors, tags []string) {
	for i, t := range tags {
		if strings.TrimSpace(t) == "" {
			fe.add(indexed("tags", i), "must not be empty")
		}
	}
}

func validateAntonyms(fe *fieldErrors, antonyms []Antonym) {
	for i, a := range antonyms {
		if strings.TrimSpace(a.Word) == "" {
			fe.add(indexed("antonyms", i)+".word", "is required")
		}
	}
}

func validateExamples(fe *fieldErrors, examples []Example) {
	for i, ex := range examples {
		if strings.TrimSpace(ex.Sentence) == "" {
			fe.add(indexed("examples", i)+".sentence", "is required")
		}
	}
}

func validateMorphology(fe *fieldErrors, m *Morphology) {
	if m == nil {
		return
	}
	if ism := m.Ism; ism != nil {
		if ism.Gender != "" && !ism.Gender.IsValid() {
			fe.add("morphology.ism.gender", "must be masculine or feminine (got %q)", ism.Gender)
		}
		if ism.Inflection != "" && !ism.Inflection.IsValid() {
			fe.add("morphology.ism.inflection", "must be indeclinable, diptote or triptote (got %q)", ism.Inflection)
		}
		for i, p := range ism.Plurals {
			if strings.TrimSpace(p.Word) == "" {
				fe.add(indexed("morphology.ism.plurals", i)+".word", "is required")
			}
		}
	}
	if verb := m.Verb; verb != nil {
		for i, h := range verb.Huroof {
			if strings.TrimSpace(h.Harf) == "" {
				fe.add(indexed("morphology.verb.huroof", i)+".harf", "is required")
			}
		}
		for i, md := range verb.Masadir {
			if strings.TrimSpace(md.Word) == "" {
				fe.add(indexed("morphology.verb.masadir", i)+".word", "is required")
			}
		}
	}
}

// MorphologyTerms returns the morphology sub-fields that are searchable:
// verb past/present tense, masdar forms, and noun singular/plural forms.
func (e *Entry) MorphologyTerms() []string {
	if e.Morphology == nil {
		return nil
	}
	var terms []string
	if ism := e.Morphology.Ism; ism != nil {
		if ism.Singular != "" {
			terms = append(terms, ism.Singular)
		}
		for _, p := range ism.Plurals {
			terms = append(terms, p.Word)
		}
	}
	if verb := e.Morphology.Verb; verb != nil {
		if verb.PastTense != "" {
			terms = append(terms, verb.PastTense)
		}
		if verb.PresentTense != "" {
			terms = append(terms, verb.PresentTense)
		}
		for _, m := range verb.Masadir {
			terms = append(terms, m.Word)
		}
	}
	return terms
}
