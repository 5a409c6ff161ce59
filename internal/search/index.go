package search

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

// Field is a searchable document field.
type Field int

const (
	FieldWord Field = iota
	FieldTranslation
	FieldDefinition
	FieldTags
	FieldMorphology
	numFields
)

// Boosts weights field matches. Word and translation dominate.
type Boosts [numFields]float64

// DefaultBoosts weights word and translation 10x over the rest.
func DefaultBoosts() Boosts {
	return Boosts{
		FieldWord:        10,
		FieldTranslation: 10,
		FieldDefinition:  1,
		FieldTags:        1,
		FieldMorphology:  1,
	}
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75

	prefixWeight = 0.8
)

// document is the indexed form of an entry.
type document struct {
	entry  *schema.Entry
	tokens [numFields][]string
	length [numFields]int
}

// posting records term frequencies of one term in one document.
type posting struct {
	tf [numFields]int
}

// Index is an in-memory inverted index over dictionary entries.
// It is safe for concurrent use.
type Index struct {
	boosts Boosts

	mu       sync.RWMutex
	docs     map[string]*document
	postings map[string]map[string]*posting // term -> doc id -> posting
	totalLen [numFields]int
	vocab    []string // sorted terms, rebuilt lazily
	dirty    bool
}

// NewIndex creates an empty index.
func NewIndex(boosts Boosts) *Index {
	return &Index{
		boosts:   boosts,
		docs:     make(map[string]*document),
		postings: make(map[string]map[string]*posting),
	}
}

// Len returns the number of documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Has reports whether id is indexed.
func (idx *Index) Has(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.docs[id]
	return ok
}

// Upsert adds or replaces an entry.
func (idx *Index) Upsert(e *schema.Entry) {
	doc := buildDocument(e)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(e.ID)
	idx.docs[e.ID] = doc
	for f := Field(0); f < numFields; f++ {
		idx.totalLen[f] += doc.length[f]
		for _, term := range doc.tokens[f] {
			docs, ok := idx.postings[term]
			if !ok {
				docs = make(map[string]*posting)
				idx.postings[term] = docs
				idx.dirty = true
			}
			p, ok := docs[e.ID]
			if !ok {
				p = &posting{}
				docs[e.ID] = p
			}
			p.tf[f]++
		}
	}
}

// Remove deletes an entry. Unknown ids are ignored.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *Index) removeLocked(id string) {
	doc, ok := idx.docs[id]
	if !ok {
		return
	}
	delete(idx.docs, id)
	for f := Field(0); f < numFields; f++ {
		idx.totalLen[f] -= doc.length[f]
		for _, term := range doc.tokens[f] {
			docs := idx.postings[term]
			delete(docs, id)
			if len(docs) == 0 {
				delete(idx.postings, term)
				idx.dirty = true
			}
		}
	}
}

func buildDocument(e *schema.Entry) *document {
	doc := &document{entry: e}
	add := func(f Field, text string) {
		toks := TokenizeAuto(text)
		doc.tokens[f] = append(doc.tokens[f], toks...)
		doc.length[f] += len(toks)
	}

	add(FieldWord, e.Word)
	add(FieldTranslation, e.Translation)
	add(FieldDefinition, e.Definition)
	for _, t := range e.Tags {
		add(FieldTags, t)
	}
	for _, m := range e.MorphologyTerms() {
		add(FieldMorphology, m)
	}
	return doc
}

// Filters narrows results. Empty slices match everything.
type Filters struct {
	Tags  []string
	Types []schema.WordType
}

func (f Filters) match(e *schema.Entry) bool {
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if e.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Tags) > 0 {
		for _, want := range f.Tags {
			for _, have := range e.Tags {
				if strings.EqualFold(want, have) {
					return true
				}
			}
		}
		return false
	}
	return true
}

// Hit is one scored result.
type Hit struct {
	Entry *schema.Entry
	Score float64
}

// matchMode selects how query terms match indexed terms.
type matchMode int

const (
	// matchExact accepts equal or prefix terms and requires every query term.
	matchExact matchMode = iota
	// matchFuzzy accepts terms within the edit distance and any query term.
	matchFuzzy
)

// query scores documents for the given terms.
func (idx *Index) query(terms []string, mode matchMode, tolerance int, filters Filters) []Hit {
	idx.mu.RLock()
	for idx.dirty {
		// A writer may slip in between Unlock and RLock, so check again.
		idx.mu.RUnlock()
		idx.mu.Lock()
		if idx.dirty {
			idx.rebuildVocabLocked()
		}
		idx.mu.Unlock()
		idx.mu.RLock()
	}
	defer idx.mu.RUnlock()

	n := float64(len(idx.docs))
	if n == 0 || len(terms) == 0 {
		return nil
	}

	var avgLen [numFields]float64
	for f := Field(0); f < numFields; f++ {
		avgLen[f] = math.Max(float64(idx.totalLen[f])/n, 1)
	}

	scores := make(map[string]float64)
	matchedTerms := make(map[string]int)

	for _, qt := range terms {
		candidates := idx.candidatesLocked(qt, mode, tolerance)
		hitThisTerm := make(map[string]bool)

		for term, weight := range candidates {
			docs := idx.postings[term]
			idf := math.Log(1 + (n-float64(len(docs))+0.5)/(float64(len(docs))+0.5))
			for id, p := range docs {
				doc := idx.docs[id]
				s := 0.0
				for f := Field(0); f < numFields; f++ {
					tf := float64(p.tf[f])
					if tf == 0 {
						continue
					}
					norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(doc.length[f])/avgLen[f]))
					s += idx.boosts[f] * norm
				}
				scores[id] += idf * s * weight
				hitThisTerm[id] = true
			}
		}
		for id := range hitThisTerm {
			matchedTerms[id]++
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		if mode == matchExact && matchedTerms[id] < len(terms) {
			continue
		}
		doc := idx.docs[id]
		if !filters.match(doc.entry) {
			continue
		}
		hits = append(hits, Hit{Entry: doc.entry, Score: score})
	}
	sortHits(hits)
	return hits
}

// candidatesLocked returns indexed terms matching qt with a weight per term.
func (idx *Index) candidatesLocked(qt string, mode matchMode, tolerance int) map[string]float64 {
	out := make(map[string]float64)

	if mode == matchExact {
		i := sort.SearchStrings(idx.vocab, qt)
		for ; i < len(idx.vocab) && strings.HasPrefix(idx.vocab[i], qt); i++ {
			if idx.vocab[i] == qt {
				out[qt] = 1
			} else {
				out[idx.vocab[i]] = prefixWeight
			}
		}
		return out
	}

	qLen := utf8.RuneCountInString(qt)
	for _, term := range idx.vocab {
		if term == qt {
			out[term] = 1
			continue
		}
		if tolerance == 0 {
			continue
		}
		if abs(utf8.RuneCountInString(term)-qLen) > tolerance {
			continue
		}
		if d := levenshtein.ComputeDistance(qt, term); d <= tolerance {
			out[term] = 1 / float64(1+d)
		}
	}
	return out
}

func (idx *Index) rebuildVocabLocked() {
	vocab := make([]string, 0, len(idx.postings))
	for term := range idx.postings {
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)
	idx.vocab = vocab
	idx.dirty = false
}

// all returns every document passing filters, most recently updated first.
func (idx *Index) all(filters Filters) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]Hit, 0, len(idx.docs))
	for _, doc := range idx.docs {
		if filters.match(doc.entry) {
			hits = append(hits, Hit{Entry: doc.entry})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i].Entry, hits[j].Entry
		if a.UpdatedAtMs != b.UpdatedAtMs {
			return a.UpdatedAtMs > b.UpdatedAtMs
		}
		return a.ID < b.ID
	})
	return hits
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Entry.UpdatedAtMs != hits[j].Entry.UpdatedAtMs {
			return hits[i].Entry.UpdatedAtMs > hits[j].Entry.UpdatedAtMs
		}
		return hits[i].Entry.ID < hits[j].Entry.ID
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
