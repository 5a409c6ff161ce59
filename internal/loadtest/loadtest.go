// Package loadtest measures search and grading latency under concurrent load.
//
// A run seeds a synthetic dictionary, then starts N workers that mix search
// queries against the live index with grades committed through the operation
// queue. Grades serialize on the queue while searches run in parallel, so the
// report shows how much the write lane slows reads down.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/scheduler"
	"github.com/Shunseii/bahar-sub001/internal/scheduler/fsrs"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/search"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

// SeedTag marks every generated entry so a bench run can be told apart.
const SeedTag = "loadtest"

// Workload defines the parameters of a run.
type Workload struct {
	// Entries is the number of entries to seed.
	Entries int
	// Workers is the number of concurrent workers.
	Workers int
	// OpsPerWorker is how many operations each worker performs.
	OpsPerWorker int
	// GradeRatio is the fraction of operations that grade a card (0.0-1.0).
	GradeRatio float64
	// Seed makes data and query choice reproducible.
	Seed int64
}

// DefaultWorkload returns a small mixed workload.
func DefaultWorkload() Workload {
	return Workload{
		Entries:      500,
		Workers:      20,
		OpsPerWorker: 25,
		GradeRatio:   0.2,
		Seed:         42,
	}
}

// Validate checks the workload bounds.
func (w Workload) Validate() error {
	switch {
	case w.Entries <= 0:
		return fmt.Errorf("entries must be positive, got %d", w.Entries)
	case w.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", w.Workers)
	case w.OpsPerWorker <= 0:
		return fmt.Errorf("ops per worker must be positive, got %d", w.OpsPerWorker)
	case w.GradeRatio < 0 || w.GradeRatio > 1:
		return fmt.Errorf("grade ratio must be between 0 and 1, got %v", w.GradeRatio)
	}
	return nil
}

// Targets are the services under load.
type Targets struct {
	Dictionary *dictionary.Service
	Search     *search.Engine
	Scheduler  *scheduler.Service
}

// Dataset is the seeded data a run draws from.
type Dataset struct {
	EntryIDs     []string
	CardIDs      []string
	Words        []string
	Translations []string
}

// LatencyStats captures latency metrics for one kind of operation.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
	Durations    []time.Duration
}

// Report is the outcome of a run.
type Report struct {
	Workload Workload
	Search   *LatencyStats
	Grade    *LatencyStats
	Elapsed  time.Duration
}

// Throughput returns completed operations per second.
func (r *Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	total := r.Search.TotalQueries + r.Grade.TotalQueries
	return float64(total) / r.Elapsed.Seconds()
}

// Seed creates n entries through the dictionary service and collects the
// ids of their flashcards.
func Seed(ctx context.Context, dict *dictionary.Service, n int, seed int64) (*Dataset, error) {
	rng := rand.New(rand.NewSource(seed))
	ds := &Dataset{
		EntryIDs:     make([]string, 0, n),
		CardIDs:      make([]string, 0, 2*n),
		Words:        make([]string, 0, n),
		Translations: make([]string, 0, n),
	}

	for i, in := range generateEntries(rng, n) {
		e, err := dict.CreateEntry(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to insert entry %d: %w", i, err)
		}
		cards, err := dict.Flashcards(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load flashcards for %s: %w", e.ID, err)
		}
		ds.EntryIDs = append(ds.EntryIDs, e.ID)
		ds.Words = append(ds.Words, e.Word)
		ds.Translations = append(ds.Translations, e.Translation)
		for _, c := range cards {
			ds.CardIDs = append(ds.CardIDs, c.ID)
		}
	}
	return ds, nil
}

// Run executes the workload against already seeded targets.
func Run(ctx context.Context, t Targets, ds *Dataset, wl Workload) (*Report, error) {
	if err := wl.Validate(); err != nil {
		return nil, err
	}
	if len(ds.Words) == 0 {
		return nil, errors.New("dataset is empty")
	}

	type sample struct {
		grade bool
		d     time.Duration
		err   error
	}

	var wg sync.WaitGroup
	resultsChan := make(chan []sample, wl.Workers)

	start := time.Now()
	for i := 0; i < wl.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(wl.Seed + int64(worker) + 1))
			samples := make([]sample, 0, wl.OpsPerWorker)

			for j := 0; j < wl.OpsPerWorker; j++ {
				if ctx.Err() != nil {
					break
				}
				grade := len(ds.CardIDs) > 0 && rng.Float64() < wl.GradeRatio

				opStart := time.Now()
				var err error
				if grade {
					cardID := ds.CardIDs[rng.Intn(len(ds.CardIDs))]
					rating := fsrs.Ratings[rng.Intn(len(fsrs.Ratings))]
					_, err = t.Scheduler.Grade(ctx, cardID, rating, time.Time{})
				} else {
					_, err = t.Search.Search(ctx, search.Query{Term: pickQuery(rng, ds)})
				}
				samples = append(samples, sample{grade: grade, d: time.Since(opStart), err: err})
			}

			resultsChan <- samples
		}(i)
	}

	wg.Wait()
	close(resultsChan)
	elapsed := time.Since(start)

	var searchDurations, gradeDurations []time.Duration
	var searchErrors, gradeErrors int
	for samples := range resultsChan {
		for _, s := range samples {
			switch {
			case s.grade && s.err != nil:
				gradeErrors++
			case s.grade:
				gradeDurations = append(gradeDurations, s.d)
			case s.err != nil:
				searchErrors++
			default:
				searchDurations = append(searchDurations, s.d)
			}
		}
	}

	if len(searchDurations)+len(gradeDurations) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("no successful operations completed")
	}

	report := &Report{
		Workload: wl,
		Search:   computeLatencyStats(searchDurations),
		Grade:    computeLatencyStats(gradeDurations),
		Elapsed:  elapsed,
	}
	report.Search.Errors = searchErrors
	report.Grade.Errors = gradeErrors
	return report, nil
}

// VerifyIndexConsistency checks that every stored entry is in the live index
// and that each seeded entry is found by its own word.
func VerifyIndexConsistency(ctx context.Context, t Targets, ds *Dataset) error {
	stored, err := t.Dictionary.CountEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}
	if indexed := t.Search.Len(); indexed != stored {
		return fmt.Errorf("index holds %d entries, store holds %d", indexed, stored)
	}

	for i, id := range ds.EntryIDs {
		res, err := t.Search.Search(ctx, search.Query{Term: ds.Words[i], Limit: 50})
		if err != nil {
			return fmt.Errorf("failed to search %q: %w", ds.Words[i], err)
		}
		found := false
		for _, h := range res.Hits {
			if h.Entry.ID == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("entry %s not found by its word %q", id, ds.Words[i])
		}
	}
	return nil
}

var (
	arabicLetters = []rune("ابتثجحخدذرزسشصضطظعغفقكلمنهوي")
	syllables     = []string{"ka", "ta", "bi", "lo", "mu", "ra", "se", "di", "no", "fa", "qu", "le"}
	wordTypes     = []schema.WordType{schema.WordTypeIsm, schema.WordTypeFiil, schema.WordTypeHarf, schema.WordTypeExpression}
)

// generateEntries creates entries with random Arabic words and pseudo-English
// translations. Types cycle so type filters have something to match.
func generateEntries(rng *rand.Rand, n int) []dictionary.EntryInput {
	out := make([]dictionary.EntryInput, n)
	for i := range out {
		word := make([]rune, 3+rng.Intn(4))
		for k := range word {
			word[k] = arabicLetters[rng.Intn(len(arabicLetters))]
		}

		var tr strings.Builder
		for k := 0; k < 2+rng.Intn(3); k++ {
			tr.WriteString(syllables[rng.Intn(len(syllables))])
		}

		out[i] = dictionary.EntryInput{
			Word:        string(word),
			Translation: tr.String(),
			Definition:  fmt.Sprintf("generated entry %d", i),
			Type:        wordTypes[i%len(wordTypes)],
			Tags:        []string{SeedTag, fmt.Sprintf("batch-%d", i/100)},
		}
	}
	return out
}

// pickQuery returns a whole word, a type-ahead prefix or a misspelled
// translation, roughly a third each.
func pickQuery(rng *rand.Rand, ds *Dataset) string {
	i := rng.Intn(len(ds.Words))
	switch rng.Intn(3) {
	case 0:
		return ds.Words[i]
	case 1:
		r := []rune(ds.Words[i])
		return string(r[:1+rng.Intn(len(r))])
	default:
		tr := []byte(ds.Translations[i])
		if len(tr) > 4 {
			k := rng.Intn(len(tr))
			tr[k] = 'a' + byte(rng.Intn(26))
		}
		return string(tr)
	}
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         sum / time.Duration(len(durations)),
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalQueries: len(durations),
		Durations:    sorted,
	}
}

// Print writes the statistics under a title.
func (s *LatencyStats) Print(w io.Writer, title string) {
	fmt.Fprintf(w, "%s\n", ui.RenderBold(title))
	fmt.Fprintf(w, "  Operations:    %d\n", s.TotalQueries)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	if s.TotalQueries == 0 {
		return
	}
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}

// Print writes the whole report.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "%d workers x %d ops, grade ratio %.2f, %d entries\n",
		r.Workload.Workers, r.Workload.OpsPerWorker, r.Workload.GradeRatio, r.Workload.Entries)
	r.Search.Print(w, "Search")
	r.Grade.Print(w, "Grade")
	fmt.Fprintf(w, "Elapsed %v, %.1f ops/s\n", r.Elapsed.Round(time.Millisecond), r.Throughput())
}
