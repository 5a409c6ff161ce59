package schema

import (
	"time"

	"github.com/google/uuid"
)

// Direction is which side of the entry a flashcard prompts with.
type Direction string

const (
	// DirectionForward prompts with the Arabic word.
	DirectionForward Direction = "forward"
	// DirectionReverse prompts with the translation.
	DirectionReverse Direction = "reverse"
)

func (d Direction) IsValid() bool {
	return d == DirectionForward || d == DirectionReverse
}

// CardState is the FSRS learning state. Values are stored as integers.
type CardState int

const (
	StateNew CardState = iota
	StateLearning
	StateReview
	StateRelearning
)

func (s CardState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLearning:
		return "learning"
	case StateReview:
		return "review"
	case StateRelearning:
		return "relearning"
	default:
		return "unknown"
	}
}

func (s CardState) IsValid() bool {
	return s >= StateNew && s <= StateRelearning
}

// Flashcard carries the FSRS scheduling state of one direction of an entry.
// Due and LastReview are kept in both string and millisecond form.
type Flashcard struct {
	ID            string    `json:"id"`
	EntryID       string    `json:"dictionary_entry_id"`
	Direction     Direction `json:"direction"`
	Difficulty    float64   `json:"difficulty"`
	Stability     float64   `json:"stability"`
	ElapsedDays   int       `json:"elapsed_days"`
	ScheduledDays int       `json:"scheduled_days"`
	LearningStep  int       `json:"learning_step"`
	Reps          int       `json:"reps"`
	Lapses        int       `json:"lapses"`
	State         CardState `json:"state"`
	Due           string    `json:"due"`
	DueMs         int64     `json:"due_timestamp_ms"`
	LastReview    *string   `json:"last_review,omitempty"`
	LastReviewMs  *int64    `json:"last_review_timestamp_ms,omitempty"`
	IsHidden      bool      `json:"is_hidden"`
}

// NewFlashcard returns a card in state New with zeroed stats, due at now.
func NewFlashcard(entryID string, dir Direction, now time.Time) *Flashcard {
	c := &Flashcard{
		ID:        uuid.NewString(),
		EntryID:   entryID,
		Direction: dir,
	}
	c.ResetAt(now)
	return c
}

// ResetAt re-initializes the scheduling state, keeping identity and visibility.
func (c *Flashcard) ResetAt(now time.Time) {
	c.Difficulty = 0
	c.Stability = 0
	c.ElapsedDays = 0
	c.ScheduledDays = 0
	c.LearningStep = 0
	c.Reps = 0
	c.Lapses = 0
	c.State = StateNew
	c.Due, c.DueMs = Stamp(now)
	c.LastReview = nil
	c.LastReviewMs = nil
}

// SetDue updates both forms of the due timestamp.
func (c *Flashcard) SetDue(t time.Time) {
	c.Due, c.DueMs = Stamp(t)
}

// SetLastReview updates both forms of the last-review timestamp.
func (c *Flashcard) SetLastReview(t time.Time) {
	s, ms := Stamp(t)
	c.LastReview = &s
	c.LastReviewMs = &ms
}

// DueTime returns the due instant.
func (c *Flashcard) DueTime() time.Time {
	return FromMillis(c.DueMs)
}

// LastReviewTime returns the last review instant, if any.
func (c *Flashcard) LastReviewTime() (time.Time, bool) {
	if c.LastReviewMs == nil {
		return time.Time{}, false
	}
	return FromMillis(*c.LastReviewMs), true
}

// ValidateAt checks a flashcard snapshot under the given path prefix.
func (c *Flashcard) ValidateAt(prefix string) error {
	fe := &fieldErrors{prefix: prefix}
	if c.ID == "" {
		fe.add("id", "is required")
	}
	if !c.Direction.IsValid() {
		fe.add("direction", "must be forward or reverse (got %q)", c.Direction)
	}
	if !c.State.IsValid() {
		fe.add("state", "must be between 0 and 3 (got %d)", c.State)
	}
	if c.Due == "" {
		fe.add("due", "is required")
	} else {
		checkStamp(fe, "due", c.Due, c.DueMs)
	}
	if c.Reps < 0 || c.Lapses < 0 {
		fe.add("reps", "reps and lapses must not be negative")
	}
	if (c.LastReview == nil) != (c.LastReviewMs == nil) {
		fe.add("last_review", "string and millisecond forms must both be set or both be empty")
	} else if c.LastReview != nil {
		checkStamp(fe, "last_review", *c.LastReview, *c.LastReviewMs)
	}
	return fe.err()
}
