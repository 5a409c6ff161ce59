package fsrs

import (
	"fmt"
	"math"
	"time"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

const day = 24 * time.Hour

// Card is the scheduling state the algorithm reads and writes.
type Card struct {
	State         schema.CardState
	Step          int
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	Due           time.Time
	LastReview    *time.Time
}

// ReviewLog records what one grade did to a card.
type ReviewLog struct {
	Rating        Rating
	State         schema.CardState
	ElapsedDays   int
	ScheduledDays int
	Review        time.Time
}

// SchedulingInfo is the outcome of one grade.
type SchedulingInfo struct {
	Card Card
	Log  ReviewLog
}

// RecordLog holds the outcome of every grade.
type RecordLog map[Rating]SchedulingInfo

// Parameters configure a Scheduler.
type Parameters struct {
	Weights          Weights
	DesiredRetention float64
	MaxIntervalDays  int
	EnableFuzz       bool
	LearningSteps    []time.Duration
	RelearningSteps  []time.Duration
}

// DefaultParameters returns retention 0.9, learning steps 1m and 10m,
// relearning step 10m and fuzz disabled.
func DefaultParameters() Parameters {
	return Parameters{
		Weights:          DefaultWeights,
		DesiredRetention: 0.9,
		MaxIntervalDays:  36500,
		LearningSteps:    []time.Duration{time.Minute, 10 * time.Minute},
		RelearningSteps:  []time.Duration{10 * time.Minute},
	}
}

// Validate checks the parameters.
func (p Parameters) Validate() error {
	if err := p.Weights.Validate(); err != nil {
		return err
	}
	if p.DesiredRetention <= 0 || p.DesiredRetention >= 1 {
		return fmt.Errorf("fsrs: desired retention must be in (0, 1), got %v", p.DesiredRetention)
	}
	if p.MaxIntervalDays < 1 {
		return fmt.Errorf("fsrs: max interval must be at least one day, got %d", p.MaxIntervalDays)
	}
	return nil
}

// Scheduler computes next card states.
type Scheduler struct {
	p Parameters
}

// NewScheduler returns a Scheduler. Empty step lists fall back to the defaults.
func NewScheduler(p Parameters) (*Scheduler, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	def := DefaultParameters()
	if len(p.LearningSteps) == 0 {
		p.LearningSteps = def.LearningSteps
	}
	if len(p.RelearningSteps) == 0 {
		p.RelearningSteps = def.RelearningSteps
	}
	return &Scheduler{p: p}, nil
}

// Repeat returns the outcome of each of the four grades. The input card is
// not modified.
func (s *Scheduler) Repeat(card Card, now time.Time) RecordLog {
	out := make(RecordLog, len(Ratings))
	for _, r := range Ratings {
		out[r] = s.Next(card, now, r)
	}
	return out
}

// Next applies one grade. ElapsedDays of the result is the whole days
// between the previous review and now.
func (s *Scheduler) Next(card Card, now time.Time, r Rating) SchedulingInfo {
	now = now.UTC()
	if card.LastReview != nil {
		card.ElapsedDays = elapsedDays(*card.LastReview, now)
	} else {
		card.ElapsedDays = 0
	}
	log := ReviewLog{
		Rating:        r,
		State:         card.State,
		ElapsedDays:   card.ElapsedDays,
		ScheduledDays: card.ScheduledDays,
		Review:        now,
	}

	var next Card
	switch card.State {
	case schema.StateLearning:
		next = s.learningStep(card, now, r, s.p.LearningSteps)
	case schema.StateRelearning:
		next = s.learningStep(card, now, r, s.p.RelearningSteps)
	case schema.StateReview:
		next = s.review(card, now, r)
	default:
		next = s.first(card, now, r)
	}
	return SchedulingInfo{Card: next, Log: log}
}

func (s *Scheduler) first(c Card, now time.Time, r Rating) Card {
	w := s.p.Weights
	steps := s.p.LearningSteps

	c.Reps++
	c.LastReview = &now
	c.Stability = w.initialStability(r)
	c.Difficulty = w.initialDifficulty(r)

	switch r {
	case Again:
		return s.stay(c, now, schema.StateLearning, 0, steps[0])
	case Hard:
		delay := steps[0]
		if len(steps) > 1 {
			delay = (steps[0] + steps[1]) / 2
		}
		return s.stay(c, now, schema.StateLearning, 0, delay)
	case Good:
		if len(steps) > 1 {
			return s.stay(c, now, schema.StateLearning, 1, steps[1])
		}
		return s.graduate(c, now, 0)
	default:
		good := s.interval(w.initialStability(Good))
		return s.graduate(c, now, good+1)
	}
}

func (s *Scheduler) learningStep(c Card, now time.Time, r Rating, steps []time.Duration) Card {
	w := s.p.Weights
	prev := c.Stability

	c.Reps++
	c.LastReview = &now
	c.Stability = w.shortTermStability(c.Stability, r)
	c.Difficulty = w.nextDifficulty(c.Difficulty, r)

	switch r {
	case Again:
		return s.stay(c, now, c.State, 0, steps[0])
	case Hard:
		step := min(c.Step, len(steps)-1)
		return s.stay(c, now, c.State, step, steps[step])
	case Good:
		if c.Step+1 < len(steps) {
			return s.stay(c, now, c.State, c.Step+1, steps[c.Step+1])
		}
		return s.graduate(c, now, 0)
	default:
		good := s.interval(w.shortTermStability(prev, Good))
		return s.graduate(c, now, good+1)
	}
}

func (s *Scheduler) review(c Card, now time.Time, r Rating) Card {
	w := s.p.Weights

	elapsed := max(c.ElapsedDays, 1)
	retr := Retrievability(elapsed, c.Stability)
	prevD := c.Difficulty

	c.Reps++
	c.LastReview = &now
	c.Difficulty = w.nextDifficulty(prevD, r)

	if r == Again {
		c.Lapses++
		c.Stability = w.forgetStability(c.Stability, prevD, retr)
		return s.stay(c, now, schema.StateRelearning, 0, s.p.RelearningSteps[0])
	}

	var stab [Easy + 1]float64
	var ivl [Easy + 1]int
	for _, g := range []Rating{Hard, Good, Easy} {
		stab[g] = w.recallStability(c.Stability, prevD, retr, g)
		ivl[g] = s.interval(stab[g])
	}
	s.order(&ivl)

	if s.p.EnableFuzz {
		seed := fuzzSeed(now, c.Reps, c.Difficulty, c.Stability)
		for i, g := range []Rating{Hard, Good, Easy} {
			ivl[g] = fuzzInterval(ivl[g], elapsed, s.p.MaxIntervalDays, seed+int64(i))
		}
		s.order(&ivl)
	}

	c.Stability = stab[r]
	c.State = schema.StateReview
	c.Step = 0
	c.ScheduledDays = s.clamp(ivl[r])
	c.Due = now.Add(time.Duration(c.ScheduledDays) * day)
	return c
}

// order enforces hard <= good < easy.
func (s *Scheduler) order(ivl *[Easy + 1]int) {
	ivl[Hard] = min(ivl[Hard], ivl[Good])
	ivl[Good] = max(ivl[Good], ivl[Hard]+1)
	ivl[Easy] = max(ivl[Easy], ivl[Good]+1)
	for _, g := range []Rating{Hard, Good, Easy} {
		ivl[g] = s.clamp(ivl[g])
	}
}

// stay keeps the card in a short-term state.
func (s *Scheduler) stay(c Card, now time.Time, state schema.CardState, step int, delay time.Duration) Card {
	c.State = state
	c.Step = step
	c.ScheduledDays = 0
	c.Due = now.Add(delay)
	return c
}

// graduate moves the card to Review. floor raises the interval for Easy so
// it always beats what Good would have scheduled.
func (s *Scheduler) graduate(c Card, now time.Time, floor int) Card {
	ivl := s.clamp(max(s.interval(c.Stability), floor))
	c.State = schema.StateReview
	c.Step = 0
	c.ScheduledDays = ivl
	c.Due = now.Add(time.Duration(ivl) * day)
	return c
}

func (s *Scheduler) interval(stability float64) int {
	return s.clamp(Interval(stability, s.p.DesiredRetention))
}

func (s *Scheduler) clamp(days int) int {
	return max(1, min(days, s.p.MaxIntervalDays))
}

// elapsedDays counts whole days between two instants, never negative.
func elapsedDays(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(math.Floor(d.Hours() / 24))
}
