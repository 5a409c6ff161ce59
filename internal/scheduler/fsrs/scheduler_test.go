package fsrs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(DefaultParameters())
	require.NoError(t, err)
	return s
}

func TestFirstReview(t *testing.T) {
	s := newTestScheduler(t)
	card := Card{State: schema.StateNew, Due: t0}

	log := s.Repeat(card, t0)
	require.Len(t, log, 4)

	again := log[Again].Card
	assert.Equal(t, schema.StateLearning, again.State)
	assert.Equal(t, t0.Add(time.Minute), again.Due)
	assert.Equal(t, 1, again.Reps)
	assert.InDelta(t, DefaultWeights[0], again.Stability, 1e-9)

	hard := log[Hard].Card
	assert.Equal(t, schema.StateLearning, hard.State)
	assert.Equal(t, t0.Add(5*time.Minute+30*time.Second), hard.Due)

	good := log[Good].Card
	assert.Equal(t, schema.StateLearning, good.State)
	assert.Equal(t, 1, good.Step)
	assert.Equal(t, t0.Add(10*time.Minute), good.Due)

	easy := log[Easy].Card
	assert.Equal(t, schema.StateReview, easy.State)
	assert.Equal(t, 15, easy.ScheduledDays)
	assert.Equal(t, t0.Add(15*day), easy.Due)

	assert.Equal(t, 0, card.Reps, "input card is not modified")
	assert.Nil(t, card.LastReview)
}

func TestLearningGraduates(t *testing.T) {
	s := newTestScheduler(t)
	card := s.Next(Card{State: schema.StateNew}, t0, Good).Card

	now := t0.Add(10 * time.Minute)
	next := s.Next(card, now, Good).Card
	assert.Equal(t, schema.StateReview, next.State)
	assert.GreaterOrEqual(t, next.ScheduledDays, 1)
	assert.Equal(t, now.Add(time.Duration(next.ScheduledDays)*day), next.Due)
	assert.Equal(t, 2, next.Reps)

	hard := s.Next(card, now, Hard).Card
	assert.Equal(t, schema.StateLearning, hard.State)
	assert.Equal(t, 1, hard.Step)
	assert.Equal(t, now.Add(10*time.Minute), hard.Due)
}

func reviewCard() Card {
	last := t0.Add(-10 * day)
	return Card{
		State:         schema.StateReview,
		Stability:     10,
		Difficulty:    5,
		ScheduledDays: 10,
		Reps:          4,
		Due:           t0,
		LastReview:    &last,
	}
}

func TestReviewLapse(t *testing.T) {
	s := newTestScheduler(t)

	info := s.Next(reviewCard(), t0, Again)
	assert.Equal(t, schema.StateRelearning, info.Card.State)
	assert.Equal(t, 1, info.Card.Lapses)
	assert.Equal(t, t0.Add(10*time.Minute), info.Card.Due)
	assert.Less(t, info.Card.Stability, 10.0)
	assert.Equal(t, 10, info.Log.ElapsedDays)
	assert.Equal(t, schema.StateReview, info.Log.State)
}

func TestReviewIntervalsAreOrdered(t *testing.T) {
	for _, fuzz := range []bool{false, true} {
		p := DefaultParameters()
		p.EnableFuzz = fuzz
		s, err := NewScheduler(p)
		require.NoError(t, err)

		log := s.Repeat(reviewCard(), t0)
		hard, good, easy := log[Hard].Card, log[Good].Card, log[Easy].Card
		assert.LessOrEqual(t, hard.ScheduledDays, good.ScheduledDays, "fuzz=%v", fuzz)
		assert.Less(t, good.ScheduledDays, easy.ScheduledDays, "fuzz=%v", fuzz)
		for _, c := range []Card{hard, good, easy} {
			assert.Equal(t, schema.StateReview, c.State)
			assert.Equal(t, t0, *c.LastReview)
		}
	}
}

func TestReviewIsDeterministic(t *testing.T) {
	p := DefaultParameters()
	p.EnableFuzz = true
	s, err := NewScheduler(p)
	require.NoError(t, err)

	a := s.Next(reviewCard(), t0, Good).Card
	b := s.Next(reviewCard(), t0, Good).Card
	assert.Equal(t, a.ScheduledDays, b.ScheduledDays)
}

func TestRetrievabilityAndInterval(t *testing.T) {
	assert.InDelta(t, 0.9, Retrievability(Interval(9, 0.9), 9), 1e-9)
	assert.Equal(t, 3, Interval(3.1262, 0.9))
	assert.Equal(t, 1, Interval(0.1, 0.9))
	assert.Zero(t, Retrievability(5, 0))
}

func TestParametersValidate(t *testing.T) {
	p := DefaultParameters()
	p.DesiredRetention = 1
	_, err := NewScheduler(p)
	assert.Error(t, err)

	p = DefaultParameters()
	p.Weights[2] = 0
	assert.Error(t, p.Validate())
}

func TestParseRating(t *testing.T) {
	r, err := ParseRating("good")
	require.NoError(t, err)
	assert.Equal(t, Good, r)

	r, err = ParseRating("1")
	require.NoError(t, err)
	assert.Equal(t, Again, r)

	_, err = ParseRating("great")
	assert.Error(t, err)
}

func TestFuzzBounds(t *testing.T) {
	lo, hi := fuzzBounds(2, 0, 100)
	assert.Equal(t, 2, lo)
	assert.Equal(t, 2, hi)

	for ivl := 3; ivl < 400; ivl += 7 {
		lo, hi := fuzzBounds(ivl, 1, 365)
		assert.LessOrEqual(t, lo, hi)
		got := fuzzInterval(ivl, 1, 365, int64(ivl))
		assert.GreaterOrEqual(t, got, lo)
		assert.LessOrEqual(t, got, hi)
		assert.Equal(t, got, fuzzInterval(ivl, 1, 365, int64(ivl)))
	}
}
