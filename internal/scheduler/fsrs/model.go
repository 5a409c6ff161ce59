// Package fsrs implements the FSRS-5 memory model and the card state machine
// built on it.
package fsrs

import (
	"fmt"
	"math"
)

const (
	minStability  = 0.1
	minDifficulty = 1.0
	maxDifficulty = 10.0

	// decay and factor give R(t, S) = (1 + t/(9S))^-1.
	decay  = -1.0
	factor = 1.0 / 9
)

// Weights are the 19 FSRS-5 model parameters w0..w18.
type Weights [19]float64

// DefaultWeights are the published FSRS-5 defaults.
var DefaultWeights = Weights{
	0.4072, 1.1829, 3.1262, 15.4722, // initial stability per rating
	7.2102, 0.5316, // initial difficulty
	1.0651, 0.0046, // difficulty update and mean reversion
	1.5418, 0.1594, 1.01, // stability after recall
	2.1791, 0.0292, 0.2788, 0.2229, // stability after forgetting
	0.2604, 3.3928, // hard penalty, easy bonus
	0.2223, 0.6744, // short-term stability
}

// Validate rejects NaN, infinite or non-positive initial stabilities.
func (w Weights) Validate() error {
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("fsrs: weight w%d is not finite: %v", i, v)
		}
	}
	for i := 0; i < 4; i++ {
		if w[i] <= 0 {
			return fmt.Errorf("fsrs: initial stability w%d must be positive", i)
		}
	}
	return nil
}

// Rating is the recall grade given by the user.
type Rating int

const (
	Again Rating = iota + 1
	Hard
	Good
	Easy
)

// Ratings lists the grades in ascending order.
var Ratings = [...]Rating{Again, Hard, Good, Easy}

func (r Rating) String() string {
	switch r {
	case Again:
		return "again"
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	default:
		return fmt.Sprintf("rating(%d)", int(r))
	}
}

// IsValid reports whether r is one of the four grades.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// ParseRating accepts again, hard, good, easy or 1-4.
func ParseRating(s string) (Rating, error) {
	switch s {
	case "again", "1":
		return Again, nil
	case "hard", "2":
		return Hard, nil
	case "good", "3":
		return Good, nil
	case "easy", "4":
		return Easy, nil
	}
	return 0, fmt.Errorf("fsrs: unknown rating %q", s)
}

// Retrievability is the probability of recall after elapsedDays.
func Retrievability(elapsedDays int, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	return math.Pow(1+factor*float64(elapsedDays)/stability, decay)
}

// Interval converts stability into days for the desired retention.
// The result is at least one day.
func Interval(stability, retention float64) int {
	if retention <= 0 || retention >= 1 {
		return 1
	}
	ivl := stability / factor * (math.Pow(retention, 1/decay) - 1)
	return max(1, int(math.Round(ivl)))
}

func (w Weights) initialStability(r Rating) float64 {
	if !r.IsValid() {
		r = Good
	}
	return math.Max(minStability, w[r-1])
}

func (w Weights) initialDifficulty(r Rating) float64 {
	return clampDifficulty(w[4] - math.Exp(w[5]*float64(r-1)) + 1)
}

// nextDifficulty applies the grade delta and reverts toward D0(Easy).
func (w Weights) nextDifficulty(d float64, r Rating) float64 {
	next := d - w[6]*(float64(r)-3)
	return clampDifficulty(w[7]*w.initialDifficulty(Easy) + (1-w[7])*next)
}

func (w Weights) recallStability(s, d, retrievability float64, r Rating) float64 {
	modifier := 1.0
	switch r {
	case Hard:
		modifier = w[15]
	case Easy:
		modifier = w[16]
	}
	growth := math.Exp(w[8]) * (11 - d) * math.Pow(s, -w[9]) * (math.Exp(w[10]*(1-retrievability)) - 1) * modifier
	return math.Max(minStability, s*(growth+1))
}

// forgetStability is the post-lapse stability, capped so a lapse never
// raises stability above S/exp(w17*w18).
func (w Weights) forgetStability(s, d, retrievability float64) float64 {
	sf := w[11] * math.Pow(d, -w[12]) * (math.Pow(s+1, w[13]) - 1) * math.Exp(w[14]*(1-retrievability))
	ceiling := s / math.Exp(w[17]*w[18])
	return math.Max(minStability, math.Min(sf, ceiling))
}

func (w Weights) shortTermStability(s float64, r Rating) float64 {
	return math.Max(minStability, s*math.Exp(w[17]*(float64(r)-3+w[18])))
}

func clampDifficulty(d float64) float64 {
	return math.Max(minDifficulty, math.Min(maxDifficulty, d))
}
