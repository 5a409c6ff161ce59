package fsrs

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

type fuzzBand struct {
	start, end, factor float64
}

var fuzzBands = [...]fuzzBand{
	{2.5, 7, 0.15},
	{7, 20, 0.10},
	{20, math.MaxFloat64, 0.05},
}

// fuzzBounds returns the inclusive range a fuzzed interval may fall in.
func fuzzBounds(ivl, elapsed, maxIvl int) (lo, hi int) {
	x := float64(ivl)
	if x < 2.5 {
		return ivl, ivl
	}
	delta := 1.0
	for _, b := range fuzzBands {
		delta += b.factor * math.Max(math.Min(x, b.end)-b.start, 0)
	}

	lo = max(2, int(math.Round(x-delta)))
	hi = min(maxIvl, int(math.Round(x+delta)))
	if ivl > elapsed && lo <= elapsed {
		lo = elapsed + 1
	}
	return min(lo, hi), hi
}

// fuzzInterval picks a deterministic interval within the fuzz bounds.
func fuzzInterval(ivl, elapsed, maxIvl int, seed int64) int {
	lo, hi := fuzzBounds(ivl, elapsed, maxIvl)
	if lo == hi {
		return lo
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // scheduling jitter
	return lo + rng.Intn(hi-lo+1)
}

// fuzzSeed hashes the review instant and card state with FNV-1a so the same
// review always fuzzes the same way.
func fuzzSeed(now time.Time, reps int, difficulty, stability float64) int64 {
	h := fnv.New64a()
	var b [8]byte
	for _, v := range []uint64{
		uint64(now.Unix()),
		uint64(reps),
		math.Float64bits(difficulty),
		math.Float64bits(stability),
	} {
		binary.LittleEndian.PutUint64(b[:], v)
		_, _ = h.Write(b[:])
	}
	return int64(h.Sum64())
}
