package app

import (
	"math"
	"time"
)

// Score computes the points awarded for one answer. Incorrect answers earn
// nothing. Correct answers earn base * max(0.5, 1 - elapsed/limit), rounded
// down, never below 1: fast answers get full value, slow-but-correct answers
// keep at least half.
func Score(correct bool, elapsed, limit time.Duration, base int) int {
	if !correct {
		return 0
	}
	if base <= 0 {
		base = 1
	}
	if limit <= 0 {
		// Untimed question: speed cannot be rewarded.
		return base
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > limit {
		elapsed = limit
	}
	fraction := 1 - float64(elapsed)/float64(limit)
	if fraction < 0.5 {
		fraction = 0.5
	}
	points := int(math.Floor(float64(base) * fraction))
	if points < 1 {
		points = 1
	}
	return points
}
