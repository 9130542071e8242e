package conquest

import "math"

// KFactor controls how much a single match moves ratings.
const KFactor = 32

// DefaultRating is the rating assigned to new and guest players.
const DefaultRating = 1000

// RatingDelta computes the symmetric rating change for a match outcome.
// Every winner gains the returned delta and every loser drops by the same
// magnitude, so the update is zero-sum across the two sides.
func RatingDelta(avgWinner, avgLoser float64) int {
	expected := 1 / (1 + math.Pow(10, (avgLoser-avgWinner)/400))
	return int(math.Round(KFactor * (1 - expected)))
}

// ApplyDelta returns a rating moved by delta, floored at zero.
func ApplyDelta(rating, delta int) int {
	r := rating + delta
	if r < 0 {
		return 0
	}
	return r
}
