package query

import (
	"math/rand/v2"
	"slices"

	"github.com/sakif/moviebrain/internal/model"
)

// Stats summarizes the ratings of a view.
type Stats struct {
	Count   int
	Average float64
	Median  float64
	Best    []model.Entry // every entry sharing the highest rating, by title
	Worst   []model.Entry // every entry sharing the lowest rating, by title
}

// ComputeStats returns the rating statistics of view. ok is false for an
// empty view, which has no average.
func ComputeStats(view model.View) (stats Stats, ok bool) {
	if len(view) == 0 {
		return Stats{}, false
	}

	entries := Entries(view)
	ratings := make([]float64, 0, len(entries))
	var sum float64
	for _, e := range entries {
		ratings = append(ratings, e.Rating)
		sum += e.Rating
	}
	slices.Sort(ratings)

	n := len(ratings)
	stats.Count = n
	stats.Average = sum / float64(n)
	if n%2 == 1 {
		stats.Median = ratings[n/2]
	} else {
		stats.Median = (ratings[n/2-1] + ratings[n/2]) / 2
	}

	lo, hi := ratings[0], ratings[n-1]
	for _, e := range entries {
		if e.Rating == hi {
			stats.Best = append(stats.Best, e)
		}
		if e.Rating == lo {
			stats.Worst = append(stats.Worst, e)
		}
	}
	return stats, true
}

// Random picks one entry uniformly. ok is false for an empty view.
func Random(view model.View, rng *rand.Rand) (model.Entry, bool) {
	if len(view) == 0 {
		return model.Entry{}, false
	}
	entries := Entries(view)
	return entries[rng.IntN(len(entries))], true
}
