// Package stats reduces a director's film table into summary statistics.
package stats

import (
	"math"
	"sort"

	"filmstats/pkg/models"
)

// Summarize computes the DirectorStatistics for a film table, or nil when
// the table is empty. The input order carries no meaning, so records are
// first ordered by film identifier; every extremum then breaks ties in favor
// of the first record in identifier order, making repeated runs over the
// same data reproducible.
//
// Release years compare as strings, matching the site's 4-digit format.
// The standard deviation of watch counts is the sample deviation (n-1) and
// is absent for a single-film table. Nothing here is rounded; presentation
// rounding belongs to the output layer.
func Summarize(table models.FilmTable) *models.DirectorStatistics {
	if len(table) == 0 {
		return nil
	}

	records := make(models.FilmTable, len(table))
	copy(records, table)
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	stats := &models.DirectorStatistics{FilmCount: len(records)}

	// --- Release Year Bounds ---
	// Only non-empty years participate.
	for _, record := range records {
		year := record.ReleaseYear
		if year == "" {
			continue
		}
		if stats.EarliestReleaseYear == "" || year < stats.EarliestReleaseYear {
			stats.EarliestReleaseYear = year
		}
		if stats.LatestReleaseYear == "" || year > stats.LatestReleaseYear {
			stats.LatestReleaseYear = year
		}
	}

	// --- Watch Counts ---
	// Every record participates, including films with a degraded count of 0.
	var totalWatched int64
	for _, record := range records {
		totalWatched += int64(record.WatchedBy)
	}
	stats.TotalWatched = totalWatched
	stats.MeanWatched = float64(totalWatched) / float64(len(records))

	if len(records) >= 2 {
		var sumSquares float64
		for _, record := range records {
			diff := float64(record.WatchedBy) - stats.MeanWatched
			sumSquares += diff * diff
		}
		stdDev := math.Sqrt(sumSquares / float64(len(records)-1))
		stats.StdDevWatched = &stdDev
	}

	most, least := records[0], records[0]
	for _, record := range records[1:] {
		if record.WatchedBy > most.WatchedBy {
			most = record
		}
		if record.WatchedBy < least.WatchedBy {
			least = record
		}
	}
	stats.MostWatchedFilm = most.Title
	stats.MostWatched = int64(most.WatchedBy)
	stats.LeastWatchedFilm = least.Title
	stats.LeastWatched = int64(least.WatchedBy)

	// --- Ratings ---
	// Records without a rating are excluded here but counted everywhere else.
	var ratingSum float64
	ratingCount := 0
	for _, record := range records {
		if record.WeightedAverage == nil {
			continue
		}
		rating := *record.WeightedAverage
		ratingSum += rating
		ratingCount++

		if stats.HighestRating == nil || rating > *stats.HighestRating {
			value := rating
			stats.HighestRating = &value
			stats.HighestRatedFilm = record.Title
		}
		if stats.LowestRating == nil || rating < *stats.LowestRating {
			value := rating
			stats.LowestRating = &value
			stats.LowestRatedFilm = record.Title
		}
	}
	if ratingCount > 0 {
		mean := ratingSum / float64(ratingCount)
		stats.MeanRating = &mean
	}

	return stats
}
