package stats

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmstats/pkg/models"
)

func ratingOf(v float64) *float64 {
	return &v
}

func TestSummarize_KnownTable(t *testing.T) {
	table := models.FilmTable{
		{ID: "/film/a/", Title: "Alpha", ReleaseYear: "1998", WatchedBy: 10, WeightedAverage: ratingOf(3.0)},
		{ID: "/film/b/", Title: "Beta", ReleaseYear: "2004", WatchedBy: 20, WeightedAverage: ratingOf(4.5)},
		{ID: "/film/c/", Title: "Gamma", ReleaseYear: "2011", WatchedBy: 30, WeightedAverage: ratingOf(2.0)},
	}

	stats := Summarize(table)
	require.NotNil(t, stats)

	assert.Equal(t, 3, stats.FilmCount)
	assert.Equal(t, "1998", stats.EarliestReleaseYear)
	assert.Equal(t, "2011", stats.LatestReleaseYear)

	require.NotNil(t, stats.MeanRating)
	assert.InDelta(t, 3.1666666, *stats.MeanRating, 1e-6)
	// Presentation rounds to 2 decimals; the fixture mean must land on 3.17.
	assert.Equal(t, "3.17", fmt.Sprintf("%.2f", *stats.MeanRating))

	assert.Equal(t, int64(60), stats.TotalWatched)
	assert.InDelta(t, 20.0, stats.MeanWatched, 1e-9)
	require.NotNil(t, stats.StdDevWatched)
	assert.InDelta(t, 10.0, *stats.StdDevWatched, 1e-9) // sample deviation of 10,20,30

	assert.Equal(t, "Beta", stats.HighestRatedFilm)
	assert.InDelta(t, 4.5, *stats.HighestRating, 1e-9)
	assert.Equal(t, "Gamma", stats.LowestRatedFilm)
	assert.InDelta(t, 2.0, *stats.LowestRating, 1e-9)

	assert.Equal(t, "Gamma", stats.MostWatchedFilm)
	assert.Equal(t, int64(30), stats.MostWatched)
	assert.Equal(t, "Alpha", stats.LeastWatchedFilm)
	assert.Equal(t, int64(10), stats.LeastWatched)
}

func TestSummarize_EmptyTable(t *testing.T) {
	assert.Nil(t, Summarize(nil))
	assert.Nil(t, Summarize(models.FilmTable{}))
}

func TestSummarize_SingleFilm(t *testing.T) {
	table := models.FilmTable{
		{ID: "/film/solo/", Title: "Solo", ReleaseYear: "1977", WatchedBy: 42, WeightedAverage: ratingOf(3.8)},
	}

	stats := Summarize(table)
	require.NotNil(t, stats)

	assert.Equal(t, 1, stats.FilmCount)
	assert.Nil(t, stats.StdDevWatched, "single film has no sample deviation")
	assert.Equal(t, "1977", stats.EarliestReleaseYear)
	assert.Equal(t, "1977", stats.LatestReleaseYear)
	assert.Equal(t, "Solo", stats.MostWatchedFilm)
	assert.Equal(t, "Solo", stats.LeastWatchedFilm)
	assert.Equal(t, int64(42), stats.TotalWatched)
	assert.InDelta(t, 42.0, stats.MeanWatched, 1e-9)
}

func TestSummarize_AbsentRatingsExcludedFromRatingStats(t *testing.T) {
	table := models.FilmTable{
		{ID: "/film/a/", Title: "Rated A", ReleaseYear: "1990", WatchedBy: 100, WeightedAverage: ratingOf(4.0)},
		{ID: "/film/b/", Title: "Unrated", ReleaseYear: "1992", WatchedBy: 999, WeightedAverage: nil},
		{ID: "/film/c/", Title: "Rated C", ReleaseYear: "1994", WatchedBy: 50, WeightedAverage: ratingOf(2.0)},
	}

	stats := Summarize(table)
	require.NotNil(t, stats)

	// Rating stats ignore the unrated film entirely
	require.NotNil(t, stats.MeanRating)
	assert.InDelta(t, 3.0, *stats.MeanRating, 1e-9)
	assert.Equal(t, "Rated A", stats.HighestRatedFilm)
	assert.Equal(t, "Rated C", stats.LowestRatedFilm)

	// Everything else still counts it
	assert.Equal(t, 3, stats.FilmCount)
	assert.Equal(t, int64(1149), stats.TotalWatched)
	assert.Equal(t, "Unrated", stats.MostWatchedFilm)
	assert.Equal(t, int64(999), stats.MostWatched)
}

func TestSummarize_AllRatingsAbsent(t *testing.T) {
	table := models.FilmTable{
		{ID: "/film/a/", Title: "A", ReleaseYear: "2000", WatchedBy: 5},
		{ID: "/film/b/", Title: "B", ReleaseYear: "2001", WatchedBy: 7},
	}

	stats := Summarize(table)
	require.NotNil(t, stats, "a table without ratings still summarizes")

	assert.Nil(t, stats.MeanRating)
	assert.Nil(t, stats.HighestRating)
	assert.Nil(t, stats.LowestRating)
	assert.Empty(t, stats.HighestRatedFilm)
	assert.Empty(t, stats.LowestRatedFilm)

	assert.Equal(t, 2, stats.FilmCount)
	assert.Equal(t, int64(12), stats.TotalWatched)
	assert.Equal(t, "B", stats.MostWatchedFilm)
}

func TestSummarize_YearsCompareAsStrings(t *testing.T) {
	// Lexical ordering: "999" sorts after "1001". Deliberately preserved
	// behavior; the site always serves 4-digit years, where lexical and
	// numeric ordering agree.
	table := models.FilmTable{
		{ID: "/film/old/", Title: "Old", ReleaseYear: "999", WatchedBy: 1},
		{ID: "/film/new/", Title: "New", ReleaseYear: "1001", WatchedBy: 1},
	}

	stats := Summarize(table)
	require.NotNil(t, stats)
	assert.Equal(t, "1001", stats.EarliestReleaseYear)
	assert.Equal(t, "999", stats.LatestReleaseYear)
}

func TestSummarize_EmptyYearsSkipped(t *testing.T) {
	table := models.FilmTable{
		{ID: "/film/a/", Title: "A", ReleaseYear: "", WatchedBy: 1},
		{ID: "/film/b/", Title: "B", ReleaseYear: "2005", WatchedBy: 2},
	}

	stats := Summarize(table)
	require.NotNil(t, stats)
	assert.Equal(t, "2005", stats.EarliestReleaseYear)
	assert.Equal(t, "2005", stats.LatestReleaseYear)
}

func TestSummarize_TieBreakByIdentifier(t *testing.T) {
	table := models.FilmTable{
		{ID: "/film/zeta/", Title: "Zeta", ReleaseYear: "2001", WatchedBy: 10, WeightedAverage: ratingOf(4.0)},
		{ID: "/film/alpha/", Title: "Alpha", ReleaseYear: "2002", WatchedBy: 10, WeightedAverage: ratingOf(4.0)},
	}

	stats := Summarize(table)
	require.NotNil(t, stats)

	// Equal ratings and equal watch counts: the film whose identifier sorts
	// first wins every extremum.
	assert.Equal(t, "Alpha", stats.HighestRatedFilm)
	assert.Equal(t, "Alpha", stats.LowestRatedFilm)
	assert.Equal(t, "Alpha", stats.MostWatchedFilm)
	assert.Equal(t, "Alpha", stats.LeastWatchedFilm)
}

func TestSummarize_OrderIndependent(t *testing.T) {
	forward := models.FilmTable{
		{ID: "/film/a/", Title: "A", ReleaseYear: "1990", WatchedBy: 13, WeightedAverage: ratingOf(3.3)},
		{ID: "/film/b/", Title: "B", ReleaseYear: "1991", WatchedBy: 29, WeightedAverage: ratingOf(4.1)},
		{ID: "/film/c/", Title: "C", ReleaseYear: "1992", WatchedBy: 7, WeightedAverage: ratingOf(2.9)},
	}
	reversed := models.FilmTable{forward[2], forward[1], forward[0]}

	a := Summarize(forward)
	b := Summarize(reversed)
	require.NotNil(t, a)
	require.NotNil(t, b)

	// Identical down to the float bits: reduction always happens in
	// identifier order regardless of the table's arrival order.
	assert.Equal(t, a, b)
}
