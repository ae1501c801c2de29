package models

import "time"

// Director identifies one director to collect statistics for
type Director struct {
	Name           string // Unique key in the output table; duplicates overwrite
	FilmographyURL string // Absolute URL of the director's filmography listing page
}

// FilmID is the opaque path slug identifying a film on the source site
// (e.g. "/film/seven-samurai/"). The three per-film page URLs are derived
// from it.
type FilmID string

// FilmRecord holds the fields extracted for a single film. A record exists
// only when both Title and ReleaseYear were extracted successfully; WatchedBy
// and WeightedAverage degrade independently. Records are immutable once built.
type FilmRecord struct {
	ID              FilmID   `json:"id"`
	Title           string   `json:"title"`
	ReleaseYear     string   `json:"release_year"`               // Kept as string; compared lexically downstream
	WatchedBy       int      `json:"watched_by"`                 // Never negative; 0 when the stats page is missing
	WeightedAverage *float64 `json:"weighted_average,omitempty"` // In [0,5] when present; nil when the rating page is missing
}

// FilmTable collects the successfully extracted records for one director.
// Order reflects concurrent completion and carries no meaning.
type FilmTable []FilmRecord

// DirectorStatistics is the derived summary of one director's FilmTable.
// Floats are unrounded; presentation formatting happens in the output layer.
type DirectorStatistics struct {
	FilmCount           int
	EarliestReleaseYear string // Lexical min over non-empty years; "" if none
	LatestReleaseYear   string // Lexical max over non-empty years; "" if none
	MeanRating          *float64
	TotalWatched        int64
	MeanWatched         float64
	StdDevWatched       *float64 // Sample (n-1) deviation; nil when FilmCount < 2

	// Rating extrema consider only records with a rating; all nil when no
	// record carries one.
	HighestRatedFilm string
	HighestRating    *float64
	LowestRatedFilm  string
	LowestRating     *float64

	// Watch-count extrema consider every record.
	MostWatchedFilm  string
	MostWatched      int64
	LeastWatchedFilm string
	LeastWatched     int64
}

// OutputTable maps director name to the statistics record produced for it.
// Directors without a single extracted film never appear.
type OutputTable map[string]*DirectorStatistics

// FilmDBEntry is the persisted cache value for one extracted film
type FilmDBEntry struct {
	Record    *FilmRecord `json:"record"`
	FetchedAt time.Time   `json:"fetched_at"`
}
