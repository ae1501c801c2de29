package storage

import "filmstats/pkg/models"

// FilmCache is the persistence boundary for extracted film records. A hit
// returns the cached record; a miss returns (nil, false, nil) and the caller
// is expected to extract the film from the site.
type FilmCache interface {
	Get(id models.FilmID) (*models.FilmRecord, bool, error)
	Put(record *models.FilmRecord) error

	// Len returns the number of cached records.
	Len() int

	Close() error
}
