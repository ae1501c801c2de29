package extract

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"filmstats/pkg/fetch"
	"filmstats/pkg/metrics"
	"filmstats/pkg/models"
	"filmstats/pkg/utils"
)

// FilmographyExtractor resolves one director into a FilmTable: fetch the
// listing page, discover film identifiers off the poster elements, then fan
// the film extractor out over a bounded pool. Failed films are dropped from
// the table; only the diagnostics and metrics see them.
type FilmographyExtractor struct {
	fetcher     *fetch.Fetcher
	films       *FilmExtractor
	filmWorkers int64
	metrics     *metrics.Metrics
	log         *logrus.Entry
}

// NewFilmographyExtractor creates a FilmographyExtractor limiting concurrent
// film extractions per director to filmWorkers.
func NewFilmographyExtractor(fetcher *fetch.Fetcher, films *FilmExtractor, filmWorkers int, m *metrics.Metrics, log *logrus.Entry) *FilmographyExtractor {
	return &FilmographyExtractor{
		fetcher:     fetcher,
		films:       films,
		filmWorkers: int64(filmWorkers),
		metrics:     m,
		log:         log,
	}
}

// ExtractFilmography returns the director's FilmTable together with the
// number of films discovered on the listing page. The table holds only
// successfully extracted films, in completion order; callers must not read
// meaning into that order. An error wrapping utils.ErrEmptyFilmography means
// the director produced nothing usable.
func (e *FilmographyExtractor) ExtractFilmography(ctx context.Context, director models.Director) (models.FilmTable, int, error) {
	dirLog := e.log.WithField("director", director.Name)

	body, err := e.fetcher.FetchPage(ctx, director.FilmographyURL)
	if err != nil {
		return nil, 0, utils.WrapErrorf(utils.ErrEmptyFilmography, "listing page for %s: %v", director.Name, err)
	}

	ids, err := parseFilmIDs(body)
	if err != nil {
		return nil, 0, utils.WrapErrorf(utils.ErrEmptyFilmography, "listing page for %s: %v", director.Name, err)
	}
	if len(ids) == 0 {
		return nil, 0, utils.WrapErrorf(utils.ErrEmptyFilmography, "no film posters on %s", director.FilmographyURL)
	}
	dirLog.Infof("Discovered %d films", len(ids))

	// --- Film Fan-Out ---
	sem := semaphore.NewWeighted(e.filmWorkers)
	var wg sync.WaitGroup
	var tableMu sync.Mutex
	table := make(models.FilmTable, 0, len(ids))

	for _, id := range ids {
		if acquireErr := sem.Acquire(ctx, 1); acquireErr != nil {
			dirLog.Warnf("Stopping film fan-out: %v", acquireErr)
			break
		}
		wg.Add(1)
		go func(id models.FilmID) {
			defer wg.Done()
			defer sem.Release(1)

			record, extractErr := e.films.ExtractFilm(ctx, id)
			if extractErr != nil {
				category := utils.CategorizeError(extractErr)
				e.metrics.IncFilmFailed(category)
				dirLog.WithFields(logrus.Fields{
					"film":     string(id),
					"category": category,
				}).Warnf("Film dropped: %v", extractErr)
				return
			}

			tableMu.Lock()
			table = append(table, *record)
			tableMu.Unlock()
		}(id)
	}
	wg.Wait()

	if len(table) == 0 {
		return nil, len(ids), utils.WrapErrorf(utils.ErrEmptyFilmography, "all %d films failed for %s", len(ids), director.Name)
	}
	dirLog.Infof("Extracted %d of %d films", len(table), len(ids))
	return table, len(ids), nil
}

// parseFilmIDs scans the listing page for poster elements and reads the film
// identifier off each one's data attribute. Duplicates are discovered once.
func parseFilmIDs(body []byte) ([]models.FilmID, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "listing HTML: %v", err)
	}

	seen := make(map[models.FilmID]struct{})
	var ids []models.FilmID
	doc.Find("div.film-poster").Each(func(_ int, sel *goquery.Selection) {
		link := strings.TrimSpace(sel.AttrOr("data-target-link", ""))
		if link == "" {
			return
		}
		id := models.FilmID(link)
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids, nil
}
