// Package extract turns the site's pages into typed records. A film is
// described by three pages (detail, stats, rating histogram) and a director
// by one listing page; everything else about the site is out of scope.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"filmstats/pkg/fetch"
	"filmstats/pkg/metrics"
	"filmstats/pkg/models"
	"filmstats/pkg/storage"
	"filmstats/pkg/utils"
)

var (
	nonDigits     = regexp.MustCompile(`[^\d]`)
	ratingPattern = regexp.MustCompile(`(\d\.\d+)`)
)

// FilmExtractor resolves a film identifier into a FilmRecord by fetching and
// parsing the film's three pages. The detail page is mandatory: without a
// title and release year there is nothing worth recording, so the stats and
// rating pages are not fetched at all. Those two degrade independently on
// failure (watch count to 0, weighted average to absent) instead of sinking
// the record.
type FilmExtractor struct {
	fetcher *fetch.Fetcher
	cache   storage.FilmCache // may be nil
	metrics *metrics.Metrics
	baseURL string
	log     *logrus.Entry
}

// NewFilmExtractor creates a FilmExtractor. cache and m may be nil.
func NewFilmExtractor(fetcher *fetch.Fetcher, cache storage.FilmCache, m *metrics.Metrics, baseURL string, log *logrus.Entry) *FilmExtractor {
	return &FilmExtractor{
		fetcher: fetcher,
		cache:   cache,
		metrics: m,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// The identifier is the site-relative film path (with leading slash), so the
// detail URL is plain concatenation and the auxiliary pages live under /csi.
func (e *FilmExtractor) detailURL(id models.FilmID) string {
	return e.baseURL + string(id)
}

func (e *FilmExtractor) statsURL(id models.FilmID) string {
	return e.baseURL + "/csi" + string(id) + "stats/"
}

func (e *FilmExtractor) ratingURL(id models.FilmID) string {
	return e.baseURL + "/csi" + string(id) + "rating-histogram/"
}

// ExtractFilm produces the FilmRecord for id, or an error when the film
// cannot be recorded. Errors never escape as panics: any unexpected parsing
// panic is recovered and reported as an extraction failure for this film
// only, so sibling extractions keep running.
func (e *FilmExtractor) ExtractFilm(ctx context.Context, id models.FilmID) (record *models.FilmRecord, err error) {
	filmLog := e.log.WithField("film", string(id))

	defer func() {
		if r := recover(); r != nil {
			filmLog.Errorf("PANIC during film extraction: %v\nStack:\n%s", r, debug.Stack())
			record = nil
			err = fmt.Errorf("%w: panic extracting %s: %v", utils.ErrParsing, id, r)
		}
	}()

	// --- Cache Lookup ---
	if e.cache != nil {
		cached, found, cacheErr := e.cache.Get(id)
		switch {
		case cacheErr != nil:
			filmLog.Warnf("Cache lookup failed, extracting from site: %v", cacheErr)
		case found:
			e.metrics.IncCacheHit()
			filmLog.Debug("Film served from cache")
			return cached, nil
		default:
			e.metrics.IncCacheMiss()
		}
	}

	// --- Detail Page (mandatory) ---
	detailBody, fetchErr := e.fetcher.FetchPage(ctx, e.detailURL(id))
	if fetchErr != nil {
		return nil, fetchErr
	}

	title, year, parseErr := parseDetail(detailBody)
	if parseErr != nil {
		return nil, utils.WrapErrorf(utils.ErrMissingField, "detail page of %s: %v", id, parseErr)
	}

	record = &models.FilmRecord{
		ID:          id,
		Title:       title,
		ReleaseYear: year,
	}

	// --- Stats Page (degrades to 0) ---
	record.WatchedBy = e.extractWatchCount(ctx, id, filmLog)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// A record finished under a dying context may carry degraded
		// fields that are really cancellation artifacts. Drop it.
		return nil, ctxErr
	}

	// --- Rating Page (degrades to absent) ---
	record.WeightedAverage = e.extractRating(ctx, id, filmLog)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if e.cache != nil {
		if putErr := e.cache.Put(record); putErr != nil {
			filmLog.Warnf("Failed to cache film record: %v", putErr)
		}
	}
	e.metrics.IncFilmExtracted()
	filmLog.WithFields(logrus.Fields{
		"title": record.Title,
		"year":  record.ReleaseYear,
	}).Debug("Film extracted")
	return record, nil
}

// parseDetail pulls the title and release year off the detail page. Both are
// required; an empty value counts as missing.
func parseDetail(body []byte) (title, year string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("HTML parse: %v", err)
	}

	title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).First().AttrOr("content", ""))
	year = strings.TrimSpace(doc.Find("div.releaseyear a").First().Text())

	switch {
	case title == "" && year == "":
		return "", "", fmt.Errorf("no title meta tag and no release year element")
	case title == "":
		return "", "", fmt.Errorf("no title meta tag")
	case year == "":
		return "", "", fmt.Errorf("no release year element")
	}
	return title, year, nil
}

// extractWatchCount resolves the film's watch count from its stats page.
// Every failure mode (page unavailable, element missing, malformed digits)
// collapses to 0: the site renders zero watchers and an absent stats block
// identically as far as this extractor can tell.
func (e *FilmExtractor) extractWatchCount(ctx context.Context, id models.FilmID, filmLog *logrus.Entry) int {
	body, err := e.fetcher.FetchPage(ctx, e.statsURL(id))
	if err != nil {
		filmLog.Debugf("Stats page unavailable, watch count defaults to 0: %v", err)
		return 0
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		filmLog.Warnf("Stats page unparsable, watch count defaults to 0: %v", err)
		return 0
	}

	attr, ok := doc.Find("li.filmstat-watches a").First().Attr("title")
	if !ok {
		return 0
	}

	count, err := parseWatchCount(attr)
	if err != nil {
		filmLog.Warnf("Watch count defaults to 0: %v", err)
		return 0
	}
	return count
}

// parseWatchCount reads a count like "Watched by 1,234,567 members" by
// stripping everything that is not a digit.
func parseWatchCount(attr string) (int, error) {
	digits := nonDigits.ReplaceAllString(attr, "")
	if digits == "" {
		return 0, utils.WrapErrorf(utils.ErrMalformedNumeric, "no digits in watch count %q", attr)
	}
	count, err := strconv.Atoi(digits)
	if err != nil {
		return 0, utils.WrapErrorf(utils.ErrMalformedNumeric, "watch count %q: %v", attr, err)
	}
	return count, nil
}

// extractRating resolves the film's weighted average from its rating
// histogram page. Any failure leaves the rating absent; a film without
// enough ratings simply has no display-rating element.
func (e *FilmExtractor) extractRating(ctx context.Context, id models.FilmID, filmLog *logrus.Entry) *float64 {
	body, err := e.fetcher.FetchPage(ctx, e.ratingURL(id))
	if err != nil {
		filmLog.Debugf("Rating page unavailable, weighted average absent: %v", err)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		filmLog.Warnf("Rating page unparsable, weighted average absent: %v", err)
		return nil
	}

	attr, ok := doc.Find("a.display-rating").First().Attr("title")
	if !ok {
		return nil
	}

	rating, err := parseWeightedAverage(attr)
	if err != nil {
		filmLog.Warnf("Weighted average absent: %v", err)
		return nil
	}
	return &rating
}

// parseWeightedAverage reads the first decimal number out of a tooltip like
// "Weighted average of 4.23 based on 1,024 ratings". The site's scale is
// 0 to 5; anything outside it is rejected as malformed.
func parseWeightedAverage(attr string) (float64, error) {
	match := ratingPattern.FindStringSubmatch(attr)
	if match == nil {
		return 0, utils.WrapErrorf(utils.ErrMalformedNumeric, "no decimal rating in %q", attr)
	}
	rating, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, utils.WrapErrorf(utils.ErrMalformedNumeric, "rating %q: %v", match[1], err)
	}
	if rating < 0 || rating > 5 {
		return 0, utils.WrapErrorf(utils.ErrMalformedNumeric, "rating %v outside the 0-5 scale", rating)
	}
	return rating, nil
}
