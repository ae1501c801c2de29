package orchestrate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmstats/pkg/config"
	"filmstats/pkg/extract"
	"filmstats/pkg/fetch"
	"filmstats/pkg/models"
	"filmstats/pkg/utils"
)

const testBase = "https://letterboxd.test"

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// newTestOrchestrator wires an Orchestrator against a mock transport with a
// single fetch attempt so unavailable pages fail fast.
func newTestOrchestrator(transport *httpmock.MockTransport, directorWorkers int) *Orchestrator {
	cfg := &config.AppConfig{
		MaxAttempts:  1,
		RetryBackoff: time.Millisecond,
		UserAgent:    "filmstats-test/0.0",
	}
	client := &http.Client{Transport: transport}
	fetcher := fetch.NewFetcher(client, cfg, nil, fetch.NewRateLimiter(0, testLogger()), nil, testLogger())
	films := extract.NewFilmExtractor(fetcher, nil, nil, testBase, testLogger())
	filmographies := extract.NewFilmographyExtractor(fetcher, films, 2, nil, testLogger())
	return NewOrchestrator(filmographies, directorWorkers, nil, testLogger())
}

func filmPages(title, year, watchTitle, ratingTitle string) (detail, stats, rating string) {
	detail = fmt.Sprintf(`<html><head><meta property="og:title" content=%q/></head>`+
		`<body><div class="releaseyear"><a>%s</a></div></body></html>`, title, year)
	stats = fmt.Sprintf(`<html><body><li class="filmstat-watches"><a title=%q>n</a></li></body></html>`, watchTitle)
	rating = fmt.Sprintf(`<html><body><a class="display-rating" title=%q>r</a></body></html>`, ratingTitle)
	return detail, stats, rating
}

// registerFilm stubs the three pages of a film identified by its site path.
func registerFilm(transport *httpmock.MockTransport, id, title, year string, watched int, rating float64) {
	detail, stats, ratingBody := filmPages(
		title, year,
		fmt.Sprintf("Watched by %d members", watched),
		fmt.Sprintf("Weighted average of %.2f based on 99 ratings", rating),
	)
	transport.RegisterResponder("GET", testBase+id, httpmock.NewStringResponder(200, detail))
	transport.RegisterResponder("GET", testBase+"/csi"+id+"stats/", httpmock.NewStringResponder(200, stats))
	transport.RegisterResponder("GET", testBase+"/csi"+id+"rating-histogram/", httpmock.NewStringResponder(200, ratingBody))
}

func registerListing(transport *httpmock.MockTransport, fragment string, ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<div class="film-poster" data-target-link="%s"></div>`, id)
	}
	b.WriteString("</body></html>")

	url := testBase + "/director/" + fragment + "/films/"
	transport.RegisterResponder("GET", url, httpmock.NewStringResponder(200, b.String()))
	return url
}

func TestRun_IsolatesDirectorFailures(t *testing.T) {
	transport := httpmock.NewMockTransport()
	o := newTestOrchestrator(transport, 3)

	registerFilm(transport, "/film/one/", "One", "1990", 10, 3.5)
	registerFilm(transport, "/film/two/", "Two", "1993", 25, 4.1)
	registerFilm(transport, "/film/three/", "Three", "2005", 7, 2.8)

	goodURL := registerListing(transport, "good", "/film/one/", "/film/two/")
	otherURL := registerListing(transport, "other", "/film/three/")
	brokenURL := testBase + "/director/broken/films/"
	transport.RegisterResponder("GET", brokenURL, httpmock.NewStringResponder(500, ""))

	roster := []models.Director{
		{Name: "Good Director", FilmographyURL: goodURL},
		{Name: "Broken Director", FilmographyURL: brokenURL},
		{Name: "Other Director", FilmographyURL: otherURL},
	}

	table, results := o.Run(context.Background(), roster)

	require.Len(t, results, 3, "every director reaches a terminal outcome")

	assert.Contains(t, table, "Good Director")
	assert.Contains(t, table, "Other Director")
	assert.NotContains(t, table, "Broken Director")

	byName := map[string]DirectorResult{}
	for _, r := range results {
		byName[r.Director.Name] = r
	}
	assert.NoError(t, byName["Good Director"].Err)
	assert.Equal(t, 2, byName["Good Director"].FilmsFound)
	assert.Equal(t, 2, byName["Good Director"].FilmsExtracted)
	assert.NoError(t, byName["Other Director"].Err)
	require.Error(t, byName["Broken Director"].Err)
	assert.ErrorIs(t, byName["Broken Director"].Err, utils.ErrEmptyFilmography)
}

func TestRun_TableCarriesAggregatedStatistics(t *testing.T) {
	transport := httpmock.NewMockTransport()
	o := newTestOrchestrator(transport, 2)

	registerFilm(transport, "/film/a/", "Alpha", "1998", 10, 3.0)
	registerFilm(transport, "/film/b/", "Beta", "2004", 20, 4.5)
	registerFilm(transport, "/film/c/", "Gamma", "2011", 30, 2.0)
	url := registerListing(transport, "someone", "/film/a/", "/film/b/", "/film/c/")

	table, _ := o.Run(context.Background(), []models.Director{
		{Name: "Someone", FilmographyURL: url},
	})

	stats := table["Someone"]
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.FilmCount)
	assert.Equal(t, int64(60), stats.TotalWatched)
	assert.Equal(t, "Gamma", stats.MostWatchedFilm)
	assert.Equal(t, "Gamma", stats.LowestRatedFilm)
	assert.Equal(t, "1998", stats.EarliestReleaseYear)
	assert.Equal(t, "2011", stats.LatestReleaseYear)
}

func TestRun_EmptyRoster(t *testing.T) {
	o := newTestOrchestrator(httpmock.NewMockTransport(), 2)

	table, results := o.Run(context.Background(), nil)

	assert.Empty(t, table)
	assert.Empty(t, results)
}

func TestRun_DirectorWithNoUsableFilms(t *testing.T) {
	transport := httpmock.NewMockTransport()
	o := newTestOrchestrator(transport, 2)

	// Listing resolves, but both films are gone.
	url := registerListing(transport, "unlucky", "/film/x/", "/film/y/")
	transport.RegisterResponder("GET", testBase+"/film/x/", httpmock.NewStringResponder(404, ""))
	transport.RegisterResponder("GET", testBase+"/film/y/", httpmock.NewStringResponder(404, ""))

	table, results := o.Run(context.Background(), []models.Director{
		{Name: "Unlucky", FilmographyURL: url},
	})

	assert.Empty(t, table)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, utils.ErrEmptyFilmography)
	assert.Equal(t, 2, results[0].FilmsFound)
	assert.Equal(t, 0, results[0].FilmsExtracted)
}

func TestRun_CancelledContext(t *testing.T) {
	transport := httpmock.NewMockTransport()
	o := newTestOrchestrator(transport, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	roster := []models.Director{
		{Name: "A", FilmographyURL: testBase + "/director/a/films/"},
		{Name: "B", FilmographyURL: testBase + "/director/b/films/"},
		{Name: "C", FilmographyURL: testBase + "/director/c/films/"},
	}

	table, results := o.Run(ctx, roster)

	assert.Empty(t, table)
	require.Len(t, results, 3, "cancelled directors still get terminal results")
	for _, r := range results {
		assert.Error(t, r.Err)
	}
}
