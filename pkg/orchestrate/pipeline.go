package orchestrate

import (
	"context"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"filmstats/pkg/config"
	"filmstats/pkg/directors"
	"filmstats/pkg/extract"
	"filmstats/pkg/fetch"
	"filmstats/pkg/metrics"
	"filmstats/pkg/output"
	"filmstats/pkg/storage"
	"filmstats/pkg/utils"
)

// Pipeline wires the full stack for statistics runs: HTTP client, fetcher,
// film cache, extractors, orchestrator and output writer. One Pipeline
// serves any number of sequential runs, which is what watch mode relies on.
type Pipeline struct {
	cfg     *config.AppConfig
	metrics *metrics.Metrics
	log     *logrus.Entry

	cache        storage.FilmCache
	badgerCache  *storage.BadgerCache // nil when the persistent cache is disabled
	orchestrator *Orchestrator
	writer       *output.CSVWriter
}

// NewPipeline builds a Pipeline from validated configuration. fresh discards
// any persisted film cache before the first run. m may be nil.
func NewPipeline(cfg *config.AppConfig, m *metrics.Metrics, fresh bool, log *logrus.Entry) (*Pipeline, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrConfigValidation, "base URL %q: %v", cfg.BaseURL, err)
	}

	client := fetch.NewClient(cfg.HTTPClientSettings, log.WithField("component", "http"))
	robots := fetch.NewRobotsGate(client, baseURL, cfg.UserAgent, cfg.RespectRobots, log.WithField("component", "robots"))
	limiter := fetch.NewRateLimiter(cfg.RequestDelay, log.WithField("component", "ratelimit"))
	fetcher := fetch.NewFetcher(client, cfg, robots, limiter, m, log.WithField("component", "fetch"))

	var cache storage.FilmCache
	var badgerCache *storage.BadgerCache
	if cfg.CacheEnabled {
		badgerCache, err = storage.NewBadgerCache(cfg.StateDir, baseURL.Host, cfg.CacheTTL, fresh, log.WithField("component", "cache"))
		if err != nil {
			return nil, err
		}
		memoryCache, err := storage.NewMemoryCache(cfg.CacheMaxEntries, badgerCache, log.WithField("component", "cache"))
		if err != nil {
			badgerCache.Close()
			return nil, err
		}
		cache = memoryCache
	}

	films := extract.NewFilmExtractor(fetcher, cache, m, cfg.BaseURL, log.WithField("component", "films"))
	filmographies := extract.NewFilmographyExtractor(fetcher, films, cfg.FilmWorkers, m, log.WithField("component", "filmography"))
	orchestrator := NewOrchestrator(filmographies, cfg.DirectorWorkers, m, log.WithField("component", "orchestrate"))
	writer := output.NewCSVWriter(cfg.OutputFile, log.WithField("component", "output"))

	return &Pipeline{
		cfg:          cfg,
		metrics:      m,
		log:          log,
		cache:        cache,
		badgerCache:  badgerCache,
		orchestrator: orchestrator,
		writer:       writer,
	}, nil
}

// Execute performs one full run: load the roster, process every director,
// write the output file. The output is written even when every director
// failed; an empty table is a valid outcome. The returned results cover all
// directors on the roster.
func (p *Pipeline) Execute(ctx context.Context) ([]DirectorResult, error) {
	startTime := time.Now()

	roster, err := directors.Load(p.cfg.DirectorsFile, p.cfg.BaseURL, p.log)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		p.log.Warn("Director roster is empty; the output will hold only the header")
	}

	table, results := p.orchestrator.Run(ctx, roster)

	if err := p.writer.Write(table); err != nil {
		return results, err
	}

	p.metrics.ObserveRunDuration(time.Since(startTime))
	return results, nil
}

// StartCacheGC launches the cache's value log GC loop for long-lived
// processes. No-op when the persistent cache is disabled.
func (p *Pipeline) StartCacheGC(ctx context.Context) {
	if p.badgerCache == nil {
		return
	}
	go p.badgerCache.RunGC(ctx, p.cfg.CacheGCInterval)
}

// CachedFilms reports how many film records the cache currently holds.
func (p *Pipeline) CachedFilms() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}

// OutputPath returns where Execute writes its table.
func (p *Pipeline) OutputPath() string {
	return p.writer.Path()
}

// Close releases the film cache.
func (p *Pipeline) Close() error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Close()
}
