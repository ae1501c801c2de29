package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsGate fetches and caches the target site's robots.txt once per run
// and answers path-level allow checks. When disabled, or when robots.txt
// cannot be fetched or parsed, every path is allowed.
type RobotsGate struct {
	client    *http.Client
	baseURL   *url.URL
	userAgent string
	enabled   bool
	log       *logrus.Entry

	once sync.Once
	data *robotstxt.RobotsData // nil when unavailable
}

// NewRobotsGate creates a RobotsGate for the site rooted at baseURL.
func NewRobotsGate(client *http.Client, baseURL *url.URL, userAgent string, enabled bool, log *logrus.Entry) *RobotsGate {
	return &RobotsGate{
		client:    client,
		baseURL:   baseURL,
		userAgent: userAgent,
		enabled:   enabled,
		log:       log,
	}
}

// Allowed reports whether the user agent may fetch the given path.
// The robots.txt fetch happens lazily on the first check; a single plain GET
// with no retry, since a missing or unreachable file means allow-all anyway.
func (g *RobotsGate) Allowed(ctx context.Context, path string) bool {
	if g == nil || !g.enabled {
		return true
	}

	g.once.Do(func() { g.fetch(ctx) })

	if g.data == nil {
		return true
	}
	return g.data.TestAgent(path, g.userAgent)
}

func (g *RobotsGate) fetch(ctx context.Context) {
	robotsURL := &url.URL{Scheme: g.baseURL.Scheme, Host: g.baseURL.Host, Path: "/robots.txt"}
	robotsLog := g.log.WithField("robots_url", robotsURL.String())
	robotsLog.Info("Fetching robots.txt...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Errorf("Error creating request: %v", err)
		return
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt failed, allowing all paths: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		robotsLog.Warnf("robots.txt returned status %d, allowing all paths", resp.StatusCode)
		io.Copy(io.Discard, resp.Body)
		return
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		robotsLog.Errorf("Error reading robots.txt body: %v", err)
		return
	}

	data, err := robotstxt.FromBytes(bodyBytes)
	if err != nil {
		robotsLog.Errorf("Error parsing robots.txt content: %v", err)
		return
	}

	robotsLog.Info("Successfully fetched and parsed robots.txt")
	g.data = data
}
