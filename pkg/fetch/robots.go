package fetch

import (
	"context"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"campus-crawler/pkg/parse"
)

// RobotsHandler fetches, caches and checks robots.txt per origin
type RobotsHandler struct {
	fetcher     *Fetcher
	userAgent   string
	robotsCache map[string]*robotstxt.RobotsData // origin -> parsed data (nil = allow all)
	cacheMu     sync.Mutex
	log         *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler that fetches through fetcher
func NewRobotsHandler(fetcher *Fetcher, userAgent string, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:     fetcher,
		userAgent:   userAgent,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		log:         log,
	}
}

// GetRobotsData returns the parsed robots.txt for the target's origin, fetching it on first use.
// Returns nil when the file is missing or could not be fetched or parsed.
func (rh *RobotsHandler) GetRobotsData(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	origin := parse.Origin(target)

	rh.cacheMu.Lock()
	data, found := rh.robotsCache[origin]
	rh.cacheMu.Unlock()
	if found {
		return data
	}

	robotsURL := &url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}
	robotsLog := rh.log.WithField("robots_url", robotsURL.String())
	robotsLog.Info("Fetching robots.txt")

	raw, err := rh.fetcher.fetchBody(ctx, robotsURL, "text/plain,*/*;q=0.5")
	if err != nil {
		robotsLog.Warnf("robots.txt unavailable, allowing all: %v", err)
		rh.store(origin, nil)
		return nil
	}

	data, err = robotstxt.FromStatusAndBytes(raw.statusCode, raw.body)
	if err != nil {
		robotsLog.Warnf("Error parsing robots.txt, allowing all: %v", err)
		rh.store(origin, nil)
		return nil
	}
	robotsLog.Info("Parsed robots.txt")
	rh.store(origin, data)
	return data
}

// Allowed reports whether the configured user agent may fetch target.
// Missing or unreadable robots.txt allows everything.
func (rh *RobotsHandler) Allowed(ctx context.Context, target *url.URL) bool {
	data := rh.GetRobotsData(ctx, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.RequestURI(), rh.userAgent)
}

func (rh *RobotsHandler) store(origin string, data *robotstxt.RobotsData) {
	rh.cacheMu.Lock()
	rh.robotsCache[origin] = data
	rh.cacheMu.Unlock()
}
