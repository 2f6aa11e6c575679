package crawler

import (
	"bytes"
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"campus-crawler/pkg/frontier"
	"campus-crawler/pkg/models"
	"campus-crawler/pkg/process"
	"campus-crawler/pkg/storage"
	"campus-crawler/pkg/utils"
)

// progressInterval is how often discovery progress is logged.
var progressInterval = 30 * time.Second

// Discover walks the site breadth-first from the base URL and returns every
// URL fetched successfully, in completion order. It stops at max_visited pages.
// Failing pages are logged and skipped; an error is returned only when nothing
// could be fetched or ctx ended first.
func (r *CrawlRun) Discover(ctx context.Context) ([]string, error) {
	discoverLog := r.log.WithField("phase", storage.PhaseDiscover)
	f := frontier.New(r.baseURL, r.cfg.MaxVisited, discoverLog)
	r.mu.Lock()
	r.frontier = f
	r.mu.Unlock()

	workers := max(r.cfg.NumWorkers, 1)
	discoverLog.Infof("Fetching initial routes from %s with %d worker(s)", r.baseURL, workers)

	progDone := make(chan struct{})
	go r.reportProgress(f, discoverLog, progDone)

	var wg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.discoverWorker(ctx, f, discoverLog.WithField("worker_id", i))
		}()
	}
	wg.Wait()
	close(progDone)

	visited := f.Visited()
	stats := f.Stats()
	discoverLog.WithFields(logrus.Fields{"visited": stats.Visited, "failed": stats.Failed}).Infof("Found %d total routes", len(visited))

	if err := ctx.Err(); err != nil {
		return visited, fmt.Errorf("discovery interrupted after %d pages: %w", len(visited), err)
	}
	if len(visited) == 0 {
		if err, ok := f.Failures()[r.baseURL]; ok {
			return nil, fmt.Errorf("%w: %s: %w", utils.ErrNoPagesDiscovered, r.baseURL, err)
		}
		return nil, fmt.Errorf("%w: %s", utils.ErrNoPagesDiscovered, r.baseURL)
	}
	return visited, nil
}

func (r *CrawlRun) discoverWorker(ctx context.Context, f *frontier.Frontier, workerLog *logrus.Entry) {
	workerLog.Debug("Worker starting")
	defer workerLog.Debug("Worker finished")

	for {
		pageURL, ok := f.Next(ctx)
		if !ok {
			return
		}
		r.visitPage(ctx, f, pageURL, workerLog.WithField("url", pageURL))
	}
}

// visitPage fetches one reserved URL and settles it in the frontier exactly once.
func (r *CrawlRun) visitPage(ctx context.Context, f *frontier.Frontier, pageURL string, taskLog *logrus.Entry) {
	var taskErr error
	var statusCode int
	settled := false

	defer func() {
		if rec := recover(); rec != nil {
			taskErr = fmt.Errorf("panic: %v", rec)
			taskLog.WithFields(logrus.Fields{
				"panic_info":  rec,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered while exploring page")
		}
		if taskErr != nil {
			taskLog.WithField("category", utils.CategorizeError(taskErr)).Warnf("Failed to fetch page: %v", taskErr)
			r.recordStatus(storage.PhaseDiscover, pageURL, models.PageStatusFailure, statusCode, taskErr)
			if !settled {
				f.Fail(pageURL, taskErr)
			}
		}
	}()

	taskLog.Debug("Exploring")
	result := r.fetcher.Fetch(ctx, pageURL)
	statusCode = result.StatusCode
	if !result.Ok() {
		taskErr = result.Err
		return
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err != nil {
		taskErr = fmt.Errorf("%w: parsing HTML of %s: %w", utils.ErrParsing, pageURL, err)
		return
	}

	links := process.ExtractLinks(doc, r.base, taskLog)
	f.Complete(pageURL, links)
	settled = true
	r.recordStatus(storage.PhaseDiscover, pageURL, models.PageStatusSuccess, statusCode, nil)
}

// reportProgress logs frontier counters until done is closed.
func (r *CrawlRun) reportProgress(f *frontier.Frontier, log *logrus.Entry, done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s := f.Stats()
			log.WithFields(logrus.Fields{
				"visited":   s.Visited,
				"failed":    s.Failed,
				"pending":   s.Pending,
				"in_flight": s.InFlight,
			}).Info("Crawl Progress")
		}
	}
}
