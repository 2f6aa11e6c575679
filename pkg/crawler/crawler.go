package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"campus-crawler/pkg/config"
	"campus-crawler/pkg/fetch"
	"campus-crawler/pkg/frontier"
	"campus-crawler/pkg/models"
	"campus-crawler/pkg/parse"
	"campus-crawler/pkg/process"
	"campus-crawler/pkg/storage"
	"campus-crawler/pkg/utils"
)

const successMessage = "Scraping completed successfully"

// PageFetcher fetches one page. *fetch.Fetcher is the production implementation.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) models.FetchResult
}

// Deps are the collaborators of a run. Nil fields get defaults built from the config;
// a nil Store disables state tracking.
type Deps struct {
	Fetcher   PageFetcher
	Store     storage.CrawlStore
	Tokenizer *process.Tokenizer
}

// Progress is a snapshot of a run for status reporting.
type Progress struct {
	RunID          string          `json:"run_id"`
	State          models.RunState `json:"state"`
	Visited        int             `json:"visited"`
	Pending        int             `json:"pending"`
	InFlight       int             `json:"in_flight"`
	DiscoverFailed int             `json:"discover_failed"`
	RoutesTotal    int             `json:"routes_total"`
	RoutesDone     int64           `json:"routes_done"`
}

// CrawlRun is one discovery-then-extract pass over the configured site.
// It is not reusable: call Run once.
type CrawlRun struct {
	id        string
	cfg       *config.AppConfig
	base      *url.URL
	baseURL   string // canonical origin, the frontier seed
	fetcher   PageFetcher
	store     storage.CrawlStore
	filter    *process.RouteFilter
	tokenizer *process.Tokenizer
	log       *logrus.Entry

	mu          sync.Mutex
	state       models.RunState
	frontier    *frontier.Frontier
	routesTotal int

	routesDone  atomic.Int64
	failedPages atomic.Int64
	emptyPages  atomic.Int64
}

// New prepares a run. cfg must already be validated.
func New(cfg *config.AppConfig, deps Deps, baseLogger *logrus.Entry) (*CrawlRun, error) {
	baseURL, base, err := parse.ParseAndNormalize(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base_url '%s': %w", utils.ErrConfigValidation, cfg.BaseURL, err)
	}

	id := uuid.NewString()
	logger := baseLogger.WithField("run_id", id)

	filter, err := process.NewRouteFilter(cfg.IgnoredRoutes, cfg.DisallowedPathPatterns, logger)
	if err != nil {
		return nil, fmt.Errorf("compiling route filter: %w", err)
	}
	if len(cfg.DisallowedPathPatterns) > 0 {
		logger.Infof("Compiled %d disallowed path patterns.", len(cfg.DisallowedPathPatterns))
	}

	r := &CrawlRun{
		id:        id,
		cfg:       cfg,
		base:      base,
		baseURL:   baseURL,
		fetcher:   deps.Fetcher,
		store:     deps.Store,
		filter:    filter,
		tokenizer: deps.Tokenizer,
		log:       logger,
		state:     models.RunStateIdle,
	}

	if r.fetcher == nil {
		r.fetcher = fetch.NewFetcher(fetch.NewClient(cfg.HTTPClientSettings, logger), cfg, logger)
	}
	if r.tokenizer == nil && cfg.TokenizerEncoding != "" {
		tok, err := process.NewTokenizer(cfg.TokenizerEncoding)
		if err != nil {
			logger.Warnf("Failed to initialize tokenizer with encoding '%s': %v. Token counts will use estimates.", cfg.TokenizerEncoding, err)
		} else {
			r.tokenizer = tok
		}
	}
	return r, nil
}

// ID returns the run id used in logs, metadata and the state store.
func (r *CrawlRun) ID() string { return r.id }

// State returns the current phase.
func (r *CrawlRun) State() models.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Progress returns a snapshot of the run.
func (r *CrawlRun) Progress() Progress {
	r.mu.Lock()
	p := Progress{RunID: r.id, State: r.state, RoutesTotal: r.routesTotal}
	f := r.frontier
	r.mu.Unlock()

	if f != nil {
		s := f.Stats()
		p.Visited, p.Pending, p.InFlight, p.DiscoverFailed = s.Visited, s.Pending, s.InFlight, s.Failed
	}
	p.RoutesDone = r.routesDone.Load()
	return p
}

func (r *CrawlRun) setState(s models.RunState) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()
	r.log.WithFields(logrus.Fields{"from": prev, "to": s}).Debug("Run state changed")
}

// Run executes the whole pipeline: discover, filter, fetch and extract each
// route, then write the corpus. It never panics; every failure is reported in
// the returned result and leaves any previous corpus file untouched.
func (r *CrawlRun) Run(ctx context.Context) (res models.RunResult) {
	res = models.RunResult{RunID: r.id, StartedAt: time.Now(), OutputFile: r.cfg.OutputFile}
	runLog := r.log.WithField("base_url", r.baseURL)
	runLog.Infof("Crawl starting with %d worker(s)...", r.cfg.NumWorkers)

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			runLog.WithFields(logrus.Fields{
				"panic_info":  rec,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in crawl run")
			r.fail(&res, err)
		}
		res.Duration = time.Since(res.StartedAt)
		r.finish(&res, runLog)
	}()

	if r.cfg.GlobalCrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.GlobalCrawlTimeout)
		defer cancel()
	}

	if r.store != nil {
		if err := r.store.ResetPages(); err != nil {
			runLog.Warnf("Could not clear previous page states: %v", err)
		}
	}

	// DISCOVERING
	r.setState(models.RunStateDiscovering)
	visited, err := r.Discover(ctx)
	res.Discovered = len(visited)
	if err != nil {
		r.fail(&res, err)
		return res
	}

	// FILTERING
	r.setState(models.RunStateFiltering)
	routes := make([]string, 0, len(visited))
	for _, pageURL := range visited {
		if route := parse.ToRoute(pageURL, r.baseURL); route != "" {
			routes = append(routes, route)
		}
	}
	kept, rejected := r.filter.Filter(routes)
	res.Filtered = len(rejected)
	runLog.WithFields(logrus.Fields{"routes": len(routes), "kept": len(kept), "rejected": len(rejected)}).Info("Routes filtered")

	// FETCHING + EXTRACTING
	r.mu.Lock()
	r.routesTotal = len(kept)
	r.mu.Unlock()
	r.setState(models.RunStateFetching)
	pages := r.extractAll(ctx, kept)
	res.FailedPages = int(r.failedPages.Load())
	res.EmptyPages = int(r.emptyPages.Load())

	if err := ctx.Err(); err != nil {
		r.fail(&res, fmt.Errorf("crawl interrupted during extraction: %w", err))
		return res
	}

	r.setState(models.RunStateExtracting)
	records := make([]models.PageRecord, 0, len(pages))
	for _, p := range pages {
		records = append(records, p.record)
	}
	if len(records) == 0 {
		r.fail(&res, fmt.Errorf("%w: %d routes fetched, none had readable text", utils.ErrEmptyCorpus, len(kept)))
		return res
	}

	// WRITTEN
	if err := WriteCorpus(records, r.cfg.OutputFile); err != nil {
		r.fail(&res, err)
		return res
	}
	runLog.Infof("Corpus of %d pages written to %s", len(records), r.cfg.OutputFile)

	newExporter(r.cfg, r.tokenizer, r.log).write(r.runMetadata(&res, len(kept)), pages)

	r.setState(models.RunStateWritten)
	res.Success = true
	res.Message = successMessage
	res.State = models.RunStateWritten
	res.TotalRoutes = len(records)
	res.Records = len(records)
	return res
}

func (r *CrawlRun) fail(res *models.RunResult, err error) {
	r.setState(models.RunStateFailed)
	res.Success = false
	res.Message = ""
	res.Error = err.Error()
	res.Err = err
	res.State = models.RunStateFailed
	res.TotalRoutes = 0
}

// finish logs the summary and persists the run to the state store.
func (r *CrawlRun) finish(res *models.RunResult, runLog *logrus.Entry) {
	summaryLog := runLog.WithFields(logrus.Fields{
		"success":      res.Success,
		"discovered":   res.Discovered,
		"filtered":     res.Filtered,
		"failed_pages": res.FailedPages,
		"empty_pages":  res.EmptyPages,
		"records":      res.Records,
		"duration":     res.Duration.String(),
	})
	if res.Success {
		summaryLog.Info("CRAWL FINISHED")
	} else {
		summaryLog.WithField("category", utils.CategorizeError(res.Err)).Errorf("CRAWL FAILED: %s", res.Error)
	}

	if r.store == nil {
		return
	}
	if err := r.store.SaveRun(res); err != nil {
		runLog.Warnf("Could not save run record: %v", err)
	}
	if r.cfg.WriteVisitedLog {
		logPath := filepath.Join(r.cfg.StateDir, utils.SanitizeFilename(r.base.Host)+"-visited.txt")
		if err := r.store.WriteVisitedLog(logPath); err != nil {
			runLog.Errorf("Error writing final visited log: %v", err)
		}
	}
}

// extractedPage is a corpus record plus what the exports need.
type extractedPage struct {
	record      models.PageRecord
	pageURL     string
	title       string
	markdown    string
	processedAt time.Time
}

// extractAll fetches and extracts every route with at most num_workers in
// flight. Results keep the order of routes.
func (r *CrawlRun) extractAll(ctx context.Context, routes []string) []extractedPage {
	slots := make([]*extractedPage, len(routes))
	wantMarkdown := newExporter(r.cfg, r.tokenizer, r.log).needsMarkdown()

	var g errgroup.Group
	g.SetLimit(max(r.cfg.NumWorkers, 1))
	for i, route := range routes {
		g.Go(func() error {
			defer r.routesDone.Add(1)
			slots[i] = r.extractRoute(ctx, route, wantMarkdown)
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]extractedPage, 0, len(routes))
	for _, p := range slots {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	return pages
}

// extractRoute fetches one route and returns its page, or nil when the route
// failed or had no readable text.
func (r *CrawlRun) extractRoute(ctx context.Context, route string, wantMarkdown bool) (page *extractedPage) {
	pageURL := parse.RouteURL(r.baseURL, route)
	taskLog := r.log.WithFields(logrus.Fields{"phase": storage.PhaseExtract, "route": route})
	startTime := time.Now()

	var taskErr error
	var statusCode int
	status := models.PageStatusSuccess

	defer func() {
		if rec := recover(); rec != nil {
			taskErr = fmt.Errorf("panic: %v", rec)
			page = nil
			taskLog.WithFields(logrus.Fields{
				"panic_info":  rec,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered while extracting route")
		}
		logFields := logrus.Fields{"duration": time.Since(startTime).String()}
		switch {
		case taskErr != nil:
			status = models.PageStatusFailure
			r.failedPages.Add(1)
			logFields["category"] = utils.CategorizeError(taskErr)
			taskLog.WithFields(logFields).Warnf("Skipping route: %v", taskErr)
		case status == models.PageStatusEmpty:
			r.emptyPages.Add(1)
			taskLog.WithFields(logFields).Info("Route has no readable text")
		default:
			taskLog.WithFields(logFields).Info("Route extracted")
		}
		r.recordStatus(storage.PhaseExtract, pageURL, status, statusCode, taskErr)
	}()

	taskLog.Debugf("Scraping: %s", pageURL)
	result := r.fetcher.Fetch(ctx, pageURL)
	statusCode = result.StatusCode
	if !result.Ok() {
		taskErr = result.Err
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err != nil {
		taskErr = fmt.Errorf("%w: parsing HTML of %s: %w", utils.ErrParsing, pageURL, err)
		return nil
	}

	extracted := process.ExtractContent(doc)
	if extracted.Empty {
		status = models.PageStatusEmpty
		return nil
	}

	page = &extractedPage{
		record:      models.PageRecord{URL: route, Content: extracted.Text},
		pageURL:     pageURL,
		title:       process.PageTitle(doc),
		processedAt: time.Now(),
	}
	if wantMarkdown {
		markdown, err := process.BodyMarkdown(doc)
		if err != nil {
			taskLog.Warnf("Markdown conversion failed: %v", err)
		}
		page.markdown = markdown
	}
	return page
}

// recordStatus stores a page outcome when the state store is enabled.
func (r *CrawlRun) recordStatus(phase storage.Phase, pageURL string, status models.PageStatus, statusCode int, taskErr error) {
	if r.store == nil {
		return
	}
	now := time.Now()
	entry := &models.PageDBEntry{
		Status:      status,
		StatusCode:  statusCode,
		LastAttempt: now,
		RunID:       r.id,
	}
	if taskErr != nil {
		entry.ErrorType = utils.CategorizeError(taskErr)
	} else {
		entry.ProcessedAt = now
	}
	if err := r.store.UpdatePageStatus(phase, pageURL, entry); err != nil && !errors.Is(err, context.Canceled) {
		r.log.WithField("url", pageURL).Warnf("Could not record page status: %v", err)
	}
}

func (r *CrawlRun) runMetadata(res *models.RunResult, totalRoutes int) *models.CrawlMetadata {
	return &models.CrawlMetadata{
		RunID:          r.id,
		BaseURL:        r.baseURL,
		CrawlStartTime: res.StartedAt,
		Discovered:     res.Discovered,
		TotalRoutes:    totalRoutes,
		FailedPages:    res.FailedPages,
		EmptyPages:     res.EmptyPages,
		OutputFile:     r.cfg.OutputFile,
		Configuration:  r.cfg.Summary(),
	}
}
