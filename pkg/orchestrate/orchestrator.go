package orchestrate

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"campus-crawler/pkg/config"
	"campus-crawler/pkg/crawler"
	"campus-crawler/pkg/fetch"
	"campus-crawler/pkg/models"
	"campus-crawler/pkg/storage"
	"campus-crawler/pkg/utils"
)

// Orchestrator owns the long-lived crawl resources (HTTP client, state store)
// and makes sure only one crawl run is in flight at a time. The CLI, the HTTP
// control endpoint and the MCP server all trigger runs through it.
type Orchestrator struct {
	appCfg *config.AppConfig
	log    *logrus.Entry
	deps   crawler.Deps

	mu      sync.Mutex
	running bool
	current *crawler.CrawlRun
	last    *models.RunResult

	// Coordination
	ctx    context.Context
	cancel context.CancelFunc
}

// NewOrchestrator builds the shared fetcher and, when enabled, opens the state store.
func NewOrchestrator(appCfg *config.AppConfig, log *logrus.Entry) (*Orchestrator, error) {
	ctx, cancel := context.WithCancel(context.Background())

	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, log)
	deps := crawler.Deps{Fetcher: fetch.NewFetcher(httpClient, appCfg, log)}

	if appCfg.EnableStateStore {
		store, err := storage.NewBadgerStore(ctx, appCfg.StateDir, siteKey(appCfg), log)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		go store.RunGC(ctx, 10*time.Minute)
		deps.Store = store
	}

	return newOrchestrator(ctx, cancel, appCfg, deps, log), nil
}

// NewOrchestratorWithDeps uses the given collaborators instead of building them.
func NewOrchestratorWithDeps(appCfg *config.AppConfig, deps crawler.Deps, log *logrus.Entry) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return newOrchestrator(ctx, cancel, appCfg, deps, log)
}

func newOrchestrator(ctx context.Context, cancel context.CancelFunc, appCfg *config.AppConfig, deps crawler.Deps, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		appCfg: appCfg,
		log:    log,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
	}
}

// siteKey names the state database after the crawled host.
func siteKey(appCfg *config.AppConfig) string {
	u, err := url.Parse(appCfg.BaseURL)
	if err != nil || u.Host == "" {
		return "site"
	}
	return u.Host
}

// Config returns the configuration runs are built from.
func (o *Orchestrator) Config() *config.AppConfig { return o.appCfg }

// Run performs one complete crawl and blocks until it is written or failed.
// It returns utils.ErrRunInProgress without starting anything when another
// run is active; every other failure is reported in the result.
func (o *Orchestrator) Run(ctx context.Context) (models.RunResult, error) {
	run, err := o.start()
	if err != nil {
		return models.RunResult{}, err
	}
	defer o.finishRun()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(o.ctx, cancel)
	defer stop()

	res := run.Run(runCtx)

	o.mu.Lock()
	o.last = &res
	o.mu.Unlock()
	o.logSummary(res)
	return res, nil
}

// start reserves the single run slot and builds the run.
func (o *Orchestrator) start() (*crawler.CrawlRun, error) {
	o.mu.Lock()
	if o.running {
		id := ""
		if o.current != nil {
			id = o.current.ID()
		}
		o.mu.Unlock()
		return nil, fmt.Errorf("%w (run %s)", utils.ErrRunInProgress, id)
	}
	o.running = true
	o.mu.Unlock()

	run, err := crawler.New(o.appCfg, o.deps, o.log)
	if err != nil {
		o.finishRun()
		return nil, err
	}

	o.mu.Lock()
	o.current = run
	o.mu.Unlock()
	return run, nil
}

func (o *Orchestrator) finishRun() {
	o.mu.Lock()
	o.running = false
	o.current = nil
	o.mu.Unlock()
}

// Progress returns the active run's progress, if a run is in flight.
func (o *Orchestrator) Progress() (crawler.Progress, bool) {
	o.mu.Lock()
	run := o.current
	o.mu.Unlock()
	if run == nil {
		return crawler.Progress{}, false
	}
	return run.Progress(), true
}

// LastResult returns the most recent finished run of this process, falling
// back to the state store for runs of earlier processes.
func (o *Orchestrator) LastResult() *models.RunResult {
	o.mu.Lock()
	last := o.last
	o.mu.Unlock()
	if last != nil {
		return last
	}
	if o.deps.Store == nil {
		return nil
	}
	stored, err := o.deps.Store.LastRun()
	if err != nil {
		o.log.Warnf("Could not read last run from state store: %v", err)
		return nil
	}
	return stored
}

// Cancel cancels the active run, if any. Later runs are cancelled immediately.
func (o *Orchestrator) Cancel() {
	o.log.Info("Cancelling crawl runs...")
	o.cancel()
}

// Close cancels outstanding work and closes the state store.
func (o *Orchestrator) Close() error {
	o.cancel()
	if o.deps.Store != nil {
		return o.deps.Store.Close()
	}
	return nil
}

// logSummary logs a summary of a finished run
func (o *Orchestrator) logSummary(res models.RunResult) {
	status := "SUCCESS"
	if !res.Success {
		status = "FAILED"
	}
	o.log.Info("============================================")
	o.log.Infof("Crawl run %s: %s in %v", res.RunID, status, res.Duration)
	o.log.Infof("  Discovered: %d, filtered out: %d, failed: %d, empty: %d",
		res.Discovered, res.Filtered, res.FailedPages, res.EmptyPages)
	if res.Success {
		o.log.Infof("  Wrote %d routes to %s", res.TotalRoutes, res.OutputFile)
	} else {
		o.log.Infof("  Error: %s", res.Error)
	}
	o.log.Info("============================================")
}
