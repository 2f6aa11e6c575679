package storage

import (
	"context"
	"time"

	"campus-crawler/pkg/models"
)

// Phase names the pass of a run that touched a URL.
type Phase string

const (
	PhaseDiscover Phase = "discover" // BFS fetch while collecting links
	PhaseExtract  Phase = "extract"  // Route fetch for content
)

// PageStore records per-URL crawl outcomes of the current run
type PageStore interface {
	// UpdatePageStatus stores the outcome for a URL in the given phase
	UpdatePageStatus(phase Phase, pageURL string, entry *models.PageDBEntry) error

	// CheckPageStatus returns the stored status for a URL in the given phase.
	// Unknown URLs report PageStatusNotFound with a nil entry.
	CheckPageStatus(phase Phase, pageURL string) (models.PageStatus, *models.PageDBEntry, error)

	// ResetPages drops all page entries, keeping run history
	ResetPages() error
}

// RunStore keeps the history of crawl runs
type RunStore interface {
	// SaveRun records a finished run
	SaveRun(result *models.RunResult) error

	// LastRun returns the most recently saved run, or nil if none exists
	LastRun() (*models.RunResult, error)
}

// StoreAdmin handles reporting and lifecycle operations
type StoreAdmin interface {
	// CountByStatus tallies page entries of a phase by status
	CountByStatus(phase Phase) (map[models.PageStatus]int, error)

	// WriteVisitedLog writes "status<TAB>url" for every discovered URL to filePath
	WriteVisitedLog(filePath string) error

	// RunGC runs periodic value log garbage collection until ctx is done
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database
	Close() error
}

// CrawlStore combines all store interfaces
type CrawlStore interface {
	PageStore
	RunStore
	StoreAdmin
}
