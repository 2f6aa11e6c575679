package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"campus-crawler/pkg/log"
	"campus-crawler/pkg/models"
	"campus-crawler/pkg/utils"
)

const (
	pageKeyPrefix = "page:"    // page:<phase>:<url>
	runKeyPrefix  = "run:"     // run:<unix nanos>:<run id>
	lastRunKey    = "run-last" // copy of the latest run record
	stateDBDir    = "state_db" // Subdirectory name within stateDir for Badger DB files
)

// BadgerStore implements CrawlStore using BadgerDB
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
	ctx context.Context
}

// NewBadgerStore opens (or creates) the state database for siteKey under stateDir.
// Page entries from earlier runs are kept until ResetPages is called.
func NewBadgerStore(ctx context.Context, stateDir, siteKey string, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(siteKey)+"_"+stateDBDir)
	logger.Infof("Opening crawl state database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	return &BadgerStore{db: db, log: logger, ctx: ctx}, nil
}

func pageKey(phase Phase, pageURL string) []byte {
	return []byte(pageKeyPrefix + string(phase) + ":" + pageURL)
}

func phasePrefix(phase Phase) []byte {
	return []byte(pageKeyPrefix + string(phase) + ":")
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// UpdatePageStatus implements PageStore
func (s *BadgerStore) UpdatePageStatus(phase Phase, pageURL string, entry *models.PageDBEntry) error {
	key := pageKey(phase, pageURL)
	entry.Phase = string(phase)

	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal PageDBEntry for key '%s': %w", utils.ErrParsing, string(key), err)
	}

	if err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	}); err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in UpdatePageStatus: %v", err)
		return fmt.Errorf("%w: failed setting page status for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	return nil
}

// CheckPageStatus implements PageStore
func (s *BadgerStore) CheckPageStatus(phase Phase, pageURL string) (models.PageStatus, *models.PageDBEntry, error) {
	status := models.PageStatusNotFound
	var entry *models.PageDBEntry
	key := pageKey(phase, pageURL)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting page key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			var decoded models.PageDBEntry
			if err := json.Unmarshal(val, &decoded); err != nil {
				s.log.Warnf("Failed to unmarshal PageDBEntry for key '%s': %v. Treating as 'pending'.", string(key), err)
				status = models.PageStatusPending
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})
	if errView != nil {
		return models.PageStatusDBError, nil, errView
	}
	return status, entry, nil
}

// ResetPages implements PageStore
func (s *BadgerStore) ResetPages() error {
	if err := s.db.DropPrefix([]byte(pageKeyPrefix)); err != nil {
		return fmt.Errorf("%w: dropping page entries: %w", utils.ErrDatabase, err)
	}
	s.log.Debug("Cleared page entries of previous run")
	return nil
}

// SaveRun implements RunStore
func (s *BadgerStore) SaveRun(result *models.RunResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal run %s: %w", utils.ErrParsing, result.RunID, err)
	}
	key := []byte(fmt.Sprintf("%s%020d:%s", runKeyPrefix, result.StartedAt.UnixNano(), result.RunID))

	if err := s.dbUpdate(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(key, data)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry([]byte(lastRunKey), data))
	}); err != nil {
		return fmt.Errorf("%w: saving run %s: %w", utils.ErrDatabase, result.RunID, err)
	}
	return nil
}

// LastRun implements RunStore
func (s *BadgerStore) LastRun() (*models.RunResult, error) {
	var result *models.RunResult
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastRunKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded models.RunResult
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("%w: decoding last run: %w", utils.ErrParsing, err)
			}
			result = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading last run: %w", utils.ErrDatabase, err)
	}
	return result, nil
}

// CountByStatus implements StoreAdmin
func (s *BadgerStore) CountByStatus(phase Phase) (map[models.PageStatus]int, error) {
	counts := make(map[models.PageStatus]int)
	prefix := phasePrefix(phase)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry models.PageDBEntry
				if json.Unmarshal(val, &entry) != nil {
					counts[models.PageStatusPending]++
					return nil
				}
				counts[entry.Status]++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: counting %s entries: %w", utils.ErrDatabase, phase, err)
	}
	return counts, nil
}

// WriteVisitedLog implements StoreAdmin
func (s *BadgerStore) WriteVisitedLog(filePath string) error {
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: creating directory for visited log: %w", utils.ErrFilesystem, err)
		}
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	prefix := phasePrefix(PhaseDiscover)
	writtenCount := 0

	iterErr := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := s.ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			pageURL := string(item.Key()[len(prefix):])
			status := models.PageStatusPending
			_ = item.Value(func(val []byte) error {
				var entry models.PageDBEntry
				if json.Unmarshal(val, &entry) == nil {
					status = entry.Status
				}
				return nil
			})
			if _, err := fmt.Fprintf(writer, "%s\t%s\n", status, pageURL); err != nil {
				return err
			}
			writtenCount++
		}
		return nil
	})

	if flushErr := writer.Flush(); flushErr != nil && iterErr == nil {
		iterErr = flushErr
	}
	if iterErr != nil {
		s.log.Warnf("Visited log '%s' incomplete after %d URLs: %v", filePath, writtenCount, iterErr)
		if errors.Is(iterErr, context.Canceled) || errors.Is(iterErr, context.DeadlineExceeded) {
			return iterErr
		}
		return fmt.Errorf("%w: writing visited log: %w", utils.ErrFilesystem, iterErr)
	}
	s.log.Infof("Wrote %d URLs to visited log: %s", writtenCount, filePath)
	return nil
}

// RunGC runs BadgerDB's value log garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements StoreAdmin
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing state DB: %v", err)
		return fmt.Errorf("%w: closing state DB: %w", utils.ErrDatabase, err)
	}
	s.log.Debug("State DB closed")
	return nil
}
