package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"filmstats/pkg/log"
	"filmstats/pkg/models"
	"filmstats/pkg/utils"
)

const (
	filmKeyPrefix = "film:"      // Prefix for film record keys in DB
	filmDBDir     = "film_cache" // Subdirectory name within stateDir for Badger DB files
)

// BadgerCache implements the FilmCache interface using BadgerDB. Records are
// stored with an optional TTL so repeated runs within the TTL window reuse
// extracted films instead of re-fetching three pages per film.
type BadgerCache struct {
	db       *badger.DB
	ttl      time.Duration
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) Len
}

// NewBadgerCache initializes and returns a new BadgerCache. The database
// lives under stateDir in a directory derived from the site host. When fresh
// is true any existing cache for the host is removed first.
func NewBadgerCache(stateDir, siteHost string, ttl time.Duration, fresh bool, logger *logrus.Entry) (*BadgerCache, error) {
	cache := &BadgerCache{
		ttl: ttl,
		log: logger,
	}

	// Unique directory per site within the base state directory
	dbDirName := utils.SanitizeFilename(siteHost) + "_" + filmDBDir
	dbPath := filepath.Join(stateDir, dbDirName)

	if fresh {
		logger.Warnf("Fresh flag is set. REMOVING existing film cache: %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			// Log and continue; Badger may still recover or create new files
			logger.Errorf("Failed to remove existing film cache %s: %v", dbPath, err)
		}
	}

	logger.Infof("Initializing film cache at: %s (TTL: %v)", dbPath, ttl)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory %s: %w", dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1) // Only the latest record per film matters

	var err error
	cache.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dbPath, err)
	}

	if !fresh {
		count, err := cache.countKeys()
		if err != nil {
			logger.Warnf("Failed to count existing cache keys: %v", err)
		} else {
			cache.keyCount.Store(int64(count))
			logger.Infof("Loaded existing film cache with %d records", count)
		}
	}

	logger.Info("Film cache initialized successfully.")
	return cache, nil
}

// countKeys performs a one-time full key scan (used only during initialization).
func (c *BadgerCache) countKeys() (int, error) {
	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (c *BadgerCache) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		c.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Get implements the FilmCache interface. Expired entries surface as misses
// since Badger drops TTL'd keys at read time.
func (c *BadgerCache) Get(id models.FilmID) (*models.FilmRecord, bool, error) {
	if c.db == nil {
		return nil, false, errors.New("film cache not initialized")
	}
	key := []byte(filmKeyPrefix + string(id))

	var record *models.FilmRecord
	errView := c.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil // Miss, not an error
		}
		if errGet != nil {
			return fmt.Errorf("%w: getting film key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			var entry models.FilmDBEntry
			if errJson := json.Unmarshal(val, &entry); errJson != nil {
				c.log.Warnf("Failed to unmarshal cache entry for key '%s': %v. Treating as miss.", string(key), errJson)
				return nil
			}
			record = entry.Record
			return nil
		})
	})

	if errView != nil {
		c.log.Errorf("DB View error in Get for key '%s': %v", string(key), errView)
		return nil, false, errView
	}
	return record, record != nil, nil
}

// Put implements the FilmCache interface.
func (c *BadgerCache) Put(record *models.FilmRecord) error {
	if c.db == nil {
		return errors.New("film cache not initialized")
	}
	key := []byte(filmKeyPrefix + string(record.ID))

	entryBytes, errJson := json.Marshal(models.FilmDBEntry{
		Record:    record,
		FetchedAt: time.Now().UTC(),
	})
	if errJson != nil {
		wrappedErr := fmt.Errorf("%w: marshalling cache entry for key '%s': %w", utils.ErrParsing, string(key), errJson)
		c.log.Error(wrappedErr)
		return wrappedErr
	}

	isNew := false
	err := c.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			isNew = true
		}
		e := badger.NewEntry(key, entryBytes)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})

	if err != nil {
		c.log.WithField("key", string(key)).Errorf("DB Update error in Put: %v", err)
		return fmt.Errorf("%w: storing film key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		c.keyCount.Add(1)
	}
	return nil
}

// Len implements the FilmCache interface.
// Returns the cached key count (O(1)) maintained by atomic increments on writes.
func (c *BadgerCache) Len() int {
	return int(c.keyCount.Load())
}

// RunGC runs BadgerDB's value log garbage collection periodically until the
// context is cancelled. Meant to run in its own goroutine for long-lived
// processes (watch mode).
func (c *BadgerCache) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute // Default interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.log.Info("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if c.db == nil || c.db.IsClosed() {
				c.log.Info("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}

			c.log.Debug("Running BadgerDB value log garbage collection...")
			var err error
			// Loop GC until it returns ErrNoRewrite or another error
			for {
				// Run GC if log is at least 50% reclaimable space
				err = c.db.RunValueLogGC(0.5)
				if err != nil {
					break
				}
			}

			if errors.Is(err, badger.ErrNoRewrite) {
				c.log.Debug("BadgerDB GC finished (no rewrite needed).")
			} else {
				c.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			c.log.Infof("Stopping BadgerDB garbage collection goroutine: %v", ctx.Err())
			return
		}
	}
}

// Close implements the FilmCache interface.
func (c *BadgerCache) Close() error {
	if c.db != nil && !c.db.IsClosed() {
		c.log.Info("Closing film cache...")
		err := c.db.Close()
		if err != nil {
			c.log.Errorf("Error closing film cache: %v", err)
			return err
		}
		c.log.Info("Film cache closed.")
		return nil
	}
	c.log.Info("Film cache already closed or was not initialized.")
	return nil
}
