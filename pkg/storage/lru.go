package storage

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"filmstats/pkg/models"
)

// MemoryCache is an LRU layer in front of a backing FilmCache. Hot records
// are answered from memory without touching the database; misses fall
// through to the backing store and are promoted on the way back. A nil
// backing store gives a purely in-memory cache that lasts one process.
type MemoryCache struct {
	lru     *lru.Cache[models.FilmID, *models.FilmRecord]
	backing FilmCache
	log     *logrus.Entry
}

// NewMemoryCache creates a MemoryCache holding at most size records.
func NewMemoryCache(size int, backing FilmCache, log *logrus.Entry) (*MemoryCache, error) {
	inner, err := lru.New[models.FilmID, *models.FilmRecord](size)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache (size %d): %w", size, err)
	}
	return &MemoryCache{
		lru:     inner,
		backing: backing,
		log:     log,
	}, nil
}

// Get implements the FilmCache interface.
func (m *MemoryCache) Get(id models.FilmID) (*models.FilmRecord, bool, error) {
	if record, ok := m.lru.Get(id); ok {
		return record, true, nil
	}
	if m.backing == nil {
		return nil, false, nil
	}

	record, found, err := m.backing.Get(id)
	if err != nil {
		return nil, false, err
	}
	if found {
		m.lru.Add(id, record)
	}
	return record, found, nil
}

// Put implements the FilmCache interface.
func (m *MemoryCache) Put(record *models.FilmRecord) error {
	m.lru.Add(record.ID, record)
	if m.backing == nil {
		return nil
	}
	return m.backing.Put(record)
}

// Len implements the FilmCache interface. The backing store's count is
// authoritative when present since the LRU only holds a window of it.
func (m *MemoryCache) Len() int {
	if m.backing != nil {
		return m.backing.Len()
	}
	return m.lru.Len()
}

// Close implements the FilmCache interface.
func (m *MemoryCache) Close() error {
	m.lru.Purge()
	if m.backing == nil {
		return nil
	}
	return m.backing.Close()
}
