package pmt

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Database is the key/value store contract a persistent tree runs over.
// Implementations need not be safe for concurrent use; the tree issues
// requests sequentially.
type Database interface {
	// Get returns the value stored under key; ok is false when the key is
	// absent.
	Get(key []byte) (value []byte, ok bool, err error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Close() error
}

// MemoryDatabase is a map-backed Database.
type MemoryDatabase struct {
	entries map[string][]byte
}

// NewMemoryDatabase returns an empty in-memory store.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{entries: make(map[string][]byte)}
}

func (db *MemoryDatabase) Get(key []byte) ([]byte, bool, error) {
	value, ok := db.entries[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (db *MemoryDatabase) Put(key, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	db.entries[string(key)] = stored
	return nil
}

func (db *MemoryDatabase) Delete(key []byte) error {
	delete(db.entries, string(key))
	return nil
}

func (db *MemoryDatabase) Close() error { return nil }

// PebbleDatabase stores nodes in a pebble key/value store on disk.
type PebbleDatabase struct {
	db *pebble.DB
}

// NewPebbleDatabase opens (or creates) a pebble store at the given path.
func NewPebbleDatabase(path string) (*PebbleDatabase, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &PebbleDatabase{db: db}, nil
}

func (p *PebbleDatabase) Get(key []byte) ([]byte, bool, error) {
	value, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(value))
	copy(out, value)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (p *PebbleDatabase) Put(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleDatabase) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleDatabase) Close() error { return p.db.Close() }

// CachedDatabase decorates a Database with an LRU read-through cache. Writes
// go to both the cache and the backing store.
type CachedDatabase struct {
	backing Database
	cache   *lru.Cache[string, []byte]
}

// NewCachedDatabase wraps the backing store with a cache of the given size.
func NewCachedDatabase(backing Database, size int) (*CachedDatabase, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachedDatabase{backing: backing, cache: cache}, nil
}

func (c *CachedDatabase) Get(key []byte) ([]byte, bool, error) {
	if value, ok := c.cache.Get(string(key)); ok {
		out := make([]byte, len(value))
		copy(out, value)
		return out, true, nil
	}
	value, ok, err := c.backing.Get(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	c.cache.Add(string(key), value)
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (c *CachedDatabase) Put(key, value []byte) error {
	if err := c.backing.Put(key, value); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	c.cache.Add(string(key), stored)
	return nil
}

func (c *CachedDatabase) Delete(key []byte) error {
	if err := c.backing.Delete(key); err != nil {
		return err
	}
	c.cache.Remove(string(key))
	return nil
}

func (c *CachedDatabase) Close() error { return c.backing.Close() }
